// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-json-experiment/json"

	a2a "github.com/go-a2a/a2a-gateway"
)

// ResolveAgentCard fetches the agent card published under baseURL. The legacy
// well-known path is tried when the current one is not served.
func ResolveAgentCard(ctx context.Context, hc *http.Client, baseURL string) (*a2a.AgentCard, error) {
	if hc == nil {
		hc = http.DefaultClient
	}
	baseURL = strings.TrimRight(baseURL, "/")

	var lastErr error
	for _, path := range []string{a2a.AgentCardWellKnownPath, a2a.LegacyAgentCardPath} {
		card, err := fetchCard(ctx, hc, baseURL+path)
		if err == nil {
			return card, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func fetchCard(ctx context.Context, hc *http.Client, url string) (*a2a.AgentCard, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, err
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, newStatusError(resp)
	}

	var card a2a.AgentCard
	if err := json.UnmarshalRead(resp.Body, &card); err != nil {
		return nil, fmt.Errorf("decode agent card: %w", err)
	}
	if err := card.Validate(); err != nil {
		return nil, fmt.Errorf("agent card from %s: %w", url, err)
	}
	return &card, nil
}
