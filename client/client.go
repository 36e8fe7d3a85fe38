// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package client calls the gateway's push protocol over JSON-RPC.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"gopkg.in/cenkalti/backoff.v1"

	a2a "github.com/go-a2a/a2a-gateway"
)

// Client sends push-protocol requests to one JSON-RPC endpoint.
type Client struct {
	url        string
	httpClient *http.Client
	header     http.Header
	retryFor   time.Duration
	nextID     atomic.Int64
}

// New returns a Client for the JSON-RPC endpoint at url.
func New(url string, opts ...Option) *Client {
	c := &Client{
		url:        url,
		httpClient: http.DefaultClient,
		header:     make(http.Header),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromCard returns a Client for the endpoint advertised by card.
func NewFromCard(card *a2a.AgentCard, opts ...Option) (*Client, error) {
	if err := card.Validate(); err != nil {
		return nil, err
	}
	return New(card.URL, opts...), nil
}

// SendMessage runs one turn and returns the task in its final state.
func (c *Client) SendMessage(ctx context.Context, params *a2a.MessageSendParams) (*a2a.Task, error) {
	var t a2a.Task
	if err := c.call(ctx, a2a.MethodMessageSend, params, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// GetTask returns the stored task with the given id. Transport failures are
// retried when the client was built with [WithRetry].
func (c *Client) GetTask(ctx context.Context, taskID string) (*a2a.Task, error) {
	var t a2a.Task
	op := func() error {
		return c.call(ctx, a2a.MethodTasksGet, &a2a.TaskQueryParams{ID: taskID}, &t)
	}
	if c.retryFor <= 0 {
		if err := op(); err != nil {
			return nil, err
		}
		return &t, nil
	}

	var final error
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = c.retryFor
	err := backoff.Retry(func() error {
		err := op()
		var netErr *NetworkError
		if errors.As(err, &netErr) {
			return err
		}
		final = err
		return nil
	}, backoff.WithContext(b, ctx))
	if err != nil {
		return nil, err
	}
	if final != nil {
		return nil, final
	}
	return &t, nil
}

// StreamMessage runs one turn and returns its events as they are produced.
func (c *Client) StreamMessage(ctx context.Context, params *a2a.MessageSendParams) (*Stream, error) {
	req, err := c.newRequest(ctx, a2a.MethodMessageStream, params)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, newStatusError(resp)
	}

	// errors before the first event come back as a plain JSON-RPC response
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		defer resp.Body.Close()
		var rpcResp response
		if err := json.UnmarshalRead(resp.Body, &rpcResp); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		if rpcResp.Error != nil {
			return nil, rpcResp.Error
		}
		return nil, fmt.Errorf("unexpected content type %q", ct)
	}
	return newStream(resp.Body), nil
}

type response struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      jsontext.Value    `json:"id,omitempty"`
	Result  jsontext.Value    `json:"result,omitempty"`
	Error   *a2a.JSONRPCError `json:"error,omitempty"`
}

func (c *Client) call(ctx context.Context, method string, params, result any) error {
	req, err := c.newRequest(ctx, method, params)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NetworkError{Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return newStatusError(resp)
	}

	var rpcResp response
	if err := json.UnmarshalRead(resp.Body, &rpcResp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if err := json.Unmarshal(rpcResp.Result, result); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method string, params any) (*http.Request, error) {
	if c.url == "" {
		return nil, errors.New("client URL is not set")
	}
	rawParams, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode params: %w", err)
	}
	body, err := json.Marshal(&a2a.JSONRPCRequest{
		JSONRPC: a2a.JSONRPCVersion,
		ID:      jsontext.Value(strconv.FormatInt(c.nextID.Add(1), 10)),
		Method:  method,
		Params:  rawParams,
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	for key, values := range c.header {
		req.Header[key] = values
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func newStatusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	return &StatusError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
}
