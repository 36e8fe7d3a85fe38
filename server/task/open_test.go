// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	a2a "github.com/go-a2a/a2a-gateway"
)

func TestOpen(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		cfg     Config
		want    string
		wantErr bool
	}{
		"success: default is memory":  {cfg: Config{}, want: "*task.InMemoryStore"},
		"success: memory":             {cfg: Config{Type: TypeMemory}, want: "*task.InMemoryStore"},
		"success: sqlite":             {cfg: Config{Type: TypeSQLite}, want: "*task.SQLiteStore"},
		"error: postgres without dsn": {cfg: Config{Type: TypePostgres}, wantErr: true},
		"error: postgres bad dsn":     {cfg: Config{Type: TypePostgres, DSN: "postgres://%zz"}, wantErr: true},
		"error: unknown type":         {cfg: Config{Type: "etcd"}, wantErr: true},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			cfg := tt.cfg
			if cfg.Type == TypeSQLite {
				cfg.Path = filepath.Join(t.TempDir(), "state.db")
			}
			store, err := Open(t.Context(), cfg, nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Open() error = %v, wantErr %t", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			t.Cleanup(func() { store.Close() })

			if got := fmt.Sprintf("%T", store); got != tt.want {
				t.Errorf("Open() = %s, want %s", got, tt.want)
			}
		})
	}
}

// flakyStore becomes ready after a number of readiness checks.
type flakyStore struct {
	*InMemoryStore
	readyAfter int32
	checks     atomic.Int32
}

func (s *flakyStore) Ready(context.Context) bool {
	return s.checks.Add(1) > s.readyAfter
}

func TestWaitReady(t *testing.T) {
	t.Parallel()

	store := &flakyStore{InMemoryStore: NewInMemoryStore(), readyAfter: 2}
	if err := WaitReady(t.Context(), store, 5*time.Second); err != nil {
		t.Fatalf("WaitReady() error = %v", err)
	}
	if got := store.checks.Load(); got != 3 {
		t.Errorf("Ready called %d times, want 3", got)
	}
}

func TestWaitReady_Timeout(t *testing.T) {
	t.Parallel()

	store := &flakyStore{InMemoryStore: NewInMemoryStore(), readyAfter: 1 << 30}
	err := WaitReady(t.Context(), store, 300*time.Millisecond)
	if !errors.Is(err, a2a.ErrStorageUnavailable) {
		t.Errorf("WaitReady() error = %v, want ErrStorageUnavailable", err)
	}
}
