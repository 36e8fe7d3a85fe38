// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/redis/go-redis/v9"

	a2a "github.com/go-a2a/a2a-gateway"
)

// DefaultRedisKeyPrefix is the key namespace used when none is configured.
const DefaultRedisKeyPrefix = "a2a-gateway:"

// RedisStore is a networked key/value implementation of Store.
//
// Tasks live under <prefix>task:<id> as JSON, context mappings under
// <prefix>context:<id> as plain strings.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ Store = (*RedisStore)(nil)

// RedisStoreConfig holds configuration for RedisStore.
type RedisStoreConfig struct {
	Client *redis.Client
	// KeyPrefix defaults to DefaultRedisKeyPrefix.
	KeyPrefix string
	// TTL expires keys after the last write. Zero keeps them forever.
	TTL time.Duration
}

// NewRedisStore creates a new RedisStore.
func NewRedisStore(config RedisStoreConfig) (*RedisStore, error) {
	if config.Client == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}
	prefix := config.KeyPrefix
	if prefix == "" {
		prefix = DefaultRedisKeyPrefix
	}
	return &RedisStore{
		client: config.Client,
		prefix: prefix,
		ttl:    config.TTL,
	}, nil
}

func (s *RedisStore) taskKey(taskID string) string {
	return s.prefix + "task:" + taskID
}

func (s *RedisStore) contextKey(contextID string) string {
	return s.prefix + "context:" + contextID
}

// GetTask retrieves a task by its ID.
func (s *RedisStore) GetTask(ctx context.Context, taskID string) (*a2a.Task, error) {
	if taskID == "" {
		return nil, fmt.Errorf("task ID cannot be empty")
	}

	data, err := s.client.Get(ctx, s.taskKey(taskID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, a2a.TaskNotFoundError{TaskID: taskID}
		}
		return nil, NewStoreError("get_task", taskID, err)
	}

	var task a2a.Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, NewStoreError("get_task", taskID, fmt.Errorf("decode task: %w", err))
	}
	return &task, nil
}

// PutTask stores a task, replacing any previous value.
func (s *RedisStore) PutTask(ctx context.Context, task *a2a.Task) error {
	if err := task.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(task, lenientText)
	if err != nil {
		return fmt.Errorf("encode task %s: %w", task.ID, err)
	}
	if err := s.client.Set(ctx, s.taskKey(task.ID), data, s.ttl).Err(); err != nil {
		return NewStoreError("put_task", task.ID, err)
	}
	return nil
}

// GetContextSession returns the session bound to contextID.
func (s *RedisStore) GetContextSession(ctx context.Context, contextID string) (string, bool, error) {
	sessionID, err := s.client.Get(ctx, s.contextKey(contextID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, NewStoreError("get_context_session", contextID, err)
	}
	return sessionID, true, nil
}

// PutContextSession binds contextID to sessionID.
func (s *RedisStore) PutContextSession(ctx context.Context, contextID, sessionID string) error {
	if contextID == "" {
		return fmt.Errorf("context ID cannot be empty")
	}
	if err := s.client.Set(ctx, s.contextKey(contextID), sessionID, s.ttl).Err(); err != nil {
		return NewStoreError("put_context_session", contextID, err)
	}
	return nil
}

// Ready issues a PING.
func (s *RedisStore) Ready(ctx context.Context) bool {
	return s.client.Ping(ctx).Err() == nil
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
