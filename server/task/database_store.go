// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	a2a "github.com/go-a2a/a2a-gateway"
)

// DatabaseStore is a networked SQL implementation of Store using GORM.
type DatabaseStore struct {
	db          *gorm.DB
	createTable bool
}

var _ Store = (*DatabaseStore)(nil)

// DatabaseStoreConfig holds configuration for DatabaseStore.
type DatabaseStoreConfig struct {
	DB          *gorm.DB
	CreateTable bool // Whether to create the tables if they don't exist
}

// NewDatabaseStore creates a new DatabaseStore.
func NewDatabaseStore(config DatabaseStoreConfig) (*DatabaseStore, error) {
	if config.DB == nil {
		return nil, fmt.Errorf("database connection cannot be nil")
	}

	return &DatabaseStore{
		db:          config.DB,
		createTable: config.CreateTable,
	}, nil
}

// Initialize prepares the database for use.
func (s *DatabaseStore) Initialize(ctx context.Context) error {
	if !s.createTable {
		return nil
	}

	if err := s.db.WithContext(ctx).AutoMigrate(&TaskModel{}, &ContextSessionModel{}); err != nil {
		return NewStoreError("initialize", "", err)
	}
	return nil
}

// GetTask retrieves a task by its ID from the database.
func (s *DatabaseStore) GetTask(ctx context.Context, taskID string) (*a2a.Task, error) {
	if taskID == "" {
		return nil, fmt.Errorf("task ID cannot be empty")
	}

	var model TaskModel
	if err := s.db.WithContext(ctx).Where("id = ?", taskID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, a2a.TaskNotFoundError{TaskID: taskID}
		}
		return nil, NewStoreError("get_task", taskID, err)
	}

	return model.ToTask(), nil
}

// PutTask upserts a task into the database.
func (s *DatabaseStore) PutTask(ctx context.Context, task *a2a.Task) error {
	if err := task.Validate(); err != nil {
		return err
	}

	model := NewTaskModelFromTask(task)
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(model).Error
	if err != nil {
		return NewStoreError("put_task", task.ID, err)
	}
	return nil
}

// GetContextSession returns the session bound to contextID.
func (s *DatabaseStore) GetContextSession(ctx context.Context, contextID string) (string, bool, error) {
	var model ContextSessionModel
	if err := s.db.WithContext(ctx).Where("context_id = ?", contextID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, NewStoreError("get_context_session", contextID, err)
	}
	return model.SessionID, true, nil
}

// PutContextSession binds contextID to sessionID.
func (s *DatabaseStore) PutContextSession(ctx context.Context, contextID, sessionID string) error {
	if contextID == "" {
		return fmt.Errorf("context ID cannot be empty")
	}

	model := &ContextSessionModel{
		ContextID: contextID,
		SessionID: sessionID,
		UpdatedAt: time.Now().UTC(),
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "context_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"session_id", "updated_at"}),
		}).
		Create(model).Error
	if err != nil {
		return NewStoreError("put_context_session", contextID, err)
	}
	return nil
}

// Ready pings the underlying connection pool.
func (s *DatabaseStore) Ready(ctx context.Context) bool {
	sqlDB, err := s.db.DB()
	if err != nil {
		return false
	}
	return sqlDB.PingContext(ctx) == nil
}

// Close closes the underlying connection pool.
func (s *DatabaseStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
