// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"

	a2a "github.com/go-a2a/a2a-gateway"
)

// lenientText replaces invalid UTF-8 in backend text with U+FFFD instead of
// failing the write.
var lenientText = jsontext.AllowInvalidUTF8(true)

// TaskStatusJSON provides JSON serialization for a2a.TaskStatus in database columns.
type TaskStatusJSON struct {
	a2a.TaskStatus
}

// Value implements the driver.Valuer interface for database storage.
func (ts TaskStatusJSON) Value() (driver.Value, error) {
	data, err := json.Marshal(ts.TaskStatus, lenientText)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements the sql.Scanner interface for database retrieval.
func (ts *TaskStatusJSON) Scan(value any) error {
	data, err := scanBytes(value)
	if err != nil {
		return fmt.Errorf("cannot scan %T into TaskStatusJSON: %w", value, err)
	}
	if data == nil {
		*ts = TaskStatusJSON{}
		return nil
	}

	var status a2a.TaskStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return fmt.Errorf("cannot unmarshal TaskStatusJSON: %w", err)
	}
	ts.TaskStatus = status
	return nil
}

// MetadataJSON provides JSON serialization for free-form metadata columns.
type MetadataJSON map[string]any

// Value implements the driver.Valuer interface for database storage.
func (m MetadataJSON) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	data, err := json.Marshal(map[string]any(m), lenientText)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements the sql.Scanner interface for database retrieval.
func (m *MetadataJSON) Scan(value any) error {
	data, err := scanBytes(value)
	if err != nil {
		return fmt.Errorf("cannot scan %T into MetadataJSON: %w", value, err)
	}
	if data == nil {
		*m = nil
		return nil
	}

	var md map[string]any
	if err := json.Unmarshal(data, &md); err != nil {
		return fmt.Errorf("cannot unmarshal MetadataJSON: %w", err)
	}
	*m = md
	return nil
}

func scanBytes(value any) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported column type")
	}
}

// TaskModel is the row layout of a persisted task.
type TaskModel struct {
	ID        string         `gorm:"primaryKey;size:64"`
	ContextID string         `gorm:"size:64;not null;index"`
	Kind      string         `gorm:"size:16;default:task;not null"`
	State     string         `gorm:"size:32;not null"`
	Status    TaskStatusJSON `gorm:"type:text"`
	Metadata  MetadataJSON   `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName returns the table name for TaskModel.
func (TaskModel) TableName() string {
	return "tasks"
}

// NewTaskModelFromTask creates a TaskModel from an a2a.Task.
func NewTaskModelFromTask(task *a2a.Task) *TaskModel {
	return &TaskModel{
		ID:        task.ID,
		ContextID: task.ContextID,
		Kind:      a2a.KindTask,
		State:     string(task.Status.State),
		Status:    TaskStatusJSON{TaskStatus: task.Status},
		Metadata:  MetadataJSON(task.Metadata),
		CreatedAt: task.CreatedAt,
		UpdatedAt: task.UpdatedAt,
	}
}

// ToTask converts the row back into an a2a.Task.
func (m *TaskModel) ToTask() *a2a.Task {
	return &a2a.Task{
		ID:        m.ID,
		ContextID: m.ContextID,
		Kind:      a2a.KindTask,
		Status:    m.Status.TaskStatus,
		Metadata:  map[string]any(m.Metadata),
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
	}
}

// ContextSessionModel is the row layout of the context to session mapping.
type ContextSessionModel struct {
	ContextID string `gorm:"primaryKey;size:64"`
	SessionID string `gorm:"size:128;not null"`
	UpdatedAt time.Time
}

// TableName returns the table name for ContextSessionModel.
func (ContextSessionModel) TableName() string {
	return "context_sessions"
}
