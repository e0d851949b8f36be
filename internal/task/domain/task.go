package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Status string

const (
	StatusPending    Status = "Pending"
	StatusInProgress Status = "In Progress"
	StatusCompleted  Status = "Completed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Task is a unit of work. AssigneeID references a contact record.
type Task struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	Title       string       `gorm:"type:text;not null" json:"title"`
	Description string       `gorm:"type:text" json:"description,omitempty"`
	Status      Status       `gorm:"type:text;not null;index" json:"status"`
	AssigneeID  string       `gorm:"type:text;index" json:"assigneeId,omitempty"`
	ContactID   string       `gorm:"type:text" json:"contactId,omitempty"`
	DueDate     *time.Time   `json:"dueDate,omitempty"`
	CreatedAt   time.Time    `gorm:"not null" json:"createdAt"`
	UpdatedAt   time.Time    `gorm:"not null" json:"updatedAt"`
}

func (Task) TableName() string { return "tasks" }

type ListFilter struct {
	Status     Status
	AssigneeID string
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, task *Task) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Task, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Task, error)
	Update(ctx context.Context, db *gorm.DB, task *Task) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error)
}

type CreateTaskRequest struct {
	Title       string
	Description string
	Status      Status
	AssigneeID  string
	ContactID   string
	DueDate     *time.Time
}

type UpdateTaskRequest struct {
	Title       *string
	Description *string
	Status      *Status
	AssigneeID  *string
	ContactID   *string
	DueDate     *time.Time
}

type Service interface {
	Create(ctx context.Context, req CreateTaskRequest) (Task, error)
	List(ctx context.Context, filter ListFilter) ([]Task, error)
	GetByID(ctx context.Context, id string) (Task, error)
	Update(ctx context.Context, id string, req UpdateTaskRequest) (Task, error)
	Delete(ctx context.Context, id string) error
}

var (
	ErrInvalidID     = errors.New("invalid_id")
	ErrInvalidTitle  = errors.New("invalid_title")
	ErrInvalidStatus = errors.New("invalid_status")
	ErrNotFound      = errors.New("not_found")
)
