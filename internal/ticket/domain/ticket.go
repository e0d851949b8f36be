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
	StatusOpen       Status = "Open"
	StatusInProgress Status = "In Progress"
	StatusResolved   Status = "Resolved"
	StatusClosed     Status = "Closed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusResolved, StatusClosed:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow      Priority = "Low"
	PriorityMedium   Priority = "Medium"
	PriorityHigh     Priority = "High"
	PriorityCritical Priority = "Critical"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Ticket is a support request raised either by a known contact or by a guest
// who left only a name and an email.
type Ticket struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	Subject     string       `gorm:"type:text;not null" json:"subject"`
	Description string       `gorm:"type:text" json:"description,omitempty"`
	Status      Status       `gorm:"type:text;not null;index" json:"status"`
	Priority    Priority     `gorm:"type:text;not null" json:"priority"`
	ContactID   string       `gorm:"type:text;index" json:"contactId,omitempty"`
	GuestName   string       `gorm:"type:text" json:"guestName,omitempty"`
	GuestEmail  string       `gorm:"type:text" json:"guestEmail,omitempty"`
	AssigneeID  string       `gorm:"type:text" json:"assigneeId,omitempty"`
	ResolvedAt  *time.Time   `json:"resolvedAt,omitempty"`
	CreatedAt   time.Time    `gorm:"not null" json:"createdAt"`
	UpdatedAt   time.Time    `gorm:"not null" json:"updatedAt"`
}

func (Ticket) TableName() string { return "tickets" }

type ListFilter struct {
	Status    Status
	Priority  Priority
	ContactID string
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, ticket *Ticket) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Ticket, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Ticket, error)
	Update(ctx context.Context, db *gorm.DB, ticket *Ticket) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error)
}

type CreateTicketRequest struct {
	Subject     string
	Description string
	Status      Status
	Priority    Priority
	ContactID   string
	GuestName   string
	GuestEmail  string
	AssigneeID  string
}

type UpdateTicketRequest struct {
	Subject     *string
	Description *string
	Status      *Status
	Priority    *Priority
	ContactID   *string
	GuestName   *string
	GuestEmail  *string
	AssigneeID  *string
}

type Service interface {
	Create(ctx context.Context, req CreateTicketRequest) (Ticket, error)
	List(ctx context.Context, filter ListFilter) ([]Ticket, error)
	GetByID(ctx context.Context, id string) (Ticket, error)
	Update(ctx context.Context, id string, req UpdateTicketRequest) (Ticket, error)
	Delete(ctx context.Context, id string) error
}

var (
	ErrInvalidID       = errors.New("invalid_id")
	ErrInvalidSubject  = errors.New("invalid_subject")
	ErrInvalidStatus   = errors.New("invalid_status")
	ErrInvalidPriority = errors.New("invalid_priority")
	ErrNotFound        = errors.New("not_found")
)
