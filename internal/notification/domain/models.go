// Package domain holds the delivery log of the notification service.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crm/pkg/db/pagination"
	"gorm.io/gorm"
)

const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// Delivery records one attempt to send an email.
type Delivery struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Recipient string       `gorm:"type:text;not null;index" json:"to"`
	Subject   string       `gorm:"type:text;not null" json:"subject"`
	Status    string       `gorm:"type:text;not null" json:"status"`
	Error     string       `gorm:"type:text" json:"error,omitempty"`
	CreatedAt time.Time    `gorm:"not null;index" json:"createdAt"`
}

func (Delivery) TableName() string { return "notification_deliveries" }

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, d *Delivery) error
	List(ctx context.Context, db *gorm.DB, recipient string, page pagination.Pagination) ([]*Delivery, error)
}

type SendEmailRequest struct {
	To      string
	Subject string
	Message string
}

type ListRequest struct {
	Recipient string
	PageToken string
	PageSize  int
}

type ListResponse struct {
	Deliveries []Delivery          `json:"deliveries"`
	PageInfo   pagination.PageInfo `json:"pageInfo"`
}

type Service interface {
	SendEmail(ctx context.Context, req SendEmailRequest) (Delivery, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
}

var (
	ErrInvalidRecipient = errors.New("invalid_recipient")
	ErrInvalidSubject   = errors.New("invalid_subject")
	ErrInvalidPageToken = errors.New("invalid_page_token")
	ErrDeliveryFailed   = errors.New("delivery_failed")
)
