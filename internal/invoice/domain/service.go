package domain

import (
	"context"
	"errors"
	"time"
)

type CreateInvoiceRequest struct {
	ContactID     string
	CustomerName  string
	CustomerEmail string
	Items         []LineItem
	Status        Status
	DueDate       *time.Time
	Notes         string
}

// UpdateInvoiceRequest carries a partial update; nil fields are left unchanged.
type UpdateInvoiceRequest struct {
	ContactID     *string
	CustomerName  *string
	CustomerEmail *string
	Items         []LineItem
	Status        *Status
	DueDate       *time.Time
	Notes         *string
}

type ListInvoiceRequest struct {
	Status    string
	ContactID string
}

type Service interface {
	Create(ctx context.Context, req CreateInvoiceRequest) (Invoice, error)
	List(ctx context.Context, req ListInvoiceRequest) ([]Invoice, error)
	GetByID(ctx context.Context, id string) (Invoice, error)
	Update(ctx context.Context, id string, req UpdateInvoiceRequest) (Invoice, error)
	Delete(ctx context.Context, id string) error
	Reconcile(ctx context.Context, id string) (Invoice, error)
	RenderPDF(ctx context.Context, id string) ([]byte, Invoice, error)
}

var (
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidCustomerName = errors.New("invalid_customer_name")
	ErrInvalidItems        = errors.New("invalid_items")
	ErrInvalidStatus       = errors.New("invalid_status")
	ErrNotFound            = errors.New("not_found")
)
