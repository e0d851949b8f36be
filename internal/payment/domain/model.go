package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crm/pkg/money"
	"gorm.io/gorm"
)

const (
	MethodCash         = "Cash"
	MethodBankTransfer = "Bank Transfer"
	MethodCard         = "Card"
	MethodCheque       = "Cheque"
	MethodOther        = "Other"
)

// Payment is one append-only ledger entry against an invoice. Entries are
// never updated; a correction is a delete plus a new entry.
type Payment struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	InvoiceID snowflake.ID `gorm:"not null;index" json:"invoiceId"`
	Amount    money.Amount `gorm:"not null" json:"amount"`
	Method    string       `gorm:"type:text;not null" json:"method"`
	Reference string       `gorm:"type:text" json:"reference,omitempty"`
	Date      time.Time    `gorm:"column:paid_at;not null" json:"date"`
	Notes     string       `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt time.Time    `gorm:"not null" json:"createdAt"`
}

func (Payment) TableName() string { return "payments" }

type ListFilter struct {
	InvoiceID snowflake.ID
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, payment *Payment) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Payment, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Payment, error)
	ListByInvoice(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]*Payment, error)
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error)
	DeleteByInvoice(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) (int64, error)
}

type CreatePaymentRequest struct {
	InvoiceID string
	Amount    money.Amount
	Method    string
	Reference string
	Date      *time.Time
	Notes     string
}

// CreatePaymentResponse surfaces the invoice status computed right after the
// entry was recorded.
type CreatePaymentResponse struct {
	Payment       Payment `json:"payment"`
	InvoiceStatus string  `json:"invoiceStatus"`
}

type Service interface {
	Create(ctx context.Context, req CreatePaymentRequest) (CreatePaymentResponse, error)
	List(ctx context.Context, invoiceID string) ([]Payment, error)
	GetByID(ctx context.Context, id string) (Payment, error)
	Delete(ctx context.Context, id string) error
	RenderReceipt(ctx context.Context, id string) ([]byte, error)
}

var (
	ErrInvalidID        = errors.New("invalid_id")
	ErrInvalidInvoiceID = errors.New("invalid_invoice_id")
	ErrInvalidAmount    = errors.New("invalid_amount")
	ErrInvalidMethod    = errors.New("invalid_method")
	ErrNotFound         = errors.New("not_found")
)

// Sum totals the amounts of the given entries in minor units.
func Sum(entries []*Payment) money.Amount {
	var total money.Amount
	for _, entry := range entries {
		if entry != nil {
			total += entry.Amount
		}
	}
	return total
}
