// Package domain contains the invoice model and its derived payment status.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crm/pkg/money"
	"gorm.io/datatypes"
)

// Status is the invoice lifecycle state. Partial and Paid are derived from the
// payment ledger, the others are set by invoice writes.
type Status string

const (
	StatusDraft   Status = "Draft"
	StatusSent    Status = "Sent"
	StatusPartial Status = "Partial"
	StatusPaid    Status = "Paid"
	StatusOverdue Status = "Overdue"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusSent, StatusPartial, StatusPaid, StatusOverdue:
		return true
	default:
		return false
	}
}

// LineItem is one billed line. Amount is quantity * unit price.
type LineItem struct {
	Description string       `json:"description"`
	Quantity    float64      `json:"quantity"`
	UnitPrice   money.Amount `json:"unitPrice"`
	Amount      money.Amount `json:"amount"`
}

type Invoice struct {
	ID            snowflake.ID                  `gorm:"primaryKey" json:"id"`
	Number        string                        `gorm:"type:text;not null;uniqueIndex" json:"invoiceNumber"`
	ContactID     string                        `gorm:"type:text;index" json:"contactId,omitempty"`
	CustomerName  string                        `gorm:"type:text;not null" json:"customerName"`
	CustomerEmail string                        `gorm:"type:text" json:"customerEmail,omitempty"`
	Items         datatypes.JSONSlice[LineItem] `json:"items"`
	TotalAmount   money.Amount                  `gorm:"not null;default:0" json:"totalAmount"`
	Status        Status                        `gorm:"type:text;not null;default:'Draft'" json:"status"`
	DueDate       *time.Time                    `json:"dueDate,omitempty"`
	PaidAt        *time.Time                    `json:"paidAt,omitempty"`
	Notes         string                        `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt     time.Time                     `gorm:"not null" json:"createdAt"`
	UpdatedAt     time.Time                     `gorm:"not null" json:"updatedAt"`
}

func (Invoice) TableName() string { return "invoices" }

// Settle returns the status implied by the amount collected against total.
// A ledger with nothing collected leaves the current status alone, so Draft,
// Sent and Overdue are only ever changed by invoice writes.
func Settle(current Status, total, collected money.Amount) Status {
	switch {
	case collected <= 0:
		return current
	case collected >= total:
		return StatusPaid
	default:
		return StatusPartial
	}
}

// SumItems fills in missing line amounts and returns the invoice total.
func SumItems(items []LineItem) ([]LineItem, money.Amount) {
	out := make([]LineItem, 0, len(items))
	var total money.Amount
	for _, item := range items {
		if item.Quantity == 0 {
			item.Quantity = 1
		}
		if item.Amount == 0 {
			item.Amount = item.UnitPrice.Times(item.Quantity)
		}
		total += item.Amount
		out = append(out, item)
	}
	return out, total
}
