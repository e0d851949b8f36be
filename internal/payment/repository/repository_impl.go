package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crm/internal/payment/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, payment *domain.Payment) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO payments (id, invoice_id, amount, method, reference, paid_at, notes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		payment.ID,
		payment.InvoiceID,
		int64(payment.Amount),
		payment.Method,
		payment.Reference,
		payment.Date,
		payment.Notes,
		payment.CreatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Payment, error) {
	var payment domain.Payment
	err := db.WithContext(ctx).Raw(
		`SELECT id, invoice_id, amount, method, reference, paid_at, notes, created_at
		 FROM payments WHERE id = ?`,
		id,
	).Scan(&payment).Error
	if err != nil {
		return nil, err
	}
	if payment.ID == 0 {
		return nil, nil
	}
	return &payment, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.Payment, error) {
	var payments []*domain.Payment
	stmt := db.WithContext(ctx).Model(&domain.Payment{})
	if filter.InvoiceID != 0 {
		stmt = stmt.Where("invoice_id = ?", filter.InvoiceID)
	}
	if err := stmt.Order("paid_at desc, id desc").Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

// ListByInvoice reads the complete ledger for one invoice.
func (r *repo) ListByInvoice(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]*domain.Payment, error) {
	var payments []*domain.Payment
	err := db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("id asc").
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error) {
	res := db.WithContext(ctx).Exec(`DELETE FROM payments WHERE id = ?`, id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) DeleteByInvoice(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) (int64, error) {
	res := db.WithContext(ctx).Exec(`DELETE FROM payments WHERE invoice_id = ?`, invoiceID)
	return res.RowsAffected, res.Error
}
