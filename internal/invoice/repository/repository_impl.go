package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crm/internal/invoice/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) error {
	return db.WithContext(ctx).Create(invoice).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	var invoice domain.Invoice
	err := db.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&invoice).Error
	if err != nil {
		return nil, err
	}
	if invoice.ID == 0 {
		return nil, nil
	}
	return &invoice, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.Invoice, error) {
	var invoices []*domain.Invoice
	stmt := db.WithContext(ctx).Model(&domain.Invoice{})
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.ContactID != "" {
		stmt = stmt.Where("contact_id = ?", filter.ContactID)
	}
	if err := stmt.Order("created_at desc, id desc").Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}

// Update writes the editable body of the invoice. Status and paid_at are left
// to UpdateStatus.
func (r *repo) Update(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) error {
	return db.WithContext(ctx).
		Model(&domain.Invoice{}).
		Where("id = ?", invoice.ID).
		Updates(map[string]any{
			"contact_id":     invoice.ContactID,
			"customer_name":  invoice.CustomerName,
			"customer_email": invoice.CustomerEmail,
			"items":          invoice.Items,
			"total_amount":   int64(invoice.TotalAmount),
			"due_date":       invoice.DueDate,
			"notes":          invoice.Notes,
			"updated_at":     invoice.UpdatedAt,
		}).Error
}

// UpdateStatus writes only the derived fields so a concurrent edit of the
// invoice body is not overwritten by reconciliation.
func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status domain.Status, paidAt *time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.Invoice{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     status,
			"paid_at":    paidAt,
			"updated_at": time.Now().UTC(),
		}).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error) {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Invoice{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) CountCreatedSince(ctx context.Context, db *gorm.DB, since time.Time) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.Invoice{}).
		Where("created_at >= ?", since).
		Count(&count).Error
	return count, err
}
