package repository

import (
	"context"

	"github.com/smallbiznis/crm/internal/notification/domain"
	"github.com/smallbiznis/crm/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, d *domain.Delivery) error {
	return db.WithContext(ctx).Create(d).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, recipient string, page pagination.Pagination) ([]*domain.Delivery, error) {
	stmt := db.WithContext(ctx).Model(&domain.Delivery{})
	if recipient != "" {
		stmt = stmt.Where("recipient = ?", recipient)
	}
	stmt, err := pagination.Apply(stmt, page)
	if err != nil {
		return nil, err
	}
	var out []*domain.Delivery
	if err := stmt.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
