package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crm/internal/records/domain"
	"github.com/smallbiznis/crm/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, rec *domain.Record) error {
	return db.WithContext(ctx).Create(rec).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, collection string, id snowflake.ID) (*domain.Record, error) {
	var rec domain.Record
	err := db.WithContext(ctx).
		Where("collection = ? AND id = ?", collection, id).
		Limit(1).
		Find(&rec).Error
	if err != nil {
		return nil, err
	}
	if rec.ID == 0 {
		return nil, nil
	}
	return &rec, nil
}

// List returns the whole collection newest first, or one page of it when
// page is set.
func (r *repo) List(ctx context.Context, db *gorm.DB, collection string, page *pagination.Pagination) ([]*domain.Record, error) {
	stmt := db.WithContext(ctx).Model(&domain.Record{}).Where("collection = ?", collection)
	if page != nil {
		var err error
		if stmt, err = pagination.Apply(stmt, *page); err != nil {
			return nil, err
		}
	} else {
		stmt = stmt.Order("created_at desc, id desc")
	}

	var out []*domain.Record
	if err := stmt.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, rec *domain.Record) error {
	return db.WithContext(ctx).
		Model(&domain.Record{}).
		Where("collection = ? AND id = ?", rec.Collection, rec.ID).
		Updates(map[string]any{
			"data":       rec.Data,
			"updated_at": rec.UpdatedAt,
		}).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, collection string, id snowflake.ID) (bool, error) {
	res := db.WithContext(ctx).
		Where("collection = ? AND id = ?", collection, id).
		Delete(&domain.Record{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
