package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListFilter struct {
	Status    Status
	ContactID string
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Invoice, error)
	Update(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status Status, paidAt *time.Time) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error)
	CountCreatedSince(ctx context.Context, db *gorm.DB, since time.Time) (int64, error)
}
