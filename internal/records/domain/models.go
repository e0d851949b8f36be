// Package domain models the schemaless collections (contacts, opportunities,
// products, documents) served by the generic records service.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crm/pkg/db/pagination"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Record is one JSON document in a named collection.
type Record struct {
	ID         snowflake.ID      `gorm:"primaryKey"`
	Collection string            `gorm:"type:text;not null;index:ix_records_collection_created,priority:1"`
	Data       datatypes.JSONMap `gorm:"not null"`
	CreatedAt  time.Time         `gorm:"not null;index:ix_records_collection_created,priority:2"`
	UpdatedAt  time.Time         `gorm:"not null"`
}

func (Record) TableName() string { return "records" }

// Document flattens the record into the shape clients see: the stored
// fields plus id and timestamps, which cannot be overridden by the data.
func (r Record) Document() map[string]any {
	out := make(map[string]any, len(r.Data)+3)
	for k, v := range r.Data {
		out[k] = v
	}
	out["id"] = r.ID.String()
	out["createdAt"] = r.CreatedAt
	out["updatedAt"] = r.UpdatedAt
	return out
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, r *Record) error
	FindByID(ctx context.Context, db *gorm.DB, collection string, id snowflake.ID) (*Record, error)
	List(ctx context.Context, db *gorm.DB, collection string, page *pagination.Pagination) ([]*Record, error)
	Update(ctx context.Context, db *gorm.DB, r *Record) error
	Delete(ctx context.Context, db *gorm.DB, collection string, id snowflake.ID) (bool, error)
}

type ListRequest struct {
	Collection string
	PageToken  string
	PageSize   int
}

type ListResponse struct {
	Documents []map[string]any
	PageInfo  *pagination.PageInfo
}

type Service interface {
	Create(ctx context.Context, collection string, data map[string]any) (Record, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	GetByID(ctx context.Context, collection, id string) (Record, error)
	Update(ctx context.Context, collection, id string, patch map[string]any) (Record, error)
	Delete(ctx context.Context, collection, id string) error
}

var (
	ErrUnknownCollection = errors.New("unknown_collection")
	ErrInvalidID         = errors.New("invalid_id")
	ErrInvalidDocument   = errors.New("invalid_document")
	ErrInvalidPageToken  = errors.New("invalid_page_token")
	ErrNotFound          = errors.New("not_found")
)
