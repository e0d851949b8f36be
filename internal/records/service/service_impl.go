package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/crm/internal/records/domain"
	"github.com/smallbiznis/crm/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// reserved keys are derived from the record itself and dropped from input.
var reserved = []string{"id", "_id", "createdAt", "updatedAt"}

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("records.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, name string, data map[string]any) (domain.Record, error) {
	coll, def, err := resolve(name)
	if err != nil {
		return domain.Record{}, err
	}
	doc := clean(data)
	for k, v := range def.defaults {
		if _, ok := doc[k]; !ok {
			doc[k] = v
		}
	}
	if err := validate(def, doc); err != nil {
		return domain.Record{}, err
	}

	now := time.Now().UTC()
	rec := domain.Record{
		ID:         s.genID.Generate(),
		Collection: coll,
		Data:       datatypes.JSONMap(doc),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Insert(ctx, s.db, &rec); err != nil {
		return domain.Record{}, err
	}
	return rec, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	coll, _, err := resolve(req.Collection)
	if err != nil {
		return domain.ListResponse{}, err
	}

	var page *pagination.Pagination
	if req.PageSize > 0 || strings.TrimSpace(req.PageToken) != "" {
		page = &pagination.Pagination{PageToken: strings.TrimSpace(req.PageToken), PageSize: req.PageSize}
	}
	rows, err := s.repo.List(ctx, s.db, coll, page)
	if err != nil {
		if errors.Is(err, pagination.ErrInvalidCursor) {
			return domain.ListResponse{}, domain.ErrInvalidPageToken
		}
		return domain.ListResponse{}, err
	}

	resp := domain.ListResponse{}
	if page != nil {
		var info pagination.PageInfo
		rows, info = pagination.Trim(rows, page.Size(), func(r *domain.Record) pagination.Cursor {
			return pagination.Cursor{ID: int64(r.ID), CreatedAt: r.CreatedAt}
		})
		resp.PageInfo = &info
	}
	resp.Documents = make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		resp.Documents = append(resp.Documents, row.Document())
	}
	return resp, nil
}

func (s *Service) GetByID(ctx context.Context, name, id string) (domain.Record, error) {
	coll, _, err := resolve(name)
	if err != nil {
		return domain.Record{}, err
	}
	recID, err := parseID(id)
	if err != nil {
		return domain.Record{}, err
	}
	rec, err := s.repo.FindByID(ctx, s.db, coll, recID)
	if err != nil {
		return domain.Record{}, err
	}
	if rec == nil {
		return domain.Record{}, domain.ErrNotFound
	}
	return *rec, nil
}

// Update merges patch into the stored document. A null value removes the key.
func (s *Service) Update(ctx context.Context, name, id string, patch map[string]any) (domain.Record, error) {
	_, def, err := resolve(name)
	if err != nil {
		return domain.Record{}, err
	}
	rec, err := s.GetByID(ctx, name, id)
	if err != nil {
		return domain.Record{}, err
	}

	doc := clean(rec.Data)
	for k, v := range clean(patch) {
		if v == nil {
			delete(doc, k)
			continue
		}
		doc[k] = v
	}
	if err := validate(def, doc); err != nil {
		return domain.Record{}, err
	}

	rec.Data = datatypes.JSONMap(doc)
	rec.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, s.db, &rec); err != nil {
		return domain.Record{}, err
	}
	return rec, nil
}

func (s *Service) Delete(ctx context.Context, name, id string) error {
	coll, _, err := resolve(name)
	if err != nil {
		return err
	}
	recID, err := parseID(id)
	if err != nil {
		return err
	}
	deleted, err := s.repo.Delete(ctx, s.db, coll, recID)
	if err != nil {
		return err
	}
	if !deleted {
		return domain.ErrNotFound
	}
	return nil
}

func resolve(name string) (string, collection, error) {
	key := slug.Make(name)
	def, ok := collections[key]
	if !ok {
		return "", collection{}, domain.ErrUnknownCollection
	}
	return key, def, nil
}

func clean(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		out[k] = v
	}
	for _, k := range reserved {
		delete(out, k)
	}
	return out
}

func validate(def collection, doc map[string]any) error {
	for _, field := range def.required {
		v, ok := doc[field].(string)
		if !ok || strings.TrimSpace(v) == "" {
			return domain.ErrInvalidDocument
		}
	}
	return nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.ErrInvalidID
	}
	return snowflake.ID(id), nil
}
