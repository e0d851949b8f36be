package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crm/internal/dispatch"
	"github.com/smallbiznis/crm/internal/task/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository

	Notifier dispatch.Notifier  `optional:"true"`
	Observer *dispatch.Observer `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     domain.Repository
	notifier dispatch.Notifier
	observer *dispatch.Observer
}

func NewService(p Params) domain.Service {
	notifier := p.Notifier
	if notifier == nil {
		notifier = dispatch.NopNotifier{}
	}
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("task.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		notifier: notifier,
		observer: p.Observer,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateTaskRequest) (domain.Task, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return domain.Task{}, domain.ErrInvalidTitle
	}
	status := req.Status
	if status == "" {
		status = domain.StatusPending
	}
	if !status.Valid() {
		return domain.Task{}, domain.ErrInvalidStatus
	}

	now := time.Now().UTC()
	task := domain.Task{
		ID:          s.genID.Generate(),
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		Status:      status,
		AssigneeID:  strings.TrimSpace(req.AssigneeID),
		ContactID:   strings.TrimSpace(req.ContactID),
		DueDate:     req.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Insert(ctx, s.db, &task); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

func (s *Service) List(ctx context.Context, filter domain.ListFilter) ([]domain.Task, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, domain.ErrInvalidStatus
	}
	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}
	tasks := make([]domain.Task, 0, len(items))
	for _, item := range items {
		if item != nil {
			tasks = append(tasks, *item)
		}
	}
	return tasks, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Task, error) {
	taskID, err := parseID(id)
	if err != nil {
		return domain.Task{}, err
	}
	task, err := s.repo.FindByID(ctx, s.db, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	if task == nil {
		return domain.Task{}, domain.ErrNotFound
	}
	return *task, nil
}

func (s *Service) Update(ctx context.Context, id string, req domain.UpdateTaskRequest) (domain.Task, error) {
	before, err := s.GetByID(ctx, id)
	if err != nil {
		return domain.Task{}, err
	}
	after := before

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return domain.Task{}, domain.ErrInvalidTitle
		}
		after.Title = title
	}
	if req.Description != nil {
		after.Description = strings.TrimSpace(*req.Description)
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			return domain.Task{}, domain.ErrInvalidStatus
		}
		after.Status = *req.Status
	}
	if req.AssigneeID != nil {
		after.AssigneeID = strings.TrimSpace(*req.AssigneeID)
	}
	if req.ContactID != nil {
		after.ContactID = strings.TrimSpace(*req.ContactID)
	}
	if req.DueDate != nil {
		after.DueDate = req.DueDate
	}
	after.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, s.db, &after); err != nil {
		return domain.Task{}, err
	}

	if s.observer != nil {
		if ev := s.observer.Task(&before, &after); ev != nil {
			s.notifier.Notify(ctx, *ev)
		}
	}
	return after, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	taskID, err := parseID(id)
	if err != nil {
		return err
	}
	deleted, err := s.repo.Delete(ctx, s.db, taskID)
	if err != nil {
		return err
	}
	if !deleted {
		return domain.ErrNotFound
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
