package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crm/internal/dispatch"
	"github.com/smallbiznis/crm/internal/ticket/domain"
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
		log:      p.Log.Named("ticket.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		notifier: notifier,
		observer: p.Observer,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateTicketRequest) (domain.Ticket, error) {
	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		return domain.Ticket{}, domain.ErrInvalidSubject
	}
	status := req.Status
	if status == "" {
		status = domain.StatusOpen
	}
	if !status.Valid() {
		return domain.Ticket{}, domain.ErrInvalidStatus
	}
	priority := req.Priority
	if priority == "" {
		priority = domain.PriorityMedium
	}
	if !priority.Valid() {
		return domain.Ticket{}, domain.ErrInvalidPriority
	}

	now := time.Now().UTC()
	ticket := domain.Ticket{
		ID:          s.genID.Generate(),
		Subject:     subject,
		Description: strings.TrimSpace(req.Description),
		Status:      status,
		Priority:    priority,
		ContactID:   strings.TrimSpace(req.ContactID),
		GuestName:   strings.TrimSpace(req.GuestName),
		GuestEmail:  strings.TrimSpace(req.GuestEmail),
		AssigneeID:  strings.TrimSpace(req.AssigneeID),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if status == domain.StatusResolved {
		ticket.ResolvedAt = &now
	}

	if err := s.repo.Insert(ctx, s.db, &ticket); err != nil {
		return domain.Ticket{}, err
	}
	return ticket, nil
}

func (s *Service) List(ctx context.Context, filter domain.ListFilter) ([]domain.Ticket, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, domain.ErrInvalidStatus
	}
	if filter.Priority != "" && !filter.Priority.Valid() {
		return nil, domain.ErrInvalidPriority
	}
	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}
	tickets := make([]domain.Ticket, 0, len(items))
	for _, item := range items {
		if item != nil {
			tickets = append(tickets, *item)
		}
	}
	return tickets, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Ticket, error) {
	ticketID, err := parseID(id)
	if err != nil {
		return domain.Ticket{}, err
	}
	ticket, err := s.repo.FindByID(ctx, s.db, ticketID)
	if err != nil {
		return domain.Ticket{}, err
	}
	if ticket == nil {
		return domain.Ticket{}, domain.ErrNotFound
	}
	return *ticket, nil
}

// Update applies the change and then hands the before and after states to
// the observer. The write is never affected by what the observer does.
func (s *Service) Update(ctx context.Context, id string, req domain.UpdateTicketRequest) (domain.Ticket, error) {
	before, err := s.GetByID(ctx, id)
	if err != nil {
		return domain.Ticket{}, err
	}
	after := before

	if req.Subject != nil {
		subject := strings.TrimSpace(*req.Subject)
		if subject == "" {
			return domain.Ticket{}, domain.ErrInvalidSubject
		}
		after.Subject = subject
	}
	if req.Description != nil {
		after.Description = strings.TrimSpace(*req.Description)
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			return domain.Ticket{}, domain.ErrInvalidStatus
		}
		after.Status = *req.Status
	}
	if req.Priority != nil {
		if !req.Priority.Valid() {
			return domain.Ticket{}, domain.ErrInvalidPriority
		}
		after.Priority = *req.Priority
	}
	if req.ContactID != nil {
		after.ContactID = strings.TrimSpace(*req.ContactID)
	}
	if req.GuestName != nil {
		after.GuestName = strings.TrimSpace(*req.GuestName)
	}
	if req.GuestEmail != nil {
		after.GuestEmail = strings.TrimSpace(*req.GuestEmail)
	}
	if req.AssigneeID != nil {
		after.AssigneeID = strings.TrimSpace(*req.AssigneeID)
	}

	now := time.Now().UTC()
	switch {
	case after.Status == domain.StatusResolved && before.Status != domain.StatusResolved:
		after.ResolvedAt = &now
	case after.Status == domain.StatusOpen || after.Status == domain.StatusInProgress:
		after.ResolvedAt = nil
	}
	after.UpdatedAt = now

	if err := s.repo.Update(ctx, s.db, &after); err != nil {
		return domain.Ticket{}, err
	}

	if s.observer != nil {
		if ev := s.observer.Ticket(&before, &after); ev != nil {
			s.notifier.Notify(ctx, *ev)
		}
	}
	return after, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	ticketID, err := parseID(id)
	if err != nil {
		return err
	}
	deleted, err := s.repo.Delete(ctx, s.db, ticketID)
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
