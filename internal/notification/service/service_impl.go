package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crm/internal/notification/domain"
	"github.com/smallbiznis/crm/internal/providers/email"
	"github.com/smallbiznis/crm/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Repo   domain.Repository
	Mailer email.Provider
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	genID  *snowflake.Node
	repo   domain.Repository
	mailer email.Provider
}

func NewService(p Params) domain.Service {
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("notification.service"),
		genID:  p.GenID,
		repo:   p.Repo,
		mailer: p.Mailer,
	}
}

// SendEmail sends one message and logs the attempt whatever the outcome.
// A failed send is reported as ErrDeliveryFailed after it is logged.
func (s *Service) SendEmail(ctx context.Context, req domain.SendEmailRequest) (domain.Delivery, error) {
	to := strings.TrimSpace(req.To)
	if _, err := mail.ParseAddress(to); err != nil {
		return domain.Delivery{}, domain.ErrInvalidRecipient
	}
	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		return domain.Delivery{}, domain.ErrInvalidSubject
	}

	delivery := domain.Delivery{
		ID:        s.genID.Generate(),
		Recipient: to,
		Subject:   subject,
		Status:    domain.StatusSent,
		CreatedAt: time.Now().UTC(),
	}
	sendErr := s.mailer.Send(ctx, []string{to}, subject, req.Message)
	if sendErr != nil {
		delivery.Status = domain.StatusFailed
		delivery.Error = sendErr.Error()
		s.log.Warn("email delivery failed", zap.String("subject", subject), zap.Error(sendErr))
	}

	if err := s.repo.Insert(ctx, s.db, &delivery); err != nil {
		return domain.Delivery{}, errors.Join(err, sendErr)
	}
	if sendErr != nil {
		return delivery, fmt.Errorf("%w: %v", domain.ErrDeliveryFailed, sendErr)
	}
	return delivery, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	page := pagination.Pagination{PageToken: strings.TrimSpace(req.PageToken), PageSize: req.PageSize}
	rows, err := s.repo.List(ctx, s.db, strings.TrimSpace(req.Recipient), page)
	if err != nil {
		if errors.Is(err, pagination.ErrInvalidCursor) {
			return domain.ListResponse{}, domain.ErrInvalidPageToken
		}
		return domain.ListResponse{}, err
	}

	rows, info := pagination.Trim(rows, page.Size(), func(d *domain.Delivery) pagination.Cursor {
		return pagination.Cursor{ID: int64(d.ID), CreatedAt: d.CreatedAt}
	})
	out := make([]domain.Delivery, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row)
	}
	return domain.ListResponse{Deliveries: out, PageInfo: info}, nil
}
