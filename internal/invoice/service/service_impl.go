package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crm/internal/config"
	"github.com/smallbiznis/crm/internal/dispatch"
	"github.com/smallbiznis/crm/internal/invoice/domain"
	"github.com/smallbiznis/crm/internal/observability/logger"
	paymentdomain "github.com/smallbiznis/crm/internal/payment/domain"
	"github.com/smallbiznis/crm/internal/providers/pdf"
	"github.com/smallbiznis/crm/internal/reconcile"
	"github.com/smallbiznis/crm/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Cfg      config.Config
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     domain.Repository
	Payments paymentdomain.Repository
	Engine   *reconcile.Engine
	PDF      pdf.Provider

	Notifier dispatch.Notifier  `optional:"true"`
	Observer *dispatch.Observer `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     domain.Repository
	payments paymentdomain.Repository
	engine   *reconcile.Engine
	pdf      pdf.Provider
	notifier dispatch.Notifier
	observer *dispatch.Observer
	issuer   string
	cascade  bool
}

func NewService(p Params) domain.Service {
	notifier := p.Notifier
	if notifier == nil {
		notifier = dispatch.NopNotifier{}
	}
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("invoice.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		payments: p.Payments,
		engine:   p.Engine,
		pdf:      p.PDF,
		notifier: notifier,
		observer: p.Observer,
		issuer:   p.Cfg.AppName,
		cascade:  p.Cfg.Reconcile.CascadeOnInvoiceDelete,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateInvoiceRequest) (domain.Invoice, error) {
	name := strings.TrimSpace(req.CustomerName)
	if name == "" {
		return domain.Invoice{}, domain.ErrInvalidCustomerName
	}
	if err := validateItems(req.Items); err != nil {
		return domain.Invoice{}, err
	}
	status := req.Status
	if status == "" {
		status = domain.StatusDraft
	}
	if !status.Valid() {
		return domain.Invoice{}, domain.ErrInvalidStatus
	}

	items, total := domain.SumItems(req.Items)
	now := time.Now().UTC()
	invoice := domain.Invoice{
		ID:            s.genID.Generate(),
		ContactID:     strings.TrimSpace(req.ContactID),
		CustomerName:  name,
		CustomerEmail: strings.TrimSpace(req.CustomerEmail),
		Items:         datatypes.NewJSONSlice(items),
		TotalAmount:   total,
		Status:        status,
		DueDate:       req.DueDate,
		Notes:         strings.TrimSpace(req.Notes),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if status == domain.StatusPaid {
		invoice.PaidAt = &now
	}

	if err := s.insertNumbered(ctx, &invoice); err != nil {
		return domain.Invoice{}, err
	}

	if s.observer != nil {
		s.emit(ctx, s.observer.InvoiceCreated(&invoice))
	}
	return invoice, nil
}

// insertNumbered assigns the next number of the day. Two writers racing for
// the same number hit the unique index and the loser retries.
func (s *Service) insertNumbered(ctx context.Context, invoice *domain.Invoice) error {
	day := startOfDay(invoice.CreatedAt)
	var lastErr error
	for attempt := 0; attempt < numberAttempts; attempt++ {
		count, err := s.repo.CountCreatedSince(ctx, s.db, day)
		if err != nil {
			return err
		}
		invoice.Number = invoiceNumber(day, count+int64(attempt)+1)

		err = s.repo.Insert(ctx, s.db, invoice)
		if err == nil {
			return nil
		}
		if !db.IsDuplicateKeyErr(err) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

func (s *Service) List(ctx context.Context, req domain.ListInvoiceRequest) ([]domain.Invoice, error) {
	filter := domain.ListFilter{
		Status:    domain.Status(strings.TrimSpace(req.Status)),
		ContactID: strings.TrimSpace(req.ContactID),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, domain.ErrInvalidStatus
	}

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}
	invoices := make([]domain.Invoice, 0, len(items))
	for _, item := range items {
		if item != nil {
			invoices = append(invoices, *item)
		}
	}
	return invoices, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Invoice, error) {
	invoiceID, err := parseID(id)
	if err != nil {
		return domain.Invoice{}, err
	}
	invoice, err := s.repo.FindByID(ctx, s.db, invoiceID)
	if err != nil {
		return domain.Invoice{}, err
	}
	if invoice == nil {
		return domain.Invoice{}, domain.ErrNotFound
	}
	return *invoice, nil
}

func (s *Service) Update(ctx context.Context, id string, req domain.UpdateInvoiceRequest) (domain.Invoice, error) {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return domain.Invoice{}, err
	}
	before := current.Status
	next := current

	if req.CustomerName != nil {
		name := strings.TrimSpace(*req.CustomerName)
		if name == "" {
			return domain.Invoice{}, domain.ErrInvalidCustomerName
		}
		next.CustomerName = name
	}
	if req.CustomerEmail != nil {
		next.CustomerEmail = strings.TrimSpace(*req.CustomerEmail)
	}
	if req.ContactID != nil {
		next.ContactID = strings.TrimSpace(*req.ContactID)
	}
	if req.Notes != nil {
		next.Notes = strings.TrimSpace(*req.Notes)
	}
	if req.DueDate != nil {
		next.DueDate = req.DueDate
	}
	totalChanged := false
	if req.Items != nil {
		if err := validateItems(req.Items); err != nil {
			return domain.Invoice{}, err
		}
		items, total := domain.SumItems(req.Items)
		next.Items = datatypes.NewJSONSlice(items)
		totalChanged = total != current.TotalAmount
		next.TotalAmount = total
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			return domain.Invoice{}, domain.ErrInvalidStatus
		}
		next.Status = *req.Status
	}

	now := time.Now().UTC()
	next.UpdatedAt = now
	if err := s.repo.Update(ctx, s.db, &next); err != nil {
		return domain.Invoice{}, err
	}

	// status and paid_at belong to reconciliation unless the caller sets them
	if req.Status != nil {
		switch {
		case next.Status == domain.StatusPaid && before != domain.StatusPaid:
			next.PaidAt = &now
		case next.Status != domain.StatusPaid:
			next.PaidAt = nil
		}
		if err := s.repo.UpdateStatus(ctx, s.db, next.ID, next.Status, next.PaidAt); err != nil {
			return domain.Invoice{}, err
		}
		if s.observer != nil {
			s.emit(ctx, s.observer.InvoicePaid(before, &next))
		}
	}

	if totalChanged {
		// a new total can move the ledger across the paid threshold either way
		if _, err := s.engine.Reconcile(ctx, next.ID); err != nil {
			logger.FromContext(ctx).Warn("reconcile after total change failed",
				zap.String("invoice_id", next.ID.String()),
				zap.Error(err),
			)
		}
	}
	return s.GetByID(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	invoiceID, err := parseID(id)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		deleted, err := s.repo.Delete(ctx, tx, invoiceID)
		if err != nil {
			return err
		}
		if !deleted {
			return domain.ErrNotFound
		}
		if !s.cascade {
			return nil
		}
		removed, err := s.payments.DeleteByInvoice(ctx, tx, invoiceID)
		if err != nil {
			return err
		}
		s.log.Info("removed ledger entries with invoice",
			zap.String("invoice_id", invoiceID.String()),
			zap.Int64("entries", removed),
		)
		return nil
	})
}

// Reconcile re-derives the invoice status from its ledger on demand.
func (s *Service) Reconcile(ctx context.Context, id string) (domain.Invoice, error) {
	invoiceID, err := parseID(id)
	if err != nil {
		return domain.Invoice{}, err
	}
	if _, err := s.engine.Reconcile(ctx, invoiceID); err != nil {
		return domain.Invoice{}, err
	}
	return s.GetByID(ctx, id)
}

func (s *Service) RenderPDF(ctx context.Context, id string) ([]byte, domain.Invoice, error) {
	invoice, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, domain.Invoice{}, err
	}
	entries, err := s.payments.ListByInvoice(ctx, s.db, invoice.ID)
	if err != nil {
		return nil, domain.Invoice{}, err
	}

	doc := pdf.InvoiceDocument{
		Issuer:        s.issuer,
		Number:        invoice.Number,
		Status:        string(invoice.Status),
		IssueDate:     invoice.CreatedAt.Format("2006-01-02"),
		CustomerName:  invoice.CustomerName,
		CustomerEmail: invoice.CustomerEmail,
		Total:         invoice.TotalAmount,
		Collected:     paymentdomain.Sum(entries),
		Notes:         invoice.Notes,
	}
	if invoice.DueDate != nil {
		doc.DueDate = invoice.DueDate.Format("2006-01-02")
	}
	for _, item := range invoice.Items {
		doc.Lines = append(doc.Lines, pdf.Line{
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Amount:      item.Amount,
		})
	}

	out, err := s.pdf.Invoice(doc)
	if err != nil {
		return nil, domain.Invoice{}, err
	}
	return out, invoice, nil
}

func (s *Service) emit(ctx context.Context, ev *dispatch.Event) {
	if ev == nil {
		return
	}
	s.notifier.Notify(ctx, *ev)
}

func validateItems(items []domain.LineItem) error {
	if len(items) == 0 {
		return domain.ErrInvalidItems
	}
	for _, item := range items {
		if strings.TrimSpace(item.Description) == "" || item.Quantity < 0 || item.UnitPrice < 0 || item.Amount < 0 {
			return domain.ErrInvalidItems
		}
	}
	return nil
}

func parseID(value string) (snowflake.ID, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, domain.ErrInvalidID
	}
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.ErrInvalidID
	}
	return snowflake.ID(id), nil
}
