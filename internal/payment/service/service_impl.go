package service

import (
	"context"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crm/internal/config"
	invoicedomain "github.com/smallbiznis/crm/internal/invoice/domain"
	"github.com/smallbiznis/crm/internal/payment/domain"
	"github.com/smallbiznis/crm/internal/providers/pdf"
	"github.com/smallbiznis/crm/internal/reconcile"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Cfg      config.Config
	Log      *zap.Logger
	Repo     domain.Repository
	Invoices invoicedomain.Repository
	Engine   *reconcile.Engine
	PDF      pdf.Provider
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	repo     domain.Repository
	invoices invoicedomain.Repository
	engine   *reconcile.Engine
	pdf      pdf.Provider
	issuer   string
}

func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("payment.service"),
		repo:     p.Repo,
		invoices: p.Invoices,
		engine:   p.Engine,
		pdf:      p.PDF,
		issuer:   p.Cfg.AppName,
	}
}

// Create records a ledger entry through the reconciliation engine and
// reports the invoice status that resulted from it.
func (s *Service) Create(ctx context.Context, req domain.CreatePaymentRequest) (domain.CreatePaymentResponse, error) {
	invoiceID, err := parseID(req.InvoiceID, domain.ErrInvalidInvoiceID)
	if err != nil {
		return domain.CreatePaymentResponse{}, err
	}
	if req.Amount <= 0 {
		return domain.CreatePaymentResponse{}, domain.ErrInvalidAmount
	}
	method, err := normalizeMethod(req.Method)
	if err != nil {
		return domain.CreatePaymentResponse{}, err
	}

	entry := domain.Payment{
		Amount:    req.Amount,
		Method:    method,
		Reference: strings.TrimSpace(req.Reference),
		Notes:     strings.TrimSpace(req.Notes),
	}
	if req.Date != nil {
		entry.Date = req.Date.UTC()
	}

	status, recorded, err := s.engine.OnPaymentCreated(ctx, invoiceID, entry)
	if err != nil {
		return domain.CreatePaymentResponse{}, err
	}
	return domain.CreatePaymentResponse{
		Payment:       recorded,
		InvoiceStatus: string(status),
	}, nil
}

func (s *Service) List(ctx context.Context, invoiceID string) ([]domain.Payment, error) {
	filter := domain.ListFilter{}
	if strings.TrimSpace(invoiceID) != "" {
		id, err := parseID(invoiceID, domain.ErrInvalidInvoiceID)
		if err != nil {
			return nil, err
		}
		filter.InvoiceID = id
	}

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}
	payments := make([]domain.Payment, 0, len(items))
	for _, item := range items {
		if item != nil {
			payments = append(payments, *item)
		}
	}
	return payments, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Payment, error) {
	paymentID, err := parseID(id, domain.ErrInvalidID)
	if err != nil {
		return domain.Payment{}, err
	}
	payment, err := s.repo.FindByID(ctx, s.db, paymentID)
	if err != nil {
		return domain.Payment{}, err
	}
	if payment == nil {
		return domain.Payment{}, domain.ErrNotFound
	}
	return *payment, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	paymentID, err := parseID(id, domain.ErrInvalidID)
	if err != nil {
		return err
	}
	return s.engine.OnPaymentDeleted(ctx, paymentID)
}

func (s *Service) RenderReceipt(ctx context.Context, id string) ([]byte, error) {
	payment, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	invoice, err := s.invoices.FindByID(ctx, s.db, payment.InvoiceID)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, invoicedomain.ErrNotFound
	}
	entries, err := s.repo.ListByInvoice(ctx, s.db, invoice.ID)
	if err != nil {
		return nil, err
	}

	return s.pdf.Receipt(pdf.ReceiptDocument{
		Issuer:        s.issuer,
		ReceiptNumber: payment.ID.String(),
		InvoiceNumber: invoice.Number,
		CustomerName:  invoice.CustomerName,
		Method:        payment.Method,
		Reference:     payment.Reference,
		DatePaid:      payment.Date.Format("2006-01-02"),
		Amount:        payment.Amount,
		InvoiceTotal:  invoice.TotalAmount,
		Collected:     domain.Sum(entries),
	})
}

// normalizeMethod accepts the known methods case-insensitively and defaults
// to Bank Transfer when none is given.
func normalizeMethod(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.MethodBankTransfer, nil
	}
	for _, method := range []string{
		domain.MethodCash,
		domain.MethodBankTransfer,
		domain.MethodCard,
		domain.MethodCheque,
		domain.MethodOther,
	} {
		if strings.EqualFold(raw, method) {
			return method, nil
		}
	}
	return "", domain.ErrInvalidMethod
}

func parseID(value string, invalid error) (snowflake.ID, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, invalid
	}
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id <= 0 {
		return 0, invalid
	}
	return snowflake.ID(id), nil
}
