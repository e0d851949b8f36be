package service

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crm/internal/config"
	"github.com/smallbiznis/crm/internal/dispatch"
	"github.com/smallbiznis/crm/internal/invoice/domain"
	"github.com/smallbiznis/crm/internal/invoice/repository"
	paymentdomain "github.com/smallbiznis/crm/internal/payment/domain"
	paymentrepo "github.com/smallbiznis/crm/internal/payment/repository"
	"github.com/smallbiznis/crm/internal/providers/pdf"
	"github.com/smallbiznis/crm/internal/reconcile"
	"github.com/smallbiznis/crm/pkg/db"
	"github.com/smallbiznis/crm/pkg/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type captured struct {
	mu     sync.Mutex
	events []dispatch.Event
}

func (c *captured) Notify(_ context.Context, ev dispatch.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

type harness struct {
	svc      domain.Service
	db       *gorm.DB
	engine   *reconcile.Engine
	events   *captured
	payments paymentdomain.Repository
}

func newHarness(t *testing.T, cascade bool) *harness {
	t.Helper()
	return newHarnessWith(t, cascade, nil)
}

// newHarnessWith lets a test wrap the repository the service sees. The
// reconcile engine always gets the plain one.
func newHarnessWith(t *testing.T, cascade bool, wrap func(domain.Repository) domain.Repository) *harness {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, conn.AutoMigrate(&domain.Invoice{}, &paymentdomain.Payment{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	repo := repository.Provide()
	payments := paymentrepo.Provide()
	events := &captured{}
	observer := dispatch.NewObserver("admin@example.com", zap.NewNop())
	engine := reconcile.NewEngine(conn, node, repo, payments, reconcile.Options{}, zap.NewNop()).
		WithNotifier(events, observer)

	var serviceRepo domain.Repository = repo
	if wrap != nil {
		serviceRepo = wrap(repo)
	}

	cfg := config.Config{AppName: "crm"}
	cfg.Reconcile.CascadeOnInvoiceDelete = cascade

	svc := NewService(Params{
		DB:       conn,
		Cfg:      cfg,
		Log:      zap.NewNop(),
		GenID:    node,
		Repo:     serviceRepo,
		Payments: payments,
		Engine:   engine,
		PDF:      pdf.New(),
		Notifier: events,
		Observer: observer,
	})
	return &harness{svc: svc, db: conn, engine: engine, events: events, payments: payments}
}

func items(amounts ...float64) []domain.LineItem {
	out := make([]domain.LineItem, 0, len(amounts))
	for i, amount := range amounts {
		out = append(out, domain.LineItem{
			Description: "line " + string(rune('A'+i)),
			Quantity:    1,
			UnitPrice:   money.FromMajor(amount),
		})
	}
	return out
}

func TestCreateNumbersAndTotals(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	first, err := h.svc.Create(ctx, domain.CreateInvoiceRequest{
		CustomerName:  "Acme",
		CustomerEmail: "billing@acme.test",
		Items:         items(1500, 250),
	})
	require.NoError(t, err)
	assert.Equal(t, money.FromMajor(1750), first.TotalAmount)
	assert.Equal(t, domain.StatusDraft, first.Status)
	day := time.Now().UTC().Format("20060102")
	assert.Equal(t, "INV-"+day+"-000001", first.Number)

	second, err := h.svc.Create(ctx, domain.CreateInvoiceRequest{CustomerName: "Globex", Items: items(10)})
	require.NoError(t, err)
	assert.Equal(t, "INV-"+day+"-000002", second.Number)

	// only the first customer has an address
	require.Len(t, h.events.events, 1)
	assert.Equal(t, dispatch.KindInvoiceCreated, h.events.events[0].Kind)
	assert.Equal(t, "billing@acme.test", h.events.events[0].To)
}

func TestCreateValidates(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	_, err := h.svc.Create(ctx, domain.CreateInvoiceRequest{Items: items(10)})
	assert.ErrorIs(t, err, domain.ErrInvalidCustomerName)

	_, err = h.svc.Create(ctx, domain.CreateInvoiceRequest{CustomerName: "Acme"})
	assert.ErrorIs(t, err, domain.ErrInvalidItems)

	_, err = h.svc.Create(ctx, domain.CreateInvoiceRequest{CustomerName: "Acme", Items: items(10), Status: "Void"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	_, err = h.svc.GetByID(ctx, "abc")
	assert.ErrorIs(t, err, domain.ErrInvalidID)
	_, err = h.svc.GetByID(ctx, "42")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLoweringTotalSettlesInvoice(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	inv, err := h.svc.Create(ctx, domain.CreateInvoiceRequest{CustomerName: "Acme", Items: items(1000), Status: domain.StatusSent})
	require.NoError(t, err)

	status, _, err := h.engine.OnPaymentCreated(ctx, inv.ID, paymentdomain.Payment{Amount: money.FromMajor(600), Method: paymentdomain.MethodCash})
	require.NoError(t, err)
	require.Equal(t, domain.StatusPartial, status)

	updated, err := h.svc.Update(ctx, inv.ID.String(), domain.UpdateInvoiceRequest{Items: items(600)})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, updated.Status)
	assert.Equal(t, money.FromMajor(600), updated.TotalAmount)

	var kinds []dispatch.Kind
	for _, ev := range h.events.events {
		kinds = append(kinds, ev.Kind)
	}
	assert.Equal(t, []dispatch.Kind{dispatch.KindInvoicePaid}, kinds)
}

// settleOnRead records a payment right after the service has read the
// invoice, so reconciliation lands between the read and the write of Update.
type settleOnRead struct {
	domain.Repository
	once  sync.Once
	fire  bool
	apply func()
}

func (r *settleOnRead) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	inv, err := r.Repository.FindByID(ctx, db, id)
	if r.fire {
		r.once.Do(r.apply)
	}
	return inv, err
}

func TestBodyEditKeepsStatusSetByReconciliation(t *testing.T) {
	wrapped := &settleOnRead{}
	h := newHarnessWith(t, false, func(repo domain.Repository) domain.Repository {
		wrapped.Repository = repo
		return wrapped
	})
	ctx := context.Background()

	inv, err := h.svc.Create(ctx, domain.CreateInvoiceRequest{CustomerName: "Acme", Items: items(50), Status: domain.StatusSent})
	require.NoError(t, err)
	status, _, err := h.engine.OnPaymentCreated(ctx, inv.ID, paymentdomain.Payment{Amount: money.FromMajor(20), Method: paymentdomain.MethodCash})
	require.NoError(t, err)
	require.Equal(t, domain.StatusPartial, status)

	wrapped.apply = func() {
		status, _, err := h.engine.OnPaymentCreated(ctx, inv.ID, paymentdomain.Payment{Amount: money.FromMajor(30), Method: paymentdomain.MethodCash})
		require.NoError(t, err)
		require.Equal(t, domain.StatusPaid, status)
	}
	wrapped.fire = true

	notes := "sent reminder"
	updated, err := h.svc.Update(ctx, inv.ID.String(), domain.UpdateInvoiceRequest{Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, updated.Status)
	assert.NotNil(t, updated.PaidAt)
	assert.Equal(t, "sent reminder", updated.Notes)

	stored, err := h.svc.GetByID(ctx, inv.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, stored.Status)
	assert.Equal(t, "sent reminder", stored.Notes)
}

func TestInvoiceNumberFormat(t *testing.T) {
	day := time.Date(2026, time.January, 31, 15, 4, 5, 0, time.UTC)
	assert.Equal(t, "INV-20260131-000042", invoiceNumber(startOfDay(day), 42))
	assert.Equal(t, "INV-20260131-1000000", invoiceNumber(day, 1000000))
}

func TestManualPaidNotifiesOnce(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	inv, err := h.svc.Create(ctx, domain.CreateInvoiceRequest{CustomerName: "Acme", Items: items(100)})
	require.NoError(t, err)

	paid := domain.StatusPaid
	updated, err := h.svc.Update(ctx, inv.ID.String(), domain.UpdateInvoiceRequest{Status: &paid})
	require.NoError(t, err)
	assert.NotNil(t, updated.PaidAt)

	_, err = h.svc.Update(ctx, inv.ID.String(), domain.UpdateInvoiceRequest{Status: &paid})
	require.NoError(t, err)

	require.Len(t, h.events.events, 1)
	assert.Equal(t, "admin@example.com", h.events.events[0].To)
}

func TestDeleteCascadesWhenConfigured(t *testing.T) {
	for _, cascade := range []bool{false, true} {
		h := newHarness(t, cascade)
		ctx := context.Background()

		inv, err := h.svc.Create(ctx, domain.CreateInvoiceRequest{CustomerName: "Acme", Items: items(100)})
		require.NoError(t, err)
		_, _, err = h.engine.OnPaymentCreated(ctx, inv.ID, paymentdomain.Payment{Amount: money.FromMajor(50), Method: paymentdomain.MethodCard})
		require.NoError(t, err)

		require.NoError(t, h.svc.Delete(ctx, inv.ID.String()))
		assert.ErrorIs(t, h.svc.Delete(ctx, inv.ID.String()), domain.ErrNotFound)

		left, err := h.payments.ListByInvoice(ctx, h.db, inv.ID)
		require.NoError(t, err)
		if cascade {
			assert.Empty(t, left)
		} else {
			assert.Len(t, left, 1)
		}
	}
}

func TestRenderPDF(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	inv, err := h.svc.Create(ctx, domain.CreateInvoiceRequest{CustomerName: "Acme", Items: items(100, 20)})
	require.NoError(t, err)

	out, got, err := h.svc.RenderPDF(ctx, inv.ID.String())
	require.NoError(t, err)
	assert.Equal(t, inv.Number, got.Number)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
	assert.True(t, strings.HasPrefix(got.Number, "INV-"))
}
