package reconcile

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crm/internal/dispatch"
	invoicedomain "github.com/smallbiznis/crm/internal/invoice/domain"
	invoicerepo "github.com/smallbiznis/crm/internal/invoice/repository"
	paymentdomain "github.com/smallbiznis/crm/internal/payment/domain"
	paymentrepo "github.com/smallbiznis/crm/internal/payment/repository"
	"github.com/smallbiznis/crm/pkg/db"
	"github.com/smallbiznis/crm/pkg/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []dispatch.Event
}

func (r *recordingNotifier) Notify(_ context.Context, ev dispatch.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingNotifier) kinds() []dispatch.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]dispatch.Kind, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

type fixture struct {
	db       *gorm.DB
	node     *snowflake.Node
	engine   *Engine
	notifier *recordingNotifier
	invoices invoicedomain.Repository
	payments paymentdomain.Repository
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, conn.AutoMigrate(&invoicedomain.Invoice{}, &paymentdomain.Payment{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	f := &fixture{
		db:       conn,
		node:     node,
		notifier: &recordingNotifier{},
		invoices: invoicerepo.Provide(),
		payments: paymentrepo.Provide(),
	}
	f.engine = NewEngine(conn, node, f.invoices, f.payments, opts, zap.NewNop()).
		WithNotifier(f.notifier, dispatch.NewObserver("admin@example.com", zap.NewNop()))
	return f
}

func (f *fixture) invoice(t *testing.T, total float64, status invoicedomain.Status) snowflake.ID {
	t.Helper()
	now := time.Now().UTC()
	inv := &invoicedomain.Invoice{
		ID:           f.node.Generate(),
		Number:       "INV-" + f.node.Generate().String(),
		CustomerName: "Acme",
		TotalAmount:  money.FromMajor(total),
		Status:       status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, f.invoices.Insert(context.Background(), f.db, inv))
	return inv.ID
}

func (f *fixture) status(t *testing.T, id snowflake.ID) invoicedomain.Status {
	t.Helper()
	inv, err := f.invoices.FindByID(context.Background(), f.db, id)
	require.NoError(t, err)
	require.NotNil(t, inv)
	return inv.Status
}

func payment(amount float64) paymentdomain.Payment {
	return paymentdomain.Payment{Amount: money.FromMajor(amount), Method: paymentdomain.MethodBankTransfer}
}

func TestPaymentsDriveStatusFromFullLedger(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	id := f.invoice(t, 4000, invoicedomain.StatusSent)

	status, entry, err := f.engine.OnPaymentCreated(ctx, id, payment(1000))
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.StatusPartial, status)
	assert.Equal(t, id, entry.InvoiceID)
	assert.NotZero(t, entry.ID)

	status, _, err = f.engine.OnPaymentCreated(ctx, id, payment(3000))
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.StatusPaid, status)

	// overpayment never moves a paid invoice back
	status, _, err = f.engine.OnPaymentCreated(ctx, id, payment(500))
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.StatusPaid, status)
	assert.Equal(t, invoicedomain.StatusPaid, f.status(t, id))

	inv, err := f.invoices.FindByID(ctx, f.db, id)
	require.NoError(t, err)
	assert.NotNil(t, inv.PaidAt)

	assert.Equal(t, []dispatch.Kind{dispatch.KindInvoicePaid}, f.notifier.kinds())
}

func TestFractionalPaymentsSettleExactly(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	id := f.invoice(t, 1.00, invoicedomain.StatusSent)

	status, _, err := f.engine.OnPaymentCreated(ctx, id, payment(0.70))
	require.NoError(t, err)
	require.Equal(t, invoicedomain.StatusPartial, status)
	for i := 0; i < 2; i++ {
		status, _, err = f.engine.OnPaymentCreated(ctx, id, payment(0.10))
		require.NoError(t, err)
		require.Equal(t, invoicedomain.StatusPartial, status)
	}

	status, _, err = f.engine.OnPaymentCreated(ctx, id, payment(0.10))
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.StatusPaid, status)

	entries, err := f.payments.ListByInvoice(ctx, f.db, id)
	require.NoError(t, err)
	assert.Equal(t, money.Amount(100), paymentdomain.Sum(entries))
}

func TestOrderOfEntriesDoesNotMatter(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	id := f.invoice(t, 4000, invoicedomain.StatusSent)

	// the second entry is dated before the first
	late := payment(2000)
	late.Date = time.Now().UTC()
	early := payment(2000)
	early.Date = late.Date.Add(-48 * time.Hour)

	status, _, err := f.engine.OnPaymentCreated(ctx, id, late)
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.StatusPartial, status)

	status, _, err = f.engine.OnPaymentCreated(ctx, id, early)
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.StatusPaid, status)
}

func TestMissingInvoiceRecordsNothing(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	_, _, err := f.engine.OnPaymentCreated(ctx, f.node.Generate(), payment(100))
	require.ErrorIs(t, err, invoicedomain.ErrNotFound)

	entries, err := f.payments.List(ctx, f.db, paymentdomain.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Empty(t, f.notifier.kinds())
}

func TestDeleteLeavesStatusByDefault(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	id := f.invoice(t, 1000, invoicedomain.StatusSent)

	_, entry, err := f.engine.OnPaymentCreated(ctx, id, payment(1000))
	require.NoError(t, err)

	require.NoError(t, f.engine.OnPaymentDeleted(ctx, entry.ID))
	assert.Equal(t, invoicedomain.StatusPaid, f.status(t, id))

	err = f.engine.OnPaymentDeleted(ctx, entry.ID)
	assert.ErrorIs(t, err, paymentdomain.ErrNotFound)
}

func TestDeleteRecomputesWhenEnabled(t *testing.T) {
	f := newFixture(t, Options{RecomputeOnDelete: true})
	ctx := context.Background()
	id := f.invoice(t, 1000, invoicedomain.StatusSent)

	_, _, err := f.engine.OnPaymentCreated(ctx, id, payment(400))
	require.NoError(t, err)
	_, second, err := f.engine.OnPaymentCreated(ctx, id, payment(600))
	require.NoError(t, err)
	require.Equal(t, invoicedomain.StatusPaid, f.status(t, id))

	require.NoError(t, f.engine.OnPaymentDeleted(ctx, second.ID))
	assert.Equal(t, invoicedomain.StatusPartial, f.status(t, id))
}

func TestReconcileLeavesUnpaidStatusAlone(t *testing.T) {
	f := newFixture(t, Options{})
	id := f.invoice(t, 500, invoicedomain.StatusOverdue)

	status, err := f.engine.Reconcile(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.StatusOverdue, status)
}

func TestConcurrentPaymentsSettleOnce(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	id := f.invoice(t, 4000, invoicedomain.StatusSent)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := f.engine.OnPaymentCreated(ctx, id, payment(400))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.Equal(t, invoicedomain.StatusPaid, f.status(t, id))
	assert.Equal(t, []dispatch.Kind{dispatch.KindInvoicePaid}, f.notifier.kinds())
	assert.Zero(t, f.engine.locks.size())
}
