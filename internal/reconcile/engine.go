// Package reconcile keeps an invoice's payment status consistent with its
// payment ledger. The status is always recomputed from the full ledger, never
// adjusted incrementally, so the order in which entries arrive does not matter.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crm/internal/dispatch"
	invoicedomain "github.com/smallbiznis/crm/internal/invoice/domain"
	"github.com/smallbiznis/crm/internal/observability/logger"
	"github.com/smallbiznis/crm/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/crm/internal/payment/domain"
	"github.com/smallbiznis/crm/internal/ratelimit"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	keyInvoiceLock  = "crm:reconcile:invoice:%s"
	defaultLockTTL  = 10 * time.Second
	defaultLockWait = 5 * time.Second
)

type Options struct {
	// RecomputeOnDelete re-derives the invoice status after a ledger entry
	// is removed. Off by default.
	RecomputeOnDelete bool
	LockTTL           time.Duration
	LockWait          time.Duration
}

type Engine struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	invoices invoicedomain.Repository
	payments paymentdomain.Repository
	opts     Options

	locks    *keyedMutex
	locker   *ratelimit.Locker
	notifier dispatch.Notifier
	observer *dispatch.Observer
	metrics  *metrics.Orchestration
	obs      *metrics.Metrics
}

func NewEngine(
	db *gorm.DB,
	genID *snowflake.Node,
	invoices invoicedomain.Repository,
	payments paymentdomain.Repository,
	opts Options,
	log *zap.Logger,
) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = defaultLockTTL
	}
	if opts.LockWait <= 0 {
		opts.LockWait = defaultLockWait
	}
	return &Engine{
		db:       db,
		log:      log.Named("reconcile.engine"),
		genID:    genID,
		invoices: invoices,
		payments: payments,
		opts:     opts,
		locks:    newKeyedMutex(),
		notifier: dispatch.NopNotifier{},
	}
}

// WithLocker adds a cross-process lock on top of the in-process one.
func (e *Engine) WithLocker(l *ratelimit.Locker) *Engine {
	e.locker = l
	return e
}

// WithNotifier reports transitions into Paid through the given notifier.
func (e *Engine) WithNotifier(n dispatch.Notifier, o *dispatch.Observer) *Engine {
	if n != nil {
		e.notifier = n
	}
	e.observer = o
	return e
}

func (e *Engine) WithMetrics(m *metrics.Orchestration, obs *metrics.Metrics) *Engine {
	e.metrics = m
	e.obs = obs
	return e
}

// OnPaymentCreated records entry against the invoice and returns the status
// derived from the complete ledger. Nothing is written when the invoice does
// not exist.
func (e *Engine) OnPaymentCreated(ctx context.Context, invoiceID snowflake.ID, entry paymentdomain.Payment) (invoicedomain.Status, paymentdomain.Payment, error) {
	invoice, err := e.invoices.FindByID(ctx, e.db, invoiceID)
	if err != nil {
		return "", paymentdomain.Payment{}, err
	}
	if invoice == nil {
		return "", paymentdomain.Payment{}, invoicedomain.ErrNotFound
	}

	now := time.Now().UTC()
	entry.ID = e.genID.Generate()
	entry.InvoiceID = invoice.ID
	entry.CreatedAt = now
	if entry.Date.IsZero() {
		entry.Date = now
	}
	if err := e.payments.Insert(ctx, e.db, &entry); err != nil {
		return "", paymentdomain.Payment{}, err
	}
	e.obs.RecordLedgerEntry(ctx, "create", entry.Method)

	status, err := e.Reconcile(ctx, invoice.ID)
	if err != nil {
		// the entry is recorded; the next reconcile will pick it up
		return "", entry, fmt.Errorf("reconcile invoice %s: %w", invoice.ID, err)
	}
	return status, entry, nil
}

// OnPaymentDeleted removes one ledger entry. The invoice status is only
// recomputed when the engine is configured to do so.
func (e *Engine) OnPaymentDeleted(ctx context.Context, paymentID snowflake.ID) error {
	entry, err := e.payments.FindByID(ctx, e.db, paymentID)
	if err != nil {
		return err
	}
	if entry == nil {
		return paymentdomain.ErrNotFound
	}

	deleted, err := e.payments.Delete(ctx, e.db, paymentID)
	if err != nil {
		return err
	}
	if !deleted {
		return paymentdomain.ErrNotFound
	}
	e.obs.RecordLedgerEntry(ctx, "delete", entry.Method)

	if !e.opts.RecomputeOnDelete {
		e.log.Debug("payment deleted, invoice status left as is",
			zap.String("invoice_id", entry.InvoiceID.String()),
			zap.String("payment_id", paymentID.String()),
		)
		return nil
	}
	if _, err := e.Reconcile(ctx, entry.InvoiceID); err != nil && !errors.Is(err, invoicedomain.ErrNotFound) {
		return fmt.Errorf("reconcile invoice %s: %w", entry.InvoiceID, err)
	}
	return nil
}

// Reconcile re-reads the invoice and all of its ledger entries and persists
// the derived status. Runs for the same invoice are serialised.
func (e *Engine) Reconcile(ctx context.Context, invoiceID snowflake.ID) (invoicedomain.Status, error) {
	unlock, err := e.lock(ctx, invoiceID)
	if err != nil {
		e.metrics.IncReconcile(metrics.ReconcileResultFailed)
		return "", err
	}
	defer unlock()

	status, changed, err := e.recompute(ctx, invoiceID)
	switch {
	case err != nil:
		e.metrics.IncReconcile(metrics.ReconcileResultFailed)
	case changed:
		e.metrics.IncReconcile(metrics.ReconcileResultUpdated)
	default:
		e.metrics.IncReconcile(metrics.ReconcileResultUnchanged)
	}
	return status, err
}

func (e *Engine) recompute(ctx context.Context, invoiceID snowflake.ID) (invoicedomain.Status, bool, error) {
	invoice, err := e.invoices.FindByID(ctx, e.db, invoiceID)
	if err != nil {
		return "", false, err
	}
	if invoice == nil {
		return "", false, invoicedomain.ErrNotFound
	}

	entries, err := e.payments.ListByInvoice(ctx, e.db, invoiceID)
	if err != nil {
		return "", false, err
	}
	collected := paymentdomain.Sum(entries)

	before := invoice.Status
	next := invoicedomain.Settle(before, invoice.TotalAmount, collected)
	if next == before {
		return before, false, nil
	}

	var paidAt *time.Time
	if next == invoicedomain.StatusPaid {
		now := time.Now().UTC()
		paidAt = &now
	}
	if err := e.invoices.UpdateStatus(ctx, e.db, invoiceID, next, paidAt); err != nil {
		return "", false, err
	}

	invoice.Status = next
	invoice.PaidAt = paidAt
	e.metrics.IncInvoiceTransition(string(before), string(next))
	e.obs.RecordInvoiceTransition(ctx, string(before), string(next))
	logger.FromContext(ctx).Info("invoice status reconciled",
		zap.String("invoice_id", invoiceID.String()),
		zap.String("from", string(before)),
		zap.String("to", string(next)),
		zap.Stringer("collected", collected),
		zap.Stringer("total", invoice.TotalAmount),
		zap.Int("entries", len(entries)),
	)

	if e.observer != nil {
		if ev := e.observer.InvoicePaid(before, invoice); ev != nil {
			e.notifier.Notify(ctx, *ev)
		}
	}
	return next, true, nil
}

// lock takes the in-process lock and, when Redis is configured, the shared
// one. A Redis outage degrades to the in-process lock only.
func (e *Engine) lock(ctx context.Context, invoiceID snowflake.ID) (func(), error) {
	start := time.Now()
	unlock := e.locks.Lock(invoiceID)
	if e.locker == nil {
		e.metrics.ObserveReconcileLockWait(time.Since(start))
		return unlock, nil
	}

	key := fmt.Sprintf(keyInvoiceLock, strings.TrimSpace(invoiceID.String()))
	token, err := e.locker.Acquire(ctx, key, e.opts.LockTTL, e.opts.LockWait)
	e.metrics.ObserveReconcileLockWait(time.Since(start))
	switch {
	case err == nil:
	case errors.Is(err, ratelimit.ErrLockTimeout), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		unlock()
		return nil, err
	default:
		e.log.Warn("shared reconcile lock unavailable, using local lock only",
			zap.String("invoice_id", invoiceID.String()),
			zap.Error(err),
		)
		return unlock, nil
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		if err := e.locker.Release(releaseCtx, key, token); err != nil {
			e.log.Warn("failed to release reconcile lock", zap.String("key", key), zap.Error(err))
		}
		unlock()
	}, nil
}
