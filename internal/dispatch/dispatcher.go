package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	obscontext "github.com/smallbiznis/crm/internal/observability/context"
	"github.com/smallbiznis/crm/internal/observability/metrics"
	"github.com/smallbiznis/crm/internal/serviceclient"
	"go.uber.org/zap"
)

var ErrNoRecipient = errors.New("no_recipient")

type Options struct {
	QueueSize int
	Workers   int
	// Timeout bounds one delivery, including the recipient lookup.
	Timeout time.Duration
}

// Dispatcher queues events and delivers them on a fixed pool of workers.
// Each event gets exactly one attempt; a full queue drops the event.
type Dispatcher struct {
	queue    chan Event
	workers  int
	timeout  time.Duration
	sender   Sender
	contacts ContactDirectory
	log      *zap.Logger
	metrics  *metrics.Orchestration
	obs      *metrics.Metrics

	mu      sync.RWMutex
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewDispatcher(opts Options, sender Sender, contacts ContactDirectory, log *zap.Logger, m *metrics.Orchestration) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		queue:    make(chan Event, opts.QueueSize),
		workers:  opts.Workers,
		timeout:  opts.Timeout,
		sender:   sender,
		contacts: contacts,
		log:      log.Named("dispatch"),
		metrics:  m,
	}
}

func (d *Dispatcher) Notify(ctx context.Context, ev Event) {
	if ev.ID == "" {
		ev.ID = ulid.Make().String()
	}
	if ev.RequestID == "" {
		ev.RequestID = obscontext.RequestIDFromContext(ctx)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		d.drop(ctx, ev, "dispatcher stopped")
		return
	}

	select {
	case d.queue <- ev:
		d.metrics.IncDispatch(string(ev.Kind), metrics.DispatchResultQueued)
		d.metrics.SetDispatchQueueDepth(len(d.queue))
	default:
		d.drop(ctx, ev, "queue full")
	}
}

func (d *Dispatcher) drop(ctx context.Context, ev Event, reason string) {
	d.metrics.IncDispatch(string(ev.Kind), metrics.DispatchResultDropped)
	d.obs.RecordNotification(ctx, string(ev.Kind), metrics.DispatchResultDropped)
	d.log.Warn("notification dropped",
		zap.String("event_id", ev.ID),
		zap.String("event_kind", string(ev.Kind)),
		zap.String("request_id", ev.RequestID),
		zap.String("reason", reason),
	)
}

func (d *Dispatcher) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.work(ctx)
	}
	d.log.Info("dispatcher started", zap.Int("workers", d.workers), zap.Int("queue_size", cap(d.queue)))
}

// Stop refuses new events, lets workers finish what is already queued and
// waits for them until ctx expires.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		if d.cancel != nil {
			d.cancel()
		}
		return nil
	case <-ctx.Done():
		if d.cancel != nil {
			d.cancel()
		}
		return ctx.Err()
	}
}

func (d *Dispatcher) work(ctx context.Context) {
	defer d.wg.Done()
	for ev := range d.queue {
		d.metrics.SetDispatchQueueDepth(len(d.queue))
		d.deliver(ctx, ev)
	}
}

func (d *Dispatcher) deliver(parent context.Context, ev Event) {
	ctx, cancel := context.WithTimeout(obscontext.WithRequestID(parent, ev.RequestID), d.timeout)
	defer cancel()

	log := d.log.With(
		zap.String("event_id", ev.ID),
		zap.String("event_kind", string(ev.Kind)),
		zap.String("request_id", ev.RequestID),
	)

	to, err := d.recipient(ctx, ev)
	if err != nil {
		d.metrics.IncDispatch(string(ev.Kind), metrics.DispatchResultFailed)
		d.obs.RecordNotification(ctx, string(ev.Kind), metrics.DispatchResultFailed)
		reason := "no recipient"
		if !errors.Is(err, ErrNoRecipient) {
			reason = serviceclient.Reason(err)
		}
		log.Warn("notification skipped", zap.String("reason", reason), zap.Error(err))
		return
	}

	if err := d.sender.Send(ctx, to, ev.Subject, ev.BodyHTML); err != nil {
		d.metrics.IncDispatch(string(ev.Kind), metrics.DispatchResultFailed)
		d.obs.RecordNotification(ctx, string(ev.Kind), metrics.DispatchResultFailed)
		log.Warn("notification delivery failed", zap.Error(err))
		return
	}

	d.metrics.IncDispatch(string(ev.Kind), metrics.DispatchResultSent)
	d.obs.RecordNotification(ctx, string(ev.Kind), metrics.DispatchResultSent)
	log.Debug("notification sent")
}

func (d *Dispatcher) recipient(ctx context.Context, ev Event) (string, error) {
	if to := strings.TrimSpace(ev.To); to != "" {
		return to, nil
	}
	if ev.ContactID == "" || d.contacts == nil {
		return "", ErrNoRecipient
	}
	email, err := d.contacts.Email(ctx, ev.ContactID)
	if err != nil {
		return "", err
	}
	if email = strings.TrimSpace(email); email == "" {
		return "", ErrNoRecipient
	}
	return email, nil
}
