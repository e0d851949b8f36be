// Package aggregate fans a request out to several resource services and
// collects whatever each one returns, treating partial failure as normal.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/smallbiznis/crm/internal/config"
	"github.com/smallbiznis/crm/internal/observability/metrics"
	"github.com/smallbiznis/crm/internal/serviceclient"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var Module = fx.Module("aggregate",
	fx.Provide(New),
)

var ErrInvalidQuery = errors.New("invalid_query")

// Fetcher reads one collection. *serviceclient.Client satisfies it.
type Fetcher interface {
	List(ctx context.Context, path string) ([]serviceclient.Record, error)
}

// Predicate filters the items of a successful section. Nil keeps everything.
type Predicate func(serviceclient.Record) bool

type ServiceQuery struct {
	Name      string
	Path      string
	Predicate Predicate
}

// Section is the settled outcome of one query. Failed sections always carry an
// empty, non-nil Items slice.
type Section struct {
	Name      string
	Succeeded bool
	Items     []serviceclient.Record
	Err       error
}

type Result struct {
	Sections []Section
}

func (r Result) Section(name string) (Section, bool) {
	for _, s := range r.Sections {
		if s.Name == name {
			return s, true
		}
	}
	return Section{}, false
}

// Items returns the items of the named section, empty when it failed or is absent.
func (r Result) Items(name string) []serviceclient.Record {
	s, ok := r.Section(name)
	if !ok {
		return []serviceclient.Record{}
	}
	return s.Items
}

func (r Result) Failed() []string {
	var names []string
	for _, s := range r.Sections {
		if !s.Succeeded {
			names = append(names, s.Name)
		}
	}
	return names
}

type Aggregator struct {
	fetcher Fetcher
	timeout time.Duration
	log     *zap.Logger
	metrics *metrics.Orchestration
	obs     *metrics.Metrics
}

type Params struct {
	fx.In

	Cfg     config.Config
	Log     *zap.Logger
	Client  *serviceclient.Client
	Metrics *metrics.Orchestration `optional:"true"`
	Obs     *metrics.Metrics       `optional:"true"`
}

func New(p Params) *Aggregator {
	agg := NewAggregator(p.Client, p.Cfg.UpstreamTimeout, p.Log, p.Metrics)
	agg.obs = p.Obs
	return agg
}

func NewAggregator(fetcher Fetcher, timeout time.Duration, log *zap.Logger, m *metrics.Orchestration) *Aggregator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Aggregator{
		fetcher: fetcher,
		timeout: timeout,
		log:     log.Named("aggregate"),
		metrics: m,
	}
}

// Aggregate dispatches every query at once and waits for all of them to
// settle. The whole fan-out is bounded by the configured timeout, so a slow
// service costs at most that long. Sections come back in the order the
// queries were declared, regardless of completion order.
func (a *Aggregator) Aggregate(ctx context.Context, operation string, queries []ServiceQuery) (Result, error) {
	if err := validate(queries); err != nil {
		return Result{}, err
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	start := time.Now()
	sections := make([]Section, len(queries))

	// Goroutines never return an error: a failed target becomes a failed
	// section and must not cancel its siblings.
	var g errgroup.Group
	for i, q := range queries {
		g.Go(func() error {
			sections[i] = a.fetch(ctx, q)
			return nil
		})
	}
	_ = g.Wait()

	a.metrics.ObserveFanOut(operation, time.Since(start))

	result := Result{Sections: sections}
	if failed := result.Failed(); len(failed) > 0 {
		a.log.Warn("partial aggregation",
			zap.String("operation", operation),
			zap.Strings("failed", failed),
		)
	}
	return result, nil
}

func (a *Aggregator) fetch(ctx context.Context, q ServiceQuery) Section {
	items, err := a.fetcher.List(ctx, q.Path)
	if err != nil {
		a.metrics.IncFanOutCall(q.Name, metrics.FanOutResultDegraded)
		a.obs.RecordFanOutCall(ctx, q.Name, metrics.FanOutResultDegraded)
		a.log.Warn("fan-out target failed",
			zap.String("upstream", q.Name),
			zap.String("reason", serviceclient.Reason(err)),
			zap.Error(err),
		)
		return Section{Name: q.Name, Items: []serviceclient.Record{}, Err: err}
	}

	a.metrics.IncFanOutCall(q.Name, metrics.FanOutResultOK)
	a.obs.RecordFanOutCall(ctx, q.Name, metrics.FanOutResultOK)

	kept := make([]serviceclient.Record, 0, len(items))
	for _, item := range items {
		if q.Predicate == nil || q.Predicate(item) {
			kept = append(kept, item)
		}
	}
	return Section{Name: q.Name, Succeeded: true, Items: kept}
}

func validate(queries []ServiceQuery) error {
	if len(queries) == 0 {
		return fmt.Errorf("%w: no targets", ErrInvalidQuery)
	}
	seen := make(map[string]struct{}, len(queries))
	for _, q := range queries {
		name := strings.TrimSpace(q.Name)
		if name == "" || strings.TrimSpace(q.Path) == "" {
			return fmt.Errorf("%w: target name and path are required", ErrInvalidQuery)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%w: target %q declared twice", ErrInvalidQuery, name)
		}
		seen[name] = struct{}{}
	}
	return nil
}
