package dispatch

import (
	"context"

	"github.com/smallbiznis/crm/internal/config"
	"github.com/smallbiznis/crm/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("dispatch",
	fx.Provide(
		NewHTTPSender,
		NewContactService,
		newObserver,
		New,
		func(d *Dispatcher) Notifier { return d },
	),
)

type Params struct {
	fx.In

	Lc       fx.Lifecycle
	Cfg      config.Config
	Log      *zap.Logger
	Sender   *HTTPSender
	Contacts *ContactService
	Metrics  *metrics.Orchestration `optional:"true"`
	Obs      *metrics.Metrics       `optional:"true"`
}

func New(p Params) *Dispatcher {
	d := NewDispatcher(Options{
		QueueSize: p.Cfg.Notify.QueueSize,
		Workers:   p.Cfg.Notify.Workers,
		Timeout:   p.Cfg.UpstreamTimeout,
	}, p.Sender, p.Contacts, p.Log, p.Metrics)
	d.obs = p.Obs

	p.Lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			d.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return d.Stop(ctx)
		},
	})
	return d
}

func newObserver(cfg config.Config, log *zap.Logger) *Observer {
	return NewObserver(cfg.Notify.AdminEmail, log)
}
