package reconcile

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crm/internal/config"
	"github.com/smallbiznis/crm/internal/dispatch"
	invoicedomain "github.com/smallbiznis/crm/internal/invoice/domain"
	"github.com/smallbiznis/crm/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/crm/internal/payment/domain"
	"github.com/smallbiznis/crm/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("reconcile",
	fx.Provide(New),
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Cfg      config.Config
	Log      *zap.Logger
	GenID    *snowflake.Node
	Invoices invoicedomain.Repository
	Payments paymentdomain.Repository

	Locker   *ratelimit.Locker      `optional:"true"`
	Notifier dispatch.Notifier      `optional:"true"`
	Observer *dispatch.Observer     `optional:"true"`
	Metrics  *metrics.Orchestration `optional:"true"`
	Obs      *metrics.Metrics       `optional:"true"`
}

func New(p Params) *Engine {
	return NewEngine(p.DB, p.GenID, p.Invoices, p.Payments, Options{
		RecomputeOnDelete: p.Cfg.Reconcile.OnPaymentDelete,
		LockTTL:           p.Cfg.Reconcile.LockTTL,
		LockWait:          p.Cfg.UpstreamTimeout,
	}, p.Log).
		WithLocker(p.Locker).
		WithNotifier(p.Notifier, p.Observer).
		WithMetrics(p.Metrics, p.Obs)
}
