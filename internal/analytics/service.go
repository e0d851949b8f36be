// Package analytics serves the cross-service dashboard.
package analytics

import (
	"context"

	"github.com/smallbiznis/crm/internal/aggregate"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("analytics",
	fx.Provide(NewService),
)

// dashboardQueries lists the six sources read for every dashboard request.
var dashboardQueries = []aggregate.ServiceQuery{
	{Name: SourceContacts, Path: "/api/contacts"},
	{Name: SourceOpportunities, Path: "/api/opportunities"},
	{Name: SourceInvoices, Path: "/api/invoices"},
	{Name: SourceTickets, Path: "/api/tickets"},
	{Name: SourceTasks, Path: "/api/tasks"},
	{Name: SourceProducts, Path: "/api/products"},
}

type Aggregator interface {
	Aggregate(ctx context.Context, operation string, queries []aggregate.ServiceQuery) (aggregate.Result, error)
}

type Service struct {
	agg Aggregator
	log *zap.Logger
}

type ServiceParams struct {
	fx.In

	Aggregator *aggregate.Aggregator
	Log        *zap.Logger
}

func NewService(p ServiceParams) *Service {
	return newService(p.Aggregator, p.Log)
}

func newService(agg Aggregator, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{agg: agg, log: log.Named("analytics.service")}
}

func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	result, err := s.agg.Aggregate(ctx, "dashboard", dashboardQueries)
	if err != nil {
		return Dashboard{}, err
	}
	return Reduce(result), nil
}
