// Package search runs the global search across the searchable resource
// services, with per-target field lists taken from the search config.
package search

import (
	"context"
	"errors"
	"strings"

	"github.com/smallbiznis/crm/internal/aggregate"
	"github.com/smallbiznis/crm/internal/config"
	"github.com/smallbiznis/crm/internal/serviceclient"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("search",
	fx.Provide(NewService),
)

var ErrEmptyQuery = errors.New("empty_query")

type Category struct {
	Count int                    `json:"count"`
	Data  []serviceclient.Record `json:"data"`
}

type Results struct {
	Contacts      Category `json:"contacts"`
	Opportunities Category `json:"opportunities"`
	Tickets       Category `json:"tickets"`
	Products      Category `json:"products"`
}

type Response struct {
	Query   string  `json:"query"`
	Results Results `json:"results"`
}

type Aggregator interface {
	Aggregate(ctx context.Context, operation string, queries []aggregate.ServiceQuery) (aggregate.Result, error)
}

type Service struct {
	agg     Aggregator
	targets *config.SearchConfigHolder
	log     *zap.Logger
}

type ServiceParams struct {
	fx.In

	Aggregator *aggregate.Aggregator
	Targets    *config.SearchConfigHolder
	Log        *zap.Logger
}

func NewService(p ServiceParams) *Service {
	return newService(p.Aggregator, p.Targets, p.Log)
}

func newService(agg Aggregator, targets *config.SearchConfigHolder, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{agg: agg, targets: targets, log: log.Named("search.service")}
}

func (s *Service) Search(ctx context.Context, q string) (Response, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return Response{}, ErrEmptyQuery
	}

	cfg := s.targets.Get()
	queries := make([]aggregate.ServiceQuery, 0, len(cfg.Targets))
	for _, target := range cfg.Targets {
		queries = append(queries, aggregate.ServiceQuery{
			Name:      target.Name,
			Path:      target.Path(),
			Predicate: aggregate.FieldMatch(target.Fields, q),
		})
	}

	result, err := s.agg.Aggregate(ctx, "search", queries)
	if err != nil {
		return Response{}, err
	}

	return Response{
		Query: q,
		Results: Results{
			Contacts:      category(result, config.SearchTargetContacts),
			Opportunities: category(result, config.SearchTargetOpportunities),
			Tickets:       category(result, config.SearchTargetTickets),
			Products:      category(result, config.SearchTargetProducts),
		},
	}, nil
}

func category(result aggregate.Result, name string) Category {
	items := result.Items(name)
	return Category{Count: len(items), Data: items}
}
