package records

import (
	"github.com/smallbiznis/crm/internal/records/repository"
	"github.com/smallbiznis/crm/internal/records/service"
	"go.uber.org/fx"
)

var Module = fx.Module("records.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
