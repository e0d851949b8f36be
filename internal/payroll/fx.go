package payroll

import (
	"github.com/smallbiznis/crm/internal/payroll/repository"
	"github.com/smallbiznis/crm/internal/payroll/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payroll.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
