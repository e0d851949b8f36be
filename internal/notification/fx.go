package notification

import (
	"github.com/smallbiznis/crm/internal/notification/repository"
	"github.com/smallbiznis/crm/internal/notification/service"
	"go.uber.org/fx"
)

var Module = fx.Module("notification.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
