package notification

import (
	"github.com/medilink/medilink/internal/notification/domain"
	"github.com/medilink/medilink/internal/notification/repository"
	"github.com/medilink/medilink/internal/notification/service"
	"go.uber.org/fx"
)

var Module = fx.Module("notification.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(func(s *service.Service) domain.Service { return s }),
	fx.Provide(func(s *service.Service) domain.Sink { return s }),
)
