package order

import (
	"github.com/medilink/medilink/internal/order/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("order.repository",
	fx.Provide(repository.Provide),
)
