package subscription

import (
	"github.com/medilink/medilink/internal/subscription/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("subscription.repository",
	fx.Provide(repository.Provide),
)
