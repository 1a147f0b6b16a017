package product

import (
	"github.com/medilink/medilink/internal/product/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("product.repository",
	fx.Provide(repository.Provide),
)
