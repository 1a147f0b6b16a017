package bootstrap

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// EnforceSchemaGate aborts startup of serving processes when the database has not been migrated
// to the embedded schema.
func EnforceSchemaGate(lc fx.Lifecycle, gate SchemaGate, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := gate.MustBeActive(ctx); err != nil {
				return fmt.Errorf("schema gate: %w", err)
			}
			log.Named("bootstrap").Info("schema gate passed")
			return nil
		},
	})
}
