package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/medilink/medilink/internal/bootstrap"
	"github.com/medilink/medilink/internal/clock"
	"github.com/medilink/medilink/internal/config"
	"github.com/medilink/medilink/internal/customer"
	"github.com/medilink/medilink/internal/migration"
	"github.com/medilink/medilink/internal/notification"
	"github.com/medilink/medilink/internal/observability"
	"github.com/medilink/medilink/internal/order"
	"github.com/medilink/medilink/internal/payment"
	"github.com/medilink/medilink/internal/product"
	"github.com/medilink/medilink/internal/redis"
	"github.com/medilink/medilink/internal/scheduler"
	"github.com/medilink/medilink/internal/server"
	"github.com/medilink/medilink/internal/subscription"
	"github.com/medilink/medilink/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "medilink",
		Short:   "Medi Link payments service",
		Version: readVersionFromEnv(),
	}
	root.AddCommand(newMigrateCmd(), newServeCmd(), newAllCmd())
	return root
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations and seed the product catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate()
		},
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API server, Stripe webhook endpoint and scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			runServe()
			return nil
		},
	}
}

func newAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "Run migrations, then serve",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := runMigrate(); err != nil {
				return err
			}
			runServe()
			return nil
		},
	}
}

func runMigrate() error {
	app := fx.New(
		config.Module,
		observability.Module,
		db.Module,
		migration.Module,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("migrate failed: %w", err)
	}
	_ = app.Stop(context.Background())
	return nil
}

func runServe() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		clock.Module,
		redis.Module,
		bootstrap.Module,
		fx.Invoke(bootstrap.EnforceSchemaGate),

		product.Module,
		customer.Module,
		subscription.Module,
		order.Module,
		notification.Module,
		payment.Module,

		scheduler.Module,
		fx.Invoke(scheduler.Start),
		server.Module,
	)
	app.Run()
}

func registerSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}

func readVersionFromEnv() string {
	if v := strings.TrimSpace(os.Getenv("APP_VERSION")); v != "" {
		return v
	}
	return "dev"
}
