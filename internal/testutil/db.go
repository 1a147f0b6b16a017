// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"strings"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	customerdomain "github.com/medilink/medilink/internal/customer/domain"
	notificationdomain "github.com/medilink/medilink/internal/notification/domain"
	orderdomain "github.com/medilink/medilink/internal/order/domain"
	paymentdomain "github.com/medilink/medilink/internal/payment/domain"
	productdomain "github.com/medilink/medilink/internal/product/domain"
	subscriptiondomain "github.com/medilink/medilink/internal/subscription/domain"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens an isolated in-memory sqlite database with every table migrated.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One connection keeps the shared-cache database alive and serializes writers.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&customerdomain.Customer{},
		&customerdomain.ShippingAddress{},
		&productdomain.Product{},
		&subscriptiondomain.Subscription{},
		&orderdomain.Order{},
		&orderdomain.OrderItem{},
		&notificationdomain.Notification{},
		&paymentdomain.EventRecord{},
	))
	return db
}

func NewNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return node
}
