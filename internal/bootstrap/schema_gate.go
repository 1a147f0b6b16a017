package bootstrap

import (
	"context"
	"errors"

	"github.com/medilink/medilink/internal/migration"
	"gorm.io/gorm"
)

type SchemaGate interface {
	MustBeActive(ctx context.Context) error
}

type schemaGate struct {
	db *gorm.DB
}

func NewSchemaGate(db *gorm.DB) (SchemaGate, error) {
	if db == nil {
		return nil, errors.New("schema gate requires database handle")
	}
	return &schemaGate{db: db}, nil
}

// MustBeActive fails unless the migrate command recorded the version and checksum embedded in
// this binary.
func (g *schemaGate) MustBeActive(ctx context.Context) error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return migration.EnsureSchemaCurrent(ctx, sqlDB)
}
