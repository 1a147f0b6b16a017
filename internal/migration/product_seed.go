package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type productSeed struct {
	ID          int64
	Name        string
	Description string
	Price       string
}

// Fixed ids keep the seed idempotent across migrate runs.
var defaultProducts = []productSeed{
	{ID: 1001, Name: "QR Sticker Pack", Description: "Five weatherproof stickers linking to your Medi Link page", Price: "9.99"},
	{ID: 1002, Name: "QR Wallet Card", Description: "Credit-card sized emergency card", Price: "14.99"},
	{ID: 1003, Name: "QR Medical Bracelet", Description: "Silicone bracelet with engraved QR code", Price: "19.99"},
}

func seedProducts(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin product seed transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	for _, p := range defaultProducts {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO products (id, name, description, price, currency, is_active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, 'usd', TRUE, $5, $5)
			ON CONFLICT (id) DO NOTHING
		`, p.ID, p.Name, p.Description, p.Price, now); err != nil {
			return fmt.Errorf("seed product %s: %w", p.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit product seed: %w", err)
	}
	return nil
}
