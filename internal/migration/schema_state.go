package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrSchemaOutdated = errors.New("schema_outdated")

// State is the schema version recorded by the last successful migrate run.
type State struct {
	Version  string
	Checksum string
}

func recordSchemaState(ctx context.Context, db *sql.DB, state State) error {
	if strings.TrimSpace(state.Version) == "" {
		return errors.New("schema version is required")
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO schema_state (id, schema_version, checksum, applied_at)
		VALUES (TRUE, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET schema_version = EXCLUDED.schema_version,
		    checksum = EXCLUDED.checksum,
		    applied_at = EXCLUDED.applied_at
	`, state.Version, nullIfEmpty(state.Checksum), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("record schema state: %w", err)
	}
	return nil
}

// EnsureSchemaCurrent refuses to serve traffic against a database the migrate command has not
// brought up to the embedded version.
func EnsureSchemaCurrent(ctx context.Context, db *sql.DB) error {
	latest, err := LatestMigrationVersion()
	if err != nil {
		return err
	}
	expectedChecksum, err := MigrationsChecksum()
	if err != nil {
		return err
	}

	var (
		version  string
		checksum sql.NullString
	)
	err = db.QueryRowContext(ctx, `SELECT schema_version, checksum FROM schema_state WHERE id = TRUE`).Scan(&version, &checksum)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: no schema state recorded, run migrate", ErrSchemaOutdated)
		}
		return fmt.Errorf("read schema state: %w", err)
	}
	if version != fmt.Sprintf("%d", latest) {
		return fmt.Errorf("%w: database at %s, binary expects %d", ErrSchemaOutdated, version, latest)
	}
	if checksum.Valid && strings.TrimSpace(checksum.String) != "" && checksum.String != expectedChecksum {
		return fmt.Errorf("%w: checksum %s, binary expects %s", ErrSchemaOutdated, checksum.String, expectedChecksum)
	}
	return nil
}

func nullIfEmpty(value string) any {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return trimmed
}
