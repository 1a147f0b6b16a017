package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// schemaLockName is hashed by postgres into the advisory lock key, so every medilink migrate
// process pointed at the same database contends on one lock.
const schemaLockName = "medilink.schema_migrations"

const lockPollInterval = 500 * time.Millisecond

var errLockHeld = errors.New("medilink schema lock is held by another migrate process")

type unlockFunc func(ctx context.Context) error

// acquireAdvisoryLock pins one pooled connection for the lock's lifetime: session advisory locks
// belong to the connection that took them. It polls until ctx expires.
func acquireAdvisoryLock(ctx context.Context, db *sql.DB) (unlockFunc, error) {
	if db == nil {
		return nil, errors.New("advisory lock requires database handle")
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("reserve lock connection: %w", err)
	}

	ticker := time.NewTicker(lockPollInterval)
	defer ticker.Stop()
	for {
		var locked bool
		err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock(hashtext($1))", schemaLockName).Scan(&locked)
		if err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("acquire %s lock: %w", schemaLockName, err)
		}
		if locked {
			break
		}
		select {
		case <-ctx.Done():
			_ = conn.Close()
			return nil, fmt.Errorf("%w: %v", errLockHeld, ctx.Err())
		case <-ticker.C:
		}
	}

	return func(unlockCtx context.Context) error {
		defer conn.Close()
		var released bool
		if err := conn.QueryRowContext(unlockCtx, "SELECT pg_advisory_unlock(hashtext($1))", schemaLockName).Scan(&released); err != nil {
			return fmt.Errorf("release %s lock: %w", schemaLockName, err)
		}
		if !released {
			return errors.New("schema lock was not held by this session")
		}
		return nil
	}, nil
}
