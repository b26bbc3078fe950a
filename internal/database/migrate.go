package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/labstack/gommon/log"
)

// migration is one schema step.  Steps are applied in Version order and
// recorded in schema_migrations, so each runs exactly once per database.
type migration struct {
	Version int
	Name    string
	Apply   func(ctx context.Context, tx *sql.Tx) error
}

var migrations = []migration{
	{Version: 1, Name: "create reservations and settings", Apply: execAll(
		`CREATE TABLE IF NOT EXISTS reservations (
            id         BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
            name       VARCHAR(100) NOT NULL,
            timeslot   VARCHAR(64)  NOT NULL,
            used       BOOLEAN      NOT NULL DEFAULT FALSE,
            created_at DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP
        ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS settings (
            setting_key   VARCHAR(64) PRIMARY KEY,
            setting_value TEXT
        ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	)},
	{Version: 2, Name: "add order_in_slot", Apply: addOrderInSlot},
	{Version: 3, Name: "index name and timeslot", Apply: createIndexes(
		`CREATE INDEX idx_reservations_name ON reservations (name)`,
		`CREATE INDEX idx_reservations_timeslot ON reservations (timeslot)`,
	)},
}

// errDupKeyName is raised by CREATE INDEX when the index already exists.
const errDupKeyName uint16 = 1061

func createIndexes(stmts ...string) func(ctx context.Context, tx *sql.Tx) error {
	return func(ctx context.Context, tx *sql.Tx) error {
		for _, s := range stmts {
			_, err := tx.ExecContext(ctx, s)
			var me *mysql.MySQLError
			if errors.As(err, &me) && me.Number == errDupKeyName {
				continue
			}
			if err != nil {
				return err
			}
		}
		return nil
	}
}

func execAll(stmts ...string) func(ctx context.Context, tx *sql.Tx) error {
	return func(ctx context.Context, tx *sql.Tx) error {
		for _, s := range stmts {
			if _, err := tx.ExecContext(ctx, s); err != nil {
				return err
			}
		}
		return nil
	}
}

// addOrderInSlot adds the column when an older deployment lacks it and
// numbers existing rows per timeslot by creation order.
func addOrderInSlot(ctx context.Context, tx *sql.Tx) error {
	const probe = `SELECT COUNT(*) FROM information_schema.columns
                   WHERE table_schema = DATABASE() AND table_name = 'reservations' AND column_name = 'order_in_slot'`
	var n int
	if err := tx.QueryRowContext(ctx, probe).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	return execAll(
		`ALTER TABLE reservations ADD COLUMN order_in_slot INT NULL`,
		`UPDATE reservations r
         JOIN (SELECT id, ROW_NUMBER() OVER (PARTITION BY timeslot ORDER BY created_at, id) AS rn
               FROM reservations) o ON o.id = r.id
         SET r.order_in_slot = o.rn`,
	)(ctx, tx)
}

// Migrate brings the schema up to date.  It is meant to run once at
// process start, before the HTTP server accepts traffic.  MySQL commits
// DDL implicitly, so a failing step may leave partial changes behind;
// every step is written to tolerate a rerun.
func Migrate(ctx context.Context, db *sql.DB) error {
	const ensure = `CREATE TABLE IF NOT EXISTS schema_migrations (
        version    INT PRIMARY KEY,
        applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
    ) ENGINE=InnoDB`
	if _, err := db.ExecContext(ctx, ensure); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	var current int
	if err := db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("migration %d: begin: %w", m.Version, err)
		}
		if err := m.Apply(ctx, tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, m.Version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d: record: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d: commit: %w", m.Version, err)
		}
		log.Infof("database: applied migration %d (%s)", m.Version, m.Name)
	}
	return nil
}
