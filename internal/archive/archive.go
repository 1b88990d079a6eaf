// Package archive records dispatched alerts in Postgres for audit queries.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"cvewatch/internal/feed"
	"cvewatch/internal/severity"
)

// DB wraps a database connection for the dispatched-alert archive.
type DB struct {
	conn *sql.DB
}

// NewDB creates a new database connection using the provided DSN.
func NewDB(dsn string) (*DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("dsn cannot be empty")
	}

	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	conn.SetMaxOpenConns(5)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("Connected to PostgreSQL alert archive")
	return &DB{conn: conn}, nil
}

// EnsureSchema creates the archive table when missing.
func (db *DB) EnsureSchema(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS dispatched_alerts (
			cve_id        TEXT NOT NULL,
			source        TEXT NOT NULL,
			severity      TEXT NOT NULL,
			score         DOUBLE PRECISION NOT NULL,
			sent          BOOLEAN NOT NULL,
			dispatched_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (cve_id, source)
		)`
	if _, err := db.conn.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create dispatched_alerts table: %w", err)
	}
	return nil
}

// RecordAlert inserts one audit row per dispatched advisory. Re-inserting an
// existing (cve_id, source) pair is a no-op, mirroring the grow-only
// processed-ID set.
func (db *DB) RecordAlert(ctx context.Context, adv feed.Advisory, sent bool) error {
	const query = `
		INSERT INTO dispatched_alerts (cve_id, source, severity, score, sent)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (cve_id, source) DO NOTHING`

	label := severity.Classify(adv.Score).Label
	if _, err := db.conn.ExecContext(ctx, query, adv.ID, adv.Source, label, adv.Score, sent); err != nil {
		return fmt.Errorf("failed to record alert: %w", err)
	}
	return nil
}

// CountBySeverity returns the number of archived alerts per severity label.
func (db *DB) CountBySeverity(ctx context.Context) (map[string]int, error) {
	const query = `SELECT severity, COUNT(*) FROM dispatched_alerts GROUP BY severity`

	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var label string
		var count int
		if err := rows.Scan(&label, &count); err != nil {
			return nil, fmt.Errorf("failed to scan alert count row: %w", err)
		}
		counts[label] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alert count rows: %w", err)
	}
	return counts, nil
}

// AdvisoryProcessed implements the processor observer contract. Archive
// failures are logged and dropped; auditing never blocks alerting.
func (db *DB) AdvisoryProcessed(ctx context.Context, adv feed.Advisory, sent bool) {
	if err := db.RecordAlert(ctx, adv, sent); err != nil {
		slog.Error("Failed to archive dispatched alert",
			"cve_id", adv.ID,
			"error", err,
		)
	}
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}
