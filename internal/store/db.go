// internal/store/db.go
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/signalnine/hostwatch/internal/protocol"
)

// DB indexes anomaly events and classified log lines in SQLite
type DB struct {
	db *sql.DB
}

// StoredAnomaly is an anomaly event read back from the index
type StoredAnomaly struct {
	ID string `json:"id"`
	protocol.AnomalyEvent
	CreatedAt time.Time `json:"created_at"`
}

// NewDB opens or creates the SQLite database
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// WAL lets the HTTP surface read while the loop writes
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS anomalies (
		id TEXT PRIMARY KEY,
		timestamp TEXT NOT NULL,
		server TEXT NOT NULL,
		cpu REAL NOT NULL,
		mem REAL NOT NULL,
		disk REAL NOT NULL,
		score REAL NOT NULL,
		threshold REAL NOT NULL,
		created_at TEXT DEFAULT (datetime('now'))
	);
	CREATE INDEX IF NOT EXISTS idx_anomalies_timestamp ON anomalies(timestamp);
	CREATE INDEX IF NOT EXISTS idx_anomalies_server ON anomalies(server);

	CREATE TABLE IF NOT EXISTS log_lines (
		id TEXT PRIMARY KEY,
		raw TEXT NOT NULL,
		cleaned TEXT NOT NULL,
		label TEXT NOT NULL,
		tier TEXT NOT NULL,
		created_at TEXT DEFAULT (datetime('now'))
	);
	CREATE INDEX IF NOT EXISTS idx_log_lines_label ON log_lines(label);
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.db.Close()
}

// RecordAnomaly stores ev; it lets the index act as a scorer sink
func (d *DB) RecordAnomaly(ctx context.Context, ev protocol.AnomalyEvent) error {
	_, err := d.InsertAnomaly(ctx, ev)
	return err
}

// InsertAnomaly stores an anomaly event and returns its id
func (d *DB) InsertAnomaly(ctx context.Context, ev protocol.AnomalyEvent) (string, error) {
	id := uuid.NewString()
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO anomalies (id, timestamp, server, cpu, mem, disk, score, threshold)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, id, ev.Snapshot.TimestampKey(), ev.Snapshot.Server,
		ev.Snapshot.CPU, ev.Snapshot.Mem, ev.Snapshot.Disk, ev.Score, ev.Threshold)
	if err != nil {
		return "", fmt.Errorf("insert anomaly: %w", err)
	}
	return id, nil
}

// RecentAnomalies returns up to limit events, newest first
func (d *DB) RecentAnomalies(ctx context.Context, limit int) ([]StoredAnomaly, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, timestamp, server, cpu, mem, disk, score, threshold, created_at
		FROM anomalies
		ORDER BY timestamp DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoredAnomaly
	for rows.Next() {
		var a StoredAnomaly
		var tsStr, createdStr string
		err := rows.Scan(&a.ID, &tsStr, &a.Snapshot.Server,
			&a.Snapshot.CPU, &a.Snapshot.Mem, &a.Snapshot.Disk,
			&a.Score, &a.Threshold, &createdStr)
		if err != nil {
			return nil, err
		}
		a.Snapshot.Timestamp, _ = protocol.ParseTimestamp(tsStr)
		a.CreatedAt, _ = time.Parse("2006-01-02 15:04:05", createdStr)
		out = append(out, a)
	}
	return out, rows.Err()
}

// InsertLogLines stores classified lines in one transaction
func (d *DB) InsertLogLines(ctx context.Context, lines []protocol.LogLine) error {
	if len(lines) == 0 {
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO log_lines (id, raw, cleaned, label, tier) VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, l := range lines {
		if _, err := stmt.ExecContext(ctx, uuid.NewString(), l.Raw, l.Cleaned, string(l.Label), string(l.Tier)); err != nil {
			return fmt.Errorf("insert log line: %w", err)
		}
	}
	return tx.Commit()
}

// LabelCounts returns the number of stored lines per label
func (d *DB) LabelCounts(ctx context.Context) (map[protocol.Label]int, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT label, COUNT(*) FROM log_lines GROUP BY label
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[protocol.Label]int)
	for rows.Next() {
		var label string
		var count int
		if err := rows.Scan(&label, &count); err != nil {
			return nil, err
		}
		counts[protocol.Label(label)] = count
	}
	return counts, rows.Err()
}

// Alerts reduces LabelCounts to the dashboard counters
func (d *DB) Alerts(ctx context.Context) (protocol.AlertSummary, error) {
	counts, err := d.LabelCounts(ctx)
	if err != nil {
		return protocol.AlertSummary{}, err
	}
	return protocol.AlertSummary{
		Security: counts[protocol.LabelSecurity],
		Error:    counts[protocol.LabelError],
	}, nil
}
