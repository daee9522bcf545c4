package ledger

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresRepository persists the ledger in PostgreSQL across three tables:
// ledger_users (one row per user), warning_history (append-only, ordered by
// a serial column), and ledger_meta (snapshot version and creation time).
type PostgresRepository struct {
	db *sql.DB
}

// OpenPostgres connects to PostgreSQL with the given DSN and verifies the
// connection before returning a repository.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("ledger: open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: ping postgres: %w", err)
	}
	return &PostgresRepository{db: db}, nil
}

// NewPostgresRepository wraps an existing database handle.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Migrate applies the embedded schema migrations. Safe to call on every
// startup; a fully migrated schema is a no-op.
func (r *PostgresRepository) Migrate() error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("ledger: migration source: %w", err)
	}
	driver, err := postgres.WithInstance(r.db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("ledger: migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("ledger: migrate init: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("ledger: migrate up: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

// Load reconstructs the snapshot from the database. An empty database yields
// a fresh snapshot.
func (r *PostgresRepository) Load(ctx context.Context) (*Snapshot, error) {
	snap := NewSnapshot()

	var version string
	var createdAt time.Time
	err := r.db.QueryRowContext(ctx,
		`SELECT version, created_at FROM ledger_meta WHERE id = 1`).Scan(&version, &createdAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return snap, nil
	case err != nil:
		return nil, fmt.Errorf("ledger: load meta: %w", err)
	}
	snap.Version = version
	snap.CreatedAt = createdAt

	rows, err := r.db.QueryContext(ctx, `
		SELECT username, count, first_warning, last_warning, created_at, appeals
		FROM ledger_users`)
	if err != nil {
		return nil, fmt.Errorf("ledger: load users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var username string
		var rec UserRecord
		var first, last sql.NullTime
		if err := rows.Scan(&username, &rec.Count, &first, &last, &rec.CreatedAt, &rec.AppealsUsed); err != nil {
			return nil, fmt.Errorf("ledger: scan user: %w", err)
		}
		if first.Valid {
			t := first.Time
			rec.FirstWarningAt = &t
		}
		if last.Valid {
			t := last.Time
			rec.LastWarningAt = &t
		}
		snap.Users[username] = &rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: iterate users: %w", err)
	}

	histRows, err := r.db.QueryContext(ctx, `
		SELECT id, ts, username, message, warning_number, previous_warnings,
		       reason, severity, category, source
		FROM warning_history
		ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("ledger: load history: %w", err)
	}
	defer histRows.Close()

	for histRows.Next() {
		var rec WarningRecord
		if err := histRows.Scan(&rec.ID, &rec.Timestamp, &rec.Username, &rec.Message,
			&rec.WarningNumber, &rec.PreviousWarnings,
			&rec.Reason, &rec.Severity, &rec.Category, &rec.Source); err != nil {
			return nil, fmt.Errorf("ledger: scan history: %w", err)
		}
		snap.History = append(snap.History, rec)
	}
	if err := histRows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: iterate history: %w", err)
	}

	return snap, nil
}

// Save writes the snapshot in one transaction: meta and users are upserted,
// new history records are inserted (existing IDs are skipped), and rows
// evicted from the in-memory history are pruned.
func (r *PostgresRepository) Save(ctx context.Context, snap *Snapshot) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ledger: begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO ledger_meta (id, version, created_at)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET version = EXCLUDED.version`,
		snap.Version, snap.CreatedAt)
	if err != nil {
		return fmt.Errorf("ledger: upsert meta: %w", err)
	}

	for username, rec := range snap.Users {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO ledger_users (username, count, first_warning, last_warning, created_at, appeals)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (username) DO UPDATE SET
				count = EXCLUDED.count,
				first_warning = EXCLUDED.first_warning,
				last_warning = EXCLUDED.last_warning,
				appeals = EXCLUDED.appeals`,
			username, rec.Count, nullTime(rec.FirstWarningAt), nullTime(rec.LastWarningAt),
			rec.CreatedAt, rec.AppealsUsed)
		if err != nil {
			return fmt.Errorf("ledger: upsert user %s: %w", username, err)
		}
	}

	ids := make([]string, 0, len(snap.History))
	for _, rec := range snap.History {
		ids = append(ids, rec.ID)
		_, err = tx.ExecContext(ctx, `
			INSERT INTO warning_history
				(id, ts, username, message, warning_number, previous_warnings,
				 reason, severity, category, source)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (id) DO NOTHING`,
			rec.ID, rec.Timestamp, rec.Username, rec.Message,
			rec.WarningNumber, rec.PreviousWarnings,
			rec.Reason, rec.Severity, rec.Category, rec.Source)
		if err != nil {
			return fmt.Errorf("ledger: insert history %s: %w", rec.ID, err)
		}
	}

	// Rows no longer in the snapshot were evicted by the history cap.
	_, err = tx.ExecContext(ctx,
		`DELETE FROM warning_history WHERE NOT (id = ANY($1::uuid[]))`,
		pq.Array(ids))
	if err != nil {
		return fmt.Errorf("ledger: prune history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ledger: commit: %w", err)
	}
	return nil
}

// nullTime converts an optional timestamp to its database representation.
func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
