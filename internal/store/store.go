// Package store implements the Candidate Store and Lease State Machine:
// a durable table of (id, passphrase, status, updated_at) rows backed by an
// embedded SQLite database, grounded on the teacher repo's
// internal/app/storage/postgres direct database/sql usage but adapted to a
// single-file, single-writer engine so the coordinator ships with no
// external database dependency.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vaultcrack/recoverd/internal/apperr"
)

// Status mirrors the three candidate states from spec.md §3.
type Status int

const (
	Unchecked Status = 0
	Checking  Status = 1
	Checked   Status = 2
)

// staleAfter is the CHECKING age, in seconds, after which a row is eligible
// for reclamation and counts toward the "timeout" stats bucket.
const staleAfter = 3600

// Candidate is a single reserved row returned by ReserveBatch.
type Candidate struct {
	ID  int64
	Pwd string
}

// Record is a full row as returned by the by-id/by-passphrase/random reads.
type Record struct {
	ID        int64
	Pwd       string
	Status    Status
	UpdatedAt int64
}

// Counts is the raw aggregation CountByStatus produces.
type Counts struct {
	Unchecked int64
	Checking  int64
	Checked   int64
	Timeout   int64
	Total     int64
}

// Store wraps the embedded SQLite database holding the candidate table.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if absent) the SQLite store file at path and ensures
// the schema exists. The connection pool is capped at a single connection:
// SQLite allows only one writer at a time, and pinning the pool to one
// connection turns that into a guarantee rather than a race against
// SQLITE_BUSY, making every transaction below trivially the sole writer.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout=5000`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	const schema = `
CREATE TABLE IF NOT EXISTS records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	pwd TEXT UNIQUE NOT NULL,
	status INTEGER NOT NULL DEFAULT 0,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_records_status_id ON records(status, id);
`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate store %s: %w", path, err)
	}

	return &Store{db: db, path: path}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Insert idempotently inserts passphrases; duplicates are silently ignored.
// The whole batch commits in a single transaction per spec.md §4.1.
func (s *Store) Insert(ctx context.Context, passphrases []string) (int64, error) {
	if len(passphrases) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, apperr.StoreError("begin insert transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO records (pwd, status, updated_at) VALUES (?, 0, ?)`)
	if err != nil {
		return 0, apperr.StoreError("prepare insert", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	var inserted int64
	for _, p := range passphrases {
		if p == "" {
			continue
		}
		res, err := stmt.ExecContext(ctx, p, now)
		if err != nil {
			return 0, apperr.StoreError("insert candidate", err)
		}
		n, _ := res.RowsAffected()
		inserted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, apperr.StoreError("commit insert transaction", err)
	}
	return inserted, nil
}

// ReserveBatch selects up to n UNCHECKED rows ordered by ascending id and
// flips them to CHECKING in the same transaction, so no id can be returned
// by two concurrent reservations (spec.md §4.1, §5a).
func (s *Store) ReserveBatch(ctx context.Context, n int) ([]Candidate, error) {
	if n <= 0 {
		n = 1
	}

	// The pool is pinned to a single connection (see Open), so this
	// transaction already holds the database's only write slot for its
	// whole lifetime — equivalent to SQLite's BEGIN IMMEDIATE without
	// needing to issue it explicitly through database/sql.
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperr.StoreError("begin reserve transaction", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT id, pwd FROM records WHERE status = ? ORDER BY id ASC LIMIT ?`, Unchecked, n)
	if err != nil {
		return nil, apperr.StoreError("select reservable candidates", err)
	}
	var candidates []Candidate
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(&c.ID, &c.Pwd); err != nil {
			rows.Close()
			return nil, apperr.StoreError("scan reservable candidate", err)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, apperr.StoreError("iterate reservable candidates", err)
	}
	rows.Close()

	if len(candidates) == 0 {
		if err := tx.Commit(); err != nil {
			return nil, apperr.StoreError("commit empty reserve transaction", err)
		}
		return nil, nil
	}

	ids := make([]string, len(candidates))
	args := make([]interface{}, 0, len(candidates)+1)
	now := time.Now().Unix()
	args = append(args, now)
	for i, c := range candidates {
		ids[i] = "?"
		args = append(args, c.ID)
	}
	query := fmt.Sprintf(`UPDATE records SET status = %d, updated_at = ? WHERE id IN (%s)`, Checking, strings.Join(ids, ","))
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, apperr.StoreError("reserve candidates", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, apperr.StoreError("commit reserve transaction", err)
	}
	return candidates, nil
}

// MarkCheckedByPassphrase flips rows whose passphrase is in the set to
// CHECKED. Unknown passphrases are no-ops; the whole set commits atomically.
func (s *Store) MarkCheckedByPassphrase(ctx context.Context, passphrases []string) (int64, error) {
	if len(passphrases) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, apperr.StoreError("begin mark-checked transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `UPDATE records SET status = ?, updated_at = ? WHERE pwd = ?`)
	if err != nil {
		return 0, apperr.StoreError("prepare mark-checked", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	var affected int64
	for _, p := range passphrases {
		res, err := stmt.ExecContext(ctx, Checked, now, p)
		if err != nil {
			return 0, apperr.StoreError("mark candidate checked", err)
		}
		n, _ := res.RowsAffected()
		affected += n
	}

	if err := tx.Commit(); err != nil {
		return 0, apperr.StoreError("commit mark-checked transaction", err)
	}
	return affected, nil
}

// ReclaimStale flips CHECKING rows older than ageSeconds back to UNCHECKED.
func (s *Store) ReclaimStale(ctx context.Context, ageSeconds int64) (int64, error) {
	cutoff := time.Now().Unix() - ageSeconds
	now := time.Now().Unix()
	res, err := s.db.ExecContext(ctx,
		`UPDATE records SET status = ?, updated_at = ? WHERE status = ? AND updated_at < ?`,
		Unchecked, now, Checking, cutoff)
	if err != nil {
		return 0, apperr.StoreError("reclaim stale candidates", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// ResetAll flips every row back to UNCHECKED. Callers must enforce the
// sample-store policy gate (spec.md §4.5) before invoking this.
func (s *Store) ResetAll(ctx context.Context) (int64, error) {
	now := time.Now().Unix()
	res, err := s.db.ExecContext(ctx, `UPDATE records SET status = ?, updated_at = ?`, Unchecked, now)
	if err != nil {
		return 0, apperr.StoreError("reset all candidates", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// CountByStatus performs the single-scan aggregation backing the stats
// snapshot, including the "timeout" bucket (CHECKING rows older than 3600s).
func (s *Store) CountByStatus(ctx context.Context) (Counts, error) {
	cutoff := time.Now().Unix() - staleAfter
	row := s.db.QueryRowContext(ctx, `
SELECT
	COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS unchecked,
	COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS checking,
	COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS checked,
	COALESCE(SUM(CASE WHEN status = ? AND updated_at < ? THEN 1 ELSE 0 END), 0) AS timeout,
	COUNT(*) AS total
FROM records`, Unchecked, Checking, Checked, Checking, cutoff)

	var c Counts
	if err := row.Scan(&c.Unchecked, &c.Checking, &c.Checked, &c.Timeout, &c.Total); err != nil {
		return Counts{}, apperr.StoreError("count candidates by status", err)
	}
	return c, nil
}

// GetByID returns the record with the given id, or apperr.NotFoundErr.
func (s *Store) GetByID(ctx context.Context, id int64) (Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, pwd, status, updated_at FROM records WHERE id = ?`, id)
	return scanRecord(row)
}

// GetByPassphrase returns the record with the given passphrase, or
// apperr.NotFoundErr.
func (s *Store) GetByPassphrase(ctx context.Context, pwd string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, pwd, status, updated_at FROM records WHERE pwd = ?`, pwd)
	return scanRecord(row)
}

// GetRandom returns an arbitrary row, or apperr.NotFoundErr if the store is
// empty.
func (s *Store) GetRandom(ctx context.Context) (Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, pwd, status, updated_at FROM records ORDER BY RANDOM() LIMIT 1`)
	return scanRecord(row)
}

func scanRecord(row *sql.Row) (Record, error) {
	var r Record
	var status int
	if err := row.Scan(&r.ID, &r.Pwd, &status, &r.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return Record{}, apperr.NotFoundErr("no matching record")
		}
		return Record{}, apperr.StoreError("read record", err)
	}
	r.Status = Status(status)
	return r, nil
}

// ParsePositiveID parses s as a strictly positive int64 id, per spec.md
// §4.5's "id must be a positive integer" contract.
func ParsePositiveID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.ValidationError("id must be a positive integer")
	}
	return id, nil
}
