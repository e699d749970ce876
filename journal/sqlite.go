package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jirevwe/workpool/packer"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const (
	// rfc3339Milli is like time.RFC3339Nano, but with millisecond precision
	rfc3339Milli = "2006-01-02T15:04:05.000Z07:00"
)

var (
	ErrNotFound         = errors.New("job record not found")
	ErrStatusRegression = errors.New("job status cannot move backwards")
	ErrInvalidStatus    = errors.New("invalid job status")
)

var (
	createJobRuns = `CREATE TABLE IF NOT EXISTS job_runs (
			id TEXT NOT NULL PRIMARY KEY,
			pool TEXT NOT NULL,
			worker INTEGER NOT NULL default -1,
			status TEXT NOT NULL default 'submitted',
			detail BLOB,
			submitted_at TEXT NOT NULL,
			started_at TEXT,
			finished_at TEXT,
			updated_at TEXT NOT NULL default (strftime('%Y-%m-%dT%H:%M:%fZ'))
		) strict;`

	createJobRunsStatusIndex = `CREATE INDEX IF NOT EXISTS idx_job_runs_status ON job_runs (status);`
)

// Record is one row of the job_runs table.
type Record struct {
	Id          string         `db:"id"`
	Pool        string         `db:"pool"`
	Worker      int            `db:"worker"`
	Status      Status         `db:"status"`
	Detail      []byte         `db:"detail"`
	SubmittedAt string         `db:"submitted_at"`
	StartedAt   sql.NullString `db:"started_at"`
	FinishedAt  sql.NullString `db:"finished_at"`
	UpdatedAt   string         `db:"updated_at"`
}

// Detail is the msgpack payload kept in Record.Detail.
type Detail struct {
	Panic string `json:"panic,omitempty"`
	Stack string `json:"stack,omitempty"`
}

// Decode unpacks the record detail. A record without detail yields a zero Detail.
func (r *Record) Decode() (Detail, error) {
	var d Detail
	if len(r.Detail) == 0 {
		return d, nil
	}
	err := packer.Decode(r.Detail, &d)
	return d, err
}

// Duration is the execution time of a finished job.
func (r *Record) Duration() time.Duration {
	if !r.StartedAt.Valid || !r.FinishedAt.Valid {
		return 0
	}
	started, err := time.Parse(rfc3339Milli, r.StartedAt.String)
	if err != nil {
		return 0
	}
	finished, err := time.Parse(rfc3339Milli, r.FinishedAt.String)
	if err != nil {
		return 0
	}
	return finished.Sub(started)
}

// Update moves a record to a new status.
type Update struct {
	Status Status
	Worker int
	At     time.Time
	Detail *Detail
}

type Store struct {
	logger *slog.Logger
	db     *sqlx.DB
}

// Open opens (creating if needed) the sqlite database at dbPath.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sqlx.Open("sqlite3", fmt.Sprintf("%s?cache=shared&mode=rwc&_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath))
	if err != nil {
		return nil, err
	}

	// a single writer avoids SQLITE_BUSY between the journal loop and readers
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_size_limit = 67108864;",
		"PRAGMA mmap_size = 134217728;",
		"PRAGMA cache_size = 2000;",
	} {
		if _, err = db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	s := &Store{db: db, logger: logger}

	ctx := context.Background()
	err = s.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, createJobRuns); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, createJobRunsStatusIndex); err != nil {
			return err
		}

		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// Insert adds a freshly submitted job.
func (s *Store) Insert(ctx context.Context, pool, id string, submittedAt time.Time) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO job_runs (id, pool, status, submitted_at) VALUES ($1, $2, $3, $4)`,
			id, pool, string(StatusSubmitted), submittedAt.UTC().Format(rfc3339Milli))
		return err
	})
}

// UpdateStatus applies u to the job with the given id. A job never moves to a
// status of the same or a lower level.
func (s *Store) UpdateStatus(ctx context.Context, id string, u Update) (record Record, err error) {
	if !u.Status.Valid() {
		return record, fmt.Errorf("%w: %q", ErrInvalidStatus, u.Status)
	}

	var detail []byte
	if u.Detail != nil {
		detail, err = packer.Encode(u.Detail)
		if err != nil {
			return record, err
		}
	}

	at := u.At.UTC().Format(rfc3339Milli)

	err = s.inTx(ctx, func(tx *sqlx.Tx) error {
		var current Record
		if err := tx.GetContext(ctx, &current, `SELECT * FROM job_runs WHERE id = $1`, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: %s", ErrNotFound, id)
			}
			return err
		}

		if current.Status.Level() >= u.Status.Level() {
			return fmt.Errorf("%w: %s is already %s, cannot become %s", ErrStatusRegression, id, current.Status, u.Status)
		}

		var query string
		switch u.Status {
		case StatusRunning:
			query = `UPDATE job_runs SET status = $1, worker = $2, started_at = $3, updated_at = $4 WHERE id = $5`
		default:
			query = `UPDATE job_runs SET status = $1, worker = $2, finished_at = $3, updated_at = $4 WHERE id = $5`
		}

		if _, err := tx.ExecContext(ctx, query, string(u.Status), u.Worker, at, at, id); err != nil {
			return err
		}

		if detail != nil {
			if _, err := tx.ExecContext(ctx, `UPDATE job_runs SET detail = $1 WHERE id = $2`, detail, id); err != nil {
				return err
			}
		}

		return tx.GetContext(ctx, &record, `SELECT * FROM job_runs WHERE id = $1`, id)
	})

	return record, err
}

// Get fetches one record.
func (s *Store) Get(ctx context.Context, id string) (record Record, err error) {
	err = s.db.GetContext(ctx, &record, `SELECT * FROM job_runs WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return record, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return record, err
}

// List returns the records in submission order. An empty status lists every record.
func (s *Store) List(ctx context.Context, status Status) (records []Record, err error) {
	if status == "" {
		err = s.db.SelectContext(ctx, &records, `SELECT * FROM job_runs ORDER BY id`)
		return records, err
	}

	err = s.db.SelectContext(ctx, &records, `SELECT * FROM job_runs WHERE status = $1 ORDER BY id`, string(status))
	return records, err
}

type statusCount struct {
	Status Status `db:"status"`
	Count  int    `db:"count"`
}

// Counts returns the number of records per status.
func (s *Store) Counts(ctx context.Context) (map[Status]int, error) {
	var rows []statusCount
	err := s.db.SelectContext(ctx, &rows, `SELECT status, count(*) AS count FROM job_runs GROUP BY status`)
	if err != nil {
		return nil, err
	}

	counts := make(map[Status]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// Truncate removes every record.
func (s *Store) Truncate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM job_runs`)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) inTx(ctx context.Context, cb func(*sqlx.Tx) error) (err error) {
	tx, beginErr := s.db.BeginTxx(ctx, nil)
	if beginErr != nil {
		return fmt.Errorf("cannot start tx: %w", beginErr)
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = rollback(tx, nil)
			panic(rec)
		}
	}()

	if err = cb(tx); err != nil {
		return rollback(tx, err)
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return fmt.Errorf("cannot commit tx: %w", commitErr)
	}

	return nil
}

func rollback(tx *sqlx.Tx, err error) error {
	if rollbackErr := tx.Rollback(); rollbackErr != nil {
		return fmt.Errorf("cannot roll back tx after error (tx error: %v), original error: %w", rollbackErr, err)
	}
	return err
}
