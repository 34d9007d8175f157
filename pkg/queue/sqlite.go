package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Schema is the SQLite schema of the job table.
const Schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	payload BLOB NOT NULL,
	priority INTEGER NOT NULL,
	attempts INTEGER NOT NULL,
	attempts_made INTEGER NOT NULL DEFAULT 0,
	backoff_type TEXT NOT NULL DEFAULT '',
	backoff_delay_ms INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	last_error TEXT NOT NULL DEFAULT '',
	run_at INTEGER NOT NULL,
	created_at INTEGER NOT NULL,
	finished_at INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_jobs_ready ON jobs(status, priority, run_at);
CREATE INDEX IF NOT EXISTS idx_jobs_finished ON jobs(status, finished_at);
`

const jobColumns = `id, name, payload, priority, attempts, attempts_made, backoff_type,
	backoff_delay_ms, status, last_error, run_at, created_at, finished_at`

// SQLiteQueue implements Queue on a SQLite database.
type SQLiteQueue struct {
	db        *sql.DB
	path      string
	now       func() time.Time
	mu        sync.Mutex
	closeOnce sync.Once
}

// SQLiteQueueConfig configures the SQLite queue.
type SQLiteQueueConfig struct {
	// Path is the database file path.
	Path string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration

	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

// NewSQLiteQueue opens (or creates) a queue at path.
func NewSQLiteQueue(path string) (*SQLiteQueue, error) {
	return NewSQLiteQueueWithConfig(SQLiteQueueConfig{Path: path})
}

// NewSQLiteQueueWithConfig opens a queue with custom configuration. Jobs left
// active by a previous process are returned to waiting.
func NewSQLiteQueueWithConfig(cfg SQLiteQueueConfig) (*SQLiteQueue, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("queue path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create queue directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=%d&_synchronous=NORMAL",
		cfg.Path, cfg.BusyTimeout.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open queue database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	q := &SQLiteQueue{db: db, path: cfg.Path, now: cfg.Clock}
	if _, err := q.recoverStalled(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return q, nil
}

func (q *SQLiteQueue) recoverStalled(ctx context.Context) (int, error) {
	res, err := q.db.ExecContext(ctx, `UPDATE jobs SET status = ? WHERE status = ?`, StatusWaiting, StatusActive)
	if err != nil {
		return 0, fmt.Errorf("failed to recover stalled jobs: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Enqueue implements Queue.
func (q *SQLiteQueue) Enqueue(ctx context.Context, name string, payload any, opts Options) (string, error) {
	if name == "" {
		return "", fmt.Errorf("job name cannot be empty")
	}
	raw, err := encodePayload(payload)
	if err != nil {
		return "", err
	}
	opts = opts.withDefaults()

	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	id := uuid.NewString()
	_, err = q.db.ExecContext(ctx, `
		INSERT INTO jobs (id, name, payload, priority, attempts, backoff_type, backoff_delay_ms, status, run_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, name, []byte(raw), opts.Priority, opts.Attempts, string(opts.Backoff.Type),
		opts.Backoff.Delay.Milliseconds(), StatusWaiting, now.Add(opts.Delay).UnixMilli(), now.UnixMilli())
	if err != nil {
		return "", fmt.Errorf("failed to enqueue job: %w", err)
	}
	return id, nil
}

// Dequeue implements Queue.
func (q *SQLiteQueue) Dequeue(ctx context.Context) (*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE status = ? AND run_at <= ?
		ORDER BY priority ASC, run_at ASC, created_at ASC
		LIMIT 1
	`, StatusWaiting, q.now().UnixMilli())

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, err
	}

	job.Status = StatusActive
	job.AttemptsMade++
	if _, err := tx.ExecContext(ctx,
		`UPDATE jobs SET status = ?, attempts_made = ? WHERE id = ?`,
		job.Status, job.AttemptsMade, job.ID,
	); err != nil {
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}
	return job, nil
}

// Complete implements Queue.
func (q *SQLiteQueue) Complete(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	res, err := q.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, finished_at = ?, last_error = '' WHERE id = ?`,
		StatusCompleted, q.now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrJobNotFound
	}
	return nil
}

// Fail implements Queue.
func (q *SQLiteQueue) Fail(ctx context.Context, id string, cause error, permanent bool) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	job, err := scanJob(tx.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrJobNotFound
	}
	if err != nil {
		return false, err
	}

	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	now := q.now()

	retry := !permanent && job.AttemptsMade < job.Attempts
	if retry {
		runAt := now.Add(job.Backoff.NextDelay(job.AttemptsMade))
		_, err = tx.ExecContext(ctx,
			`UPDATE jobs SET status = ?, last_error = ?, run_at = ? WHERE id = ?`,
			StatusWaiting, msg, runAt.UnixMilli(), id)
	} else {
		_, err = tx.ExecContext(ctx,
			`UPDATE jobs SET status = ?, last_error = ?, finished_at = ? WHERE id = ?`,
			StatusFailed, msg, now.UnixMilli(), id)
	}
	if err != nil {
		return false, fmt.Errorf("failed to record failure: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit failure: %w", err)
	}
	return retry, nil
}

// Stats implements Queue.
func (q *SQLiteQueue) Stats(ctx context.Context) (Stats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	rows, err := q.db.QueryContext(ctx, `
		SELECT CASE WHEN status = ? AND run_at > ? THEN ? ELSE status END AS s, COUNT(*)
		FROM jobs GROUP BY s
	`, StatusWaiting, q.now().UnixMilli(), StatusDelayed)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to query stats: %w", err)
	}
	defer rows.Close()

	var s Stats
	for rows.Next() {
		var (
			status string
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return Stats{}, fmt.Errorf("failed to scan stats: %w", err)
		}
		s.add(Status(status), n)
	}
	return s, rows.Err()
}

// RetryFailed implements Queue.
func (q *SQLiteQueue) RetryFailed(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	res, err := q.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, attempts_made = 0, last_error = '', run_at = ?, finished_at = 0
		WHERE status = ?
	`, StatusWaiting, q.now().UnixMilli(), StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("failed to retry jobs: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Clean implements Queue.
func (q *SQLiteQueue) Clean(ctx context.Context, grace time.Duration, status Status) (int, error) {
	if status != StatusCompleted && status != StatusFailed {
		return 0, fmt.Errorf("can only clean completed or failed jobs, got %q", status)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	res, err := q.db.ExecContext(ctx,
		`DELETE FROM jobs WHERE status = ? AND finished_at <= ?`,
		status, q.now().Add(-grace).UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to clean jobs: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Trim implements Queue.
func (q *SQLiteQueue) Trim(ctx context.Context, keepCompleted, keepFailed int) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for status, keep := range map[Status]int{StatusCompleted: keepCompleted, StatusFailed: keepFailed} {
		if keep < 0 {
			continue
		}
		_, err := q.db.ExecContext(ctx, `
			DELETE FROM jobs WHERE status = ? AND id NOT IN (
				SELECT id FROM jobs WHERE status = ? ORDER BY finished_at DESC LIMIT ?
			)
		`, status, status, keep)
		if err != nil {
			return fmt.Errorf("failed to trim %s jobs: %w", status, err)
		}
	}
	return nil
}

// Get returns a job by id.
func (q *SQLiteQueue) Get(ctx context.Context, id string) (*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, err := scanJob(q.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	return job, err
}

// Ping implements Queue.
func (q *SQLiteQueue) Ping(ctx context.Context) error {
	return q.db.PingContext(ctx)
}

// Close implements Queue. Close is idempotent.
func (q *SQLiteQueue) Close() error {
	var err error
	q.closeOnce.Do(func() {
		err = q.db.Close()
	})
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		j                            Job
		payload                      []byte
		backoffType, status          string
		delayMS, runAt, created, fin int64
	)
	err := row.Scan(&j.ID, &j.Name, &payload, &j.Priority, &j.Attempts, &j.AttemptsMade,
		&backoffType, &delayMS, &status, &j.LastError, &runAt, &created, &fin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}
	j.Payload = payload
	j.Backoff = Backoff{Type: BackoffType(backoffType), Delay: time.Duration(delayMS) * time.Millisecond}
	j.Status = Status(status)
	j.RunAt = time.UnixMilli(runAt)
	j.CreatedAt = time.UnixMilli(created)
	if fin > 0 {
		j.FinishedAt = time.UnixMilli(fin)
	}
	return &j, nil
}

func (s *Stats) add(status Status, n int64) {
	switch status {
	case StatusWaiting:
		s.Waiting += n
	case StatusActive:
		s.Active += n
	case StatusCompleted:
		s.Completed += n
	case StatusFailed:
		s.Failed += n
	case StatusDelayed:
		s.Delayed += n
	}
}
