package queue

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/faucet/integration/database/pg"
)

// Migrations holds the goose migrations creating the queue_tasks table.
// Apply them with pg.Migrate before using PostgresStorage.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory of Migrations.
const MigrationsDir = "migrations"

// DB is the subset of *pgxpool.Pool used by PostgresStorage. pgx.Tx satisfies it too.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStorage stores tasks in the queue_tasks table. Claims use
// FOR UPDATE SKIP LOCKED and follow insertion order.
type PostgresStorage struct {
	db  DB
	now func() time.Time
}

// NewPostgresStorage creates a PostgreSQL-backed queue storage.
func NewPostgresStorage(db DB) (*PostgresStorage, error) {
	if db == nil {
		return nil, ErrDatabasePoolNil
	}
	return &PostgresStorage{db: db, now: time.Now}, nil
}

// conn returns the transaction carried by ctx, if any, so a task can be
// enqueued atomically with the caller's own writes.
func (ps *PostgresStorage) conn(ctx context.Context) DB {
	if tx, ok := pg.TxFromContext(ctx); ok {
		return tx
	}
	return ps.db
}

const taskColumns = `id, queue, task_name, payload, status, error, locked_until, processed_at, created_at`

// CreateTask inserts a pending task.
func (ps *PostgresStorage) CreateTask(ctx context.Context, task *Task) error {
	if task == nil {
		return ErrTaskNil
	}

	const q = `INSERT INTO queue_tasks (id, queue, task_name, payload, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := ps.conn(ctx).Exec(ctx, q,
		task.ID, task.Queue, task.TaskName, task.Payload, string(TaskStatusPending), task.CreatedAt,
	)
	if pg.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %s", ErrTaskExists, task.ID)
	}
	if err != nil {
		return fmt.Errorf("insert task %s: %w", task.ID, err)
	}
	return nil
}

// PendingCount counts unclaimed tasks of the queue.
func (ps *PostgresStorage) PendingCount(ctx context.Context, queue string) (int, error) {
	const q = `SELECT count(*) FROM queue_tasks WHERE queue = $1 AND status = 'pending'`

	var n int64
	if err := ps.db.QueryRow(ctx, q, queue).Scan(&n); err != nil {
		return 0, fmt.Errorf("count pending tasks: %w", err)
	}
	return int(n), nil
}

// ClaimTask locks and claims the oldest pending task of the queue.
func (ps *PostgresStorage) ClaimTask(ctx context.Context, queue string, lockDuration time.Duration) (*Task, error) {
	const q = `UPDATE queue_tasks SET status = 'processing', locked_until = $2
		WHERE id = (
			SELECT id FROM queue_tasks
			WHERE queue = $1 AND status = 'pending'
			ORDER BY seq
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING ` + taskColumns

	task, err := scanTask(ps.db.QueryRow(ctx, q, queue, ps.now().Add(lockDuration)))
	if pg.IsNotFoundError(err) {
		return nil, ErrNoTaskToClaim
	}
	if err != nil {
		return nil, fmt.Errorf("claim task: %w", err)
	}
	return task, nil
}

// CompleteTask marks a task as successfully completed.
func (ps *PostgresStorage) CompleteTask(ctx context.Context, taskID uuid.UUID) error {
	return ps.finish(ctx, taskID, TaskStatusCompleted, nil)
}

// FailTask marks a task as failed. It is never claimed again.
func (ps *PostgresStorage) FailTask(ctx context.Context, taskID uuid.UUID, errorMsg string) error {
	return ps.finish(ctx, taskID, TaskStatusFailed, &errorMsg)
}

// GetTask loads a task row.
func (ps *PostgresStorage) GetTask(ctx context.Context, taskID uuid.UUID) (*Task, error) {
	const q = `SELECT ` + taskColumns + ` FROM queue_tasks WHERE id = $1`

	task, err := scanTask(ps.db.QueryRow(ctx, q, taskID))
	if pg.IsNotFoundError(err) {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	if err != nil {
		return nil, fmt.Errorf("load task %s: %w", taskID, err)
	}
	return task, nil
}

// FailExpiredTasks fails processing tasks of the queue whose lock expired.
func (ps *PostgresStorage) FailExpiredTasks(ctx context.Context, queue string) (int, error) {
	const q = `UPDATE queue_tasks SET status = 'failed', error = $3, processed_at = $2, locked_until = NULL
		WHERE queue = $1 AND status = 'processing' AND locked_until < $2`

	tag, err := ps.db.Exec(ctx, q, queue, ps.now(), ErrLockExpired.Error())
	if err != nil {
		return 0, fmt.Errorf("fail expired tasks: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (ps *PostgresStorage) finish(ctx context.Context, taskID uuid.UUID, status TaskStatus, errorMsg *string) error {
	const q = `UPDATE queue_tasks SET status = $2, error = $3, processed_at = $4, locked_until = NULL
		WHERE id = $1 AND status = 'processing'`

	tag, err := ps.db.Exec(ctx, q, taskID, string(status), errorMsg, ps.now())
	if err != nil {
		return fmt.Errorf("finish task %s: %w", taskID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrTaskNotProcessing, taskID)
	}
	return nil
}

// Healthcheck runs a trivial query.
func (ps *PostgresStorage) Healthcheck(ctx context.Context) error {
	var one int
	if err := ps.db.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return errors.Join(ErrHealthcheckFailed, err)
	}
	return nil
}

func scanTask(row pgx.Row) (*Task, error) {
	var (
		task   Task
		status string
	)
	err := row.Scan(
		&task.ID, &task.Queue, &task.TaskName, &task.Payload, &status,
		&task.Error, &task.LockedUntil, &task.ProcessedAt, &task.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	task.Status = TaskStatus(status)
	return &task, nil
}
