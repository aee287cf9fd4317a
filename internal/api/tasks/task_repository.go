package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-kanban-tracker/internal/api"
)

// PGXPool is the subset of pgxpool.Pool the repository uses. It is satisfied
// by both *pgxpool.Pool and pgxmock's pool in tests.
type PGXPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ TaskRepo = (*PostgresTaskRepo)(nil)

// TaskRepo defines the contract for task persistence. Every query is scoped
// to the owning user; an ID belonging to another user behaves exactly like
// one that does not exist.
type TaskRepo interface {
	CreateTask(ctx context.Context, userID uuid.UUID, params CreateTaskParams) (*Task, error)
	GetTask(ctx context.Context, userID, taskID uuid.UUID) (*Task, error)
	ListTasks(ctx context.Context, userID uuid.UUID, search string) ([]Task, error)
	UpdateTask(ctx context.Context, userID, taskID uuid.UUID, params UpdateTaskParams) (*Task, error)
	DeleteTask(ctx context.Context, userID, taskID uuid.UUID) error
}

// PostgresTaskRepo implements TaskRepo on top of pgx.
type PostgresTaskRepo struct {
	logger *slog.Logger
	pgpool PGXPool
}

func NewPostgresTaskRepo(pgpool PGXPool, logger *slog.Logger) *PostgresTaskRepo {
	return &PostgresTaskRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

const taskColumns = `id, user_id, title, COALESCE(subheading, ''),
       COALESCE(description, ''), status, priority, created_at`

func scanTask(row pgx.Row) (*Task, error) {
	var t Task
	err := row.Scan(&t.ID, &t.UserID, &t.Title, &t.Subheading,
		&t.Description, &t.Status, &t.Priority, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, api.ErrNotFound
		}
		return nil, fmt.Errorf("scan task: %w", err)
	}
	return &t, nil
}

func (r *PostgresTaskRepo) CreateTask(ctx context.Context, userID uuid.UUID, params CreateTaskParams) (*Task, error) {
	ctx, span := otel.Tracer("TaskRepo").Start(ctx, "CreateTask", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "tasks"),
	))
	defer span.End()

	row := r.pgpool.QueryRow(ctx,
		`INSERT INTO tasks (user_id, title, subheading, description, status, priority)
         VALUES ($1, $2, $3, $4, $5, $6)
         RETURNING `+taskColumns,
		userID, params.Title, params.Subheading, params.Description,
		params.Status, params.Priority)

	task, err := scanTask(row)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return task, nil
}

func (r *PostgresTaskRepo) GetTask(ctx context.Context, userID, taskID uuid.UUID) (*Task, error) {
	row := r.pgpool.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1 AND user_id = $2`,
		taskID, userID)
	return scanTask(row)
}

// ListTasks returns the user's tasks, newest first. A non-empty search term
// filters case-insensitively on title or description.
func (r *PostgresTaskRepo) ListTasks(ctx context.Context, userID uuid.UUID, search string) ([]Task, error) {
	ctx, span := otel.Tracer("TaskRepo").Start(ctx, "ListTasks", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "tasks"),
	))
	defer span.End()

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE user_id = $1`
	args := []any{userID}
	if search != "" {
		query += ` AND (title ILIKE '%' || $2 || '%' OR description ILIKE '%' || $2 || '%')`
		args = append(args, search)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: db query failed: %w", err)
	}
	defer rows.Close()

	tasks := make([]Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tasks: row iteration failed: %w", err)
	}

	return tasks, nil
}

// UpdateTask applies the non-nil fields. The SET clause is built dynamically
// so a PATCH touches only what it names.
func (r *PostgresTaskRepo) UpdateTask(ctx context.Context, userID, taskID uuid.UUID, params UpdateTaskParams) (*Task, error) {
	ctx, span := otel.Tracer("TaskRepo").Start(ctx, "UpdateTask", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "tasks"),
	))
	defer span.End()

	var setClauses []string
	args := []any{taskID, userID}
	argID := 3

	addClause := func(column string, value any) {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, argID))
		args = append(args, value)
		argID++
	}

	if params.Title != nil {
		addClause("title", *params.Title)
	}
	if params.Subheading != nil {
		addClause("subheading", *params.Subheading)
	}
	if params.Description != nil {
		addClause("description", *params.Description)
	}
	if params.Status != nil {
		addClause("status", *params.Status)
	}
	if params.Priority != nil {
		addClause("priority", *params.Priority)
	}

	if len(setClauses) == 0 {
		return r.GetTask(ctx, userID, taskID)
	}

	query := `UPDATE tasks SET ` + strings.Join(setClauses, ", ") +
		` WHERE id = $1 AND user_id = $2 RETURNING ` + taskColumns

	return scanTask(r.pgpool.QueryRow(ctx, query, args...))
}

func (r *PostgresTaskRepo) DeleteTask(ctx context.Context, userID, taskID uuid.UUID) error {
	tag, err := r.pgpool.Exec(ctx,
		`DELETE FROM tasks WHERE id = $1 AND user_id = $2`,
		taskID, userID)
	if err != nil {
		return fmt.Errorf("delete task: db delete failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return api.ErrNotFound
	}
	return nil
}
