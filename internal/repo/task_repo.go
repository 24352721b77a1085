package repo

import (
	"context"
	"database/sql"
	"fmt"

	dom "github.com/Torqued-codes/App/internal/domain"
)

// TaskRepo provides task persistence. Each method is a single round-trip,
// except Patch, which reads and writes inside one transaction.
type TaskRepo interface {
	List(ctx context.Context) ([]dom.Task, error)
	Create(ctx context.Context, title string) (dom.Task, error)
	GetByID(ctx context.Context, id int64) (dom.Task, error)
	Patch(ctx context.Context, id int64, patch dom.TaskPatch) (dom.Task, error)
	Delete(ctx context.Context, id int64) error
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteTaskRepo implements TaskRepo on top of a database/sql pool.
type SQLiteTaskRepo struct {
	db *sql.DB
}

// NewSQLiteTaskRepo returns a new SQLiteTaskRepo.
func NewSQLiteTaskRepo(db *sql.DB) *SQLiteTaskRepo {
	return &SQLiteTaskRepo{db: db}
}

// List returns every row in storage order.
func (r *SQLiteTaskRepo) List(ctx context.Context) ([]dom.Task, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, title, completed FROM tasks`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []dom.Task
	for rows.Next() {
		var t dom.Task
		if err := rows.Scan(&t.ID, &t.Title, &t.Completed); err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

// Create inserts a new task. Completed always starts out false.
func (r *SQLiteTaskRepo) Create(ctx context.Context, title string) (dom.Task, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO tasks (title, completed) VALUES (?, ?)`, title, false)
	if err != nil {
		return dom.Task{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return dom.Task{}, fmt.Errorf("last insert id: %w", err)
	}
	return dom.Task{ID: id, Title: title, Completed: false}, nil
}

// GetByID returns sql.ErrNoRows when the task does not exist.
func (r *SQLiteTaskRepo) GetByID(ctx context.Context, id int64) (dom.Task, error) {
	return getByID(ctx, r.db, id)
}

// Patch applies patch over the stored row and persists the merged row.
func (r *SQLiteTaskRepo) Patch(ctx context.Context, id int64, patch dom.TaskPatch) (dom.Task, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return dom.Task{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	current, err := getByID(ctx, tx, id)
	if err != nil {
		return dom.Task{}, err
	}
	if patch.Empty() {
		return current, tx.Commit()
	}
	merged := patch.Apply(current)

	if _, err := tx.ExecContext(ctx,
		`UPDATE tasks SET title = ?, completed = ? WHERE id = ?`,
		merged.Title, merged.Completed, id,
	); err != nil {
		return dom.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return dom.Task{}, fmt.Errorf("commit: %w", err)
	}
	return merged, nil
}

// Delete removes the row. Deleting a missing id is not an error.
func (r *SQLiteTaskRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	return err
}

func getByID(ctx context.Context, q querier, id int64) (dom.Task, error) {
	var t dom.Task
	err := q.QueryRowContext(ctx,
		`SELECT id, title, completed FROM tasks WHERE id = ?`, id,
	).Scan(&t.ID, &t.Title, &t.Completed)
	return t, err
}
