package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"focustodo/backend/internal/model"
)

type TodoRepository struct {
	db *sql.DB
}

func NewTodoRepository(db *sql.DB) *TodoRepository {
	return &TodoRepository{db: db}
}

func (r *TodoRepository) BeginTx(ctx context.Context) (*sql.Tx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return tx, nil
}

func (r *TodoRepository) Create(ctx context.Context, todo *model.Todo) error {
	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO todos (id, user_id, title, completed, position, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		todo.ID,
		todo.UserID,
		todo.Title,
		todo.Completed,
		todo.Position,
		todo.CreatedAt.UTC().Format(time.RFC3339Nano),
		todo.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("create todo: %w", err)
	}
	return nil
}

// List returns the user's todos ordered top-first (highest position first).
func (r *TodoRepository) List(ctx context.Context, userID string) ([]model.Todo, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT id, user_id, title, completed, position, created_at, updated_at
		 FROM todos
		 WHERE user_id = ?
		 ORDER BY position DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	defer rows.Close()

	todos := make([]model.Todo, 0)
	for rows.Next() {
		todo, scanErr := scanTodo(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		todos = append(todos, *todo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate todos: %w", err)
	}
	return todos, nil
}

// Get fetches one todo scoped to its owner; a todo belonging to another user
// is indistinguishable from a missing one.
func (r *TodoRepository) Get(ctx context.Context, userID, id string) (*model.Todo, error) {
	row := r.db.QueryRowContext(
		ctx,
		`SELECT id, user_id, title, completed, position, created_at, updated_at
		 FROM todos
		 WHERE id = ? AND user_id = ?`,
		id,
		userID,
	)
	return scanTodo(row)
}

func (r *TodoRepository) Update(ctx context.Context, todo *model.Todo) error {
	_, err := r.db.ExecContext(
		ctx,
		`UPDATE todos
		 SET title = ?, completed = ?, position = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		todo.Title,
		todo.Completed,
		todo.Position,
		todo.UpdatedAt.UTC().Format(time.RFC3339Nano),
		todo.ID,
		todo.UserID,
	)
	if err != nil {
		return fmt.Errorf("update todo: %w", err)
	}
	return nil
}

func (r *TodoRepository) Delete(ctx context.Context, userID, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM todos WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete todo: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete todo rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// MaxPosition returns the highest position among the user's todos, or -1
// when the list is empty.
func (r *TodoRepository) MaxPosition(ctx context.Context, userID string) (int, error) {
	var max sql.NullInt64
	if err := r.db.QueryRowContext(
		ctx,
		`SELECT MAX(position) FROM todos WHERE user_id = ?`,
		userID,
	).Scan(&max); err != nil {
		return 0, fmt.Errorf("max todo position: %w", err)
	}
	if !max.Valid {
		return -1, nil
	}
	return int(max.Int64), nil
}

// CountOwnedTx counts how many of the given ids belong to the user, for
// ownership checks before a bulk reorder.
func (r *TodoRepository) CountOwnedTx(ctx context.Context, tx *sql.Tx, userID string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query := `SELECT COUNT(1) FROM todos WHERE user_id = ? AND id IN (?` +
		repeatPlaceholder(len(ids)-1) + `)`
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, userID)
	for _, id := range ids {
		args = append(args, id)
	}

	var count int
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count owned todos: %w", err)
	}
	return count, nil
}

func (r *TodoRepository) SetPositionTx(ctx context.Context, tx *sql.Tx, userID, id string, position int, now time.Time) error {
	_, err := tx.ExecContext(
		ctx,
		`UPDATE todos SET position = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		position,
		now.UTC().Format(time.RFC3339Nano),
		id,
		userID,
	)
	if err != nil {
		return fmt.Errorf("set todo position: %w", err)
	}
	return nil
}

func repeatPlaceholder(n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += ", ?"
	}
	return out
}

func scanTodo(s scanner) (*model.Todo, error) {
	todo := model.Todo{}
	var createdAt string
	var updatedAt string
	err := s.Scan(
		&todo.ID,
		&todo.UserID,
		&todo.Title,
		&todo.Completed,
		&todo.Position,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan todo: %w", err)
	}

	parsedCreatedAt, parseErr := parseTime(createdAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parse todo created_at: %w", parseErr)
	}
	parsedUpdatedAt, parseErr := parseTime(updatedAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parse todo updated_at: %w", parseErr)
	}
	todo.CreatedAt = parsedCreatedAt
	todo.UpdatedAt = parsedUpdatedAt
	return &todo, nil
}
