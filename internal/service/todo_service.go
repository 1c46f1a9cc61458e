package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "focustodo/backend/internal/errors"
	"focustodo/backend/internal/model"
	"focustodo/backend/internal/repository"
)

type TodoService struct {
	repo *repository.TodoRepository
}

func NewTodoService(repo *repository.TodoRepository) *TodoService {
	return &TodoService{repo: repo}
}

// TodoPatch is a partial todo update; nil fields are left untouched.
type TodoPatch struct {
	Title     *string
	Completed *bool
}

func (s *TodoService) List(ctx context.Context, userID string) ([]model.Todo, *apperrors.APIError) {
	todos, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, persistenceFailure("list todos", err)
	}
	return todos, nil
}

// Create appends a todo to the top of the user's list.
func (s *TodoService) Create(ctx context.Context, userID, title string) (*model.Todo, *apperrors.APIError) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperrors.BadRequest("invalid_title", "title is required")
	}

	maxPosition, err := s.repo.MaxPosition(ctx, userID)
	if err != nil {
		return nil, persistenceFailure("create todo", err)
	}

	now := time.Now().UTC()
	todo := model.Todo{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		Completed: false,
		Position:  maxPosition + 1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, &todo); err != nil {
		return nil, persistenceFailure("create todo", err)
	}
	return &todo, nil
}

func (s *TodoService) Get(ctx context.Context, userID, id string) (*model.Todo, *apperrors.APIError) {
	todo, err := s.repo.Get(ctx, userID, id)
	if err == repository.ErrNotFound {
		return nil, apperrors.NotFound("todo_not_found", "todo not found or access denied")
	}
	if err != nil {
		return nil, persistenceFailure("get todo", err)
	}
	return todo, nil
}

func (s *TodoService) Update(ctx context.Context, userID, id string, patch TodoPatch) (*model.Todo, *apperrors.APIError) {
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return nil, apperrors.BadRequest("invalid_title", "title cannot be empty")
	}

	todo, err := s.repo.Get(ctx, userID, id)
	if err == repository.ErrNotFound {
		return nil, apperrors.NotFound("todo_not_found", "todo not found or access denied")
	}
	if err != nil {
		return nil, persistenceFailure("update todo", err)
	}

	if patch.Title != nil {
		todo.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Completed != nil {
		todo.Completed = *patch.Completed
	}
	todo.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, todo); err != nil {
		return nil, persistenceFailure("update todo", err)
	}
	return todo, nil
}

func (s *TodoService) Delete(ctx context.Context, userID, id string) *apperrors.APIError {
	err := s.repo.Delete(ctx, userID, id)
	if err == repository.ErrNotFound {
		return apperrors.NotFound("todo_not_found", "todo not found or access denied")
	}
	if err != nil {
		return persistenceFailure("delete todo", err)
	}
	return nil
}

// Reorder persists a drag-reorder: ids arrive top-first and are assigned
// descending positions in one transaction. Every id must belong to the
// caller or nothing is written.
func (s *TodoService) Reorder(ctx context.Context, userID string, ids []string) *apperrors.APIError {
	if len(ids) == 0 {
		return apperrors.BadRequest("invalid_todos", "todo id list is required")
	}

	now := time.Now().UTC()
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return persistenceFailure("reorder todos", err)
	}
	defer tx.Rollback()

	owned, err := s.repo.CountOwnedTx(ctx, tx, userID, ids)
	if err != nil {
		return persistenceFailure("reorder todos", err)
	}
	if owned != len(ids) {
		return apperrors.Forbidden("access denied to one or more todos")
	}

	for i, id := range ids {
		if err := s.repo.SetPositionTx(ctx, tx, userID, id, len(ids)-1-i, now); err != nil {
			return persistenceFailure("reorder todos", err)
		}
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return persistenceFailure("reorder todos", commitErr)
	}
	return nil
}
