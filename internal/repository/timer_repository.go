package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"focustodo/backend/internal/model"
)

type TimerRepository struct {
	db *sql.DB
}

func NewTimerRepository(db *sql.DB) *TimerRepository {
	return &TimerRepository{db: db}
}

func (r *TimerRepository) BeginTx(ctx context.Context) (*sql.Tx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return tx, nil
}

// GetOrCreateStateTx loads the user's timer state, inserting the initial row
// on first access: paused at the start of a work phase with the full default
// pomodoro length frozen in remaining_time.
func (r *TimerRepository) GetOrCreateStateTx(ctx context.Context, tx *sql.Tx, userID string, now time.Time) (*model.TimerState, error) {
	state, err := scanTimerState(tx.QueryRowContext(ctx, selectTimerState, userID))
	if err == nil {
		return state, nil
	}
	if err != ErrNotFound {
		return nil, err
	}

	initial := model.DefaultPomodoroMinutes * 60
	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO timer_states (
			user_id, is_running, is_resting, is_long_break,
			completed_pomodoros, start_time, remaining_time, updated_at
		) VALUES (?, 0, 0, 0, 0, NULL, ?, ?)`,
		userID,
		initial,
		now.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return nil, fmt.Errorf("create timer state: %w", err)
	}

	return &model.TimerState{
		UserID:        userID,
		RemainingTime: &initial,
		UpdatedAt:     now.UTC(),
	}, nil
}

// UpdateStateTx writes the whole row, so one call persists one transition
// atomically; concurrent callers interleave whole transitions.
func (r *TimerRepository) UpdateStateTx(ctx context.Context, tx *sql.Tx, state *model.TimerState) error {
	var startTime interface{}
	if state.StartTime != nil {
		startTime = state.StartTime.UTC().Format(time.RFC3339Nano)
	}
	var remainingTime interface{}
	if state.RemainingTime != nil {
		remainingTime = *state.RemainingTime
	}

	_, err := tx.ExecContext(
		ctx,
		`UPDATE timer_states
		 SET is_running = ?,
		     is_resting = ?,
		     is_long_break = ?,
		     completed_pomodoros = ?,
		     start_time = ?,
		     remaining_time = ?,
		     updated_at = ?
		 WHERE user_id = ?`,
		state.IsRunning,
		state.IsResting,
		state.IsLongBreak,
		state.CompletedPomodoros,
		startTime,
		remainingTime,
		state.UpdatedAt.UTC().Format(time.RFC3339Nano),
		state.UserID,
	)
	if err != nil {
		return fmt.Errorf("update timer state: %w", err)
	}
	return nil
}

// GetOrCreateSettingsTx loads the user's timer settings, inserting the
// defaults on first access.
func (r *TimerRepository) GetOrCreateSettingsTx(ctx context.Context, tx *sql.Tx, userID string, now time.Time) (*model.TimerSettings, error) {
	settings, err := scanTimerSettings(tx.QueryRowContext(ctx, selectTimerSettings, userID))
	if err == nil {
		return settings, nil
	}
	if err != ErrNotFound {
		return nil, err
	}

	defaults := model.DefaultTimerSettings(userID, now.UTC())
	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO timer_settings (
			user_id, pomodoro_duration, break_duration, long_break_duration,
			long_break_interval, enable_long_break, notification_sound, mute, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		defaults.UserID,
		defaults.PomodoroDuration,
		defaults.BreakDuration,
		defaults.LongBreakDuration,
		defaults.LongBreakInterval,
		defaults.EnableLongBreak,
		defaults.NotificationSound,
		defaults.Mute,
		defaults.UpdatedAt.Format(time.RFC3339Nano),
	); err != nil {
		return nil, fmt.Errorf("create timer settings: %w", err)
	}
	return &defaults, nil
}

func (r *TimerRepository) UpdateSettingsTx(ctx context.Context, tx *sql.Tx, settings *model.TimerSettings) error {
	_, err := tx.ExecContext(
		ctx,
		`UPDATE timer_settings
		 SET pomodoro_duration = ?,
		     break_duration = ?,
		     long_break_duration = ?,
		     long_break_interval = ?,
		     enable_long_break = ?,
		     notification_sound = ?,
		     mute = ?,
		     updated_at = ?
		 WHERE user_id = ?`,
		settings.PomodoroDuration,
		settings.BreakDuration,
		settings.LongBreakDuration,
		settings.LongBreakInterval,
		settings.EnableLongBreak,
		settings.NotificationSound,
		settings.Mute,
		settings.UpdatedAt.UTC().Format(time.RFC3339Nano),
		settings.UserID,
	)
	if err != nil {
		return fmt.Errorf("update timer settings: %w", err)
	}
	return nil
}

const selectTimerState = `SELECT user_id, is_running, is_resting, is_long_break,
       completed_pomodoros, start_time, remaining_time, updated_at
  FROM timer_states WHERE user_id = ?`

const selectTimerSettings = `SELECT user_id, pomodoro_duration, break_duration,
       long_break_duration, long_break_interval, enable_long_break,
       notification_sound, mute, updated_at
  FROM timer_settings WHERE user_id = ?`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTimerState(s scanner) (*model.TimerState, error) {
	state := model.TimerState{}
	var startTime sql.NullString
	var remainingTime sql.NullInt64
	var updatedAt string
	err := s.Scan(
		&state.UserID,
		&state.IsRunning,
		&state.IsResting,
		&state.IsLongBreak,
		&state.CompletedPomodoros,
		&startTime,
		&remainingTime,
		&updatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan timer state: %w", err)
	}

	if startTime.Valid {
		parsed, parseErr := parseTime(startTime.String)
		if parseErr != nil {
			return nil, fmt.Errorf("parse state start_time: %w", parseErr)
		}
		state.StartTime = &parsed
	}
	if remainingTime.Valid {
		value := int(remainingTime.Int64)
		state.RemainingTime = &value
	}

	parsedUpdatedAt, parseErr := parseTime(updatedAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parse state updated_at: %w", parseErr)
	}
	state.UpdatedAt = parsedUpdatedAt
	return &state, nil
}

func scanTimerSettings(s scanner) (*model.TimerSettings, error) {
	settings := model.TimerSettings{}
	var updatedAt string
	err := s.Scan(
		&settings.UserID,
		&settings.PomodoroDuration,
		&settings.BreakDuration,
		&settings.LongBreakDuration,
		&settings.LongBreakInterval,
		&settings.EnableLongBreak,
		&settings.NotificationSound,
		&settings.Mute,
		&updatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan timer settings: %w", err)
	}

	parsedUpdatedAt, parseErr := parseTime(updatedAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parse settings updated_at: %w", parseErr)
	}
	settings.UpdatedAt = parsedUpdatedAt
	return &settings, nil
}
