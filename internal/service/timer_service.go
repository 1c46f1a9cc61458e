package service

import (
	"context"
	"database/sql"
	"log"
	"time"

	apperrors "focustodo/backend/internal/errors"
	"focustodo/backend/internal/model"
	"focustodo/backend/internal/repository"
	"focustodo/backend/internal/timer"
)

// TimerService is the boundary around the pure timer engine: it materializes
// state and settings on first access, runs one engine transition per call
// inside a single transaction, and answers with a snapshot. The server holds
// no live countdown between calls.
type TimerService struct {
	repo *repository.TimerRepository
}

func NewTimerService(repo *repository.TimerRepository) *TimerService {
	return &TimerService{repo: repo}
}

// Snapshot merges the persisted timer state with the computed countdown and
// the settings subset a client needs to render the long-break cycle.
type Snapshot struct {
	UserID             string     `json:"userId"`
	IsRunning          bool       `json:"isRunning"`
	IsResting          bool       `json:"isResting"`
	IsLongBreak        bool       `json:"isLongBreak"`
	CompletedPomodoros int        `json:"completedPomodoros"`
	StartTime          *time.Time `json:"startTime"`
	RemainingTime      *int       `json:"remainingTime"`
	TimeLeft           int        `json:"timeLeft"`
	EnableLongBreak    bool       `json:"enableLongBreak"`
	LongBreakInterval  int        `json:"longBreakInterval"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// ActionInput carries one timer action plus optional duration overrides in
// minutes. Overrides let a client preview settings edits it has not saved
// yet; zero values fall back to the stored settings.
type ActionInput struct {
	Action            string
	PomodoroDuration  int
	BreakDuration     int
	LongBreakDuration int
}

// SettingsPatch is a partial settings update; nil fields are left untouched.
type SettingsPatch struct {
	PomodoroDuration  *int
	BreakDuration     *int
	LongBreakDuration *int
	LongBreakInterval *int
	EnableLongBreak   *bool
	NotificationSound *string
	Mute              *bool
}

// GetSnapshot returns the current snapshot, creating state and settings with
// defaults on a user's first read. No transition runs.
func (s *TimerService) GetSnapshot(ctx context.Context, userID string) (*Snapshot, *apperrors.APIError) {
	now := time.Now().UTC()
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, persistenceFailure("get timer state", err)
	}
	defer tx.Rollback()

	state, settings, apiErr := s.loadTx(ctx, tx, userID, now)
	if apiErr != nil {
		return nil, apiErr
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return nil, persistenceFailure("get timer state", commitErr)
	}

	durations := durationsFor(settings, ActionInput{})
	snapshot := buildSnapshot(state, settings, durations, now)
	return &snapshot, nil
}

// ApplyAction runs one engine transition and persists the result as a single
// whole-row update. Unknown actions are rejected before anything is loaded.
func (s *TimerService) ApplyAction(ctx context.Context, userID string, input ActionInput) (*Snapshot, *apperrors.APIError) {
	action, ok := timer.ParseAction(input.Action)
	if !ok {
		return nil, apperrors.BadRequest("invalid_action", "action must be one of toggle, reset, skip, finish")
	}

	now := time.Now().UTC()
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, persistenceFailure("apply timer action", err)
	}
	defer tx.Rollback()

	state, settings, apiErr := s.loadTx(ctx, tx, userID, now)
	if apiErr != nil {
		return nil, apiErr
	}

	durations := durationsFor(settings, input)
	cadence := timer.Cadence{
		Interval: settings.LongBreakInterval,
		Enabled:  settings.EnableLongBreak,
	}

	next := timer.Apply(action, *state, durations, cadence, now)
	next.UpdatedAt = now

	if err := s.repo.UpdateStateTx(ctx, tx, &next); err != nil {
		return nil, persistenceFailure("apply timer action", err)
	}
	if commitErr := tx.Commit(); commitErr != nil {
		return nil, persistenceFailure("apply timer action", commitErr)
	}

	snapshot := buildSnapshot(&next, settings, durations, now)
	return &snapshot, nil
}

// GetSettings returns the user's settings, creating the defaults on first
// access.
func (s *TimerService) GetSettings(ctx context.Context, userID string) (*model.TimerSettings, *apperrors.APIError) {
	now := time.Now().UTC()
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, persistenceFailure("get timer settings", err)
	}
	defer tx.Rollback()

	settings, err := s.repo.GetOrCreateSettingsTx(ctx, tx, userID, now)
	if err != nil {
		return nil, persistenceFailure("get timer settings", err)
	}
	if commitErr := tx.Commit(); commitErr != nil {
		return nil, persistenceFailure("get timer settings", commitErr)
	}
	return settings, nil
}

// UpdateSettings upserts only the fields present in the patch.
func (s *TimerService) UpdateSettings(ctx context.Context, userID string, patch SettingsPatch) (*model.TimerSettings, *apperrors.APIError) {
	if apiErr := validatePatch(patch); apiErr != nil {
		return nil, apiErr
	}

	now := time.Now().UTC()
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, persistenceFailure("update timer settings", err)
	}
	defer tx.Rollback()

	settings, err := s.repo.GetOrCreateSettingsTx(ctx, tx, userID, now)
	if err != nil {
		return nil, persistenceFailure("update timer settings", err)
	}

	if patch.PomodoroDuration != nil {
		settings.PomodoroDuration = *patch.PomodoroDuration
	}
	if patch.BreakDuration != nil {
		settings.BreakDuration = *patch.BreakDuration
	}
	if patch.LongBreakDuration != nil {
		settings.LongBreakDuration = *patch.LongBreakDuration
	}
	if patch.LongBreakInterval != nil {
		settings.LongBreakInterval = *patch.LongBreakInterval
	}
	if patch.EnableLongBreak != nil {
		settings.EnableLongBreak = *patch.EnableLongBreak
	}
	if patch.NotificationSound != nil {
		settings.NotificationSound = *patch.NotificationSound
	}
	if patch.Mute != nil {
		settings.Mute = *patch.Mute
	}
	settings.UpdatedAt = now

	if err := s.repo.UpdateSettingsTx(ctx, tx, settings); err != nil {
		return nil, persistenceFailure("update timer settings", err)
	}
	if commitErr := tx.Commit(); commitErr != nil {
		return nil, persistenceFailure("update timer settings", commitErr)
	}
	return settings, nil
}

func (s *TimerService) loadTx(ctx context.Context, tx *sql.Tx, userID string, now time.Time) (*model.TimerState, *model.TimerSettings, *apperrors.APIError) {
	state, err := s.repo.GetOrCreateStateTx(ctx, tx, userID, now)
	if err != nil {
		return nil, nil, persistenceFailure("load timer state", err)
	}
	settings, err := s.repo.GetOrCreateSettingsTx(ctx, tx, userID, now)
	if err != nil {
		return nil, nil, persistenceFailure("load timer settings", err)
	}
	return state, settings, nil
}

func durationsFor(settings *model.TimerSettings, input ActionInput) timer.Durations {
	pomodoro := settings.PomodoroDuration
	rest := settings.BreakDuration
	longRest := settings.LongBreakDuration
	if input.PomodoroDuration > 0 {
		pomodoro = input.PomodoroDuration
	}
	if input.BreakDuration > 0 {
		rest = input.BreakDuration
	}
	if input.LongBreakDuration > 0 {
		longRest = input.LongBreakDuration
	}
	return timer.Minutes(pomodoro, rest, longRest)
}

func buildSnapshot(state *model.TimerState, settings *model.TimerSettings, d timer.Durations, now time.Time) Snapshot {
	return Snapshot{
		UserID:             state.UserID,
		IsRunning:          state.IsRunning,
		IsResting:          state.IsResting,
		IsLongBreak:        state.IsLongBreak,
		CompletedPomodoros: state.CompletedPomodoros,
		StartTime:          state.StartTime,
		RemainingTime:      state.RemainingTime,
		TimeLeft:           timer.TimeLeft(*state, d, now),
		EnableLongBreak:    settings.EnableLongBreak,
		LongBreakInterval:  settings.LongBreakInterval,
		UpdatedAt:          state.UpdatedAt,
	}
}

func validatePatch(patch SettingsPatch) *apperrors.APIError {
	if patch.PomodoroDuration != nil && *patch.PomodoroDuration <= 0 {
		return apperrors.BadRequest("invalid_duration", "pomodoroDuration must be a positive number of minutes")
	}
	if patch.BreakDuration != nil && *patch.BreakDuration <= 0 {
		return apperrors.BadRequest("invalid_duration", "breakDuration must be a positive number of minutes")
	}
	if patch.LongBreakDuration != nil && *patch.LongBreakDuration <= 0 {
		return apperrors.BadRequest("invalid_duration", "longBreakDuration must be a positive number of minutes")
	}
	if patch.LongBreakInterval != nil && *patch.LongBreakInterval < 2 {
		return apperrors.BadRequest("invalid_interval", "longBreakInterval must be at least 2")
	}
	return nil
}

func persistenceFailure(op string, err error) *apperrors.APIError {
	log.Printf("%s: %v", op, err)
	return apperrors.Internal("failed to " + op)
}
