package router_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"focustodo/backend/internal/db"
	"focustodo/backend/internal/handler"
	"focustodo/backend/internal/repository"
	"focustodo/backend/internal/router"
	"focustodo/backend/internal/service"
)

type authResponse struct {
	Token string `json:"token"`
	User  struct {
		ID       string `json:"id"`
		Email    string `json:"email"`
		FullName string `json:"fullName"`
	} `json:"user"`
}

type snapshotResponse struct {
	UserID             string  `json:"userId"`
	IsRunning          bool    `json:"isRunning"`
	IsResting          bool    `json:"isResting"`
	IsLongBreak        bool    `json:"isLongBreak"`
	CompletedPomodoros int     `json:"completedPomodoros"`
	StartTime          *string `json:"startTime"`
	RemainingTime      *int    `json:"remainingTime"`
	TimeLeft           int     `json:"timeLeft"`
	EnableLongBreak    bool    `json:"enableLongBreak"`
	LongBreakInterval  int     `json:"longBreakInterval"`
}

type settingsResponse struct {
	PomodoroDuration  int    `json:"pomodoroDuration"`
	BreakDuration     int    `json:"breakDuration"`
	LongBreakDuration int    `json:"longBreakDuration"`
	LongBreakInterval int    `json:"longBreakInterval"`
	EnableLongBreak   bool   `json:"enableLongBreak"`
	NotificationSound string `json:"notificationSound"`
	Mute              bool   `json:"mute"`
}

type todoResponse struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
	Order     int    `json:"order"`
}

type todoListEnvelope struct {
	Todos []todoResponse `json:"todos"`
}

type apiErrorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func TestTimerLifecycle(t *testing.T) {
	engine := setupTestEngine(t)
	user := registerUser(t, engine, "timer@example.com", "123456")

	// Unauthenticated access is rejected before any state is touched.
	status, _ := requestJSON(t, engine, http.MethodGet, "/api/timer", "", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", status)
	}

	// First read lazily creates state with defaults: paused work phase.
	snap := getSnapshot(t, engine, user.Token)
	if snap.IsRunning || snap.IsResting || snap.IsLongBreak {
		t.Fatalf("expected fresh paused work phase, got %+v", snap)
	}
	if snap.TimeLeft != 25*60 {
		t.Fatalf("expected default work countdown 1500, got %d", snap.TimeLeft)
	}
	if snap.RemainingTime == nil || *snap.RemainingTime != 25*60 {
		t.Fatalf("expected frozen remainingTime 1500, got %v", snap.RemainingTime)
	}
	if !snap.EnableLongBreak || snap.LongBreakInterval != 4 {
		t.Fatalf("expected default long-break settings in snapshot, got %+v", snap)
	}

	// Read twice: no mutation beyond creation, same countdown.
	again := getSnapshot(t, engine, user.Token)
	if again.TimeLeft != snap.TimeLeft {
		t.Fatalf("expected idempotent read, got %d then %d", snap.TimeLeft, again.TimeLeft)
	}

	// Toggle starts the timer: anchor set, frozen countdown cleared.
	snap = postAction(t, engine, user.Token, map[string]interface{}{"action": "toggle"})
	if !snap.IsRunning || snap.StartTime == nil || snap.RemainingTime != nil {
		t.Fatalf("expected running state with anchor, got %+v", snap)
	}
	if snap.TimeLeft < 25*60-1 || snap.TimeLeft > 25*60 {
		t.Fatalf("expected near-full countdown after start, got %d", snap.TimeLeft)
	}

	// Toggle again pauses and restores the remaining seconds.
	snap = postAction(t, engine, user.Token, map[string]interface{}{"action": "toggle"})
	if snap.IsRunning || snap.StartTime != nil || snap.RemainingTime == nil {
		t.Fatalf("expected paused state, got %+v", snap)
	}
	if *snap.RemainingTime < 25*60-1 || *snap.RemainingTime > 25*60 {
		t.Fatalf("expected remaining near 1500 after immediate pause, got %d", *snap.RemainingTime)
	}

	// Unknown actions are a client error.
	status, raw := requestJSON(t, engine, http.MethodPost, "/api/timer", user.Token, map[string]interface{}{
		"action": "restart",
	})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown action, got %d", status)
	}
	var apiErr apiErrorEnvelope
	if err := json.Unmarshal(raw, &apiErr); err != nil {
		t.Fatalf("unmarshal error response: %v", err)
	}
	if apiErr.Error.Code != "invalid_action" {
		t.Fatalf("expected invalid_action, got %s", apiErr.Error.Code)
	}

	// Finish completes the work phase: rest begins, counter increments.
	snap = postAction(t, engine, user.Token, map[string]interface{}{"action": "finish"})
	if !snap.IsResting || snap.CompletedPomodoros != 1 {
		t.Fatalf("expected first rest phase, got %+v", snap)
	}
	if snap.TimeLeft != 5*60 {
		t.Fatalf("expected rest countdown 300, got %d", snap.TimeLeft)
	}

	// Reset returns to the initial work phase and clears the counter.
	snap = postAction(t, engine, user.Token, map[string]interface{}{"action": "reset"})
	if snap.IsRunning || snap.IsResting || snap.IsLongBreak || snap.CompletedPomodoros != 0 {
		t.Fatalf("expected full reset, got %+v", snap)
	}
	if snap.TimeLeft != 25*60 {
		t.Fatalf("expected work countdown after reset, got %d", snap.TimeLeft)
	}
}

func TestLongBreakCadenceOverHTTP(t *testing.T) {
	engine := setupTestEngine(t)
	user := registerUser(t, engine, "cadence@example.com", "123456")

	// Four work completions, alternating through rests: the fourth earns the
	// long break at the long-break duration.
	for i := 1; i <= 4; i++ {
		snap := postAction(t, engine, user.Token, map[string]interface{}{"action": "finish"})
		wantLong := i == 4
		if snap.IsLongBreak != wantLong {
			t.Fatalf("completion %d: expected isLongBreak=%v, got %+v", i, wantLong, snap)
		}
		if wantLong && snap.TimeLeft != 15*60 {
			t.Fatalf("expected long-break countdown 900, got %d", snap.TimeLeft)
		}
		if !wantLong && snap.TimeLeft != 5*60 {
			t.Fatalf("completion %d: expected rest countdown 300, got %d", i, snap.TimeLeft)
		}

		if i < 4 {
			snap = postAction(t, engine, user.Token, map[string]interface{}{"action": "skip"})
			if snap.IsResting {
				t.Fatalf("completion %d: expected return to work phase, got %+v", i, snap)
			}
		}
	}
}

func TestDurationOverridePreview(t *testing.T) {
	engine := setupTestEngine(t)
	user := registerUser(t, engine, "preview@example.com", "123456")

	// Unsaved settings edits ride along on the action and shape this
	// transition only.
	snap := postAction(t, engine, user.Token, map[string]interface{}{
		"action":           "reset",
		"pomodoroDuration": 30,
	})
	if snap.TimeLeft != 30*60 {
		t.Fatalf("expected previewed 30-minute work phase, got %d", snap.TimeLeft)
	}

	// The stored settings were not touched.
	settings := getSettings(t, engine, user.Token)
	if settings.PomodoroDuration != 25 {
		t.Fatalf("expected stored pomodoroDuration 25, got %d", settings.PomodoroDuration)
	}
}

func TestTimerSettingsUpsert(t *testing.T) {
	engine := setupTestEngine(t)
	user := registerUser(t, engine, "settings@example.com", "123456")

	// Lazy creation with defaults.
	settings := getSettings(t, engine, user.Token)
	if settings.PomodoroDuration != 25 || settings.BreakDuration != 5 ||
		settings.LongBreakDuration != 15 || settings.LongBreakInterval != 4 ||
		!settings.EnableLongBreak || settings.Mute {
		t.Fatalf("unexpected default settings: %+v", settings)
	}

	// Partial update touches only the fields present.
	status, raw := requestJSON(t, engine, http.MethodPost, "/api/timer/settings", user.Token, map[string]interface{}{
		"pomodoroDuration": 50,
		"mute":             true,
	})
	if status != http.StatusOK {
		t.Fatalf("expected 200 on settings update, got %d: %s", status, string(raw))
	}

	settings = getSettings(t, engine, user.Token)
	if settings.PomodoroDuration != 50 || !settings.Mute {
		t.Fatalf("expected updated fields, got %+v", settings)
	}
	if settings.BreakDuration != 5 || settings.LongBreakInterval != 4 {
		t.Fatalf("expected untouched fields preserved, got %+v", settings)
	}

	// Updated durations drive the next transition.
	snap := postAction(t, engine, user.Token, map[string]interface{}{"action": "reset"})
	if snap.TimeLeft != 50*60 {
		t.Fatalf("expected 50-minute work phase from saved settings, got %d", snap.TimeLeft)
	}

	// Invalid values are rejected.
	status, _ = requestJSON(t, engine, http.MethodPost, "/api/timer/settings", user.Token, map[string]interface{}{
		"longBreakInterval": 1,
	})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for interval below 2, got %d", status)
	}
}

func TestTodoCRUDAndReorder(t *testing.T) {
	engine := setupTestEngine(t)
	user := registerUser(t, engine, "todos@example.com", "123456")
	other := registerUser(t, engine, "other@example.com", "123456")

	first := createTodo(t, engine, user.Token, "write report")
	second := createTodo(t, engine, user.Token, "review PRs")

	// Newest first: the later todo has the higher order.
	todos := listTodos(t, engine, user.Token)
	if len(todos) != 2 || todos[0].ID != second.ID || todos[1].ID != first.ID {
		t.Fatalf("unexpected list order: %+v", todos)
	}

	// Title validation.
	status, _ := requestJSON(t, engine, http.MethodPost, "/api/todos", user.Token, map[string]string{"title": "   "})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank title, got %d", status)
	}

	// Complete one via partial patch.
	status, raw := requestJSON(t, engine, http.MethodPatch, "/api/todos/"+first.ID, user.Token, map[string]interface{}{
		"completed": true,
	})
	if status != http.StatusOK {
		t.Fatalf("expected 200 on patch, got %d: %s", status, string(raw))
	}
	var patched todoResponse
	if err := json.Unmarshal(raw, &patched); err != nil {
		t.Fatalf("unmarshal patched todo: %v", err)
	}
	if !patched.Completed || patched.Title != "write report" {
		t.Fatalf("unexpected patched todo: %+v", patched)
	}

	// Drag-reorder: put first back on top.
	status, _ = requestJSON(t, engine, http.MethodPatch, "/api/todos/reorder", user.Token, map[string]interface{}{
		"ids": []string{first.ID, second.ID},
	})
	if status != http.StatusOK {
		t.Fatalf("expected 200 on reorder, got %d", status)
	}
	todos = listTodos(t, engine, user.Token)
	if todos[0].ID != first.ID || todos[1].ID != second.ID {
		t.Fatalf("unexpected order after reorder: %+v", todos)
	}

	// Another user cannot see, touch, or reorder these todos.
	if got := listTodos(t, engine, other.Token); len(got) != 0 {
		t.Fatalf("expected empty list for other user, got %+v", got)
	}
	status, _ = requestJSON(t, engine, http.MethodGet, "/api/todos/"+first.ID, other.Token, nil)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign todo, got %d", status)
	}
	status, _ = requestJSON(t, engine, http.MethodPatch, "/api/todos/reorder", other.Token, map[string]interface{}{
		"ids": []string{first.ID},
	})
	if status != http.StatusForbidden {
		t.Fatalf("expected 403 reordering foreign todos, got %d", status)
	}

	// Delete, then confirm it is gone.
	status, _ = requestJSON(t, engine, http.MethodDelete, "/api/todos/"+second.ID, user.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 on delete, got %d", status)
	}
	status, _ = requestJSON(t, engine, http.MethodGet, "/api/todos/"+second.ID, user.Token, nil)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", status)
	}
}

func TestUserIsolationOfTimerState(t *testing.T) {
	engine := setupTestEngine(t)
	user1 := registerUser(t, engine, "iso1@example.com", "123456")
	user2 := registerUser(t, engine, "iso2@example.com", "123456")

	postAction(t, engine, user1.Token, map[string]interface{}{"action": "toggle"})

	snap := getSnapshot(t, engine, user2.Token)
	if snap.IsRunning {
		t.Fatalf("expected user2's timer untouched, got %+v", snap)
	}
}

func TestCORSPreflight(t *testing.T) {
	engine := setupTestEngine(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/auth/signin", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	recorder := httptest.NewRecorder()

	engine.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", recorder.Code)
	}
	if recorder.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
		t.Fatalf("unexpected allow-origin header: %s", recorder.Header().Get("Access-Control-Allow-Origin"))
	}
}

func setupTestEngine(t *testing.T) http.Handler {
	t.Helper()

	database, err := db.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	_, currentFile, _, _ := runtime.Caller(0)
	migrationsDir := filepath.Join(filepath.Dir(currentFile), "..", "..", "migrations")
	if err := db.RunMigrations(database, migrationsDir); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	userRepo := repository.NewUserRepository(database)
	timerRepo := repository.NewTimerRepository(database)
	todoRepo := repository.NewTodoRepository(database)

	authService := service.NewAuthService(userRepo, "test-secret", 24*time.Hour)
	timerService := service.NewTimerService(timerRepo)
	todoService := service.NewTodoService(todoRepo)

	authHandler := handler.NewAuthHandler(authService)
	timerHandler := handler.NewTimerHandler(timerService)
	todoHandler := handler.NewTodoHandler(todoService)

	return router.New(authService, authHandler, timerHandler, todoHandler, []string{"http://localhost:3000"})
}

func registerUser(t *testing.T, server http.Handler, email, password string) authResponse {
	t.Helper()
	status, body := requestJSON(t, server, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"email":    email,
		"password": password,
		"fullName": "Test User",
	})
	if status != http.StatusCreated {
		t.Fatalf("register %s failed with status %d: %s", email, status, string(body))
	}
	var resp authResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("unmarshal register response: %v", err)
	}
	if resp.Token == "" {
		t.Fatalf("empty token for user %s", email)
	}
	return resp
}

func getSnapshot(t *testing.T, server http.Handler, token string) snapshotResponse {
	t.Helper()
	status, body := requestJSON(t, server, http.MethodGet, "/api/timer", token, nil)
	if status != http.StatusOK {
		t.Fatalf("get timer failed with status %d: %s", status, string(body))
	}
	var snap snapshotResponse
	if err := json.Unmarshal(body, &snap); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	return snap
}

func postAction(t *testing.T, server http.Handler, token string, body map[string]interface{}) snapshotResponse {
	t.Helper()
	status, raw := requestJSON(t, server, http.MethodPost, "/api/timer", token, body)
	if status != http.StatusOK {
		t.Fatalf("timer action failed with status %d: %s", status, string(raw))
	}
	var snap snapshotResponse
	if err := json.Unmarshal(raw, &snap); err != nil {
		t.Fatalf("unmarshal action snapshot: %v", err)
	}
	return snap
}

func getSettings(t *testing.T, server http.Handler, token string) settingsResponse {
	t.Helper()
	status, body := requestJSON(t, server, http.MethodGet, "/api/timer/settings", token, nil)
	if status != http.StatusOK {
		t.Fatalf("get settings failed with status %d: %s", status, string(body))
	}
	var settings settingsResponse
	if err := json.Unmarshal(body, &settings); err != nil {
		t.Fatalf("unmarshal settings: %v", err)
	}
	return settings
}

func createTodo(t *testing.T, server http.Handler, token, title string) todoResponse {
	t.Helper()
	status, body := requestJSON(t, server, http.MethodPost, "/api/todos", token, map[string]string{"title": title})
	if status != http.StatusCreated {
		t.Fatalf("create todo failed with status %d: %s", status, string(body))
	}
	var todo todoResponse
	if err := json.Unmarshal(body, &todo); err != nil {
		t.Fatalf("unmarshal todo: %v", err)
	}
	return todo
}

func listTodos(t *testing.T, server http.Handler, token string) []todoResponse {
	t.Helper()
	status, body := requestJSON(t, server, http.MethodGet, "/api/todos", token, nil)
	if status != http.StatusOK {
		t.Fatalf("list todos failed with status %d: %s", status, string(body))
	}
	var envelope todoListEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatalf("unmarshal todo list: %v", err)
	}
	return envelope.Todos
}

func requestJSON(
	t *testing.T,
	server http.Handler,
	method, path, token string,
	body interface{},
) (int, []byte) {
	t.Helper()

	var payload []byte
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		payload = raw
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	recorder := httptest.NewRecorder()
	server.ServeHTTP(recorder, req)
	return recorder.Code, recorder.Body.Bytes()
}
