// Package client implements the polling timer presenter: a local countdown
// that mirrors the server-authoritative timer for display. It reseeds from
// server snapshots, ticks down once per second in between, and reports
// natural phase completion back with a finish action. The local countdown is
// never the source of truth.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// ErrActionInFlight is returned when an action is dispatched while a
// previous request has not resolved yet. Actions are strictly serialized.
var ErrActionInFlight = errors.New("timer action already in flight")

// resyncTicks is how many local ticks pass between full server polls.
const resyncTicks = 30

// Snapshot is the subset of the server snapshot the presenter tracks.
type Snapshot struct {
	IsRunning          bool `json:"isRunning"`
	IsResting          bool `json:"isResting"`
	IsLongBreak        bool `json:"isLongBreak"`
	CompletedPomodoros int  `json:"completedPomodoros"`
	TimeLeft           int  `json:"timeLeft"`
	EnableLongBreak    bool `json:"enableLongBreak"`
	LongBreakInterval  int  `json:"longBreakInterval"`
}

type settings struct {
	PomodoroDuration  int `json:"pomodoroDuration"`
	BreakDuration     int `json:"breakDuration"`
	LongBreakDuration int `json:"longBreakDuration"`
}

type actionRequest struct {
	Action             string `json:"action"`
	PomodoroDuration   int    `json:"pomodoroDuration"`
	BreakDuration      int    `json:"breakDuration"`
	LongBreakDuration  int    `json:"longBreakDuration"`
	IsLongBreak        bool   `json:"isLongBreak"`
	CompletedPomodoros int    `json:"completedPomodoros"`
}

type Presenter struct {
	baseURL string
	token   string
	httpc   *http.Client
	clock   clockwork.Clock
	onTick  func(Snapshot)

	mu       sync.Mutex
	inFlight bool
	snap     Snapshot
	prefs    settings
	ticks    int
}

type Option func(*Presenter)

// WithClock substitutes the wall clock, for tests.
func WithClock(clock clockwork.Clock) Option {
	return func(p *Presenter) { p.clock = clock }
}

// WithHTTPClient substitutes the transport.
func WithHTTPClient(httpc *http.Client) Option {
	return func(p *Presenter) { p.httpc = httpc }
}

// WithOnTick registers a display callback invoked after every local tick and
// every reseed from the server.
func WithOnTick(fn func(Snapshot)) Option {
	return func(p *Presenter) { p.onTick = fn }
}

func New(baseURL, token string, opts ...Option) *Presenter {
	p := &Presenter{
		baseURL: baseURL,
		token:   token,
		httpc:   http.DefaultClient,
		clock:   clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run syncs once, then drives the one-second tick loop until the context is
// cancelled. All countdown mutation happens on this goroutine.
func (p *Presenter) Run(ctx context.Context) error {
	if err := p.Sync(ctx); err != nil {
		return err
	}

	ticker := p.clock.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			p.step(ctx)
		}
	}
}

// Sync reseeds the local countdown from the server. It also refreshes the
// duration preferences so later actions carry the durations the user sees.
func (p *Presenter) Sync(ctx context.Context) error {
	var prefs settings
	if err := p.doGet(ctx, "/api/timer/settings", &prefs); err != nil {
		return err
	}

	var snap Snapshot
	if err := p.doGet(ctx, "/api/timer", &snap); err != nil {
		return err
	}

	p.mu.Lock()
	p.prefs = prefs
	p.seedLocked(snap)
	p.mu.Unlock()
	return nil
}

// Toggle starts or pauses the timer.
func (p *Presenter) Toggle(ctx context.Context) error { return p.dispatch(ctx, "toggle") }

// Reset returns the timer to a fresh work phase.
func (p *Presenter) Reset(ctx context.Context) error { return p.dispatch(ctx, "reset") }

// Skip abandons the current phase early.
func (p *Presenter) Skip(ctx context.Context) error { return p.dispatch(ctx, "skip") }

// Current returns the last displayed snapshot.
func (p *Presenter) Current() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap
}

// step handles one tick: decrement the local countdown while running, fire
// finish exactly once when it reaches zero, and resync periodically.
func (p *Presenter) step(ctx context.Context) {
	p.mu.Lock()

	if p.snap.IsRunning && p.snap.TimeLeft > 0 {
		p.snap.TimeLeft--
		p.ticks++
		p.notifyLocked()
		resync := p.ticks >= resyncTicks && !p.inFlight
		if resync {
			p.ticks = 0
		}
		p.mu.Unlock()
		if resync {
			if err := p.Sync(ctx); err != nil {
				log.Printf("timer resync failed: %v", err)
			}
		}
		return
	}

	if p.snap.IsRunning && p.snap.TimeLeft == 0 && !p.inFlight {
		p.inFlight = true
		prefs := p.prefs
		snap := p.snap
		p.mu.Unlock()

		// The countdown hit zero: report natural completion. A failure is
		// swallowed so the loop keeps ticking; the guard above prevents a
		// duplicate finish while this request is outstanding.
		result, err := p.postAction(ctx, "finish", prefs, snap)

		p.mu.Lock()
		p.inFlight = false
		if err != nil {
			log.Printf("finish action failed: %v", err)
		} else {
			p.seedLocked(*result)
		}
		p.mu.Unlock()
		return
	}

	p.mu.Unlock()
}

// dispatch serializes user actions: at most one request is in flight, and a
// second dispatch fails fast instead of queueing.
func (p *Presenter) dispatch(ctx context.Context, action string) error {
	p.mu.Lock()
	if p.inFlight {
		p.mu.Unlock()
		return ErrActionInFlight
	}
	p.inFlight = true
	prefs := p.prefs
	snap := p.snap
	p.mu.Unlock()

	result, err := p.postAction(ctx, action, prefs, snap)

	p.mu.Lock()
	p.inFlight = false
	if err == nil {
		p.seedLocked(*result)
	}
	p.mu.Unlock()
	return err
}

func (p *Presenter) seedLocked(snap Snapshot) {
	p.snap = snap
	p.ticks = 0
	p.notifyLocked()
}

func (p *Presenter) notifyLocked() {
	if p.onTick != nil {
		p.onTick(p.snap)
	}
}

func (p *Presenter) postAction(ctx context.Context, action string, prefs settings, snap Snapshot) (*Snapshot, error) {
	payload := actionRequest{
		Action:             action,
		PomodoroDuration:   prefs.PomodoroDuration,
		BreakDuration:      prefs.BreakDuration,
		LongBreakDuration:  prefs.LongBreakDuration,
		IsLongBreak:        snap.IsLongBreak,
		CompletedPomodoros: snap.CompletedPomodoros,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s action: %w", action, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/timer", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send %s action: %w", action, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s action: unexpected status %d", action, resp.StatusCode)
	}

	var snapshot Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", action, err)
	}
	return &snapshot, nil
}

func (p *Presenter) doGet(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("get %s: unexpected status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
