// Package timer implements the Pomodoro timer state machine as a family of
// pure functions over (state, durations, now). The server keeps no live
// countdown: a running timer is just a persisted start anchor, and the time
// left is recomputed from it on every read. Nothing here performs I/O and
// nothing here returns an error; inputs are defaulted or clamped instead.
package timer

import (
	"time"

	"focustodo/backend/internal/model"
)

type Action string

const (
	ActionToggle Action = "toggle"
	ActionReset  Action = "reset"
	ActionSkip   Action = "skip"
	ActionFinish Action = "finish"
)

// ParseAction reports whether raw names a known timer action.
func ParseAction(raw string) (Action, bool) {
	switch Action(raw) {
	case ActionToggle, ActionReset, ActionSkip, ActionFinish:
		return Action(raw), true
	}
	return "", false
}

// Durations holds the three phase lengths in seconds. They are derived from
// settings on every call rather than stored with the state, so a settings
// change takes effect on the next transition.
type Durations struct {
	Work     int
	Rest     int
	LongRest int
}

// Minutes builds Durations from minute values, substituting the defaults for
// any non-positive input.
func Minutes(pomodoro, rest, longRest int) Durations {
	if pomodoro <= 0 {
		pomodoro = model.DefaultPomodoroMinutes
	}
	if rest <= 0 {
		rest = model.DefaultBreakMinutes
	}
	if longRest <= 0 {
		longRest = model.DefaultLongBreakMinutes
	}
	return Durations{
		Work:     pomodoro * 60,
		Rest:     rest * 60,
		LongRest: longRest * 60,
	}
}

// PhaseLength returns the full length of the phase the flags describe.
func (d Durations) PhaseLength(resting, longBreak bool) int {
	if !resting {
		return d.Work
	}
	if longBreak {
		return d.LongRest
	}
	return d.Rest
}

// Cadence is the long-break schedule: a long break is due every Interval-th
// completed work phase, when Enabled.
type Cadence struct {
	Interval int
	Enabled  bool
}

// TimeLeft computes the countdown value for a snapshot without mutating
// state. Running timers recompute from the start anchor with elapsed time
// floored to whole seconds and the result clamped at zero; paused timers
// report the frozen remaining value, falling back to the full phase length
// if it was never set.
func TimeLeft(st model.TimerState, d Durations, now time.Time) int {
	length := d.PhaseLength(st.IsResting, st.IsLongBreak)
	if st.IsRunning && st.StartTime != nil {
		elapsed := int(now.Sub(*st.StartTime).Seconds())
		if remaining := length - elapsed; remaining > 0 {
			return remaining
		}
		return 0
	}
	if st.RemainingTime != nil {
		if *st.RemainingTime < 0 {
			return 0
		}
		return *st.RemainingTime
	}
	return length
}

// Toggle flips the timer between running and paused. Pausing freezes the
// remaining seconds; resuming converts them back into a synthetic start
// anchor placed (phaseLength - remaining) seconds in the past, so a later
// read recomputes the same countdown.
func Toggle(st model.TimerState, d Durations, now time.Time) model.TimerState {
	if st.IsRunning {
		remaining := TimeLeft(st, d, now)
		st.IsRunning = false
		st.StartTime = nil
		st.RemainingTime = &remaining
		return st
	}

	length := d.PhaseLength(st.IsResting, st.IsLongBreak)
	remaining := length
	if st.RemainingTime != nil {
		remaining = *st.RemainingTime
	}
	anchor := now.Add(-time.Duration(length-remaining) * time.Second)
	st.IsRunning = true
	st.StartTime = &anchor
	st.RemainingTime = nil
	return st
}

// Reset returns the timer to the initial state: paused at the start of a
// work phase with the pomodoro counter cleared. It is a full reset, not a
// restart of the current phase.
func Reset(st model.TimerState, d Durations) model.TimerState {
	remaining := d.Work
	st.IsRunning = false
	st.IsResting = false
	st.IsLongBreak = false
	st.CompletedPomodoros = 0
	st.StartTime = nil
	st.RemainingTime = &remaining
	return st
}

// Advance moves to the next phase, for both skip and finish. Leaving a work
// phase increments the pomodoro counter and schedules a long break when the
// counter hits a multiple of the cadence interval; leaving a rest phase
// clears the long-break flag. The new phase always starts paused at its
// full length.
func Advance(st model.TimerState, d Durations, c Cadence) model.TimerState {
	if st.IsResting {
		st.IsResting = false
		st.IsLongBreak = false
	} else {
		st.IsResting = true
		st.CompletedPomodoros++
		st.IsLongBreak = c.Enabled && c.Interval > 0 && st.CompletedPomodoros%c.Interval == 0
	}

	remaining := d.PhaseLength(st.IsResting, st.IsLongBreak)
	st.IsRunning = false
	st.StartTime = nil
	st.RemainingTime = &remaining
	return st
}

// Apply runs one transition. The action must have been validated with
// ParseAction; an unknown action leaves the state untouched.
func Apply(action Action, st model.TimerState, d Durations, c Cadence, now time.Time) model.TimerState {
	switch action {
	case ActionToggle:
		return Toggle(st, d, now)
	case ActionReset:
		return Reset(st, d)
	case ActionSkip, ActionFinish:
		return Advance(st, d, c)
	}
	return st
}
