package model

import "time"

const (
	DefaultPomodoroMinutes  = 25
	DefaultBreakMinutes     = 5
	DefaultLongBreakMinutes = 15
	DefaultLongBreakEvery   = 4

	DefaultNotificationSound = "https://commondatastorage.googleapis.com/codeskulptor-demos/riceracer_assets/music/start.ogg"
)

// TimerState is the single per-user timer row. Exactly one of StartTime and
// RemainingTime is set: StartTime while running (the anchor elapsed time is
// computed from), RemainingTime while paused (the frozen countdown).
type TimerState struct {
	UserID             string     `json:"userId"`
	IsRunning          bool       `json:"isRunning"`
	IsResting          bool       `json:"isResting"`
	IsLongBreak        bool       `json:"isLongBreak"`
	CompletedPomodoros int        `json:"completedPomodoros"`
	StartTime          *time.Time `json:"startTime"`
	RemainingTime      *int       `json:"remainingTime"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// TimerSettings holds per-user durations (minutes) and presentation
// preferences. NotificationSound and Mute are opaque to the timer engine.
type TimerSettings struct {
	UserID            string    `json:"userId"`
	PomodoroDuration  int       `json:"pomodoroDuration"`
	BreakDuration     int       `json:"breakDuration"`
	LongBreakDuration int       `json:"longBreakDuration"`
	LongBreakInterval int       `json:"longBreakInterval"`
	EnableLongBreak   bool      `json:"enableLongBreak"`
	NotificationSound string    `json:"notificationSound"`
	Mute              bool      `json:"mute"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

func DefaultTimerSettings(userID string, now time.Time) TimerSettings {
	return TimerSettings{
		UserID:            userID,
		PomodoroDuration:  DefaultPomodoroMinutes,
		BreakDuration:     DefaultBreakMinutes,
		LongBreakDuration: DefaultLongBreakMinutes,
		LongBreakInterval: DefaultLongBreakEvery,
		EnableLongBreak:   true,
		NotificationSound: DefaultNotificationSound,
		Mute:              false,
		UpdatedAt:         now,
	}
}
