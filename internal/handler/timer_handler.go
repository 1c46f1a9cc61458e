package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"focustodo/backend/internal/middleware"
	"focustodo/backend/internal/service"
)

type TimerHandler struct {
	timerService *service.TimerService
}

// timerActionRequest mirrors the client payload. IsLongBreak and
// CompletedPomodoros are accepted for wire compatibility but the persisted
// state is authoritative for both.
type timerActionRequest struct {
	Action             string `json:"action"`
	PomodoroDuration   int    `json:"pomodoroDuration"`
	BreakDuration      int    `json:"breakDuration"`
	LongBreakDuration  int    `json:"longBreakDuration"`
	IsLongBreak        bool   `json:"isLongBreak"`
	CompletedPomodoros int    `json:"completedPomodoros"`
}

type timerSettingsRequest struct {
	PomodoroDuration  *int    `json:"pomodoroDuration"`
	BreakDuration     *int    `json:"breakDuration"`
	LongBreakDuration *int    `json:"longBreakDuration"`
	LongBreakInterval *int    `json:"longBreakInterval"`
	EnableLongBreak   *bool   `json:"enableLongBreak"`
	NotificationSound *string `json:"notificationSound"`
	Mute              *bool   `json:"mute"`
}

func NewTimerHandler(timerService *service.TimerService) *TimerHandler {
	return &TimerHandler{timerService: timerService}
}

func (h *TimerHandler) GetState(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == "" {
		writeUnauthorized(c)
		return
	}

	snapshot, apiErr := h.timerService.GetSnapshot(c.Request.Context(), userID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

func (h *TimerHandler) ApplyAction(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == "" {
		writeUnauthorized(c)
		return
	}

	var req timerActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}

	snapshot, apiErr := h.timerService.ApplyAction(c.Request.Context(), userID, service.ActionInput{
		Action:            req.Action,
		PomodoroDuration:  req.PomodoroDuration,
		BreakDuration:     req.BreakDuration,
		LongBreakDuration: req.LongBreakDuration,
	})
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

func (h *TimerHandler) GetSettings(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == "" {
		writeUnauthorized(c)
		return
	}

	settings, apiErr := h.timerService.GetSettings(c.Request.Context(), userID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (h *TimerHandler) UpdateSettings(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == "" {
		writeUnauthorized(c)
		return
	}

	var req timerSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}

	settings, apiErr := h.timerService.UpdateSettings(c.Request.Context(), userID, service.SettingsPatch{
		PomodoroDuration:  req.PomodoroDuration,
		BreakDuration:     req.BreakDuration,
		LongBreakDuration: req.LongBreakDuration,
		LongBreakInterval: req.LongBreakInterval,
		EnableLongBreak:   req.EnableLongBreak,
		NotificationSound: req.NotificationSound,
		Mute:              req.Mute,
	})
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, settings)
}
