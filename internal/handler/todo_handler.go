package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"focustodo/backend/internal/middleware"
	"focustodo/backend/internal/service"
)

type TodoHandler struct {
	todoService *service.TodoService
}

type createTodoRequest struct {
	Title string `json:"title"`
}

type updateTodoRequest struct {
	Title     *string `json:"title"`
	Completed *bool   `json:"completed"`
}

type reorderTodosRequest struct {
	IDs []string `json:"ids"`
}

func NewTodoHandler(todoService *service.TodoService) *TodoHandler {
	return &TodoHandler{todoService: todoService}
}

func (h *TodoHandler) List(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == "" {
		writeUnauthorized(c)
		return
	}

	todos, apiErr := h.todoService.List(c.Request.Context(), userID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"todos": todos})
}

func (h *TodoHandler) Create(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == "" {
		writeUnauthorized(c)
		return
	}

	var req createTodoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}

	todo, apiErr := h.todoService.Create(c.Request.Context(), userID, req.Title)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusCreated, todo)
}

func (h *TodoHandler) Get(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == "" {
		writeUnauthorized(c)
		return
	}

	todo, apiErr := h.todoService.Get(c.Request.Context(), userID, c.Param("id"))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, todo)
}

func (h *TodoHandler) Update(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == "" {
		writeUnauthorized(c)
		return
	}

	var req updateTodoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}

	todo, apiErr := h.todoService.Update(c.Request.Context(), userID, c.Param("id"), service.TodoPatch{
		Title:     req.Title,
		Completed: req.Completed,
	})
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, todo)
}

func (h *TodoHandler) Delete(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == "" {
		writeUnauthorized(c)
		return
	}

	if apiErr := h.todoService.Delete(c.Request.Context(), userID, c.Param("id")); apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "todo deleted"})
}

func (h *TodoHandler) Reorder(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == "" {
		writeUnauthorized(c)
		return
	}

	var req reorderTodosRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}

	if apiErr := h.todoService.Reorder(c.Request.Context(), userID, req.IDs); apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "todos reordered"})
}
