package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"focustodo/backend/internal/handler"
	"focustodo/backend/internal/middleware"
	"focustodo/backend/internal/service"
)

func New(
	authService *service.AuthService,
	authHandler *handler.AuthHandler,
	timerHandler *handler.TimerHandler,
	todoHandler *handler.TodoHandler,
	corsOrigins []string,
) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Logger(), gin.Recovery(), middleware.CORS(corsOrigins))

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := engine.Group("/api")
	auth := api.Group("/auth")
	auth.POST("/signup", authHandler.Register)
	auth.POST("/signin", authHandler.Login)

	timer := api.Group("/timer")
	timer.Use(middleware.Auth(authService))
	timer.GET("", timerHandler.GetState)
	timer.POST("", timerHandler.ApplyAction)
	timer.GET("/settings", timerHandler.GetSettings)
	timer.POST("/settings", timerHandler.UpdateSettings)

	todos := api.Group("/todos")
	todos.Use(middleware.Auth(authService))
	todos.GET("", todoHandler.List)
	todos.POST("", todoHandler.Create)
	todos.PATCH("/reorder", todoHandler.Reorder)
	todos.GET("/:id", todoHandler.Get)
	todos.PATCH("/:id", todoHandler.Update)
	todos.DELETE("/:id", todoHandler.Delete)

	return engine
}
