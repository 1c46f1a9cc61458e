package main

import (
	"log"

	"github.com/joho/godotenv"

	"focustodo/backend/internal/config"
	"focustodo/backend/internal/db"
	"focustodo/backend/internal/handler"
	"focustodo/backend/internal/repository"
	"focustodo/backend/internal/router"
	"focustodo/backend/internal/service"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	database, err := db.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer database.Close()

	if err := db.RunMigrations(database, cfg.MigrationsDir); err != nil {
		log.Fatalf("run migrations: %v", err)
	}

	userRepo := repository.NewUserRepository(database)
	timerRepo := repository.NewTimerRepository(database)
	todoRepo := repository.NewTodoRepository(database)

	authService := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.TokenTTL)
	timerService := service.NewTimerService(timerRepo)
	todoService := service.NewTodoService(todoRepo)

	authHandler := handler.NewAuthHandler(authService)
	timerHandler := handler.NewTimerHandler(timerService)
	todoHandler := handler.NewTodoHandler(todoService)

	engine := router.New(authService, authHandler, timerHandler, todoHandler, cfg.CORSOrigins)
	log.Printf("backend listening on :%s", cfg.Port)
	if err := engine.Run(":" + cfg.Port); err != nil {
		log.Fatalf("run server: %v", err)
	}
}
