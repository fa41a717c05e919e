package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flashdeck-backend/internal/config"
	"flashdeck-backend/internal/database"
	"flashdeck-backend/internal/handlers"
	"flashdeck-backend/internal/middleware"
	"flashdeck-backend/internal/repository"
	"flashdeck-backend/internal/router"
	"flashdeck-backend/internal/services"
	"flashdeck-backend/internal/study"
)

func main() {
	log.Println("🚀 Starting Flashdeck Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("✗ PostgreSQL connection failed: %v", err)
	}
	defer pool.Close()
	log.Println("✓ PostgreSQL connected")

	// ──── Step 3: Initialize Redis Client ────
	redisClient, err := database.NewRedisClient(cfg.RedisURL)
	if err != nil {
		log.Fatalf("✗ Redis connection failed: %v", err)
	}
	defer redisClient.Close()
	log.Println("✓ Redis connected")

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(pool, "migrations"); err != nil {
		log.Fatalf("✗ Database migration failed: %v", err)
	}
	log.Println("✓ Database migrations applied")

	// ──── Initialize Repositories ────
	userRepo := repository.NewUserRepo(pool)
	deckRepo := repository.NewDeckRepo(pool)
	cardRepo := repository.NewCardRepo(pool)

	// ──── Step 5: Initialize Gemini Client ────
	geminiGenerator, err := services.NewGeminiGenerator(cfg.GeminiAPIKey)
	if err != nil {
		log.Fatalf("✗ Gemini client initialization failed: %v", err)
	}
	defer geminiGenerator.Close()
	log.Println("✓ Gemini Flash client initialized")

	// ──── Initialize Services ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	viewCache := services.NewRedisViewCache(redisClient)
	authService := services.NewAuthService(userRepo, redisClient, jwtAuth)
	deckService := services.NewDeckService(deckRepo, cardRepo, viewCache)
	generationService := services.NewGenerationService(geminiGenerator, deckRepo, cardRepo, viewCache, cfg.GeminiConcurrentReqs)

	// ──── Step 6: Start Study Session Manager ────
	sessionManager := study.NewManager(
		time.Duration(cfg.StudyAutoAdvanceMS)*time.Millisecond,
		time.Duration(cfg.StudySessionTTLMin)*time.Minute,
	)
	log.Println("✓ Study session manager started")

	// ──── Initialize Handlers ────
	authHandler := handlers.NewAuthHandler(authService)
	deckHandler := handlers.NewDeckHandler(deckService)
	cardHandler := handlers.NewCardHandler(deckService)
	generateHandler := handlers.NewGenerateHandler(generationService)
	studyHandler := handlers.NewStudyHandler(deckService, sessionManager)
	dashboardHandler := handlers.NewDashboardHandler(pool)
	userHandler := handlers.NewUserHandler(userRepo, authService)

	// ──── Step 7: Start HTTP Server ────
	r := router.New(
		jwtAuth,
		authHandler,
		deckHandler,
		cardHandler,
		generateHandler,
		studyHandler,
		dashboardHandler,
		userHandler,
		cfg.FrontendURL,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ Flashdeck Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
