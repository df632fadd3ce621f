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

	"enrolldesk-backend/internal/config"
	"enrolldesk-backend/internal/database"
	"enrolldesk-backend/internal/handlers"
	"enrolldesk-backend/internal/middleware"
	"enrolldesk-backend/internal/moodle"
	"enrolldesk-backend/internal/repository"
	"enrolldesk-backend/internal/router"
	"enrolldesk-backend/internal/services"
	"enrolldesk-backend/internal/websocket"
	"enrolldesk-backend/internal/worker"
)

func main() {
	log.Println("🚀 Starting EnrollDesk Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Initialize MongoDB ────
	db, err := database.NewMongo(cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Fatalf("✗ MongoDB connection failed: %v", err)
	}
	defer db.Close()
	log.Println("✓ MongoDB connected")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.EnsureIndexes(ctx); err != nil {
		cancel()
		log.Fatalf("✗ MongoDB index setup failed: %v", err)
	}
	cancel()
	log.Println("✓ MongoDB indexes ensured")

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(cfg.RedisURL)
	if err != nil {
		log.Fatalf("✗ Redis connection failed: %v", err)
	}
	defer redisClients.Close()
	log.Println("✓ Redis connected")

	// ──── Initialize Repositories ────
	userRepo := repository.NewUserRepo(db.DB)
	activityRepo := repository.NewActivityRepo(db.DB)
	suspensionRepo := repository.NewSuspensionRepo(db.DB)
	dashboardRepo := repository.NewDashboardRepo(db.DB)

	// ──── Step 4: Initialize Moodle Client ────
	moodleClient := moodle.NewClient(cfg.MoodleURL, cfg.MoodleToken)
	searcher := moodle.NewSearcher(moodleClient, cfg.MoodleMaxUserID, cfg.MoodleScanBatch)
	log.Println("✓ Moodle client initialized")

	// ──── Initialize Services ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	authService := services.NewAuthService(userRepo, redisClients.Queue, jwtAuth)
	studentService := services.NewStudentService(moodleClient, searcher, activityRepo, suspensionRepo, cfg.DefaultRoleID)
	syncService := services.NewSyncService(
		moodleClient,
		searcher,
		dashboardRepo,
		suspensionRepo,
		redisClients.Queue,
		cfg.SyncBatchWidth,
		time.Duration(cfg.SyncBatchPauseMs)*time.Millisecond,
		cfg.ExcludedCourseName,
	)

	// First-run admin seed
	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		seedCtx, seedCancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := authService.EnsureSeedAdmin(seedCtx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			log.Printf("⚠ Admin seed failed: %v", err)
		}
		seedCancel()
	}

	// ──── Initialize Handlers ────
	authHandler := handlers.NewAuthHandler(authService)
	studentHandler := handlers.NewStudentHandler(studentService, activityRepo, userRepo, cfg.MoodleSearchLimit)
	courseHandler := handlers.NewCourseHandler(moodleClient, studentService, suspensionRepo, userRepo)
	activityHandler := handlers.NewActivityHandler(activityRepo)
	dashboardHandler := handlers.NewDashboardHandler(dashboardRepo, syncService)

	// ──── Step 5: Start Sync Worker ────
	workerPool := worker.NewPool(redisClients.Queue, syncService, 1)
	workerPool.Start()
	log.Println("✓ Sync worker started")

	// ──── Step 6: Start WebSocket Hub ────
	wsHub := websocket.NewHub(redisClients.PubSub, jwtAuth, services.SyncChannel)
	log.Println("✓ WebSocket hub started")

	// ──── Step 7: Start HTTP Server ────
	r := router.New(
		jwtAuth,
		authHandler,
		studentHandler,
		courseHandler,
		activityHandler,
		dashboardHandler,
		wsHub,
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
		workerPool.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ EnrollDesk Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
