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

	"github.com/tutorbridge/backend/internal/api"
	"github.com/tutorbridge/backend/internal/config"
	"github.com/tutorbridge/backend/internal/database"
	"github.com/tutorbridge/backend/internal/events"
	"github.com/tutorbridge/backend/internal/google"
	"github.com/tutorbridge/backend/internal/jobs"
	"github.com/tutorbridge/backend/internal/meeting"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Get underlying SQL database for cleanup
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get database connection: %v", err)
	}
	defer sqlDB.Close()

	// Run migrations
	if err := database.RunMigrations(cfg.Database); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize event stream hub
	hub := events.NewHub(cfg.JWTSecret, cfg.CORSOrigins)
	go hub.Run()

	// Initialize Google clients and meeting services
	oauthClient := google.NewOAuthClient(cfg.Google)
	calendarClient := google.NewCalendarClient(cfg.Google, oauthClient)

	oauthService := meeting.NewOAuthService(db, oauthClient, cfg.FrontendURL)
	permanentService := meeting.NewPermanentLinkService(db, calendarClient, hub)
	adhocService := meeting.NewAdHocService(db, calendarClient)

	// Initialize job scheduler
	scheduler := jobs.NewScheduler(permanentService, adhocService)
	scheduler.Start()
	defer scheduler.Stop()

	// Setup API router
	router := api.NewRouter(cfg, db, hub, api.Services{
		OAuth:     oauthService,
		Permanent: permanentService,
		AdHoc:     adhocService,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on port %d", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
