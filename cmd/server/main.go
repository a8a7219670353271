package main

import (
	"fmt"
	"html/template"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"taskboard/internal/config"
	"taskboard/internal/database"
	"taskboard/internal/handlers"
	"taskboard/internal/repository"
	"taskboard/internal/service"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database with config (supports sqlite, postgres, mysql)
	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	log.Printf("Database connection established (type: %s)", cfg.DatabaseType)

	// Run migrations
	if err := db.RunMigrations(cfg.MigrationsPath); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	log.Println("Migrations completed successfully")

	// Load templates
	templates, err := loadTemplates(cfg.TemplatesPath)
	if err != nil {
		log.Fatalf("Failed to load templates: %v", err)
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	attemptRepo := repository.NewAttemptRepository(db)

	// Initialize services
	authService := service.NewAuthService(userRepo, cfg.ForcedRoles, cfg.SessionDuration)
	rosterService := service.NewRosterService(userRepo)
	taskService := service.NewTaskService(taskRepo, rosterService)
	resultService := service.NewResultService(attemptRepo)

	emailService, err := service.NewEmailService(cfg.AWSRegion, cfg.SESFromEmail, cfg.SESFromName, cfg.AppBaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize email service: %v", err)
	}

	oauthProviders := map[string]*handlers.OAuthProvider{}
	if cfg.GoogleClientID != "" {
		oauthProviders["google"] = handlers.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.OAuthRedirectBaseURL)
	}
	if cfg.AppleClientID != "" {
		oauthProviders["apple"] = handlers.NewAppleProvider(cfg.AppleClientID, cfg.AppleClientSecret, cfg.OAuthRedirectBaseURL)
	}

	// Initialize handlers
	middleware := handlers.NewMiddleware(authService)
	authHandler := handlers.NewAuthHandler(authService, emailService, templates, oauthProviders)
	guardianHandler := handlers.NewGuardianHandler(taskService, rosterService, resultService, emailService, templates, middleware)
	learnerHandler := handlers.NewLearnerHandler(taskService, resultService, templates)

	// Setup routes
	mux := http.NewServeMux()

	// Static files, including the embeddable task content under /static/tasks
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.StaticFilesPath))))

	// Public routes
	mux.HandleFunc("GET /", authHandler.Home)
	mux.HandleFunc("GET /login", authHandler.ShowLogin)
	mux.HandleFunc("POST /login", middleware.RateLimit(authHandler.Login))
	mux.HandleFunc("GET /register", authHandler.ShowRegister)
	mux.HandleFunc("POST /register", middleware.RateLimit(authHandler.Register))
	mux.HandleFunc("POST /logout", authHandler.Logout)
	mux.HandleFunc("GET /auth/{provider}/start", authHandler.StartOAuth)
	mux.HandleFunc("GET /auth/{provider}/callback", authHandler.OAuthCallback)
	// Apple posts its callback when identity scopes are requested
	mux.HandleFunc("POST /auth/{provider}/callback", authHandler.OAuthCallback)

	// Guardian routes
	mux.HandleFunc("GET /guardian/dashboard", middleware.RequireGuardian(guardianHandler.Dashboard))
	mux.HandleFunc("POST /guardian/tasks/create", middleware.RequireGuardian(middleware.CSRFProtect(guardianHandler.CreateTask)))
	mux.HandleFunc("POST /guardian/tasks/{id}/update", middleware.RequireGuardian(middleware.CSRFProtect(guardianHandler.UpdateTask)))
	mux.HandleFunc("POST /guardian/tasks/{id}/delete", middleware.RequireGuardian(middleware.CSRFProtect(guardianHandler.DeleteTask)))

	// Learner routes
	mux.HandleFunc("GET /learner/dashboard", middleware.RequireLearner(learnerHandler.Dashboard))
	mux.HandleFunc("GET /learner/tasks/{id}", middleware.RequireLearner(learnerHandler.ShowTask))
	mux.HandleFunc("POST /learner/tasks/{id}/result", middleware.RequireLearner(learnerHandler.SubmitResult))

	// Wrap with logging middleware
	handler := handlers.Logging(mux)

	// Start server
	addr := ":" + cfg.ServerPort
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start background session cleanup
	go cleanupExpiredSessions(authService)

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on http://localhost%s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
}

// loadTemplates loads all template files
func loadTemplates(templatesPath string) (*template.Template, error) {
	files, err := filepath.Glob(filepath.Join(templatesPath, "*.tmpl"))
	if err != nil {
		return nil, fmt.Errorf("failed to glob templates: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no templates found in %s", templatesPath)
	}

	funcMap := template.FuncMap{
		"formatMillis": func(ms int64) string {
			return time.UnixMilli(ms).Format("Jan 2, 2006 15:04")
		},
		"join": strings.Join,
	}

	tmpl, err := template.New("").Funcs(funcMap).ParseFiles(files...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	return tmpl, nil
}

// cleanupExpiredSessions periodically removes expired sessions
func cleanupExpiredSessions(authService *service.AuthService) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		if err := authService.CleanupExpiredSessions(); err != nil {
			log.Printf("Error cleaning up expired sessions: %v", err)
		} else {
			log.Println("Expired sessions cleaned up")
		}
	}
}
