package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coldreach/coldreach/internal/assignment"
	"github.com/coldreach/coldreach/internal/auth"
	"github.com/coldreach/coldreach/internal/blob"
	"github.com/coldreach/coldreach/internal/config"
	"github.com/coldreach/coldreach/internal/database"
	"github.com/coldreach/coldreach/internal/dispatch"
	"github.com/coldreach/coldreach/internal/mail"
	"github.com/coldreach/coldreach/internal/metrics"
	"github.com/coldreach/coldreach/internal/ratelimit"
	"github.com/coldreach/coldreach/internal/recruiter"
	"github.com/coldreach/coldreach/internal/resume"
	"github.com/coldreach/coldreach/internal/schedule"
	"github.com/coldreach/coldreach/internal/store/postgres"
	"github.com/coldreach/coldreach/internal/template"
	"github.com/coldreach/coldreach/internal/web"
	"github.com/coldreach/coldreach/internal/web/handlers"
	"github.com/coldreach/coldreach/internal/worker"
	"github.com/coldreach/coldreach/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Database
	db, err := postgres.NewDB(cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Migrations
	if err := database.RunMigrations(migrations.FS, cfg.DatabaseURL); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Stores
	userStore := postgres.NewUserStore(db)
	sessionStore := postgres.NewSessionStore(db)
	recruiterStore := postgres.NewRecruiterStore(db)
	templateStore := postgres.NewTemplateStore(db)
	assignmentStore := postgres.NewAssignmentStore(db)
	scheduledEmailStore := postgres.NewScheduledEmailStore(db)
	resumeStore := postgres.NewResumeStore(db)

	// Blob storage for resumes
	blobStore, err := blob.NewFilesystemStore(cfg.BlobRoot)
	if err != nil {
		slog.Error("failed to open blob store", "error", err)
		os.Exit(1)
	}

	// Services
	authService := auth.NewService(userStore, sessionStore, cfg.SessionMaxAgeHours)
	recruiterService := recruiter.NewService(recruiterStore)
	templateService := template.NewService(templateStore)
	assignmentService := assignment.NewService(assignmentStore, recruiterStore, templateStore)
	scheduleService := schedule.NewService(scheduledEmailStore, recruiterStore, templateStore, userStore)
	resumeService := resume.NewService(resumeStore, blobStore)

	// Mail gateway
	var gateway mail.Gateway
	switch cfg.MailProvider {
	case "resend":
		gateway = mail.NewResendGateway(cfg.ResendAPIKey, cfg.MailFrom)
	default:
		gateway = mail.NewSMTPGateway(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom)
	}

	// Dispatcher
	metrics.Register()
	runTimeout, err := time.ParseDuration(cfg.DispatchRunTimeout)
	if err != nil {
		slog.Error("invalid DISPATCH_RUN_TIMEOUT", "error", err)
		os.Exit(1)
	}
	interval, err := time.ParseDuration(cfg.DispatchInterval)
	if err != nil {
		slog.Error("invalid DISPATCH_INTERVAL", "error", err)
		os.Exit(1)
	}

	poolCtx, poolCancel := context.WithCancel(context.Background())
	defer poolCancel()
	pool := worker.NewPool(poolCtx, cfg.DispatchWorkers, cfg.DispatchQueueSize)

	dispatcher := dispatch.New(
		userStore,
		scheduledEmailStore,
		recruiterStore,
		assignmentService,
		resumeService,
		gateway,
		pool,
		dispatch.Config{
			SendRatePerSec: cfg.SendRatePerSec,
			SendBurst:      cfg.SendBurst,
			RunTimeout:     runTimeout,
		},
	)
	if err := dispatcher.Start(interval); err != nil {
		slog.Error("failed to start dispatcher", "error", err)
		os.Exit(1)
	}

	// Rate limiter
	limiter := ratelimit.NewLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	// Handlers
	authHandler := handlers.NewAuthHandler(authService)
	recruiterHandler := handlers.NewRecruiterHandler(recruiterService)
	templateHandler := handlers.NewTemplateHandler(templateService)
	assignmentHandler := handlers.NewAssignmentHandler(assignmentService)
	scheduleHandler := handlers.NewScheduleHandler(scheduleService)
	resumeHandler := handlers.NewResumeHandler(resumeService)

	// Router
	router := web.NewRouter(web.RouterDeps{
		AuthHandler:       authHandler,
		RecruiterHandler:  recruiterHandler,
		TemplateHandler:   templateHandler,
		AssignmentHandler: assignmentHandler,
		ScheduleHandler:   scheduleHandler,
		ResumeHandler:     resumeHandler,
		AuthService:       authService,
		Limiter:           limiter,
	})

	// Session cleanup goroutine
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			if err := sessionStore.DeleteExpiredSessions(context.Background()); err != nil {
				slog.Error("failed to clean up expired sessions", "error", err)
			}
		}
	}()

	// Server
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("ColdReach starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	slog.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
	}

	dispatcher.Stop()
	pool.Stop()
	limiter.Stop()
}
