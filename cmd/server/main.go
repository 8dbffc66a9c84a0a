package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/hibiken/asynq"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	config "github.com/maheshrc27/postreview/configs"
	"github.com/maheshrc27/postreview/internal/api"
	"github.com/maheshrc27/postreview/internal/api/handlers"
	"github.com/maheshrc27/postreview/internal/api/middleware"
	job "github.com/maheshrc27/postreview/internal/jobs"
	"github.com/maheshrc27/postreview/internal/queue"
	"github.com/maheshrc27/postreview/internal/realtime"
	"github.com/maheshrc27/postreview/internal/repository"
	"github.com/maheshrc27/postreview/internal/service"
	"github.com/maheshrc27/postreview/internal/storage"
	"github.com/maheshrc27/postreview/pkg/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	zlog, err := logger.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zlog.Sync()
	zap.ReplaceGlobals(zlog)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
	if err != nil {
		zlog.Fatal("database is unreachable", zap.Error(err))
	}
	defer closeDB(db, zlog)

	hub := realtime.NewHub(zlog)
	if err := hub.ListenPostgres(ctx, cfg.DatabaseURL); err != nil {
		zlog.Fatal("listen for table changes", zap.Error(err))
	}

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	client := asynq.NewClient(redisConn)
	defer client.Close()

	blobs, err := storage.NewR2Store(ctx, cfg.Storage)
	if err != nil {
		zlog.Fatal("configure storage", zap.Error(err))
	}

	userRepo := repository.NewUserRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	representativeRepo := repository.NewRepresentativeRepository(db)
	postRepo := repository.NewPostRepository(db)
	feedbackRepo := repository.NewFeedbackRepository(db)

	frontend := strings.TrimRight(cfg.FrontendURL, "/")
	authService := service.NewAuthService(db, userRepo, profileRepo, queue.NewClient(client), service.AuthConfig{
		Secret:      cfg.JWTSecret,
		SessionTTL:  cfg.SessionTTL,
		SignInRate:  rate.Limit(cfg.SignInRate),
		SignInBurst: cfg.SignInBurst,
		ConfirmURL:  strings.TrimRight(cfg.APIURL, "/") + "/auth/confirm",
		ResetURL:    frontend + "/reset-password",
	}, zlog.Named("auth"))

	workspaces := service.NewWorkspaces(service.WorkspaceDeps{
		Auth:       authService,
		Reps:       representativeRepo,
		Posts:      postRepo,
		Feedback:   feedbackRepo,
		Subscriber: hub,
		Logger:     zlog.Named("workspace"),
	})
	uploadService := service.NewUploadService(blobs, zlog.Named("upload"))
	profileService := service.NewProfileService(profileRepo, representativeRepo, userRepo, blobs, authService, zlog.Named("profile"))

	app := fiber.New(fiber.Config{
		ReadTimeout:  30 * time.Second,
		BodyLimit:    30 * 1024 * 1024, // 30 MB
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var ferr *fiber.Error
			if errors.As(err, &ferr) {
				code = ferr.Code
			}
			zlog.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(middleware.RequestLogger(zlog.Named("http")))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.FrontendURL,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, apikey",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	app.Get("/healthz", func(c *fiber.Ctx) error {
		if err := db.PingContext(c.UserContext()); err != nil {
			return c.SendStatus(fiber.StatusServiceUnavailable)
		}
		return c.SendStatus(fiber.StatusOK)
	})

	authMiddleware := middleware.NewAuthMiddleware(*cfg, workspaces, zlog.Named("auth"))
	api.Register(app, authMiddleware, api.Handlers{
		Auth:     handlers.NewAuthHandler(*cfg, workspaces, authService, zlog.Named("auth")),
		Posts:    handlers.NewPostHandler(zlog.Named("posts")),
		Uploads:  handlers.NewUploadHandler(uploadService, zlog.Named("upload")),
		Settings: handlers.NewSettingsHandler(*cfg, profileService),
	})

	// cron jobs
	sessionJob := job.NewSessionJob(authService, workspaces, zlog.Named("job"))

	c := cron.New()
	if err := c.AddFunc("@every 1m", sessionJob.ExpireSessions); err != nil {
		zlog.Fatal("schedule session expiry", zap.Error(err))
	}
	if err := c.AddFunc("@every 5m", sessionJob.Resync); err != nil {
		zlog.Fatal("schedule resync", zap.Error(err))
	}
	c.Start()

	//queue
	var mailer queue.Mailer = queue.NewLogMailer(zlog.Named("mail"))
	if cfg.Mail.SendGridAPIKey != "" {
		mailer = queue.NewSendGridMailer(cfg.Mail.SendGridAPIKey, cfg.Mail.From, cfg.Mail.FromName)
	}
	queueW := queue.NewQueue(mailer, zlog.Named("queue"))

	server := asynq.NewServer(redisConn, asynq.Config{
		Concurrency: 5,
	})
	go func() {
		mux := asynq.NewServeMux()
		queueW.Register(mux)

		zlog.Info("starting the asynq server")
		if err := server.Run(mux); err != nil {
			zlog.Fatal("could not start asynq server", zap.Error(err))
		}
	}()

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			zlog.Fatal("failed to start server", zap.Error(err))
		}
	}()
	zlog.Info("server is running", zap.String("port", cfg.Port))

	gracefulShutdown(zlog, app, func() {
		c.Stop()
		server.Shutdown()
		workspaces.Close()
		stop()
		hub.Close()
	})
}

func closeDB(db *sqlx.DB, zlog *zap.Logger) {
	if err := db.Close(); err != nil {
		zlog.Error("failed to close database", zap.Error(err))
		return
	}
	zlog.Info("database connection closed")
}

func gracefulShutdown(zlog *zap.Logger, app *fiber.App, cleanup func()) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	zlog.Info("shutting down server")

	cleanup()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		zlog.Error("failed to shut down server", zap.Error(err))
	}

	zlog.Info("server shutdown complete")
}
