package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grader/internal/action"
	"github.com/noah-isme/gema-grader/internal/archive"
	"github.com/noah-isme/gema-grader/internal/config"
	"github.com/noah-isme/gema-grader/internal/database"
	"github.com/noah-isme/gema-grader/internal/handin"
	"github.com/noah-isme/gema-grader/internal/handler"
	"github.com/noah-isme/gema-grader/internal/middleware"
	"github.com/noah-isme/gema-grader/internal/process"
	"github.com/noah-isme/gema-grader/internal/repository"
	"github.com/noah-isme/gema-grader/internal/router"
	"github.com/noah-isme/gema-grader/internal/service"
	"github.com/noah-isme/gema-grader/internal/session"
	"github.com/noah-isme/gema-grader/internal/workspace"
	"github.com/noah-isme/gema-grader/pkg/docker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if err := cfg.RequireServer(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	// Activity fan-out is optional; the grader works without either transport.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(context.Background(), cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Close()
	}

	executor, err := docker.NewDockerExecutor(docker.Config{
		Host:          cfg.DockerHost,
		Timeout:       cfg.ExecutionTimeout,
		MemoryLimitMB: int64(cfg.SandboxMemoryMB),
		CPUShares:     int64(cfg.SandboxCPUShares),
		Logger:        logger,
	})
	if err != nil {
		log.Fatalf("failed to create docker client: %v", err)
	}
	defer executor.Close()

	workspaces := workspace.NewManager(cfg.WorkspaceRoot, logger)
	unarchiver := handin.NewUnarchiver(
		archive.NewFormatAccessor(logger),
		handin.NewLocator(),
		workspaces,
		handin.NewLogDiagnosticSink(logger),
		logger,
	)

	runner := process.NewShellRunner(cfg.Shell, process.TerminalConfig{
		Program:   cfg.Terminal.Program,
		TitleFlag: cfg.Terminal.TitleFlag,
		ExecFlag:  cfg.Terminal.ExecFlag,
	}, logger)

	env := action.Environment{
		Unarchiver:     unarchiver,
		Workspaces:     workspaces,
		Runner:         runner,
		Printer:        action.NewLPRPrinter(runner, logger),
		Docker:         executor,
		Editor:         cfg.Editor,
		DefaultPrinter: cfg.Printer,
		Logger:         logger,
	}

	sessions := newSessionManager(cfg, logger)
	if sessions != nil {
		env.Sessions = sessions
		defer sessions.Close()
	}

	registry, err := action.NewDefaultRegistry(env)
	if err != nil {
		log.Fatalf("failed to register actions: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	groupRepo := repository.NewGroupRepository(db)
	partRepo := repository.NewPartRepository(db)
	eventRepo := repository.NewGradableEventRepository(db)
	extensionRepo := repository.NewExtensionRepository(db)
	gradeRepo := repository.NewGradeRepository(db)

	publisher := service.NewActivityPublisher(redisClient, natsConn, cfg.ChannelBase, logger)
	gradingService := service.NewGradingService(partRepo, groupRepo, registry, unarchiver, publisher, logger)
	deadlineService := service.NewDeadlineService(eventRepo, groupRepo, extensionRepo, gradeRepo, handin.NewLocator(), logger)

	gradingHandler := handler.NewGradingHandler(gradingService, deadlineService, validate, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		GradingHandler: gradingHandler,
		JWTMiddleware:  middleware.JWTProtected(cfg.JWTSecret),
		RateLimiter:    middleware.ActionRateLimit("actions", cfg.ActionRateLimit, cfg.ActionRateWindow),
		HealthProbes:   healthProbes(executor, redisClient, natsConn),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func newSessionManager(cfg config.Config, logger zerolog.Logger) *session.Manager {
	switch {
	case cfg.SessionURL != "":
		return session.NewManager(session.WebSocketDialer{URL: cfg.SessionURL, HandshakeTimeout: 5 * time.Second}, logger)
	case cfg.SessionProgram != "":
		return session.NewManager(session.ProcessDialer{Program: cfg.SessionProgram, Args: cfg.SessionArgs}, logger)
	default:
		return nil
	}
}

func healthProbes(executor *docker.DockerExecutor, redisClient *redis.Client, natsConn *nats.Conn) map[string]handler.HealthProbe {
	probes := map[string]handler.HealthProbe{
		"docker": executor.Ping,
	}
	if redisClient != nil {
		probes["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	if natsConn != nil {
		probes["nats"] = func(context.Context) error {
			if !natsConn.IsConnected() {
				return nats.ErrConnectionClosed
			}
			return nil
		}
	}
	return probes
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
