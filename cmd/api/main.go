package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/support-reconciler/internal/adapter"
	httptransport "github.com/spec-kit/support-reconciler/internal/api/http"
	"github.com/spec-kit/support-reconciler/internal/api/http/handlers"
	"github.com/spec-kit/support-reconciler/internal/categorize"
	"github.com/spec-kit/support-reconciler/internal/config"
	"github.com/spec-kit/support-reconciler/internal/events"
	"github.com/spec-kit/support-reconciler/internal/jobs"
	"github.com/spec-kit/support-reconciler/internal/linkage"
	"github.com/spec-kit/support-reconciler/internal/observability"
	"github.com/spec-kit/support-reconciler/internal/persistence"
	"github.com/spec-kit/support-reconciler/internal/reconcile"
	"github.com/spec-kit/support-reconciler/internal/repository"
	"github.com/spec-kit/support-reconciler/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	rules, err := config.LoadRules(cfg.Sync.RulesPath)
	if err != nil {
		logger.Fatal("failed to load reconciliation rules", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	requestRepo := repository.NewRequestRepository(pool)
	movementRepo := repository.NewMovementRepository(pool)
	escalationRepo := repository.NewEscalationRepository(pool)
	orphanRepo := repository.NewOrphanRepository(pool)

	dispatcher := events.NewInMemoryDispatcher()

	// A source without credentials is disabled at startup; the remaining
	// sources keep syncing.
	sources := map[reconcile.Kind]adapter.Source{}
	var desk adapter.ServiceDesk
	var tracker adapter.Tracker
	if cfg.Sources.Helpdesk.Enabled() {
		sources[reconcile.KindHelpdesk] = adapter.NewHelpdeskClient(cfg.Sources.Helpdesk, cfg.Sync.PageSize, logger)
	} else {
		logger.Warn("helpdesk credentials missing; helpdesk sync disabled")
	}
	if cfg.Sources.ServiceDesk.Enabled() {
		deskClient := adapter.NewServiceDeskClient(cfg.Sources.ServiceDesk, cfg.Sync.PageSize, logger)
		sources[reconcile.KindServiceDesk] = deskClient
		desk = deskClient
	} else {
		logger.Warn("servicedesk credentials missing; servicedesk sync disabled")
	}
	if cfg.Sources.Tracker.Enabled() {
		trackerClient := adapter.NewTrackerClient(cfg.Sources.Tracker, cfg.Sync.PageSize, logger)
		sources[reconcile.KindTracker] = trackerClient
		tracker = trackerClient
	} else {
		logger.Warn("tracker credentials missing; tracker sync and linkage resolution disabled")
	}

	var resolver reconcile.LinkResolver
	if tracker != nil {
		resolver = linkage.NewResolver(linkage.Dependencies{
			Rules:   rules,
			Tracker: tracker,
			Desk:    desk,
			Cache:   redis.Handle(),
			Logger:  logger,
		})
	}

	movements := reconcile.NewMovementTracker(movementRepo, dispatcher, logger)
	reconciler := reconcile.NewReconciler(reconcile.ReconcilerDependencies{
		RequestRepo: requestRepo,
		Categorizer: categorize.NewEngine(rules),
		Resolver:    resolver,
		Movements:   movements,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	deriver := reconcile.NewEscalationDeriver(reconcile.DeriverDependencies{
		MovementRepo:   movementRepo,
		EscalationRepo: escalationRepo,
		RequestRepo:    requestRepo,
		Dispatcher:     dispatcher,
		Logger:         logger,
	})

	var orphans *reconcile.OrphanReconciler
	if desk != nil && tracker != nil {
		orphans = reconcile.NewOrphanReconciler(reconcile.OrphanDependencies{
			OrphanRepo: orphanRepo,
			Desk:       desk,
			Tracker:    tracker,
			Resolver:   resolver,
			Rules:      rules,
			Logger:     logger,
		})
	}

	registry := jobs.NewRegistry()
	syncService := reconcile.NewService(reconcile.ServiceDependencies{
		Sources:    sources,
		Reconciler: reconciler,
		Deriver:    deriver,
		Orphans:    orphans,
		Registry:   registry,
		Watermarks: reconcile.NewWatermarkStore(redis.Handle(), logger),
		Dispatcher: dispatcher,
		Logger:     logger,
		JobTimeout: cfg.Sync.JobTimeout(),
	})

	scheduler := worker.NewScheduler(syncService, reconcile.Kinds, cfg.Sync.Interval(), logger)
	go scheduler.Run(ctx)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Sync:   handlers.NewSyncHandler(syncService, registry),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
