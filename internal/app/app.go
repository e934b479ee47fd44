package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/g2i/hub/internal/browser"
	"github.com/g2i/hub/internal/common"
	"github.com/g2i/hub/internal/handlers"
	"github.com/g2i/hub/internal/interfaces"
	"github.com/g2i/hub/internal/queue"
	"github.com/g2i/hub/internal/queue/workers"
	"github.com/g2i/hub/internal/services/devskiller"
	"github.com/g2i/hub/internal/services/docling"
	"github.com/g2i/hub/internal/services/scheduler"
	badgerstore "github.com/g2i/hub/internal/storage/badger"
)

// cookieRefreshJobName identifies the scheduled refresh in the scheduler
const cookieRefreshJobName = "devskiller-cookie-refresh"

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	// Storage
	DB              *badgerstore.BadgerDB
	CredentialStore interfaces.CredentialStore

	// Services
	SessionFactory   *browser.Factory
	CookieStore      *devskiller.CookieStore
	AuthService      devskiller.Authenticator
	VideoService     *devskiller.VideoService
	DoclingService   *docling.Service
	SchedulerService interfaces.SchedulerService

	// Job execution
	QueueManager interfaces.QueueManager
	WorkerPool   *queue.WorkerPool

	// HTTP handlers
	APIHandler        *handlers.APIHandler
	DevSkillerHandler *handlers.DevSkillerHandler
	VideoHandler      *handlers.VideoHandler
	DocumentHandler   *handlers.DocumentHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := app.initServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initHandlers()

	if err := app.startBackground(); err != nil {
		return nil, fmt.Errorf("failed to start background services: %w", err)
	}

	logger.Info().Msg("Application initialization complete")
	return app, nil
}

// initDatabase initializes the storage layer (Badger)
func (a *App) initDatabase() error {
	db, err := badgerstore.NewBadgerDB(a.Logger, &a.Config.Storage.Badger)
	if err != nil {
		return fmt.Errorf("failed to open badger store: %w", err)
	}
	a.DB = db
	a.CredentialStore = badgerstore.NewCredentialStore(db, a.Logger)

	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Msg("Storage layer initialized")
	return nil
}

func (a *App) initServices() error {
	a.SessionFactory = browser.NewFactory(a.Config.Browser, a.Logger)

	// Verify Chrome can actually launch before accepting work
	if err := a.SessionFactory.Verify(); err != nil {
		a.Logger.Warn().Err(err).Msg("Browser verification failed, login jobs will error until resolved")
	}

	a.CookieStore = devskiller.NewCookieStore(a.CredentialStore, a.Config.DevSkiller.CookieTTL, a.Logger)
	a.AuthService = devskiller.NewAuthService(a.SessionFactory, a.CookieStore, a.Config.DevSkiller, a.Logger)
	a.VideoService = devskiller.NewVideoService(a.AuthService, a.CookieStore, a.SessionFactory, a.Config.DevSkiller, a.Logger)
	a.DoclingService = docling.NewService(a.Config.Docling, a.Logger)

	manager, err := queue.NewManager(a.DB.DB(), a.Config.Queue.QueueName, a.Config.Queue.VisibilityTimeout, a.Config.Queue.MaxReceive)
	if err != nil {
		return fmt.Errorf("failed to create queue manager: %w", err)
	}
	a.QueueManager = manager
	a.WorkerPool = queue.NewWorkerPool(a.QueueManager, a.Config.Queue, a.Logger)

	worker := workers.NewDevSkillerWorker(a.AuthService, a.VideoService, a.CookieStore, a.Logger)
	a.WorkerPool.RegisterHandler(workers.JobTypeCookieRefresh, worker.HandleCookieRefresh)
	a.WorkerPool.RegisterHandler(workers.JobTypeVideoResolve, worker.HandleVideoResolve)

	a.SchedulerService = scheduler.NewService(a.Logger)
	return nil
}

func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler()
	a.DevSkillerHandler = handlers.NewDevSkillerHandler(a.CookieStore, a.QueueManager, a.Logger)
	a.VideoHandler = handlers.NewVideoHandler(a.CookieStore, a.QueueManager, a.Logger)
	a.DocumentHandler = handlers.NewDocumentHandler(a.DoclingService, a.Logger)
}

func (a *App) startBackground() error {
	if err := a.WorkerPool.Start(); err != nil {
		return fmt.Errorf("failed to start worker pool: %w", err)
	}

	err := a.SchedulerService.RegisterJob(
		cookieRefreshJobName,
		a.Config.DevSkiller.RefreshSchedule,
		"Refresh DevSkiller session cookies",
		a.enqueueCookieRefresh,
	)
	if err != nil {
		return fmt.Errorf("failed to register refresh job: %w", err)
	}
	if err := a.SchedulerService.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	return nil
}

// enqueueCookieRefresh routes the scheduled refresh through the same queue
// as API-triggered refreshes so both share dedup and retry behaviour.
func (a *App) enqueueCookieRefresh() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.CookieStore.MarkProcessing(ctx); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to mark scheduled refresh as processing")
	}
	return a.QueueManager.Enqueue(ctx, interfaces.JobMessage{
		Type:    workers.JobTypeCookieRefresh,
		DedupID: "devskiller-cookie-refresh",
	})
}

// Close shuts down all application components in reverse dependency order
func (a *App) Close() error {
	a.Logger.Info().Msg("Shutting down application")

	if a.SchedulerService != nil {
		if err := a.SchedulerService.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Scheduler shutdown error")
		}
	}
	if a.WorkerPool != nil {
		if err := a.WorkerPool.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Worker pool shutdown error")
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Badger shutdown error")
			return err
		}
	}

	a.Logger.Info().Msg("Application shutdown complete")
	return nil
}
