// Package app assembles the lectern components and owns their lifecycle.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"lectern/internal/answer"
	"lectern/internal/api"
	"lectern/internal/bundle"
	"lectern/internal/config"
	"lectern/internal/database"
	"lectern/internal/logger"
	"lectern/internal/qa"
	"lectern/internal/render"
	"lectern/internal/scheduler"
	"lectern/internal/session"
	"lectern/internal/transcribe"
	"lectern/internal/ws"
	"lectern/pkg/interfaces"
)

// Application wires the components in dependency order and coordinates
// startup and shutdown:
// database -> connection registry -> collaborators -> bundle store ->
// Q&A coordinator -> session registry -> scheduler -> API -> HTTP.
type Application struct {
	config    *config.Config
	log       *logger.Logger
	dbManager *database.Manager
	connReg   *ws.Registry
	bundles   *bundle.Store
	sessions  *session.Registry
	sched     *scheduler.Scheduler
	apiServer *api.Server
	wsHandler *ws.Handler
	httpSrv   *http.Server

	schedCancel context.CancelFunc
}

// NewApplication builds the full component graph from configuration.
func NewApplication(cfg *config.Config, log *logger.Logger) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	dbManager, err := database.NewManager(&database.Config{
		Path:            cfg.Database.Path,
		MaxConnections:  10,
		ConnMaxLifetime: cfg.Database.Timeout,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	connReg := ws.NewRegistry(log)

	renderer := render.NewManifestRenderer(log)
	bundles := bundle.NewStore(renderer, connReg, log)

	transcriber, err := newTranscriber(cfg, log)
	if err != nil {
		_ = dbManager.Close()
		return nil, err
	}
	answerer := newAnswerer(cfg, bundles, log)

	coordinator := qa.NewCoordinator(transcriber, answerer, dbManager, connReg, log)
	sessions := session.NewRegistry(connReg, bundles, dbManager, coordinator, log)
	sched := scheduler.New(cfg.Scheduler.PollInterval, time.Now, dbManager, sessions, connReg, log)

	apiServer := api.NewServer(dbManager, bundles, sessions, connReg, log)
	wsHandler := ws.NewHandler(connReg, sessions, dbManager, cfg.WebSocket, log)

	mux := http.NewServeMux()
	mux.Handle("/api/", apiServer)
	mux.Handle("/health", apiServer)
	mux.Handle("/ws", wsHandler)

	httpSrv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		config:    cfg,
		log:       log.With("component", "app"),
		dbManager: dbManager,
		connReg:   connReg,
		bundles:   bundles,
		sessions:  sessions,
		sched:     sched,
		apiServer: apiServer,
		wsHandler: wsHandler,
		httpSrv:   httpSrv,
	}, nil
}

func newTranscriber(cfg *config.Config, log *logger.Logger) (interfaces.Transcriber, error) {
	switch cfg.Collab.SpeechProvider {
	case "gcp":
		t, err := transcribe.NewGCP(context.Background(), log, "en-US")
		if err != nil {
			return nil, fmt.Errorf("initialize speech client: %w", err)
		}
		return t, nil
	default:
		return &transcribe.Fake{}, nil
	}
}

func newAnswerer(cfg *config.Config, bundles interfaces.BundleSource, log *logger.Logger) interfaces.Answerer {
	if cfg.Collab.AnswerBaseURL == "" {
		return answer.NewFake()
	}
	return answer.NewOpenAI(cfg.Collab.AnswerBaseURL, cfg.Collab.AnswerModel, cfg.Collab.AnswerAPIKey, bundles, log)
}

// Start launches the scheduler and the HTTP server. The scheduler runs first
// so lessons already past their start time go live before clients connect.
func (app *Application) Start(ctx context.Context) error {
	app.log.Info("starting lectern", "addr", app.httpSrv.Addr)

	schedCtx, cancel := context.WithCancel(context.Background())
	app.schedCancel = cancel
	app.sched.Poll(schedCtx)
	go app.sched.Run(schedCtx)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := app.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case err := <-serverErrCh:
		cancel()
		return err
	case <-time.After(100 * time.Millisecond):
		app.log.Info("lectern started")
		return nil
	case <-ctx.Done():
		cancel()
		return ctx.Err()
	}
}

// Stop shuts down in reverse dependency order: HTTP first so no new commands
// arrive, then the scheduler, then sessions and their connections, then the
// database.
func (app *Application) Stop(ctx context.Context) error {
	app.log.Info("shutting down lectern")

	if err := app.httpSrv.Shutdown(ctx); err != nil {
		app.log.Warn("http server shutdown", "error", err)
	}
	if app.schedCancel != nil {
		app.schedCancel()
	}
	app.sessions.Shutdown()
	if err := app.dbManager.Close(); err != nil {
		app.log.Warn("database shutdown", "error", err)
	}

	app.log.Info("shutdown complete")
	return nil
}

// Addr returns the HTTP listen address.
func (app *Application) Addr() string {
	return app.httpSrv.Addr
}
