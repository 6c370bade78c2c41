package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"evcharge/pkg/config"
	"evcharge/pkg/contracts"
	"evcharge/pkg/middleware"
	"evcharge/pkg/scheduler"

	"github.com/julienschmidt/httprouter"
)

const (
	rateLimiterCleanupJob = "rate-limiter-cleanup"
	idempotencyCleanupJob = "idempotency-cleanup"
)

// Worker is a background loop that runs until its context is cancelled.
type Worker func(ctx context.Context) error

type shutdownHook struct {
	name string
	fn   func() error
}

type Application struct {
	cfg              *config.Config
	server           *http.Server
	scheduler        *scheduler.Scheduler
	idempotencyStore *middleware.InMemoryIdempotencyStore
	rateLimiter      *middleware.KeyRateLimiter
	health           *HealthHandler
	healthHandler    http.Handler
	appHttpHandler   http.Handler
	relayHandler     http.Handler

	workers     map[string]Worker
	workersWG   sync.WaitGroup
	stopWorkers context.CancelFunc
	hooks       []shutdownHook
}

func NewApplication(cfg *config.Config) *Application {
	return &Application{
		cfg:     cfg,
		health:  NewHealthHandler(cfg.Log),
		workers: make(map[string]Worker),
	}
}

// Health exposes the readiness checks so callers can register backends.
func (a *Application) Health() *HealthHandler {
	return a.health
}

// AddWorker registers a loop started by Run and cancelled on shutdown.
func (a *Application) AddWorker(name string, w Worker) {
	a.workers[name] = w
}

// OnShutdown registers fn to run after the HTTP server has stopped, in
// reverse registration order.
func (a *Application) OnShutdown(name string, fn func() error) {
	a.hooks = append(a.hooks, shutdownHook{name: name, fn: fn})
}

// SetApp builds the HTTP surface: health with minimal middleware, the relay
// socket with recovery only so it can be hijacked, and the API behind the
// full stack.
func (a *Application) SetApp(relay contracts.Handler, handlers ...contracts.Handler) {
	a.setHealthHandler()
	a.setRelayHandler(relay)
	a.setAppHandler(handlers...)
	a.setAppServer()
}

func (a *Application) setHealthHandler() {
	healthRouter := httprouter.New()
	a.health.RegisterRoutes(healthRouter)

	var healthHTTPHandler http.Handler = healthRouter
	healthHTTPHandler = middleware.RequestLogging(a.cfg.Log)(healthHTTPHandler)
	healthHTTPHandler = middleware.Recovery(a.cfg.Log)(healthHTTPHandler)
	a.healthHandler = healthHTTPHandler
	a.cfg.Log.Info("Health endpoints configured with minimal middleware (Recovery + Logging only)")
}

func (a *Application) setRelayHandler(relay contracts.Handler) {
	if relay == nil {
		return
	}
	relayRouter := httprouter.New()
	relay.RegisterRoutes(relayRouter)
	a.relayHandler = middleware.Recovery(a.cfg.Log)(relayRouter)
	a.cfg.Log.Info("Device relay endpoint configured", "path", "/ws")
}

func (a *Application) setAppHandler(handlers ...contracts.Handler) {
	appRouter := httprouter.New()
	for _, h := range handlers {
		h.RegisterRoutes(appRouter)
	}

	a.idempotencyStore = middleware.NewInMemoryIdempotencyStore(a.cfg.IdempotencyTTL)
	a.rateLimiter = middleware.NewKeyRateLimiter(
		a.cfg.RateLimitRequests,
		a.cfg.RateLimitWindow,
		middleware.ClientIPExtractor,
		a.cfg.Log,
	)

	var appHttpHandler http.Handler = appRouter
	appHttpHandler = middleware.Idempotency(a.idempotencyStore, "Idempotency-Key", "/api/bookings")(appHttpHandler)
	appHttpHandler = middleware.RequestTimeout(a.cfg.RequestTimeout, a.cfg.Log)(appHttpHandler)
	appHttpHandler = middleware.RateLimit(a.rateLimiter)(appHttpHandler)
	appHttpHandler = middleware.ContentTypeValidation(a.cfg.Log)(appHttpHandler)
	appHttpHandler = middleware.MaxRequestSize(int64(a.cfg.MaxRequestSize))(appHttpHandler)
	appHttpHandler = middleware.RequestLogging(a.cfg.Log)(appHttpHandler)
	appHttpHandler = middleware.Recovery(a.cfg.Log)(appHttpHandler)
	a.appHttpHandler = appHttpHandler
	a.cfg.Log.Info("Application endpoints configured with full middleware stack")
}

// Handler returns the root handler; SetApp must have been called.
func (a *Application) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/health", a.healthHandler)
	mux.Handle("/ready", a.healthHandler)
	mux.Handle("/api/ping", a.healthHandler)
	if a.relayHandler != nil {
		mux.Handle("/ws", a.relayHandler)
	}
	mux.Handle("/", a.appHttpHandler)
	return mux
}

func (a *Application) setAppServer() {
	a.server = &http.Server{
		Addr:         ":" + a.cfg.Port,
		Handler:      a.Handler(),
		ReadTimeout:  a.cfg.ReadTimeout,
		WriteTimeout: a.cfg.WriteTimeout,
		IdleTimeout:  a.cfg.IdleTimeout,
	}

	a.cfg.Log.Info("HTTP server configured", "port", a.cfg.Port)
}

func (a *Application) startScheduler() {
	s, err := scheduler.New(a.cfg.Log)
	if err != nil {
		a.cfg.Log.Fatal("Failed to create scheduler", "error", err)
	}
	if err := s.Every(rateLimiterCleanupJob, a.cfg.CleanupInterval, a.rateLimiter.Cleanup); err != nil {
		a.cfg.Log.Fatal("Failed to schedule job", "job", rateLimiterCleanupJob, "error", err)
	}
	if err := s.Every(idempotencyCleanupJob, a.cfg.CleanupInterval, a.idempotencyStore.Cleanup); err != nil {
		a.cfg.Log.Fatal("Failed to schedule job", "job", idempotencyCleanupJob, "error", err)
	}
	s.Start()
	a.scheduler = s
}

func (a *Application) startWorkers() {
	ctx, cancel := context.WithCancel(context.Background())
	a.stopWorkers = cancel

	for name, w := range a.workers {
		a.workersWG.Add(1)
		go func(name string, w Worker) {
			defer a.workersWG.Done()
			a.cfg.Log.Info("Background worker started", "worker", name)
			if err := w(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.cfg.Log.Error("Background worker stopped with error", "worker", name, "error", err)
				return
			}
			a.cfg.Log.Info("Background worker stopped", "worker", name)
		}(name, w)
	}
}

func (a *Application) Run() {
	a.startScheduler()
	a.startWorkers()

	serverErrors := make(chan error, 1)

	go func() {
		a.cfg.Log.Info("Starting HTTP server", "address", a.server.Addr)
		serverErrors <- a.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		a.cfg.Log.Fatal("HTTP server failed", "error", err)

	case sig := <-shutdown:
		a.cfg.Log.Info("Shutdown signal received", "signal", sig)
		a.gracefulShutdown()
	}
}

func (a *Application) gracefulShutdown() {
	a.cfg.Log.Info("Starting graceful shutdown...")

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.cfg.Log.Error("Server shutdown failed", "error", err)
		if err := a.server.Close(); err != nil {
			a.cfg.Log.Error("Could not stop server gracefully", "error", err)
		}
	}

	a.cfg.Log.Info("Stopping background workers...")
	if a.stopWorkers != nil {
		a.stopWorkers()
	}
	a.workersWG.Wait()
	if a.scheduler != nil {
		if err := a.scheduler.Shutdown(); err != nil {
			a.cfg.Log.Error("Scheduler shutdown failed", "error", err)
		}
	}
	a.cfg.Log.Info("Background workers stopped")

	for i := len(a.hooks) - 1; i >= 0; i-- {
		hook := a.hooks[i]
		if err := hook.fn(); err != nil {
			a.cfg.Log.Error("Shutdown hook failed", "hook", hook.name, "error", err)
		}
	}

	a.cfg.GracefulShutdown()
	a.cfg.Log.Info("Server stopped gracefully")
}
