package daemon

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mrmrsevennine/clawhire-sub000/internal/api"
	"github.com/mrmrsevennine/clawhire-sub000/internal/app/market"
	"github.com/mrmrsevennine/clawhire-sub000/internal/health"
	_ "github.com/mrmrsevennine/clawhire-sub000/internal/infra/metrics" // Register Prometheus metrics
	"github.com/mrmrsevennine/clawhire-sub000/internal/infra/scheduler"
	"github.com/mrmrsevennine/clawhire-sub000/internal/infra/sqlite"
)

// Daemon is the clawhire runtime. It wires the engine, its SQLite store,
// the background sweeper, and the HTTP API together.
type Daemon struct {
	Config  Config
	DB      *sqlite.DB
	Engine  *market.Engine
	Server  *api.Server
	Health  *health.Checker
	Sweeper *scheduler.Sweeper
	cancel  context.CancelFunc
}

// New creates and initializes a Daemon with all services wired.
func New() (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewWithConfig(cfg)
}

// NewWithConfig creates a Daemon with the given configuration.
func NewWithConfig(cfg Config) (*Daemon, error) {
	db, err := sqlite.Open(cfg.Storage.Dir)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	eng, err := market.New(cfg.EngineConfig(), time.Now())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("build engine: %w", err)
	}
	eng.SetAbandonmentWindow(cfg.AbandonmentWindow(), time.Now())
	if err := restoreEngine(eng, db); err != nil {
		log.Printf("[daemon] WARNING: could not restore engine state: %v", err)
	}
	eng.SetStore(db)

	checker := health.NewChecker(db, cfg.Storage.Dir)
	checker.AddCheck("ledger", func(ctx context.Context) error {
		return eng.CheckConservation()
	})
	srv := api.NewServer(eng)
	srv.SetHealth(checker)
	srv.SetJournal(db)
	if cfg.Telemetry.Prometheus {
		srv.EnableMetrics()
	}

	engineCfg := cfg.EngineConfig()
	sweeper := scheduler.NewSweeper(scheduler.DefaultConfig(engineCfg.AutoApproveWindow), eng)

	return &Daemon{
		Config:  cfg,
		DB:      db,
		Engine:  eng,
		Server:  srv,
		Health:  checker,
		Sweeper: sweeper,
	}, nil
}

// restoreEngine reloads persisted state into a fresh engine: the checkpoint
// blob for counters and indexes, account balances from the journal's latest
// entries, and task documents. A database with no checkpoint is left fresh.
func restoreEngine(eng *market.Engine, db *sqlite.DB) error {
	cp, ok, err := db.LoadEngineState()
	if err != nil || !ok {
		return err
	}
	balances, err := db.AllBalances()
	if err != nil {
		return fmt.Errorf("load balances: %w", err)
	}
	tasks, err := db.ListTasks("", 0)
	if err != nil {
		return fmt.Errorf("load tasks: %w", err)
	}
	eng.RestoreCheckpoint(cp)
	eng.RestoreBalances(balances)
	eng.RestoreTasks(tasks)
	return nil
}

// Serve starts the HTTP server and blocks until shutdown.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	addr := fmt.Sprintf("%s:%d", d.Config.API.Host, d.Config.API.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      d.Server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	go d.Health.Run(ctx)
	go d.Sweeper.Run(ctx)

	// Graceful shutdown on signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		_ = httpServer.Shutdown(shutdownCtx)
		_ = d.DB.Close()
	}()

	fmt.Printf("clawhire serving on http://%s\n", addr)
	if d.Config.Telemetry.Prometheus {
		fmt.Printf("  Metrics: http://%s/metrics\n", addr)
	}

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close shuts down all daemon resources.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.DB != nil {
		_ = d.DB.Close()
	}
}
