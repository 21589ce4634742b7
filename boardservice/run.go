// Package boardservice wires the components together and runs the service:
// the five cadences, the ops HTTP server and graceful shutdown.
package boardservice

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/guildboard/guildboard/internal/api"
	"github.com/guildboard/guildboard/internal/chat"
	"github.com/guildboard/guildboard/internal/chat/rest"
	"github.com/guildboard/guildboard/internal/commands"
	"github.com/guildboard/guildboard/internal/config"
	"github.com/guildboard/guildboard/internal/dashboard"
	"github.com/guildboard/guildboard/internal/health"
	"github.com/guildboard/guildboard/internal/ledger"
	"github.com/guildboard/guildboard/internal/ledger/sheets"
	"github.com/guildboard/guildboard/internal/platform/logger"
	"github.com/guildboard/guildboard/internal/prune"
	"github.com/guildboard/guildboard/internal/reminder"
	"github.com/guildboard/guildboard/internal/scheduler"
	"github.com/guildboard/guildboard/internal/state"
	"github.com/guildboard/guildboard/internal/timers"
)

// Run starts the guildboard service and blocks until shutdown or error.
func Run() error {
	log := logger.New("guildboard")

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("failed to load configuration")
		return err
	}

	ctx, stop := newServerContext()
	defer stop()

	deps, err := initDependencies(ctx, cfg, log)
	if err != nil {
		return err
	}

	sched := buildScheduler(cfg, deps, log)

	// One dashboard pass before the cadences start so both panels exist by
	// the time the first command arrives.
	if err := deps.recon.Reconcile(ctx); err != nil {
		log.Warn().Err(err).Msg("initial dashboard pass failed, cadences will retry")
	}

	startHealthCheckers(ctx, deps, log)

	server := newHTTPServer(ctx, cfg, api.NewRouter(api.NewHandler(deps.store, deps.agg, deps.recon, deps.cmds, nil)))
	errCh := serveHTTP(server, log, cfg)

	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		sched.Run(ctx)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		<-schedDone
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			log.Error().Err(err).Msg("server forced to shutdown")
			return err
		}
		log.Info().Msg("service exited")
		return nil
	case err := <-errCh:
		log.Error().Err(err).Msg("HTTP server failed")
		return err
	}
}

// dependencies are the constructed components, wired once at startup.
type dependencies struct {
	store    *state.Store
	chat     chat.Messenger
	src      ledger.Source
	agg      *ledger.Aggregator
	poller   *ledger.Poller
	engine   *timers.Engine
	recon    *dashboard.Reconciler
	reminder *reminder.Reminder
	pruner   *prune.Pruner
	cmds     *commands.Service
	cfg      *config.Config
}

func initDependencies(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*dependencies, error) {
	loc := cfg.Location()
	startedAt := time.Now()

	store := state.NewStore(cfg.StateDir, log)

	messenger, err := rest.New(cfg.ChatBaseURL, cfg.ChatToken, log)
	if err != nil {
		log.Error().Err(err).Msg("chat client unavailable")
		return nil, err
	}

	src, err := sheets.New(ctx, cfg.CredentialsFile, cfg.SpreadsheetID)
	if err != nil {
		log.Error().Err(err).Msg("ledger source unavailable")
		return nil, err
	}

	tabs := []string{cfg.LedgerTab, cfg.FormTab, cfg.ArchiveTab}
	agg := ledger.NewAggregator(src, tabs, cfg.BalanceTab, cfg.BalanceCell, loc, log)
	poller := ledger.NewPoller(src, cfg.FormTab, store, messenger, cfg.BoardChannel, log)

	engine := timers.New(store, messenger, cfg.BoardChannel, cfg.OpsChannel, cfg.Roster, log, nil)
	recon := dashboard.New(store, agg, messenger, cfg.BoardChannel, startedAt, log, nil)
	remind := reminder.New(store, messenger, cfg.BoardChannel, loc, cfg.ReminderHour, cfg.ReminderMinute, nil, log, nil)
	pruner := prune.New(messenger, cfg.BoardChannel, loc, log, nil)
	cmds := commands.New(store, engine, messenger, src, agg, recon, cfg.LedgerTab, cfg.BoardChannel, loc, cfg.Players, log, nil)

	return &dependencies{
		store:    store,
		chat:     messenger,
		src:      src,
		agg:      agg,
		poller:   poller,
		engine:   engine,
		recon:    recon,
		reminder: remind,
		pruner:   pruner,
		cmds:     cmds,
		cfg:      cfg,
	}, nil
}

// startHealthCheckers probes the two external dependencies and binds the
// aggregate to the ops health endpoint.
func startHealthCheckers(ctx context.Context, deps *dependencies, log zerolog.Logger) {
	const probeTimeout = 10 * time.Second
	const probeInterval = 30 * time.Second

	chatChecker := health.NewProbeChecker("chat", func(ctx context.Context) error {
		_, err := deps.chat.ListPinned(ctx, deps.cfg.BoardChannel)
		return err
	}, probeTimeout, log)

	sourceChecker := health.NewProbeChecker("ledger-source", func(ctx context.Context) error {
		_, err := deps.src.ReadCell(ctx, deps.cfg.BalanceTab, deps.cfg.BalanceCell)
		return err
	}, probeTimeout, log)

	svc := health.NewServiceChecker(log, chatChecker, sourceChecker)
	go chatChecker.Start(ctx, probeInterval)
	go sourceChecker.Start(ctx, probeInterval)
	go svc.Start(ctx, probeInterval)
	api.BindServiceHealth(svc.IsHealthy)
}

// buildScheduler registers the five cadences. Each job is independent; a
// slow ledger poll never delays the expiry sweep.
func buildScheduler(cfg *config.Config, deps *dependencies, log zerolog.Logger) *scheduler.Scheduler {
	sched := scheduler.New(log)

	sched.Add("sweep", cfg.SweepInterval, func(ctx context.Context) {
		doc, dirty := deps.engine.Sweep(ctx)
		if dirty {
			if err := deps.recon.ReconcileWith(ctx, doc); err != nil {
				log.Error().Err(err).Msg("post-sweep dashboard pass failed")
			}
		}
	})

	sched.Add("refresh", cfg.RefreshInterval, func(ctx context.Context) {
		if err := deps.recon.Reconcile(ctx); err != nil {
			log.Error().Err(err).Msg("dashboard refresh failed")
		}
	})

	sched.Add("poll", cfg.PollInterval, func(ctx context.Context) {
		n, err := deps.poller.PollOnce(ctx)
		if err != nil {
			log.Error().Err(err).Msg("ledger poll failed")
			return
		}
		if n > 0 {
			log.Info().Int("rows", n).Msg("new ledger rows announced")
			if err := deps.recon.Reconcile(ctx); err != nil {
				log.Error().Err(err).Msg("post-poll dashboard pass failed")
			}
		}
	})

	sched.Add("reminder", cfg.ReminderInterval, func(ctx context.Context) {
		if deps.reminder.Tick(ctx) {
			if err := deps.recon.Reconcile(ctx); err != nil {
				log.Error().Err(err).Msg("post-reminder dashboard pass failed")
			}
		}
	})

	sched.Add("prune", cfg.PruneInterval, func(ctx context.Context) {
		n, err := deps.pruner.Run(ctx)
		if err != nil {
			log.Error().Err(err).Msg("channel prune failed")
			return
		}
		if n > 0 {
			log.Info().Int("deleted", n).Msg("stale messages pruned")
		}
	})

	return sched
}

func newHTTPServer(ctx context.Context, cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
}

func serveHTTP(server *http.Server, log zerolog.Logger, cfg *config.Config) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("ops HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	return errCh
}

// newServerContext returns a cancellable context bound to SIGINT/SIGTERM.
func newServerContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
