package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rndlabs/daily-stoic-waku/internal/broadcaster"
	"github.com/rndlabs/daily-stoic-waku/internal/catalog"
	"github.com/rndlabs/daily-stoic-waku/internal/config"
	"github.com/rndlabs/daily-stoic-waku/internal/eventbus"
	"github.com/rndlabs/daily-stoic-waku/internal/observability"
	"github.com/rndlabs/daily-stoic-waku/internal/runtime/supervisor"
	"github.com/rndlabs/daily-stoic-waku/internal/storage"
	"github.com/rndlabs/daily-stoic-waku/internal/transport"
	"github.com/rndlabs/daily-stoic-waku/internal/transport/memory"
	"github.com/rndlabs/daily-stoic-waku/internal/transport/redis"
	logx "github.com/rndlabs/daily-stoic-waku/pkg/logx"
)

// Options are the process-level inputs.
type Options struct {
	// ConfigPath is optional; without it defaults apply.
	ConfigPath string
	// CatalogPath is the quotes file (required).
	CatalogPath string
	// LogLevel overrides logging.level when set.
	LogLevel string
	// Transport replaces the configured driver (tests, embedding).
	Transport transport.Transport
}

type App struct {
	cfgm *config.ConfigManager
	sup  *supervisor.Supervisor

	log      logx.Logger
	logs     *logx.Service
	logLevel string
	bus      eventbus.Bus
	store    storage.Store
	metrics  *observability.Metrics
	http     *observability.Server
	sd       *sdNotifier

	tr     transport.Transport
	quotes *catalog.Catalog
	bc     *broadcaster.Service
}

// NewApp loads config and the catalog and wires every component. Nothing
// touches the network until Start.
func NewApp(opts Options) (*App, error) {
	if strings.TrimSpace(opts.CatalogPath) == "" {
		return nil, errors.New("catalog path required")
	}

	cfgm := config.NewConfigManager(opts.ConfigPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if opts.LogLevel != "" {
		if _, ok := logx.ParseLevel(opts.LogLevel); !ok {
			return nil, fmt.Errorf("invalid log level %q", opts.LogLevel)
		}
	}

	logSvc, log := logx.New(withLevel(mapLogConfig(cfg), opts.LogLevel))
	appLog := log.Named("app")

	quotes, err := catalog.Load(opts.CatalogPath)
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	appLog.Info("catalog loaded", logx.String("path", opts.CatalogPath), logx.Int("quotes", quotes.Len()))

	bcCfg, err := mapBroadcasterConfig(cfg)
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}

	var store storage.Store
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		_ = logSvc.Close()
		return nil, err
	} else if enabled {
		store, err = storage.Open(sc, log.Named("journal"))
		if err != nil {
			_ = logSvc.Close()
			return nil, err
		}
	}

	tr := opts.Transport
	if tr == nil {
		tr, err = openTransport(cfg, log.Named("transport"))
		if err != nil {
			if store != nil {
				_ = store.Close()
			}
			_ = logSvc.Close()
			return nil, err
		}
	}

	a := &App{
		cfgm:     cfgm,
		log:      appLog,
		logs:     logSvc,
		logLevel: opts.LogLevel,
		bus:      eventbus.New(),
		store:    store,
		metrics:  observability.NewMetrics(),
		sd:       newSdNotifier(log.Named("systemd")),
		tr:       tr,
		quotes:   quotes,
	}

	bcOpts := []broadcaster.Option{
		broadcaster.WithLogger(log.Named("broadcaster")),
		broadcaster.WithBus(a.bus),
		broadcaster.WithMetrics(a.metrics),
		broadcaster.WithStateHook(a.sd.onState),
	}
	if store != nil {
		bcOpts = append(bcOpts, broadcaster.WithJournal(store))
	}
	a.bc = broadcaster.New(bcCfg, tr, quotes, bcOpts...)

	if cfg.HTTP.Enabled {
		srvOpts := []observability.ServerOption{
			observability.WithLogger(log.Named("http")),
			observability.WithMetrics(a.metrics),
			observability.WithHealth(a.health),
			observability.WithHealthDetails(func() any { return a.bc.Activities() }),
		}
		if store != nil {
			srvOpts = append(srvOpts, observability.WithJournal(store))
		}
		a.http = observability.NewServer(mapServerConfig(cfg), srvOpts...)
	}
	return a, nil
}

func openTransport(cfg *config.Config, log logx.Logger) (transport.Transport, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Transport.Driver)) {
	case config.DriverMemory:
		log.Warn("memory transport selected: in-process only, no remote peers")
		return memory.NewHub().Join(), nil
	default:
		rc, err := mapRedisConfig(cfg)
		if err != nil {
			return nil, err
		}
		return redis.New(rc, log)
	}
}

func withLevel(c logx.Config, level string) logx.Config {
	if level != "" {
		c.Level = level
	}
	return c
}

func (a *App) health() (bool, string) {
	st := a.bc.State()
	return st == broadcaster.StateRunning, st.String()
}

// Broadcaster exposes the running service (BroadcastOnce, State).
func (a *App) Broadcaster() *broadcaster.Service { return a.bc }

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Start launches background services, then gates on transport readiness.
// An error matching broadcaster.ErrNotReady means no broadcast was sent.
func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	// transactional config reload: validate before commit/publish
	a.cfgm.SetLogger(a.log.Named("config"))
	a.cfgm.SetValidator(func(c context.Context, cfg *config.Config) error {
		if _, err := mapBroadcasterConfig(cfg); err != nil {
			return err
		}
		if _, _, err := mapStorageConfig(cfg); err != nil {
			return err
		}
		_, err := mapRedisConfig(cfg)
		return err
	})

	if a.http != nil {
		a.sup.GoRestart("http", a.http.Run, supervisor.WithRestartBackoff(time.Second, 30*time.Second))
	}

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Trace("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				a.applyConfig(lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})
	a.sup.Go("config.watch", a.cfgm.Watch)

	a.sd.notify("STATUS=connecting")
	if err := a.bc.Start(ctx); err != nil {
		return err
	}
	a.log.Info("app started")
	return nil
}

// applyConfig hot-applies logging; other sections need a restart.
func (a *App) applyConfig(prev, next *config.Config) {
	sections, attrs := config.SummarizeConfigChange(prev, next)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	a.logs.Apply(withLevel(mapLogConfig(next), a.logLevel))

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
	if pending := config.RestartRequired(sections); len(pending) > 0 {
		a.log.Warn("config changed; restart required for changes to take effect",
			logx.String("sections", strings.Join(pending, ",")))
	}
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	a.log.Info("stopping", logx.String("reason", string(reason)))
	if a.sup != nil {
		a.sup.Cancel()
	}

	step := func(name string, limit time.Duration, fn func(context.Context) error) {
		start := time.Now()
		a.log.Debug("stop step begin", logx.String("name", name), logx.Duration("max", limit))

		// WithTimeout never extends the caller's deadline
		stepCtx, cancel := context.WithTimeout(ctx, limit)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			// fn must honor stepCtx; log a leak signal if it does not.
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Duration("elapsed", time.Since(start)),
			)
		}
	}

	step("broadcaster", 5*time.Second, a.bc.Stop)
	if a.sup != nil {
		step("supervisor", 3*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	}
	step("transport", 2*time.Second, func(context.Context) error { return a.tr.Close() })
	step("journal", time.Second, func(context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})

	a.log.Info("stopped")
	return a.logs.Close()
}
