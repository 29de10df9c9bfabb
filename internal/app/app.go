package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"hwbot/internal/config"
	"hwbot/internal/observability/metrics"
	"hwbot/internal/poller"
	"hwbot/internal/practicum"
	rtsup "hwbot/internal/runtime/supervisor"
	kit "hwbot/internal/transport"
	"hwbot/internal/transport/telegram"
	logx "hwbot/pkg/logx"
)

const (
	defaultInterval = 10 * time.Minute
	defaultLookback = 7 * 24 * time.Hour
	defaultStall    = 5 * time.Minute
	stopTimeout     = 5 * time.Second
)

type App struct {
	cfgm *config.ConfigManager
	cfg  *config.Config

	logs *logx.Service
	log  logx.Logger

	poller  *poller.Poller
	state   *poller.State
	metrics *metrics.Server

	stallTimeout time.Duration
}

// New loads the config and wires the poller. A missing secret is returned
// as *config.ConfigMissingError and must be treated as fatal.
func New(cfgm *config.ConfigManager) (*App, error) {
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(loggingConfig(cfg))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	interval, err := config.ParseDurationOrDefault("poll.interval", cfg.Poll.Interval, defaultInterval)
	if err != nil {
		return nil, err
	}
	lookback, err := config.ParseDurationOrDefault("poll.lookback", cfg.Poll.Lookback, defaultLookback)
	if err != nil {
		return nil, err
	}
	reqTimeout, err := config.ParseDurationField("practicum.request_timeout", cfg.Practicum.RequestTimeout)
	if err != nil {
		return nil, err
	}
	tgTimeout, err := config.ParseDurationField("telegram.request_timeout", cfg.Telegram.RequestTimeout)
	if err != nil {
		return nil, err
	}
	stall, err := config.ParseDurationOrDefault("systemd.stall_timeout", cfg.Systemd.StallTimeout, defaultStall)
	if err != nil {
		return nil, err
	}

	client, err := practicum.New(practicum.Config{
		Endpoint: cfg.Practicum.Endpoint,
		Token:    cfg.Practicum.Token,
		Timeout:  reqTimeout,
	}, log.With(logx.String("comp", "practicum")))
	if err != nil {
		return nil, err
	}

	ad, err := telegram.New(telegram.Config{
		Token:      cfg.Telegram.Token,
		APIURL:     cfg.Telegram.APIURL,
		RatePerSec: cfg.Telegram.RatePerSec,
		Timeout:    tgTimeout,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}

	reg := metrics.NewRegistry()
	p := poller.New(poller.Config{
		Interval:      interval,
		NotifyInitial: cfg.Poll.NotifyInitial,
		Target:        kit.ChatTarget{ChatID: cfg.Telegram.ChatID, ThreadID: cfg.Telegram.ThreadID},
	}, client, ad, log.With(logx.String("comp", "poller")), poller.NewMetrics(reg))

	return &App{
		cfgm:    cfgm,
		cfg:     cfg,
		logs:    logSvc,
		log:     log.With(logx.String("comp", "app")),
		poller:  p,
		state:   poller.NewState(time.Now(), lookback),
		metrics: metrics.NewServer(reg, log.With(logx.String("comp", "metrics"))),

		stallTimeout: stall,
	}, nil
}

func loggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func metricsConfig(cfg *config.Config) metrics.Config {
	return metrics.Config{Enabled: cfg.Metrics.Enabled, Addr: cfg.Metrics.Addr}
}

// Run blocks in the polling loop until ctx is cancelled.
// Ambient services (config watch, metrics, systemd watchdog) run alongside it.
func (a *App) Run(ctx context.Context) error {
	sup := rtsup.NewSupervisor(ctx, rtsup.WithLogger(a.log))

	if err := a.metrics.Apply(ctx, metricsConfig(a.cfg)); err != nil {
		// Metrics are optional; keep polling without them.
		a.log.Warn("metrics disabled", logx.Err(err))
	}

	if a.cfgm.Path() != "" {
		sup.GoRestart("config.watch", a.cfgm.Watch, 250*time.Millisecond, 5*time.Second)
		sub := a.cfgm.Subscribe(4)
		sup.Go0("config.reload", func(c context.Context) {
			defer a.cfgm.Unsubscribe(sub)
			a.applyReloads(c, sub)
		})
	}

	if a.cfg.Systemd.Enabled {
		sdNotify(a.log, sdReady)
		sup.Go("systemd.watchdog", func(c context.Context) error {
			return watchdogLoop(c, a.log, func() bool {
				return a.poller.Stalled(time.Now(), a.stallTimeout)
			})
		})
	}

	a.log.Info("hwbot started", logx.Int64("chat_id", a.cfg.Telegram.ChatID))
	err := a.poller.Run(sup.Context(), a.state)

	if a.cfg.Systemd.Enabled {
		sdNotify(a.log, sdStopping)
	}
	a.stop(sup)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *App) applyReloads(ctx context.Context, sub <-chan *config.Config) {
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok || newCfg == nil {
				return
			}
			sections, attrs := config.SummarizeConfigChange(lastApplied, newCfg)
			lastApplied = newCfg
			if len(sections) == 0 {
				a.log.Debug("config reload received, but no effective changes detected")
				continue
			}
			a.log.Info("config changed", append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)...)

			a.logs.Apply(loggingConfig(newCfg))
			if err := a.metrics.Apply(ctx, metricsConfig(newCfg)); err != nil {
				a.log.Warn("metrics apply failed", logx.Err(err))
			}
			for _, s := range sections {
				if !config.LiveSections[s] {
					a.log.Warn("config section changed; restart to apply", logx.String("section", s))
				}
			}
		}
	}
}

func (a *App) stop(sup *rtsup.Supervisor) {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := sup.Stop(ctx); err != nil {
		a.log.Warn("supervisor stop", logx.Err(err))
	}
	c := sup.Counters()
	a.log.Debug("ambient goroutines stopped", logx.Int64("active", c.Active), logx.Int64("started", int64(c.Started)))
	a.metrics.Stop(ctx)
	a.log.Info("hwbot stopped")
	_ = a.logs.Close()
}
