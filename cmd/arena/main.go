package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/agentarena/arena/config"
	"github.com/agentarena/arena/internal/adapters/binance"
	"github.com/agentarena/arena/internal/adapters/decision"
	"github.com/agentarena/arena/internal/adapters/notify"
	"github.com/agentarena/arena/internal/adapters/redisbus"
	"github.com/agentarena/arena/internal/adapters/storage"
	wsadapter "github.com/agentarena/arena/internal/adapters/ws"
	"github.com/agentarena/arena/internal/application/broadcast"
	"github.com/agentarena/arena/internal/application/engine"
	"github.com/agentarena/arena/internal/domain"
	"github.com/agentarena/arena/internal/metrics"
	"github.com/agentarena/arena/internal/ports"
)

const watcherID = "console-watcher"

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	demo := flag.Bool("demo", false, "seed agents and a demo match, run it to completion, then exit")
	demoTicks := flag.Int64("ticks", 120, "demo match length in ticks")
	watch := flag.Bool("watch", false, "render live updates on the console")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	slog.Info("arena starting",
		"config", *configPath,
		"tick_interval", cfg.TickInterval(),
		"demo", *demo,
		"redis", cfg.Redis.Addr != "",
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	hub := broadcast.NewHub()
	caster := setupBroadcaster(ctx, cfg, hub)

	if *watch {
		hub.Connect(watcherID, notify.NewWatcher())
		hub.Subscribe(watcherID, domain.LeaderboardChannel)
	}

	provider := decision.Build(cfg.Arena.Provider.Kind, decision.Config{
		Seed:          cfg.Arena.Seed,
		ShortWindow:   cfg.Arena.Provider.ShortWindow,
		LongWindow:    cfg.Arena.Provider.LongWindow,
		OrderQuantity: cfg.Arena.Provider.OrderQuantity,
		AgentURL:      cfg.Arena.Provider.AgentURL,
		Timeout:       cfg.ProviderTimeout(),
	})
	resolve := func(*domain.Participant) ports.DecisionProvider { return provider }

	var feed ports.PriceFeed = binance.NewFeed(cfg.API.BinanceBase)
	if *demo {
		feed = binance.NewStaticFeed(nil)
	}

	sched := engine.NewScheduler(engine.Config{
		TickInterval:    cfg.TickInterval(),
		Volatility:      cfg.Arena.Volatility,
		Seed:            cfg.Arena.Seed,
		LeaderboardSize: cfg.Arena.LeaderboardSize,
	}, store, feed, caster, resolve)

	metricsSrv := metrics.Serve(cfg.Server.MetricsAddr)
	defer metricsSrv.Close()

	mux := http.NewServeMux()
	mux.Handle("/ws", wsadapter.NewServer(hub))
	httpSrv := &http.Server{Addr: cfg.Server.ListenAddr, Handler: mux}
	go func() {
		slog.Info("observer endpoint listening", "addr", cfg.Server.ListenAddr, "path", "/ws")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("observer server failed", "err", err)
		}
	}()
	defer httpSrv.Close()

	if *demo {
		runDemo(ctx, cfg, store, sched, hub, *demoTicks, *watch)
		sched.Shutdown()
		return
	}

	if err := sched.ResumeRunning(ctx); err != nil {
		slog.Error("restart recovery failed", "err", err)
	}
	if *watch {
		for _, id := range sched.Running() {
			hub.Subscribe(watcherID, domain.MatchChannel(id))
		}
	}

	<-ctx.Done()
	slog.Info("shutting down")
	sched.Shutdown()
	slog.Info("arena stopped cleanly")
}

// setupBroadcaster wires the optional Redis bridge around the hub.
// Any bus problem degrades to local-only fan-out; it never stops the
// arena from starting.
func setupBroadcaster(ctx context.Context, cfg *config.Config, hub *broadcast.Hub) ports.Broadcaster {
	if cfg.Redis.Addr == "" {
		slog.Info("no redis configured, broadcasting local-only")
		return hub
	}

	bus := redisbus.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err := bus.Ping(ctx); err != nil {
		slog.Warn("redis unreachable, broadcasting local-only", "addr", cfg.Redis.Addr, "err", err)
		bus.Close()
		return hub
	}

	bridge := broadcast.NewBusBridge(hub, bus)
	if err := bridge.Run(ctx); err != nil {
		slog.Warn("bus subscription failed, broadcasting local-only", "err", err)
		bus.Close()
		return hub
	}

	slog.Info("distributed bus connected", "addr", cfg.Redis.Addr, "origin", bridge.Origin())
	return bridge
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
