package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"calwidget/internal/capture"
	"calwidget/internal/config"
	"calwidget/internal/engine"
	"calwidget/internal/ics"
	appLog "calwidget/internal/log"
	"calwidget/internal/notify"
	"calwidget/internal/timeutil"
	"calwidget/internal/web"
)

type flagConfig struct {
	configPath string
	listen     string
	once       bool
	noCapture  bool
	debug      bool
}

func main() {
	appLog.Info("calwidget starting", "version", "0.1.0")

	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}

	// Configuration errors are fatal and surface before any fetch.
	if err := conf.Validate(); err != nil {
		appLog.Error("invalid config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"refresh", conf.RefreshCron,
		"number_of_days", conf.NumberOfDays,
		"events_limit", conf.EventsLimit,
		"source_count", len(conf.Sources),
		"once", flags.once,
	)

	cal, err := timeutil.NewCalendar(conf.Timezone)
	if err != nil {
		appLog.Error("invalid timezone", err, "timezone", conf.Timezone)
		os.Exit(1)
	}

	// State dir: prod vs debug.
	stateDir := "/var/lib/calwidget"
	if flags.debug {
		stateDir = "./cache"
	}
	previewPath := filepath.Join(stateDir, "preview.png")
	if flags.noCapture {
		previewPath = ""
	}

	subs := ics.Subscriptions(conf, filepath.Join(stateDir, "feed-cache"), cal.Location())
	sources := make([]engine.Source, 0, len(subs))
	for _, sub := range subs {
		sources = append(sources, sub)
	}

	var notifier engine.Notifier = engine.NopNotifier{}
	if conf.NotifyURL != "" {
		notifier = notify.NewWebhook(conf.NotifyURL)
	}

	eng, err := engine.New(conf, cal, timeutil.SystemClock{}, sources, notifier)
	if err != nil {
		appLog.Error("failed to build engine", err)
		os.Exit(1)
	}

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	runCycle := func(force bool) {
		if !eng.Refresh(ctx, force) {
			return
		}
		if flags.noCapture {
			return
		}
		err := capture.WidgetPNG(ctx, capture.Options{
			URL:        "http://" + conf.Listen + "/widget",
			OutputPath: previewPath,
		})
		if err != nil {
			appLog.Error("preview capture failed", err)
		}
	}

	if flags.once {
		// Single-shot: one forced cycle, no HTTP server needed for the
		// fetch itself; capture is skipped since nothing is listening.
		eng.Refresh(ctx, true)
		appLog.Info("calwidget exiting (once)")
		return
	}

	// HTTP server for the dashboard host.
	go func() {
		if err := web.StartServer(ctx, conf, eng, cal, previewPath); err != nil {
			appLog.Error("HTTP server stopped", err)
			cancel()
		}
	}()

	// First cycle immediately; the throttle passes because no refresh has
	// ever completed. Give the HTTP server a moment so capture can reach it.
	go func() {
		time.Sleep(500 * time.Millisecond)
		runCycle(false)
	}()

	// Periodic refresh attempts; the throttle still gates actual fetches.
	c := cron.New()
	if _, err := c.AddFunc(conf.RefreshCron, func() { runCycle(false) }); err != nil {
		appLog.Error("invalid refresh cron expression", err, "refresh", conf.RefreshCron)
		os.Exit(1)
	}
	c.Start()
	defer c.Stop()

	<-ctx.Done()
	time.Sleep(100 * time.Millisecond)
	appLog.Info("calwidget exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/calwidget/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Run one fetch cycle and exit")
	flag.BoolVar(&cfg.noCapture, "no-capture", false, "Do not capture preview.png after refresh")
	flag.BoolVar(&cfg.debug, "debug", false, "Debug logging and local state directory")

	flag.Parse()

	return cfg
}
