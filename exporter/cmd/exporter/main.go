package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/obsidianstack/kdp-exporter/exporter/internal/collector"
	"github.com/obsidianstack/kdp-exporter/exporter/internal/config"
	"github.com/obsidianstack/kdp-exporter/exporter/internal/httpapi"
	"github.com/obsidianstack/kdp-exporter/exporter/internal/kdp"
	"github.com/obsidianstack/kdp-exporter/exporter/internal/soap"
	"github.com/obsidianstack/kdp-exporter/exporter/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "optional path to a YAML config file; environment variables override it")
	once := flag.Bool("once", false, "run a single scrape, print it to stdout and exit")
	flag.Parse()

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	level.Set(cfg.Level())
	slog.Info("kdp-exporter starting", "config", *configPath, "kdp", cfg.KDP, "listen", cfg.Listen)

	metrics := telemetry.New()
	transport := soap.NewTransport(soap.Options{
		WSDLURL:            cfg.KDP.URL,
		Endpoint:           cfg.KDP.Endpoint,
		Namespace:          cfg.KDP.Namespace,
		Timeout:            cfg.KDP.Timeout,
		InsecureSkipVerify: cfg.KDP.InsecureSkipVerify,
	}, logger)
	client := kdp.NewClient(transport, kdp.Credentials{
		ClientID: cfg.KDP.ClientID,
		UserID:   cfg.KDP.UserID,
		Secret:   cfg.KDP.SecretKey,
	}, kdp.Options{
		Timeout:   cfg.KDP.Timeout,
		RateLimit: cfg.KDP.RateLimit,
		Logger:    logger,
		Observer:  metrics,
	})
	cache := kdp.NewResourceCache(cfg.KDP.ResourceCacheTTL)
	coll := collector.New(client, cache, metrics, logger, collector.Settings{
		ResourceName: cfg.KDP.Resource,
		LocaleID:     cfg.KDP.LocaleID,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *once {
		res := coll.Scrape(ctx)
		if err := res.Set.Write(os.Stdout); err != nil {
			slog.Error("failed to render scrape", "err", err)
			os.Exit(1)
		}
		return
	}

	// Hot reload applies the log level, resource name and locale only.
	if *configPath != "" {
		go func() {
			pending := config.NewPending(cfg)
			if err := config.Watch(ctx, *configPath, logger, func(updated *config.Config) {
				level.Set(updated.Level())
				coll.Reload(collector.Settings{
					ResourceName: updated.KDP.Resource,
					LocaleID:     updated.KDP.LocaleID,
				})
				if changed, ok := pending.Update(updated); ok {
					if len(changed) > 0 {
						slog.Warn("config changes need a restart to take effect", "fields", changed)
					} else {
						slog.Info("restart-only config changes reverted")
					}
				}
			}); err != nil {
				slog.Error("config watcher stopped", "err", err)
			}
		}()
	}

	if ttl := cfg.KDP.ResourceCacheTTL; ttl > 0 {
		go func() {
			ticker := time.NewTicker(ttl)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case t := <-ticker.C:
					if n := cache.Evict(t); n > 0 {
						slog.Debug("evicted stale resource ids", "count", n)
					}
				}
			}
		}()
	}

	httpSrv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           httpapi.New(coll, metrics.Handler(), logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "addr", cfg.Listen)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("kdp-exporter shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
}
