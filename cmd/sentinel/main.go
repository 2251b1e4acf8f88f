package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/sentinel/core/config"
	"github.com/dmitrymomot/sentinel/core/health"
	"github.com/dmitrymomot/sentinel/core/logger"
	"github.com/dmitrymomot/sentinel/core/monitor"
	"github.com/dmitrymomot/sentinel/core/security"
	"github.com/dmitrymomot/sentinel/core/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cfg Config
	config.MustLoad(&cfg) // panic on error

	log := logger.New(cfg.logOptions()...)

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to open stores", logger.Component("storage"), logger.Error(err))
		os.Exit(1)
	}
	defer st.close()

	svc, err := security.NewFromConfig(cfg.Security, st.events, st.keys, security.WithLogger(log))
	if err != nil {
		log.Error("Failed to create security service", logger.Component("security"), logger.Error(err))
		os.Exit(1)
	}

	mon, err := monitor.NewFromConfig(cfg.Monitor, svc, st.keys,
		monitor.WithRecentEventsKey(cfg.Security.RecentEventsKey),
		monitor.WithVerbose(cfg.Monitor.Verbose || cfg.development()),
		monitor.WithRegisterer(prometheus.DefaultRegisterer),
		monitor.WithLogger(log),
	)
	if err != nil {
		log.Error("Failed to create security monitor", logger.Component("monitor"), logger.Error(err))
		os.Exit(1)
	}

	ses, err := startSession(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to start session manager", logger.Component("session"), logger.Error(err))
		os.Exit(1)
	}
	if ses != nil {
		defer ses.Close()
	}

	guard := security.Guard(svc,
		security.WithAutoBlock(cfg.BlockOnThreat),
		security.WithTrustedProxy(cfg.TrustProxy),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health/live", health.Liveness)
	mux.HandleFunc("GET /health/ready", health.Readiness(log, append(st.checks, mon.Healthcheck)...))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("GET /status", guard(mon.StatusHandler()))

	s, err := server.NewFromConfig(cfg.Server, server.WithLogger(log))
	if err != nil {
		log.Error("Failed to create server", logger.Component("server"), logger.Error(err))
		os.Exit(1)
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(mon.Run(ctx))
	eg.Go(s.Run(ctx, mux))

	if err := eg.Wait(); err != nil {
		log.Error("Sentinel stopped with error", logger.Error(err))
		if err := mon.EmergencyShutdown(err.Error()); err != nil {
			log.Error("Emergency shutdown failed", logger.Component("monitor"), logger.Error(err))
		}
		st.close()
		os.Exit(1)
	}

	log.Info("Sentinel stopped")
}
