package main

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"CatalogFeed/internal/catalog"
	"CatalogFeed/internal/config"
	"CatalogFeed/internal/feed"
	"CatalogFeed/pkg/kit"
)

func main() {
	service := "catalog"

	cfg, cfgErr := config.Load()
	log := kit.NewLogger(service, cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	if cfgErr != nil {
		log.Fatal("config", zap.Error(cfgErr))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	hub := feed.NewHub[catalog.Product](
		feed.WithBufferSize(cfg.FeedBuffer),
		feed.WithLogger(log.Named("feed")),
		feed.WithMetrics(feed.NewMetrics(reg)),
	)

	var seed []catalog.Product
	if cfg.Seed {
		seed = catalog.SeedProducts()
	}
	svc := catalog.NewService(catalog.NewMemStore(seed...), hub, log)

	s := &catalog.Server{
		Service:   svc,
		Log:       log,
		Heartbeat: cfg.FeedHeartbeat,
	}
	if cfg.JWTSecret != "" {
		s.WriteGuard = catalog.RequireRole(catalog.NewTokenMaker(cfg.JWTSecret), catalog.RoleAdmin)
	} else {
		log.Warn("jwt_secret not set, write routes are open")
	}
	if cfg.SubscribeLimitPerMin > 0 {
		s.SubscribeLimit = kit.NewIPRateLimiter(cfg.SubscribeLimitPerMin, time.Minute).Middleware
	}

	h := catalog.NewHandler(s, catalog.HTTPDeps{
		Log:            log,
		Service:        service,
		Registry:       reg,
		MetricsEnabled: cfg.MetricsToken != "",
		MetricsToken:   cfg.MetricsToken,
	})

	log.Info("catalog ready",
		zap.Int("products", len(seed)),
		zap.Int("feed_buffer", cfg.FeedBuffer),
		zap.Duration("feed_heartbeat", cfg.FeedHeartbeat),
	)

	if err := kit.RunHTTPServer(cfg.HTTPAddr, h, log,
		kit.WithShutdownTimeout(cfg.ShutdownTimeout),
		kit.OnShutdown(hub.Close),
	); err != nil {
		log.Fatal("http server stopped", zap.Error(err))
	}
}
