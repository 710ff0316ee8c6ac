// Package app wires the application's services together so commands only
// deal with one fully-constructed object.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/gosaq/saq-crawler/internal/config"
	"github.com/gosaq/saq-crawler/internal/logging"
	"github.com/gosaq/saq-crawler/internal/metrics"
	"github.com/gosaq/saq-crawler/internal/saq"
	"github.com/gosaq/saq-crawler/internal/store"
)

// App holds every long-lived service the commands need.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	store   *store.Store
	saq     *saq.Client
	metrics *metrics.Metrics

	metricsServer *http.Server
}

// New loads configuration from cfgPath (or defaults/environment when empty)
// and constructs the logger, database store, catalog client, and metrics.
// When metrics.addr is set, a Prometheus endpoint is served on it for the
// lifetime of the App.
func New(ctx context.Context, cfgPath string) (*App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}

	st, err := store.New(ctx, store.Config{
		DSN:         cfg.DB.DSN,
		MaxConns:    cfg.DB.MaxConns,
		MinConns:    cfg.DB.MinConns,
		LockTimeout: cfg.LockTimeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("initialize store: %w", err)
	}

	client, err := saq.NewClient(cfg.Crawler.BaseURL, cfg.Crawler.UserAgent, cfg.HTTPTimeout(), logger)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("initialize catalog client: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	m := metrics.New(registry)

	a := &App{
		cfg:     cfg,
		logger:  logger,
		store:   st,
		saq:     client,
		metrics: m,
	}

	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		a.metricsServer = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
		go func() {
			logger.Info("serving metrics", zap.String("addr", cfg.Metrics.Addr))
			if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server stopped", zap.Error(err))
			}
		}()
	}

	return a, nil
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Store returns the product store.
func (a *App) Store() *store.Store { return a.store }

// SAQ returns the catalog client.
func (a *App) SAQ() *saq.Client { return a.saq }

// Metrics returns the crawl counters.
func (a *App) Metrics() *metrics.Metrics { return a.metrics }

// Close releases all held resources. Safe to call once at shutdown.
func (a *App) Close() {
	if a.metricsServer != nil {
		_ = a.metricsServer.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}
