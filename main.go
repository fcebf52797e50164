package main

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"charging-kpi/internal/analytics/application"
	analyticshttp "charging-kpi/internal/analytics/interfaces/http"
	"charging-kpi/internal/config"
	"charging-kpi/internal/observability/logging"
	"charging-kpi/internal/observability/metrics"
	"charging-kpi/internal/sessions/infrastructure/memory"
	"charging-kpi/internal/sessions/infrastructure/xlsx"
)

func main() {
	logger, err := logging.NewLogger()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config error", zap.Error(err))
	}

	metrics.Init(logger)

	loader := xlsx.NewLoader(
		xlsx.WithFetchTimeout(cfg.FetchTimeout),
		xlsx.WithMaxBytes(cfg.MaxUploadBytes),
	)
	cache, err := memory.NewCachingLoader(loader, cfg.CacheEntries)
	if err != nil {
		logger.Fatal("workbook cache error", zap.Error(err))
	}

	dashboardService, err := application.NewDashboardService(cache, application.Options{
		Schema:         cfg.Schema(),
		Normalize:      cfg.NormalizeOptions(),
		DefaultTopN:    cfg.DefaultTopN,
		PortfolioLabel: cfg.PortfolioLabel,
	}, logger)
	if err != nil {
		logger.Fatal("dashboard service error", zap.Error(err))
	}
	dashboardHandler, err := analyticshttp.NewHandler(dashboardService, cfg.MaxUploadBytes, logger)
	if err != nil {
		logger.Fatal("dashboard handler error", zap.Error(err))
	}

	mux := http.NewServeMux()
	mux.Handle("/api/v1/dashboard", dashboardHandler)
	mux.Handle("/api/v1/dashboard/", dashboardHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           loggingMiddleware(mux, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Info("http listening",
		zap.String("addr", cfg.HTTPAddr),
		zap.String("time_zone", cfg.TimeZone),
		zap.Int("default_top_n", cfg.DefaultTopN),
		zap.String("numeric_policy", string(cfg.NumericPolicy)),
	)
	if err := server.ListenAndServe(); err != nil {
		logger.Fatal("http server stopped", zap.Error(err))
	}
}

func loggingMiddleware(next http.Handler, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", resp.status),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
