package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpapi "github.com/yourorg/estimator-api/http"
	httpv1 "github.com/yourorg/estimator-api/http/v1"
	"github.com/yourorg/estimator-api/internal/config"
	"github.com/yourorg/estimator-api/internal/logger"
	"go.uber.org/zap"
)

type PropertyService interface {
	httpv1.Resolver
	httpv1.Prefetcher
}

type RouterDeps struct {
	Log        *zap.Logger
	Analyzer   httpapi.Analyzer
	Tenants    httpapi.TenantConfigs
	Properties PropertyService
	RateLimit  config.RateLimitConfig
}

func BuildRouter(d RouterDeps) http.Handler {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	global := d.RateLimit.GlobalRequests
	if global <= 0 {
		global = 100
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(logger.Middleware(d.Log))
	r.Use(middleware.Recoverer)
	r.Use(httprate.LimitByIP(global, 1*time.Minute)) // protect upstream quota
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		render.JSON(w, req, map[string]any{"ok": true})
	})
	r.Handle("/metrics", promhttp.Handler())

	httpapi.RegisterAnalyze(r, httpapi.AnalyzeDeps{
		Analyzer:   d.Analyzer,
		RateLimit:  d.RateLimit.AnalyzeRequests,
		RateWindow: d.RateLimit.AnalyzeWindow,
	})
	httpapi.RegisterCompanyConfig(r, httpapi.ConfigDeps{Tenants: d.Tenants})

	// v1 resolve endpoint with Redis + SWR
	httpv1.RegisterResolve(r, httpv1.ResolveDeps{Properties: d.Properties, Prefetch: d.Properties, Log: d.Log})

	return r
}
