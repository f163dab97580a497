package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/yourorg/estimator-api/internal/models"
	"github.com/yourorg/estimator-api/internal/tenant"
)

type TenantConfigs interface {
	Get(ctx context.Context, companyID string) (tenant.Config, error)
	Put(ctx context.Context, cfg tenant.Config) (tenant.Config, error)
}

type ConfigDeps struct {
	Tenants TenantConfigs
}

// configView is a tenant configuration plus the services it offers.
type configView struct {
	tenant.Config
	EnabledServices []models.ServiceType `json:"enabledServices"`
}

func viewOf(cfg tenant.Config) configView {
	return configView{Config: cfg, EnabledServices: cfg.EnabledServices()}
}

func RegisterCompanyConfig(r chi.Router, d ConfigDeps) {
	r.Route("/api/companies/{id}/config", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			cfg, err := d.Tenants.Get(req.Context(), chi.URLParam(req, "id"))
			if err != nil {
				writeError(w, req, http.StatusInternalServerError, "config_unavailable", nil)
				return
			}
			render.JSON(w, req, viewOf(cfg))
		})
		r.Put("/", func(w http.ResponseWriter, req *http.Request) {
			putConfig(w, req, d)
		})
	})
}

func putConfig(w http.ResponseWriter, req *http.Request, d ConfigDeps) {
	id := chi.URLParam(req, "id")
	raw, err := io.ReadAll(io.LimitReader(req.Body, 64<<10))
	if err != nil {
		writeError(w, req, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		writeError(w, req, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	// the path names the company; enabledServices is derived
	doc["companyId"] = id
	delete(doc, "enabledServices")
	raw, _ = json.Marshal(doc)

	var invalid *tenant.InvalidConfigError
	if err := tenant.ValidateJSON(raw); err != nil {
		if errors.As(err, &invalid) {
			writeError(w, req, http.StatusBadRequest, "invalid_config", invalid.Problems)
			return
		}
		writeError(w, req, http.StatusBadRequest, "invalid_config", err.Error())
		return
	}

	cfg := tenant.Default(id)
	if err := json.Unmarshal(raw, &cfg); err != nil {
		writeError(w, req, http.StatusBadRequest, "invalid_config", err.Error())
		return
	}
	saved, err := d.Tenants.Put(req.Context(), cfg)
	switch {
	case errors.As(err, &invalid):
		writeError(w, req, http.StatusBadRequest, "invalid_config", invalid.Problems)
	case errors.Is(err, tenant.ErrNoStore):
		writeError(w, req, http.StatusServiceUnavailable, "config_store_unavailable", nil)
	case err != nil:
		writeError(w, req, http.StatusInternalServerError, "config_save_failed", nil)
	default:
		render.JSON(w, req, viewOf(saved))
	}
}
