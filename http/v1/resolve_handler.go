package v1

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/yourorg/estimator-api/internal/canon"
	"github.com/yourorg/estimator-api/internal/property"
	"go.uber.org/zap"
)

type Resolver interface {
	Resolve(ctx context.Context, address string) (property.Result, error)
}

// Prefetcher warms the property cache in the background.
type Prefetcher interface {
	Prefetch(address string) (string, bool)
}

type ResolveDeps struct {
	Properties Resolver
	Prefetch   Prefetcher
	Log        *zap.Logger
}

type ResolveRequest struct {
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
}

// OneLine joins the parts into "line1, city, state zip". Address alone may
// already be a full one-line address.
func (r ResolveRequest) OneLine() string {
	parts := []string{strings.TrimSpace(r.Address)}
	if c := strings.TrimSpace(r.City); c != "" {
		parts = append(parts, c)
	}
	if tail := strings.TrimSpace(strings.TrimSpace(r.State) + " " + strings.TrimSpace(r.Zip)); tail != "" {
		parts = append(parts, tail)
	}
	return strings.Join(parts, ", ")
}

func RegisterResolve(r chi.Router, d ResolveDeps) {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	r.Route("/v1/properties", func(r chi.Router) {
		r.Post("/resolve", func(w http.ResponseWriter, req *http.Request) {
			var body ResolveRequest
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeError(w, req, http.StatusBadRequest, map[string]any{"error": "invalid_json", "detail": err.Error()})
				return
			}
			resolve(w, req, d, body)
		})
		r.Get("/resolve", func(w http.ResponseWriter, req *http.Request) {
			q := req.URL.Query()
			resolve(w, req, d, ResolveRequest{
				Address: q.Get("address"),
				City:    q.Get("city"),
				State:   q.Get("state"),
				Zip:     q.Get("zip"),
			})
		})
		if d.Prefetch != nil {
			r.Post("/hydrate", func(w http.ResponseWriter, req *http.Request) {
				hydrate(w, req, d)
			})
		}
		r.Get("/validate", func(w http.ResponseWriter, req *http.Request) {
			render.JSON(w, req, map[string]any{"valid": canon.ValidAddress(req.URL.Query().Get("address"))})
		})
	})
}

func resolve(w http.ResponseWriter, req *http.Request, d ResolveDeps, body ResolveRequest) {
	if strings.TrimSpace(body.Address) == "" {
		writeError(w, req, http.StatusBadRequest, map[string]any{"error": "address_required", "detail": "address is required"})
		return
	}
	res, err := d.Properties.Resolve(req.Context(), body.OneLine())
	switch {
	case errors.Is(err, property.ErrAddressRequired):
		writeError(w, req, http.StatusBadRequest, map[string]any{"error": "address_required", "detail": "address is required"})
	case errors.Is(err, property.ErrNotFound):
		writeError(w, req, http.StatusNotFound, map[string]any{"error": "not_found", "property_key": res.PropertyKey})
	case errors.Is(err, property.ErrInProgress):
		writeError(w, req, http.StatusAccepted, map[string]any{"ok": false, "in_progress": true, "property_key": res.PropertyKey})
	case err != nil:
		d.Log.Warn("property resolve failed", zap.String("property_key", res.PropertyKey), zap.Error(err))
		writeError(w, req, http.StatusBadGateway, map[string]any{"error": "upstream_error", "property_key": res.PropertyKey})
	default:
		render.JSON(w, req, map[string]any{
			"ok":           true,
			"source":       res.Source,
			"stale":        res.Stale,
			"property_key": res.PropertyKey,
			"normalized":   res.Normalized,
			"data":         res.Data,
		})
	}
}

func hydrate(w http.ResponseWriter, req *http.Request, d ResolveDeps) {
	var body ResolveRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, req, http.StatusBadRequest, map[string]any{"error": "invalid_json", "detail": err.Error()})
		return
	}
	if !canon.ValidAddress(body.Address) {
		writeError(w, req, http.StatusBadRequest, map[string]any{"error": "invalid_address"})
		return
	}
	key, queued := d.Prefetch.Prefetch(body.OneLine())
	render.Status(req, http.StatusAccepted)
	render.JSON(w, req, map[string]any{"ok": true, "queued": queued, "property_key": key})
}

func writeError(w http.ResponseWriter, req *http.Request, status int, body map[string]any) {
	render.Status(req, status)
	render.JSON(w, req, body)
}
