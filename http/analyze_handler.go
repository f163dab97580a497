package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-chi/render"
	"github.com/yourorg/estimator-api/internal/analyzer"
	"github.com/yourorg/estimator-api/internal/models"
	"github.com/yourorg/estimator-api/llm"
)

const (
	multipartMemory = 32 << 20
	// five full-size images plus form fields
	maxAnalyzeBody = analyzer.MaxImages*analyzer.MaxImageBytes + 1<<20
)

type Analyzer interface {
	Analyze(ctx context.Context, req analyzer.Request) (*analyzer.Response, error)
	Estimate(ctx context.Context, req analyzer.EstimateRequest) (*analyzer.EstimateResponse, error)
	Get(ctx context.Context, id string) (models.PropertyAnalysis, error)
}

type AnalyzeDeps struct {
	Analyzer Analyzer
	// RateLimit caps analyze calls per client IP within RateWindow.
	RateLimit  int
	RateWindow time.Duration
}

type analyzeResponse struct {
	Success bool `json:"success"`
	*analyzer.Response
}

type EstimateRequest struct {
	CompanyID      string                   `json:"companyId"`
	ServiceTypes   []models.ServiceType     `json:"serviceTypes"`
	Metrics        json.RawMessage          `json:"metrics,omitempty"`
	Features       []models.DetectedFeature `json:"features,omitempty"`
	SquareFootage  int                      `json:"squareFootage,omitempty"`
	GutterLengthFt float64                  `json:"gutterLengthFt,omitempty"`
}

func RegisterAnalyze(r chi.Router, d AnalyzeDeps) {
	if d.RateLimit <= 0 {
		d.RateLimit = 10
	}
	if d.RateWindow <= 0 {
		d.RateWindow = time.Minute
	}
	limiter := httprate.Limit(d.RateLimit, d.RateWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, req *http.Request) {
			writeError(w, req, http.StatusTooManyRequests, "rate_limited", "too many analysis requests, try again later")
		}),
	)

	r.Route("/api/estimator", func(r chi.Router) {
		r.With(limiter).Post("/analyze", func(w http.ResponseWriter, req *http.Request) {
			handleAnalyze(w, req, d)
		})
		r.Post("/estimate", func(w http.ResponseWriter, req *http.Request) {
			handleEstimate(w, req, d)
		})
		r.Get("/analyses/{id}", func(w http.ResponseWriter, req *http.Request) {
			a, err := d.Analyzer.Get(req.Context(), chi.URLParam(req, "id"))
			if err != nil {
				writeAnalyzerError(w, req, err)
				return
			}
			render.JSON(w, req, a)
		})
	})
}

func handleAnalyze(w http.ResponseWriter, req *http.Request, d AnalyzeDeps) {
	req.Body = http.MaxBytesReader(w, req.Body, maxAnalyzeBody)
	if err := req.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, req, http.StatusRequestEntityTooLarge, "payload_too_large", fmt.Sprintf("request exceeds %d bytes", tooBig.Limit))
			return
		}
		writeError(w, req, http.StatusBadRequest, "invalid_form", err.Error())
		return
	}
	defer func() { _ = req.MultipartForm.RemoveAll() }()

	images, err := readImages(req)
	if err != nil {
		writeError(w, req, http.StatusBadRequest, "invalid_image", err.Error())
		return
	}
	services, err := parseServiceTypes(req.MultipartForm.Value["serviceTypes"], req.MultipartForm.Value["serviceTypes[]"])
	if err != nil {
		writeError(w, req, http.StatusBadRequest, "invalid_service_types", err.Error())
		return
	}

	resp, err := d.Analyzer.Analyze(req.Context(), analyzer.Request{
		Images:       images,
		Address:      req.FormValue("address"),
		ServiceTypes: services,
		CompanyID:    req.FormValue("companyId"),
	})
	if err != nil {
		writeAnalyzerError(w, req, err)
		return
	}
	render.JSON(w, req, analyzeResponse{Success: true, Response: resp})
}

func readImages(req *http.Request) ([]analyzer.Image, error) {
	files := req.MultipartForm.File["images"]
	sides := req.MultipartForm.Value["sides"]
	out := make([]analyzer.Image, 0, len(files))
	for i, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", fh.Filename, err)
		}
		// One byte over the cap is enough for the analyzer to reject it.
		data, err := io.ReadAll(io.LimitReader(f, analyzer.MaxImageBytes+1))
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", fh.Filename, err)
		}
		img := analyzer.Image{Data: data, ContentType: fh.Header.Get("Content-Type"), Filename: fh.Filename}
		if i < len(sides) {
			img.Side = sides[i]
		}
		out = append(out, img)
	}
	return out, nil
}

// parseServiceTypes accepts repeated fields, comma separated lists and JSON
// arrays, in any mix.
func parseServiceTypes(values ...[]string) ([]models.ServiceType, error) {
	var out []models.ServiceType
	for _, vs := range values {
		for _, v := range vs {
			v = strings.TrimSpace(v)
			if strings.HasPrefix(v, "[") {
				var arr []string
				if err := json.Unmarshal([]byte(v), &arr); err != nil {
					return nil, fmt.Errorf("serviceTypes: %w", err)
				}
				for _, s := range arr {
					if s = strings.TrimSpace(s); s != "" {
						out = append(out, models.ServiceType(s))
					}
				}
				continue
			}
			for _, s := range strings.Split(v, ",") {
				if s = strings.TrimSpace(s); s != "" {
					out = append(out, models.ServiceType(s))
				}
			}
		}
	}
	return out, nil
}

func handleEstimate(w http.ResponseWriter, req *http.Request, d AnalyzeDeps) {
	var body EstimateRequest
	if err := json.NewDecoder(io.LimitReader(req.Body, 1<<20)).Decode(&body); err != nil {
		writeError(w, req, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	in := analyzer.EstimateRequest{
		CompanyID:      body.CompanyID,
		ServiceTypes:   body.ServiceTypes,
		Features:       body.Features,
		SquareFootage:  body.SquareFootage,
		GutterLengthFt: body.GutterLengthFt,
	}
	if len(body.Metrics) > 0 && string(body.Metrics) != "null" {
		m, ok := llm.Parse(body.Metrics)
		if !ok {
			writeError(w, req, http.StatusBadRequest, "invalid_metrics", "metrics must be a JSON object")
			return
		}
		in.Metrics = m
	}
	resp, err := d.Analyzer.Estimate(req.Context(), in)
	if err != nil {
		writeAnalyzerError(w, req, err)
		return
	}
	render.JSON(w, req, map[string]any{
		"success":       true,
		"estimates":     resp.Estimates,
		"totalEstimate": resp.TotalEstimate,
		"squareFootage": resp.SquareFootage,
	})
}
