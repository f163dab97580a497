package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
	"github.com/yourorg/estimator-api/internal/analyzer"
)

func writeError(w http.ResponseWriter, req *http.Request, status int, code string, detail any) {
	render.Status(req, status)
	body := map[string]any{"error": code}
	if detail != nil {
		body["detail"] = detail
	}
	render.JSON(w, req, body)
}

// writeAnalyzerError maps orchestration errors onto status codes. Causes of
// failed analyses are logged by the analyzer and never sent to clients.
func writeAnalyzerError(w http.ResponseWriter, req *http.Request, err error) {
	var ve *analyzer.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, req, http.StatusBadRequest, ve.Code, ve.Message)
	case errors.Is(err, analyzer.ErrNotFound):
		writeError(w, req, http.StatusNotFound, "not_found", nil)
	case errors.Is(err, analyzer.ErrAnalysisFailed):
		writeError(w, req, http.StatusInternalServerError, "analysis_failed", "failed to analyze property")
	default:
		writeError(w, req, http.StatusInternalServerError, "internal_error", nil)
	}
}
