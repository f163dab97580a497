package v1

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourorg/estimator-api/internal/models"
	"github.com/yourorg/estimator-api/internal/property"
)

type fakeResolver struct {
	res  property.Result
	err  error
	last string
}

func (f *fakeResolver) Resolve(_ context.Context, address string) (property.Result, error) {
	f.last = address
	return f.res, f.err
}

func serve(t *testing.T, res Resolver, req *http.Request) (int, map[string]any) {
	t.Helper()
	r := chi.NewRouter()
	RegisterResolve(r, ResolveDeps{Properties: res})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec.Code, out
}

func TestResolve_Found(t *testing.T) {
	f := &fakeResolver{res: property.Result{
		PropertyKey: "123 main st|springfield|il|62704",
		Source:      "fresh",
		Data:        &models.PropertyData{SquareFootage: models.IntPtr(1850), Source: "attom"},
	}}
	code, out := serve(t, f, httptest.NewRequest(http.MethodGet, "/v1/properties/resolve?address=123+Main+St&city=Springfield&state=IL&zip=62704", nil))
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "123 Main St, Springfield, IL 62704", f.last)
	assert.Equal(t, true, out["ok"])
	assert.Equal(t, "fresh", out["source"])
	data := out["data"].(map[string]any)
	assert.Equal(t, 1850.0, data["squareFootage"])
}

func TestResolve_PostOneLine(t *testing.T) {
	f := &fakeResolver{res: property.Result{Source: "cache", Stale: true, Data: &models.PropertyData{}}}
	code, out := serve(t, f, httptest.NewRequest(http.MethodPost, "/v1/properties/resolve",
		strings.NewReader(`{"address":"9 Elm St, Town, TX 75001"}`)))
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "9 Elm St, Town, TX 75001", f.last)
	assert.Equal(t, true, out["stale"])
}

func TestResolve_Errors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		key    string
		val    any
	}{
		{"not found", property.ErrNotFound, http.StatusNotFound, "error", "not_found"},
		{"in progress", property.ErrInProgress, http.StatusAccepted, "in_progress", true},
		{"upstream", errors.New("attom error 500"), http.StatusBadGateway, "error", "upstream_error"},
		{"empty after trim", property.ErrAddressRequired, http.StatusBadRequest, "error", "address_required"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := &fakeResolver{res: property.Result{PropertyKey: "k"}, err: tc.err}
			code, out := serve(t, f, httptest.NewRequest(http.MethodGet, "/v1/properties/resolve?address=1+A+St", nil))
			assert.Equal(t, tc.status, code)
			assert.Equal(t, tc.val, out[tc.key])
		})
	}
}

func TestResolve_Validation(t *testing.T) {
	f := &fakeResolver{}
	code, out := serve(t, f, httptest.NewRequest(http.MethodGet, "/v1/properties/resolve?city=Springfield", nil))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "address_required", out["error"])
	assert.Empty(t, f.last)

	code, out = serve(t, f, httptest.NewRequest(http.MethodPost, "/v1/properties/resolve", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_json", out["error"])
}

func TestValidate(t *testing.T) {
	_, out := serve(t, &fakeResolver{}, httptest.NewRequest(http.MethodGet, "/v1/properties/validate?address=123+Main+St%2C+City%2C+ST+12345", nil))
	assert.Equal(t, true, out["valid"])
	_, out = serve(t, &fakeResolver{}, httptest.NewRequest(http.MethodGet, "/v1/properties/validate?address=Main+St", nil))
	assert.Equal(t, false, out["valid"])
}

type fakePrefetcher struct{ addrs []string }

func (f *fakePrefetcher) Prefetch(address string) (string, bool) {
	f.addrs = append(f.addrs, address)
	return "k", len(f.addrs) == 1
}

func TestHydrate(t *testing.T) {
	pf := &fakePrefetcher{}
	r := chi.NewRouter()
	RegisterResolve(r, ResolveDeps{Properties: &fakeResolver{}, Prefetch: pf})

	post := func(body string) (int, map[string]any) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/properties/hydrate", strings.NewReader(body)))
		var out map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		return rec.Code, out
	}

	code, out := post(`{"address":"123 Main St","city":"Springfield","state":"IL","zip":"62704"}`)
	assert.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, true, out["queued"])
	assert.Equal(t, []string{"123 Main St, Springfield, IL 62704"}, pf.addrs)

	_, out = post(`{"address":"123 Main St"}`)
	assert.Equal(t, false, out["queued"])

	code, out = post(`{"address":"Main St"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_address", out["error"])
	assert.Len(t, pf.addrs, 2)
}
