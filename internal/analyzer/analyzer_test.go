package analyzer

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"math/rand/v2"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourorg/estimator-api/internal/estimate"
	"github.com/yourorg/estimator-api/internal/events"
	"github.com/yourorg/estimator-api/internal/models"
	"github.com/yourorg/estimator-api/internal/storage"
	"github.com/yourorg/estimator-api/internal/store"
	"github.com/yourorg/estimator-api/internal/tenant"
	"github.com/yourorg/estimator-api/internal/vision"
	"github.com/yourorg/estimator-api/llm"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type fakeTenants struct {
	cfg tenant.Config
	err error
}

func (f fakeTenants) Get(_ context.Context, id string) (tenant.Config, error) {
	if f.err != nil {
		return tenant.Config{}, f.err
	}
	cfg := f.cfg
	if cfg.CompanyID == "" {
		cfg = tenant.Default(id)
	}
	return cfg, nil
}

type fakeDetector struct {
	calls  atomic.Int32
	result vision.Result
	bySide map[string]vision.Result
	err    error

	mu    sync.Mutex
	sides []string
}

func (f *fakeDetector) Analyze(_ context.Context, img vision.Image) (vision.Result, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.sides = append(f.sides, img.Side)
	f.mu.Unlock()
	if !strings.HasPrefix(img.URL, "memory://") {
		return vision.Result{}, errors.New("detector called before upload")
	}
	if r, ok := f.bySide[img.Side]; ok {
		return r, f.err
	}
	return f.result, f.err
}

// recordingStorage signs references with a fixed host and remembers deletes.
type recordingStorage struct {
	*storage.Memory
	signErr error

	mu      sync.Mutex
	deleted []string
}

func (r *recordingStorage) URL(_ context.Context, ref string) (string, error) {
	if r.signErr != nil {
		return "", r.signErr
	}
	return "https://signed.example/" + strings.TrimPrefix(ref, "memory://") + "?sig=1", nil
}

func (r *recordingStorage) Delete(ctx context.Context, ref string) error {
	r.mu.Lock()
	r.deleted = append(r.deleted, ref)
	r.mu.Unlock()
	return r.Memory.Delete(ctx, ref)
}

// pngOfSize is a PNG header declaring w x h with no pixel data.
func pngOfSize(w, h int) []byte {
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], uint32(w))
	binary.BigEndian.PutUint32(ihdr[4:], uint32(h))
	ihdr[8] = 8

	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	buf.WriteString("IHDR")
	buf.Write(ihdr)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(append([]byte("IHDR"), ihdr...)))
	return buf.Bytes()
}

type fakeLookup struct {
	calls atomic.Int32
	data  *models.PropertyData
}

func (f *fakeLookup) Lookup(_ context.Context, _ string) *models.PropertyData {
	f.calls.Add(1)
	return f.data
}

type fakeStore struct {
	saved []models.PropertyAnalysis
	keys  []string
	err   error
}

func (f *fakeStore) SaveAnalysis(_ context.Context, a models.PropertyAnalysis, key string) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, a)
	f.keys = append(f.keys, key)
	return nil
}

func (f *fakeStore) GetAnalysis(_ context.Context, id string) (models.PropertyAnalysis, error) {
	for _, a := range f.saved {
		if a.ID == id {
			return a, nil
		}
	}
	return models.PropertyAnalysis{}, store.ErrNotFound
}

func tenWindows() []models.DetectedFeature {
	var out []models.DetectedFeature
	for i := 0; i < 10; i++ {
		out = append(out, models.DetectedFeature{Type: models.FeatureWindow, Confidence: 0.9})
	}
	return append(out, models.DetectedFeature{Type: models.FeatureDoor, Confidence: 0.9})
}

func images(n int) []Image {
	out := make([]Image, n)
	for i := range out {
		out[i] = Image{Data: pngHeader, ContentType: "image/png", Filename: "house.png"}
	}
	return out
}

func newService(d Deps) *Service {
	if d.Tenants == nil {
		d.Tenants = fakeTenants{}
	}
	if d.Storage == nil {
		d.Storage = storage.NewMemory()
	}
	if d.Detector == nil {
		d.Detector = &fakeDetector{result: vision.Result{Features: tenWindows(), Confidence: 0.9}}
	}
	d.Rand = rand.New(rand.NewPCG(1, 2))
	return New(d)
}

func TestAnalyze_Validation(t *testing.T) {
	noAddress := tenant.Default("strict")
	noAddress.Features.RequireAddress = true
	noGutters := tenant.Default("nogutters")
	noGutters.Features.EnableGutterCleaning = false

	big := Image{Data: append(append([]byte{}, pngHeader...), make([]byte, MaxImageBytes)...), ContentType: "image/png"}

	cases := []struct {
		name    string
		cfg     tenant.Config
		req     Request
		code    string
		wrapped error
	}{
		{"no images", tenant.Config{}, Request{ServiceTypes: []models.ServiceType{models.HouseWashing}}, "no_images", nil},
		{"too many images", tenant.Config{}, Request{Images: images(6), ServiceTypes: []models.ServiceType{models.HouseWashing}}, "too_many_images", nil},
		{"too large", tenant.Config{}, Request{Images: []Image{big}, ServiceTypes: []models.ServiceType{models.HouseWashing}}, "image_too_large", nil},
		{"too many pixels", tenant.Config{}, Request{Images: []Image{{Data: pngOfSize(16000, 16000), ContentType: "image/png"}}, ServiceTypes: []models.ServiceType{models.HouseWashing}}, "image_dimensions_too_large", nil},
		{"not an image", tenant.Config{}, Request{Images: []Image{{Data: []byte("plain text body"), ContentType: "text/plain"}}, ServiceTypes: []models.ServiceType{models.HouseWashing}}, "invalid_image_type", nil},
		{"sniffed type", tenant.Config{}, Request{Images: []Image{{Data: []byte("plain text body")}}, ServiceTypes: []models.ServiceType{models.HouseWashing}}, "invalid_image_type", nil},
		{"no services", tenant.Config{}, Request{Images: images(1)}, "no_service_types", nil},
		{"unsupported", tenant.Config{}, Request{Images: images(1), ServiceTypes: []models.ServiceType{"window_cleaning"}}, "unsupported_service", estimate.ErrUnsupportedService},
		{"disabled", noGutters, Request{Images: images(1), ServiceTypes: []models.ServiceType{models.GutterCleaning}}, "service_disabled", nil},
		{"address required", noAddress, Request{Images: images(1), ServiceTypes: []models.ServiceType{models.HouseWashing}, Address: "   "}, "address_required", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			det := &fakeDetector{}
			st := &fakeStore{}
			s := newService(Deps{Tenants: fakeTenants{cfg: tc.cfg}, Detector: det, Store: st})

			resp, err := s.Analyze(context.Background(), tc.req)
			require.Error(t, err)
			assert.Nil(t, resp)
			var ve *ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tc.code, ve.Code)
			if tc.wrapped != nil {
				assert.ErrorIs(t, err, tc.wrapped)
			}
			assert.Zero(t, det.calls.Load())
			assert.Empty(t, st.saved)
		})
	}
}

func TestAnalyze_UsesLookupSquareFootage(t *testing.T) {
	var fourWindows []models.DetectedFeature
	for i := 0; i < 4; i++ {
		fourWindows = append(fourWindows, models.DetectedFeature{Type: models.FeatureWindow, Confidence: 0.6})
	}
	det := &fakeDetector{bySide: map[string]vision.Result{
		"front": {Features: fourWindows, Confidence: 0.6},
		"back":  {Features: tenWindows(), Confidence: 0.9},
	}}
	lookup := &fakeLookup{data: &models.PropertyData{SquareFootage: models.IntPtr(2000), Source: "attom"}}
	st := &fakeStore{}
	bus := events.NewInMemory(4)
	s := newService(Deps{Detector: det, Properties: lookup, Store: st, Events: bus})

	resp, err := s.Analyze(context.Background(), Request{
		Images:       images(2),
		Address:      "123 Main Street, Springfield, IL 62704",
		ServiceTypes: []models.ServiceType{models.HouseWashing, models.HouseWashing},
		CompanyID:    "acme",
	})
	require.NoError(t, err)

	assert.EqualValues(t, 2, det.calls.Load())
	assert.ElementsMatch(t, []string{"front", "back"}, det.sides)
	assert.EqualValues(t, 1, lookup.calls.Load())
	assert.Equal(t, 2000, resp.Analysis.EstimatedSquareFootage)
	assert.Len(t, resp.Analysis.Features, 15, "features from every image are kept")
	assert.Equal(t, 14, resp.Analysis.TotalWindows)
	assert.Equal(t, 1, resp.Analysis.TotalDoors)
	assert.InDelta(t, 0.75, resp.Analysis.Confidence, 1e-9, "confidence is the mean over images")
	assert.Len(t, resp.Analysis.Images, 2)
	assert.Equal(t, resp.Analysis.Images[0], resp.Analysis.ImageID)

	require.Len(t, resp.Estimates, 1, "duplicate service types are priced once")
	assert.Equal(t, 562.0, resp.Estimates[0].TotalPrice)
	assert.Equal(t, resp.AnalysisID, resp.Estimates[0].AnalysisID)
	assert.Equal(t, 562.0, resp.TotalEstimate)
	assert.Same(t, lookup.data, resp.PropertyData)

	require.Len(t, st.saved, 1)
	assert.Equal(t, "acme", st.saved[0].CompanyID)
	assert.Equal(t, "123 main st|springfield|il|62704", st.keys[0])
	assert.Equal(t, tenant.DefaultCompanyID, resp.metricsLabel, "acme has no stored configuration")

	evt := <-bus.SubscribeAnalysisCompleted()
	assert.Equal(t, resp.AnalysisID, evt.AnalysisID)
	assert.Equal(t, 2, evt.ImageCount)
	assert.Equal(t, 14, evt.TotalWindows)
	assert.False(t, evt.StoredTenant)
	assert.Equal(t, []models.ServiceType{models.HouseWashing}, evt.ServiceTypes)
}

func TestAnalyze_ImagesAreSignedNotStored(t *testing.T) {
	stored := tenant.Default("acme")
	stored.Version = 3
	rs := &recordingStorage{Memory: storage.NewMemory()}
	st := &fakeStore{}
	bus := events.NewInMemory(1)
	s := newService(Deps{Tenants: fakeTenants{cfg: stored}, Storage: rs, Store: st, Events: bus})

	resp, err := s.Analyze(context.Background(), Request{Images: images(3), ServiceTypes: []models.ServiceType{models.HouseWashing}, CompanyID: "acme"})
	require.NoError(t, err)
	require.Len(t, resp.Analysis.Images, 3)
	for _, u := range resp.Analysis.Images {
		assert.True(t, strings.HasPrefix(u, "https://signed.example/property-images/"), u)
	}
	assert.Equal(t, resp.Analysis.Images[0], resp.Analysis.ImageID)
	assert.Empty(t, rs.deleted)
	assert.Equal(t, "acme", resp.metricsLabel)
	assert.True(t, (<-bus.SubscribeAnalysisCompleted()).StoredTenant)

	require.Len(t, st.saved, 1)
	for _, ref := range st.saved[0].Images {
		assert.True(t, strings.HasPrefix(ref, "memory://"), "the stored analysis keeps references")
	}

	got, err := s.Get(context.Background(), resp.AnalysisID)
	require.NoError(t, err)
	assert.Equal(t, resp.Analysis.Images, got.Images)
	assert.Equal(t, resp.Analysis.ImageID, got.ImageID)

	rs.signErr = errors.New("no credentials")
	got, err = s.Get(context.Background(), resp.AnalysisID)
	require.NoError(t, err)
	assert.Equal(t, st.saved[0].Images, got.Images, "unsignable references are returned as is")
}

func TestAnalyze_FailureDeletesUploadedImages(t *testing.T) {
	t.Run("detector", func(t *testing.T) {
		rs := &recordingStorage{Memory: storage.NewMemory()}
		s := newService(Deps{Storage: rs, Detector: &fakeDetector{err: errors.New("model offline")}})
		_, err := s.Analyze(context.Background(), Request{Images: images(3), ServiceTypes: []models.ServiceType{models.HouseWashing}})
		require.ErrorIs(t, err, ErrAnalysisFailed)
		assert.Len(t, rs.deleted, 3)
		for _, ref := range rs.deleted {
			assert.True(t, strings.HasPrefix(ref, "memory://property-images/"), ref)
		}
	})
	t.Run("persist", func(t *testing.T) {
		rs := &recordingStorage{Memory: storage.NewMemory()}
		s := newService(Deps{Storage: rs, Store: &fakeStore{err: errors.New("db down")}})
		_, err := s.Analyze(context.Background(), Request{Images: images(2), ServiceTypes: []models.ServiceType{models.HouseWashing}})
		require.ErrorIs(t, err, ErrAnalysisFailed)
		assert.Len(t, rs.deleted, 2)
	})
	t.Run("validation uploads nothing", func(t *testing.T) {
		rs := &recordingStorage{Memory: storage.NewMemory()}
		s := newService(Deps{Storage: rs})
		_, err := s.Analyze(context.Background(), Request{Images: images(1)})
		require.Error(t, err)
		assert.Empty(t, rs.deleted)
	})
}

func TestAnalyze_MetricsDriveSquareFootageAndGutters(t *testing.T) {
	det := &fakeDetector{result: vision.Result{
		Features:   vision.FeaturesFromMetrics(llm.Metrics{WindowCount: 5, WallAreaSqFt: 2000}, 0.9),
		Confidence: 0.9,
		Metrics:    &llm.Metrics{WindowCount: 5, WallAreaSqFt: 2000, GutterLengthFt: 70},
		Tier:       llm.TierStructured,
	}}
	s := newService(Deps{Detector: det})

	resp, err := s.Analyze(context.Background(), Request{
		Images:       images(2),
		ServiceTypes: []models.ServiceType{models.GutterCleaning, models.RoofCleaning},
	})
	require.NoError(t, err)
	assert.Equal(t, 2000, resp.Analysis.EstimatedSquareFootage)
	require.Len(t, resp.Estimates, 2)
	assert.Equal(t, 590.0, resp.Estimates[0].TotalPrice)
	assert.Equal(t, 850.0, resp.Estimates[1].TotalPrice)
	assert.Equal(t, 1440.0, resp.TotalEstimate)
	assert.Nil(t, resp.PropertyData)
	assert.Equal(t, tenant.DefaultCompanyID, resp.Analysis.CompanyID)
}

func TestAnalyze_FeatureHeuristicWhenNothingElse(t *testing.T) {
	s := newService(Deps{})
	resp, err := s.Analyze(context.Background(), Request{Images: images(1), ServiceTypes: []models.ServiceType{models.RoofCleaning}})
	require.NoError(t, err)
	sqft := resp.Analysis.EstimatedSquareFootage
	assert.GreaterOrEqual(t, sqft, estimate.MinSquareFootage)
	assert.LessOrEqual(t, sqft, 1450)
}

func TestAnalyze_LookupSkipped(t *testing.T) {
	noLookup := tenant.Default("quiet")
	noLookup.Features.EnablePropertyLookup = false

	for name, tc := range map[string]struct {
		cfg     tenant.Config
		address string
	}{
		"disabled for tenant": {noLookup, "123 Main St, Springfield, IL 62704"},
		"malformed address":   {tenant.Config{}, "Main Street without a number"},
		"no address":          {tenant.Config{}, ""},
	} {
		t.Run(name, func(t *testing.T) {
			lookup := &fakeLookup{}
			s := newService(Deps{Tenants: fakeTenants{cfg: tc.cfg}, Properties: lookup})
			_, err := s.Analyze(context.Background(), Request{Images: images(1), Address: tc.address, ServiceTypes: []models.ServiceType{models.HouseWashing}})
			require.NoError(t, err)
			assert.Zero(t, lookup.calls.Load())
		})
	}
}

func TestAnalyze_FailuresAreGeneric(t *testing.T) {
	t.Run("detector", func(t *testing.T) {
		st := &fakeStore{}
		s := newService(Deps{Detector: &fakeDetector{err: errors.New("model offline")}, Store: st})
		resp, err := s.Analyze(context.Background(), Request{Images: images(3), ServiceTypes: []models.ServiceType{models.HouseWashing}})
		assert.ErrorIs(t, err, ErrAnalysisFailed)
		assert.NotContains(t, err.Error(), "model offline")
		assert.Nil(t, resp)
		assert.Empty(t, st.saved)
	})
	t.Run("persist", func(t *testing.T) {
		bus := events.NewInMemory(1)
		s := newService(Deps{Store: &fakeStore{err: errors.New("db down")}, Events: bus})
		_, err := s.Analyze(context.Background(), Request{Images: images(1), ServiceTypes: []models.ServiceType{models.HouseWashing}})
		assert.ErrorIs(t, err, ErrAnalysisFailed)
		assert.Empty(t, bus.SubscribeAnalysisCompleted())
	})
	t.Run("tenant", func(t *testing.T) {
		s := newService(Deps{Tenants: fakeTenants{err: errors.New("redis gone")}})
		_, err := s.Analyze(context.Background(), Request{Images: images(1), ServiceTypes: []models.ServiceType{models.HouseWashing}})
		assert.ErrorIs(t, err, ErrAnalysisFailed)
	})
}

func TestEstimate(t *testing.T) {
	s := newService(Deps{})

	resp, err := s.Estimate(context.Background(), EstimateRequest{
		ServiceTypes: []models.ServiceType{models.HouseWashing, models.GutterCleaning},
		Metrics:      &llm.Metrics{WindowCount: 10, GutterLengthFt: 140, WallAreaSqFt: 4000},
	})
	require.NoError(t, err)
	assert.Equal(t, 2000, resp.SquareFootage)
	assert.Equal(t, 530.0, resp.Estimates[0].TotalPrice)
	assert.Equal(t, 590.0, resp.Estimates[1].TotalPrice)
	assert.Equal(t, 1120.0, resp.TotalEstimate)

	resp, err = s.Estimate(context.Background(), EstimateRequest{
		ServiceTypes:  []models.ServiceType{models.HouseWashing},
		Features:      tenWindows(),
		SquareFootage: 2000,
	})
	require.NoError(t, err)
	assert.Equal(t, 530.0, resp.TotalEstimate)

	_, err = s.Estimate(context.Background(), EstimateRequest{ServiceTypes: []models.ServiceType{"pressure_washing"}})
	assert.ErrorIs(t, err, estimate.ErrUnsupportedService)

	_, err = s.Estimate(context.Background(), EstimateRequest{})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "no_service_types", ve.Code)
}

func TestGet(t *testing.T) {
	st := &fakeStore{}
	s := newService(Deps{Store: st})
	resp, err := s.Analyze(context.Background(), Request{Images: images(1), ServiceTypes: []models.ServiceType{models.HouseWashing}})
	require.NoError(t, err)

	got, err := s.Get(context.Background(), resp.AnalysisID)
	require.NoError(t, err)
	assert.Equal(t, resp.AnalysisID, got.ID)

	_, err = s.Get(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get(context.Background(), "6f1c1d3e-8a3e-4d8a-9a55-2f0f5b8f5a11")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = newService(Deps{}).Get(context.Background(), resp.AnalysisID)
	assert.ErrorIs(t, err, ErrNotFound)
}
