package analyzer

import (
	"net/http"
	"strings"

	"github.com/yourorg/estimator-api/internal/estimate"
	"github.com/yourorg/estimator-api/internal/models"
	"github.com/yourorg/estimator-api/internal/storage"
	"github.com/yourorg/estimator-api/internal/tenant"
)

const (
	MaxImages     = 5
	MaxImageBytes = 10 << 20
)

func validateImages(images []Image) error {
	if len(images) == 0 {
		return invalid("no_images", "at least one image is required")
	}
	if len(images) > MaxImages {
		return invalid("too_many_images", "at most %d images are allowed, got %d", MaxImages, len(images))
	}
	for i := range images {
		img := &images[i]
		if len(img.Data) == 0 {
			return invalid("invalid_image", "image %d is empty", i+1)
		}
		if len(img.Data) > MaxImageBytes {
			return invalid("image_too_large", "image %d exceeds %d MB", i+1, MaxImageBytes>>20)
		}
		if img.ContentType == "" || img.ContentType == "application/octet-stream" {
			img.ContentType = http.DetectContentType(img.Data)
		}
		if !strings.HasPrefix(img.ContentType, "image/") {
			return invalid("invalid_image_type", "image %d has type %s; only images are accepted", i+1, img.ContentType)
		}
		if w, h, ok := storage.Dimensions(img.Data); ok && !storage.WithinPixelBudget(w, h) {
			return invalid("image_dimensions_too_large", "image %d is %dx%d; at most %d megapixels are accepted", i+1, w, h, storage.MaxPixels/1_000_000)
		}
	}
	return nil
}

// validateServices drops duplicates and checks every type is priced and
// switched on for the tenant.
func validateServices(types []models.ServiceType, cfg tenant.Config) ([]models.ServiceType, error) {
	if len(types) == 0 {
		return nil, invalid("no_service_types", "at least one service type is required")
	}
	seen := make(map[models.ServiceType]bool, len(types))
	out := make([]models.ServiceType, 0, len(types))
	for _, st := range types {
		if seen[st] {
			continue
		}
		seen[st] = true
		if !estimate.Supported(st) {
			return nil, &ValidationError{Code: "unsupported_service", Message: "unsupported service type " + string(st), Err: estimate.ErrUnsupportedService}
		}
		if !cfg.Enabled(st) {
			return nil, invalid("service_disabled", "service type %s is not offered by this company", st)
		}
		out = append(out, st)
	}
	return out, nil
}
