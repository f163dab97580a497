package tenant

import (
	"github.com/yourorg/estimator-api/internal/estimate"
	"github.com/yourorg/estimator-api/internal/models"
)

const DefaultCompanyID = "default"

type Features struct {
	EnableHouseWashing   bool `json:"enableHouseWashing"`
	EnableRoofCleaning   bool `json:"enableRoofCleaning"`
	EnableGutterCleaning bool `json:"enableGutterCleaning"`
	RequireAddress       bool `json:"requireAddress"`
	EnablePropertyLookup bool `json:"enablePropertyLookup"`
}

// Config is everything that varies per company: the rate card and which
// parts of the estimator are switched on.
type Config struct {
	CompanyID   string           `json:"companyId"`
	CompanyName string           `json:"companyName,omitempty"`
	Pricing     estimate.Pricing `json:"pricing"`
	Features    Features         `json:"features"`
	Version     int              `json:"version,omitempty"`
}

func DefaultFeatures() Features {
	return Features{
		EnableHouseWashing:   true,
		EnableRoofCleaning:   true,
		EnableGutterCleaning: true,
		EnablePropertyLookup: true,
	}
}

// Default is the configuration of a company that never saved its own.
func Default(companyID string) Config {
	if companyID == "" {
		companyID = DefaultCompanyID
	}
	return Config{
		CompanyID: companyID,
		Pricing:   estimate.DefaultPricing(),
		Features:  DefaultFeatures(),
	}
}

func (c Config) Enabled(st models.ServiceType) bool {
	switch st {
	case models.HouseWashing:
		return c.Features.EnableHouseWashing
	case models.RoofCleaning:
		return c.Features.EnableRoofCleaning
	case models.GutterCleaning:
		return c.Features.EnableGutterCleaning
	}
	return false
}

// MetricsLabel is the company id for a stored configuration and
// DefaultCompanyID otherwise, so unknown ids never become series.
func (c Config) MetricsLabel() string {
	if c.Version > 0 && c.CompanyID != "" {
		return c.CompanyID
	}
	return DefaultCompanyID
}

func (c Config) EnabledServices() []models.ServiceType {
	out := make([]models.ServiceType, 0, len(models.ServiceTypes))
	for _, st := range models.ServiceTypes {
		if c.Enabled(st) {
			out = append(out, st)
		}
	}
	return out
}
