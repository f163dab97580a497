package property

import (
	"context"
	"errors"

	"github.com/yourorg/estimator-api/internal/models"
)

var (
	// ErrNotFound means the provider has no record for the address.
	ErrNotFound = errors.New("property not found")
	// ErrInProgress means another request holds the fetch lock for the key.
	ErrInProgress = errors.New("property lookup in progress")

	ErrAddressRequired = errors.New("address required")
)

// Provider resolves an address to property attributes.
type Provider interface {
	Lookup(ctx context.Context, address string) (*models.PropertyData, error)
}
