package property

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/yourorg/estimator-api/attom"
	"github.com/yourorg/estimator-api/internal/canon"
	"github.com/yourorg/estimator-api/internal/models"
	"github.com/yourorg/estimator-api/internal/store"
	"go.uber.org/zap"
)

const recordsConfidence = 0.95

type Standardizer interface {
	Standardize(ctx context.Context, address string) (string, error)
}

type DetailFetcher interface {
	PropertyDetail(ctx context.Context, address1, address2 string) ([]byte, error)
}

// SnapshotSink keeps the raw provider payload next to the mapped property.
type SnapshotSink interface {
	WriteSnapshotAndUpsert(ctx context.Context, in store.PropertyInput) (string, error)
}

// Records looks addresses up in ATTOM after an optional Melissa
// standardisation pass. std and sink may be nil.
type Records struct {
	std   Standardizer
	attom DetailFetcher
	sink  SnapshotSink
	log   *zap.Logger
}

func NewRecords(std Standardizer, details DetailFetcher, sink SnapshotSink, log *zap.Logger) *Records {
	if log == nil {
		log = zap.NewNop()
	}
	return &Records{std: std, attom: details, sink: sink, log: log}
}

func (r *Records) Lookup(ctx context.Context, address string) (*models.PropertyData, error) {
	addr := r.standardize(ctx, address)
	line1, city, state, zip := canon.SplitOneLine(addr)

	raw, err := r.attom.PropertyDetail(ctx, line1, address2(city, state, zip))
	if errors.Is(err, attom.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	d, err := attom.MapDetail(raw)
	if errors.Is(err, attom.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	data := &models.PropertyData{
		Address:      addr,
		PropertyType: d.PropertyType,
		RecordID:     d.AttomID,
		Source:       "attom",
		Confidence:   recordsConfidence,
	}
	if d.LivingSqft > 0 {
		data.SquareFootage = models.IntPtr(d.LivingSqft)
	}
	if d.YearBuilt > 0 {
		data.YearBuilt = models.IntPtr(d.YearBuilt)
	}
	if d.Beds > 0 {
		data.Bedrooms = models.IntPtr(d.Beds)
	}
	if d.Baths > 0 {
		data.Bathrooms = models.FloatPtr(d.Baths)
	}
	if d.LotSqft > 0 {
		data.LotSize = models.IntPtr(d.LotSqft)
	}

	r.snapshot(ctx, raw, d, line1, city, state, zip)
	return data, nil
}

// standardize never fails; a Melissa error keeps the collapsed input.
func (r *Records) standardize(ctx context.Context, address string) string {
	addr := canon.Standardize(address)
	if r.std == nil {
		return addr
	}
	out, err := r.std.Standardize(ctx, addr)
	if err != nil {
		r.log.Debug("address standardization failed", zap.String("address", addr), zap.Error(err))
		return addr
	}
	// Melissa separates address lines with ';'
	return canon.Standardize(strings.ReplaceAll(out, ";", ", "))
}

func (r *Records) snapshot(ctx context.Context, raw []byte, d attom.Detail, line1, city, state, zip string) {
	if r.sink == nil {
		return
	}
	n1, c, st, z, key := canon.Canonicalize(line1, city, state, zip)
	in := store.PropertyInput{
		PropertyKey: key,
		Address1:    n1,
		City:        c,
		State:       st,
		Zip:         z,
		Provider:    "attom",
		Endpoint:    attom.DetailEndpoint,
		ExternalID:  d.AttomID,
		PayloadJSON: raw,
	}
	if d.LivingSqft > 0 {
		in.SquareFootage = sql.NullInt64{Int64: int64(d.LivingSqft), Valid: true}
	}
	if d.PropertyType != "" {
		in.PropertyType = sql.NullString{String: d.PropertyType, Valid: true}
	}
	if d.YearBuilt > 0 {
		in.YearBuilt = sql.NullInt64{Int64: int64(d.YearBuilt), Valid: true}
	}
	if d.AttomID != "" {
		in.RecordID = sql.NullString{String: d.AttomID, Valid: true}
	}
	if _, err := r.sink.WriteSnapshotAndUpsert(ctx, in); err != nil {
		r.log.Warn("snapshot write failed", zap.String("property_key", key), zap.Error(err))
	}
}

func address2(city, state, zip string) string {
	tail := strings.TrimSpace(state + " " + zip)
	switch {
	case city != "" && tail != "":
		return city + ", " + tail
	case city != "":
		return city
	default:
		return tail
	}
}
