package attom

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const detailPayload = `{
  "status": {"code": 0, "msg": "SuccessWithResult"},
  "property": [{
    "identifier": {"attomId": 184713191, "apn": "01-234"},
    "address": {"oneLine": "123 MAIN ST, FORT WORTH, TX 76104", "line1": "123 MAIN ST", "locality": "FORT WORTH", "countrySubd": "TX", "postal1": "76104"},
    "summary": {"propclass": "Single Family Residence / Townhouse", "propertyType": "SFR", "yearbuilt": 1987},
    "building": {"size": {"livingsize": 2150.4, "universalsize": 2300}, "rooms": {"beds": 4, "bathstotal": 2.5}},
    "lot": {"lotsize1": 0.18, "lotsize2": 7841}
  }]
}`

func TestPropertyDetail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/propertyapi/v1.0.0/property/detail", r.URL.Path)
		assert.Equal(t, "123 Main St", r.URL.Query().Get("address1"))
		assert.Equal(t, "Fort Worth, TX 76104", r.URL.Query().Get("address2"))
		assert.Equal(t, "key", r.Header.Get("apikey"))
		_, _ = w.Write([]byte(detailPayload))
	}))
	defer server.Close()

	raw, err := NewClient("key", server.URL, 0).PropertyDetail(context.Background(), "123 Main St", "Fort Worth, TX 76104")
	require.NoError(t, err)

	d, err := MapDetail(raw)
	require.NoError(t, err)
	assert.Equal(t, "184713191", d.AttomID)
	assert.Equal(t, "123 MAIN ST", d.Line1)
	assert.Equal(t, "TX", d.State)
	assert.Equal(t, "SFR", d.PropertyType)
	assert.Equal(t, 2150, d.LivingSqft)
	assert.Equal(t, 1987, d.YearBuilt)
	assert.Equal(t, 4, d.Beds)
	assert.Equal(t, 2.5, d.Baths)
	assert.Equal(t, 7841, d.LotSqft)
}

func TestPropertyDetail_StatusErrors(t *testing.T) {
	var calls atomic.Int32
	var status atomic.Int32
	status.Store(http.StatusNotFound)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(int(status.Load()))
		_, _ = w.Write([]byte(`{"status":{"msg":"SuccessWithoutResult"}}`))
	}))
	defer server.Close()
	c := NewClient("key", server.URL, 0)

	_, err := c.PropertyDetail(context.Background(), "1 Nowhere Rd", "")
	assert.ErrorIs(t, err, ErrNotFound)

	status.Store(http.StatusTooManyRequests)
	calls.Store(0)
	_, err = c.PropertyDetail(context.Background(), "1 Nowhere Rd", "")
	assert.ErrorIs(t, err, ErrDailyLimitExceeded)
	assert.Equal(t, int32(1), calls.Load(), "quota responses are not retried")

	status.Store(http.StatusBadRequest)
	_, err = c.PropertyDetail(context.Background(), "1 Nowhere Rd", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "attom error 400")
}

func TestMapDetail_Fallbacks(t *testing.T) {
	d, err := MapDetail([]byte(`{"property":[{"identifier":{"apn":"77"},"address":{"oneLine":"9 ELM ST"},"summary":{"propclass":"Condominium"},"building":{"size":{"bldgsize":1500},"rooms":{"bathsfull":2}},"lot":{"lotsize1":0.25}}]}`))
	require.NoError(t, err)
	assert.Equal(t, "77", d.AttomID)
	assert.Equal(t, "9 ELM ST", d.Line1)
	assert.Equal(t, "Condominium", d.PropertyType)
	assert.Equal(t, 1500, d.LivingSqft)
	assert.Equal(t, 2.0, d.Baths)
	assert.Equal(t, 10890, d.LotSqft)

	_, err = MapDetail([]byte(`{"property":[]}`))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = MapDetail([]byte(`not json`))
	assert.Error(t, err)
}

func TestPropertyDetail_ServerErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := NewClient("key", server.URL, 0).PropertyDetail(context.Background(), "1 Main St", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "attom error 502")
	assert.Equal(t, int32(1), calls.Load())
}
