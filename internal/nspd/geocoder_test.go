package nspd

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mishannn/torgiparser-go/internal/geo"
	"github.com/mishannn/torgiparser-go/internal/httpclient"
)

type registry struct {
	warmUps   int32
	queries   int32
	userAgent atomic.Value
	responses map[string]func(w http.ResponseWriter)
}

func (reg *registry) handler(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/":
		atomic.AddInt32(&reg.warmUps, 1)
		http.SetCookie(w, &http.Cookie{Name: "sid", Value: "1"})
		w.WriteHeader(http.StatusOK)
	case "/api/geoportal/v2/search/geoportal":
		atomic.AddInt32(&reg.queries, 1)
		reg.userAgent.Store(r.Header.Get("User-Agent"))
		respond, ok := reg.responses[r.URL.Query().Get("query")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		respond(w)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func jsonBody(body string) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

func status(code int) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.WriteHeader(code)
	}
}

func newTestGeocoder(t *testing.T, reg *registry) *Geocoder {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(reg.handler))
	t.Cleanup(srv.Close)

	client, err := httpclient.New(httpclient.Options{
		Timeout: 2 * time.Second,
		Header:  httpclient.BrowserHeaders(srv.URL + "/"),
	})
	require.NoError(t, err)

	return NewGeocoder(client, srv.URL, nil)
}

const pointFeature = `{"data": {"features": [
	{"geometry": {"type": "Point", "coordinates": [4187591.89, 7509137.58], "crs": {"type": "name", "properties": {"name": "EPSG:3857"}}},
	 "properties": {"options": {"readable_address": "г. Москва, ул. Тверская"}}}
]}}`

const polygonFeatures = `{"data": {"features": [
	{"geometry": {"type": "Polygon", "coordinates": [[[100, 100], [200, 100], [200, 200], [100, 200], [100, 100]]], "crs": {"properties": {"name": "EPSG:4326"}}},
	 "properties": {"options": {"cad_num": "secondary shape"}}},
	{"geometry": {"type": "Polygon", "coordinates": [[[10, 50], [12, 50], [12, 52], [10, 52], [10, 50]]], "crs": {"properties": {"name": "EPSG:4326"}}},
	 "properties": {"options": {"readable_address": "Московская обл."}}}
]}}`

const multiPolygonFeature = `{"data": {"features": [
	{"geometry": {"type": "MultiPolygon", "coordinates": [[[[0, 0], [2, 0], [2, 2], [0, 2], [0, 0]]]], "crs": {"properties": {"name": "EPSG:4326"}}},
	 "properties": {"options": {"readable_address": "Участок"}}}
]}}`

func TestGeocodePoint(t *testing.T) {
	reg := &registry{responses: map[string]func(w http.ResponseWriter){
		"77:01:0001001:55": jsonBody(pointFeature),
	}}
	g := newTestGeocoder(t, reg)

	result, err := g.Geocode(context.Background(), "77:01:0001001:55")
	require.NoError(t, err)
	assert.InDelta(t, 37.617778, result.Centroid.Lon(), 1e-5)
	assert.InDelta(t, 55.751667, result.Centroid.Lat(), 1e-5)
	assert.Equal(t, "г. Москва, ул. Тверская", result.Address)
	assert.Contains(t, reg.userAgent.Load(), "Mozilla/5.0")
}

func TestGeocodeSkipsFeaturesWithoutAddress(t *testing.T) {
	reg := &registry{responses: map[string]func(w http.ResponseWriter){
		"50:04:0030101:1234": jsonBody(polygonFeatures),
	}}
	g := newTestGeocoder(t, reg)

	result, err := g.Geocode(context.Background(), "50:04:0030101:1234")
	require.NoError(t, err)
	assert.InDelta(t, 11, result.Centroid.Lon(), 1e-9)
	assert.InDelta(t, 51, result.Centroid.Lat(), 1e-9)
	assert.Equal(t, "Московская обл.", result.Address)
}

func TestGeocodeMultiPolygon(t *testing.T) {
	reg := &registry{responses: map[string]func(w http.ResponseWriter){
		"50:04:0030101:1": jsonBody(multiPolygonFeature),
	}}
	g := newTestGeocoder(t, reg)

	result, err := g.Geocode(context.Background(), "50:04:0030101:1")
	require.NoError(t, err)
	assert.InDelta(t, 1, result.Centroid.Lon(), 1e-9)
	assert.InDelta(t, 1, result.Centroid.Lat(), 1e-9)
}

func TestGeocodeFailures(t *testing.T) {
	reg := &registry{responses: map[string]func(w http.ResponseWriter){
		"throttled":  status(http.StatusTooManyRequests),
		"broken":     status(http.StatusInternalServerError),
		"no-data":    jsonBody(`{"meta": {}}`),
		"empty":      jsonBody(`{"data": {"features": []}}`),
		"no-address": jsonBody(`{"data": {"features": [{"geometry": {"type": "Point", "coordinates": [1, 2]}, "properties": {"options": {}}}]}}`),
		"line": jsonBody(`{"data": {"features": [{"geometry": {"type": "LineString", "coordinates": [[1, 2], [3, 4]], "crs": {"properties": {"name": "EPSG:4326"}}},
			"properties": {"options": {"readable_address": "x"}}}]}}`),
		"bad-crs": jsonBody(`{"data": {"features": [{"geometry": {"type": "Point", "coordinates": [1, 2], "crs": {"properties": {"name": "EPSG:999999"}}},
			"properties": {"options": {"readable_address": "x"}}}]}}`),
		"no-crs": jsonBody(`{"data": {"features": [{"geometry": {"type": "Point", "coordinates": [1, 2]},
			"properties": {"options": {"readable_address": "x"}}}]}}`),
		"line-no-crs": jsonBody(`{"data": {"features": [{"geometry": {"type": "LineString", "coordinates": [[1, 2], [3, 4]]},
			"properties": {"options": {"readable_address": "x"}}}]}}`),
		"bad-ring": jsonBody(`{"data": {"features": [{"geometry": {"type": "Polygon", "coordinates": [[[1, 2], [3, 4]]], "crs": {"properties": {"name": "EPSG:4326"}}},
			"properties": {"options": {"readable_address": "x"}}}]}}`),
		"html": jsonBody(`<html></html>`),
	}}
	g := newTestGeocoder(t, reg)

	cases := map[string]error{
		"throttled":   ErrRateLimited,
		"broken":      ErrBadStatus,
		"no-data":     ErrNotFound,
		"empty":       ErrNotFound,
		"no-address":  ErrNotFound,
		"line":        ErrUnknownGeometry,
		"line-no-crs": ErrUnknownGeometry,
		"no-crs":      geo.ErrUnsupportedCRS,
		"html":        ErrInvalidResponse,
	}
	for query, want := range cases {
		_, err := g.Geocode(context.Background(), query)
		assert.ErrorIs(t, err, want, query)
	}

	_, err := g.Geocode(context.Background(), "bad-crs")
	assert.Error(t, err)
	assert.True(t, IsPermanent(err))

	_, err = g.Geocode(context.Background(), "bad-ring")
	assert.Error(t, err)
	assert.False(t, IsPermanent(err))

	_, err = g.Geocode(context.Background(), "no-crs")
	assert.True(t, IsPermanent(err))

	assert.True(t, IsRateLimited(ErrRateLimited))
	assert.False(t, IsPermanent(ErrNotFound))
	assert.False(t, IsPermanent(ErrInvalidResponse))
}

func TestWarmUpHappensOnce(t *testing.T) {
	reg := &registry{responses: map[string]func(w http.ResponseWriter){
		"77:01:0001001:55": jsonBody(pointFeature),
	}}
	g := newTestGeocoder(t, reg)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := g.Geocode(context.Background(), "77:01:0001001:55")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&reg.warmUps))
	assert.Equal(t, int32(8), atomic.LoadInt32(&reg.queries))
}
