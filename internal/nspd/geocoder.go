package nspd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/paulmach/orb"

	"github.com/mishannn/torgiparser-go/internal/geo"
	"github.com/mishannn/torgiparser-go/internal/logger"
)

const DefaultBaseURL = "https://nspd.gov.ru"

var (
	ErrRateLimited     = errors.New("geo-registry rate limit")
	ErrBadStatus       = errors.New("server sent http error")
	ErrNotFound        = errors.New("cadastral number not found")
	ErrUnknownGeometry = errors.New("unknown geometry type")
	ErrInvalidResponse = errors.New("invalid response format")
)

// Geocoder resolves cadastral numbers to a centroid and address through the nspd.gov.ru geoportal.
type Geocoder struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger

	warmUpOnce sync.Once
}

// NewGeocoder expects a session client (cookie jar, browser headers), see httpclient.New.
func NewGeocoder(httpClient *http.Client, baseURL string, log *slog.Logger) *Geocoder {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if log == nil {
		log = logger.Discard()
	}

	return &Geocoder{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     log.With("component", "nspd"),
	}
}

// warmUp opens the home page once so the session gets the cookies the API checks.
func (g *Geocoder) warmUp(ctx context.Context) {
	g.warmUpOnce.Do(func() {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/", nil)
		if err != nil {
			g.logger.Warn("can't create warm-up request", logger.Err(err))
			return
		}

		resp, err := g.httpClient.Do(req)
		if err != nil {
			g.logger.Warn("warm-up request failed", logger.Err(err))
			return
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)

		g.logger.Info("warm-up done", "status", resp.StatusCode)
	})
}

// Geocode never panics; failures are returned as classified errors and logged with the cadastral number.
func (g *Geocoder) Geocode(ctx context.Context, cadastralNumber string) (GeoResult, error) {
	result, err := g.geocode(ctx, cadastralNumber)
	if err != nil {
		log := g.logger.With("cadastral_number", cadastralNumber, logger.Err(err))
		switch {
		case errors.Is(err, ErrRateLimited):
			log.Warn("geo-registry throttled request")
		case errors.Is(err, ErrNotFound):
			log.Info("no geometry for cadastral number")
		default:
			log.Error("can't get coordinates")
		}
		return GeoResult{}, err
	}

	return result, nil
}

func (g *Geocoder) geocode(ctx context.Context, cadastralNumber string) (GeoResult, error) {
	g.warmUp(ctx)

	targetURL := g.baseURL + "/api/geoportal/v2/search/geoportal?query=" + url.QueryEscape(cadastralNumber)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return GeoResult{}, fmt.Errorf("can't create request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return GeoResult{}, fmt.Errorf("can't do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return GeoResult{}, fmt.Errorf("can't read response body: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return GeoResult{}, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return GeoResult{}, fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	}

	var body searchResponseBody
	if err := json.Unmarshal(respBody, &body); err != nil {
		return GeoResult{}, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}

	if body.Data == nil {
		return GeoResult{}, fmt.Errorf("%w: no data in response", ErrNotFound)
	}

	for _, feature := range body.Data.Features {
		address, ok := feature.readableAddress()
		if !ok {
			continue
		}

		centroid, err := Centroid(feature.Geometry)
		if err != nil {
			return GeoResult{}, err
		}

		return GeoResult{Centroid: centroid, Address: address}, nil
	}

	return GeoResult{}, fmt.Errorf("%w: %d features without readable address", ErrNotFound, len(body.Data.Features))
}

// Centroid reprojects the geometry to WGS84 and returns its centroid.
func Centroid(geometry Geometry) (orb.Point, error) {
	switch geometry.Type {
	case "Point", "Polygon", "MultiPolygon":
	default:
		return orb.Point{}, fmt.Errorf("%w: %q", ErrUnknownGeometry, geometry.Type)
	}

	projection, err := geo.NewProjection(geometry.CRS.Properties.Name)
	if err != nil {
		return orb.Point{}, fmt.Errorf("can't create transformer: %w", err)
	}

	switch geometry.Type {
	case "Point":
		var point orb.Point
		if err := json.Unmarshal(geometry.Coordinates, &point); err != nil {
			return orb.Point{}, fmt.Errorf("%w: point coordinates: %w", ErrInvalidResponse, err)
		}
		return geo.PointCentroid(point, projection)
	case "Polygon":
		var polygon orb.Polygon
		if err := json.Unmarshal(geometry.Coordinates, &polygon); err != nil {
			return orb.Point{}, fmt.Errorf("%w: polygon coordinates: %w", ErrInvalidResponse, err)
		}
		return geo.PolygonCentroid(polygon, projection)
	default:
		var multiPolygon orb.MultiPolygon
		if err := json.Unmarshal(geometry.Coordinates, &multiPolygon); err != nil {
			return orb.Point{}, fmt.Errorf("%w: multipolygon coordinates: %w", ErrInvalidResponse, err)
		}
		return geo.MultiPolygonCentroid(multiPolygon, projection)
	}
}

// IsRateLimited reports whether err is a throttled response.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsPermanent reports whether retrying cannot change the outcome: the geometry
// itself can't be handled. Missing data and malformed responses are retried.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrUnknownGeometry) || errors.Is(err, geo.ErrUnsupportedCRS)
}
