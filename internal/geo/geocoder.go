/*
Package geo geocodes store addresses and renders in-stock stores onto HTML
maps.
*/
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/shanehull/bottlescraper/internal/types"
)

var ErrNotFound = errors.New("no geocoding results")

type Geocoder interface {
	Geocode(ctx context.Context, query string) (types.Coordinate, error)
}

// Nominatim queries an OpenStreetMap Nominatim search endpoint.
type Nominatim struct {
	http    *resty.Client
	baseURL string
}

// NewNominatim builds a client paced by limiter; the public instance allows
// one request per second.
func NewNominatim(baseURL, userAgent, email string, timeout time.Duration, limiter *rate.Limiter) *Nominatim {
	httpClient := resty.New()
	httpClient.SetTimeout(timeout)
	httpClient.SetHeader("User-Agent", userAgent)
	httpClient.SetHeader("Accept-Language", "en")
	if email != "" {
		httpClient.SetHeader("From", email)
	}
	if limiter != nil {
		httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return limiter.Wait(req.Context())
		})
	}
	return &Nominatim{http: httpClient, baseURL: baseURL}
}

func (n *Nominatim) Geocode(ctx context.Context, query string) (types.Coordinate, error) {
	resp, err := n.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"format": "json",
			"limit":  "1",
			"q":      query,
		}).
		Get(n.baseURL)
	if err != nil {
		return types.Coordinate{}, fmt.Errorf("nominatim request failed: %w", err)
	}
	if !resp.IsSuccess() {
		return types.Coordinate{}, fmt.Errorf("nominatim responded with status %d", resp.StatusCode())
	}

	var payload []struct {
		Lat string `json:"lat"`
		Lon string `json:"lon"`
	}
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return types.Coordinate{}, fmt.Errorf("failed to decode nominatim response: %w", err)
	}
	if len(payload) == 0 {
		return types.Coordinate{}, fmt.Errorf("%w for %q", ErrNotFound, query)
	}

	lat, err := strconv.ParseFloat(payload[0].Lat, 64)
	if err != nil {
		return types.Coordinate{}, fmt.Errorf("invalid latitude %q: %w", payload[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(payload[0].Lon, 64)
	if err != nil {
		return types.Coordinate{}, fmt.Errorf("invalid longitude %q: %w", payload[0].Lon, err)
	}
	return types.Coordinate{Lat: lat, Lon: lon}, nil
}

// Photon queries a komoot Photon endpoint, which answers GeoJSON.
type Photon struct {
	http    *resty.Client
	baseURL string
}

func NewPhoton(baseURL, userAgent string, timeout time.Duration) *Photon {
	httpClient := resty.New()
	httpClient.SetTimeout(timeout)
	httpClient.SetHeader("User-Agent", userAgent)
	return &Photon{http: httpClient, baseURL: baseURL}
}

func (p *Photon) Geocode(ctx context.Context, query string) (types.Coordinate, error) {
	resp, err := p.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":     query,
			"limit": "1",
		}).
		Get(p.baseURL)
	if err != nil {
		return types.Coordinate{}, fmt.Errorf("photon request failed: %w", err)
	}
	if !resp.IsSuccess() {
		return types.Coordinate{}, fmt.Errorf("photon responded with status %d", resp.StatusCode())
	}

	var payload struct {
		Features []struct {
			Geometry struct {
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
		} `json:"features"`
	}
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return types.Coordinate{}, fmt.Errorf("failed to decode photon response: %w", err)
	}
	if len(payload.Features) == 0 || len(payload.Features[0].Geometry.Coordinates) < 2 {
		return types.Coordinate{}, fmt.Errorf("%w for %q", ErrNotFound, query)
	}

	// GeoJSON orders coordinates as lon, lat.
	coords := payload.Features[0].Geometry.Coordinates
	return types.Coordinate{Lat: coords[1], Lon: coords[0]}, nil
}

// Fallback tries each geocoder in order and returns the first hit.
type Fallback []Geocoder

func (f Fallback) Geocode(ctx context.Context, query string) (types.Coordinate, error) {
	var errs []error
	for _, g := range f {
		coord, err := g.Geocode(ctx, query)
		if err == nil {
			return coord, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return types.Coordinate{}, fmt.Errorf("%w for %q: no geocoders configured", ErrNotFound, query)
	}
	return types.Coordinate{}, errors.Join(errs...)
}

// Cached remembers successful lookups; the same store is often listed for
// several products in one run.
type Cached struct {
	inner Geocoder
	cache *lru.Cache[string, types.Coordinate]
}

func NewCached(inner Geocoder, size int) (*Cached, error) {
	cache, err := lru.New[string, types.Coordinate](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create geocode cache: %w", err)
	}
	return &Cached{inner: inner, cache: cache}, nil
}

func (c *Cached) Geocode(ctx context.Context, query string) (types.Coordinate, error) {
	if coord, ok := c.cache.Get(query); ok {
		return coord, nil
	}
	coord, err := c.inner.Geocode(ctx, query)
	if err != nil {
		return types.Coordinate{}, err
	}
	c.cache.Add(query, coord)
	return coord, nil
}
