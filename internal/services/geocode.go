package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// GeocodeService resolves coordinates to a display address via the
// Nominatim reverse-geocode API. Strictly best-effort: every failure
// returns an empty address and never blocks report creation.
type GeocodeService struct {
	baseURL string
	client  *http.Client
	cache   *redis.Client
	logger  *zap.SugaredLogger
}

// NewGeocodeService creates a new reverse-geocode adapter
func NewGeocodeService(baseURL string, timeout time.Duration, cache *redis.Client, logger *zap.SugaredLogger) *GeocodeService {
	return &GeocodeService{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		cache:   cache,
		logger:  logger,
	}
}

type nominatimResponse struct {
	DisplayName string `json:"display_name"`
}

// Reverse looks up a human-readable address for (lat, lon). Returns
// "" when the lookup fails for any reason.
func (s *GeocodeService) Reverse(ctx context.Context, lat, lon float64) string {
	// Nominatim results are stable; cache rounded coordinates for a day.
	cacheKey := fmt.Sprintf("geocode:%.5f,%.5f", lat, lon)
	if s.cache != nil {
		if addr, err := s.cache.Get(ctx, cacheKey).Result(); err == nil && addr != "" {
			return addr
		}
	}

	reqURL := fmt.Sprintf("%s/reverse?format=jsonv2&lat=%s&lon=%s",
		s.baseURL,
		url.QueryEscape(fmt.Sprintf("%f", lat)),
		url.QueryEscape(fmt.Sprintf("%f", lon)),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		s.logger.Warnw("Geocode request build failed", "error", err)
		return ""
	}
	req.Header.Set("User-Agent", "trafficguard-report-server")

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warnw("Geocode lookup failed", "lat", lat, "lon", lon, "error", err)
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.logger.Warnw("Geocode lookup returned non-OK", "status", resp.StatusCode)
		return ""
	}

	var payload nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		s.logger.Warnw("Geocode response unparseable", "error", err)
		return ""
	}

	if payload.DisplayName != "" && s.cache != nil {
		// Cache errors are ignored; the lookup already succeeded.
		_ = s.cache.Set(ctx, cacheKey, payload.DisplayName, 24*time.Hour).Err()
	}

	return payload.DisplayName
}
