package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/vigilo/platform/internal/domain"
)

const ipAPIEndpoint = "http://ip-api.com/json/"

// IPAPIResolver resolves IPs through the ip-api.com HTTP service. Used when
// no local MaxMind database is configured.
type IPAPIResolver struct {
	logger *slog.Logger
	client *http.Client
}

// NewIPAPIResolver creates an ip-api resolver with a bounded call timeout.
func NewIPAPIResolver(logger *slog.Logger) *IPAPIResolver {
	return &IPAPIResolver{
		logger: logger,
		client: &http.Client{Timeout: 3 * time.Second},
	}
}

// Resolve returns the geolocation for ip, or an error the caller degrades on.
func (r *IPAPIResolver) Resolve(ctx context.Context, ip string) (domain.Geolocation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		ipAPIEndpoint+ip+"?fields=status,countryCode,country,city,lat,lon", nil)
	if err != nil {
		return domain.Geolocation{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return domain.Geolocation{}, fmt.Errorf("api call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Geolocation{}, fmt.Errorf("api returned %d", resp.StatusCode)
	}

	var response struct {
		Status      string  `json:"status"`
		CountryCode string  `json:"countryCode"`
		Country     string  `json:"country"`
		City        string  `json:"city"`
		Lat         float64 `json:"lat"`
		Lon         float64 `json:"lon"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return domain.Geolocation{}, fmt.Errorf("decode response: %w", err)
	}
	if response.Status != "success" {
		return domain.Geolocation{}, fmt.Errorf("lookup failed for %s", ip)
	}

	display := buildDisplay(response.City, response.Country)
	if display == "" {
		display = domain.FallbackLocationDisplay(ip)
	}

	return domain.Geolocation{
		CountryCode: response.CountryCode,
		City:        response.City,
		Display:     display,
		Latitude:    response.Lat,
		Longitude:   response.Lon,
		Known:       response.CountryCode != "",
	}, nil
}
