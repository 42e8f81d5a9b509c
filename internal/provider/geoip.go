package provider

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/oschwald/geoip2-golang"
	"github.com/vigilo/platform/internal/domain"
)

// MaxMindResolver resolves IPs against a local MaxMind GeoIP2 city database.
type MaxMindResolver struct {
	db *geoip2.Reader
}

// NewMaxMindResolver opens the GeoIP2 database at dbPath.
func NewMaxMindResolver(dbPath string) (*MaxMindResolver, error) {
	db, err := geoip2.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open geoip database: %w", err)
	}
	return &MaxMindResolver{db: db}, nil
}

// Resolve returns the geolocation for ip. Private and unparseable addresses
// return an error; the caller degrades to the fallback display.
func (r *MaxMindResolver) Resolve(_ context.Context, ip string) (domain.Geolocation, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return domain.Geolocation{}, fmt.Errorf("invalid IP address: %q", ip)
	}
	if parsed.IsLoopback() || parsed.IsPrivate() {
		return domain.Geolocation{}, fmt.Errorf("non-routable address: %s", ip)
	}

	record, err := r.db.City(parsed)
	if err != nil {
		return domain.Geolocation{}, fmt.Errorf("geoip lookup: %w", err)
	}

	country := record.Country.IsoCode
	city := record.City.Names["en"]

	display := buildDisplay(city, record.Country.Names["en"])
	if display == "" {
		display = domain.FallbackLocationDisplay(ip)
	}

	return domain.Geolocation{
		CountryCode: country,
		City:        city,
		Display:     display,
		Latitude:    record.Location.Latitude,
		Longitude:   record.Location.Longitude,
		Known:       country != "",
	}, nil
}

// Close releases the underlying database handle.
func (r *MaxMindResolver) Close() error {
	return r.db.Close()
}

func buildDisplay(city, country string) string {
	parts := make([]string, 0, 2)
	if city != "" {
		parts = append(parts, city)
	}
	if country != "" {
		parts = append(parts, country)
	}
	return strings.Join(parts, ", ")
}
