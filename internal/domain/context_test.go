package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseUserAgent(t *testing.T) {
	tests := []struct {
		name       string
		ua         string
		browser    string
		os         string
		deviceType string
	}{
		{
			name:       "chrome on windows",
			ua:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/120.0 Safari/537.36",
			browser:    "Chrome",
			os:         "Windows",
			deviceType: "desktop",
		},
		{
			name:       "firefox on linux",
			ua:         "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0",
			browser:    "Firefox",
			os:         "Linux",
			deviceType: "desktop",
		},
		{
			name:       "safari on iphone",
			ua:         "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 Version/17.0 Mobile/15E148 Safari/604.1",
			browser:    "Safari",
			os:         "iOS",
			deviceType: "mobile",
		},
		{
			name:       "edge wins over chrome token",
			ua:         "Mozilla/5.0 (Windows NT 10.0) AppleWebKit/537.36 Chrome/120.0 Safari/537.36 Edg/120.0",
			browser:    "Edge",
			os:         "Windows",
			deviceType: "desktop",
		},
		{
			name:       "curl",
			ua:         "curl/8.4.0",
			browser:    "curl",
			os:         "Other",
			deviceType: "desktop",
		},
		{
			name:       "empty",
			ua:         "",
			browser:    "Other",
			os:         "Other",
			deviceType: "desktop",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := ParseUserAgent(tt.ua)
			assert.Equal(t, tt.browser, sig.Browser)
			assert.Equal(t, tt.os, sig.OS)
			assert.Equal(t, tt.deviceType, sig.DeviceType)
			assert.Equal(t, tt.ua, sig.RawUA)
		})
	}
}

func TestFingerprintTruncatesUserAgent(t *testing.T) {
	long := strings.Repeat("x", 120)
	sig := DeviceSignature{Browser: "Chrome", OS: "Linux", RawUA: long}

	fp := sig.Fingerprint()
	assert.Equal(t, "Chrome_Linux_"+strings.Repeat("x", 50), fp)

	// Same prefix yields the same fingerprint regardless of the tail.
	other := DeviceSignature{Browser: "Chrome", OS: "Linux", RawUA: long + "tail"}
	assert.Equal(t, fp, other.Fingerprint())
}

func TestInBusinessHours(t *testing.T) {
	tests := []struct {
		name string
		t    time.Time
		want bool
	}{
		{"weekday morning", time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC), true},     // Monday
		{"weekday boundary start", time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC), true},
		{"weekday boundary end", time.Date(2024, 3, 4, 18, 0, 0, 0, time.UTC), true},
		{"weekday just past end", time.Date(2024, 3, 4, 18, 0, 1, 0, time.UTC), false},
		{"weekday late afternoon", time.Date(2024, 3, 4, 18, 59, 0, 0, time.UTC), false},
		{"weekday last inside hour", time.Date(2024, 3, 4, 17, 59, 59, 0, time.UTC), true},
		{"weekday night", time.Date(2024, 3, 4, 23, 0, 0, 0, time.UTC), false},
		{"weekday early", time.Date(2024, 3, 4, 7, 59, 0, 0, time.UTC), false},
		{"saturday noon", time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC), false},
		{"sunday noon", time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InBusinessHours(tt.t))
		})
	}
}

func TestParseCoordinates(t *testing.T) {
	lat, lon, ok := ParseCoordinates("40.7128,-74.0060")
	assert.True(t, ok)
	assert.InDelta(t, 40.7128, lat, 1e-9)
	assert.InDelta(t, -74.0060, lon, 1e-9)

	lat, lon, ok = ParseCoordinates(" 51.5 , -0.12 ")
	assert.True(t, ok)
	assert.InDelta(t, 51.5, lat, 1e-9)
	assert.InDelta(t, -0.12, lon, 1e-9)

	for _, s := range []string{"", "New York, US", "1,2,3", "abc,def", "12.3"} {
		_, _, ok := ParseCoordinates(s)
		assert.False(t, ok, "input %q", s)
	}
}

func TestGeolocationCoordinates(t *testing.T) {
	g := Geolocation{Latitude: 48.8566, Longitude: 2.3522, Known: true}
	assert.Equal(t, "48.8566,2.3522", g.Coordinates())

	unknown := Geolocation{Latitude: 48.8566, Longitude: 2.3522}
	assert.Equal(t, "", unknown.Coordinates())
}

func TestFallbackLocationDisplay(t *testing.T) {
	assert.Equal(t, "Localhost (Development)", FallbackLocationDisplay("127.0.0.1"))
	assert.Equal(t, "Localhost (Development)", FallbackLocationDisplay("::1"))
	assert.Equal(t, "Local Network", FallbackLocationDisplay("192.168.1.5"))
	assert.Equal(t, "Local Network", FallbackLocationDisplay("10.0.0.3"))
	assert.Equal(t, "Unknown", FallbackLocationDisplay(""))
	assert.Equal(t, "IP: 203.0.113.7", FallbackLocationDisplay("203.0.113.7"))
}
