package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DeviceSignature is the parsed shape of a raw user-agent string.
type DeviceSignature struct {
	Browser    string `json:"browser"`
	OS         string `json:"os"`
	DeviceType string `json:"device_type"` // mobile or desktop
	RawUA      string `json:"raw_ua"`
}

// Fingerprint derives the device identifier used by the device registry:
// browser family, OS family and the first 50 bytes of the user agent.
func (d DeviceSignature) Fingerprint() string {
	ua := d.RawUA
	if len(ua) > 50 {
		ua = ua[:50]
	}
	return fmt.Sprintf("%s_%s_%s", d.Browser, d.OS, ua)
}

// Geolocation is the resolved location of a source IP. Known is false when
// resolution failed or the IP is private; Display still carries a usable
// fallback string in that case.
type Geolocation struct {
	CountryCode string  `json:"country_code"`
	City        string  `json:"city"`
	Display     string  `json:"display"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Known       bool    `json:"known"`
}

// Coordinates returns the "lat,lon" form used in stored session locations.
func (g Geolocation) Coordinates() string {
	if !g.Known {
		return ""
	}
	return fmt.Sprintf("%.4f,%.4f", g.Latitude, g.Longitude)
}

// ParseCoordinates parses a "lat,lon" location string. ok is false for any
// other format, including display-style locations.
func ParseCoordinates(s string) (lat, lon float64, ok bool) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, false
	}
	lon, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, false
	}
	return lat, lon, true
}

// AuthContext is the immutable context of one authentication attempt.
type AuthContext struct {
	UserID          uuid.UUID       `json:"user_id"`
	IPAddress       string          `json:"ip_address"`
	Device          DeviceSignature `json:"device"`
	Location        Geolocation     `json:"location"`
	Timestamp       time.Time       `json:"timestamp"`
	IsBusinessHours bool            `json:"is_business_hours"`
}

// Business hours are Monday-Friday, 08:00:00 through the 18:00:00 instant
// inclusive, evaluated in UTC.
const (
	BusinessHoursStart = 8
	BusinessHoursEnd   = 18
)

// InBusinessHours reports whether t falls inside business hours on a weekday.
func InBusinessHours(t time.Time) bool {
	t = t.UTC()
	wd := t.Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return false
	}
	h := t.Hour()
	if h < BusinessHoursStart || h > BusinessHoursEnd {
		return false
	}
	// The end bound admits 18:00:00 exactly, nothing past it.
	if h == BusinessHoursEnd {
		return t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0
	}
	return true
}

// ParseUserAgent extracts browser family, OS family and device type from a
// raw user-agent string. It covers the common families; anything else maps
// to "Other".
func ParseUserAgent(raw string) DeviceSignature {
	lower := strings.ToLower(raw)

	browser := "Other"
	switch {
	case strings.Contains(lower, "edg/"), strings.Contains(lower, "edge"):
		browser = "Edge"
	case strings.Contains(lower, "opr/"), strings.Contains(lower, "opera"):
		browser = "Opera"
	case strings.Contains(lower, "chrome"), strings.Contains(lower, "crios"):
		browser = "Chrome"
	case strings.Contains(lower, "firefox"), strings.Contains(lower, "fxios"):
		browser = "Firefox"
	case strings.Contains(lower, "safari"):
		browser = "Safari"
	case strings.Contains(lower, "curl"):
		browser = "curl"
	}

	os := "Other"
	switch {
	case strings.Contains(lower, "android"):
		os = "Android"
	case strings.Contains(lower, "iphone"), strings.Contains(lower, "ipad"), strings.Contains(lower, "ios"):
		os = "iOS"
	case strings.Contains(lower, "windows"):
		os = "Windows"
	case strings.Contains(lower, "mac os"), strings.Contains(lower, "macintosh"):
		os = "Mac OS X"
	case strings.Contains(lower, "linux"):
		os = "Linux"
	}

	deviceType := "desktop"
	if strings.Contains(lower, "mobile") || os == "Android" || os == "iOS" {
		deviceType = "mobile"
	}

	return DeviceSignature{Browser: browser, OS: os, DeviceType: deviceType, RawUA: raw}
}

// FallbackLocationDisplay returns the display string used when an IP cannot
// be resolved through a geolocation provider.
func FallbackLocationDisplay(ip string) string {
	switch {
	case ip == "localhost", strings.HasPrefix(ip, "127."), ip == "::1":
		return "Localhost (Development)"
	case strings.HasPrefix(ip, "192.168."), strings.HasPrefix(ip, "10."):
		return "Local Network"
	case ip == "":
		return "Unknown"
	default:
		return fmt.Sprintf("IP: %s", ip)
	}
}
