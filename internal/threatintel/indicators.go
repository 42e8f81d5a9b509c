package threatintel

import (
	"fmt"
	"strings"

	"github.com/vigilo/platform/internal/domain"
)

// Known scanner tool names looked for in user agents.
var scannerTools = []string{
	"sqlmap", "nikto", "nmap", "masscan", "metasploit",
	"burp", "dirbuster", "acunetix", "nessus",
}

// Known attack-pattern substrings.
var attackPatterns = []string{
	"admin", "root", "test", "backup", "phpmyadmin",
	"../", "..\\", "<script", "union select", "drop table",
}

// Context thresholds for indicator detection.
const (
	indicatorFailedAttempts   = 5
	indicatorTravelDistanceKM = 1000
)

// detectIndicators scans the user agent for scanner tools and attack
// patterns, and the caller-supplied context for threat signals.
func detectIndicators(userAgent string, tc domain.ThreatContext) []string {
	var indicators []string

	if userAgent != "" {
		lower := strings.ToLower(userAgent)
		for _, tool := range scannerTools {
			if strings.Contains(lower, tool) {
				indicators = append(indicators, fmt.Sprintf("scanning tool detected: %s", tool))
			}
		}
		for _, pattern := range attackPatterns {
			if strings.Contains(lower, pattern) {
				indicators = append(indicators, fmt.Sprintf("suspicious pattern: %s", pattern))
			}
		}
	}

	if tc.FailedAttempts > indicatorFailedAttempts {
		indicators = append(indicators, "multiple failed authentication attempts")
	}
	if tc.LocationChangeKM > indicatorTravelDistanceKM {
		indicators = append(indicators, "impossible travel detected")
	}
	if tc.IsTor || tc.IsVPN {
		indicators = append(indicators, "anonymization service detected")
	}

	return indicators
}
