package domain

import "time"

// ReputationReport is the raw result of one external IP reputation lookup.
type ReputationReport struct {
	IPAddress     string `json:"ip"`
	AbuseScore    int    `json:"abuse_confidence_score"` // 0-100
	IsWhitelisted bool   `json:"is_whitelisted"`
	CountryCode   string `json:"country_code"`
	UsageType     string `json:"usage_type"`
	ISP           string `json:"isp"`
	TotalReports  int    `json:"total_reports"`
	Source        string `json:"source"` // provider name, or "unavailable" on failure
}

// ThreatContext carries contextual signals the caller already holds about
// the request being checked.
type ThreatContext struct {
	FailedAttempts   int     `json:"failed_attempts,omitempty"`
	LocationChangeKM float64 `json:"location_change_distance,omitempty"`
	IsTor            bool    `json:"is_tor,omitempty"`
	IsVPN            bool    `json:"is_vpn,omitempty"`
}

// ThreatSource is one contributing source of a consolidated assessment.
type ThreatSource struct {
	Name             string `json:"name"`
	Score            int    `json:"score"`
	Reports          int    `json:"reports,omitempty"`
	SuspiciousEvents int    `json:"suspicious_events,omitempty"`
}

// ThreatAssessment is the consolidated result of a threat intelligence check.
type ThreatAssessment struct {
	IPAddress      string         `json:"ip_address"`
	IsMalicious    bool           `json:"is_malicious"`
	Score          int            `json:"threat_score"` // 0-100
	Confidence     string         `json:"confidence"`   // low, medium, high
	Sources        []ThreatSource `json:"sources"`
	Indicators     []string       `json:"indicators"`
	Recommendation string         `json:"recommendation"`
	CheckedAt      time.Time      `json:"checked_at"`
}

// IPReputationSummary is the historical reputation view of one IP.
type IPReputationSummary struct {
	IPAddress     string     `json:"ip_address"`
	TotalChecks   int        `json:"total_checks"`
	AbuseScore    int        `json:"abuse_score"`
	IsWhitelisted bool       `json:"is_whitelisted"`
	IsBlacklisted bool       `json:"is_blacklisted"`
	CountryCode   string     `json:"country_code,omitempty"`
	ISP           string     `json:"isp,omitempty"`
	LastReported  *time.Time `json:"last_reported,omitempty"`
}

// SessionEnrichment records a threat-intelligence adjustment applied to a
// session's risk score. The adjustment is additive, non-negative and the
// resulting score is clamped at 100.
type SessionEnrichment struct {
	SessionID      string  `json:"session_id"`
	OriginalScore  float64 `json:"original_risk_score"`
	Adjustment     float64 `json:"threat_adjustment"`
	NewScore       float64 `json:"new_risk_score"`
	Recommendation string  `json:"recommendation"`
}
