package domain

import (
	"time"

	"github.com/google/uuid"
)

// Session is an established authenticated session. The engine reads and
// adjusts it; creation and token issuance belong to the session-lifecycle
// collaborator.
type Session struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	DeviceID  uuid.UUID `json:"device_id,omitempty"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	Location  string    `json:"location"` // display string or "lat,lon"
	RiskScore float64   `json:"risk_score"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Revoked   bool      `json:"revoked"`
}

// Expired reports whether the session has passed its expiry at the given time.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Active reports whether the session is neither revoked nor expired.
func (s *Session) Active(now time.Time) bool {
	return !s.Revoked && !s.Expired(now)
}

// ContextUpdate carries the refreshed context observed for a live session.
// Empty fields mean "unchanged".
type ContextUpdate struct {
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	Location  string `json:"location,omitempty"` // "lat,lon" when coordinates are known
}

// ReevalAction is the outcome of a session reevaluation.
type ReevalAction string

const (
	ReevalNone    ReevalAction = "none"
	ReevalMonitor ReevalAction = "monitor"
	ReevalStepUp  ReevalAction = "stepup"
	ReevalRevoke  ReevalAction = "revoke"
)

// ReevaluationResult is produced by every SessionMonitor.Reevaluate call,
// including the terminal no-op for absent, expired or revoked sessions.
type ReevaluationResult struct {
	SessionID     uuid.UUID    `json:"session_id"`
	PreviousScore float64      `json:"previous_risk_score"`
	CurrentScore  float64      `json:"current_risk_score"`
	Delta         float64      `json:"risk_change"`
	Anomalies     []Anomaly    `json:"anomalies_detected"`
	Action        ReevalAction `json:"action_required"`
	Confidence    string       `json:"confidence"` // low, medium, high
	Terminal      bool         `json:"terminal"`
	Reason        string       `json:"reason,omitempty"`
	ReevaluatedAt time.Time    `json:"reevaluated_at"`
}

// SessionHealth summarizes the monitoring state of one session.
type SessionHealth struct {
	SessionID        uuid.UUID `json:"session_id"`
	UserID           uuid.UUID `json:"user_id"`
	IsActive         bool      `json:"is_active"`
	RiskScore        float64   `json:"risk_score"`
	RiskLevel        RiskLevel `json:"risk_level"`
	LastReevaluation time.Time `json:"last_reevaluation"`
	NextReevaluation time.Time `json:"next_reevaluation"`
	AnomalyCount     int       `json:"anomalies_count"`
	Recommendations  []string  `json:"recommendations"`
}

// HighRiskSession is one entry of the active-sessions summary.
type HighRiskSession struct {
	SessionID uuid.UUID `json:"session_id"`
	UserID    uuid.UUID `json:"user_id"`
	RiskScore float64   `json:"risk_score"`
	IPAddress string    `json:"ip_address"`
}

// SessionsSummary buckets all active sessions by risk band.
type SessionsSummary struct {
	TotalSessions    int               `json:"total_sessions"`
	ByRiskLevel      map[RiskLevel]int `json:"by_risk_level"`
	HighRiskSessions []HighRiskSession `json:"high_risk_sessions"`
	RequiringAction  int               `json:"sessions_requiring_action"`
}

// BehaviorProfile is the historical usage pattern of one user, supplied by
// the behavioral-history collaborator for anomaly detection.
type BehaviorProfile struct {
	TypicalHours         []int   `json:"typical_hours"` // hours of day (UTC) the user normally authenticates
	RecentAccessCount    int     `json:"recent_access_count"`
	AverageAccessCount   float64 `json:"average_access_count"`
	SensitiveAccessCount int     `json:"sensitive_access_count"`
}

// Device is a registered device fingerprint for a user.
type Device struct {
	ID               uuid.UUID `json:"id"`
	UserID           uuid.UUID `json:"user_id"`
	Fingerprint      string    `json:"device_fingerprint"`
	Name             string    `json:"device_name"`
	OS               string    `json:"os"`
	Browser          string    `json:"browser"`
	TrustLevel       int       `json:"trust_level"`
	LastSeenIP       string    `json:"last_seen_ip"`
	LastSeenLocation string    `json:"last_seen_location"`
	FirstSeenAt      time.Time `json:"first_seen_at"`
	LastSeenAt       time.Time `json:"last_seen_at"`
}
