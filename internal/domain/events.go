package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Audit event types recorded by the engine.
const (
	EventAuthSuccess        = "auth_success"
	EventAuthFailed         = "auth_failed"
	EventAccessGranted      = "access_granted"
	EventAccessDenied       = "access_denied"
	EventStepUpRequested    = "stepup_requested"
	EventStepUpSuccess      = "stepup_success"
	EventStepUpFailed       = "stepup_failed"
	EventSessionRevoked     = "session_revoked"
	EventSessionReevaluated = "session_reevaluated"
	EventThreatCheck        = "threat_intelligence_check"
	EventSuspiciousActivity = "suspicious_activity"
)

// AuditEvent is one row of the engine's audit trail. The trailing windows
// queried by the risk factors (failed attempts, velocity, abuse ratio) are
// all derived from these rows.
type AuditEvent struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"user_id,omitempty"`
	SessionID uuid.UUID       `json:"session_id,omitempty"`
	EventType string          `json:"event_type"`
	EventData json.RawMessage `json:"event_data,omitempty"`
	IPAddress string          `json:"ip_address,omitempty"`
	UserAgent string          `json:"user_agent,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// RiskEvaluation is a persisted record of one scoring or reevaluation pass.
type RiskEvaluation struct {
	ID          uuid.UUID       `json:"id"`
	SessionID   uuid.UUID       `json:"session_id"`
	UserID      uuid.UUID       `json:"user_id"`
	RiskScore   float64         `json:"risk_score"`
	Factors     json.RawMessage `json:"factors"`
	Decision    string          `json:"decision"`
	EvaluatedAt time.Time       `json:"evaluated_at"`
}

// Kafka topics for engine events.
const (
	TopicDecisions     = "access.decisions"
	TopicReevaluations = "session.reevaluations"
	TopicThreatChecks  = "threat.checks"
)

// EngineEvent is the envelope published to Kafka for downstream consumers.
type EngineEvent struct {
	EventID    uuid.UUID       `json:"event_id"`
	EventType  string          `json:"event_type"`
	UserID     string          `json:"user_id,omitempty"`
	SessionID  string          `json:"session_id,omitempty"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// NewDecisionEvent wraps a decision and its assessment for publishing.
func NewDecisionEvent(assessment RiskAssessment, decision Decision) EngineEvent {
	payload, _ := json.Marshal(map[string]any{
		"risk_score":  assessment.Score,
		"risk_level":  assessment.Level,
		"action":      decision.Action,
		"policy_name": decision.PolicyName,
		"matched":     decision.Matched,
	})
	return EngineEvent{
		EventID:    uuid.New(),
		EventType:  "decision.evaluated",
		UserID:     assessment.Context.UserID.String(),
		Payload:    payload,
		OccurredAt: time.Now(),
	}
}

// NewReevaluationEvent wraps a reevaluation result for publishing.
func NewReevaluationEvent(result ReevaluationResult, userID uuid.UUID) EngineEvent {
	payload, _ := json.Marshal(result)
	return EngineEvent{
		EventID:    uuid.New(),
		EventType:  "session.reevaluated",
		UserID:     userID.String(),
		SessionID:  result.SessionID.String(),
		Payload:    payload,
		OccurredAt: time.Now(),
	}
}

// NewThreatCheckEvent wraps a threat assessment for publishing.
func NewThreatCheckEvent(assessment ThreatAssessment) EngineEvent {
	payload, _ := json.Marshal(assessment)
	return EngineEvent{
		EventID:    uuid.New(),
		EventType:  "threat.checked",
		Payload:    payload,
		OccurredAt: time.Now(),
	}
}
