// Package service wires the scoring, policy and step-up components into the
// access evaluation flow the API exposes.
package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/vigilo/platform/internal/domain"
	"github.com/vigilo/platform/internal/policy"
	"github.com/vigilo/platform/internal/risk"
	"github.com/vigilo/platform/internal/stepup"
)

// DeviceWriter registers devices observed during evaluation.
type DeviceWriter interface {
	Upsert(ctx context.Context, d *domain.Device) (*domain.Device, error)
}

// EventRecorder appends events to the audit trail.
type EventRecorder interface {
	RecordEvent(ctx context.Context, e *domain.AuditEvent) error
}

// SessionWriter persists sessions established on allowed attempts.
type SessionWriter interface {
	Create(ctx context.Context, s *domain.Session) error
}

// Publisher publishes engine events for downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Lockout blocks step-up verification for users over the failure limit.
type Lockout interface {
	Check(ctx context.Context, userID uuid.UUID) error
}

const sessionTTL = 8 * time.Hour

// AccessService runs the full evaluation for one access attempt: score the
// context, resolve the policy decision, issue a step-up challenge when the
// decision demands one, and record the outcome.
type AccessService struct {
	scorer    *risk.Scorer
	resolver  *policy.Resolver
	stepup    *stepup.Manager
	devices   DeviceWriter
	sessions  SessionWriter
	audit     EventRecorder
	publisher Publisher
	lockout   Lockout
	logger    *slog.Logger
	now       func() time.Time
}

// NewAccessService creates an access evaluation service.
func NewAccessService(
	scorer *risk.Scorer,
	resolver *policy.Resolver,
	stepupMgr *stepup.Manager,
	devices DeviceWriter,
	sessions SessionWriter,
	audit EventRecorder,
	publisher Publisher,
	lockout Lockout,
	logger *slog.Logger,
) *AccessService {
	return &AccessService{
		scorer:    scorer,
		resolver:  resolver,
		stepup:    stepupMgr,
		devices:   devices,
		sessions:  sessions,
		audit:     audit,
		publisher: publisher,
		lockout:   lockout,
		logger:    logger,
		now:       time.Now,
	}
}

// EvaluateInput identifies one access attempt.
type EvaluateInput struct {
	UserID    uuid.UUID `json:"user_id"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
}

// EvaluationResult is the full outcome of one access evaluation.
type EvaluationResult struct {
	Assessment domain.RiskAssessment `json:"risk_assessment"`
	Decision   domain.Decision       `json:"decision"`
	Challenge  *stepup.Challenge     `json:"challenge,omitempty"`
	Session    *domain.Session       `json:"session,omitempty"`
}

// Evaluate scores the attempt and resolves it against the policy set.
// Scoring and resolution never fail; only infrastructure around the decision
// (audit, device registry) can surface an error, and those are logged rather
// than returned so a storage hiccup cannot turn into a denied login.
func (s *AccessService) Evaluate(ctx context.Context, input EvaluateInput) (*EvaluationResult, error) {
	if input.UserID == uuid.Nil {
		return nil, domain.ErrValidation("user_id is required")
	}
	if input.IPAddress == "" {
		return nil, domain.ErrValidation("ip_address is required")
	}

	authCtx := s.scorer.BuildContext(ctx, input.UserID, input.IPAddress, input.UserAgent)
	assessment := s.scorer.Evaluate(ctx, authCtx)
	decision := s.resolver.Evaluate(ctx, assessment)

	result := &EvaluationResult{
		Assessment: assessment,
		Decision:   decision,
	}

	if decision.Action == domain.ActionStepUp {
		challenge, err := s.stepup.Issue(input.UserID)
		if err != nil {
			return nil, domain.ErrInternal("issue step-up challenge", err)
		}
		result.Challenge = &challenge
	}

	if decision.Action == domain.ActionAllow {
		result.Session = s.establishSession(ctx, input, authCtx, assessment.Score)
	}

	s.registerDevice(ctx, input, authCtx)
	s.recordDecision(ctx, input, assessment, decision)
	s.publishDecision(ctx, assessment, decision)

	return result, nil
}

// establishSession creates the session row for an allowed attempt. Session
// creation failure is logged, not surfaced: the allow decision stands.
func (s *AccessService) establishSession(ctx context.Context, input EvaluateInput, ac domain.AuthContext, score float64) *domain.Session {
	now := s.now().UTC()
	session := &domain.Session{
		ID:        uuid.New(),
		UserID:    input.UserID,
		IPAddress: input.IPAddress,
		UserAgent: input.UserAgent,
		Location:  ac.Location.Display,
		RiskScore: score,
		CreatedAt: now,
		ExpiresAt: now.Add(sessionTTL),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		s.logger.Error("session creation failed", "user_id", input.UserID, "error", err)
		return nil
	}
	return session
}

// registerDevice refreshes the device registry with the observed fingerprint.
func (s *AccessService) registerDevice(ctx context.Context, input EvaluateInput, ac domain.AuthContext) {
	now := s.now().UTC()
	device := &domain.Device{
		ID:               uuid.New(),
		UserID:           input.UserID,
		Fingerprint:      ac.Device.Fingerprint(),
		Name:             ac.Device.Browser + " on " + ac.Device.OS,
		OS:               ac.Device.OS,
		Browser:          ac.Device.Browser,
		LastSeenIP:       input.IPAddress,
		LastSeenLocation: ac.Location.Display,
		FirstSeenAt:      now,
		LastSeenAt:       now,
	}
	if _, err := s.devices.Upsert(ctx, device); err != nil {
		s.logger.Error("device registration failed", "user_id", input.UserID, "error", err)
	}
}

// recordDecision appends the decision to the audit trail. Failures are
// logged, not surfaced.
func (s *AccessService) recordDecision(ctx context.Context, input EvaluateInput, assessment domain.RiskAssessment, decision domain.Decision) {
	eventType := domain.EventAccessGranted
	switch decision.Action {
	case domain.ActionDeny:
		eventType = domain.EventAccessDenied
	case domain.ActionStepUp:
		eventType = domain.EventStepUpRequested
	}

	data, _ := json.Marshal(map[string]any{
		"risk_score":  assessment.Score,
		"risk_level":  assessment.Level,
		"policy_name": decision.PolicyName,
		"location":    assessment.Context.Location.Display,
	})
	event := &domain.AuditEvent{
		ID:        uuid.New(),
		UserID:    input.UserID,
		EventType: eventType,
		EventData: data,
		IPAddress: input.IPAddress,
		UserAgent: input.UserAgent,
		Timestamp: s.now().UTC(),
	}
	if err := s.audit.RecordEvent(ctx, event); err != nil {
		s.logger.Error("audit record failed", "event_type", eventType, "user_id", input.UserID, "error", err)
	}
}

func (s *AccessService) publishDecision(ctx context.Context, assessment domain.RiskAssessment, decision domain.Decision) {
	event := domain.NewDecisionEvent(assessment, decision)
	value, _ := json.Marshal(event)
	if err := s.publisher.Publish(ctx, domain.TopicDecisions, []byte(event.UserID), value); err != nil {
		s.logger.Error("publish decision failed", "user_id", event.UserID, "error", err)
	}
}

// VerifyStepUp verifies a pending step-up challenge, records the outcome and
// returns the challenge owner on success. Users over the lockout failure
// limit are rejected before the code is even checked.
func (s *AccessService) VerifyStepUp(ctx context.Context, token, code string) (uuid.UUID, error) {
	subject, err := s.stepup.Subject(token)
	if err != nil {
		return uuid.Nil, err
	}
	if err := s.lockout.Check(ctx, subject); err != nil {
		return uuid.Nil, err
	}

	userID, err := s.stepup.Verify(token, code)

	eventType := domain.EventStepUpSuccess
	if err != nil {
		eventType = domain.EventStepUpFailed
	}
	data, _ := json.Marshal(map[string]any{"outcome": eventType})
	event := &domain.AuditEvent{
		ID:        uuid.New(),
		UserID:    subject,
		EventType: eventType,
		EventData: data,
		Timestamp: s.now().UTC(),
	}
	if recErr := s.audit.RecordEvent(ctx, event); recErr != nil {
		s.logger.Error("audit record failed", "event_type", eventType, "user_id", subject, "error", recErr)
	}

	return userID, err
}
