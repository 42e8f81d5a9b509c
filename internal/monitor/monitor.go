// Package monitor reevaluates established sessions as their context drifts:
// it detects anomalies against the last known context, recomputes risk with
// the same weighted model used at authentication, and escalates or revokes.
package monitor

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vigilo/platform/internal/domain"
	"github.com/vigilo/platform/internal/risk"
)

// SessionStore is the session-lifecycle collaborator surface the monitor uses.
type SessionStore interface {
	// Get returns nil without error when the session does not exist.
	Get(ctx context.Context, id uuid.UUID) (*domain.Session, error)
	Update(ctx context.Context, s *domain.Session) error
	// Revoke marks the session revoked. Revocation is terminal and idempotent.
	Revoke(ctx context.Context, id uuid.UUID) error
	// ListActive returns non-revoked, non-expired sessions with risk score
	// at or above minRisk.
	ListActive(ctx context.Context, minRisk float64) ([]domain.Session, error)
}

// BehaviorHistory supplies the user's historical usage pattern.
type BehaviorHistory interface {
	Profile(ctx context.Context, userID uuid.UUID) (domain.BehaviorProfile, error)
}

// Recorder persists reevaluation records through the audit collaborator.
type Recorder interface {
	RecordReevaluation(ctx context.Context, eval domain.RiskEvaluation) error
	CountEvaluations(ctx context.Context, sessionID uuid.UUID, since time.Time) (int, error)
	CountActionableEvaluations(ctx context.Context, sessionID uuid.UUID) (int, error)
	LastEvaluationTime(ctx context.Context, sessionID uuid.UUID) (time.Time, error)
}

// Publisher publishes reevaluation results for downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Reevaluation cadence per risk tier.
var reevalIntervals = map[domain.RiskLevel]time.Duration{
	domain.RiskCritical: 5 * time.Minute,
	domain.RiskHigh:     5 * time.Minute,
	domain.RiskMedium:   15 * time.Minute,
	domain.RiskLow:      30 * time.Minute,
}

// Each detected anomaly folds a bounded penalty into the recomputed score.
const anomalyPenalty = 8.0

const lockStripes = 64

// Monitor performs continuous session reevaluation. Reevaluations of
// distinct sessions may run concurrently; a striped lock keyed by session id
// serializes reevaluation of any single session.
type Monitor struct {
	sessions  SessionStore
	behavior  BehaviorHistory
	scorer    *risk.Scorer
	recorder  Recorder
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time

	locks [lockStripes]sync.Mutex
}

// NewMonitor creates a session monitor. publisher may be nil when no broker
// is configured.
func NewMonitor(sessions SessionStore, behavior BehaviorHistory, scorer *risk.Scorer, recorder Recorder, publisher Publisher, logger *slog.Logger) *Monitor {
	return &Monitor{
		sessions:  sessions,
		behavior:  behavior,
		scorer:    scorer,
		recorder:  recorder,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

func (m *Monitor) lockFor(id uuid.UUID) *sync.Mutex {
	h := fnv.New32a()
	h.Write(id[:])
	return &m.locks[h.Sum32()%lockStripes]
}

// Reevaluate re-scores one live session against its updated context. Absent,
// revoked and expired sessions produce a terminal no-op result, never an
// error; revoking an already-revoked session is idempotent.
func (m *Monitor) Reevaluate(ctx context.Context, sessionID uuid.UUID, update domain.ContextUpdate) (domain.ReevaluationResult, error) {
	lock := m.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()

	now := m.now().UTC()

	session, err := m.sessions.Get(ctx, sessionID)
	if err != nil {
		return domain.ReevaluationResult{}, domain.ErrInternal("load session", err)
	}
	if session == nil {
		return terminalResult(sessionID, 0, "session not found", now), nil
	}
	if session.Revoked {
		return terminalResult(sessionID, session.RiskScore, "session revoked", now), nil
	}
	if session.Expired(now) {
		return terminalResult(sessionID, session.RiskScore, "session expired", now), nil
	}

	previous := session.RiskScore
	anomalies := m.detectAnomalies(ctx, session, update, now)

	// Recompute with the same weighted model used at authentication, then
	// fold in the anomaly penalty.
	ip := coalesce(update.IPAddress, session.IPAddress)
	ua := coalesce(update.UserAgent, session.UserAgent)
	authCtx := m.scorer.BuildContext(ctx, session.UserID, ip, ua)
	assessment := m.scorer.Evaluate(ctx, authCtx)
	current := domain.ClampScore(assessment.Score + anomalyPenalty*float64(len(anomalies)))
	delta := current - previous

	action := determineAction(delta, anomalies, current)

	session.RiskScore = current
	session.IPAddress = ip
	session.UserAgent = ua
	if update.Location != "" {
		session.Location = update.Location
	}

	if action == domain.ReevalRevoke {
		session.Revoked = true
		if err := m.sessions.Revoke(ctx, session.ID); err != nil {
			return domain.ReevaluationResult{}, domain.ErrInternal("revoke session", err)
		}
		m.logger.Warn("session revoked", "session_id", session.ID, "risk_score", current, "anomalies", len(anomalies))
	} else {
		if err := m.sessions.Update(ctx, session); err != nil {
			return domain.ReevaluationResult{}, domain.ErrInternal("update session", err)
		}
	}

	result := domain.ReevaluationResult{
		SessionID:     session.ID,
		PreviousScore: previous,
		CurrentScore:  current,
		Delta:         delta,
		Anomalies:     anomalies,
		Action:        action,
		Confidence:    reevalConfidence(len(anomalies)),
		ReevaluatedAt: now,
	}

	m.record(ctx, session, result)
	return result, nil
}

// NextReevaluation returns when a scheduler should reevaluate a session with
// the given score again.
func (m *Monitor) NextReevaluation(score float64) time.Time {
	return m.now().UTC().Add(reevalIntervals[domain.HealthLevelForScore(score)])
}

// determineAction maps the reevaluation outcome to the required action.
func determineAction(delta float64, anomalies []domain.Anomaly, current float64) domain.ReevalAction {
	switch {
	case current >= 90 || len(anomalies) >= 3:
		return domain.ReevalRevoke
	case current >= 70 || delta > 30:
		return domain.ReevalStepUp
	case current >= 40 || len(anomalies) > 0:
		return domain.ReevalMonitor
	default:
		return domain.ReevalNone
	}
}

func reevalConfidence(anomalyCount int) string {
	switch {
	case anomalyCount >= 2:
		return "high"
	case anomalyCount == 1:
		return "medium"
	default:
		return "low"
	}
}

func terminalResult(sessionID uuid.UUID, score float64, reason string, now time.Time) domain.ReevaluationResult {
	return domain.ReevaluationResult{
		SessionID:     sessionID,
		PreviousScore: score,
		CurrentScore:  score,
		Action:        domain.ReevalNone,
		Confidence:    "low",
		Terminal:      true,
		Reason:        reason,
		ReevaluatedAt: now,
	}
}

// record persists the reevaluation through the audit collaborator. Audit
// failures are logged, not surfaced: the decision already happened.
func (m *Monitor) record(ctx context.Context, session *domain.Session, result domain.ReevaluationResult) {
	factors, _ := json.Marshal(map[string]any{
		"previous_risk": result.PreviousScore,
		"risk_change":   result.Delta,
		"anomalies":     result.Anomalies,
	})
	eval := domain.RiskEvaluation{
		ID:          uuid.New(),
		SessionID:   session.ID,
		UserID:      session.UserID,
		RiskScore:   result.CurrentScore,
		Factors:     factors,
		Decision:    string(result.Action),
		EvaluatedAt: result.ReevaluatedAt,
	}
	if err := m.recorder.RecordReevaluation(ctx, eval); err != nil {
		m.logger.Error("record reevaluation failed", "session_id", session.ID, "error", err)
	}

	if m.publisher != nil {
		event := domain.NewReevaluationEvent(result, session.UserID)
		value, _ := json.Marshal(event)
		if err := m.publisher.Publish(ctx, domain.TopicReevaluations, []byte(event.SessionID), value); err != nil {
			m.logger.Error("publish reevaluation failed", "session_id", session.ID, "error", err)
		}
	}
}

func coalesce(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
