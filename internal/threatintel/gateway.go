// Package threatintel consolidates external IP reputation, local abuse
// history and request indicators into a single threat score, cached per IP.
package threatintel

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/vigilo/platform/internal/domain"
)

// ReputationClient is the external reputation source. Implementations must
// bound their own call timeout.
type ReputationClient interface {
	Check(ctx context.Context, ip string) (domain.ReputationReport, error)
}

// AbuseStats is the local audit-derived abuse signal for one IP.
type AbuseStats struct {
	SuspiciousEvents int
	SuccessfulEvents int
}

// Ratio returns suspicious / (suspicious + successful), or 0 with no events.
func (s AbuseStats) Ratio() float64 {
	total := s.SuspiciousEvents + s.SuccessfulEvents
	if total == 0 {
		return 0
	}
	return float64(s.SuspiciousEvents) / float64(total)
}

// AuditSource supplies the trailing local abuse window.
type AuditSource interface {
	AbuseStats(ctx context.Context, ip string, since time.Time) (AbuseStats, error)
}

// SessionStore is the minimal session surface EnrichSession needs.
type SessionStore interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Session, error)
	Update(ctx context.Context, s *domain.Session) error
}

const (
	// Threat score weights: external reputation, local abuse ratio,
	// indicator count.
	externalWeight  = 0.5
	localWeight     = 0.3
	indicatorWeight = 0.2

	indicatorUnit = 20

	maliciousThreshold = 70
	abuseWindow        = 30 * 24 * time.Hour
	cacheTTL           = time.Hour

	// EnrichSession adjustments.
	externalEnrichThreshold = 50
	externalEnrichBoost     = 20.0
	localEnrichThreshold    = 50
	localEnrichBoost        = 15.0
)

// Gateway is the threat intelligence gateway.
type Gateway struct {
	client   ReputationClient
	audit    AuditSource
	sessions SessionStore
	cache    *reputationCache
	logger   *slog.Logger
	now      func() time.Time
}

// NewGateway creates a gateway with a fresh reputation cache.
func NewGateway(client ReputationClient, audit AuditSource, sessions SessionStore, logger *slog.Logger) *Gateway {
	return &Gateway{
		client:   client,
		audit:    audit,
		sessions: sessions,
		cache:    newReputationCache(cacheTTL),
		logger:   logger,
		now:      time.Now,
	}
}

// CheckIP consolidates all sources into a threat assessment for the IP.
// Results are cached per IP for one hour; a cached hit is returned as stored
// without touching the external source. External failures degrade to a zero
// reputation contribution, never an error.
func (g *Gateway) CheckIP(ctx context.Context, ip, userAgent string, tc domain.ThreatContext) domain.ThreatAssessment {
	now := g.now().UTC()

	if cached, ok := g.cache.get(ip, now); ok {
		return cached
	}

	report := g.externalReport(ctx, ip)

	stats, err := g.audit.AbuseStats(ctx, ip, now.Add(-abuseWindow))
	if err != nil {
		g.logger.Warn("local abuse stats unavailable", "ip", ip, "error", err)
		stats = AbuseStats{}
	}

	indicators := detectIndicators(userAgent, tc)

	score := consolidatedScore(report, stats, len(indicators))
	confidence := scoreConfidence(report, stats, len(indicators))

	assessment := domain.ThreatAssessment{
		IPAddress:   ip,
		IsMalicious: score >= maliciousThreshold,
		Score:       score,
		Confidence:  confidence,
		Sources: []domain.ThreatSource{
			{Name: report.Source, Score: report.AbuseScore, Reports: report.TotalReports},
			{Name: "local_audit", Score: int(stats.Ratio() * 100), SuspiciousEvents: stats.SuspiciousEvents},
		},
		Indicators:     indicators,
		Recommendation: recommendation(score),
		CheckedAt:      now,
	}

	g.cache.put(ip, assessment, now)
	return assessment
}

// externalReport queries the reputation client, degrading to a zero-score
// "unavailable" report on any failure.
func (g *Gateway) externalReport(ctx context.Context, ip string) domain.ReputationReport {
	report, err := g.client.Check(ctx, ip)
	if err != nil {
		g.logger.Warn("reputation source unavailable", "ip", ip, "error", err)
		return domain.ReputationReport{IPAddress: ip, Source: "unavailable"}
	}
	return report
}

// consolidatedScore blends the three signals:
// 0.5 x external score + 0.3 x local abuse ratio x 100 + 0.2 x min(indicators x 20, 100).
func consolidatedScore(report domain.ReputationReport, stats AbuseStats, indicatorCount int) int {
	indicatorScore := float64(indicatorCount * indicatorUnit)
	if indicatorScore > 100 {
		indicatorScore = 100
	}
	total := float64(report.AbuseScore)*externalWeight +
		stats.Ratio()*100*localWeight +
		indicatorScore*indicatorWeight
	return int(total)
}

// scoreConfidence is high when at least two of the three signal classes
// fired, medium on exactly one, low otherwise.
func scoreConfidence(report domain.ReputationReport, stats AbuseStats, indicatorCount int) string {
	sources := 0
	if report.TotalReports > 0 {
		sources++
	}
	if stats.SuspiciousEvents > 0 {
		sources++
	}
	if indicatorCount > 0 {
		sources++
	}
	switch {
	case sources >= 2:
		return "high"
	case sources == 1:
		return "medium"
	default:
		return "low"
	}
}

func recommendation(score int) string {
	switch {
	case score >= 90:
		return "BLOCK: high threat risk detected"
	case score >= maliciousThreshold:
		return "CHALLENGE: additional authentication required"
	case score >= 40:
		return "MONITOR: watch activity closely"
	default:
		return "ALLOW: low risk"
	}
}

// Reputation returns the historical reputation view of one IP without
// touching the session state.
func (g *Gateway) Reputation(ctx context.Context, ip string) domain.IPReputationSummary {
	now := g.now().UTC()
	report := g.externalReport(ctx, ip)

	stats, err := g.audit.AbuseStats(ctx, ip, now.Add(-abuseWindow))
	if err != nil {
		stats = AbuseStats{}
	}

	return domain.IPReputationSummary{
		IPAddress:     ip,
		TotalChecks:   report.TotalReports,
		AbuseScore:    report.AbuseScore,
		IsWhitelisted: report.IsWhitelisted,
		IsBlacklisted: int(stats.Ratio()*100) >= maliciousThreshold,
		CountryCode:   report.CountryCode,
		ISP:           report.ISP,
	}
}

// EnrichSession folds threat intelligence into an existing session's risk
// score. The adjustment is additive and non-negative; the resulting score is
// clamped so it never exceeds 100.
func (g *Gateway) EnrichSession(ctx context.Context, sessionID uuid.UUID) (domain.SessionEnrichment, error) {
	session, err := g.sessions.Get(ctx, sessionID)
	if err != nil {
		return domain.SessionEnrichment{}, domain.ErrInternal("load session", err)
	}
	if session == nil {
		return domain.SessionEnrichment{}, domain.ErrNotFound("session", sessionID.String())
	}

	now := g.now().UTC()
	report := g.externalReport(ctx, session.IPAddress)
	stats, err := g.audit.AbuseStats(ctx, session.IPAddress, now.Add(-abuseWindow))
	if err != nil {
		g.logger.Warn("local abuse stats unavailable", "ip", session.IPAddress, "error", err)
		stats = AbuseStats{}
	}

	var adjustment float64
	if report.AbuseScore > externalEnrichThreshold {
		adjustment += externalEnrichBoost
	}
	if int(stats.Ratio()*100) > localEnrichThreshold {
		adjustment += localEnrichBoost
	}

	original := session.RiskScore
	newScore := domain.ClampScore(original + adjustment)
	session.RiskScore = newScore
	if err := g.sessions.Update(ctx, session); err != nil {
		return domain.SessionEnrichment{}, domain.ErrInternal("update session", err)
	}

	rec := "allow"
	if newScore >= 70 {
		rec = "step_up_required"
	}
	return domain.SessionEnrichment{
		SessionID:      session.ID.String(),
		OriginalScore:  original,
		Adjustment:     adjustment,
		NewScore:       newScore,
		Recommendation: rec,
	}, nil
}
