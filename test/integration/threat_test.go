//go:build integration

package integration

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/vigilo/platform/internal/domain"
	"github.com/vigilo/platform/test/integration/testutil"
)

func TestThreatCheckBenignRequest(t *testing.T) {
	env := testutil.NewTestEnv(t)
	token := env.ServiceToken("edge-gateway")

	resp := env.POST("/threat/check", map[string]any{
		"ip_address": "203.0.113.30",
		"user_agent": benignUA,
	}, token)
	testutil.AssertStatus(t, resp, http.StatusOK)

	var assessment domain.ThreatAssessment
	testutil.DecodeJSON(t, resp, &assessment)
	if assessment.IsMalicious {
		t.Error("benign request flagged as malicious")
	}
	if assessment.Score != 0 {
		t.Errorf("expected zero threat score with no signals, got %d", assessment.Score)
	}
	if len(assessment.Sources) != 2 {
		t.Errorf("expected 2 sources, got %d", len(assessment.Sources))
	}
	if assessment.Confidence != "low" {
		t.Errorf("expected low confidence with no firing signals, got %q", assessment.Confidence)
	}
}

func TestThreatCheckDetectsIndicators(t *testing.T) {
	env := testutil.NewTestEnv(t)
	token := env.ServiceToken("edge-gateway")

	resp := env.POST("/threat/check", map[string]any{
		"ip_address": "203.0.113.31",
		"user_agent": "sqlmap/1.7",
		"context":    map[string]any{"is_tor": true},
	}, token)
	testutil.AssertStatus(t, resp, http.StatusOK)

	var assessment domain.ThreatAssessment
	testutil.DecodeJSON(t, resp, &assessment)
	if len(assessment.Indicators) < 2 {
		t.Errorf("expected scanner and anonymization indicators, got %v", assessment.Indicators)
	}
	if assessment.Score == 0 {
		t.Error("indicators should contribute to the threat score")
	}
}

func TestThreatCheckInvalidIP(t *testing.T) {
	env := testutil.NewTestEnv(t)
	token := env.ServiceToken("edge-gateway")

	resp := env.POST("/threat/check", map[string]any{
		"ip_address": "not-an-ip",
	}, token)
	testutil.AssertStatus(t, resp, http.StatusBadRequest)
	testutil.AssertErrorCode(t, resp, "VALIDATION_ERROR")
}

func TestThreatCheckRecordsAuditEvent(t *testing.T) {
	env := testutil.NewTestEnv(t)
	token := env.ServiceToken("edge-gateway")

	resp := env.POST("/threat/check", map[string]any{
		"ip_address": "203.0.113.32",
		"user_agent": benignUA,
	}, token)
	testutil.AssertStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var count int
	err := env.Pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM audit_events
		WHERE ip_address = '203.0.113.32' AND event_type = 'threat_intelligence_check'`).Scan(&count)
	if err != nil {
		t.Fatalf("count audit events: %v", err)
	}
	if count != 1 {
		t.Errorf("expected one threat check audit event, got %d", count)
	}
}

func TestReputationLookup(t *testing.T) {
	env := testutil.NewTestEnv(t)
	token := env.ServiceToken("edge-gateway")

	resp := env.AuthGET("/threat/reputation/not-an-ip", token)
	testutil.AssertStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	resp = env.AuthGET("/threat/reputation/203.0.113.33", token)
	testutil.AssertStatus(t, resp, http.StatusOK)

	var summary domain.IPReputationSummary
	testutil.DecodeJSON(t, resp, &summary)
	if summary.IPAddress != "203.0.113.33" {
		t.Errorf("unexpected ip in summary: %q", summary.IPAddress)
	}
	if summary.IsBlacklisted {
		t.Error("ip with no abuse history should not be blacklisted")
	}
}

func TestEnrichSession(t *testing.T) {
	env := testutil.NewTestEnv(t)
	token := env.ServiceToken("edge-gateway")

	resp := env.POST("/sessions/"+uuid.New().String()+"/enrich", nil, token)
	testutil.AssertStatus(t, resp, http.StatusNotFound)
	testutil.AssertErrorCode(t, resp, "NOT_FOUND")

	sessionID := env.SeedSession(uuid.New(), "203.0.113.34", 30)
	resp = env.POST("/sessions/"+sessionID.String()+"/enrich", nil, token)
	testutil.AssertStatus(t, resp, http.StatusOK)

	var enrichment domain.SessionEnrichment
	testutil.DecodeJSON(t, resp, &enrichment)
	if enrichment.OriginalScore != 30 {
		t.Errorf("expected original score 30, got %v", enrichment.OriginalScore)
	}
	// The stub reputation source reports no abuse, so no adjustment applies.
	if enrichment.Adjustment != 0 || enrichment.NewScore != 30 {
		t.Errorf("expected no adjustment, got %+v", enrichment)
	}
}
