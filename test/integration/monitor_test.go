//go:build integration

package integration

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/vigilo/platform/internal/domain"
	"github.com/vigilo/platform/internal/monitor"
	"github.com/vigilo/platform/test/integration/testutil"
)

func TestReevaluateUnknownSessionIsTerminal(t *testing.T) {
	env := testutil.NewTestEnv(t)
	token := env.ServiceToken("session-manager")

	resp := env.POST("/sessions/"+uuid.New().String()+"/reevaluate", nil, token)
	testutil.AssertStatus(t, resp, http.StatusOK)

	var result domain.ReevaluationResult
	testutil.DecodeJSON(t, resp, &result)
	if !result.Terminal {
		t.Error("expected terminal result for unknown session")
	}
	if result.Reason != "session not found" {
		t.Errorf("unexpected reason %q", result.Reason)
	}
	if result.Action != domain.ReevalNone {
		t.Errorf("terminal result must require no action, got %q", result.Action)
	}
}

func TestReevaluateActiveSession(t *testing.T) {
	env := testutil.NewTestEnv(t)
	token := env.ServiceToken("session-manager")
	userID := uuid.New()
	sessionID := env.SeedSession(userID, "203.0.113.20", 10)

	resp := env.POST("/sessions/"+sessionID.String()+"/reevaluate", map[string]string{
		"ip_address": "203.0.113.20",
	}, token)
	testutil.AssertStatus(t, resp, http.StatusOK)

	var result domain.ReevaluationResult
	testutil.DecodeJSON(t, resp, &result)
	if result.Terminal {
		t.Errorf("unexpected terminal result: %s", result.Reason)
	}
	if result.SessionID != sessionID {
		t.Errorf("session id mismatch: %s", result.SessionID)
	}
	if result.PreviousScore != 10 {
		t.Errorf("expected previous score 10, got %v", result.PreviousScore)
	}

	// The reevaluation is persisted.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var count int
	if err := env.Pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM risk_evaluations WHERE session_id = $1", sessionID).Scan(&count); err != nil {
		t.Fatalf("count evaluations: %v", err)
	}
	if count != 1 {
		t.Errorf("expected one persisted evaluation, got %d", count)
	}
}

func TestReevaluateRevokedSessionIsTerminal(t *testing.T) {
	env := testutil.NewTestEnv(t)
	token := env.ServiceToken("session-manager")
	sessionID := env.SeedSession(uuid.New(), "203.0.113.21", 30)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := env.Pool.Exec(ctx, "UPDATE sessions SET revoked = true WHERE id = $1", sessionID); err != nil {
		t.Fatalf("revoke session: %v", err)
	}

	resp := env.POST("/sessions/"+sessionID.String()+"/reevaluate", nil, token)
	testutil.AssertStatus(t, resp, http.StatusOK)

	var result domain.ReevaluationResult
	testutil.DecodeJSON(t, resp, &result)
	if !result.Terminal || result.Reason != "session revoked" {
		t.Errorf("expected terminal revoked result, got terminal=%v reason=%q", result.Terminal, result.Reason)
	}
}

func TestSessionHealth(t *testing.T) {
	env := testutil.NewTestEnv(t)
	token := env.ServiceToken("session-manager")

	resp := env.AuthGET("/sessions/"+uuid.New().String()+"/health", token)
	testutil.AssertStatus(t, resp, http.StatusNotFound)
	testutil.AssertErrorCode(t, resp, "NOT_FOUND")

	sessionID := env.SeedSession(uuid.New(), "203.0.113.22", 85)
	resp = env.AuthGET("/sessions/"+sessionID.String()+"/health", token)
	testutil.AssertStatus(t, resp, http.StatusOK)

	var health domain.SessionHealth
	testutil.DecodeJSON(t, resp, &health)
	if !health.IsActive {
		t.Error("seeded session should be active")
	}
	if health.RiskLevel != domain.RiskHigh {
		t.Errorf("expected high risk level at score 85, got %q", health.RiskLevel)
	}
	if len(health.Recommendations) == 0 {
		t.Error("high risk session should carry recommendations")
	}
	if !health.NextReevaluation.After(health.LastReevaluation) {
		t.Error("next reevaluation should be scheduled after the last one")
	}
}

func TestSessionsSummary(t *testing.T) {
	env := testutil.NewTestEnv(t)
	token := env.ServiceToken("session-manager")

	env.SeedSession(uuid.New(), "203.0.113.23", 10)
	env.SeedSession(uuid.New(), "203.0.113.24", 55)
	highID := env.SeedSession(uuid.New(), "203.0.113.25", 95)

	resp := env.AuthGET("/sessions/summary", token)
	testutil.AssertStatus(t, resp, http.StatusOK)

	var summary domain.SessionsSummary
	testutil.DecodeJSON(t, resp, &summary)
	if summary.TotalSessions != 3 {
		t.Errorf("expected 3 active sessions, got %d", summary.TotalSessions)
	}
	if summary.ByRiskLevel[domain.RiskLow] != 1 ||
		summary.ByRiskLevel[domain.RiskMedium] != 1 ||
		summary.ByRiskLevel[domain.RiskCritical] != 1 {
		t.Errorf("unexpected risk buckets: %v", summary.ByRiskLevel)
	}
	if summary.RequiringAction != 1 {
		t.Errorf("expected 1 session requiring action, got %d", summary.RequiringAction)
	}
	found := false
	for _, s := range summary.HighRiskSessions {
		if s.SessionID == highID {
			found = true
		}
	}
	if !found {
		t.Error("critical session missing from high risk list")
	}
}

func TestSweepSelectsByThreshold(t *testing.T) {
	env := testutil.NewTestEnv(t)
	token := env.ServiceToken("session-manager")

	env.SeedSession(uuid.New(), "203.0.113.26", 10)
	env.SeedSession(uuid.New(), "203.0.113.27", 80)

	resp := env.POST("/sessions/sweep", map[string]float64{
		"risk_threshold": monitor.DefaultSweepThreshold,
	}, token)
	testutil.AssertStatus(t, resp, http.StatusOK)

	var report monitor.SweepReport
	testutil.DecodeJSON(t, resp, &report)
	if report.Selected != 1 {
		t.Errorf("expected 1 session selected at threshold %v, got %d", monitor.DefaultSweepThreshold, report.Selected)
	}
	if report.Reevaluated+report.Failed != report.Selected {
		t.Errorf("inconsistent report: %+v", report)
	}
}
