//go:build integration

package integration

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/vigilo/platform/internal/auth"
	"github.com/vigilo/platform/test/integration/testutil"
)

func TestHealthEndpointIsOpen(t *testing.T) {
	env := testutil.NewTestEnv(t)

	resp := env.GET("/health")
	testutil.AssertStatus(t, resp, http.StatusOK)
	resp.Body.Close()
}

func TestMissingTokenRejected(t *testing.T) {
	env := testutil.NewTestEnv(t)

	resp := env.POST("/access/evaluate", map[string]any{"user_id": uuid.New()}, "")
	testutil.AssertStatus(t, resp, http.StatusUnauthorized)
	resp.Body.Close()

	resp = env.GET("/admin/policies")
	testutil.AssertStatus(t, resp, http.StatusUnauthorized)
	resp.Body.Close()
}

func TestMalformedAuthorizationHeaderRejected(t *testing.T) {
	env := testutil.NewTestEnv(t)

	req, err := http.NewRequest("GET", env.Server.URL+"/sessions/summary", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Token abc123")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	testutil.AssertStatus(t, resp, http.StatusUnauthorized)
	resp.Body.Close()
}

func TestRealmSeparationEnforced(t *testing.T) {
	env := testutil.NewTestEnv(t)

	// Operator tokens cannot call the decision API.
	operator := env.OperatorToken(auth.RoleAdmin)
	resp := env.POST("/access/evaluate", map[string]any{
		"user_id":    uuid.New(),
		"ip_address": "203.0.113.40",
	}, operator)
	testutil.AssertStatus(t, resp, http.StatusUnauthorized)
	resp.Body.Close()

	// Service tokens cannot reach policy administration.
	service := env.ServiceToken("checkout-api")
	resp = env.AuthGET("/admin/policies", service)
	testutil.AssertStatus(t, resp, http.StatusUnauthorized)
	resp.Body.Close()
}

func TestCORSPreflight(t *testing.T) {
	env := testutil.NewTestEnv(t)

	resp := env.OPTIONS("/access/evaluate")
	testutil.AssertStatus(t, resp, http.StatusNoContent)
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("expected permissive CORS origin, got %q", got)
	}
	resp.Body.Close()
}

func TestRequestIDPropagated(t *testing.T) {
	env := testutil.NewTestEnv(t)

	req, err := http.NewRequest("GET", env.Server.URL+"/health", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("X-Request-ID", "req-integration-42")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	if got := resp.Header.Get("X-Request-ID"); got != "req-integration-42" {
		t.Errorf("request id not echoed, got %q", got)
	}
}
