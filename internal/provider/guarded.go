package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/vigilo/platform/internal/domain"
	"github.com/vigilo/platform/internal/guard"
)

const reputationCircuitKey = "abuseipdb"

// GuardedReputationClient wraps a reputation client with a circuit breaker so
// a failing external source is skipped instead of hammered. An open circuit
// surfaces as a lookup error, which the gateway degrades on.
type GuardedReputationClient struct {
	inner   interface {
		Check(ctx context.Context, ip string) (domain.ReputationReport, error)
	}
	breaker *guard.CircuitBreaker
}

// NewGuardedReputationClient wraps client with a fresh circuit breaker.
func NewGuardedReputationClient(client *AbuseIPDBClient) *GuardedReputationClient {
	return &GuardedReputationClient{
		inner:   client,
		breaker: guard.NewCircuitBreaker(5, 30*time.Second),
	}
}

// Check queries the wrapped client when the circuit allows it.
func (c *GuardedReputationClient) Check(ctx context.Context, ip string) (domain.ReputationReport, error) {
	if result := c.breaker.Check(ctx, reputationCircuitKey); !result.Allowed {
		return domain.ReputationReport{}, fmt.Errorf("reputation source skipped: %s", result.Reason)
	}

	report, err := c.inner.Check(ctx, ip)
	if err != nil {
		c.breaker.RecordFailure(reputationCircuitKey)
		return domain.ReputationReport{}, err
	}
	c.breaker.RecordSuccess(reputationCircuitKey)
	return report, nil
}
