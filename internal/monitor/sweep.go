package monitor

import (
	"context"
	"sync"

	"github.com/vigilo/platform/internal/domain"
	"golang.org/x/sync/semaphore"
)

// DefaultSweepThreshold selects sessions worth reevaluating in a batch pass.
const DefaultSweepThreshold = 40.0

// SweepReport summarizes one batch reevaluation pass.
type SweepReport struct {
	Selected    int `json:"selected"`
	Reevaluated int `json:"reevaluated"`
	Revoked     int `json:"revoked"`
	StepUps     int `json:"stepups"`
	Failed      int `json:"failed"`
}

// Sweep reevaluates every active session at or above threshold, running up
// to workers reevaluations concurrently. Each session is an independent unit
// of work: one failure is counted and logged without aborting the rest.
func (m *Monitor) Sweep(ctx context.Context, threshold float64, workers int64) (SweepReport, error) {
	if workers < 1 {
		workers = 1
	}

	sessions, err := m.sessions.ListActive(ctx, threshold)
	if err != nil {
		return SweepReport{}, domain.ErrInternal("list active sessions", err)
	}

	report := SweepReport{Selected: len(sessions)}
	sem := semaphore.NewWeighted(workers)

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, session := range sessions {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Context cancelled mid-sweep; report what completed.
			break
		}
		wg.Add(1)
		go func(s domain.Session) {
			defer wg.Done()
			defer sem.Release(1)

			result, err := m.Reevaluate(ctx, s.ID, domain.ContextUpdate{})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed++
				m.logger.Error("sweep reevaluation failed", "session_id", s.ID, "error", err)
				return
			}
			report.Reevaluated++
			switch result.Action {
			case domain.ReevalRevoke:
				report.Revoked++
			case domain.ReevalStepUp:
				report.StepUps++
			}
		}(session)
	}
	wg.Wait()

	m.logger.Info("sweep completed",
		"selected", report.Selected,
		"reevaluated", report.Reevaluated,
		"revoked", report.Revoked,
		"failed", report.Failed,
	)
	return report, nil
}
