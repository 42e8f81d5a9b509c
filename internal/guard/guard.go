// Package guard provides the protective checks wrapped around the engine's
// hot paths: request rate limiting, step-up lockout and a circuit breaker for
// external intelligence sources.
package guard

// Result is the outcome of one guard check.
type Result struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
	Guard   string `json:"guard,omitempty"`
}
