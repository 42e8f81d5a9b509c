package stepup

import (
	"sync"
	"time"
)

// pendingChallenge is one outstanding step-up challenge. The one-time code
// is held only as a bcrypt hash.
type pendingChallenge struct {
	userID    string
	codeHash  []byte
	attempts  int
	expiresAt time.Time
}

// challengeStore holds outstanding challenges keyed by token id. It is an
// owned state object with TTL semantics: expired entries are evicted lazily
// when touched. Entries are only ever mutated inside store methods under the
// mutex; callers see copies.
type challengeStore struct {
	mu      sync.Mutex
	entries map[string]*pendingChallenge
}

func newChallengeStore() *challengeStore {
	return &challengeStore{entries: make(map[string]*pendingChallenge)}
}

func (s *challengeStore) put(id string, c *pendingChallenge) {
	s.mu.Lock()
	s.entries[id] = c
	s.mu.Unlock()
}

// take returns a copy of the challenge for id when present and unexpired;
// expired entries are deleted on the spot.
func (s *challengeStore) take(id string, now time.Time) (pendingChallenge, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.entries[id]
	if !ok {
		return pendingChallenge{}, false
	}
	if now.After(c.expiresAt) {
		delete(s.entries, id)
		return pendingChallenge{}, false
	}
	return *c, true
}

// recordFailure counts one failed verification for id and reports whether
// the challenge is burned. Reaching limit removes the entry; an entry that is
// already gone counts as burned.
func (s *challengeStore) recordFailure(id string, limit int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.entries[id]
	if !ok {
		return true
	}
	c.attempts++
	if c.attempts >= limit {
		delete(s.entries, id)
		return true
	}
	return false
}

// consume removes the challenge, reporting whether it was still outstanding.
// Of any set of concurrent callers exactly one sees true.
func (s *challengeStore) consume(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return false
	}
	delete(s.entries, id)
	return true
}

func (s *challengeStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
