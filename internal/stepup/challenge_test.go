package stepup

import (
	"errors"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vigilo/platform/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "stepup-test-secret"

func assertAppCode(t *testing.T, err error, code string) {
	t.Helper()
	var appErr *domain.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, code, appErr.Code)
}

func TestIssueProducesSixDigitCode(t *testing.T) {
	m := NewManager(testSecret)
	userID := uuid.New()

	c, err := m.Issue(userID)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^\d{6}$`), c.Code)
	assert.NotEmpty(t, c.Token)
	assert.WithinDuration(t, time.Now().UTC().Add(challengeTTL), c.ExpiresAt, 5*time.Second)
	assert.Equal(t, 1, m.store.len())
}

func TestVerifyRoundtrip(t *testing.T) {
	m := NewManager(testSecret)
	userID := uuid.New()

	c, err := m.Issue(userID)
	require.NoError(t, err)

	got, err := m.Verify(c.Token, c.Code)
	require.NoError(t, err)
	assert.Equal(t, userID, got)
	assert.Equal(t, 0, m.store.len(), "successful verification consumes the challenge")
}

func TestVerifyIsSingleUse(t *testing.T) {
	m := NewManager(testSecret)

	c, err := m.Issue(uuid.New())
	require.NoError(t, err)

	_, err = m.Verify(c.Token, c.Code)
	require.NoError(t, err)

	_, err = m.Verify(c.Token, c.Code)
	assertAppCode(t, err, "CHALLENGE_EXPIRED")
}

func TestVerifyWrongCode(t *testing.T) {
	m := NewManager(testSecret)

	c, err := m.Issue(uuid.New())
	require.NoError(t, err)

	_, err = m.Verify(c.Token, wrongCode(c))
	assertAppCode(t, err, "UNAUTHORIZED")

	// The challenge survives a single miss.
	got, err := m.Verify(c.Token, c.Code)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, got)
}

func TestVerifyAttemptLimitBurnsChallenge(t *testing.T) {
	m := NewManager(testSecret)

	c, err := m.Issue(uuid.New())
	require.NoError(t, err)

	for i := 0; i < maxAttempts-1; i++ {
		_, err = m.Verify(c.Token, wrongCode(c))
		assertAppCode(t, err, "UNAUTHORIZED")
	}

	_, err = m.Verify(c.Token, wrongCode(c))
	assertAppCode(t, err, "CHALLENGE_EXPIRED")

	// Even the correct code is refused once the challenge is burned.
	_, err = m.Verify(c.Token, c.Code)
	assertAppCode(t, err, "CHALLENGE_EXPIRED")
	assert.Equal(t, 0, m.store.len())
}

// wrongCode picks a code that is guaranteed not to match the challenge.
func wrongCode(c Challenge) string {
	if c.Code == "000000" {
		return "111111"
	}
	return "000000"
}

func TestVerifyConcurrentWrongCodesBurnExactlyOnce(t *testing.T) {
	m := NewManager(testSecret)

	c, err := m.Issue(uuid.New())
	require.NoError(t, err)
	bad := wrongCode(c)

	var (
		wg     sync.WaitGroup
		burned atomic.Int32
	)
	for i := 0; i < maxAttempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Verify(c.Token, bad)
			var appErr *domain.AppError
			if errors.As(err, &appErr) && appErr.Code == "CHALLENGE_EXPIRED" {
				burned.Add(1)
			}
		}()
	}
	wg.Wait()

	// Failure accounting is serialized in the store, so no increment is lost
	// and only the attempt that reaches the limit burns the challenge.
	assert.Equal(t, int32(1), burned.Load())
	assert.Equal(t, 0, m.store.len())

	_, err = m.Verify(c.Token, c.Code)
	assertAppCode(t, err, "CHALLENGE_EXPIRED")
}

func TestVerifyConcurrentCorrectCodesSucceedOnce(t *testing.T) {
	m := NewManager(testSecret)
	userID := uuid.New()

	c, err := m.Issue(userID)
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got, err := m.Verify(c.Token, c.Code); err == nil {
				assert.Equal(t, userID, got)
				successes.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
	assert.Equal(t, 0, m.store.len())
}

func TestVerifyExpiredChallenge(t *testing.T) {
	base := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	current := base

	m := NewManager(testSecret)
	m.now = func() time.Time { return current }

	c, err := m.Issue(uuid.New())
	require.NoError(t, err)

	current = base.Add(challengeTTL + time.Minute)
	_, err = m.Verify(c.Token, c.Code)
	assertAppCode(t, err, "UNAUTHORIZED")
}

func TestVerifyRejectsForeignToken(t *testing.T) {
	issuer := NewManager("other-secret")
	c, err := issuer.Issue(uuid.New())
	require.NoError(t, err)

	m := NewManager(testSecret)
	_, err = m.Verify(c.Token, c.Code)
	assertAppCode(t, err, "UNAUTHORIZED")

	_, err = m.Verify("not-a-token", "123456")
	assertAppCode(t, err, "UNAUTHORIZED")
}

func TestVerifyRejectsWrongPurpose(t *testing.T) {
	m := NewManager(testSecret)

	claims := challengeClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			ID:        uuid.New().String(),
		},
		Purpose: "session",
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = m.Verify(token, "123456")
	assertAppCode(t, err, "UNAUTHORIZED")
}

func TestSubjectDoesNotConsume(t *testing.T) {
	m := NewManager(testSecret)
	userID := uuid.New()

	c, err := m.Issue(userID)
	require.NoError(t, err)

	got, err := m.Subject(c.Token)
	require.NoError(t, err)
	assert.Equal(t, userID, got)

	// The challenge is still verifiable afterwards.
	got, err = m.Verify(c.Token, c.Code)
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}

func TestChallengeStoreEvictsExpired(t *testing.T) {
	s := newChallengeStore()
	now := time.Now().UTC()

	hash, err := bcrypt.GenerateFromPassword([]byte("123456"), bcrypt.MinCost)
	require.NoError(t, err)
	s.put("stale", &pendingChallenge{userID: uuid.New().String(), codeHash: hash, expiresAt: now.Add(-time.Minute)})

	_, ok := s.take("stale", now)
	assert.False(t, ok)
	assert.Equal(t, 0, s.len())
}
