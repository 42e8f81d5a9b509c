// Package stepup models the step-up authentication challenge: issue a
// short-lived challenge token plus one-time code, verify a caller-supplied
// proof. Out-of-band delivery of the code is the caller's concern.
package stepup

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/vigilo/platform/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

const (
	challengeTTL = 15 * time.Minute
	maxAttempts  = 5
)

// Challenge is an issued step-up challenge. Code is returned exactly once so
// the caller can deliver it; only its hash is retained.
type Challenge struct {
	Token     string    `json:"stepup_token"`
	Code      string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}

type challengeClaims struct {
	jwt.RegisteredClaims
	Purpose string `json:"purpose"`
}

// Manager issues and verifies step-up challenges.
type Manager struct {
	secret []byte
	store  *challengeStore
	now    func() time.Time
}

// NewManager creates a challenge manager with an empty challenge store.
func NewManager(secret string) *Manager {
	return &Manager{
		secret: []byte(secret),
		store:  newChallengeStore(),
		now:    time.Now,
	}
}

// Issue creates a challenge for the user: a signed short-lived token and a
// six-digit one-time code stored as a bcrypt hash.
func (m *Manager) Issue(userID uuid.UUID) (Challenge, error) {
	now := m.now().UTC()
	expiresAt := now.Add(challengeTTL)
	jti := uuid.New().String()

	code, err := sixDigitCode()
	if err != nil {
		return Challenge{}, fmt.Errorf("generate code: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return Challenge{}, fmt.Errorf("hash code: %w", err)
	}

	claims := challengeClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        jti,
		},
		Purpose: "stepup",
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return Challenge{}, fmt.Errorf("sign challenge token: %w", err)
	}

	m.store.put(jti, &pendingChallenge{
		userID:    userID.String(),
		codeHash:  hash,
		expiresAt: expiresAt,
	})

	return Challenge{Token: token, Code: code, ExpiresAt: expiresAt}, nil
}

// Verify checks a caller-supplied proof against the outstanding challenge.
// A successful verification consumes the challenge; repeated failures burn
// it after the attempt limit.
func (m *Manager) Verify(token, code string) (uuid.UUID, error) {
	claims, err := m.parseToken(token)
	if err != nil {
		return uuid.Nil, domain.ErrUnauthorized("invalid step-up token")
	}

	now := m.now().UTC()
	pending, ok := m.store.take(claims.ID, now)
	if !ok {
		return uuid.Nil, domain.ErrChallengeExpired("step-up challenge expired or already used")
	}

	if err := bcrypt.CompareHashAndPassword(pending.codeHash, []byte(code)); err != nil {
		if m.store.recordFailure(claims.ID, maxAttempts) {
			return uuid.Nil, domain.ErrChallengeExpired("step-up challenge attempt limit reached")
		}
		return uuid.Nil, domain.ErrUnauthorized("invalid verification code")
	}

	if !m.store.consume(claims.ID) {
		return uuid.Nil, domain.ErrChallengeExpired("step-up challenge expired or already used")
	}
	userID, err := uuid.Parse(pending.userID)
	if err != nil {
		return uuid.Nil, domain.ErrInternal("parse challenge subject", err)
	}
	return userID, nil
}

// Subject returns the user a challenge token was issued to without consuming
// the challenge or checking the code.
func (m *Manager) Subject(token string) (uuid.UUID, error) {
	claims, err := m.parseToken(token)
	if err != nil {
		return uuid.Nil, domain.ErrUnauthorized("invalid step-up token")
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, domain.ErrUnauthorized("invalid step-up token")
	}
	return userID, nil
}

func (m *Manager) parseToken(token string) (*challengeClaims, error) {
	parsed, err := jwt.ParseWithClaims(token, &challengeClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return m.now() }))
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	claims, ok := parsed.Claims.(*challengeClaims)
	if !ok || !parsed.Valid || claims.Purpose != "stepup" {
		return nil, fmt.Errorf("invalid challenge claims")
	}
	return claims, nil
}

func sixDigitCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
