package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWTManager() *JWTManager {
	return NewJWTManager("test-secret-key", 24*time.Hour, 8*time.Hour)
}

func TestGenerateAndValidateServiceToken(t *testing.T) {
	mgr := newTestJWTManager()
	serviceID := uuid.New()

	token, err := mgr.GenerateToken(RealmService, serviceID, "checkout-api", "")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := mgr.ValidateTokenForRealm(token, RealmService)
	require.NoError(t, err)
	assert.Equal(t, serviceID.String(), claims.Subject)
	assert.Equal(t, RealmService, claims.Realm)
	assert.Equal(t, "checkout-api", claims.Name)
}

func TestGenerateAndValidateOperatorToken(t *testing.T) {
	mgr := newTestJWTManager()
	operatorID := uuid.New()

	token, err := mgr.GenerateToken(RealmOperator, operatorID, "secops", RoleAdmin)
	require.NoError(t, err)

	claims, err := mgr.ValidateTokenForRealm(token, RealmOperator)
	require.NoError(t, err)
	assert.Equal(t, RealmOperator, claims.Realm)
	assert.Equal(t, RoleAdmin, claims.Role)
}

func TestRealmMismatchRejected(t *testing.T) {
	mgr := newTestJWTManager()

	token, err := mgr.GenerateToken(RealmService, uuid.New(), "", "")
	require.NoError(t, err)

	_, err = mgr.ValidateTokenForRealm(token, RealmOperator)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "expected realm operator")
}

func TestInvalidSecretRejected(t *testing.T) {
	mgr1 := NewJWTManager("secret-1", 24*time.Hour, 8*time.Hour)
	mgr2 := NewJWTManager("secret-2", 24*time.Hour, 8*time.Hour)

	token, err := mgr1.GenerateToken(RealmService, uuid.New(), "", "")
	require.NoError(t, err)

	_, err = mgr2.ValidateToken(token)
	assert.Error(t, err)
}

func TestExpiredTokenRejected(t *testing.T) {
	mgr := NewJWTManager("secret", time.Millisecond, time.Millisecond)

	token, err := mgr.GenerateToken(RealmService, uuid.New(), "", "")
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	_, err = mgr.ValidateToken(token)
	assert.Error(t, err)
}

func TestUnknownRealmRejected(t *testing.T) {
	mgr := newTestJWTManager()

	_, err := mgr.GenerateToken(Realm("player"), uuid.New(), "", "")
	assert.Error(t, err)
}
