package policy

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vigilo/platform/internal/domain"
)

func TestAdminCreate(t *testing.T) {
	store := &fakeStore{}
	admin := NewAdmin(store)

	p, err := admin.Create(context.Background(), CreateInput{
		Name:        "geo_fence",
		Description: "Block sanctioned regions",
		Conditions:  json.RawMessage(`{"blocked_countries": ["KP"]}`),
		Action:      "deny",
		Priority:    5,
	})
	require.NoError(t, err)
	assert.True(t, p.Enabled)
	assert.Equal(t, domain.ActionDeny, p.Action)
	assert.Equal(t, []string{"KP"}, p.Conditions.BlockedCountries)
	assert.Len(t, store.policies, 1)
}

func TestAdminCreateValidation(t *testing.T) {
	admin := NewAdmin(&fakeStore{})

	_, err := admin.Create(context.Background(), CreateInput{Action: "deny"})
	assert.ErrorContains(t, err, "name is required")

	_, err = admin.Create(context.Background(), CreateInput{Name: "p", Action: "quarantine"})
	assert.ErrorContains(t, err, "action must be")

	_, err = admin.Create(context.Background(), CreateInput{
		Name:       "p",
		Action:     "deny",
		Conditions: json.RawMessage(`{"severity": "high"}`),
	})
	assert.Error(t, err)
}

func TestAdminCreateDuplicateName(t *testing.T) {
	store := &fakeStore{}
	admin := NewAdmin(store)

	in := CreateInput{Name: "dup", Action: "allow"}
	_, err := admin.Create(context.Background(), in)
	require.NoError(t, err)

	_, err = admin.Create(context.Background(), in)
	require.Error(t, err)
	var appErr *domain.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "CONFLICT", appErr.Code)
}

func TestAdminCreateShifted(t *testing.T) {
	store := &fakeStore{}
	admin := NewAdmin(store)

	first, err := admin.Create(context.Background(), CreateInput{Name: "first", Action: "deny", Priority: 1})
	require.NoError(t, err)

	_, err = admin.Create(context.Background(), CreateInput{
		Name: "inserted", Action: "stepup", Priority: 1, ShiftExisting: true,
	})
	require.NoError(t, err)

	shifted, err := admin.Get(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, shifted.Priority)
}

func TestAdminUpdatePartial(t *testing.T) {
	store := &fakeStore{}
	admin := NewAdmin(store)

	p, err := admin.Create(context.Background(), CreateInput{Name: "p", Action: "allow", Priority: 3})
	require.NoError(t, err)

	desc := "tightened"
	action := "stepup"
	updated, err := admin.Update(context.Background(), p.ID, UpdateInput{
		Description: &desc,
		Action:      &action,
	})
	require.NoError(t, err)
	assert.Equal(t, "tightened", updated.Description)
	assert.Equal(t, domain.ActionStepUp, updated.Action)
	// Untouched fields survive.
	assert.Equal(t, 3, updated.Priority)
	assert.True(t, updated.Enabled)
}

func TestAdminUpdateRejectsInvalidAction(t *testing.T) {
	store := &fakeStore{}
	admin := NewAdmin(store)

	p, err := admin.Create(context.Background(), CreateInput{Name: "p", Action: "allow"})
	require.NoError(t, err)

	bad := "escalate"
	_, err = admin.Update(context.Background(), p.ID, UpdateInput{Action: &bad})
	assert.ErrorContains(t, err, "action must be")

	// The stored policy is untouched.
	stored, err := admin.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ActionAllow, stored.Action)
}

func TestAdminUpdateUnknownPolicy(t *testing.T) {
	admin := NewAdmin(&fakeStore{})

	desc := "x"
	_, err := admin.Update(context.Background(), uuid.New(), UpdateInput{Description: &desc})
	var appErr *domain.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "NOT_FOUND", appErr.Code)
}

func TestAdminToggle(t *testing.T) {
	store := &fakeStore{}
	admin := NewAdmin(store)

	p, err := admin.Create(context.Background(), CreateInput{Name: "p", Action: "allow"})
	require.NoError(t, err)

	toggled, err := admin.Toggle(context.Background(), p.ID)
	require.NoError(t, err)
	assert.False(t, toggled.Enabled)

	toggled, err = admin.Toggle(context.Background(), p.ID)
	require.NoError(t, err)
	assert.True(t, toggled.Enabled)
}

func TestAdminDelete(t *testing.T) {
	store := &fakeStore{}
	admin := NewAdmin(store)

	p, err := admin.Create(context.Background(), CreateInput{Name: "p", Action: "allow"})
	require.NoError(t, err)

	require.NoError(t, admin.Delete(context.Background(), p.ID))

	err = admin.Delete(context.Background(), p.ID)
	var appErr *domain.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "NOT_FOUND", appErr.Code)
}
