package moderation

import (
	"context"
	"errors"
	"testing"

	"github.com/prohub/nexus/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRoles struct {
	roles map[string]models.UserRole
	err   error
	calls int
}

func (s *stubRoles) GetRole(ctx context.Context, userID string) (models.UserRole, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	role, ok := s.roles[userID]
	if !ok {
		return "", errors.New("user not found")
	}
	return role, nil
}

func TestShouldBypass(t *testing.T) {
	tests := []struct {
		role   models.UserRole
		bypass bool
	}{
		{models.RoleNewbie, false},
		{models.RoleMember, false},
		{models.RolePro, true},
		{models.RoleEditor, true},
		{models.RoleModerator, true},
		{models.RoleAdmin, true},
		{models.UserRole("superuser"), false},
		{models.UserRole(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			assert.Equal(t, tt.bypass, ShouldBypass(tt.role))
		})
	}
}

func TestBypassPolicy_FailsClosed(t *testing.T) {
	ctx := context.Background()
	roles := &stubRoles{roles: map[string]models.UserRole{"mod-1": models.RoleModerator}}
	policy := NewBypassPolicy(roles)

	assert.True(t, policy.ShouldBypassUser(ctx, "mod-1"))
	assert.False(t, policy.ShouldBypassUser(ctx, "unknown"))

	// anonymous callers never reach the resolver
	calls := roles.calls
	assert.Equal(t, models.RoleNewbie, policy.EffectiveRole(ctx, ""))
	assert.Equal(t, calls, roles.calls)

	failing := NewBypassPolicy(&stubRoles{err: errors.New("db down")})
	assert.Equal(t, models.RoleNewbie, failing.EffectiveRole(ctx, "mod-1"))
	assert.False(t, failing.ShouldBypassUser(ctx, "mod-1"))

	assert.Equal(t, models.RoleNewbie, NewBypassPolicy(nil).EffectiveRole(ctx, "mod-1"))
}

func TestScreener(t *testing.T) {
	ctx := context.Background()
	classifier, err := NewClassifier(DefaultRules())
	require.NoError(t, err)

	roles := &stubRoles{roles: map[string]models.UserRole{
		"pro-1":    models.RolePro,
		"newbie-1": models.RoleNewbie,
	}}
	screener := NewScreener(NewBypassPolicy(roles), classifier)

	text := "BUY OUR STUFF RIGHT NOW PLEASE"

	verdict, bypassed := screener.Screen(ctx, "pro-1", text)
	assert.True(t, bypassed)
	assert.True(t, verdict.IsClean)

	verdict, bypassed = screener.Screen(ctx, "newbie-1", text)
	assert.False(t, bypassed)
	assert.False(t, verdict.IsClean)
	assert.Equal(t, ReasonExcessiveCaps, verdict.Reason)

	verdict, bypassed = screener.Screen(ctx, "", text)
	assert.False(t, bypassed)
	assert.False(t, verdict.IsClean)
}
