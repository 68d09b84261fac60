package moderation

import (
	"context"

	"github.com/prohub/nexus/backend/internal/logger"
	"github.com/prohub/nexus/backend/internal/models"
	"go.uber.org/zap"
)

// RoleResolver returns the highest privilege role of a user
type RoleResolver interface {
	GetRole(ctx context.Context, userID string) (models.UserRole, error)
}

// ShouldBypass reports whether role is exempt from automated text screening
func ShouldBypass(role models.UserRole) bool {
	switch role {
	case models.RolePro, models.RoleEditor, models.RoleModerator, models.RoleAdmin:
		return true
	}
	return false
}

// BypassPolicy resolves a user's role and applies ShouldBypass.
// Anonymous callers and lookup failures resolve to the lowest role.
type BypassPolicy struct {
	roles RoleResolver
}

func NewBypassPolicy(roles RoleResolver) *BypassPolicy {
	return &BypassPolicy{roles: roles}
}

// EffectiveRole returns the role used for screening decisions
func (p *BypassPolicy) EffectiveRole(ctx context.Context, userID string) models.UserRole {
	if userID == "" || p.roles == nil {
		return models.RoleNewbie
	}
	role, err := p.roles.GetRole(ctx, userID)
	if err != nil {
		logger.Log.Warn("Role lookup failed, screening as newbie",
			logger.WithUserID(userID),
			zap.Error(err),
		)
		return models.RoleNewbie
	}
	return role
}

// ShouldBypassUser reports whether userID's content skips classification
func (p *BypassPolicy) ShouldBypassUser(ctx context.Context, userID string) bool {
	return ShouldBypass(p.EffectiveRole(ctx, userID))
}

// Screener combines the bypass policy with the classifier for submission paths
type Screener struct {
	policy     *BypassPolicy
	classifier *Classifier
}

func NewScreener(policy *BypassPolicy, classifier *Classifier) *Screener {
	return &Screener{policy: policy, classifier: classifier}
}

// Screen returns a clean verdict for bypassed users without classifying
func (s *Screener) Screen(ctx context.Context, userID, text string) (Verdict, bool) {
	if s.policy.ShouldBypassUser(ctx, userID) {
		return clean(), true
	}
	return s.classifier.Classify(text), false
}
