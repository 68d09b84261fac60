package moderation

import (
	"context"
	"strings"
	"time"

	apierrors "github.com/prohub/nexus/backend/internal/errors"
	"github.com/prohub/nexus/backend/internal/logger"
	"github.com/prohub/nexus/backend/internal/metrics"
	"github.com/prohub/nexus/backend/internal/models"
	"go.uber.org/zap"
)

const (
	// MaxListResults caps ListModeratedContent
	MaxListResults = 100

	// SystemModeratorName labels audit entries without a moderator
	SystemModeratorName = "system/automatic"
)

// NotificationIntent asks the author of hidden content to be told about it
type NotificationIntent struct {
	UserID      string             `json:"user_id"`
	ContentType models.ContentType `json:"content_type"`
	ContentID   string             `json:"content_id"`
	Reason      string             `json:"reason"`
	ModeratorID *string            `json:"moderator_id,omitempty"`
}

// Notifier accepts notification intents without waiting for delivery
type Notifier interface {
	Enqueue(intent NotificationIntent) error
}

// UsernameResolver maps user ids to display names in one lookup
type UsernameResolver interface {
	GetDisplayNames(ctx context.Context, userIDs []string) (map[string]string, error)
}

// HistoryEntry is an audit entry with the acting moderator's name
type HistoryEntry struct {
	models.ModerationLog
	ModeratorName string `json:"moderator_name"`
}

// Workflow applies hide/unhide transitions and serves the audit trail
type Workflow struct {
	store    ContentStore
	notifier Notifier
	names    UsernameResolver
	now      func() time.Time
}

// NewWorkflow creates a workflow; notifier and names may be nil
func NewWorkflow(store ContentStore, notifier Notifier, names UsernameResolver) *Workflow {
	return &Workflow{
		store:    store,
		notifier: notifier,
		names:    names,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Hide marks content hidden, records the reason and notifies the author.
// Every call appends an audit entry even if the content was already hidden.
func (w *Workflow) Hide(ctx context.Context, ref Reference, reason string, moderatorID *string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return apierrors.ValidationError("reason", "a reason is required to hide content")
	}
	if !ref.ContentType.Valid() || ref.ContentID == "" {
		return apierrors.ValidationError("content", "invalid content reference")
	}

	entry := w.newEntry(ref, models.ModerationActionHide, &reason, moderatorID)
	authorID, err := w.store.SetHidden(ctx, ref, true, entry)
	if err != nil {
		return err
	}

	metrics.Get().ModerationActionsTotal.WithLabelValues(models.ModerationActionHide, string(ref.ContentType), actorLabel(moderatorID)).Inc()
	logger.Log.Info("Content hidden",
		logger.WithContent(string(ref.ContentType), ref.ContentID),
		logger.WithModeratorID(moderatorID),
		zap.String("reason", reason),
	)

	w.notifyAuthor(NotificationIntent{
		UserID:      authorID,
		ContentType: ref.ContentType,
		ContentID:   ref.ContentID,
		Reason:      reason,
		ModeratorID: moderatorID,
	})
	return nil
}

// Unhide makes content visible again. A blank reason is stored as NULL.
func (w *Workflow) Unhide(ctx context.Context, ref Reference, reason *string) error {
	if !ref.ContentType.Valid() || ref.ContentID == "" {
		return apierrors.ValidationError("content", "invalid content reference")
	}

	var stored *string
	if reason != nil {
		if trimmed := strings.TrimSpace(*reason); trimmed != "" {
			stored = &trimmed
		}
	}

	entry := w.newEntry(ref, models.ModerationActionUnhide, stored, moderatorFromContext(ctx))
	if _, err := w.store.SetHidden(ctx, ref, false, entry); err != nil {
		return err
	}

	metrics.Get().ModerationActionsTotal.WithLabelValues(models.ModerationActionUnhide, string(ref.ContentType), actorLabel(entry.ModeratorID)).Inc()
	logger.Log.Info("Content unhidden",
		logger.WithContent(string(ref.ContentType), ref.ContentID),
		logger.WithModeratorID(entry.ModeratorID),
	)
	return nil
}

// GetHistory returns the audit trail newest first
func (w *Workflow) GetHistory(ctx context.Context, ref Reference) ([]HistoryEntry, error) {
	if !ref.ContentType.Valid() || ref.ContentID == "" {
		return nil, apierrors.ValidationError("content", "invalid content reference")
	}

	entries, err := w.store.History(ctx, ref)
	if err != nil {
		return nil, err
	}

	var moderatorIDs []string
	seen := make(map[string]bool)
	for _, e := range entries {
		if e.ModeratorID != nil && !seen[*e.ModeratorID] {
			seen[*e.ModeratorID] = true
			moderatorIDs = append(moderatorIDs, *e.ModeratorID)
		}
	}

	names := map[string]string{}
	if len(moderatorIDs) > 0 && w.names != nil {
		resolved, err := w.names.GetDisplayNames(ctx, moderatorIDs)
		if err != nil {
			// Names are decoration; the audit trail itself is still valid
			logger.Log.Warn("Failed to resolve moderator names", zap.Error(err))
		} else {
			names = resolved
		}
	}

	history := make([]HistoryEntry, len(entries))
	for i, e := range entries {
		name := SystemModeratorName
		if e.ModeratorID != nil {
			name = names[*e.ModeratorID]
			if name == "" {
				name = *e.ModeratorID
			}
		}
		history[i] = HistoryEntry{ModerationLog: e, ModeratorName: name}
	}
	return history, nil
}

// ListModeratedContent returns up to MaxListResults rows newest first
func (w *Workflow) ListModeratedContent(ctx context.Context, contentType models.ContentType, filter ListFilter) ([]ContentRow, error) {
	if !contentType.Valid() {
		return nil, apierrors.ValidationError("content_type", "content type must be topic, post, resource or video")
	}
	switch filter.Status {
	case "":
		filter.Status = StatusAll
	case StatusAll, StatusHidden, StatusActive:
	default:
		return nil, apierrors.ValidationError("status", "status must be all, hidden or active")
	}
	return w.store.List(ctx, contentType, filter, MaxListResults)
}

func (w *Workflow) newEntry(ref Reference, action string, reason, moderatorID *string) *models.ModerationLog {
	return &models.ModerationLog{
		ContentType: ref.ContentType,
		ContentID:   ref.ContentID,
		Action:      action,
		Reason:      reason,
		ModeratorID: moderatorID,
		CreatedAt:   w.now(),
	}
}

// notifyAuthor hands the intent to the notifier; failures never fail the hide
func (w *Workflow) notifyAuthor(intent NotificationIntent) {
	if w.notifier == nil || intent.UserID == "" {
		return
	}
	if err := w.notifier.Enqueue(intent); err != nil {
		logger.Log.Warn("Failed to enqueue moderation notification",
			logger.WithUserID(intent.UserID),
			logger.WithContent(string(intent.ContentType), intent.ContentID),
			zap.Error(err),
		)
	}
}

func actorLabel(moderatorID *string) string {
	if moderatorID == nil {
		return "automatic"
	}
	return "moderator"
}

type moderatorKey struct{}

// WithModerator attaches the acting moderator to ctx for Unhide audit entries
func WithModerator(ctx context.Context, moderatorID string) context.Context {
	return context.WithValue(ctx, moderatorKey{}, moderatorID)
}

func moderatorFromContext(ctx context.Context) *string {
	if id, ok := ctx.Value(moderatorKey{}).(string); ok && id != "" {
		return &id
	}
	return nil
}
