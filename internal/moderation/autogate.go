package moderation

import (
	"context"
	"strings"
	"time"

	"github.com/prohub/nexus/backend/internal/logger"
	"github.com/prohub/nexus/backend/internal/metrics"
	"github.com/prohub/nexus/backend/internal/models"
	"go.uber.org/zap"
)

// AutoReasonPrefix prefixes audit reasons written by the gate
const AutoReasonPrefix = "automatic moderation: "

// GateResult is the outcome of an automatic scan
type GateResult struct {
	Moderated bool   `json:"moderated"`
	Reason    string `json:"reason,omitempty"`
}

// AutoGate scans freshly created topics and hides prohibited ones
type AutoGate struct {
	scanner *StrictScanner
	store   ContentStore
}

func NewAutoGate(scanner *StrictScanner, store ContentStore) *AutoGate {
	return &AutoGate{scanner: scanner, store: store}
}

// Scan checks title and content together. Prohibited topics are hidden and
// an audit entry without a moderator is appended.
func (g *AutoGate) Scan(ctx context.Context, topicID, title, content string) (GateResult, error) {
	result := g.scanner.Scan(strings.TrimSpace(title + " " + content))
	if !result.Prohibited {
		metrics.Get().AutoModerationTotal.WithLabelValues("passed", "").Inc()
		return GateResult{}, nil
	}

	reason := AutoReasonPrefix + result.Reason
	ref := Reference{ContentType: models.ContentTopic, ContentID: topicID}
	entry := &models.ModerationLog{
		ContentType: ref.ContentType,
		ContentID:   ref.ContentID,
		Action:      models.ModerationActionHide,
		Reason:      &reason,
		CreatedAt:   time.Now().UTC(),
	}
	if _, err := g.store.SetHidden(ctx, ref, true, entry); err != nil {
		logger.ErrorWithFields("Automatic moderation failed to hide topic", err)
		return GateResult{}, err
	}

	metrics.Get().AutoModerationTotal.WithLabelValues("moderated", result.Reason).Inc()
	logger.Log.Info("Topic hidden by automatic moderation",
		logger.WithContent(string(ref.ContentType), ref.ContentID),
		zap.String("reason", result.Reason),
		zap.Strings("ad_categories", result.AdCategories),
	)
	return GateResult{Moderated: true, Reason: reason}, nil
}
