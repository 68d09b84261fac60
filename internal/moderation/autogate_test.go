package moderation

import (
	"context"
	"testing"
	"time"

	"github.com/prohub/nexus/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGate(t *testing.T) (*AutoGate, *GormContentStore) {
	t.Helper()
	db := openTestDB(t)
	store := NewGormContentStore(db)
	return NewAutoGate(newTestScanner(t), store), store
}

func TestAutoGate_HidesProhibitedTopic(t *testing.T) {
	gate, store := newTestGate(t)
	author := createUser(t, store.db, "spammer", models.RoleNewbie)
	topic := createTopic(t, store.db, author, "Great offer", "Пишите в телеграм +7 (999) 123-45-67", time.Now().UTC())

	result, err := gate.Scan(context.Background(), topic.ID, topic.Title, topic.Content)
	require.NoError(t, err)
	assert.True(t, result.Moderated)
	assert.Equal(t, "automatic moderation: advertisement", result.Reason)

	var stored models.Topic
	require.NoError(t, store.db.First(&stored, "id = ?", topic.ID).Error)
	assert.True(t, stored.IsHidden)

	history, err := store.History(context.Background(), Reference{ContentType: models.ContentTopic, ContentID: topic.ID})
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Nil(t, history[0].ModeratorID)
	assert.Equal(t, models.ModerationActionHide, history[0].Action)
	assert.Equal(t, "automatic moderation: advertisement", *history[0].Reason)
}

func TestAutoGate_TitleAndContentAreScannedTogether(t *testing.T) {
	gate, store := newTestGate(t)
	author := createUser(t, store.db, "author", models.RoleNewbie)
	topic := createTopic(t, store.db, author, "Best casino", "bonus inside", time.Now().UTC())

	result, err := gate.Scan(context.Background(), topic.ID, topic.Title, topic.Content)
	require.NoError(t, err)
	assert.True(t, result.Moderated)
	assert.Equal(t, AutoReasonPrefix+ReasonProhibited, result.Reason)
}

func TestAutoGate_CleanTopicHasNoSideEffects(t *testing.T) {
	gate, store := newTestGate(t)
	author := createUser(t, store.db, "author", models.RoleNewbie)
	topic := createTopic(t, store.db, author, "Compressor settings", "What attack time do you use on drums?", time.Now().UTC())

	result, err := gate.Scan(context.Background(), topic.ID, topic.Title, topic.Content)
	require.NoError(t, err)
	assert.Equal(t, GateResult{}, result)

	var stored models.Topic
	require.NoError(t, store.db.First(&stored, "id = ?", topic.ID).Error)
	assert.False(t, stored.IsHidden)

	var count int64
	require.NoError(t, store.db.Model(&models.ModerationLog{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestAutoGate_MissingTopic(t *testing.T) {
	gate, _ := newTestGate(t)
	_, err := gate.Scan(context.Background(), "missing", "casino", "")
	assert.Error(t, err)
}
