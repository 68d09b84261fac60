package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/prohub/nexus/backend/internal/auth"
	"github.com/prohub/nexus/backend/internal/logger"
	"github.com/prohub/nexus/backend/internal/models"
	"github.com/prohub/nexus/backend/internal/presence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	_ = logger.Initialize("error", "")
	os.Exit(m.Run())
}

type fakeHeartbeater struct {
	mu    sync.Mutex
	calls []presence.HeartbeatInput
}

func (f *fakeHeartbeater) Heartbeat(ctx context.Context, in presence.HeartbeatInput) (*presence.Snapshot, error) {
	f.mu.Lock()
	f.calls = append(f.calls, in)
	f.mu.Unlock()
	return &presence.Snapshot{Counts: presence.OnlineCounts{Users: 1, Total: 1}}, nil
}

func (f *fakeHeartbeater) Schedule() presence.ClientSchedule {
	return presence.NewAggregator(presence.NewMemoryStore(), nil, presence.Config{}).Schedule()
}

type wsFixture struct {
	hub    *Hub
	tokens *auth.Service
	beats  *fakeHeartbeater
	url    string
}

func newFixture(t *testing.T) *wsFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := NewHub()
	go hub.Run()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = hub.Shutdown(ctx)
	})

	tokens := auth.NewService([]byte("websocket-test-secret-0123456789"))
	beats := &fakeHeartbeater{}
	handler := NewHandler(hub, tokens, beats, []string{"*"})
	handler.RegisterDefaultHandlers()

	router := gin.New()
	router.GET("/ws", handler.HandleWebSocket)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &wsFixture{
		hub:    hub,
		tokens: tokens,
		beats:  beats,
		url:    "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
	}
}

func (f *wsFixture) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, f.url+query, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

// readType reads frames until one of the given type arrives
func readType(t *testing.T, conn *websocket.Conn, msgType string) Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		if msg.Type == msgType {
			return msg
		}
	}
}

func waitForClients(t *testing.T, hub *Hub, n int64) {
	t.Helper()
	require.Eventually(t, func() bool {
		return hub.GetMetrics().ActiveConnections == n
	}, 2*time.Second, 10*time.Millisecond)
}

func TestAnonymousReceivesCounts(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t, "")

	welcome := readType(t, conn, MessageTypeSystem)
	var sys SystemPayload
	require.NoError(t, welcome.ParsePayload(&sys))
	assert.Equal(t, "connected", sys.Event)
	assert.NotContains(t, sys.Data, "user_id")
	assert.Contains(t, sys.Data, "schedule")

	waitForClients(t, f.hub, 1)
	f.hub.PublishCounts(presence.OnlineCounts{Users: 2, Guests: 3, Total: 5})

	msg := readType(t, conn, MessageTypePresenceCounts)
	var counts presence.OnlineCounts
	require.NoError(t, msg.ParsePayload(&counts))
	assert.Equal(t, presence.OnlineCounts{Users: 2, Guests: 3, Total: 5}, counts)
}

func TestNewClientGetsLastCounts(t *testing.T) {
	f := newFixture(t)
	f.hub.PublishCounts(presence.OnlineCounts{Robots: 1, Total: 1})

	conn := f.dial(t, "")
	msg := readType(t, conn, MessageTypePresenceCounts)
	var counts presence.OnlineCounts
	require.NoError(t, msg.ParsePayload(&counts))
	assert.Equal(t, 1, counts.Robots)
}

func TestInvalidTokenRejected(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, resp, err := websocket.Dial(ctx, f.url+"?token=garbage", nil)
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, 401, resp.StatusCode)
	}
}

func TestContentHiddenNotice(t *testing.T) {
	f := newFixture(t)
	token, _, err := f.tokens.GenerateToken(&models.User{ID: "author-1", Username: "author"})
	require.NoError(t, err)

	author := f.dial(t, "?token="+token)
	bystander := f.dial(t, "")
	welcome := readType(t, author, MessageTypeSystem)
	var sys SystemPayload
	require.NoError(t, welcome.ParsePayload(&sys))
	assert.Equal(t, "author-1", sys.Data["user_id"])

	waitForClients(t, f.hub, 2)
	assert.True(t, f.hub.IsUserOnline("author-1"))

	f.hub.NotifyContentHidden("author-1", ContentHiddenPayload{
		ContentType: "topic",
		ContentID:   "t-1",
		Reason:      "spam",
	})
	msg := readType(t, author, MessageTypeContentHidden)
	var notice ContentHiddenPayload
	require.NoError(t, msg.ParsePayload(&notice))
	assert.Equal(t, "t-1", notice.ContentID)

	// bystander sees the next broadcast, not the notice
	f.hub.PublishCounts(presence.OnlineCounts{Total: 9})
	next := readType(t, bystander, MessageTypePresenceCounts)
	assert.Equal(t, MessageTypePresenceCounts, next.Type)
}

func TestHeartbeatOverSocket(t *testing.T) {
	f := newFixture(t)
	token, _, err := f.tokens.GenerateToken(&models.User{ID: "u-7", Username: "seven"})
	require.NoError(t, err)
	conn := f.dial(t, "?token="+token)
	readType(t, conn, MessageTypeSystem)

	query := "mixing"
	beat := Message{
		Type: MessageTypeHeartbeat,
		ID:   "hb-1",
		Payload: HeartbeatPayload{
			SessionID:   "tab-1",
			CurrentPage: "/search",
			SearchQuery: &query,
		},
	}
	data, err := json.Marshal(beat)
	require.NoError(t, err)
	require.NoError(t, conn.Write(context.Background(), websocket.MessageText, data))

	reply := readType(t, conn, MessageTypePresence)
	assert.Equal(t, "hb-1", reply.ReplyTo)

	f.beats.mu.Lock()
	defer f.beats.mu.Unlock()
	require.Len(t, f.beats.calls, 1)
	assert.Equal(t, "tab-1", f.beats.calls[0].SessionID)
	require.NotNil(t, f.beats.calls[0].UserID)
	assert.Equal(t, "u-7", *f.beats.calls[0].UserID)
	assert.Equal(t, "mixing", *f.beats.calls[0].SearchQuery)
}

func TestPublishCountsDeduplicates(t *testing.T) {
	hub := NewHub()
	hub.PublishCounts(presence.OnlineCounts{Total: 1})
	hub.PublishCounts(presence.OnlineCounts{Total: 1})
	assert.Len(t, hub.broadcast, 1)

	hub.PublishCounts(presence.OnlineCounts{Total: 2})
	assert.Len(t, hub.broadcast, 2)
	assert.Equal(t, 2, hub.LastCounts().Total)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(5, 10)

	for i := 0; i < 10; i++ {
		assert.True(t, rl.Allow(), "Request %d should be allowed", i+1)
	}
	assert.False(t, rl.Allow(), "Request 11 should be denied")

	time.Sleep(300 * time.Millisecond)
	assert.True(t, rl.Allow(), "Request after wait should be allowed")
}

func TestFlexibleTime(t *testing.T) {
	var msg Message
	require.NoError(t, json.Unmarshal([]byte(`{"type":"ping","timestamp":1700000000000}`), &msg))
	assert.Equal(t, int64(1700000000000), msg.Timestamp.UnixMilli())

	require.NoError(t, json.Unmarshal([]byte(`{"type":"ping","timestamp":"2026-01-02T03:04:05Z"}`), &msg))
	assert.Equal(t, 2026, msg.Timestamp.Year())

	assert.Error(t, json.Unmarshal([]byte(`{"type":"ping","timestamp":true}`), &msg))
}

func TestNewErrorMessage(t *testing.T) {
	msg := NewErrorMessage("test_error", "Something went wrong")
	assert.Equal(t, MessageTypeError, msg.Type)

	payload, ok := msg.Payload.(ErrorPayload)
	assert.True(t, ok)
	assert.Equal(t, "test_error", payload.Code)
}

func TestHubMetricsString(t *testing.T) {
	assert.Contains(t, NewHub().GetMetrics().String(), "connections=0/0")
}
