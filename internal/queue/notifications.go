package queue

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prohub/nexus/backend/internal/email"
	"github.com/prohub/nexus/backend/internal/logger"
	"github.com/prohub/nexus/backend/internal/metrics"
	"github.com/prohub/nexus/backend/internal/models"
	"github.com/prohub/nexus/backend/internal/moderation"
	"github.com/prohub/nexus/backend/internal/websocket"
	"go.uber.org/zap"
)

// NotificationStore persists in-app notifications
type NotificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
}

// UserLookup resolves the recipient's email address
type UserLookup interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
}

// Pusher delivers live notices to open browser tabs
type Pusher interface {
	NotifyContentHidden(userID string, payload websocket.ContentHiddenPayload)
}

// Mailer sends moderation notices by email
type Mailer interface {
	SendModerationNotice(ctx context.Context, toEmail string, notice email.ModerationNotice) error
}

// NotificationQueueConfig sizes the worker pool
type NotificationQueueConfig struct {
	Workers    int
	BufferSize int
	// Timeout bounds the delivery of one notification
	Timeout time.Duration
}

// NotificationQueue delivers moderation notices off the request path.
// Enqueue never blocks; delivery failures are logged and counted.
type NotificationQueue struct {
	jobs    chan moderation.NotificationIntent
	workers int
	timeout time.Duration

	store  NotificationStore
	users  UserLookup
	pusher Pusher
	mailer Mailer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	stopOnce sync.Once
	mu       sync.RWMutex
	stopped  bool

	// delivered is signalled after each processed intent (tests)
	delivered chan string
}

var _ moderation.Notifier = (*NotificationQueue)(nil)

// NewNotificationQueue creates a queue. pusher and mailer are optional.
func NewNotificationQueue(store NotificationStore, users UserLookup, pusher Pusher, mailer Mailer, cfg NotificationQueueConfig) *NotificationQueue {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 256
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &NotificationQueue{
		jobs:      make(chan moderation.NotificationIntent, cfg.BufferSize),
		workers:   cfg.Workers,
		timeout:   cfg.Timeout,
		store:     store,
		users:     users,
		pusher:    pusher,
		mailer:    mailer,
		ctx:       ctx,
		cancel:    cancel,
		delivered: make(chan string, cfg.BufferSize),
	}
}

// Start launches the worker pool
func (q *NotificationQueue) Start() {
	logger.Log.Info("Starting notification queue",
		zap.Int("workers", q.workers),
		zap.Bool("email", q.mailer != nil),
	)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
}

// Stop stops accepting work, drains what is buffered and waits for workers
func (q *NotificationQueue) Stop(ctx context.Context) error {
	q.stopOnce.Do(func() {
		q.mu.Lock()
		q.stopped = true
		close(q.jobs)
		q.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		return fmt.Errorf("notification queue drain: %w", ctx.Err())
	}
}

// Enqueue implements moderation.Notifier
func (q *NotificationQueue) Enqueue(intent moderation.NotificationIntent) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.stopped {
		return fmt.Errorf("notification queue is stopped")
	}

	select {
	case q.jobs <- intent:
		metrics.Get().NotificationQueueSize.WithLabelValues().Set(float64(len(q.jobs)))
		return nil
	default:
		metrics.Get().NotificationsTotal.WithLabelValues("queue", "dropped").Inc()
		return fmt.Errorf("notification queue is full")
	}
}

func (q *NotificationQueue) worker(workerID int) {
	defer q.wg.Done()
	for intent := range q.jobs {
		metrics.Get().NotificationQueueSize.WithLabelValues().Set(float64(len(q.jobs)))
		q.process(workerID, intent)
	}
}

func (q *NotificationQueue) process(workerID int, intent moderation.NotificationIntent) {
	ctx, cancel := context.WithTimeout(q.ctx, q.timeout)
	defer cancel()
	defer q.signal(intent.ContentID)

	n := buildNotification(intent)
	if err := q.store.Create(ctx, n); err != nil {
		metrics.Get().NotificationsTotal.WithLabelValues("inapp", "failed").Inc()
		logger.Log.Error("Failed to store moderation notification",
			zap.Int("worker_id", workerID),
			logger.WithUserID(intent.UserID),
			logger.WithContent(string(intent.ContentType), intent.ContentID),
			zap.Error(err),
		)
		return
	}
	metrics.Get().NotificationsTotal.WithLabelValues("inapp", "sent").Inc()

	if q.pusher != nil {
		q.pusher.NotifyContentHidden(intent.UserID, websocket.ContentHiddenPayload{
			NotificationID: n.ID,
			ContentType:    string(intent.ContentType),
			ContentID:      intent.ContentID,
			Reason:         intent.Reason,
			Automatic:      intent.ModeratorID == nil,
			CreatedAt:      n.CreatedAt.UnixMilli(),
		})
		metrics.Get().NotificationsTotal.WithLabelValues("websocket", "sent").Inc()
	}

	if q.mailer != nil {
		q.sendEmail(ctx, workerID, intent)
	}
}

func (q *NotificationQueue) sendEmail(ctx context.Context, workerID int, intent moderation.NotificationIntent) {
	user, err := q.users.GetUser(ctx, intent.UserID)
	if err != nil || user.Email == "" {
		metrics.Get().NotificationsTotal.WithLabelValues("email", "skipped").Inc()
		logger.Log.Warn("No email address for moderation notice",
			logger.WithUserID(intent.UserID),
			zap.Error(err),
		)
		return
	}

	err = q.mailer.SendModerationNotice(ctx, user.Email, email.ModerationNotice{
		DisplayName: user.Name(),
		ContentType: string(intent.ContentType),
		ContentID:   intent.ContentID,
		Reason:      intent.Reason,
		Automatic:   intent.ModeratorID == nil,
	})
	if err != nil {
		metrics.Get().NotificationsTotal.WithLabelValues("email", "failed").Inc()
		logger.Log.Error("Failed to email moderation notice",
			zap.Int("worker_id", workerID),
			logger.WithUserID(intent.UserID),
			zap.Error(err),
		)
		return
	}
	metrics.Get().NotificationsTotal.WithLabelValues("email", "sent").Inc()
}

func (q *NotificationQueue) signal(contentID string) {
	select {
	case q.delivered <- contentID:
	default:
	}
}

func buildNotification(intent moderation.NotificationIntent) *models.Notification {
	message := strings.TrimSpace(intent.Reason)
	if intent.ModeratorID == nil {
		message = "Hidden by the automatic filter. " + message
	}
	return &models.Notification{
		UserID:      intent.UserID,
		Type:        models.NotificationContentHidden,
		Title:       fmt.Sprintf("Your %s was hidden", intent.ContentType),
		Message:     strings.TrimSpace(message),
		ContentType: intent.ContentType,
		ContentID:   intent.ContentID,
		ActorID:     intent.ModeratorID,
		CreatedAt:   time.Now().UTC(),
	}
}
