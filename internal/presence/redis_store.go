package presence

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	apierrors "github.com/prohub/nexus/backend/internal/errors"
	"github.com/prohub/nexus/backend/internal/logger"
	"github.com/prohub/nexus/backend/internal/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	redisSessionIndex  = "presence:sessions"
	redisSessionPrefix = "presence:session:"
)

// RedisStore keeps each session as a JSON value plus a sorted set indexed by
// last-seen time, so eviction is a score range delete
type RedisStore struct {
	client *redis.Client
	// keyTTL expires orphaned session values if eviction stops running
	keyTTL time.Duration
}

func NewRedisStore(client *redis.Client, sessionTTL time.Duration) *RedisStore {
	return &RedisStore{client: client, keyTTL: 2 * sessionTTL}
}

func (s *RedisStore) Upsert(ctx context.Context, session *models.OnlineSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return apierrors.InternalError("failed to encode session")
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, redisSessionPrefix+session.SessionID, data, s.keyTTL)
		pipe.ZAdd(ctx, redisSessionIndex, redis.Z{
			Score:  float64(session.LastSeenAt.UnixMilli()),
			Member: session.SessionID,
		})
		return nil
	})
	if err != nil {
		return apierrors.Upstream("presence store", err)
	}
	return nil
}

func (s *RedisStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	upper := "(" + strconv.FormatInt(cutoff.UnixMilli(), 10)
	expired, err := s.client.ZRangeByScore(ctx, redisSessionIndex, &redis.ZRangeBy{Min: "-inf", Max: upper}).Result()
	if err != nil {
		return 0, apierrors.Upstream("presence store", err)
	}
	if len(expired) == 0 {
		return 0, nil
	}

	keys := make([]string, len(expired))
	members := make([]interface{}, len(expired))
	for i, id := range expired {
		keys[i] = redisSessionPrefix + id
		members[i] = id
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		pipe.ZRem(ctx, redisSessionIndex, members...)
		return nil
	})
	if err != nil {
		return 0, apierrors.Upstream("presence store", err)
	}
	return int64(len(expired)), nil
}

func (s *RedisStore) All(ctx context.Context) ([]models.OnlineSession, error) {
	ids, err := s.client.ZRevRange(ctx, redisSessionIndex, 0, -1).Result()
	if err != nil {
		return nil, apierrors.Upstream("presence store", err)
	}
	if len(ids) == 0 {
		return []models.OnlineSession{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = redisSessionPrefix + id
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, apierrors.Upstream("presence store", err)
	}

	sessions := make([]models.OnlineSession, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// value expired before the index entry was evicted
			continue
		}
		var sess models.OnlineSession
		if err := json.Unmarshal([]byte(raw), &sess); err != nil {
			logger.Log.Warn("Dropping undecodable presence session",
				logger.WithSessionID(ids[i]),
				zap.Error(err),
			)
			continue
		}
		sessions = append(sessions, sess)
	}
	return sessions, nil
}
