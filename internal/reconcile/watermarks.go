package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// WatermarkStore keeps the per-kind "fetched up to" timestamp in Redis. A
// missing or unreachable store yields a zero time, which makes the next sync
// a full re-scan; the idempotent upsert makes that safe, just slower.
type WatermarkStore struct {
	client *redis.Client
	logger *zap.Logger
}

// NewWatermarkStore constructs the store. A nil client disables persistence.
func NewWatermarkStore(client *redis.Client, logger *zap.Logger) *WatermarkStore {
	return &WatermarkStore{client: client, logger: logger}
}

func watermarkKey(kind Kind) string {
	return "sync:watermark:" + string(kind)
}

// Get returns the stored watermark, or zero when none exists.
func (s *WatermarkStore) Get(ctx context.Context, kind Kind) time.Time {
	if s.client == nil {
		return time.Time{}
	}
	raw, err := s.client.Get(ctx, watermarkKey(kind)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("watermark read failed", zap.String("kind", string(kind)), zap.Error(err))
		}
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		s.logger.Warn("discarding malformed watermark", zap.String("kind", string(kind)), zap.String("raw", raw))
		return time.Time{}
	}
	return ts
}

// Advance stores the watermark when it moved forward.
func (s *WatermarkStore) Advance(ctx context.Context, kind Kind, to time.Time) {
	if s.client == nil || to.IsZero() {
		return
	}
	if err := s.client.Set(ctx, watermarkKey(kind), to.UTC().Format(time.RFC3339Nano), 0).Err(); err != nil {
		s.logger.Warn("watermark write failed", zap.String("kind", string(kind)), zap.Error(err))
	}
}
