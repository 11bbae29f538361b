package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/verifyhub/case-engine/internal/store/model"
	"go.uber.org/zap"
)

// CaseCache holds case snapshots for reads. Every committed mutation writes its
// snapshot through, and Set never replaces a snapshot with an older version, so
// a read that loaded the case before a commit cannot put back what it saw.
// Cache failures never fail the caller.
type CaseCache interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Case, bool)
	Set(ctx context.Context, c *model.Case)
}

type noopCaseCache struct{}

func NewNoopCaseCache() CaseCache {
	return noopCaseCache{}
}

func (noopCaseCache) Get(context.Context, uuid.UUID) (*model.Case, bool) { return nil, false }
func (noopCaseCache) Set(context.Context, *model.Case)                   {}

const (
	caseKeyPrefix = "case-engine:case:"

	setAttempts = 3
)

var errNewerSnapshot = errors.New("cached snapshot is newer")

type RedisCaseCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *zap.SugaredLogger
}

func NewRedisCaseCache(client *redis.Client, ttl time.Duration) *RedisCaseCache {
	return &RedisCaseCache{
		client: client,
		ttl:    ttl,
		log:    zap.S().Named("case_cache"),
	}
}

func (r *RedisCaseCache) Get(ctx context.Context, id uuid.UUID) (*model.Case, bool) {
	data, err := r.client.Get(ctx, caseKey(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.log.Warnw("failed to read case snapshot", "case_id", id, "error", err)
		}
		return nil, false
	}

	var c model.Case
	if err := json.Unmarshal(data, &c); err != nil {
		r.log.Warnw("dropping undecodable case snapshot", "case_id", id, "error", err)
		r.Invalidate(ctx, id)
		return nil, false
	}
	return &c, true
}

// Set writes c unless the cached snapshot has a higher version. The check and
// the write run under WATCH; a concurrent writer makes the attempt start over.
func (r *RedisCaseCache) Set(ctx context.Context, c *model.Case) {
	data, err := json.Marshal(c)
	if err != nil {
		r.log.Warnw("failed to encode case snapshot", "case_id", c.ID, "error", err)
		return
	}

	key := caseKey(c.ID)
	for attempt := 0; attempt < setAttempts; attempt++ {
		err = r.client.Watch(ctx, func(tx *redis.Tx) error {
			current, err := tx.Get(ctx, key).Bytes()
			switch {
			case errors.Is(err, redis.Nil):
			case err != nil:
				return err
			default:
				var cached struct{ Version int }
				if json.Unmarshal(current, &cached) == nil && cached.Version > c.Version {
					return errNewerSnapshot
				}
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, data, r.ttl)
				return nil
			})
			return err
		}, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}

	switch {
	case err == nil, errors.Is(err, errNewerSnapshot):
	default:
		// an unknown outcome must not leave an older snapshot behind
		r.log.Warnw("failed to write case snapshot", "case_id", c.ID, "version", c.Version, "error", err)
		r.Invalidate(ctx, c.ID)
	}
}

func (r *RedisCaseCache) Invalidate(ctx context.Context, id uuid.UUID) {
	if err := r.client.Del(ctx, caseKey(id)).Err(); err != nil {
		r.log.Warnw("failed to invalidate case snapshot", "case_id", id, "error", err)
	}
}

func caseKey(id uuid.UUID) string {
	return caseKeyPrefix + id.String()
}
