package participant

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/parley/chat-relay/internal/clock"
)

// activityKey is the sorted set holding every participant, scored by the
// unix-millisecond timestamp of their last activity. Keeping the whole
// registry in one ZSET makes the stale-range scan a single command and lets
// Lua scripts resolve touch-vs-evict races atomically.
const activityKey = "participants:by_activity"

// touchLua refreshes a member's activity score if it exists. ZADD GT keeps
// the timestamp monotonically non-decreasing, so a touch that raced with a
// later writer loses cleanly.
//
//	returns 1 = touched, 0 = not registered
const touchLua = `
if redis.call('ZSCORE', KEYS[1], ARGV[1]) == false then return 0 end
redis.call('ZADD', KEYS[1], 'GT', ARGV[2], ARGV[1])
return 1
`

// evictLua removes and returns every member whose score is at or below the
// cutoff. Running both steps in one script means a participant touched
// between the read and the removal is either fully kept or fully evicted.
//
//	returns a flat [name, score, name, score, ...] array
const evictLua = `
local stale = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'WITHSCORES')
if #stale > 0 then
    redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
end
return stale
`

// RedisRegistry stores the participant set in Redis so several relay
// instances can share one room.
type RedisRegistry struct {
	client      *redis.Client
	clk         clock.Clock
	touchScript *redis.Script
	evictScript *redis.Script
}

// NewRedisRegistry connects to Redis at addr and verifies the connection.
func NewRedisRegistry(addr string, clk clock.Clock) (*RedisRegistry, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("participant: redis connection failed: %w", err)
	}

	return &RedisRegistry{
		client:      client,
		clk:         clk,
		touchScript: redis.NewScript(touchLua),
		evictScript: redis.NewScript(evictLua),
	}, nil
}

// Join registers name via ZADD NX, which admits exactly one winner under
// concurrent joins for the same name.
func (r *RedisRegistry) Join(ctx context.Context, name string) (Participant, error) {
	now := r.clk.Now()
	added, err := r.client.ZAddNX(ctx, activityKey, redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: name,
	}).Result()
	if err != nil {
		return Participant{}, fmt.Errorf("participant: join %s: %w", name, err)
	}
	if added == 0 {
		return Participant{}, ErrConflict
	}
	return Participant{Name: name, LastActivity: now.Truncate(time.Millisecond)}, nil
}

// Touch refreshes name's activity score.
func (r *RedisRegistry) Touch(ctx context.Context, name string) error {
	now := r.clk.Now().UnixMilli()
	res, err := r.touchScript.Run(ctx, r.client, []string{activityKey}, name, now).Int()
	if err != nil {
		return fmt.Errorf("participant: touch %s: %w", name, err)
	}
	if res == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns the participants ordered by activity time, oldest first.
func (r *RedisRegistry) List(ctx context.Context) ([]Participant, error) {
	members, err := r.client.ZRangeWithScores(ctx, activityKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("participant: list: %w", err)
	}

	out := make([]Participant, 0, len(members))
	for _, m := range members {
		name, ok := m.Member.(string)
		if !ok {
			continue
		}
		out = append(out, Participant{
			Name:         name,
			LastActivity: time.UnixMilli(int64(m.Score)),
		})
	}
	return out, nil
}

// EvictStaleSince atomically removes and returns every participant whose
// last activity is at least threshold in the past.
func (r *RedisRegistry) EvictStaleSince(ctx context.Context, threshold time.Duration) ([]Participant, error) {
	cutoff := r.clk.Now().Add(-threshold).UnixMilli()
	raw, err := r.evictScript.Run(ctx, r.client, []string{activityKey}, cutoff).Slice()
	if err != nil {
		return nil, fmt.Errorf("participant: evict stale: %w", err)
	}

	// The script returns a flat [name, score, ...] array.
	evicted := make([]Participant, 0, len(raw)/2)
	for i := 0; i+1 < len(raw); i += 2 {
		name, ok := raw[i].(string)
		if !ok {
			continue
		}
		var ms int64
		switch v := raw[i+1].(type) {
		case string:
			ms, _ = strconv.ParseInt(v, 10, 64)
		case int64:
			ms = v
		}
		evicted = append(evicted, Participant{
			Name:         name,
			LastActivity: time.UnixMilli(ms),
		})
	}
	return evicted, nil
}

// Close releases the Redis connection.
func (r *RedisRegistry) Close() error {
	return r.client.Close()
}
