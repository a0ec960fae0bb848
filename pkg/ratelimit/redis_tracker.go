package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"forkcrawl/pkg/config"
	"forkcrawl/pkg/logger"
)

// Redis hash fields for a credential's state
const (
	fieldLimit     = "limit"
	fieldRemaining = "remaining"
	fieldUsed      = "used"
	fieldReset     = "reset"
	fieldUpdated   = "updated"
)

// RedisTracker shares quota state between crawler processes. Each
// credential is one hash at <prefix><name>; <prefix>credentials is the set
// of known names.
type RedisTracker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger logger.Logger
}

// NewRedisClient builds a client from the rate limit state config
func NewRedisClient(cfg *config.RateLimitStateConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

// NewRedisTracker creates a tracker on an existing client
func NewRedisTracker(client *redis.Client, prefix string, log logger.Logger) *RedisTracker {
	if prefix == "" {
		prefix = "forkcrawl:ratelimit:"
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &RedisTracker{
		client: client,
		prefix: prefix,
		ttl:    2 * time.Hour,
		logger: log,
	}
}

func (r *RedisTracker) key(credential string) string {
	return r.prefix + credential
}

func (r *RedisTracker) setKey() string {
	return r.prefix + "credentials"
}

// Update writes the state in one pipeline
func (r *RedisTracker) Update(ctx context.Context, state State) error {
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = time.Now().UTC()
	}

	pipe := r.client.Pipeline()
	pipe.HSet(ctx, r.key(state.Credential), map[string]interface{}{
		fieldLimit:     state.Limit,
		fieldRemaining: state.Remaining,
		fieldUsed:      state.Used,
		fieldReset:     state.ResetAt.Unix(),
		fieldUpdated:   state.UpdatedAt.UnixMilli(),
	})
	pipe.Expire(ctx, r.key(state.Credential), r.ttl)
	pipe.SAdd(ctx, r.setKey(), state.Credential)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store rate limit state in redis: %w", err)
	}

	publish(state)

	r.logger.DebugWithFields("rate limit state updated", map[string]interface{}{
		"credential": state.Credential,
		"remaining":  state.Remaining,
		"reset_at":   state.ResetAt,
	})
	return nil
}

// Get reads one credential's state
func (r *RedisTracker) Get(ctx context.Context, credential string) (State, bool, error) {
	fields, err := r.client.HGetAll(ctx, r.key(credential)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return State{}, false, fmt.Errorf("get rate limit state: %w", err)
	}
	if len(fields) == 0 {
		return State{}, false, nil
	}
	state, err := decodeState(credential, fields)
	if err != nil {
		return State{}, false, err
	}
	return state, true, nil
}

// All reads every known credential. Names whose hash expired are dropped.
func (r *RedisTracker) All(ctx context.Context) ([]State, error) {
	names, err := r.client.SMembers(ctx, r.setKey()).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("list credentials: %w", err)
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(names))
	for i, name := range names {
		cmds[i] = pipe.HGetAll(ctx, r.key(name))
	}
	if len(names) > 0 {
		if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("read rate limit states: %w", err)
		}
	}

	states := make([]State, 0, len(names))
	for i, name := range names {
		fields := cmds[i].Val()
		if len(fields) == 0 {
			continue
		}
		state, err := decodeState(name, fields)
		if err != nil {
			return nil, err
		}
		states = append(states, state)
	}
	sortStates(states)
	return states, nil
}

func decodeState(credential string, fields map[string]string) (State, error) {
	state := State{Credential: credential}
	ints := map[string]*int{
		fieldLimit:     &state.Limit,
		fieldRemaining: &state.Remaining,
		fieldUsed:      &state.Used,
	}
	for name, dst := range ints {
		if v, ok := fields[name]; ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return State{}, fmt.Errorf("parse %s for %s: %w", name, credential, err)
			}
			*dst = n
		}
	}
	if v, ok := fields[fieldReset]; ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return State{}, fmt.Errorf("parse reset for %s: %w", credential, err)
		}
		state.ResetAt = time.Unix(n, 0).UTC()
	}
	if v, ok := fields[fieldUpdated]; ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return State{}, fmt.Errorf("parse updated for %s: %w", credential, err)
		}
		state.UpdatedAt = time.UnixMilli(n).UTC()
	}
	return state, nil
}

// NewTracker picks the backend named in cfg. The returned close function
// releases the Redis client, if any.
func NewTracker(ctx context.Context, cfg *config.RateLimitStateConfig, log logger.Logger) (Tracker, func() error, error) {
	if cfg.Backend != "redis" {
		return NewMemoryTracker(), func() error { return nil }, nil
	}

	client := NewRedisClient(cfg)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr, err)
	}
	return NewRedisTracker(client, cfg.KeyPrefix, log), client.Close, nil
}
