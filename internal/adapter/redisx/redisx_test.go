package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/auditflow/auditflow/internal/ports"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCounter mimics INCR/EXPIRE/TTL on an in-memory map
type fakeCounter struct {
	counts map[string]int64
	ttls   map[string]time.Duration
	err    error
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{counts: map[string]int64{}, ttls: map[string]time.Duration{}}
}

func (f *fakeCounter) Incr(_ context.Context, key string) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	f.counts[key]++
	return redis.NewIntResult(f.counts[key], nil)
}

func (f *fakeCounter) Expire(_ context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	f.ttls[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func (f *fakeCounter) TTL(_ context.Context, key string) *redis.DurationCmd {
	ttl, ok := f.ttls[key]
	if !ok {
		return redis.NewDurationResult(-1, nil)
	}
	return redis.NewDurationResult(ttl, nil)
}

func TestRateLimiter_Allow(t *testing.T) {
	store := newFakeCounter()
	limiter := NewRateLimiter(store, 2, time.Minute, nil)
	ctx := context.Background()

	d, err := limiter.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)
	assert.Equal(t, time.Minute, store.ttls["ratelimit:10.0.0.1"])

	d, err = limiter.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)

	d, err = limiter.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, time.Minute, d.RetryAfter)

	d, err = limiter.Allow(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, d.Allowed, "keys are counted independently")
}

func TestRateLimiter_FailsOpen(t *testing.T) {
	store := newFakeCounter()
	store.err = errors.New("connection refused")
	limiter := NewRateLimiter(store, 1, time.Minute, nil)

	d, err := limiter.Allow(context.Background(), "k")
	assert.Error(t, err)
	assert.True(t, d.Allowed)
}

type fakeChannel struct {
	channel string
	message []byte
	err     error
}

func (f *fakeChannel) Publish(_ context.Context, channel string, message interface{}) *redis.IntCmd {
	f.channel = channel
	f.message, _ = message.([]byte)
	return redis.NewIntResult(1, f.err)
}

func TestEventPublisher_Publish(t *testing.T) {
	ch := &fakeChannel{}
	pub := NewEventPublisher(ch, "auditflow.events")

	event := ports.NewEvent(ports.EventTypeAuditClosed, ports.AggregateAudit, "audit-1", "user-1", map[string]interface{}{"overall_score": 51.0})
	require.NoError(t, pub.Publish(context.Background(), *event))
	assert.Equal(t, "auditflow.events", ch.channel)

	var decoded ports.Event
	require.NoError(t, json.Unmarshal(ch.message, &decoded))
	assert.Equal(t, ports.EventTypeAuditClosed, decoded.Type)
	assert.Equal(t, "audit-1", decoded.AggregateID)
	assert.Equal(t, 51.0, decoded.Data["overall_score"])

	ch.err = errors.New("redis down")
	err := pub.Publish(context.Background(), *event)
	assert.ErrorContains(t, err, "audit_closed")
}
