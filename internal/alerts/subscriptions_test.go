package alerts_test

import (
	"context"
	"testing"
	"time"

	"github.com/couchcryptid/weather-cache-service/internal/alerts"
	"github.com/couchcryptid/weather-cache-service/internal/cache"
	"github.com/couchcryptid/weather-cache-service/internal/domain"
	"github.com/couchcryptid/weather-cache-service/internal/kvstore"
	"github.com/couchcryptid/weather-cache-service/internal/kvstore/kvstoretest"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribe(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sub, err := f.engine.Subscribe(ctx, "u1", "paris", []domain.AlertType{"thunderstorm"})
	require.NoError(t, err)
	assert.Equal(t, []domain.AlertType{domain.AlertThunderstorm}, sub.AlertTypes)
	assert.Equal(t, t0, sub.SubscribedAt)

	_, err = f.engine.Subscribe(ctx, "u1", "denver", nil)
	require.NoError(t, err)

	// Re-subscribing replaces the entry for the pair.
	_, err = f.engine.Subscribe(ctx, "u1", "paris", []domain.AlertType{domain.AlertHeavySnow})
	require.NoError(t, err)

	list := f.engine.Subscriptions(ctx, "u1")
	assert.True(t, list.Available)
	require.Len(t, list.Subscriptions, 2)
	assert.Equal(t, "denver", list.Subscriptions[0].LocationID)
	assert.Equal(t, "paris", list.Subscriptions[1].LocationID)
	assert.Equal(t, []domain.AlertType{domain.AlertHeavySnow}, list.Subscriptions[1].AlertTypes)

	require.NoError(t, f.engine.Unsubscribe(ctx, "u1", "paris"))
	list = f.engine.Subscriptions(ctx, "u1")
	require.Len(t, list.Subscriptions, 1)
	assert.Equal(t, "denver", list.Subscriptions[0].LocationID)
}

func TestSubscribe_TTLRefreshedOnEachSubscribe(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	mem := kvstore.NewMemory(clock)
	f := newFixtureWith(t, clock, mem, &recordingDispatcher{})
	ctx := context.Background()

	_, err := f.engine.Subscribe(ctx, "u1", "paris", nil)
	require.NoError(t, err)

	clock.Advance(29 * 24 * time.Hour)
	_, err = f.engine.Subscribe(ctx, "u1", "denver", nil)
	require.NoError(t, err)

	ttl, ok := mem.TTL(alerts.SubscriptionKey("u1"))
	require.True(t, ok)
	assert.Equal(t, cache.TTLSubscriptions, ttl)

	clock.Advance(29 * 24 * time.Hour)
	assert.Len(t, f.engine.Subscriptions(ctx, "u1").Subscriptions, 2)

	clock.Advance(24 * time.Hour)
	assert.Empty(t, f.engine.Subscriptions(ctx, "u1").Subscriptions, "expired after 30 days without a subscribe")
}

func TestSubscribe_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Subscribe(ctx, "", "paris", nil)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.engine.Subscribe(ctx, "u1", "", nil)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.engine.Subscribe(ctx, "u1", "atlantis", nil)
	assert.ErrorIs(t, err, domain.ErrLocationNotFound)

	assert.ErrorIs(t, f.engine.Unsubscribe(ctx, "u1", ""), domain.ErrValidation)
}

func TestSubscriptions_StoreDown(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	f := newFixtureWith(t, clock, &kvstoretest.Unavailable{}, &recordingDispatcher{})
	ctx := context.Background()

	_, err := f.engine.Subscribe(ctx, "u1", "paris", nil)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

	list := f.engine.Subscriptions(ctx, "u1")
	assert.False(t, list.Available)
	assert.NotNil(t, list.Subscriptions)
	assert.Empty(t, list.Subscriptions)
}
