package availability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"clinicsync/internal/cache"
	"clinicsync/internal/notify"
)

func TestInvalidatorClearsChangedDatasets(t *testing.T) {
	mem := cache.NewMemoryCache()
	t.Cleanup(func() { mem.Close() })
	notifier := notify.NewMemoryNotifier()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, mem.Set(ctx, "bookings-p1-2026-09-01", []byte(`{}`), time.Minute))
	require.NoError(t, mem.Set(ctx, "bookings-p2-2026-09-01", []byte(`{}`), time.Minute))
	require.NoError(t, mem.Set(ctx, "slots-p1", []byte(`[]`), time.Minute))

	inv := NewInvalidator(mem, notifier, zap.NewNop())
	require.NoError(t, inv.Run(ctx))

	notifier.Publish(TableBookings)

	require.Eventually(t, func() bool {
		_, err := mem.Get(ctx, "bookings-p1-2026-09-01")
		return err == cache.ErrCacheMiss
	}, 2*time.Second, 10*time.Millisecond)

	// All booking views are dropped, other datasets are untouched.
	_, err := mem.Get(ctx, "bookings-p2-2026-09-01")
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
	_, err = mem.Get(ctx, "slots-p1")
	assert.NoError(t, err)

	notifier.Publish(TableSlotConfigs)
	require.Eventually(t, func() bool {
		_, err := mem.Get(ctx, "slots-p1")
		return err == cache.ErrCacheMiss
	}, 2*time.Second, 10*time.Millisecond)
}
