package availability

import (
	"context"

	"go.uber.org/zap"

	"clinicsync/internal/cache"
	"clinicsync/internal/notify"
)

// Invalidator clears cached datasets when their source collections change,
// so the next read through the orchestrator re-derives state from the
// remote service. Events carry no payload by contract; clearing and
// re-fetching is the consistency mechanism.
type Invalidator struct {
	cache    cache.Cache
	notifier notify.Notifier
	logger   *zap.Logger
}

// Cache key prefixes cleared per changed table.
var tablePrefixes = map[string][]string{
	TableBookings:     {"bookings-"},
	TableSlotConfigs:  {"slots-"},
	TableBlackoutDays: {"blackouts-"},
}

// NewInvalidator creates a cache invalidator.
func NewInvalidator(c cache.Cache, notifier notify.Notifier, logger *zap.Logger) *Invalidator {
	return &Invalidator{cache: c, notifier: notifier, logger: logger}
}

// Run subscribes to the unfiltered change channels and clears cache
// prefixes until ctx is cancelled.
func (inv *Invalidator) Run(ctx context.Context) error {
	for table := range tablePrefixes {
		events, unsubscribe, err := inv.notifier.Subscribe(ctx, table)
		if err != nil {
			return err
		}

		go func(table string, events <-chan notify.Event, unsubscribe func()) {
			defer unsubscribe()
			for {
				select {
				case _, ok := <-events:
					if !ok {
						return
					}
					inv.clear(ctx, table)
				case <-ctx.Done():
					return
				}
			}
		}(table, events, unsubscribe)
	}
	return nil
}

func (inv *Invalidator) clear(ctx context.Context, table string) {
	for _, prefix := range tablePrefixes[table] {
		if err := inv.cache.ClearPrefix(ctx, prefix); err != nil {
			inv.logger.Warn("cache invalidation failed",
				zap.String("table", table),
				zap.String("prefix", prefix),
				zap.Error(err))
			continue
		}
	}
	inv.logger.Debug("cache invalidated", zap.String("table", table))
}
