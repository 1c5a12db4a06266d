package availability

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"clinicsync/internal/fetch"
	"clinicsync/internal/model"
)

// RemoteAPI is the slice of the remote client the calculator reads from.
type RemoteAPI interface {
	TimeSlots(ctx context.Context, professionalID string) ([]model.TimeSlotConfig, error)
	BlackoutDays(ctx context.Context, professionalID string) ([]model.BlackoutDay, error)
	BookingCounts(ctx context.Context, professionalID, date string) (model.BookingCounts, error)
}

// Calculator answers "which time slots are bookable for professional P on
// date D" from configured slots, blackout days and live booking counts.
// All reads go through the fetch orchestrator, so the answer degrades to
// cached data instead of failing when the remote is unreachable.
type Calculator struct {
	fetcher *fetch.Fetcher
	remote  RemoteAPI
	logger  *zap.Logger

	// TTLs per dataset. Slot configs and blackout days change rarely;
	// booking counts churn with every new appointment.
	slotTTL    time.Duration
	bookingTTL time.Duration
}

// NewCalculator creates a slot availability calculator.
func NewCalculator(fetcher *fetch.Fetcher, remote RemoteAPI, logger *zap.Logger) *Calculator {
	return &Calculator{
		fetcher:    fetcher,
		remote:     remote,
		logger:     logger,
		slotTTL:    30 * time.Minute,
		bookingTTL: 5 * time.Minute,
	}
}

// Cache keys per dataset; the watcher invalidates by the same scheme.
func slotsKey(professionalID string) string {
	return fmt.Sprintf("slots-%s", professionalID)
}

func blackoutsKey(professionalID string) string {
	return fmt.Sprintf("blackouts-%s", professionalID)
}

func bookingsKey(professionalID, date string) string {
	return fmt.Sprintf("bookings-%s-%s", professionalID, date)
}

// Compute returns the availability view for one professional and date,
// ordered by slot time ascending. A blackout date short-circuits to an
// empty list before any slot-level work.
func (c *Calculator) Compute(ctx context.Context, professionalID, date string) ([]model.SlotAvailability, error) {
	return c.compute(ctx, professionalID, date, false)
}

// Recompute is Compute with the cache fallback disabled, used when a
// change notification says the cached view is definitely stale.
func (c *Calculator) Recompute(ctx context.Context, professionalID, date string) ([]model.SlotAvailability, error) {
	return c.compute(ctx, professionalID, date, true)
}

func (c *Calculator) compute(ctx context.Context, professionalID, date string, forceRefresh bool) ([]model.SlotAvailability, error) {
	opts := fetch.Options{ForceRefresh: forceRefresh}

	blackouts, err := fetch.JSON(ctx, c.fetcher, blackoutsKey(professionalID),
		func(ctx context.Context) ([]model.BlackoutDay, error) {
			return c.remote.BlackoutDays(ctx, professionalID)
		}, withTTL(opts, c.slotTTL))
	if err != nil {
		return nil, fmt.Errorf("loading blackout days: %w", err)
	}

	for _, day := range blackouts {
		if day.Date == date {
			return []model.SlotAvailability{}, nil
		}
	}

	slots, err := fetch.JSON(ctx, c.fetcher, slotsKey(professionalID),
		func(ctx context.Context) ([]model.TimeSlotConfig, error) {
			return c.remote.TimeSlots(ctx, professionalID)
		}, withTTL(opts, c.slotTTL))
	if err != nil {
		return nil, fmt.Errorf("loading slot configuration: %w", err)
	}

	counts, err := fetch.JSON(ctx, c.fetcher, bookingsKey(professionalID, date),
		func(ctx context.Context) (model.BookingCounts, error) {
			return c.remote.BookingCounts(ctx, professionalID, date)
		}, withTTL(opts, c.bookingTTL))
	if err != nil {
		return nil, fmt.Errorf("loading booking counts: %w", err)
	}

	result := make([]model.SlotAvailability, 0, len(slots))
	for _, slot := range slots {
		current := counts[slot.Time]
		result = append(result, model.SlotAvailability{
			Time:                slot.Time,
			MaxAppointments:     slot.MaxAppointments,
			CurrentAppointments: current,
			Available:           current < slot.MaxAppointments,
		})
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Time < result[j].Time })
	return result, nil
}

func withTTL(opts fetch.Options, ttl time.Duration) fetch.Options {
	opts.TTL = ttl
	return opts
}
