package availability

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"clinicsync/internal/model"
	"clinicsync/internal/notify"
)

// Tables whose changes make a computed availability view stale.
const (
	TableBookings     = "bookings"
	TableSlotConfigs  = "slot_configs"
	TableBlackoutDays = "blackout_days"
)

// UpdateFunc receives recomputed availability. On recompute failure the
// previous view stands and err says why.
type UpdateFunc func(slots []model.SlotAvailability, err error)

// Watcher keeps one (professional, date) availability view current. It is
// event-driven: it never polls, it recomputes when a change notification
// arrives for any input collection. Re-targeting tears the previous
// subscriptions down first so a view can never be recomputed twice per
// event.
type Watcher struct {
	calc     *Calculator
	notifier notify.Notifier
	onUpdate UpdateFunc
	logger   *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup

	professionalID string
	date           string
}

// NewWatcher creates a watcher. onUpdate is invoked from the watcher's
// goroutine; it must not block for long.
func NewWatcher(calc *Calculator, notifier notify.Notifier, onUpdate UpdateFunc, logger *zap.Logger) *Watcher {
	return &Watcher{
		calc:     calc,
		notifier: notifier,
		onUpdate: onUpdate,
		logger:   logger,
	}
}

// Watch targets the watcher at one (professionalID, date), tearing down
// any previous target first. It computes once immediately, then on every
// relevant change notification.
func (w *Watcher) Watch(ctx context.Context, professionalID, date string) error {
	w.Stop()

	watchCtx, cancel := context.WithCancel(ctx)

	channels := []string{
		notify.ChannelFor(TableBookings, "prof-"+professionalID),
		notify.ChannelFor(TableSlotConfigs, "prof-"+professionalID),
		notify.ChannelFor(TableBlackoutDays, "prof-"+professionalID),
	}

	events := make([]<-chan notify.Event, 0, len(channels))
	unsubs := make([]func(), 0, len(channels))
	for _, ch := range channels {
		ev, unsub, err := w.notifier.Subscribe(watchCtx, ch)
		if err != nil {
			for _, u := range unsubs {
				u()
			}
			cancel()
			return err
		}
		events = append(events, ev)
		unsubs = append(unsubs, unsub)
	}

	w.mu.Lock()
	w.cancel = func() {
		cancel()
		for _, u := range unsubs {
			u()
		}
	}
	w.professionalID = professionalID
	w.date = date
	w.mu.Unlock()

	merged := mergeEvents(watchCtx, events)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		w.recompute(watchCtx, false)

		for {
			select {
			case _, ok := <-merged:
				if !ok {
					return
				}
				w.recompute(watchCtx, true)
			case <-watchCtx.Done():
				return
			}
		}
	}()

	return nil
}

// Refresh recomputes the current target on caller demand.
func (w *Watcher) Refresh(ctx context.Context) {
	w.recompute(ctx, true)
}

// Stop tears down the current subscriptions, if any.
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
		w.wg.Wait()
	}
}

func (w *Watcher) recompute(ctx context.Context, force bool) {
	w.mu.Lock()
	professionalID, date := w.professionalID, w.date
	w.mu.Unlock()
	if professionalID == "" {
		return
	}

	var (
		slots []model.SlotAvailability
		err   error
	)
	if force {
		slots, err = w.calc.Recompute(ctx, professionalID, date)
	} else {
		slots, err = w.calc.Compute(ctx, professionalID, date)
	}
	if err != nil {
		w.logger.Warn("availability recompute failed",
			zap.String("professional_id", professionalID),
			zap.String("date", date),
			zap.Error(err))
	}
	w.onUpdate(slots, err)
}

// mergeEvents fans several event channels into one.
func mergeEvents(ctx context.Context, ins []<-chan notify.Event) <-chan notify.Event {
	out := make(chan notify.Event, 8)
	var wg sync.WaitGroup
	wg.Add(len(ins))
	for _, in := range ins {
		go func(in <-chan notify.Event) {
			defer wg.Done()
			for {
				select {
				case ev, ok := <-in:
					if !ok {
						return
					}
					select {
					case out <- ev:
					case <-ctx.Done():
						return
					}
				case <-ctx.Done():
					return
				}
			}
		}(in)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}
