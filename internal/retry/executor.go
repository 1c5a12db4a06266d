package retry

import (
	"context"
	"time"

	backoff "github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"clinicsync/internal/model"
	"clinicsync/pkg/syncerror"
)

// StatusSource reports the current connectivity status. Satisfied by the
// connectivity monitor.
type StatusSource interface {
	Status() model.ConnectivityStatus
}

// Options bound one retried operation.
type Options struct {
	// MaxRetries is the number of retries after the first attempt.
	// Default: 3.
	MaxRetries int

	// InitialDelay is the delay before the first retry; it doubles on
	// each subsequent retry. Default: 1s.
	InitialDelay time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxRetries == 0 {
		o.MaxRetries = 3
	}
	if o.InitialDelay == 0 {
		o.InitialDelay = time.Second
	}
	return o
}

// Op is one fallible operation.
type Op func(ctx context.Context) error

// Executor runs one operation with bounded retries, exponential backoff
// and offline awareness.
type Executor struct {
	monitor StatusSource
	logger  *zap.Logger
}

// New creates a retry executor bound to the given connectivity monitor.
func New(monitor StatusSource, logger *zap.Logger) *Executor {
	return &Executor{monitor: monitor, logger: logger}
}

// Do runs op with default options.
func (e *Executor) Do(ctx context.Context, op Op) error {
	return e.DoWithOptions(ctx, Options{}, op)
}

// DoWithOptions runs op with bounded retries and exponential backoff.
//
// Before each attempt the connectivity monitor is consulted: while Offline
// the operation fails immediately with ErrOffline and op is never invoked.
// A connectivity-class failure from op stops the loop at once. Any other
// failure retries up to MaxRetries with the delay doubling each attempt.
// Exhaustion surfaces the last underlying error wrapped in
// ExhaustedRetriesError.
func (e *Executor) DoWithOptions(ctx context.Context, opts Options, op Op) error {
	opts = opts.withDefaults()

	b := backoff.WithMaxRetries(uint64(opts.MaxRetries), backoff.NewExponential(opts.InitialDelay))

	attempts := 0
	err := backoff.Do(ctx, b, func(ctx context.Context) error {
		if e.monitor.Status().State == model.StateOffline {
			return syncerror.ErrOffline
		}

		attempts++
		opErr := op(ctx)
		if opErr == nil {
			return nil
		}

		if syncerror.IsConnectivity(opErr) {
			return opErr
		}

		e.logger.Debug("operation failed, will retry",
			zap.Int("attempt", attempts), zap.Error(opErr))
		return backoff.RetryableError(opErr)
	})
	if err == nil {
		return nil
	}

	if !syncerror.IsConnectivity(err) && attempts > opts.MaxRetries {
		return &syncerror.ExhaustedRetriesError{Attempts: attempts, Last: err}
	}
	return err
}
