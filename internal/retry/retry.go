package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/maltedev/catalog-scraper/internal/ratelimit"
)

const DefaultMaxAttempts = 3

// ErrOperationExhausted matches every ExhaustedError.
var ErrOperationExhausted = errors.New("operation exhausted")

// ExhaustedError reports that all attempts failed. Last holds the final cause.
type ExhaustedError struct {
	Op       string
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: exhausted after %d attempts: %v", e.Op, e.Attempts, e.Last)
}

func (e *ExhaustedError) Is(target error) bool { return target == ErrOperationExhausted }

func (e *ExhaustedError) Unwrap() error { return e.Last }

// Recoverer normalizes browser state between attempts. browser.Handle implements it.
type Recoverer interface {
	SoftReset(ctx context.Context) error
	Reinitialize(ctx context.Context) error
}

// PermanentError marks a failure that retrying cannot fix.
type PermanentError struct{ Err error }

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so the controller stops immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

type Controller struct {
	MaxAttempts int
	BackoffMin  time.Duration
	BackoffMax  time.Duration
	logger      *slog.Logger
}

func NewController(maxAttempts int, backoffMin, backoffMax time.Duration, logger *slog.Logger) *Controller {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		MaxAttempts: maxAttempts,
		BackoffMin:  backoffMin,
		BackoffMax:  backoffMax,
		logger:      logger.With("component", "retry"),
	}
}

// Run calls fn until it succeeds, returns a permanent error, or the attempt budget
// is spent. Between attempts it soft-resets rec, reinitializes it if the soft reset
// fails, then sleeps a jittered backoff. rec may be nil.
func (c *Controller) Run(ctx context.Context, op string, rec Recoverer, fn func(ctx context.Context, attempt int) error) error {
	var last error

	for attempt := 1; attempt <= c.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx, attempt)
		if err == nil {
			if attempt > 1 {
				c.logger.Info("operation succeeded after retry", "op", op, "attempt", attempt)
			}
			return nil
		}
		last = err

		var perm *PermanentError
		if errors.As(err, &perm) {
			return perm.Err
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		c.logger.Warn("attempt failed", "op", op, "attempt", attempt, "max_attempts", c.MaxAttempts, "error", err)
		if attempt == c.MaxAttempts {
			break
		}

		c.recover(ctx, op, rec)

		if err := ratelimit.Sleep(ctx, ratelimit.Jitter(c.BackoffMin, c.BackoffMax)); err != nil {
			return err
		}
	}

	return &ExhaustedError{Op: op, Attempts: c.MaxAttempts, Last: last}
}

func (c *Controller) recover(ctx context.Context, op string, rec Recoverer) {
	if rec == nil {
		return
	}
	softErr := rec.SoftReset(ctx)
	if softErr == nil {
		return
	}
	c.logger.Warn("soft recovery failed, reinitializing session", "op", op, "error", softErr)
	if err := rec.Reinitialize(ctx); err != nil {
		c.logger.Error("hard recovery failed", "op", op, "error", err)
	}
}

// Do is Run for operations that produce a value.
func Do[T any](ctx context.Context, c *Controller, op string, rec Recoverer, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := c.Run(ctx, op, rec, func(ctx context.Context, _ int) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}
