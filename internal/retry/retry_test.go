package retry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecoverer struct {
	softErr error
	softs   int
	hards   int
}

func (f *fakeRecoverer) SoftReset(ctx context.Context) error {
	f.softs++
	return f.softErr
}

func (f *fakeRecoverer) Reinitialize(ctx context.Context) error {
	f.hards++
	return nil
}

func TestDoSucceedsOnThirdAttempt(t *testing.T) {
	c := NewController(3, 0, 0, nil)
	rec := &fakeRecoverer{}
	calls := 0

	got, err := Do(context.Background(), c, "extract", rec, func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("timeout")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, rec.softs)
	assert.Equal(t, 0, rec.hards)
}

func TestRunExhausts(t *testing.T) {
	c := NewController(3, 0, 0, nil)
	cause := errors.New("navigation failed")
	calls := 0

	err := c.Run(context.Background(), "search", nil, func(ctx context.Context, attempt int) error {
		calls++
		return cause
	})

	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, ErrOperationExhausted)
	assert.ErrorIs(t, err, cause)

	var ex *ExhaustedError
	require.ErrorAs(t, err, &ex)
	assert.Equal(t, 3, ex.Attempts)
	assert.Equal(t, "search", ex.Op)
}

func TestRunFallsBackToHardRecovery(t *testing.T) {
	c := NewController(3, 0, 0, nil)
	rec := &fakeRecoverer{softErr: errors.New("page gone")}

	err := c.Run(context.Background(), "search", rec, func(ctx context.Context, attempt int) error {
		return errors.New("boom")
	})

	assert.ErrorIs(t, err, ErrOperationExhausted)
	// recovery runs between attempts only
	assert.Equal(t, 2, rec.softs)
	assert.Equal(t, 2, rec.hards)
}

func TestRunStopsOnPermanentError(t *testing.T) {
	c := NewController(3, 0, 0, nil)
	cause := errors.New("unsupported")
	calls := 0

	err := c.Run(context.Background(), "details", nil, func(ctx context.Context, attempt int) error {
		calls++
		return Permanent(cause)
	})

	assert.Equal(t, 1, calls)
	assert.Equal(t, cause, err)
	assert.False(t, errors.Is(err, ErrOperationExhausted))
}

func TestRunHonoursCancellation(t *testing.T) {
	c := NewController(3, 0, 0, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Run(ctx, "search", nil, func(ctx context.Context, attempt int) error {
		t.Fatal("operation must not run after cancellation")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewControllerDefaults(t *testing.T) {
	c := NewController(0, 0, 0, nil)
	assert.Equal(t, DefaultMaxAttempts, c.MaxAttempts)
}
