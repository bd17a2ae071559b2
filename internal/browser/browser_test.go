package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	assert.True(t, opts.Headless)
	assert.Equal(t, 30*time.Second, opts.Timeout)
	assert.Equal(t, 500*time.Millisecond, opts.PollInterval)
	assert.Equal(t, 1920, opts.ViewportWidth)
	assert.Equal(t, 1080, opts.ViewportHeight)
	assert.Equal(t, "en-IN", opts.Locale)
}

func TestPickUserAgentUsesPool(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, opts.UserAgent, opts.pickUserAgent())

	opts.UserAgents = []string{"a", "b"}
	for i := 0; i < 20; i++ {
		assert.Contains(t, opts.UserAgents, opts.pickUserAgent())
	}
}

func TestFakeSessionQuerySelectorsFallsBack(t *testing.T) {
	ctx := context.Background()
	s := NewFakeSession(map[string]string{
		"https://example.test/p": `<html><body><span class="new-name">Phone X</span></body></html>`,
	})
	require.NoError(t, s.Navigate(ctx, "https://example.test/p"))

	el, matched, err := s.QuerySelectors(ctx, []string{".old-name", ".new-name"}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, ".new-name", matched)
	text, _ := el.Text()
	assert.Equal(t, "Phone X", text)

	_, _, err = s.QuerySelectors(ctx, []string{".missing"}, time.Second)
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestFakeSessionNavigationErrorIsTyped(t *testing.T) {
	s := NewFakeSession(nil)
	s.NavErr["https://down.test"] = errors.New("net::ERR_CONNECTION_RESET")

	err := s.Navigate(context.Background(), "https://down.test")
	var navErr *NavigationError
	require.ErrorAs(t, err, &navErr)
	assert.Equal(t, "https://down.test", navErr.URL)
}

func TestHandleSoftResetAndReinitialize(t *testing.T) {
	ctx := context.Background()
	var launched []*FakeSession
	launch := func(ctx context.Context) (Session, error) {
		s := NewFakeSession(nil)
		launched = append(launched, s)
		return s, nil
	}

	h, err := Acquire(ctx, launch, nil)
	require.NoError(t, err)
	require.Len(t, launched, 1)

	require.NoError(t, h.SoftReset(ctx))
	assert.Equal(t, 1, launched[0].Cleared)

	require.NoError(t, h.Reinitialize(ctx))
	require.Len(t, launched, 2)
	assert.True(t, launched[0].Closed)
	assert.Same(t, launched[1], h.Session())

	require.NoError(t, h.Close())
	assert.True(t, launched[1].Closed)
	assert.ErrorIs(t, h.SoftReset(ctx), ErrClosed)
}

func TestHandleSoftResetPropagatesFailure(t *testing.T) {
	ctx := context.Background()
	s := NewFakeSession(nil)
	s.ClearErr = errors.New("page crashed")

	h, err := Acquire(ctx, func(context.Context) (Session, error) { return s, nil }, nil)
	require.NoError(t, err)
	assert.Error(t, h.SoftReset(ctx))
}
