package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Launcher acquires a fresh Session.
type Launcher func(ctx context.Context) (Session, error)

// PlaywrightLauncher returns a Launcher backed by Launch.
func PlaywrightLauncher(opts *Options, logger *slog.Logger) Launcher {
	return func(ctx context.Context) (Session, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return Launch(opts, logger)
	}
}

// Handle owns exactly one live Session for an adapter and can replace it.
// It implements the soft and hard recovery steps used between retry attempts.
type Handle struct {
	mu      sync.Mutex
	launch  Launcher
	session Session
	logger  *slog.Logger
	resets  int
	reinits int
}

// Acquire launches the first session.
func Acquire(ctx context.Context, launch Launcher, logger *slog.Logger) (*Handle, error) {
	if logger == nil {
		logger = slog.Default()
	}
	session, err := launch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire browser session: %w", err)
	}
	return &Handle{
		launch:  launch,
		session: session,
		logger:  logger.With("component", "browser-handle"),
	}, nil
}

// Session returns the current live session. It changes after Reinitialize.
func (h *Handle) Session() Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session
}

// SoftReset clears cookies and web storage on the live session.
func (h *Handle) SoftReset(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.session == nil {
		return ErrClosed
	}
	h.resets++
	if err := h.session.ClearState(ctx); err != nil {
		return fmt.Errorf("failed to reset browser state: %w", err)
	}
	h.logger.Debug("browser state cleared", "resets", h.resets)
	return nil
}

// Reinitialize discards the live session and acquires a new one.
func (h *Handle) Reinitialize(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.session != nil {
		if err := h.session.Close(); err != nil {
			h.logger.Warn("failed to close session during reinitialize", "error", err)
		}
		h.session = nil
	}

	session, err := h.launch(ctx)
	if err != nil {
		return fmt.Errorf("failed to reinitialize browser session: %w", err)
	}
	h.session = session
	h.reinits++
	h.logger.Info("browser session reinitialized", "reinits", h.reinits)
	return nil
}

func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.session == nil {
		return nil
	}
	err := h.session.Close()
	h.session = nil
	return err
}
