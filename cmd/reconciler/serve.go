package main

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/maltedev/catalog-scraper/internal/api"
	"github.com/robfig/cron/v3"
)

// serve exposes the catalog API and re-checks the deferred queue on a schedule.
func (a *app) serve(ctx context.Context) error {
	rechecks := newRecheckRunner(func() {
		if _, err := a.recheck(ctx); err != nil {
			a.logger.Error("Scheduled recheck failed", "error", err)
		}
	})
	defer rechecks.Stop()

	deps := api.Deps{
		Catalog:  a.store,
		Deferred: a.deferred,
		History:  a.history,
		Recheck:  rechecks.Trigger,
	}
	if a.relay != nil {
		deps.Backlog = a.relay
		go func() {
			if err := a.relay.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("Outbox relay stopped", "error", err)
			}
		}()
	}

	c := cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger)))
	if _, err := c.AddFunc(a.cfg.Cron.Recheck, func() {
		if !rechecks.Trigger() {
			a.logger.Info("Recheck already running, skipping schedule tick")
		}
	}); err != nil {
		return err
	}
	c.Start()
	defer func() { <-c.Stop().Done() }()

	srv := &http.Server{
		Addr:         a.cfg.Server.Addr(),
		Handler:      api.NewRouter(api.NewHandlers(deps, a.logger), a.cfg.Server.AllowedOrigins),
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Starting HTTP server", "addr", srv.Addr, "recheck_schedule", a.cfg.Cron.Recheck)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	a.logger.Info("Server stopped")
	return nil
}

// recheckRunner runs at most one recheck at a time in the background. After
// Stop no new run starts, and Stop returns once the run in flight finished.
type recheckRunner struct {
	run func()

	mu      sync.Mutex
	running bool
	stopped bool
	wg      sync.WaitGroup
}

func newRecheckRunner(run func()) *recheckRunner {
	return &recheckRunner{run: run}
}

// Trigger starts a run and reports false when one is already running or the
// runner is stopped.
func (r *recheckRunner) Trigger() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped || r.running {
		return false
	}
	r.running = true
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			r.mu.Lock()
			r.running = false
			r.mu.Unlock()
		}()
		r.run()
	}()
	return true
}

func (r *recheckRunner) Stop() {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()
	r.wg.Wait()
}
