package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/maltedev/catalog-scraper/internal/config"
	"github.com/maltedev/catalog-scraper/internal/media"
	"github.com/maltedev/catalog-scraper/internal/reconcile"
	"github.com/maltedev/catalog-scraper/internal/sheet"
)

// runBatch resolves every row of the input workbook and writes the result sheets.
func (a *app) runBatch(ctx context.Context) error {
	path, err := sheet.ResolveInput(a.cfg.Files.Input)
	if err != nil {
		return err
	}

	queries, invalid, err := sheet.ReadQueries(path)
	for _, v := range invalid {
		a.logger.Warn("Skipping invalid input row", "file", path, "row", v.Row, "column", v.Column, "reason", v.Reason)
	}
	if err != nil {
		return err
	}
	a.logger.Info("Loaded input workbook", "file", path, "queries", len(queries), "invalid", len(invalid))

	pool := reconcile.NewPool(reconcile.PoolConfig{
		Workers:  a.cfg.Scraper.Workers,
		Factory:  a.factory(a.cfg.Scraper.Escalate),
		Store:    a.store,
		Deferred: a.deferred,
		Retry:    a.retry,
		Table:    a.table,
		Options:  a.options(),
	}, a.logger)

	report, runErr := pool.Run(ctx, queries)
	if report != nil {
		a.history.Record(report)
		report.Log(a.logger)
		if err := a.writeOutputs(report); err != nil {
			return err
		}
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("batch run failed: %w", runErr)
	}

	a.flushRelay(ctx)

	if a.cfg.Files.Archive && ctx.Err() == nil {
		dir, err := archiveBatch(a.cfg, path, time.Now())
		if err != nil {
			return err
		}
		a.logger.Info("Archived batch", "dir", dir)
	}
	return nil
}

// recheck runs the escalation rungs over the deferred queue once.
func (a *app) recheck(ctx context.Context) (*reconcile.Report, error) {
	adapters, err := a.factory(true)(ctx, 0)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := adapters.Close(); err != nil {
			a.logger.Warn("failed to close adapters", "error", err)
		}
	}()

	engine := reconcile.NewEngine(reconcile.Deps{
		Adapters: adapters,
		Retry:    a.retry,
		Lookup:   a.store,
		Sink:     a.store,
		Deferred: a.deferred,
		Table:    a.table,
	}, a.options(), a.logger)

	report, err := engine.Recheck(ctx)
	if report != nil {
		a.history.Record(report)
		report.Log(a.logger)
		if report.Total > 0 {
			if werr := a.writeOutputs(report); werr != nil {
				return report, werr
			}
		}
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return report, fmt.Errorf("recheck failed: %w", err)
	}
	a.flushRelay(ctx)
	return report, nil
}

func (a *app) writeOutputs(report *reconcile.Report) error {
	out := a.cfg.Files.Output
	if err := sheet.WriteRun(out, report.Outcomes, report.Deferred); err != nil {
		return fmt.Errorf("failed to write output workbook: %w", err)
	}
	a.logger.Info("Output workbook written", "file", out, "outcomes", len(report.Outcomes), "deferred", len(report.Deferred))

	for _, category := range a.cfg.Files.Merge {
		merged, err := sheet.MergeCategory(out, category, a.table)
		if err != nil {
			a.logger.Warn("failed to merge category sheets", "category", category, "error", err)
			continue
		}
		a.logger.Info("Merged category sheets", "sheet", merged.Name, "rows", len(merged.Rows))
	}
	return nil
}

// flushRelay publishes pending outbox events before a one-shot mode exits.
func (a *app) flushRelay(ctx context.Context) {
	if a.relay == nil {
		return
	}
	if err := a.relay.Flush(context.WithoutCancel(ctx)); err != nil {
		a.logger.Warn("failed to flush outbox relay", "error", err)
	}
}

// runImages downloads and normalizes the images listed in the output
// workbook, uploads them when FTP is configured, and maps the public links
// back onto the details sheets.
func runImages(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	images, err := sheet.ImagesOf(cfg.Files.Output)
	if err != nil {
		return err
	}

	pipeline := media.NewPipeline(
		media.NewDownloader(cfg.Media.RatePerSec, cfg.Media.Burst, log),
		media.Options{
			OriginalsDir: cfg.Media.OriginalsDir,
			StyledDir:    cfg.Media.StyledDir,
			Canvas:       cfg.Media.Canvas,
			Formats:      cfg.Media.Formats,
			Quality:      cfg.Media.Quality,
			Workers:      cfg.Media.Workers,
		}, log)

	res, err := pipeline.Run(ctx, images)
	if err != nil {
		return err
	}
	log.Info("Images processed",
		"products", len(images),
		"downloaded", res.Downloaded,
		"normalized", res.Normalized,
		"failed", res.Failed)

	var links []sheet.ImageLink
	switch {
	case cfg.FTP.Enabled():
		up, err := media.DialFTP(ctx, media.FTPConfig{
			Addr:        cfg.FTP.Addr,
			User:        cfg.FTP.User,
			Password:    cfg.FTP.Password,
			RemoteDir:   cfg.FTP.RemoteDir,
			PublicURL:   cfg.FTP.PublicURL,
			StripPrefix: cfg.FTP.StripPrefix,
			Timeout:     cfg.FTP.Timeout,
		}, log)
		if err != nil {
			return err
		}
		uploaded, err := media.UploadDir(ctx, up, cfg.Media.StyledDir, cfg.FTP.RemoteDir, pipeline.Extensions(), log)
		if cerr := up.Close(); cerr != nil {
			log.Warn("failed to close FTP connection", "error", cerr)
		}
		if err != nil {
			return err
		}
		for _, l := range uploaded {
			links = append(links, sheet.ImageLink{FileName: l.FileName, URL: l.URL})
		}
		if err := sheet.WriteImageLinks(cfg.Files.Links, links); err != nil {
			return err
		}
		log.Info("Images uploaded", "links", len(links), "file", cfg.Files.Links)

	default:
		// Without FTP, map any links recorded by an earlier upload.
		if _, err := os.Stat(cfg.Files.Links); err != nil {
			log.Info("FTP not configured and no image links recorded, skipping mapping")
			return nil
		}
		if links, err = sheet.ReadImageLinks(cfg.Files.Links); err != nil {
			return err
		}
	}

	mapped, err := sheet.MapImages(cfg.Files.Output, links)
	if err != nil {
		return err
	}
	log.Info("Image links mapped", "matched", mapped.Matched, "rows", mapped.Total)
	return nil
}
