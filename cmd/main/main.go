package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Houeta/rival-radar/internal/bot"
	"github.com/Houeta/rival-radar/internal/config"
	"github.com/Houeta/rival-radar/internal/extract"
	"github.com/Houeta/rival-radar/internal/fetcher"
	"github.com/Houeta/rival-radar/internal/normalize"
	"github.com/Houeta/rival-radar/internal/repository/sqlite"
	"github.com/Houeta/rival-radar/internal/services/differ"
	"github.com/Houeta/rival-radar/internal/services/tracker"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for different environment types.
const (
	envLocal = "local"
	envDev   = "development"
	envProd  = "production"
)

// main is the entry point of the application.
func main() {
	// Create a context that will be canceled when an interrupt signal is received.
	// This allows for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.MustLoad()

	// Set up the logger based on the environment.
	logger := setupLogger(cfg.Env)

	repo, err := sqlite.NewRepository(ctx, logger, cfg.StoragePath)
	if err != nil {
		log.Fatalf("Failed to init repository: %v", err)
	}
	defer repo.Close()

	radarBot, err := bot.NewBot(logger, repo, cfg.Tg.Token, cfg.Tg.Timeout)
	if err != nil {
		log.Fatalf("Failed to init bot: %v", err)
	}

	norm := normalize.New(logger, cfg.Scrape.MaxContent)
	extractor := extract.New(logger, extract.Options{Stoplist: cfg.Scrape.Stoplist})
	dif := differ.New(logger, cfg.Scrape.FloodLimit)
	engine := tracker.New(logger, norm, extractor, dif, repo, cfg.Scrape.PageBudget, cfg.Scrape.Workers)
	pageFetcher := fetcher.New(logger, cfg.Scrape.FetchTimeout)

	// Log that the application has started.
	logger.InfoContext(ctx, "Application started. Press Ctrl+C to stop.")

	// Start the bot in a goroutine to allow main to listen for signals.
	go radarBot.Start()

	// Run scrape cycles: once on startup, then on every interval tick.
	go runScheduler(ctx, logger, cfg.Scrape.Interval, repo, engine, pageFetcher, radarBot)

	// Wait for the context to be canceled (e.g., by Ctrl+C).
	<-ctx.Done()

	// Log that a shutdown signal has been received.
	logger.InfoContext(ctx, "Shutdown signal received. Stopping application...")

	// Stop the bot gracefully.
	radarBot.Stop()

	// Log graceful shutdown completion.
	logger.InfoContext(ctx, "Application stopped gracefully.")
}

// runScheduler runs one scrape pass immediately and then repeats on every
// interval tick until ctx is canceled.
func runScheduler(
	ctx context.Context,
	logger *slog.Logger,
	interval time.Duration,
	repo *sqlite.Repository,
	engine *tracker.Tracker,
	pageFetcher *fetcher.Fetcher,
	radarBot *bot.Bot,
) {
	runOnce(ctx, logger, repo, engine, pageFetcher, radarBot)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce(ctx, logger, repo, engine, pageFetcher, radarBot)
		}
	}
}

// runOnce performs one full pass: cycle every tracked page, then dispatch
// any resulting alerts.
func runOnce(
	ctx context.Context,
	logger *slog.Logger,
	repo *sqlite.Repository,
	engine *tracker.Tracker,
	pageFetcher *fetcher.Fetcher,
	radarBot *bot.Bot,
) {
	pages, err := repo.ListPages(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to list tracked pages", "error", err)
		return
	}
	if len(pages) == 0 {
		logger.InfoContext(ctx, "No tracked pages configured")
		return
	}

	logger.InfoContext(ctx, "Scrape pass started", "pages", len(pages))
	changes := engine.RunAll(ctx, pageFetcher, pages)
	logger.InfoContext(ctx, "Scrape pass finished", "changes", changes)

	if changes > 0 {
		if err = radarBot.NotifyChanges(ctx); err != nil {
			logger.ErrorContext(ctx, "Failed to notify changes", "error", err)
		}
	}
}

// setupLogger initializes and returns a logger based on the environment provided.
func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelDebug,
				AddSource: true,
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					return a
				},
			}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelInfo,
				AddSource: false,
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					return a
				},
			}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelWarn,
				AddSource: false,
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					if a.Key == slog.TimeKey {
						return slog.Attr{}
					}
					return a
				},
			}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelError,
				AddSource: false,
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					if a.Key == slog.TimeKey {
						return slog.Attr{}
					}
					return a
				},
			}),
		)

		log.Error(
			"The env parameter was not specified	 or was invalid. Logging will be minimal, by default.",
			slog.String("available_envs", "local, development, production"))
	}

	return log
}
