// Package main runs gemweb, an OpenAI-compatible chat completion API that
// answers requests by driving the Gemini web UI through an automated
// browser session.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/entrhq/gemweb/pkg/bridge"
	"github.com/entrhq/gemweb/pkg/browser"
	"github.com/entrhq/gemweb/pkg/config"
	"github.com/entrhq/gemweb/pkg/dispatch"
	"github.com/entrhq/gemweb/pkg/logging"
	"github.com/entrhq/gemweb/pkg/server"
	"github.com/entrhq/gemweb/pkg/session"
)

const version = "0.1.0"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	envFile := flag.String("env", "", "optional .env file to load before reading configuration")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	if *showVersion {
		fmt.Printf("gemweb v%s\n", version)
		return
	}

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			fmt.Fprintf(os.Stderr, "failed to load env file %s: %v\n", *envFile, err)
			os.Exit(1)
		}
	} else {
		// Best effort: a .env in the working directory is optional.
		_ = godotenv.Load()
	}

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	selectors, err := config.LoadSelectors(cfg.SelectorFile)
	if err != nil {
		return fmt.Errorf("failed to load selector overrides: %w", err)
	}

	store := session.NewStore(cfg.StateDir, cfg.ProfileDir())

	driver := browser.NewDriver(browser.Options{
		TargetURL:    cfg.TargetURL,
		Headless:     cfg.Headless,
		PollInterval: cfg.PollInterval,
		StablePolls:  cfg.StablePolls,
		LoginWait:    cfg.LoginWait,
		Selectors:    selectors,
	}, store, logger)

	startCtx, cancelStart := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancelStart()
	if err := driver.Start(startCtx); err != nil {
		return fmt.Errorf("browser launch failed: %w", err)
	}
	defer func() {
		if err := driver.Close(); err != nil {
			logger.Warn("browser close failed", "error", err)
		}
	}()

	loginCtx, cancelLogin := context.WithTimeout(context.Background(), cfg.LoginWait)
	defer cancelLogin()
	if err := driver.EnsureLoggedIn(loginCtx); err != nil {
		return fmt.Errorf("initial login failed: %w", err)
	}
	logger.Info("session ready", "target", cfg.TargetURL, "headless", cfg.Headless)

	serializer := dispatch.NewSerializer(driver, 0, cfg.QueueMaxWait, logger)
	defer serializer.Close()

	var transcript *logging.Transcript
	if cfg.TranscriptLog {
		transcript, err = logging.NewTranscript(cfg.LogDir())
		if err != nil {
			logger.Warn("transcript file unavailable, falling back to stderr", "error", err)
		}
		defer transcript.Close()
		logger.Info("transcript logging enabled", "run_id", transcript.RunID())
	}

	handler := server.NewHandler(
		serializer,
		driver,
		store,
		&bridge.Encoder{CharLimit: cfg.PromptCharLimit},
		cfg.ReplyTimeout,
		logger,
		transcript,
	)

	srv := server.NewServer(cfg.Addr, handler, logger)
	return srv.ListenAndServe()
}
