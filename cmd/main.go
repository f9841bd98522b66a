package main

import (
	"chat-session/clock"
	"chat-session/contract"
	"chat-session/internal"
	"chat-session/repositories"
	"chat-session/runtime"
	"chat-session/runtime/workers"
	"chat-session/services"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/database"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes to provide meaningful status to the operating system.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Session terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires storage, the record writer and the session service, then hands
// stdin to the console until it quits or a signal arrives.
// Deferred cleanup runs before the process exits.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	logger := logs.GetLoggerFromString(config.LogLevel)

	// 2. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Database (BadgerDB)
	db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	if logger.Enabled(ctx, slog.LevelDebug) {
		endpoint := "/inspect"
		logger.Info("Debug Badger inspector available", "url", fmt.Sprintf("http://localhost:%d%s", config.DebugPort, endpoint))
		database.StartDebugServer(db, config.DebugPort, endpoint, RecordMapper)
	}

	// 4. Records & Supervision
	records := repositories.NewRecordRepository(db, logger)
	writer := workers.NewRecordWriter(records, logger, config.FailureBuffer)
	sup := workers.NewSupervisor(logger, config.RestartInterval)
	sup.Add(writer)

	supervised := make(chan struct{})
	go func() {
		defer close(supervised)
		sup.Run(ctx)
	}()
	defer func() {
		sup.Stop()
		<-supervised
		if err := writer.Flush(); err != nil {
			logger.Error("Final flush failed", "error", err)
		}
	}()

	// 5. Session
	state := runtime.NewState(writer, logger)
	var history contract.HistoryFetcher = runtime.EmptyHistory{}
	if config.ArchiveHistory {
		archive := repositories.NewMessageArchive(db, logger)
		state.WithArchiver(archive)
		history = archive
	}
	if err := services.Hydrate(repositories.NewSessionRepository(records, logger), state); err != nil {
		return exitRuntime, err
	}

	systemClock := clock.System{}
	session := services.NewSessionService(state, systemClock,
		runtime.NewCannedReplier(systemClock, config.MinThinkTime, config.MaxThinkTime),
		history, writer.Failures(), logger,
		services.Options{
			HistoryBatchSize: config.HistoryBatchSize,
			ExhaustionCount:  config.HistoryExhaustionThreshold,
			Turn: runtime.TurnOptions{
				ReplyTimeout:  config.ReplyTimeout,
				MaxImageBytes: config.MaxImageBytes,
			},
		})

	// 6. Console
	done := make(chan error, 1)
	go func() {
		done <- NewConsole(session, os.Stdout).Run(ctx, os.Stdin)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-done:
		if err != nil {
			return exitRuntime, fmt.Errorf("console error: %w", err)
		}
	}

	logger.Info("Session stopped cleanly")
	return exitOK, nil
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)

	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG).
			WithBypassLockGuard(true)
	} else {
		options = options.WithLoggingLevel(badger.WARNING)
	}

	return options
}
