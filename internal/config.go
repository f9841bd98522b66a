package internal

import (
	"fmt"
	"time"
)

type Config struct {
	BadgerFilepath             string        `env:"BADGER_FILEPATH,required=true"`
	LogLevel                   string        `env:"LOG_LEVEL,default=INFO"`
	MinThinkTime               time.Duration `env:"MIN_THINK_TIME,default=2s"`
	MaxThinkTime               time.Duration `env:"MAX_THINK_TIME,default=4s"`
	ReplyTimeout               time.Duration `env:"REPLY_TIMEOUT,default=0s"`
	HistoryBatchSize           int           `env:"HISTORY_BATCH_SIZE,default=20"`
	HistoryExhaustionThreshold int           `env:"HISTORY_EXHAUSTION_THRESHOLD,default=100"`
	ArchiveHistory             bool          `env:"ARCHIVE_HISTORY,default=false"`
	MaxImageBytes              int           `env:"MAX_IMAGE_BYTES,default=5242880"`
	RestartInterval            time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	FailureBuffer              int           `env:"FAILURE_BUFFER,default=16"`
	DebugPort                  int           `env:"DEBUG_PORT,default=8081"`
}

// Validate rejects combinations the session engine cannot run with.
func (c Config) Validate() error {
	if c.MinThinkTime < 0 || c.MaxThinkTime < c.MinThinkTime {
		return fmt.Errorf("think time range [%s, %s] is invalid", c.MinThinkTime, c.MaxThinkTime)
	}
	if c.ReplyTimeout < 0 {
		return fmt.Errorf("REPLY_TIMEOUT must not be negative, got %s", c.ReplyTimeout)
	}
	if c.HistoryBatchSize <= 0 || c.HistoryExhaustionThreshold <= 0 {
		return fmt.Errorf("history batch size and exhaustion threshold must be positive")
	}
	if c.MaxImageBytes <= 0 {
		return fmt.Errorf("MAX_IMAGE_BYTES must be positive, got %d", c.MaxImageBytes)
	}
	return nil
}
