package runtime

import (
	"chat-session/clock"
	"chat-session/contract"
	"chat-session/mocks"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"go.uber.org/mock/gomock"
)

type fixture struct {
	state  *State
	clock  *clock.Fake
	writer *mocks.MockRecordWriter
	rooms  *RoomRegistry
	log    *MessageLog
	turns  *TurnOrchestrator
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	history contract.HistoryFetcher
	replier contract.ReplyGenerator
	options TurnOptions
	strict  bool
}

func withHistory(h contract.HistoryFetcher) fixtureOption {
	return func(c *fixtureConfig) { c.history = h }
}

func withReplier(r contract.ReplyGenerator) fixtureOption {
	return func(c *fixtureConfig) { c.replier = r }
}

func withTurnOptions(o TurnOptions) fixtureOption {
	return func(c *fixtureConfig) { c.options = o }
}

// withStrictWriter leaves write-through expectations to the test.
func withStrictWriter() fixtureOption {
	return func(c *fixtureConfig) { c.strict = true }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	fake := clock.NewFake(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	cfg := fixtureConfig{history: EmptyHistory{}}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.replier == nil {
		cfg.replier = NewCannedReplier(fake, DefaultMinThinkTime, DefaultMaxThinkTime)
	}

	writer := mocks.NewMockRecordWriter(ctrl)
	if !cfg.strict {
		writer.EXPECT().Submit(gomock.Any(), gomock.Any()).AnyTimes()
	}

	state := NewState(writer, log)
	rooms := NewRoomRegistry(state, fake, log)
	return &fixture{
		state:  state,
		clock:  fake,
		writer: writer,
		rooms:  rooms,
		log:    NewMessageLog(state, cfg.history, log, DefaultHistoryBatchSize, DefaultExhaustionCount),
		turns:  NewTurnOrchestrator(state, rooms, fake, cfg.replier, log, cfg.options),
	}
}
