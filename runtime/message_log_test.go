package runtime

import (
	"chat-session/domain"
	"chat-session/errors"
	"chat-session/mocks"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func conversation(roomID domain.RoomID, start time.Time, n int) []domain.Message {
	messages := make([]domain.Message, 0, n)
	for i := 0; i < n; i++ {
		messages = append(messages, domain.AgentMessage(roomID, fmt.Sprintf("message %d", i), start.Add(time.Duration(i)*time.Second)))
	}
	return messages
}

// restoreRoom hydrates the fixture with one room holding log.
func restoreRoom(f *fixture, roomID domain.RoomID, log []domain.Message) {
	room := domain.Room{ID: roomID, Title: "restored", CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	room.Summarize(log)
	f.state.Restore(domain.Snapshot{
		Rooms:    []domain.Room{room},
		Messages: map[domain.RoomID][]domain.Message{roomID: log},
	})
}

func TestMessageLog_Append(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	room, err := f.rooms.CreateRoom("")
	req.NoError(err)
	message := domain.AgentMessage(room.ID, "hello there", f.clock.Now())

	req.NoError(f.log.Append(room.ID, message))

	state := f.state.Snapshot()
	req.Equal([]domain.Message{message}, state.MessagesByRoom[room.ID])
	req.Equal(1, state.Rooms[0].MessageCount)
	req.Equal("hello there", *state.Rooms[0].LastMessagePreview)
	req.Equal(message.ID, f.state.Cursor(room.ID).MessageID)

	// Unknown room, foreign message and duplicate id are rejected
	req.ErrorIs(f.log.Append("missing", domain.AgentMessage("missing", "x", f.clock.Now())), errors.ErrNotFound)
	req.ErrorIs(f.log.Append(room.ID, domain.AgentMessage("elsewhere", "x", f.clock.Now())), errors.ErrInvalidInput)
	req.ErrorIs(f.log.Append(room.ID, message), errors.ErrInvalidInput)
	req.Len(f.state.Snapshot().MessagesByRoom[room.ID], 1)
}

func TestMessageLog_LoadOlder_Noop_Without_More_History(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	history := mocks.NewMockHistoryFetcher(ctrl)
	f := newFixture(t, withHistory(history))

	// Given a brand-new room, hasMore is false
	room, err := f.rooms.CreateRoom("")
	req.NoError(err)

	// Then the port is never asked
	history.EXPECT().FetchBefore(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	batch, err := f.log.LoadOlder(context.Background(), room.ID)
	req.NoError(err)
	req.Empty(batch)
	req.Empty(f.state.Snapshot().MessagesByRoom[room.ID])

	_, err = f.log.LoadOlder(context.Background(), "missing")
	req.ErrorIs(err, errors.ErrNotFound)
}

func TestMessageLog_LoadOlder_Is_Idempotent_Under_Concurrent_Triggers(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	history := mocks.NewMockHistoryFetcher(ctrl)
	f := newFixture(t, withHistory(history))

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	older := conversation("r1", start, 3)
	loaded := conversation("r1", start.Add(time.Hour), 2)
	restoreRoom(f, "r1", loaded)

	entered := make(chan struct{})
	release := make(chan struct{})
	history.EXPECT().
		FetchBefore(gomock.Any(), domain.RoomID("r1"), domain.CursorOf(loaded), DefaultHistoryBatchSize).
		DoAndReturn(func(context.Context, domain.RoomID, domain.Cursor, int) ([]domain.Message, error) {
			close(entered)
			<-release
			return older, nil
		}).
		Times(1)

	var wg sync.WaitGroup
	wg.Add(1)
	var first []domain.Message
	go func() {
		defer wg.Done()
		first, _ = f.log.LoadOlder(context.Background(), "r1")
	}()

	// When a second trigger fires while the first is in flight
	<-entered
	second, err := f.log.LoadOlder(context.Background(), "r1")

	// Then it resolves at once without loading
	req.NoError(err)
	req.Empty(second)

	close(release)
	wg.Wait()
	req.Equal(older, first)

	state := f.state.Snapshot()
	req.Equal(append(append([]domain.Message{}, older...), loaded...), state.MessagesByRoom["r1"])
	req.Equal(5, state.Rooms[0].MessageCount)
	req.Equal(older[0].ID, f.state.Cursor("r1").MessageID)
	req.True(state.HasMoreByRoom["r1"])
}

func TestMessageLog_LoadOlder_Exhausts_Above_Threshold(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	history := mocks.NewMockHistoryFetcher(ctrl)
	f := newFixture(t, withHistory(history))

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	restoreRoom(f, "r1", conversation("r1", start.Add(time.Hour), 95))

	history.EXPECT().
		FetchBefore(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(conversation("r1", start, 10), nil).
		Times(1)

	batch, err := f.log.LoadOlder(context.Background(), "r1")
	req.NoError(err)
	req.Len(batch, 10)

	state := f.state.Snapshot()
	req.Len(state.MessagesByRoom["r1"], 105)
	req.False(state.HasMoreByRoom["r1"])

	// Exhausted: later loads do not reach the port
	batch, err = f.log.LoadOlder(context.Background(), "r1")
	req.NoError(err)
	req.Empty(batch)
}

func TestMessageLog_LoadOlder_Failure_Releases_The_Guard(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	history := mocks.NewMockHistoryFetcher(ctrl)
	f := newFixture(t, withHistory(history))
	restoreRoom(f, "r1", conversation("r1", time.Now().UTC(), 1))

	gomock.InOrder(
		history.EXPECT().FetchBefore(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, fmt.Errorf("backend down")),
		history.EXPECT().FetchBefore(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, nil),
	)

	_, err := f.log.LoadOlder(context.Background(), "r1")
	req.ErrorIs(err, errors.ErrHistoryFailure)

	_, err = f.log.LoadOlder(context.Background(), "r1")
	req.NoError(err)
	req.Len(f.state.Snapshot().MessagesByRoom["r1"], 1)
}

func TestMessageLog_LoadOlder_Skips_Known_Messages(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	history := mocks.NewMockHistoryFetcher(ctrl)
	f := newFixture(t, withHistory(history))
	loaded := conversation("r1", time.Now().UTC(), 2)
	restoreRoom(f, "r1", loaded)

	history.EXPECT().FetchBefore(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(loaded[:1], nil)

	batch, err := f.log.LoadOlder(context.Background(), "r1")
	req.NoError(err)
	req.Empty(batch)
	req.Equal(loaded, f.state.Snapshot().MessagesByRoom["r1"])
}
