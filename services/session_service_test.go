package services

import (
	"chat-session/clock"
	"chat-session/domain"
	"chat-session/errors"
	"chat-session/mocks"
	"chat-session/repositories"
	"chat-session/runtime"
	"chat-session/runtime/workers"
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type session struct {
	service *SessionService
	clock   *clock.Fake
	writer  *workers.RecordWriter
}

// startSession hydrates a session from db the way the binary does.
func startSession(t *testing.T, db *badger.DB) session {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	store := repositories.NewRecordRepository(db, log)
	writer := workers.NewRecordWriter(store, log, 8)
	fake := clock.NewFake(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	state := runtime.NewState(writer, log)
	require.NoError(t, Hydrate(repositories.NewSessionRepository(store, log), state))

	service := NewSessionService(state, fake,
		runtime.NewCannedReplier(fake, runtime.DefaultMinThinkTime, runtime.DefaultMaxThinkTime),
		runtime.EmptyHistory{}, writer.Failures(), log, Options{})
	return session{service: service, clock: fake, writer: writer}
}

func openDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSessionService_Hello_Scenario(t *testing.T) {
	req := require.New(t)
	s := startSession(t, openDB(t))
	ctx := context.Background()

	// Given a new room
	room, err := s.service.CreateRoom("")
	req.NoError(err)

	// When "hello" is sent and answered
	turn, err := s.service.SendTurn(ctx, room.ID, domain.Draft{Content: "hello"})
	req.NoError(err)
	reply, err := turn.Wait(ctx)
	req.NoError(err)

	// Then the room summarizes the agent reply
	state := s.service.State()
	req.Equal(2, state.Rooms[0].MessageCount)
	req.Equal(domain.Preview(reply.Content), *state.Rooms[0].LastMessagePreview)
	req.LessOrEqual(len([]rune(*state.Rooms[0].LastMessagePreview)), 53)
}

func TestSessionService_Busy_Scenario(t *testing.T) {
	req := require.New(t)
	s := startSession(t, openDB(t))
	ctx := context.Background()

	room, err := s.service.CreateRoom("")
	req.NoError(err)

	s.clock.Hold()
	first, err := s.service.SendTurn(ctx, room.ID, domain.Draft{Content: "one"})
	req.NoError(err)
	req.Equal(runtime.AwaitingReply, s.service.TurnState(room.ID))

	_, err = s.service.SendTurn(ctx, room.ID, domain.Draft{Content: "two"})
	req.ErrorIs(err, errors.ErrBusy)

	s.clock.Release()
	_, err = first.Wait(ctx)
	req.NoError(err)
	req.Equal(2, s.service.State().Rooms[0].MessageCount)
}

func TestSessionService_Restart_Marks_Persisted_Rooms_As_Having_More(t *testing.T) {
	req := require.New(t)
	db := openDB(t)
	ctx := context.Background()

	// Given a record with room r1 holding 5 messages
	store := repositories.NewRecordRepository(db, slog.Default())
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	room := domain.Room{ID: "r1", Title: "Chat 1", CreatedAt: at}
	var log []domain.Message
	for i := 0; i < 5; i++ {
		log = append(log, domain.AgentMessage("r1", fmt.Sprintf("m%d", i), at.Add(time.Duration(i)*time.Second)))
	}
	room.Summarize(log)
	rooms, err := repositories.Encode([]domain.Room{room})
	req.NoError(err)
	messages, err := repositories.Encode(map[domain.RoomID][]domain.Message{"r1": log})
	req.NoError(err)
	req.NoError(store.Put(domain.RoomsRecord, rooms))
	req.NoError(store.Put(domain.MessagesRecord, messages))

	// When the session starts
	s := startSession(t, db)

	// Then r1 may have older history
	req.True(s.service.State().HasMoreByRoom["r1"])

	// Even though the history port has nothing
	batch, err := s.service.LoadOlder(ctx, "r1")
	req.NoError(err)
	req.Empty(batch)
	req.Len(s.service.State().MessagesByRoom["r1"], 5)
	req.True(s.service.State().HasMoreByRoom["r1"])
}

func TestSessionService_State_Survives_Restart(t *testing.T) {
	req := require.New(t)
	db := openDB(t)
	ctx := context.Background()

	s := startSession(t, db)
	turn, err := s.service.SendTurn(ctx, "", domain.Draft{Content: "remember me"})
	req.NoError(err)
	_, err = turn.Wait(ctx)
	req.NoError(err)
	deleted, err := s.service.CreateRoom("to delete")
	req.NoError(err)
	s.service.DeleteRoom(deleted.ID)
	req.NoError(s.writer.Flush())
	before := s.service.State()

	restarted := startSession(t, db)
	after := restarted.service.State()

	req.Equal(before.Rooms, after.Rooms)
	req.Equal(before.MessagesByRoom, after.MessagesByRoom)
	req.Len(after.Rooms, 1)
	req.Equal("remember me", after.Rooms[0].Title)
	req.True(after.HasMoreByRoom[after.Rooms[0].ID])
	// The selection is not persisted
	req.Nil(after.CurrentRoomID)
}

func TestSessionService_Search(t *testing.T) {
	req := require.New(t)
	s := startSession(t, openDB(t))

	for _, title := range []string{"Lisbon trip", "Budget", "Trip photos"} {
		_, err := s.service.CreateRoom(title)
		req.NoError(err)
	}

	req.Len(s.service.VisibleRooms(), 3)
	s.service.SetSearchQuery("TRIP")
	visible := s.service.VisibleRooms()
	req.Len(visible, 2)
	req.Equal("Trip photos", visible[0].Title)
	req.Equal("Lisbon trip", visible[1].Title)
	req.Equal(visible, s.service.FilterRooms("trip"))
	req.Equal("TRIP", s.service.State().SearchQuery)
}

func TestSessionService_Select_And_Delete(t *testing.T) {
	req := require.New(t)
	s := startSession(t, openDB(t))

	first, err := s.service.CreateRoom("first")
	req.NoError(err)
	_, err = s.service.CreateRoom("second")
	req.NoError(err)

	req.NoError(s.service.SelectRoom(first.ID))
	req.ErrorIs(s.service.SelectRoom("missing"), errors.ErrNotFound)

	s.service.DeleteRoom(first.ID)
	state := s.service.State()
	req.Nil(state.CurrentRoomID)
	req.Len(state.Rooms, 1)
}

func TestSessionService_Persistence_Failure_Is_Surfaced(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	store := mocks.NewMockRecordStore(ctrl)
	log := slog.Default()
	writer := workers.NewRecordWriter(store, log, 4)
	fake := clock.NewFake(time.Now())

	store.EXPECT().Put(gomock.Any(), gomock.Any()).Return(fmt.Errorf("disk full")).AnyTimes()

	state := runtime.NewState(writer, log)
	service := NewSessionService(state, fake, runtime.NewCannedReplier(fake, 0, 0),
		runtime.EmptyHistory{}, writer.Failures(), log, Options{})

	// When a mutation cannot be persisted
	room, err := service.CreateRoom("kept in memory")
	req.NoError(err)
	req.ErrorIs(writer.Flush(), errors.ErrPersistenceFailure)

	// Then memory stays correct and the failure reaches the caller
	req.Equal(room.ID, service.State().Rooms[0].ID)
	select {
	case failure := <-service.Failures():
		req.ErrorIs(failure, errors.ErrPersistenceFailure)
	default:
		req.Fail("failure should have been surfaced")
	}
}
