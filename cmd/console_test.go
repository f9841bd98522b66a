package main

import (
	"bytes"
	"chat-session/clock"
	"chat-session/domain"
	"chat-session/repositories"
	"chat-session/runtime"
	"chat-session/runtime/workers"
	"chat-session/services"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func newConsole(t *testing.T) (*Console, *services.SessionService, *bytes.Buffer) {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	writer := workers.NewRecordWriter(repositories.NewRecordRepository(db, log), log, 4)
	fake := clock.NewFake(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	session := services.NewSessionService(runtime.NewState(writer, log), fake,
		runtime.NewCannedReplier(fake, runtime.DefaultMinThinkTime, runtime.DefaultMaxThinkTime),
		runtime.EmptyHistory{}, writer.Failures(), log, services.Options{})

	out := &bytes.Buffer{}
	return NewConsole(session, out), session, out
}

func TestConsole_Message_Starts_A_Room(t *testing.T) {
	req := require.New(t)
	console, session, out := newConsole(t)

	// When a plain line is typed with no room selected
	quit := console.Handle(context.Background(), "hello there")

	// Then a room titled after the message holds the whole turn
	req.False(quit)
	state := session.State()
	req.Len(state.Rooms, 1)
	req.Equal("hello there", state.Rooms[0].Title)
	req.Len(state.MessagesByRoom[state.Rooms[0].ID], 2)
	req.Contains(out.String(), "you: hello there")
	req.Contains(out.String(), "agent: "+runtime.CannedReplies()[0])
}

func TestConsole_Room_Commands(t *testing.T) {
	req := require.New(t)
	console, session, out := newConsole(t)
	ctx := context.Background()

	// Given two rooms
	console.Handle(ctx, "/new Trip to Rome")
	console.Handle(ctx, "/new Groceries")
	req.Len(session.State().Rooms, 2)

	// When searching
	console.Handle(ctx, "/search rome")

	// Then only the matching room is listed
	req.Len(session.VisibleRooms(), 1)
	req.Contains(out.String(), "Trip to Rome")

	// When the matching room is deleted
	rome := session.VisibleRooms()[0].ID
	console.Handle(ctx, "/delete "+string(rome))

	// Then it is gone
	req.Empty(session.VisibleRooms())
	req.Len(session.State().Rooms, 1)
}

func TestConsole_Select_Unknown_Room(t *testing.T) {
	req := require.New(t)
	console, _, out := newConsole(t)

	console.Handle(context.Background(), "/select nope")

	req.Contains(out.String(), "room not found")
}

func TestConsole_Image_Command(t *testing.T) {
	req := require.New(t)
	console, session, _ := newConsole(t)

	// Given a PNG on disk
	png := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}
	path := filepath.Join(t.TempDir(), "pic.png")
	req.NoError(os.WriteFile(path, png, 0o600))

	// When it is sent
	console.Handle(context.Background(), "/image "+path)

	// Then an image message is logged with its data URL
	state := session.State()
	req.Len(state.Rooms, 1)
	first := state.MessagesByRoom[state.Rooms[0].ID][0]
	req.Equal(domain.MessageImage, first.Type)
	req.True(strings.HasPrefix(first.ImageRef, "data:image/png;base64,"))
}

func TestConsole_Run_Stops_On_Quit(t *testing.T) {
	req := require.New(t)
	console, session, _ := newConsole(t)

	err := console.Run(context.Background(), strings.NewReader("/new First\n/quit\n/new Second\n"))

	req.NoError(err)
	req.Len(session.State().Rooms, 1)
}
