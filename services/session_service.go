package services

import (
	"chat-session/contract"
	"chat-session/domain"
	"chat-session/runtime"
	"context"
	"fmt"
	"log/slog"
)

// ISessionService is the only surface the presentation layer talks to:
// a read of the whole session plus the named mutations.
type ISessionService interface {
	State() domain.SessionState
	VisibleRooms() []domain.Room
	CreateRoom(title string) (domain.Room, error)
	DeleteRoom(roomID domain.RoomID)
	SelectRoom(roomID domain.RoomID) error
	FilterRooms(query string) []domain.Room
	SetSearchQuery(query string)
	SendTurn(ctx context.Context, roomID domain.RoomID, draft domain.Draft) (*runtime.Turn, error)
	LoadOlder(ctx context.Context, roomID domain.RoomID) ([]domain.Message, error)
	TurnState(roomID domain.RoomID) runtime.TurnState
	Failures() <-chan error
}

// SnapshotLoader reads the durable records back at startup.
type SnapshotLoader interface {
	Load() (domain.Snapshot, error)
}

type Options struct {
	HistoryBatchSize int
	ExhaustionCount  int
	Turn             runtime.TurnOptions
}

type SessionService struct {
	state    *runtime.State
	rooms    *runtime.RoomRegistry
	messages *runtime.MessageLog
	turns    *runtime.TurnOrchestrator
	failures <-chan error
	log      *slog.Logger
}

// Hydrate fills a fresh state from durable storage. It runs once, before the
// service is built.
func Hydrate(loader SnapshotLoader, state *runtime.State) error {
	snapshot, err := loader.Load()
	if err != nil {
		return fmt.Errorf("hydrate session: %w", err)
	}
	state.Restore(snapshot)
	return nil
}

func NewSessionService(state *runtime.State, clock contract.Clock, replier contract.ReplyGenerator,
	history contract.HistoryFetcher, failures <-chan error, log *slog.Logger, options Options) *SessionService {
	rooms := runtime.NewRoomRegistry(state, clock, log)
	return &SessionService{
		state:    state,
		rooms:    rooms,
		messages: runtime.NewMessageLog(state, history, log, options.HistoryBatchSize, options.ExhaustionCount),
		turns:    runtime.NewTurnOrchestrator(state, rooms, clock, replier, log, options.Turn),
		failures: failures,
		log:      log,
	}
}

func (s *SessionService) State() domain.SessionState {
	return s.state.Snapshot()
}

// VisibleRooms applies the current search query.
func (s *SessionService) VisibleRooms() []domain.Room {
	return s.rooms.FilterRooms(s.state.SearchQuery())
}

func (s *SessionService) CreateRoom(title string) (domain.Room, error) {
	return s.rooms.CreateRoom(title)
}

func (s *SessionService) DeleteRoom(roomID domain.RoomID) {
	s.rooms.DeleteRoom(roomID)
}

func (s *SessionService) SelectRoom(roomID domain.RoomID) error {
	return s.rooms.SelectRoom(roomID)
}

func (s *SessionService) FilterRooms(query string) []domain.Room {
	return s.rooms.FilterRooms(query)
}

func (s *SessionService) SetSearchQuery(query string) {
	s.state.SetSearchQuery(query)
}

// SendTurn returns once the user message is in the log. An empty roomID
// starts a new room from the draft.
func (s *SessionService) SendTurn(ctx context.Context, roomID domain.RoomID, draft domain.Draft) (*runtime.Turn, error) {
	return s.turns.SendTurn(ctx, roomID, draft)
}

func (s *SessionService) LoadOlder(ctx context.Context, roomID domain.RoomID) ([]domain.Message, error) {
	return s.messages.LoadOlder(ctx, roomID)
}

func (s *SessionService) TurnState(roomID domain.RoomID) runtime.TurnState {
	return s.state.TurnState(roomID)
}

// Failures carries write-through errors to report to the user.
func (s *SessionService) Failures() <-chan error {
	return s.failures
}
