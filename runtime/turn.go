package runtime

import (
	"chat-session/contract"
	"chat-session/domain"
	"chat-session/domain/mimetypes"
	"chat-session/errors"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
)

const DefaultMaxImageBytes = 5 * 1024 * 1024

// TurnState is the per-room state of a conversation turn.
// Resolved and Failed fold back to Idle as soon as they are reached.
type TurnState int

const (
	Idle TurnState = iota
	Sending
	AwaitingReply
	Resolved
	Failed
)

func (s TurnState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Sending:
		return "sending"
	case AwaitingReply:
		return "awaiting_reply"
	case Resolved:
		return "resolved"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("TurnState(%d)", int(s))
	}
}

// Turn is an accepted send. The user message is already in the log; Wait
// returns the agent reply or the failure of the reply phase.
type Turn struct {
	RoomID      domain.RoomID
	UserMessage domain.Message
	done        chan struct{}
	reply       domain.Message
	err         error
}

func (t *Turn) Done() <-chan struct{} {
	return t.done
}

func (t *Turn) Wait(ctx context.Context) (domain.Message, error) {
	select {
	case <-ctx.Done():
		return domain.Message{}, ctx.Err()
	case <-t.done:
		return t.reply, t.err
	}
}

type TurnOptions struct {
	// ReplyTimeout bounds the reply phase; zero waits forever.
	ReplyTimeout  time.Duration
	MaxImageBytes int
}

// TurnOrchestrator runs the optimistic send then reply protocol, one turn per room at a time.
type TurnOrchestrator struct {
	state    *State
	rooms    *RoomRegistry
	clock    contract.Clock
	replier  contract.ReplyGenerator
	validate *validator.Validate
	log      *slog.Logger
	options  TurnOptions
}

func NewTurnOrchestrator(state *State, rooms *RoomRegistry, clock contract.Clock,
	replier contract.ReplyGenerator, log *slog.Logger, options TurnOptions) *TurnOrchestrator {
	if options.MaxImageBytes <= 0 {
		options.MaxImageBytes = DefaultMaxImageBytes
	}
	return &TurnOrchestrator{
		state:    state,
		rooms:    rooms,
		clock:    clock,
		replier:  replier,
		validate: validator.New(),
		log:      log,
		options:  options,
	}
}

// SendTurn appends the user message, raises the typing flag and starts the
// reply phase. With an empty roomID a room titled after the draft is created
// first, within the same critical section.
func (o *TurnOrchestrator) SendTurn(ctx context.Context, roomID domain.RoomID, draft domain.Draft) (*Turn, error) {
	draft, err := o.checkDraft(draft)
	if err != nil {
		return nil, err
	}

	o.state.mu.Lock()
	if roomID == "" {
		room, err := o.rooms.createLocked(domain.TitleFromDraft(draft))
		if err != nil {
			o.state.mu.Unlock()
			return nil, err
		}
		roomID = room.ID
	}
	if !o.state.existsLocked(roomID) {
		o.state.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", errors.ErrNotFound, roomID)
	}
	if current := o.state.turns[roomID]; current != Idle {
		o.state.mu.Unlock()
		return nil, fmt.Errorf("%w: turn %s in room %s", errors.ErrBusy, current, roomID)
	}

	o.transitionLocked(roomID, Sending)
	message := domain.UserMessage(roomID, draft, o.clock.Now())
	o.state.appendLocked(message)
	o.transitionLocked(roomID, AwaitingReply)
	o.state.typing[roomID] = true
	o.state.mu.Unlock()

	o.state.archive(message)

	turn := &Turn{RoomID: roomID, UserMessage: message, done: make(chan struct{})}
	go o.awaitReply(context.WithoutCancel(ctx), turn)
	return turn, nil
}

func (o *TurnOrchestrator) checkDraft(draft domain.Draft) (domain.Draft, error) {
	if draft.IsEmpty() {
		return domain.Draft{}, fmt.Errorf("%w: empty draft", errors.ErrInvalidInput)
	}
	if err := o.validate.Struct(draft); err != nil {
		return domain.Draft{}, fmt.Errorf("%w: %w", errors.ErrInvalidInput, err)
	}
	if draft.ImageRef != "" {
		if err := mimetypes.CheckImageRef(draft.ImageRef, o.options.MaxImageBytes); err != nil {
			return domain.Draft{}, fmt.Errorf("%w: %w", errors.ErrInvalidInput, err)
		}
	}
	return draft.Normalize(), nil
}

func (o *TurnOrchestrator) awaitReply(ctx context.Context, turn *Turn) {
	defer close(turn.done)

	if o.options.ReplyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.options.ReplyTimeout)
		defer cancel()
	}

	content, err := o.replier.Reply(ctx, contract.TurnContext{RoomID: turn.RoomID, Trigger: turn.UserMessage})
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}

	o.state.mu.Lock()
	roomID := turn.RoomID
	o.state.typing[roomID] = false

	switch {
	case !o.state.existsLocked(roomID):
		delete(o.state.typing, roomID)
		delete(o.state.turns, roomID)
		turn.err = fmt.Errorf("%w: %s deleted before the reply", errors.ErrNotFound, roomID)
		o.state.mu.Unlock()
		o.log.Info("Reply discarded, room is gone", "room_id", roomID)
		return
	case err != nil:
		o.transitionLocked(roomID, Failed)
		o.transitionLocked(roomID, Idle)
		turn.err = fmt.Errorf("%w: %w", errors.ErrReplyFailure, err)
		o.state.mu.Unlock()
		o.log.Warn("Turn failed", "room_id", roomID, "message_id", turn.UserMessage.ID, "error", err)
		return
	}

	at := o.clock.Now()
	if !at.After(turn.UserMessage.Timestamp) {
		at = turn.UserMessage.Timestamp.Add(time.Nanosecond)
	}
	reply := domain.AgentMessage(roomID, content, at)
	o.state.appendLocked(reply)
	o.transitionLocked(roomID, Resolved)
	o.transitionLocked(roomID, Idle)
	turn.reply = reply
	o.state.mu.Unlock()

	o.state.archive(reply)
}

func (o *TurnOrchestrator) transitionLocked(roomID domain.RoomID, next TurnState) {
	previous := o.state.turns[roomID]
	if next == Idle {
		delete(o.state.turns, roomID)
	} else {
		o.state.turns[roomID] = next
	}
	o.log.Debug("Turn transition", "room_id", roomID, "from", previous, "to", next)
}
