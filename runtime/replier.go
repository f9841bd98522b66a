package runtime

import (
	"chat-session/contract"
	"chat-session/domain"
	"context"
	"time"
)

const (
	DefaultMinThinkTime = 2 * time.Second
	DefaultMaxThinkTime = 4 * time.Second
)

var cannedReplies = []string{
	"That's an interesting question! Let me help you with that.",
	"I understand what you're asking. Here's what I think...",
	"Great point! Based on what you've shared, I'd suggest...",
	"Thanks for sharing that with me. Here's my perspective...",
	"I can help you with that. Let me break it down for you...",
	"That's a thoughtful question. Here's what I recommend...",
}

// CannedReplier stands in for a language model: it thinks for a random time
// in [MinThinkTime, MaxThinkTime) and answers with one of a fixed set of replies.
// It never fails on its own.
type CannedReplier struct {
	clock        contract.Clock
	MinThinkTime time.Duration
	MaxThinkTime time.Duration
}

func NewCannedReplier(clock contract.Clock, minThinkTime, maxThinkTime time.Duration) CannedReplier {
	if minThinkTime <= 0 {
		minThinkTime = DefaultMinThinkTime
	}
	if maxThinkTime < minThinkTime {
		maxThinkTime = minThinkTime
	}
	return CannedReplier{clock: clock, MinThinkTime: minThinkTime, MaxThinkTime: maxThinkTime}
}

func (c CannedReplier) Reply(ctx context.Context, _ contract.TurnContext) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-c.clock.After(c.clock.RandomDelay(c.MinThinkTime, c.MaxThinkTime)):
	}
	return c.clock.RandomChoice(cannedReplies), nil
}

// CannedReplies lists the replies CannedReplier picks from.
func CannedReplies() []string {
	return append([]string(nil), cannedReplies...)
}

// EmptyHistory is the history port of a session without a backing archive:
// there is never anything older to load.
type EmptyHistory struct{}

func (EmptyHistory) FetchBefore(context.Context, domain.RoomID, domain.Cursor, int) ([]domain.Message, error) {
	return nil, nil
}
