// Package domain contains core concepts of the chat session engine.
// This file defines Message events and related rules.
// Messages are immutable once appended to a room's log.
package domain

import (
	"time"

	"github.com/google/uuid"
)

type MessageID string

type Sender string

const (
	SenderUser  Sender = "user"
	SenderAgent Sender = "agent"
)

type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
)

// Message represents an immutable chat event.
type Message struct {
	ID        MessageID   `json:"id"`
	RoomID    RoomID      `json:"roomId"`
	Sender    Sender      `json:"sender"`
	Type      MessageType `json:"type"`
	Content   string      `json:"content"`
	ImageRef  string      `json:"imageRef,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func NewMessageID() MessageID {
	return MessageID(uuid.NewString())
}

// UserMessage builds the optimistic message of a turn from a normalized draft.
func UserMessage(roomID RoomID, d Draft, at time.Time) Message {
	return Message{
		ID:        NewMessageID(),
		RoomID:    roomID,
		Sender:    SenderUser,
		Type:      d.Type,
		Content:   d.Content,
		ImageRef:  d.ImageRef,
		Timestamp: at,
	}
}

// AgentMessage builds the reply closing a turn.
func AgentMessage(roomID RoomID, content string, at time.Time) Message {
	return Message{
		ID:        NewMessageID(),
		RoomID:    roomID,
		Sender:    SenderAgent,
		Type:      MessageText,
		Content:   content,
		Timestamp: at,
	}
}

// Cursor marks the oldest message currently loaded in a room's log.
// The zero Cursor means nothing is loaded yet.
type Cursor struct {
	MessageID MessageID
	At        time.Time
}

func (c Cursor) IsZero() bool {
	return c.MessageID == ""
}

// CursorOf returns the cursor of a chronologically ordered log.
func CursorOf(log []Message) Cursor {
	if len(log) == 0 {
		return Cursor{}
	}
	return Cursor{MessageID: log[0].ID, At: log[0].Timestamp}
}
