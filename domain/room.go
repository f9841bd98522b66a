// Package domain contains core concepts of the chat session engine.
// This file defines Rooms and the rules deriving their summary fields.
// No runtime, storage, or UI logic should be added here.
package domain

import (
	"fmt"
	"time"
	"unicode/utf8"
)

type RoomID string

const (
	MaxTitleLength   = 50
	PreviewLength    = 50
	draftTitleLength = 30
	ellipsis         = "..."
)

// Room is a named conversation thread.
// LastMessagePreview and MessageCount are derived from the room's message log
// and must only be written through Summarize.
type Room struct {
	ID                 RoomID    `json:"id"`
	Title              string    `json:"title" validate:"required,min=1,max=50"`
	CreatedAt          time.Time `json:"createdAt"`
	LastMessagePreview *string   `json:"lastMessagePreview,omitempty"`
	MessageCount       int       `json:"messageCount"`
}

// Summarize recomputes the derived fields of the room from its full log.
func (r *Room) Summarize(log []Message) {
	r.MessageCount = len(log)
	if len(log) == 0 {
		r.LastMessagePreview = nil
		return
	}
	preview := Preview(log[len(log)-1].Content)
	r.LastMessagePreview = &preview
}

// IsStale reports whether the stored summary disagrees with the log.
func (r Room) IsStale(log []Message) bool {
	expected := Room{}
	expected.Summarize(log)
	if r.MessageCount != expected.MessageCount {
		return true
	}
	switch {
	case r.LastMessagePreview == nil && expected.LastMessagePreview == nil:
		return false
	case r.LastMessagePreview == nil || expected.LastMessagePreview == nil:
		return true
	default:
		return *r.LastMessagePreview != *expected.LastMessagePreview
	}
}

// Preview truncates content to PreviewLength runes, suffixed with an ellipsis when cut.
func Preview(content string) string {
	return truncate(content, PreviewLength)
}

// DefaultTitle names the n-th room when no title is given.
func DefaultTitle(n int) string {
	return fmt.Sprintf("Chat %d", n)
}

// TitleFromDraft names a room created by its first message.
// The draft is expected to be normalized, so an image-only draft reads "Image".
func TitleFromDraft(d Draft) string {
	if d.Content == "" {
		return imageOnlyContent
	}
	return truncate(d.Content, draftTitleLength)
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + ellipsis
}
