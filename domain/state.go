package domain

// SessionState is the read model handed to the presentation layer.
// It is a copy: mutating it has no effect on the session.
type SessionState struct {
	Rooms          []Room
	CurrentRoomID  *RoomID
	MessagesByRoom map[RoomID][]Message
	HasMoreByRoom  map[RoomID]bool
	TypingByRoom   map[RoomID]bool
	SearchQuery    string
}

// RecordKey names one of the durable records.
type RecordKey string

const (
	RoomsRecord    RecordKey = "rooms"
	MessagesRecord RecordKey = "messages"
)

// Snapshot is what hydrate reads back from durable storage.
// A nil field means the record was never written.
type Snapshot struct {
	Rooms    []Room
	Messages map[RoomID][]Message
}
