package main

import (
	"chat-session/domain"
	"chat-session/repositories"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mama165/sdk-go/database"
)

// RecordMapper renders session records and archived messages in the debug inspector.
func RecordMapper(key string, val []byte) database.InspectRow {
	row := database.DefaultMapper(key, val)

	switch {
	case key == repositories.RecordPrefix+string(domain.RoomsRecord):
		var rooms []domain.Room
		if err := json.Unmarshal(val, &rooms); err != nil {
			row.Detail = "Error: unmarshal failed"
			return row
		}
		row.Type = "ROOMS"
		row.Detail = fmt.Sprintf("%d rooms", len(rooms))
	case key == repositories.RecordPrefix+string(domain.MessagesRecord):
		var messages map[domain.RoomID][]domain.Message
		if err := json.Unmarshal(val, &messages); err != nil {
			row.Detail = "Error: unmarshal failed"
			return row
		}
		total := 0
		for _, log := range messages {
			total += len(log)
		}
		row.Type = "MESSAGES"
		row.Detail = fmt.Sprintf("%d messages in %d rooms", total, len(messages))
	case strings.HasPrefix(key, repositories.ArchivePrefix):
		var message domain.Message
		if err := json.Unmarshal(val, &message); err != nil {
			row.Detail = "Error: unmarshal failed"
			return row
		}
		row.Type = strings.ToUpper(string(message.Sender))
		row.Detail = message.Content
	}
	return row
}
