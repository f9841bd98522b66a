package main

import (
	"chat-session/domain"
	"chat-session/repositories"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/kelseyhightower/envconfig"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
)

type inspectConfig struct {
	BadgerFilepath string `envconfig:"BADGER_FILEPATH" default:"./data/badger"`
	LogLevel       string `envconfig:"LOG_LEVEL" default:"WARN"`
}

// Lists the persisted rooms of a session store, flagging summaries that
// disagree with their message log.
func main() {
	var cfg inspectConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatal("Error while reading config: ", err)
	}
	dbPath := flag.String("db", cfg.BadgerFilepath, "Path to badger DB")
	flag.Parse()

	db, err := badger.Open(badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithLoggingLevel(badger.ERROR))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	logger := logs.GetLoggerFromString(cfg.LogLevel)
	snapshot, err := repositories.NewSessionRepository(repositories.NewRecordRepository(db, logger), logger).Load()
	if err != nil {
		log.Fatal(err)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Room", "Title", "Created", "Count", "Logged", "Last message", "Stale"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, room := range snapshot.Rooms {
		messages := snapshot.Messages[room.ID]
		preview := ""
		if room.LastMessagePreview != nil {
			preview = *room.LastMessagePreview
		}
		stale := ""
		if _, ok := snapshot.Messages[room.ID]; ok && room.IsStale(messages) {
			stale = "yes"
		}
		table.Append([]string{
			shortID(room.ID),
			room.Title,
			room.CreatedAt.Format("2006-01-02 15:04:05"),
			fmt.Sprint(room.MessageCount),
			fmt.Sprint(len(messages)),
			preview,
			stale,
		})
	}
	table.Render()

	for roomID := range snapshot.Messages {
		if !lo.ContainsBy(snapshot.Rooms, func(room domain.Room) bool { return room.ID == roomID }) {
			fmt.Printf("Orphan message log for room %s (%d messages)\n", roomID, len(snapshot.Messages[roomID]))
		}
	}
}

func shortID(id domain.RoomID) string {
	if len(id) > 8 {
		return string(id[:8])
	}
	return string(id)
}
