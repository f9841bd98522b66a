package main

import (
	"bufio"
	"chat-session/domain"
	"chat-session/services"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
)

var (
	userStyle   = color.New(color.FgCyan, color.OpBold)
	agentStyle  = color.New(color.FgGreen)
	systemStyle = color.New(color.FgGray)
	errorStyle  = color.New(color.FgRed)
)

// Console is a line-oriented client of the session service.
type Console struct {
	service services.ISessionService
	out     io.Writer
}

func NewConsole(service services.ISessionService, out io.Writer) *Console {
	return &Console{service: service, out: out}
}

// Run reads commands until EOF, /quit or ctx cancellation.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	c.printf(systemStyle, "Type a message, or /help for commands.\n")
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		if quit := c.Handle(ctx, strings.TrimSpace(scanner.Text())); quit {
			return nil
		}
		c.drainFailures()
	}
	return scanner.Err()
}

// Handle executes one input line and reports whether the console should stop.
func (c *Console) Handle(ctx context.Context, line string) bool {
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, "/") {
		c.send(ctx, domain.Draft{Content: line})
		return false
	}

	command, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch command {
	case "/quit":
		return true
	case "/help":
		c.printf(systemStyle, "/new [title]  /rooms  /select <id>  /delete <id>  /search <query>  /older  /image <path>  /quit\n")
	case "/new":
		room, err := c.service.CreateRoom(arg)
		if err != nil {
			c.printf(errorStyle, "Failed to create chat: %v\n", err)
			return false
		}
		c.printf(systemStyle, "Created %q (%s)\n", room.Title, room.ID)
	case "/rooms":
		c.renderRooms(c.service.VisibleRooms())
	case "/search":
		c.service.SetSearchQuery(arg)
		c.renderRooms(c.service.VisibleRooms())
	case "/select":
		if err := c.service.SelectRoom(domain.RoomID(arg)); err != nil {
			c.printf(errorStyle, "%v\n", err)
			return false
		}
		c.renderLog(domain.RoomID(arg))
	case "/delete":
		c.service.DeleteRoom(domain.RoomID(arg))
		c.printf(systemStyle, "Deleted %s\n", arg)
	case "/older":
		c.loadOlder(ctx)
	case "/image":
		ref, err := imageDataURL(arg)
		if err != nil {
			c.printf(errorStyle, "Failed to process image: %v\n", err)
			return false
		}
		c.send(ctx, domain.Draft{ImageRef: ref})
	default:
		c.printf(errorStyle, "Unknown command %s\n", command)
	}
	return false
}

func (c *Console) currentRoom() domain.RoomID {
	if current := c.service.State().CurrentRoomID; current != nil {
		return *current
	}
	return ""
}

func (c *Console) send(ctx context.Context, draft domain.Draft) {
	turn, err := c.service.SendTurn(ctx, c.currentRoom(), draft)
	if err != nil {
		c.printf(errorStyle, "Failed to send message: %v\n", err)
		return
	}
	c.printf(userStyle, "you: %s\n", turn.UserMessage.Content)
	c.printf(systemStyle, "typing...\n")

	reply, err := turn.Wait(ctx)
	if err != nil {
		c.printf(errorStyle, "Failed to send message: %v\n", err)
		return
	}
	c.printf(agentStyle, "agent: %s\n", reply.Content)
}

func (c *Console) loadOlder(ctx context.Context) {
	roomID := c.currentRoom()
	if roomID == "" {
		c.printf(errorStyle, "No chat selected\n")
		return
	}
	batch, err := c.service.LoadOlder(ctx, roomID)
	if err != nil {
		c.printf(errorStyle, "Failed to load more messages: %v\n", err)
		return
	}
	c.printf(systemStyle, "%d older messages loaded\n", len(batch))
	c.renderLog(roomID)
}

func (c *Console) renderRooms(rooms []domain.Room) {
	table := tablewriter.NewWriter(c.out)
	table.SetHeader([]string{"ID", "Title", "Messages", "Last message"})
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, room := range rooms {
		preview := ""
		if room.LastMessagePreview != nil {
			preview = *room.LastMessagePreview
		}
		table.Append([]string{string(room.ID), room.Title, fmt.Sprint(room.MessageCount), preview})
	}
	table.Render()
}

func (c *Console) renderLog(roomID domain.RoomID) {
	for _, message := range c.service.State().MessagesByRoom[roomID] {
		style := agentStyle
		if message.Sender == domain.SenderUser {
			style = userStyle
		}
		c.printf(style, "[%s] %s: %s\n", message.Timestamp.Local().Format(time.Kitchen), message.Sender, message.Content)
	}
}

func (c *Console) drainFailures() {
	for {
		select {
		case err := <-c.service.Failures():
			c.printf(errorStyle, "%v\n", err)
		default:
			return
		}
	}
}

func (c *Console) printf(style color.Style, format string, args ...any) {
	_, _ = fmt.Fprint(c.out, style.Sprintf(format, args...))
}

func imageDataURL(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	detected := mimetype.Detect(raw)
	return "data:" + detected.String() + ";base64," + base64.StdEncoding.EncodeToString(raw), nil
}
