package commands

import (
	"context"
	"strings"
)

type NewRoomCommand struct {
	// DefaultName is used when the sender gives no room name.
	DefaultName string
}

func (c *NewRoomCommand) Name() string { return "newroom" }
func (c *NewRoomCommand) Description() string {
	return "Create a new room with the bot and invite you to it. Optional: a room name."
}
func (c *NewRoomCommand) RawArgs() bool { return true }

func (c *NewRoomCommand) Execute(_ context.Context, inv *Invocation) (*Result, error) {
	name := strings.TrimSpace(inv.RawArgs)
	if name == "" {
		name = c.DefaultName
	}
	return &Result{
		CreateRoom: &RoomAction{Name: name, Invite: inv.Sender},
	}, nil
}
