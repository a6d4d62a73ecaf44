package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/justin-russell/matrix-gptbot/store"
)

type SystemMessageCommand struct {
	Store store.Store
}

func (c *SystemMessageCommand) Name() string { return "systemmessage" }
func (c *SystemMessageCommand) Description() string {
	return "Show the room's system message, or set it: `systemmessage <text>`."
}
func (c *SystemMessageCommand) RawArgs() bool { return true }

func (c *SystemMessageCommand) Execute(ctx context.Context, inv *Invocation) (*Result, error) {
	text := strings.TrimSpace(inv.RawArgs)

	if text == "" {
		cfg, err := c.Store.Config(ctx, inv.RoomID)
		if err != nil {
			return nil, err
		}
		if cfg.SystemMessage == "" {
			return &Result{Reply: "This room has no system message override.", Notice: true}, nil
		}
		return &Result{Reply: fmt.Sprintf("Current system message:\n\n> %s", cfg.SystemMessage), Notice: true}, nil
	}

	if _, err := c.Store.SetConfig(ctx, inv.RoomID, store.ConfigUpdate{SystemMessage: &text}); err != nil {
		return nil, err
	}
	return &Result{Reply: "System message updated.", Notice: true}, nil
}
