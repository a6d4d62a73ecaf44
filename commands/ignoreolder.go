package commands

import (
	"context"

	"github.com/justin-russell/matrix-gptbot/store"
)

type IgnoreOlderCommand struct {
	Store store.Store
}

func (c *IgnoreOlderCommand) Name() string { return "ignoreolder" }
func (c *IgnoreOlderCommand) Description() string {
	return "Exclude all messages before now from future conversation context."
}
func (c *IgnoreOlderCommand) RawArgs() bool { return false }

func (c *IgnoreOlderCommand) Execute(ctx context.Context, inv *Invocation) (*Result, error) {
	latest, err := c.Store.RecentMessages(ctx, inv.RoomID, 1)
	if err != nil {
		return nil, err
	}
	if len(latest) == 0 {
		return &Result{Reply: "There is no history to ignore.", Notice: true}, nil
	}

	floor := latest[len(latest)-1].Seq
	if _, err := c.Store.SetConfig(ctx, inv.RoomID, store.ConfigUpdate{HistoryFloor: &floor}); err != nil {
		return nil, err
	}
	return &Result{Reply: "Older messages will no longer be used as conversation context.", Notice: true}, nil
}
