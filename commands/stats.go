package commands

import (
	"context"
	"fmt"

	"github.com/justin-russell/matrix-gptbot/store"
	"github.com/justin-russell/matrix-gptbot/usage"
)

type StatsCommand struct {
	Store      store.Store
	Accountant *usage.Accountant
}

func (c *StatsCommand) Name() string        { return "stats" }
func (c *StatsCommand) Description() string { return "Show message and token totals for this room." }
func (c *StatsCommand) RawArgs() bool       { return false }

func (c *StatsCommand) Execute(ctx context.Context, inv *Invocation) (*Result, error) {
	total, err := c.Accountant.Total(ctx, inv.RoomID)
	if err != nil {
		return nil, err
	}
	messages, err := c.Store.MessageCount(ctx, inv.RoomID)
	if err != nil {
		return nil, err
	}
	return &Result{
		Reply:  fmt.Sprintf("Messages stored for this room: **%d**\nTotal tokens used: **%d**", messages, total),
		Notice: true,
	}, nil
}
