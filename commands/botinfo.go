package commands

import (
	"context"
	"fmt"
	"strings"
)

type BotInfoCommand struct {
	UserID      string
	DisplayName string
	Model       string
	Operator    string
}

func (c *BotInfoCommand) Name() string        { return "botinfo" }
func (c *BotInfoCommand) Description() string { return "Show information about this bot." }
func (c *BotInfoCommand) RawArgs() bool       { return false }

func (c *BotInfoCommand) Execute(_ context.Context, _ *Invocation) (*Result, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s** (%s)\n\n", c.DisplayName, c.UserID)
	fmt.Fprintf(&b, "- Model: `%s`\n", c.Model)
	if c.Operator != "" {
		fmt.Fprintf(&b, "- Operator: %s\n", c.Operator)
	}
	return &Result{Reply: b.String(), Notice: true}, nil
}
