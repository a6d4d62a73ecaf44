package commands

import "context"

type HelpCommand struct {
	Registry *Registry
}

func (c *HelpCommand) Name() string        { return "help" }
func (c *HelpCommand) Description() string { return "Show this list of commands." }
func (c *HelpCommand) RawArgs() bool       { return false }

func (c *HelpCommand) Execute(_ context.Context, _ *Invocation) (*Result, error) {
	return &Result{Reply: c.Registry.Describe(), Notice: true}, nil
}
