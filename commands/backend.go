package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/justin-russell/matrix-gptbot/store"
)

type BackendCommand struct {
	Store store.Store
	// Known lists the chat backends the dispatcher can route to.
	Known []string
	// Default names the backend used when a room has no selection.
	Default string
}

func (c *BackendCommand) Name() string { return "backend" }
func (c *BackendCommand) Description() string {
	return "Show the room's chat backend, or select one: `backend <name>`."
}
func (c *BackendCommand) RawArgs() bool { return false }

func (c *BackendCommand) Execute(ctx context.Context, inv *Invocation) (*Result, error) {
	if len(inv.Args) == 0 {
		cfg, err := c.Store.Config(ctx, inv.RoomID)
		if err != nil {
			return nil, err
		}
		if cfg.Backend == "" {
			return &Result{
				Reply:  fmt.Sprintf("This room uses the default chat backend (`%s`). Available: %s.", c.Default, c.knownList()),
				Notice: true,
			}, nil
		}
		return &Result{Reply: fmt.Sprintf("Current chat backend: `%s`.", cfg.Backend), Notice: true}, nil
	}

	name := strings.ToLower(strings.TrimSpace(inv.Args[0]))
	if !c.known(name) {
		return &Result{
			Reply:  fmt.Sprintf("Unknown backend `%s`. Available: %s.", name, c.knownList()),
			Notice: true,
		}, nil
	}
	if _, err := c.Store.SetConfig(ctx, inv.RoomID, store.ConfigUpdate{Backend: &name}); err != nil {
		return nil, err
	}
	return &Result{Reply: fmt.Sprintf("Chat backend set to `%s`.", name), Notice: true}, nil
}

func (c *BackendCommand) known(name string) bool {
	for _, k := range c.Known {
		if strings.EqualFold(k, name) {
			return true
		}
	}
	return false
}

func (c *BackendCommand) knownList() string {
	names := make([]string, len(c.Known))
	for i, k := range c.Known {
		names[i] = "`" + k + "`"
	}
	return strings.Join(names, ", ")
}
