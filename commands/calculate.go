package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/justin-russell/matrix-gptbot/backend"
	"github.com/justin-russell/matrix-gptbot/backend/wolfram"
)

type CalculateCommand struct {
	Wolfram *wolfram.Client
}

func (c *CalculateCommand) Name() string { return "calculate" }
func (c *CalculateCommand) Description() string {
	return "Evaluate an expression via WolframAlpha, e.g. `calculate integral of x^2`."
}
func (c *CalculateCommand) RawArgs() bool { return true }

func (c *CalculateCommand) Execute(ctx context.Context, inv *Invocation) (*Result, error) {
	expression := strings.TrimSpace(inv.RawArgs)
	if expression == "" {
		return &Result{Reply: "Usage: `calculate <expression>`", Notice: true}, nil
	}

	answer, err := c.Wolfram.Query(ctx, expression)
	if backend.IsUnsupported(err) {
		return &Result{Reply: "Calculation is not available: no WolframAlpha app ID is configured.", Notice: true}, nil
	}
	if err != nil {
		return nil, err
	}
	return &Result{Reply: fmt.Sprintf("**%s** = %s", expression, answer)}, nil
}
