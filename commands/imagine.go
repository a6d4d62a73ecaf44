package commands

import (
	"context"
	"strings"

	"github.com/justin-russell/matrix-gptbot/backend"
	"github.com/justin-russell/matrix-gptbot/backend/openai"
)

type ImagineCommand struct {
	OpenAI *openai.Client
}

func (c *ImagineCommand) Name() string { return "imagine" }
func (c *ImagineCommand) Description() string {
	return "Generate an image from a prompt, e.g. `imagine a teapot in space`."
}
func (c *ImagineCommand) RawArgs() bool { return true }

func (c *ImagineCommand) Execute(ctx context.Context, inv *Invocation) (*Result, error) {
	prompt := strings.TrimSpace(inv.RawArgs)
	if prompt == "" {
		return &Result{Reply: "Usage: `imagine <prompt>`", Notice: true}, nil
	}

	img, err := c.OpenAI.GenerateImage(ctx, prompt)
	if backend.IsUnsupported(err) {
		return &Result{Reply: "Image generation is not available: no OpenAI API key is configured.", Notice: true}, nil
	}
	if err != nil {
		return nil, err
	}
	return &Result{
		Media: &Media{
			Data:     img.Data,
			MimeType: "image/png",
			FileName: "generated.png",
			AltText:  prompt,
		},
	}, nil
}
