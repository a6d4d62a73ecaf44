package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"

	"github.com/justin-russell/matrix-gptbot/backend"
)

type Image struct {
	// PNG bytes, decoded from the API's base64 payload.
	Data []byte
}

type imageGenerationRequest struct {
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size"`
	ResponseFormat string `json:"response_format"`
}

type imageGenerationResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
	Error *apiError `json:"error,omitempty"`
}

// GenerateImage renders a single 1024x1024 image for the prompt.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (Image, error) {
	if !c.Configured() {
		return Image{}, backend.NewError(backend.KindUnsupported, backendName, "no API key configured")
	}

	body := imageGenerationRequest{
		Prompt:         prompt,
		N:              1,
		Size:           "1024x1024",
		ResponseFormat: "b64_json",
	}
	raw, status, err := c.post(ctx, "/v1/images/generations", body)
	if err != nil {
		return Image{}, err
	}

	var out imageGenerationResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return Image{}, backend.NewError(backend.KindUnavailable, backendName, "unparseable response: %v", err)
	}

	if status < 200 || status >= 300 {
		msg := string(raw)
		if out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		return Image{}, backend.NewError(backend.KindFromStatus(status), backendName, "http %d: %s", status, msg)
	}

	if len(out.Data) == 0 {
		return Image{}, backend.NewError(backend.KindUnavailable, backendName, "empty image data")
	}

	data, err := base64.StdEncoding.DecodeString(out.Data[0].B64JSON)
	if err != nil {
		return Image{}, backend.NewError(backend.KindUnavailable, backendName, "decode image: %v", err)
	}
	return Image{Data: data}, nil
}
