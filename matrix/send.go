package matrix

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/justin-russell/matrix-gptbot/commands"
)

var (
	markdownOnce     sync.Once
	markdownRenderer goldmark.Markdown
)

func getMarkdownRenderer() goldmark.Markdown {
	markdownOnce.Do(func() {
		markdownRenderer = goldmark.New(
			goldmark.WithExtensions(extension.GFM),
		)
	})
	return markdownRenderer
}

// renderHTML converts markdown to the HTML Matrix clients display as
// formatted_body. Returns "" when the text has no markup worth sending.
func renderHTML(markdown string) string {
	var buf bytes.Buffer
	if err := getMarkdownRenderer().Convert([]byte(markdown), &buf); err != nil {
		return ""
	}
	html := strings.TrimSpace(buf.String())
	// A single bare paragraph renders identically as plain text; skip the
	// formatted body so clients don't show redundant markup.
	if html == "<p>"+markdown+"</p>" {
		return ""
	}
	return html
}

type messageContent struct {
	MsgType       string `json:"msgtype"`
	Body          string `json:"body"`
	Format        string `json:"format,omitempty"`
	FormattedBody string `json:"formatted_body,omitempty"`
}

type imageContent struct {
	MsgType string    `json:"msgtype"`
	Body    string    `json:"body"`
	URL     string    `json:"url"`
	Info    imageInfo `json:"info"`
}

type imageInfo struct {
	MimeType string `json:"mimetype"`
	Size     int    `json:"size"`
}

type sendEventResponse struct {
	EventID string `json:"event_id"`
}

// SendMessage sends markdown text to a room as m.text, or m.notice when
// notice is set. Returns the event ID.
func (c *Client) SendMessage(ctx context.Context, roomID, markdown string, notice bool) (string, error) {
	content := messageContent{
		MsgType: "m.text",
		Body:    markdown,
	}
	if notice {
		content.MsgType = "m.notice"
	}
	if html := renderHTML(markdown); html != "" {
		content.Format = "org.matrix.custom.html"
		content.FormattedBody = html
	}
	return c.sendEvent(ctx, roomID, "m.room.message", content)
}

// SendImage uploads the media to the homeserver's media repository and
// sends an m.image message referencing the returned MXC URI.
func (c *Client) SendImage(ctx context.Context, roomID string, media commands.Media) (string, error) {
	contentURI, err := c.uploadMedia(ctx, media.MimeType, media.Data)
	if err != nil {
		return "", err
	}
	filename := media.FileName
	if filename == "" {
		filename = "image"
	}
	content := imageContent{
		MsgType: "m.image",
		Body:    filename,
		URL:     contentURI,
		Info: imageInfo{
			MimeType: media.MimeType,
			Size:     len(media.Data),
		},
	}
	return c.sendEvent(ctx, roomID, "m.room.message", content)
}

// sendEvent sends a room event using Matrix's idempotent PUT with a fresh
// transaction ID, so a retried request cannot duplicate the message.
func (c *Client) sendEvent(ctx context.Context, roomID, eventType string, content any) (string, error) {
	path := fmt.Sprintf("/_matrix/client/v3/rooms/%s/send/%s/%s",
		url.PathEscape(roomID),
		url.PathEscape(eventType),
		url.PathEscape(uuid.NewString()),
	)

	body, err := c.doRequest(ctx, http.MethodPut, path, content, nil)
	if err != nil {
		return "", fmt.Errorf("matrix: send event to %q failed: %w", roomID, err)
	}

	var response sendEventResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("matrix: failed to parse send response: %w", err)
	}
	return response.EventID, nil
}

func (c *Client) uploadMedia(ctx context.Context, contentType string, data []byte) (string, error) {
	body, err := c.doRequestRaw(ctx, http.MethodPost, "/_matrix/media/v3/upload", contentType, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("matrix: media upload failed: %w", err)
	}
	var response struct {
		ContentURI string `json:"content_uri"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("matrix: failed to parse upload response: %w", err)
	}
	return response.ContentURI, nil
}

// CreateRoom creates a private room with the given name, invites the user,
// and returns the new room ID.
func (c *Client) CreateRoom(ctx context.Context, name, invite string) (string, error) {
	request := map[string]any{
		"preset":    "private_chat",
		"is_direct": false,
	}
	if name != "" {
		request["name"] = name
	}
	if invite != "" {
		request["invite"] = []string{invite}
	}

	body, err := c.doRequest(ctx, http.MethodPost, "/_matrix/client/v3/createRoom", request, nil)
	if err != nil {
		return "", fmt.Errorf("matrix: create room failed: %w", err)
	}

	var response struct {
		RoomID string `json:"room_id"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("matrix: failed to parse create room response: %w", err)
	}
	c.log.Info("room_created", "room_id", response.RoomID, "name", name, "invited", invite)
	return response.RoomID, nil
}

// JoinRoom joins a room by ID. Returns the room ID.
func (c *Client) JoinRoom(ctx context.Context, roomID string) (string, error) {
	path := "/_matrix/client/v3/join/" + url.PathEscape(roomID)
	body, err := c.doRequest(ctx, http.MethodPost, path, struct{}{}, nil)
	if err != nil {
		return "", fmt.Errorf("matrix: join room %s failed: %w", roomID, err)
	}

	var response struct {
		RoomID string `json:"room_id"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("matrix: failed to parse join response: %w", err)
	}
	return response.RoomID, nil
}
