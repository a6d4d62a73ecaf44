package matrix

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/justin-russell/matrix-gptbot/bot"
)

// The dispatcher emits all outgoing actions through the client.
var _ bot.Transport = (*Client)(nil)

// Server-side long-poll hold in milliseconds for normal /sync calls,
// per the client-server spec recommendation.
const longPollTimeout = 30000

// Short server-side timeout used after a /sync error, so the HTTP
// round-trip itself provides backoff.
const retryTimeout = 1000

type syncResponse struct {
	NextBatch string    `json:"next_batch"`
	Rooms     syncRooms `json:"rooms"`
}

type syncRooms struct {
	Join   map[string]joinedRoom  `json:"join"`
	Invite map[string]invitedRoom `json:"invite"`
}

type joinedRoom struct {
	Timeline struct {
		Events []timelineEvent `json:"events"`
	} `json:"timeline"`
}

type invitedRoom struct{}

type timelineEvent struct {
	Type           string          `json:"type"`
	EventID        string          `json:"event_id"`
	Sender         string          `json:"sender"`
	OriginServerTS int64           `json:"origin_server_ts"`
	Content        json.RawMessage `json:"content"`
}

// syncFilter restricts /sync to message timelines; presence and account
// data never reach the bot.
var syncFilter = func() string {
	top := map[string]any{
		"room": map[string]any{
			"timeline": map[string]any{
				"types": []string{"m.room.message", "m.room.encrypted"},
				"limit": 50,
			},
			"state":     map[string]any{"types": []string{}},
			"ephemeral": map[string]any{"types": []string{}},
		},
		"presence":     map[string]any{"types": []string{}},
		"account_data": map[string]any{"types": []string{}},
	}
	data, _ := json.Marshal(top)
	return string(data)
}()

func (c *Client) sync(ctx context.Context, since string, timeoutMillis int) (*syncResponse, error) {
	query := url.Values{}
	query.Set("timeout", strconv.Itoa(timeoutMillis))
	query.Set("filter", syncFilter)
	if since != "" {
		query.Set("since", since)
	}

	body, err := c.doRequest(ctx, http.MethodGet, "/_matrix/client/v3/sync", nil, query)
	if err != nil {
		return nil, err
	}

	var response syncResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// RunSync long-polls /sync until ctx is cancelled, normalizing room
// messages into events for the handler and auto-joining rooms the bot is
// invited to. The initial sync only establishes the stream position, so
// backlog accumulated while the bot was offline is never replayed.
//
// Transient /sync failures are retried indefinitely with a short
// server-side timeout as backoff; a daemon must outlive homeserver
// restarts.
func (c *Client) RunSync(ctx context.Context, handle func(bot.Event)) error {
	initial, err := c.sync(ctx, "", 0)
	if err != nil {
		return err
	}
	since := initial.NextBatch
	c.log.Info("sync_started", "user_id", c.userID)

	failing := false
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		timeoutMillis := longPollTimeout
		if failing {
			timeoutMillis = retryTimeout
		}
		response, err := c.sync(ctx, since, timeoutMillis)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Connection resets often leave a poisoned socket in the HTTP
			// pool; drop idle connections before retrying.
			c.httpClient.CloseIdleConnections()
			c.log.Warn("sync_error", "error", err.Error())
			failing = true
			continue
		}
		failing = false
		since = response.NextBatch

		for roomID := range response.Rooms.Invite {
			if _, err := c.JoinRoom(ctx, roomID); err != nil {
				c.log.Warn("invite_join_error", "room_id", roomID, "error", err.Error())
				continue
			}
			c.log.Info("invite_accepted", "room_id", roomID)
		}

		for roomID, room := range response.Rooms.Join {
			for _, raw := range room.Timeline.Events {
				ev, ok := c.normalize(roomID, raw)
				if !ok {
					continue
				}
				handle(ev)
			}
		}
	}
}

// normalize turns a timeline event into a bot event. Encrypted events,
// non-text message types, and redacted bodies are dropped.
func (c *Client) normalize(roomID string, raw timelineEvent) (bot.Event, bool) {
	if raw.Type != "m.room.message" {
		if raw.Type == "m.room.encrypted" {
			c.log.Debug("event_skipped", "room_id", roomID, "reason", "encrypted")
		}
		return bot.Event{}, false
	}

	var content struct {
		MsgType string `json:"msgtype"`
		Body    string `json:"body"`
	}
	if err := json.Unmarshal(raw.Content, &content); err != nil {
		return bot.Event{}, false
	}
	if content.MsgType != "m.text" || content.Body == "" {
		return bot.Event{}, false
	}

	return bot.Event{
		RoomID:    roomID,
		EventID:   raw.EventID,
		Sender:    raw.Sender,
		Body:      content.Body,
		Timestamp: time.UnixMilli(raw.OriginServerTS),
	}, true
}
