package matrix

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/justin-russell/matrix-gptbot/bot"
	"github.com/justin-russell/matrix-gptbot/commands"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(ClientConfig{
		HomeserverURL: srv.URL,
		UserID:        "@bot:example.org",
		AccessToken:   "syt_token",
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c, srv
}

func TestSendMessageText(t *testing.T) {
	var gotPath, gotAuth string
	var gotContent messageContent
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if r.Method != http.MethodPut {
			t.Errorf("method = %s, want PUT", r.Method)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &gotContent); err != nil {
			t.Errorf("unmarshal request: %v", err)
		}
		fmt.Fprint(w, `{"event_id":"$ev1"}`)
	}))

	eventID, err := c.SendMessage(context.Background(), "!room:example.org", "plain reply", false)
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if eventID != "$ev1" {
		t.Fatalf("eventID = %q, want $ev1", eventID)
	}
	if !strings.HasPrefix(gotPath, "/_matrix/client/v3/rooms/!room:example.org/send/m.room.message/") {
		t.Fatalf("path = %q", gotPath)
	}
	if gotAuth != "Bearer syt_token" {
		t.Fatalf("auth = %q", gotAuth)
	}
	if gotContent.MsgType != "m.text" {
		t.Fatalf("msgtype = %q, want m.text", gotContent.MsgType)
	}
	if gotContent.FormattedBody != "" {
		t.Fatalf("formatted_body = %q, want empty for plain text", gotContent.FormattedBody)
	}
}

func TestSendMessageMarkdownAndNotice(t *testing.T) {
	var gotContent messageContent
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &gotContent)
		fmt.Fprint(w, `{"event_id":"$ev2"}`)
	}))

	if _, err := c.SendMessage(context.Background(), "!room:example.org", "try `help` **now**", true); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if gotContent.MsgType != "m.notice" {
		t.Fatalf("msgtype = %q, want m.notice", gotContent.MsgType)
	}
	if gotContent.Body != "try `help` **now**" {
		t.Fatalf("body = %q", gotContent.Body)
	}
	if gotContent.Format != "org.matrix.custom.html" {
		t.Fatalf("format = %q", gotContent.Format)
	}
	if !strings.Contains(gotContent.FormattedBody, "<code>help</code>") ||
		!strings.Contains(gotContent.FormattedBody, "<strong>now</strong>") {
		t.Fatalf("formatted_body = %q", gotContent.FormattedBody)
	}
}

func TestSendMessageTransactionIDsDiffer(t *testing.T) {
	var paths []string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		fmt.Fprint(w, `{"event_id":"$ev"}`)
	}))

	for i := 0; i < 2; i++ {
		if _, err := c.SendMessage(context.Background(), "!room:example.org", "hi", false); err != nil {
			t.Fatalf("SendMessage() error = %v", err)
		}
	}
	if paths[0] == paths[1] {
		t.Fatalf("transaction IDs reused: %q", paths[0])
	}
}

func TestSendMessageMatrixError(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"errcode":"M_FORBIDDEN","error":"not in room"}`)
	}))

	_, err := c.SendMessage(context.Background(), "!room:example.org", "hi", false)
	if err == nil {
		t.Fatal("SendMessage() error = nil, want M_FORBIDDEN")
	}
	var matrixErr *MatrixError
	if !errors.As(err, &matrixErr) {
		t.Fatalf("error %v is not a *MatrixError", err)
	}
	if matrixErr.Code != ErrCodeForbidden || matrixErr.StatusCode != http.StatusForbidden {
		t.Fatalf("matrixErr = %+v", matrixErr)
	}
	if !IsMatrixError(err, ErrCodeForbidden) {
		t.Fatal("IsMatrixError(M_FORBIDDEN) = false")
	}
}

func TestSendImageUploadsThenSends(t *testing.T) {
	var uploadedType string
	var uploadedBytes int
	var gotContent imageContent
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/_matrix/media/v3/upload":
			uploadedType = r.Header.Get("Content-Type")
			body, _ := io.ReadAll(r.Body)
			uploadedBytes = len(body)
			fmt.Fprint(w, `{"content_uri":"mxc://example.org/abc123"}`)
		case strings.Contains(r.URL.Path, "/send/m.room.message/"):
			body, _ := io.ReadAll(r.Body)
			json.Unmarshal(body, &gotContent)
			fmt.Fprint(w, `{"event_id":"$img"}`)
		default:
			t.Errorf("unexpected request %s", r.URL.Path)
		}
	}))

	media := commands.Media{Data: []byte{0x89, 'P', 'N', 'G'}, MimeType: "image/png", FileName: "generated.png"}
	eventID, err := c.SendImage(context.Background(), "!room:example.org", media)
	if err != nil {
		t.Fatalf("SendImage() error = %v", err)
	}
	if eventID != "$img" {
		t.Fatalf("eventID = %q", eventID)
	}
	if uploadedType != "image/png" || uploadedBytes != 4 {
		t.Fatalf("upload = %q %d bytes", uploadedType, uploadedBytes)
	}
	if gotContent.MsgType != "m.image" || gotContent.URL != "mxc://example.org/abc123" {
		t.Fatalf("content = %+v", gotContent)
	}
	if gotContent.Body != "generated.png" {
		t.Fatalf("body = %q, want generated.png", gotContent.Body)
	}
}

func TestCreateRoomInvitesSender(t *testing.T) {
	var gotRequest map[string]any
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/_matrix/client/v3/createRoom" {
			t.Errorf("path = %q", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &gotRequest)
		fmt.Fprint(w, `{"room_id":"!new:example.org"}`)
	}))

	roomID, err := c.CreateRoom(context.Background(), "GPTBot", "@alice:example.org")
	if err != nil {
		t.Fatalf("CreateRoom() error = %v", err)
	}
	if roomID != "!new:example.org" {
		t.Fatalf("roomID = %q", roomID)
	}
	if gotRequest["name"] != "GPTBot" || gotRequest["preset"] != "private_chat" {
		t.Fatalf("request = %+v", gotRequest)
	}
	invited, _ := gotRequest["invite"].([]any)
	if len(invited) != 1 || invited[0] != "@alice:example.org" {
		t.Fatalf("invite = %+v", gotRequest["invite"])
	}
}

func TestRunSyncDeliversMessagesAndJoinsInvites(t *testing.T) {
	var calls atomic.Int64
	var joined atomic.Bool
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/_matrix/client/v3/join/!invited:example.org" {
			joined.Store(true)
			fmt.Fprint(w, `{"room_id":"!invited:example.org"}`)
			return
		}
		if r.URL.Path != "/_matrix/client/v3/sync" {
			t.Errorf("unexpected path %q", r.URL.Path)
			return
		}
		switch calls.Add(1) {
		case 1:
			// Initial sync: backlog that must never be replayed.
			fmt.Fprint(w, `{"next_batch":"s1","rooms":{"join":{"!room:example.org":{"timeline":{"events":[
				{"type":"m.room.message","event_id":"$old","sender":"@alice:example.org","origin_server_ts":1,
				 "content":{"msgtype":"m.text","body":"backlog"}}]}}}}}`)
		case 2:
			if r.URL.Query().Get("since") != "s1" {
				t.Errorf("since = %q, want s1", r.URL.Query().Get("since"))
			}
			fmt.Fprint(w, `{"next_batch":"s2","rooms":{
				"invite":{"!invited:example.org":{}},
				"join":{"!room:example.org":{"timeline":{"events":[
					{"type":"m.room.encrypted","event_id":"$enc","sender":"@alice:example.org","origin_server_ts":2,"content":{}},
					{"type":"m.room.message","event_id":"$new","sender":"@alice:example.org","origin_server_ts":3,
					 "content":{"msgtype":"m.text","body":"hello bot"}}]}}}}}`)
		default:
			fmt.Fprint(w, `{"next_batch":"s3","rooms":{}}`)
		}
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var events []bot.Event
	err := c.RunSync(ctx, func(ev bot.Event) {
		events = append(events, ev)
		cancel()
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("RunSync() error = %v, want context.Canceled", err)
	}
	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1: %+v", len(events), events)
	}
	ev := events[0]
	if ev.EventID != "$new" || ev.Body != "hello bot" || ev.RoomID != "!room:example.org" {
		t.Fatalf("event = %+v", ev)
	}
	if !joined.Load() {
		t.Fatal("invite was not joined")
	}
}
