package bot

import (
	"context"
	"time"

	"github.com/justin-russell/matrix-gptbot/commands"
)

// Event is one normalized room message, as delivered by the transport's
// sync loop.
type Event struct {
	RoomID    string
	EventID   string
	Sender    string
	Body      string
	Timestamp time.Time
}

// Outcome is the terminal state of processing one event.
type Outcome string

const (
	OutcomeReplied    Outcome = "replied"
	OutcomeSuppressed Outcome = "suppressed"
	OutcomeErrored    Outcome = "errored"
)

// Transport is what the dispatcher emits outgoing actions through. The
// Matrix client implements it; tests use a recorder.
type Transport interface {
	SendMessage(ctx context.Context, roomID, markdown string, notice bool) (string, error)
	SendImage(ctx context.Context, roomID string, media commands.Media) (string, error)
	// CreateRoom creates a room with the given name, invites the user, and
	// returns the new room ID.
	CreateRoom(ctx context.Context, name, invite string) (string, error)
}
