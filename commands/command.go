// Package commands classifies incoming messages as commands, parses them,
// and dispatches to registered handlers.
package commands

import (
	"context"
	"errors"
)

// ErrUnknownCommand is returned by Dispatch when no handler matches. The
// dispatcher surfaces it as a help hint.
var ErrUnknownCommand = errors.New("unknown command")

// Invocation is one parsed command. It lives only for the duration of
// dispatch.
type Invocation struct {
	Name string
	// Args is the whitespace-tokenized argument list. Empty for handlers
	// that request raw trailing text.
	Args []string
	// RawArgs is everything after the command name, untrimmed of interior
	// whitespace.
	RawArgs string

	RoomID  string
	Sender  string
	EventID string
}

// Media is binary content to post as a room media action.
type Media struct {
	Data     []byte
	MimeType string
	FileName string
	AltText  string
}

// RoomAction requests creation of a new room with the sender invited.
type RoomAction struct {
	Name   string
	Invite string
}

// Result is what a handler produced. The dispatcher performs exactly one
// outgoing action per result: CreateRoom wins over Media, which wins over
// Reply. Handlers should set only one.
type Result struct {
	// Reply is markdown reply text.
	Reply string
	// Notice marks the reply as an m.notice rather than m.text.
	Notice bool
	Media  *Media
	// CreateRoom, when set, is executed by the dispatcher against the
	// transport.
	CreateRoom *RoomAction
}

// Command is a registered handler. Handlers must be all-or-nothing: on
// error no partial RoomConfig mutation may remain.
type Command interface {
	Name() string
	Description() string
	// RawArgs reports whether the handler wants the raw trailing text
	// instead of tokenized arguments (e.g. imagine, calculate).
	RawArgs() bool
	Execute(ctx context.Context, inv *Invocation) (*Result, error)
}

// Dispatch looks up the handler for an invocation and runs it. Handlers are
// not retried; a failure surfaces as a single user-visible error reply.
func Dispatch(ctx context.Context, reg *Registry, inv *Invocation) (*Result, error) {
	cmd, ok := reg.Get(inv.Name)
	if !ok {
		return nil, ErrUnknownCommand
	}
	return cmd.Execute(ctx, inv)
}
