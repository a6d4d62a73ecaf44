// Package bot is the event dispatcher: it consumes normalized room events
// one at a time per room, routes them down the command or conversational
// path, applies usage accounting, and emits at most one outgoing action
// per event.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/justin-russell/matrix-gptbot/backend"
	"github.com/justin-russell/matrix-gptbot/commands"
	"github.com/justin-russell/matrix-gptbot/guard"
	"github.com/justin-russell/matrix-gptbot/history"
	"github.com/justin-russell/matrix-gptbot/llm"
	"github.com/justin-russell/matrix-gptbot/store"
	"github.com/justin-russell/matrix-gptbot/usage"
)

const (
	defaultBackendTimeout = 2 * time.Minute
	defaultMaxInFlight    = 4
	roomQueueSize         = 16

	deniedReply = "You are not allowed to use this bot."
)

type Config struct {
	// BotUserID suppresses the bot's own messages.
	BotUserID string
	// CommandPrefix defaults to commands.DefaultPrefix.
	CommandPrefix string
	// Model is the chat model identifier sent to the chat backend.
	Model string
	// DefaultBackend names the chat backend used when a room has not
	// selected one.
	DefaultBackend string
	// BackendTimeout bounds each backend call. A timeout surfaces as an
	// unavailable-backend error.
	BackendTimeout time.Duration
	// MaxInFlight bounds concurrently processing rooms.
	MaxInFlight int
}

type Dispatcher struct {
	cfg        Config
	log        *slog.Logger
	store      store.Store
	assembler  *history.Assembler
	chat       map[string]llm.Client
	accountant *usage.Accountant
	registry   *commands.Registry
	guard      *guard.Guard
	transport  Transport

	mu      sync.Mutex
	ctx     context.Context
	sem     chan struct{}
	workers map[string]*roomWorker
}

func NewDispatcher(cfg Config, log *slog.Logger, s store.Store, assembler *history.Assembler,
	chat map[string]llm.Client, accountant *usage.Accountant, registry *commands.Registry,
	g *guard.Guard, transport Transport) *Dispatcher {

	if cfg.CommandPrefix == "" {
		cfg.CommandPrefix = commands.DefaultPrefix
	}
	if cfg.BackendTimeout <= 0 {
		cfg.BackendTimeout = defaultBackendTimeout
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = defaultMaxInFlight
	}
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		cfg:        cfg,
		log:        log,
		store:      s,
		assembler:  assembler,
		chat:       chat,
		accountant: accountant,
		registry:   registry,
		guard:      g,
		transport:  transport,
		workers:    make(map[string]*roomWorker),
	}
}

// Start prepares the per-room worker pool. Must be called before Enqueue.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ctx = ctx
	d.sem = make(chan struct{}, d.cfg.MaxInFlight)
}

// Enqueue hands an event to its room's worker, creating the worker on
// first use. Events for the same room are processed strictly in order;
// events for different rooms proceed concurrently.
func (d *Dispatcher) Enqueue(ctx context.Context, ev Event) error {
	d.mu.Lock()
	if d.ctx == nil {
		d.mu.Unlock()
		return fmt.Errorf("dispatcher not started")
	}
	w, ok := d.workers[ev.RoomID]
	if !ok {
		w = newRoomWorker(d.ctx, d.sem, func(ctx context.Context, ev Event) {
			d.Process(ctx, ev)
		})
		d.workers[ev.RoomID] = w
	}
	runCtx := d.ctx
	d.mu.Unlock()

	return w.enqueue(ctx, runCtx, ev)
}

// Process runs the per-event state machine to its terminal outcome. A
// failed event never crashes the dispatcher or blocks other rooms.
func (d *Dispatcher) Process(ctx context.Context, ev Event) Outcome {
	if ev.Sender == d.cfg.BotUserID {
		d.log.Debug("event_suppressed", "room_id", ev.RoomID, "reason", "own_message")
		return OutcomeSuppressed
	}
	if strings.TrimSpace(ev.Body) == "" {
		d.log.Debug("event_suppressed", "room_id", ev.RoomID, "reason", "empty_body")
		return OutcomeSuppressed
	}

	name, rest, isCommand := commands.Classify(d.cfg.CommandPrefix, ev.Body)
	if isCommand {
		return d.processCommand(ctx, ev, name, rest)
	}
	return d.processQuery(ctx, ev)
}

func (d *Dispatcher) processCommand(ctx context.Context, ev Event, name, rest string) Outcome {
	// Authorization runs before dispatch, so unauthorized senders trigger
	// no backend call and no storage mutation.
	if !d.guard.Allowed(ev.Sender) {
		d.log.Info("command_denied", "room_id", ev.RoomID, "sender", ev.Sender, "command", name)
		d.send(ctx, ev.RoomID, deniedReply, true)
		return OutcomeReplied
	}

	inv := commands.Parse(d.registry, name, rest, ev.RoomID, ev.Sender, ev.EventID)
	d.log.Info("command_received", "room_id", ev.RoomID, "sender", ev.Sender, "command", name)

	res, err := commands.Dispatch(ctx, d.registry, inv)
	if errors.Is(err, commands.ErrUnknownCommand) {
		hint := fmt.Sprintf("Unknown command `%s`. Try `%s help`.", name, d.cfg.CommandPrefix)
		d.send(ctx, ev.RoomID, hint, true)
		return OutcomeReplied
	}
	if err != nil {
		d.log.Error("command_error", "room_id", ev.RoomID, "command", name, "error", err.Error())
		d.send(ctx, ev.RoomID, errorReply(err), true)
		return OutcomeErrored
	}

	return d.emit(ctx, ev.RoomID, res)
}

// emit performs the single outgoing action a command result asks for.
func (d *Dispatcher) emit(ctx context.Context, roomID string, res *commands.Result) Outcome {
	switch {
	case res == nil:
		return OutcomeSuppressed
	case res.CreateRoom != nil:
		newRoom, err := d.transport.CreateRoom(ctx, res.CreateRoom.Name, res.CreateRoom.Invite)
		if err != nil {
			d.log.Error("room_create_error", "room_id", roomID, "error", err.Error())
			d.send(ctx, roomID, errorReply(err), true)
			return OutcomeErrored
		}
		d.log.Info("room_created", "room_id", newRoom, "invited", res.CreateRoom.Invite)
		return OutcomeReplied
	case res.Media != nil:
		if _, err := d.transport.SendImage(ctx, roomID, *res.Media); err != nil {
			d.log.Error("media_send_error", "room_id", roomID, "error", err.Error())
			d.send(ctx, roomID, errorReply(err), true)
			return OutcomeErrored
		}
		return OutcomeReplied
	case res.Reply != "":
		d.send(ctx, roomID, res.Reply, res.Notice)
		return OutcomeReplied
	default:
		return OutcomeSuppressed
	}
}

func (d *Dispatcher) processQuery(ctx context.Context, ev Event) Outcome {
	// Conversational suppression is silent, unlike the command path's
	// explicit denial.
	if !d.guard.Allowed(ev.Sender) {
		d.log.Debug("event_suppressed", "room_id", ev.RoomID, "sender", ev.Sender, "reason", "not_allowed")
		return OutcomeSuppressed
	}

	cfg, err := d.store.Config(ctx, ev.RoomID)
	if err != nil {
		return d.failQuery(ctx, ev, err)
	}

	backendName, client, err := d.chatClient(cfg)
	if err != nil {
		return d.failQuery(ctx, ev, err)
	}

	// The inbound turn is persisted before the backend call: on backend
	// failure the user's message stays in history, the assistant turn does
	// not exist.
	rec, err := d.store.AppendMessage(ctx, ev.RoomID, ev.Sender, llm.RoleUser, ev.Body)
	if err != nil {
		return d.failQuery(ctx, ev, err)
	}

	window, err := d.assembler.Assemble(ctx, ev.RoomID, ev.Body, cfg, rec.Seq)
	if err != nil {
		return d.failQuery(ctx, ev, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, d.cfg.BackendTimeout)
	defer cancel()
	result, err := client.Chat(callCtx, llm.Request{Model: d.cfg.Model, Messages: window.Messages})
	if err != nil {
		if callCtx.Err() != nil {
			err = backend.NewError(backend.KindUnavailable, backendName, "timed out: %v", err)
		}
		return d.failQuery(ctx, ev, err)
	}

	if _, err := d.store.AppendMessage(ctx, ev.RoomID, d.cfg.BotUserID, llm.RoleAssistant, result.Text); err != nil {
		return d.failQuery(ctx, ev, err)
	}
	total, err := d.accountant.Record(ctx, ev.RoomID, backendName, int64(result.Usage.TotalTokens))
	if err != nil {
		d.log.Warn("usage_record_error", "room_id", ev.RoomID, "error", err.Error())
	}

	d.log.Info("chat_replied",
		"room_id", ev.RoomID,
		"backend", backendName,
		"history_turns", window.HistoryIncluded,
		"tokens", result.Usage.TotalTokens,
		"room_total_tokens", total,
		"duration", result.Duration,
	)
	d.send(ctx, ev.RoomID, result.Text, false)
	return OutcomeReplied
}

// failQuery terminates the conversational path with exactly one
// user-visible error reply and no assistant turn.
func (d *Dispatcher) failQuery(ctx context.Context, ev Event, err error) Outcome {
	d.log.Error("chat_error", "room_id", ev.RoomID, "error", err.Error())
	d.send(ctx, ev.RoomID, errorReply(err), true)
	return OutcomeErrored
}

func (d *Dispatcher) chatClient(cfg store.RoomConfig) (string, llm.Client, error) {
	name := strings.TrimSpace(cfg.Backend)
	if name == "" {
		name = d.cfg.DefaultBackend
	}
	client, ok := d.chat[name]
	if !ok {
		return name, nil, backend.NewError(backend.KindUnsupported, name, "unknown chat backend")
	}
	return name, client, nil
}

func (d *Dispatcher) send(ctx context.Context, roomID, text string, notice bool) {
	if _, err := d.transport.SendMessage(ctx, roomID, text, notice); err != nil {
		d.log.Error("send_error", "room_id", roomID, "error", err.Error())
	}
}

// errorReply maps an internal failure to the single message the room sees.
func errorReply(err error) string {
	if errors.Is(err, store.ErrStorageUnavailable) {
		return "Something went wrong. Please try again."
	}
	switch backend.KindOf(err) {
	case backend.KindUnsupported:
		return "That feature is not configured on this bot."
	case backend.KindRateLimited:
		return "The backend is rate limiting this bot. Please try again in a moment."
	case backend.KindAuthFailure:
		return "The backend rejected the bot's credentials. Please contact the operator."
	case backend.KindInvalidRequest:
		return "The backend rejected the request."
	default:
		return "Something went wrong. Please try again."
	}
}
