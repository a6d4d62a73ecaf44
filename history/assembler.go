// Package history builds the context window sent to a chat-completion
// backend: optional system message, token-budgeted room history, and the
// current query, in chronological order.
package history

import (
	"context"
	"strings"

	"github.com/justin-russell/matrix-gptbot/llm"
	"github.com/justin-russell/matrix-gptbot/store"
)

// TokenEstimator reports the approximate token cost of a message body.
type TokenEstimator interface {
	Estimate(text string) int
}

// Window is the assembled, ordered message list for one completion request.
type Window struct {
	Messages []llm.Message
	// EstimatedTokens is the assembler's estimate for the full window. It can
	// exceed MaxTokens only in the system+query floor case.
	EstimatedTokens int
	// HistoryIncluded counts how many stored turns made it into the window.
	HistoryIncluded int
}

type Assembler struct {
	Store     store.Store
	Estimator TokenEstimator

	// DefaultSystemMessage is the process-wide system message.
	DefaultSystemMessage string
	// ForceSystemMessage prepends the default even when a room has its own
	// override.
	ForceSystemMessage bool

	MaxTokens   int
	MaxMessages int
}

// SystemMessage resolves the effective system message for a room: the room
// override alone, the default alone, or default plus override when the
// default is forced.
func (a *Assembler) SystemMessage(cfg store.RoomConfig) string {
	override := strings.TrimSpace(cfg.SystemMessage)
	if override == "" {
		return strings.TrimSpace(a.DefaultSystemMessage)
	}
	if a.ForceSystemMessage || cfg.ForceSystemMessage {
		return strings.TrimSpace(a.DefaultSystemMessage + "\n\n" + override)
	}
	return override
}

// Assemble builds the window for one query. The system message and the
// current query are reserved first; history is then included walking from
// the most recent turn backward while the budget holds. Truncation is a
// contiguous suffix cut: the walk stops at the first turn that does not
// fit, never skipping an oversized turn to admit older ones.
//
// If the system message and query alone exceed MaxTokens they are still
// emitted. Replies shrink as conversations grow; that degradation is
// expected.
//
// currentSeq is the ordering key of the already-persisted current turn;
// records at or above it are excluded so the query appears only once.
// Pass zero when the current turn is not persisted yet.
func (a *Assembler) Assemble(ctx context.Context, roomID, query string, cfg store.RoomConfig, currentSeq int64) (Window, error) {
	system := a.SystemMessage(cfg)

	records, err := a.Store.RecentMessages(ctx, roomID, a.MaxMessages)
	if err != nil {
		return Window{}, err
	}
	if currentSeq > 0 {
		kept := records[:0]
		for _, rec := range records {
			if rec.Seq < currentSeq {
				kept = append(kept, rec)
			}
		}
		records = kept
	}

	reserved := a.Estimator.Estimate(system) + a.Estimator.Estimate(query)

	included := 0
	total := reserved
	for i := len(records) - 1; i >= 0; i-- {
		cost := a.Estimator.Estimate(records[i].Body)
		if total+cost > a.MaxTokens {
			break
		}
		total += cost
		included++
	}
	kept := records[len(records)-included:]

	messages := make([]llm.Message, 0, included+2)
	if system != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: system})
	}
	for _, rec := range kept {
		messages = append(messages, llm.Message{Role: rec.Role, Content: rec.Body})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: query})

	return Window{
		Messages:        messages,
		EstimatedTokens: total,
		HistoryIncluded: included,
	}, nil
}
