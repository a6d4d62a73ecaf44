// Package usage records token consumption per room and answers budget
// queries. It only tracks; refusing calls once a budget is exceeded is a
// policy decision the accountant does not make.
package usage

import (
	"context"
	"fmt"

	"github.com/justin-russell/matrix-gptbot/store"
)

type Accountant struct {
	store store.Store
}

func NewAccountant(s store.Store) *Accountant {
	return &Accountant{store: s}
}

// Record appends a usage entry and returns the room's new running total.
func (a *Accountant) Record(ctx context.Context, roomID, backend string, tokens int64) (int64, error) {
	if tokens < 0 {
		return 0, fmt.Errorf("negative token count: %d", tokens)
	}
	return a.store.AddUsage(ctx, roomID, backend, tokens)
}

// Total returns the sum of recorded tokens for a room.
func (a *Accountant) Total(ctx context.Context, roomID string) (int64, error) {
	return a.store.TotalUsage(ctx, roomID)
}

// Remaining computes how much of a configured limit is left. A limit of
// zero or less means unlimited, reported as -1.
func (a *Accountant) Remaining(ctx context.Context, roomID string, limit int64) (int64, error) {
	if limit <= 0 {
		return -1, nil
	}
	total, err := a.store.TotalUsage(ctx, roomID)
	if err != nil {
		return 0, err
	}
	remaining := limit - total
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}
