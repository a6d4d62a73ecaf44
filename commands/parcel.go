package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/justin-russell/matrix-gptbot/backend"
	"github.com/justin-russell/matrix-gptbot/backend/tracking"
)

type ParcelCommand struct {
	Tracking *tracking.Client
}

func (c *ParcelCommand) Name() string { return "parcel" }
func (c *ParcelCommand) Description() string {
	return "Look up the delivery status of a parcel, e.g. `parcel RR123456785GB`."
}
func (c *ParcelCommand) RawArgs() bool { return false }

func (c *ParcelCommand) Execute(ctx context.Context, inv *Invocation) (*Result, error) {
	if len(inv.Args) != 1 {
		return &Result{Reply: "Usage: `parcel <tracking-number>`", Notice: true}, nil
	}

	status, err := c.Tracking.Track(ctx, inv.Args[0])
	if backend.IsUnsupported(err) {
		return &Result{Reply: "Parcel tracking is not available: no tracking API key is configured.", Notice: true}, nil
	}
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**%s** (%s): %s", status.TrackingNumber, status.Carrier, status.Status)
	if status.LastEvent != "" {
		fmt.Fprintf(&b, "\n\nLast event: %s", status.LastEvent)
	}
	if !status.LastUpdate.IsZero() {
		fmt.Fprintf(&b, " (%s)", status.LastUpdate.Format("2006-01-02 15:04 MST"))
	}
	return &Result{Reply: b.String()}, nil
}
