// Package pace throttles data-channel writes to match the link's drain
// rate.
package pace

import (
	"context"
	"time"

	"github.com/lumendev/lumen-ota/internal/protocol"
)

// Pacer inserts the gap between consecutive packet writes.
type Pacer interface {
	// Wait blocks for the inter-packet gap, or until ctx is cancelled.
	Wait(ctx context.Context) error
}

// Fixed is a Pacer with a constant gap. The zero value never delays.
type Fixed struct {
	Gap time.Duration
}

func (f Fixed) Wait(ctx context.Context) error {
	if f.Gap <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(f.Gap)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ForMode returns the pacer for the configured throughput mode: no delay
// in fast mode, the fixed safe-mode gap otherwise.
func ForMode(fastMode bool) Pacer {
	if fastMode {
		return Fixed{}
	}
	return Fixed{Gap: protocol.PacketDelaySafe}
}
