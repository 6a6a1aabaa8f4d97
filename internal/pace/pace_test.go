package pace

import (
	"context"
	"testing"
	"time"

	"github.com/lumendev/lumen-ota/internal/protocol"
)

func TestFixed_ZeroGapReturnsImmediately(t *testing.T) {
	start := time.Now()
	if err := (Fixed{}).Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Millisecond {
		t.Errorf("zero-gap Wait took %v, want immediate", elapsed)
	}
}

func TestFixed_WaitsForGap(t *testing.T) {
	start := time.Now()
	if err := (Fixed{Gap: 20 * time.Millisecond}).Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("Wait returned after %v, want at least 20ms", elapsed)
	}
}

func TestFixed_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := (Fixed{Gap: time.Hour}).Wait(ctx); err == nil {
		t.Error("Wait with cancelled context expected error, got nil")
	}
	if err := (Fixed{}).Wait(ctx); err == nil {
		t.Error("zero-gap Wait with cancelled context expected error, got nil")
	}
}

func TestForMode(t *testing.T) {
	fast, ok := ForMode(true).(Fixed)
	if !ok || fast.Gap != 0 {
		t.Errorf("ForMode(true) = %#v, want zero-gap Fixed", ForMode(true))
	}

	safe, ok := ForMode(false).(Fixed)
	if !ok || safe.Gap != protocol.PacketDelaySafe {
		t.Errorf("ForMode(false) = %#v, want %v gap", ForMode(false), protocol.PacketDelaySafe)
	}
}
