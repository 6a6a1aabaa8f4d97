package session

import (
	"time"

	"github.com/lumendev/lumen-ota/internal/pace"
	"github.com/lumendev/lumen-ota/internal/protocol"
)

// Config is the immutable per-run transfer configuration.
type Config struct {
	// FastMode selects the larger negotiated payload size and disables
	// inter-packet pacing. The preference is persisted by the caller, not
	// here.
	FastMode bool
}

// payloadSize returns the packet payload size for the mode.
func (c Config) payloadSize() int {
	if c.FastMode {
		return protocol.PayloadSizeFast
	}
	return protocol.PayloadSizeSafe
}

// Logger is an optional structured logger for session internals.
// *zap.SugaredLogger satisfies it directly.
type Logger interface {
	Debugw(msg string, keysAndValues ...any)
	Infow(msg string, keysAndValues ...any)
	Errorw(msg string, keysAndValues ...any)
}

type nopLogger struct{}

func (nopLogger) Debugw(string, ...any) {}
func (nopLogger) Infow(string, ...any)  {}
func (nopLogger) Errorw(string, ...any) {}

type settings struct {
	ackTimeout time.Duration
	sectorSize int
	pacer      pace.Pacer
	logger     Logger
}

func defaultSettings() settings {
	return settings{
		ackTimeout: protocol.AckTimeout,
		sectorSize: protocol.SectorSize,
		logger:     nopLogger{},
	}
}

// Option configures a Session.
type Option func(*settings)

// WithAckTimeout overrides the per-acknowledgement deadline.
func WithAckTimeout(timeout time.Duration) Option {
	return func(s *settings) {
		if timeout > 0 {
			s.ackTimeout = timeout
		}
	}
}

// WithPacer overrides the mode-derived pacing controller. Tests use this
// to run deterministically with no delay.
func WithPacer(p pace.Pacer) Option {
	return func(s *settings) {
		s.pacer = p
	}
}

// WithLogger sets a structured logger for session internals.
func WithLogger(logger Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSectorSize overrides the sector size. Tests use this to exercise
// multi-sector transfers with small images.
func WithSectorSize(size int) Option {
	return func(s *settings) {
		if size > 0 {
			s.sectorSize = size
		}
	}
}
