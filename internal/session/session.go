// Package session drives one firmware transfer over a connected transport:
// negotiation, paced sector-by-sector transmission, and the completion
// handshake, with per-acknowledgement timeouts and a single terminal
// outcome per run.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lumendev/lumen-ota/internal/pace"
	"github.com/lumendev/lumen-ota/internal/pending"
	"github.com/lumendev/lumen-ota/internal/protocol"
	"github.com/lumendev/lumen-ota/internal/transport"
)

// State is the phase of the transfer state machine. Transitions are
// one-directional except that every state may move to StateFailed.
type State int

const (
	StateIdle State = iota
	StateNegotiating
	StateTransferring
	StateFinalizing
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateNegotiating:
		return "negotiating"
	case StateTransferring:
		return "transferring"
	case StateFinalizing:
		return "finalizing"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Session owns the transfer state machine for one transport connection.
// Construct one per connection; a session runs at most one transfer at a
// time and performs one blocking step at a time.
type Session struct {
	tr  transport.Transport
	reg *pending.Registry
	settings

	mu        sync.Mutex
	state     State
	running   bool
	linkLost  bool
	failCause error
	cancelRun context.CancelFunc
}

// New creates a session bound to a connected transport and subscribes to
// its notification paths.
func New(tr transport.Transport, opts ...Option) (*Session, error) {
	s := &Session{
		tr:       tr,
		reg:      pending.NewRegistry(),
		settings: defaultSettings(),
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(&s.settings)
	}

	err := tr.Subscribe(transport.Callbacks{
		OnCommandNotification: s.handleCommandNotification,
		OnDataNotification:    s.handleDataNotification,
		OnDisconnect:          s.handleDisconnect,
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// State returns the current phase of the state machine.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start begins a transfer run and returns its event stream. The stream
// carries progress events followed by exactly one terminal event, then
// closes. Start rejects a second run while one is active, a nil image,
// a lost link, and geometry the wire format cannot express; rejections
// leave the state machine untouched. A run after a terminal state is a
// fresh run with progress reset.
func (s *Session) Start(ctx context.Context, image []byte, cfg Config) (<-chan Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil, ErrSessionBusy
	}
	if s.linkLost {
		return nil, ErrLinkLost
	}
	if image == nil {
		return nil, ErrNoImage
	}
	if err := protocol.ValidatePayloadSize(cfg.payloadSize(), s.sectorSize); err != nil {
		return nil, err
	}
	if err := protocol.ValidateImageSize(len(image), s.sectorSize); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.failCause = nil
	s.cancelRun = cancel
	s.state = StateNegotiating

	total := (len(image) + s.sectorSize - 1) / s.sectorSize
	// One progress event per sector plus the terminal event; the run never
	// blocks on a slow consumer.
	events := make(chan Event, total+1)

	go s.run(runCtx, cancel, image, cfg, events, total)
	return events, nil
}

// Abort cancels the active run: outstanding acknowledgement waits fail,
// no further writes are made, and the run ends with ErrAborted. Aborting
// an idle session is a no-op.
func (s *Session) Abort() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	if s.failCause == nil {
		s.failCause = ErrAborted
	}
	cancel := s.cancelRun
	s.mu.Unlock()

	cancel()
	s.reg.FailAll(ErrAborted)
}

func (s *Session) run(ctx context.Context, cancel context.CancelFunc, image []byte, cfg Config, events chan<- Event, total int) {
	defer cancel()
	start := time.Now()

	done, written, err := s.transfer(ctx, image, cfg, events, start)

	s.mu.Lock()
	if err != nil {
		s.state = StateFailed
	} else {
		s.state = StateSucceeded
	}
	s.running = false
	s.cancelRun = nil
	s.mu.Unlock()

	percent := progressPercent(done, total)
	if err != nil {
		s.logger.Errorw("transfer failed", "error", err, "sectors_done", done, "sectors_total", total)
	} else {
		s.logger.Infow("transfer complete", "sectors", total, "bytes", written, "elapsed", time.Since(start).String())
	}

	events <- Event{
		Percent:      percent,
		SectorsDone:  done,
		TotalSectors: total,
		BytesWritten: written,
		Elapsed:      time.Since(start),
		Terminal:     true,
		Err:          err,
	}
	close(events)
}

func (s *Session) transfer(ctx context.Context, image []byte, cfg Config, events chan<- Event, start time.Time) (done, written int, err error) {
	sectors := protocol.Sectors(image, s.sectorSize)
	total := len(sectors)

	s.logger.Debugw("negotiating transfer",
		"image_bytes", len(image), "sectors", total, "fast_mode", cfg.FastMode)

	status, err := s.command(ctx, protocol.OpStart, protocol.EncodeStartCommand(uint32(len(image))))
	if err != nil {
		return 0, 0, err
	}
	if status != protocol.StatusOK {
		return 0, 0, &RejectedError{Status: status}
	}

	s.setState(StateTransferring)

	pacer := s.pacer
	if pacer == nil {
		pacer = pace.ForMode(cfg.FastMode)
	}
	payloadSize := cfg.payloadSize()

	for _, sector := range sectors {
		if err := s.sendSector(ctx, sector, payloadSize, pacer); err != nil {
			return done, written, err
		}
		done++
		written += len(sector.Data)

		events <- Event{
			Percent:      progressPercent(done, total),
			SectorsDone:  done,
			TotalSectors: total,
			BytesWritten: written,
			Elapsed:      time.Since(start),
		}
	}

	s.setState(StateFinalizing)
	s.logger.Debugw("finalizing transfer", "sectors", total, "bytes", written)

	status, err = s.command(ctx, protocol.OpFinish, protocol.EncodeFinishCommand())
	if err != nil {
		return done, written, err
	}
	if status != protocol.StatusOK {
		return done, written, &FinishRejectedError{Status: status}
	}

	return done, written, nil
}

// command registers the acknowledgement waiter, writes the frame on the
// command channel, and blocks for the device status.
func (s *Session) command(ctx context.Context, opcode uint16, frame []byte) (uint16, error) {
	req, err := s.reg.Register(pending.CommandKey(opcode))
	if err != nil {
		return 0, err
	}

	if err := ctx.Err(); err != nil {
		req.Cancel()
		return 0, s.cause(err)
	}
	if err := s.tr.WriteCommand(frame); err != nil {
		req.Cancel()
		return 0, &TransportError{Op: "write command", Err: err}
	}

	status, err := req.Wait(ctx, s.ackTimeout)
	if err != nil {
		return 0, s.cause(err)
	}
	return status, nil
}

// sendSector streams one sector's packets, fire and forget through the
// pacer, then blocks for the sector acknowledgement. All failures are
// annotated with the sector index.
func (s *Session) sendSector(ctx context.Context, sector protocol.Sector, payloadSize int, pacer pace.Pacer) error {
	// Register before the packets go out so an acknowledgement racing the
	// last write cannot be lost.
	req, err := s.reg.Register(pending.SectorKey(sector.Index))
	if err != nil {
		return &SectorError{Sector: sector.Index, Err: err}
	}

	for i, packet := range sector.Packets(payloadSize) {
		if i > 0 {
			if err := pacer.Wait(ctx); err != nil {
				req.Cancel()
				return &SectorError{Sector: sector.Index, Err: s.cause(err)}
			}
		} else if err := ctx.Err(); err != nil {
			req.Cancel()
			return &SectorError{Sector: sector.Index, Err: s.cause(err)}
		}

		if err := s.tr.WriteData(packet.Encode()); err != nil {
			req.Cancel()
			return &SectorError{Sector: sector.Index, Err: &TransportError{Op: "write data", Err: err}}
		}
	}

	status, err := req.Wait(ctx, s.ackTimeout)
	if err != nil {
		return &SectorError{Sector: sector.Index, Err: s.cause(err)}
	}
	if status != protocol.StatusOK {
		return &SectorRejectedError{Sector: sector.Index, Status: status}
	}
	return nil
}

// cause maps a context cancellation to the reason the run was torn down.
func (s *Session) cause(err error) error {
	if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCause != nil {
		return s.failCause
	}
	return err
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Session) handleCommandNotification(data []byte) {
	ack, err := protocol.DecodeCommandAck(data)
	if err != nil {
		s.logger.Debugw("dropping command notification", "error", err)
		return
	}
	if !s.reg.Fulfill(pending.CommandKey(ack.Opcode), ack.Status) {
		s.logger.Debugw("dropping unexpected command ack", "opcode", ack.Opcode)
	}
}

func (s *Session) handleDataNotification(data []byte) {
	ack, err := protocol.DecodeSectorAck(data)
	if err != nil {
		s.logger.Debugw("dropping data notification", "error", err)
		return
	}
	if !s.reg.Fulfill(pending.SectorKey(ack.SectorIndex), ack.Status) {
		s.logger.Debugw("dropping unexpected sector ack", "sector", ack.SectorIndex)
	}
}

// handleDisconnect fails the active run and every outstanding wait with
// ErrLinkLost. The session is unusable afterwards; the caller reconnects
// and builds a new one.
func (s *Session) handleDisconnect(err error) {
	s.mu.Lock()
	s.linkLost = true
	if s.failCause == nil {
		s.failCause = ErrLinkLost
	}
	cancel := s.cancelRun
	s.mu.Unlock()

	s.logger.Infow("link lost", "error", err)
	if cancel != nil {
		cancel()
	}
	s.reg.FailAll(ErrLinkLost)
}
