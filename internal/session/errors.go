package session

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionBusy is returned by Start while a transfer is running.
	// Concurrent transfers are rejected, never queued.
	ErrSessionBusy = errors.New("transfer already in progress")

	// ErrAborted is the failure cause of a caller-cancelled transfer.
	ErrAborted = errors.New("transfer aborted")

	// ErrLinkLost is the failure cause when the transport disconnects.
	ErrLinkLost = errors.New("link lost")

	// ErrNoImage is returned by Start when no firmware image is supplied.
	// A zero-length image is valid; a nil one is not.
	ErrNoImage = errors.New("no firmware image")
)

// RejectedError indicates the device declined the transfer start command.
type RejectedError struct {
	Status uint16
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("transfer rejected by device: status 0x%04X", e.Status)
}

// FinishRejectedError indicates the device returned a non-zero status for
// the finish command. The protocol defines no rejection semantics for
// finish, so any non-zero status is treated as one.
type FinishRejectedError struct {
	Status uint16
}

func (e *FinishRejectedError) Error() string {
	return fmt.Sprintf("finish rejected by device: status 0x%04X", e.Status)
}

// SectorRejectedError indicates the device reported a non-zero status for
// one sector.
type SectorRejectedError struct {
	Sector uint16
	Status uint16
}

func (e *SectorRejectedError) Error() string {
	return fmt.Sprintf("sector %d rejected by device: status 0x%04X", e.Sector, e.Status)
}

// SectorError annotates a sector-phase failure (timeout, abort, link loss,
// write error) with the sector it happened on.
type SectorError struct {
	Sector uint16
	Err    error
}

func (e *SectorError) Error() string {
	return fmt.Sprintf("sector %d: %v", e.Sector, e.Err)
}

func (e *SectorError) Unwrap() error { return e.Err }

// TransportError wraps a write failure surfaced by the transport.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
