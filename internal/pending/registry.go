// Package pending correlates outgoing OTA requests with the asynchronous
// acknowledgements that arrive on the notification path.
//
// Each request registers a key before its frame is written; the receive
// path fulfills the key with the device status, waking the waiter. At most
// one waiter may exist per key, and every wait is bounded by a deadline.
package pending

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrTimeout is returned when no acknowledgement arrives before the
	// deadline. The stale entry is removed, so a later run may reuse the key.
	ErrTimeout = errors.New("acknowledgement timed out")

	// ErrDuplicate is returned when a waiter is registered for a key that
	// already has one. This is a protocol violation by the caller, not a
	// replacement of the earlier waiter.
	ErrDuplicate = errors.New("request already pending")
)

// KeyKind distinguishes the two acknowledgement namespaces.
type KeyKind uint8

const (
	KindCommand KeyKind = iota
	KindSector
)

// Key identifies one acknowledgeable unit of work.
type Key struct {
	Kind KeyKind
	ID   uint16
}

// CommandKey returns the key for a command opcode.
func CommandKey(opcode uint16) Key { return Key{Kind: KindCommand, ID: opcode} }

// SectorKey returns the key for a sector index.
func SectorKey(index uint16) Key { return Key{Kind: KindSector, ID: index} }

func (k Key) String() string {
	if k.Kind == KindCommand {
		return fmt.Sprintf("command:%d", k.ID)
	}
	return fmt.Sprintf("sector:%d", k.ID)
}

type outcome struct {
	status uint16
	err    error
}

// Request is a registered wait for a single acknowledgement.
type Request struct {
	reg *Registry
	key Key
	ch  chan outcome
}

// Registry tracks at most one outstanding acknowledgement per key.
// Fulfill may be called concurrently with waits and with itself.
type Registry struct {
	mu      sync.Mutex
	waiters map[Key]chan outcome
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{waiters: make(map[Key]chan outcome)}
}

// Register creates a pending request for key. It must be called before the
// corresponding frame is written so an immediate acknowledgement cannot be
// lost. Registering a key that is already pending fails with ErrDuplicate.
func (r *Registry) Register(key Key) (*Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.waiters[key]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicate, key)
	}

	ch := make(chan outcome, 1)
	r.waiters[key] = ch
	return &Request{reg: r, key: key, ch: ch}, nil
}

// Await is Register followed by Wait, for callers with nothing to do in
// between.
func (r *Registry) Await(ctx context.Context, key Key, timeout time.Duration) (uint16, error) {
	req, err := r.Register(key)
	if err != nil {
		return 0, err
	}
	return req.Wait(ctx, timeout)
}

// Wait blocks until the request is fulfilled, failed, the timeout
// elapses, or ctx is cancelled. On success it returns the status the
// device reported. The registry entry is always gone when Wait returns.
func (p *Request) Wait(ctx context.Context, timeout time.Duration) (uint16, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	timedOut := false
	select {
	case out := <-p.ch:
		return out.status, out.err
	case <-timer.C:
		timedOut = true
	case <-ctx.Done():
	}

	p.reg.mu.Lock()
	// A fulfillment may have raced the timer or the cancellation; prefer
	// it over either.
	select {
	case out := <-p.ch:
		p.reg.mu.Unlock()
		return out.status, out.err
	default:
	}
	delete(p.reg.waiters, p.key)
	p.reg.mu.Unlock()

	if timedOut {
		return 0, fmt.Errorf("%w: %s", ErrTimeout, p.key)
	}
	return 0, ctx.Err()
}

// Cancel removes the request without waking anyone. Used when the write
// the request was registered for never went out.
func (p *Request) Cancel() {
	p.reg.mu.Lock()
	if ch, ok := p.reg.waiters[p.key]; ok && ch == p.ch {
		delete(p.reg.waiters, p.key)
	}
	p.reg.mu.Unlock()
}

// Fulfill wakes the waiter registered for key with the device status.
// It reports whether a waiter existed; a late or duplicate notification
// finds none and is silently dropped.
func (r *Registry) Fulfill(key Key, status uint16) bool {
	r.mu.Lock()
	ch, ok := r.waiters[key]
	if ok {
		delete(r.waiters, key)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	ch <- outcome{status: status}
	return true
}

// FailAll wakes every registered waiter with err and clears the registry.
// Used on abort and on link loss, where no acknowledgement will ever come.
func (r *Registry) FailAll(err error) {
	r.mu.Lock()
	waiters := r.waiters
	r.waiters = make(map[Key]chan outcome)
	r.mu.Unlock()

	for _, ch := range waiters {
		ch <- outcome{err: err}
	}
}

// Len reports the number of outstanding requests.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.waiters)
}
