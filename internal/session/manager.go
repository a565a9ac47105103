package session

import (
	"context"
	"errors"
	"log"
	"sync"
)

var ErrAlreadyRunning = errors.New("a session is already running")

// Factory builds a fresh driver for each run so config edits between runs
// take effect.
type Factory func(ctx context.Context) (*Driver, error)

// Manager allows one session at a time and keeps the last result around
// for the status endpoint.
type Manager struct {
	build Factory

	mu     sync.Mutex
	cur    *Driver
	busy   bool // an Exclusive task holds the slot
	cancel context.CancelFunc
	done   chan struct{}
	last   Status
}

func NewManager(build Factory) *Manager {
	return &Manager{build: build, last: Status{State: StateIdle}}
}

func (m *Manager) begin(parent context.Context) (*Driver, context.Context, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cur != nil || m.busy {
		return nil, nil, ErrAlreadyRunning
	}
	d, err := m.build(parent)
	if err != nil {
		return nil, nil, err
	}
	ctx, cancel := context.WithCancel(parent)
	m.cur, m.cancel, m.done = d, cancel, make(chan struct{})
	return d, ctx, nil
}

func (m *Manager) end(st Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancel()
	close(m.done)
	m.cur, m.cancel, m.done = nil, nil, nil
	m.last = st
}

// RunSync runs a session in the caller's goroutine.
func (m *Manager) RunSync(ctx context.Context) (Status, error) {
	d, rctx, err := m.begin(ctx)
	if err != nil {
		return m.Status(), err
	}
	st, err := d.Run(rctx)
	if err != nil {
		st.Error = err.Error()
	}
	m.end(st)
	return st, err
}

// Start runs a session in the background.
func (m *Manager) Start(ctx context.Context) error {
	d, rctx, err := m.begin(ctx)
	if err != nil {
		return err
	}
	go func() {
		st, err := d.Run(rctx)
		if err != nil {
			log.Printf("[session] run failed: %v", err)
			st.Error = err.Error()
		}
		m.end(st)
	}()
	return nil
}

// Stop interrupts the running session and waits for it to flush. It
// returns false when nothing was running.
func (m *Manager) Stop() bool {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.mu.Unlock()
	if cancel == nil {
		return false
	}
	cancel()
	<-done
	return true
}

// Exclusive runs fn while no session may start, e.g. a redelivery that
// works on the same pending leads. It returns ErrAlreadyRunning without
// calling fn when a session or another exclusive task holds the slot.
func (m *Manager) Exclusive(ctx context.Context, fn func(context.Context) error) error {
	m.mu.Lock()
	if m.cur != nil || m.busy {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}
	m.busy = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.busy = false
		m.mu.Unlock()
	}()
	return fn(ctx)
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cur != nil {
		return m.cur.Status()
	}
	return m.last
}
