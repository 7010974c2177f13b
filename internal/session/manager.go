package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/fridge-chef/internal/kitchen"
	"github.com/zombor/fridge-chef/internal/scanning"
)

// IDGenerator generates unique session IDs
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (uuidGenerator) Generate() string {
	return uuid.NewString()
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

// Timeouts bound the blocking calls to the model services
type Timeouts struct {
	Extract  time.Duration
	Generate time.Duration
}

// DefaultTimeouts are used for zero fields of Timeouts
var DefaultTimeouts = Timeouts{
	Extract:  90 * time.Second,
	Generate: 120 * time.Second,
}

// call is a blocking step in flight for one session
type call struct {
	action     Action
	generation uint64
	cancel     context.CancelFunc
}

// Manager owns the sessions. Each session has a single writer: at most one
// extraction or generation runs at a time, other edits are refused while it
// runs, and a result that arrives after the session changed is discarded.
type Manager struct {
	store       Store
	orch        *Orchestrator
	timeouts    Timeouts
	idGenerator IDGenerator
	timeSource  TimeSource

	mu       sync.Mutex
	inflight map[string]*call
}

// NewManager creates a Manager with random UUIDs and the system clock
func NewManager(store Store, orch *Orchestrator, timeouts Timeouts) *Manager {
	return NewManagerWithDeps(store, orch, timeouts, uuidGenerator{}, systemClock{})
}

// NewManagerWithDeps creates a Manager with custom dependencies for testing
func NewManagerWithDeps(store Store, orch *Orchestrator, timeouts Timeouts, idGen IDGenerator, timeSrc TimeSource) *Manager {
	if timeouts.Extract <= 0 {
		timeouts.Extract = DefaultTimeouts.Extract
	}
	if timeouts.Generate <= 0 {
		timeouts.Generate = DefaultTimeouts.Generate
	}
	return &Manager{
		store:       store,
		orch:        orch,
		timeouts:    timeouts,
		idGenerator: idGen,
		timeSource:  timeSrc,
		inflight:    make(map[string]*call),
	}
}

// Create starts a new idle session
func (m *Manager) Create() (State, error) {
	now := m.timeSource.Now()
	s := State{
		ID:        m.idGenerator.Generate(),
		Stage:     Idle,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.Save(s); err != nil {
		return State{}, fmt.Errorf("saving session: %w", err)
	}
	slog.Info("Created session", "session", s.ID)
	return s, nil
}

// Get returns the current state of a session
func (m *Manager) Get(id string) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Get(id)
}

// Busy reports the blocking action running for a session, if any
func (m *Manager) Busy(id string) (Action, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.inflight[id]
	if !ok {
		return "", false
	}
	return c.action, true
}

// Delete ends a session and cancels anything it has in flight
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.store.Get(id); err != nil {
		return err
	}
	m.cancelLocked(id)
	if err := m.store.Delete(id); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	slog.Info("Deleted session", "session", id)
	return nil
}

// Upload adds photos. A running extraction or generation is cancelled.
func (m *Manager) Upload(id string, uploads []scanning.Upload) (State, error) {
	return m.apply(id, true, func(s State) (State, error) {
		return m.orch.Upload(s, uploads)
	})
}

// ClearImages resets the session. A running extraction or generation is cancelled.
func (m *Manager) ClearImages(id string) (State, error) {
	return m.apply(id, true, m.orch.ClearImages)
}

// AddIngredient appends to the ingredient list
func (m *Manager) AddIngredient(id string, ing kitchen.Ingredient) (State, error) {
	return m.apply(id, false, func(s State) (State, error) {
		return m.orch.AddIngredient(s, ing)
	})
}

// EditIngredient replaces the ingredient at i
func (m *Manager) EditIngredient(id string, i int, ing kitchen.Ingredient) (State, error) {
	return m.apply(id, false, func(s State) (State, error) {
		return m.orch.EditIngredient(s, i, ing)
	})
}

// RemoveIngredient deletes the ingredient at i
func (m *Manager) RemoveIngredient(id string, i int) (State, error) {
	return m.apply(id, false, func(s State) (State, error) {
		return m.orch.RemoveIngredient(s, i)
	})
}

// Confirm freezes the ingredient list with preferences and a recipe count
func (m *Manager) Confirm(id string, prefs kitchen.Preferences, count int) (State, error) {
	return m.apply(id, false, func(s State) (State, error) {
		return m.orch.Confirm(s, prefs, count)
	})
}

// Select picks a generated recipe
func (m *Manager) Select(id string, i int) (State, error) {
	return m.apply(id, false, func(s State) (State, error) {
		return m.orch.Select(s, i)
	})
}

// Render lays out the selected recipe
func (m *Manager) Render(id string) (State, error) {
	return m.apply(id, false, m.orch.Render)
}

// Extract runs ingredient extraction with the configured timeout
func (m *Manager) Extract(ctx context.Context, id string) (State, error) {
	return m.block(ctx, id, ActionExtract, m.timeouts.Extract, m.orch.Extract)
}

// Generate runs recipe generation with the configured timeout
func (m *Manager) Generate(ctx context.Context, id string) (State, error) {
	return m.block(ctx, id, ActionGenerate, m.timeouts.Generate, m.orch.Generate)
}

// Sweep deletes sessions idle for longer than ttl and returns how many were removed
func (m *Manager) Sweep(ttl time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	expired, err := m.store.DeleteOlderThan(m.timeSource.Now().Add(-ttl))
	if err != nil {
		return 0, fmt.Errorf("sweeping sessions: %w", err)
	}
	for _, id := range expired {
		m.cancelLocked(id)
	}
	if len(expired) > 0 {
		slog.Info("Expired idle sessions", "count", len(expired), "ttl", ttl)
	}
	return len(expired), nil
}

// RunSweeper calls Sweep every interval until ctx is done
func (m *Manager) RunSweeper(ctx context.Context, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.Sweep(ttl); err != nil {
				slog.Error("Failed to sweep sessions", "error", err)
			}
		}
	}
}

// apply runs a non-blocking step under the lock. Steps that may interrupt a
// blocking call cancel it once they commit a change; others fail with ErrBusy.
func (m *Manager) apply(id string, interrupts bool, step func(State) (State, error)) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.store.Get(id)
	if err != nil {
		return State{}, err
	}
	if c, busy := m.inflight[id]; busy && !interrupts {
		return s, fmt.Errorf("%w: %s in progress", ErrBusy, c.action)
	}

	next, err := step(s)
	if err != nil {
		return s, err
	}
	next, err = m.commitLocked(next)
	if err != nil {
		return s, err
	}
	if next.Generation != s.Generation {
		m.cancelLocked(id)
	}
	return next, nil
}

// block runs an extraction or generation outside the lock. The session is
// marked busy for the duration; the result is committed only if the session's
// generation is unchanged when the call returns.
func (m *Manager) block(ctx context.Context, id string, action Action, timeout time.Duration, step func(context.Context, State) (State, error)) (State, error) {
	m.mu.Lock()
	s, err := m.store.Get(id)
	if err != nil {
		m.mu.Unlock()
		return State{}, err
	}
	if c, busy := m.inflight[id]; busy {
		m.mu.Unlock()
		return s, fmt.Errorf("%w: %s in progress", ErrBusy, c.action)
	}
	if err := m.orch.Check(action, s); err != nil {
		m.mu.Unlock()
		return s, err
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	c := &call{action: action, generation: s.Generation, cancel: cancel}
	m.inflight[id] = c
	m.mu.Unlock()

	started := m.timeSource.Now()
	next, stepErr := step(callCtx, s)
	cancel()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inflight[id] == c {
		delete(m.inflight, id)
	}

	current, err := m.store.Get(id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			slog.Debug("Dropping result for deleted session", "session", id, "action", action)
		}
		return State{}, err
	}
	if current.Generation != c.generation {
		slog.Debug("Dropping stale result",
			"session", id,
			"action", action,
			"generation", c.generation,
			"current", current.Generation,
		)
		return current, ErrStale
	}
	if stepErr != nil {
		slog.Warn("Blocking step failed", "session", id, "action", action, "elapsed", m.timeSource.Now().Sub(started), "error", stepErr)
		return current, stepErr
	}

	next, err = m.commitLocked(next)
	if err != nil {
		return current, err
	}
	return next, nil
}

func (m *Manager) commitLocked(s State) (State, error) {
	s.UpdatedAt = m.timeSource.Now()
	if err := m.store.Save(s); err != nil {
		return State{}, fmt.Errorf("saving session: %w", err)
	}
	return s, nil
}

func (m *Manager) cancelLocked(id string) {
	if c, ok := m.inflight[id]; ok {
		c.cancel()
		delete(m.inflight, id)
	}
}
