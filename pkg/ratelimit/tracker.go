package ratelimit

import (
	"context"
	"sort"
	"sync"

	"forkcrawl/pkg/metrics"
)

// Tracker records the latest quota state of each credential
type Tracker interface {
	// Update stores the state for state.Credential
	Update(ctx context.Context, state State) error
	// Get returns the last state for a credential; ok is false if none is known
	Get(ctx context.Context, credential string) (state State, ok bool, err error)
	// All returns every known state ordered by credential name
	All(ctx context.Context) ([]State, error)
}

// MemoryTracker keeps state in process memory
type MemoryTracker struct {
	mu     sync.RWMutex
	states map[string]State
}

// NewMemoryTracker creates an empty in-memory tracker
func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{states: make(map[string]State)}
}

func (m *MemoryTracker) Update(ctx context.Context, state State) error {
	m.mu.Lock()
	m.states[state.Credential] = state
	m.mu.Unlock()

	publish(state)
	return nil
}

func (m *MemoryTracker) Get(ctx context.Context, credential string) (State, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.states[credential]
	return s, ok, nil
}

func (m *MemoryTracker) All(ctx context.Context) ([]State, error) {
	m.mu.RLock()
	out := make([]State, 0, len(m.states))
	for _, s := range m.states {
		out = append(out, s)
	}
	m.mu.RUnlock()

	sortStates(out)
	return out, nil
}

func publish(state State) {
	if state.Remaining >= 0 {
		metrics.RateLimitRemaining.WithLabelValues(state.Credential).Set(float64(state.Remaining))
	}
}

func sortStates(states []State) {
	sort.Slice(states, func(i, j int) bool { return states[i].Credential < states[j].Credential })
}
