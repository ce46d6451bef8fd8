package resilience

import (
	"slices"
	"sync"
	"time"
)

// KeyState tracks call outcomes for one executor key ("dog/module").
type KeyState struct {
	Key                 string    `json:"key"`
	Calls               int       `json:"calls"`
	Attempts            int       `json:"attempts"`
	Failures            int       `json:"failures"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastError           string    `json:"last_error,omitempty"`
	LastSuccess         time.Time `json:"last_success,omitempty"`
}

// Attempts records per-key call outcomes. It is safe for concurrent use.
type Attempts struct {
	mu     sync.RWMutex
	states map[string]*KeyState
}

// NewAttempts creates an empty attempt log.
func NewAttempts() *Attempts {
	return &Attempts{states: make(map[string]*KeyState)}
}

func (a *Attempts) getOrCreate(key string) *KeyState {
	s, ok := a.states[key]
	if !ok {
		s = &KeyState{Key: key}
		a.states[key] = s
	}
	return s
}

// RecordCall records the outcome of one Execute call that made n attempts.
func (a *Attempts) RecordCall(key string, n int, err error, at time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := a.getOrCreate(key)
	s.Calls++
	s.Attempts += n
	if err == nil {
		s.ConsecutiveFailures = 0
		s.LastError = ""
		s.LastSuccess = at
		return
	}
	s.Failures++
	s.ConsecutiveFailures++
	s.LastError = err.Error()
}

// State returns a copy of the state for key and whether it exists.
func (a *Attempts) State(key string) (KeyState, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s, ok := a.states[key]
	if !ok {
		return KeyState{}, false
	}
	return *s, true
}

// States returns copies of every key state sorted by key.
func (a *Attempts) States() []KeyState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]KeyState, 0, len(a.states))
	for _, s := range a.states {
		out = append(out, *s)
	}
	slices.SortFunc(out, func(x, y KeyState) int {
		switch {
		case x.Key < y.Key:
			return -1
		case x.Key > y.Key:
			return 1
		}
		return 0
	})
	return out
}

// Failing returns the sorted keys whose most recent call failed.
func (a *Attempts) Failing() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var out []string
	for k, s := range a.states {
		if s.ConsecutiveFailures > 0 {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return out
}

// Reset forgets key.
func (a *Attempts) Reset(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.states, key)
}

// ResetAll forgets every key.
func (a *Attempts) ResetAll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.states = make(map[string]*KeyState)
}
