// Package proxy is an offline-capable caching proxy for the JobLens front-end
// and the upstream job API.
//
// Lifecycle:
//
//	new ──► installing ──► installed ──► activating ──► activated
//	            │              │              │              │
//	            └──────────────┴──────────────┴──────────────┴──► redundant
//
// redundant is terminal. The fetch policy applies only while activated.
package proxy

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// State is a proxy lifecycle state.
type State string

const (
	StateNew        State = "new"
	StateInstalling State = "installing"
	StateInstalled  State = "installed"
	StateActivating State = "activating"
	StateActivated  State = "activated"
	StateRedundant  State = "redundant"
)

var (
	// ErrInvalidTransition is returned for a move the state machine forbids.
	ErrInvalidTransition = errors.New("proxy: invalid lifecycle transition")
	// ErrNotActivated is returned by cache operations before activation.
	ErrNotActivated = errors.New("proxy: not activated")
)

// validTransitions lists every allowed (from → to) pair.
var validTransitions = map[State][]State{
	StateNew:        {StateInstalling},
	StateInstalling: {StateInstalled, StateRedundant},
	StateInstalled:  {StateActivating, StateRedundant},
	StateActivating: {StateActivated, StateRedundant},
	StateActivated:  {StateRedundant},
	// redundant is terminal
}

// ParseState converts a raw string to a State.
func ParseState(s string) (State, error) {
	st := State(s)
	switch st {
	case StateNew, StateInstalling, StateInstalled, StateActivating, StateActivated, StateRedundant:
		return st, nil
	}
	return "", fmt.Errorf("unknown proxy state %q", s)
}

// IsTransitionAllowed reports whether from → to is permitted.
func IsTransitionAllowed(from, to State) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// lifecycle guards the current state.
type lifecycle struct {
	mu    sync.RWMutex
	state State
}

func newLifecycle() *lifecycle { return &lifecycle{state: StateNew} }

func (l *lifecycle) current() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

func (l *lifecycle) transition(to State) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !IsTransitionAllowed(l.state, to) {
		return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, l.state, to)
	}
	slog.Debug("proxy: state change", slog.String("from", string(l.state)), slog.String("to", string(to)))
	l.state = to
	return nil
}
