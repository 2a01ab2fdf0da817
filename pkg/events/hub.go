// Package events implements the in-memory hub through which model lifecycle hooks are fired.
//
// Event names are synthesized from a lifecycle phase and a model type name, so two model
// types sharing a phase never see each other's listeners.
package events

import (
	"context"
	"fmt"
	"sync"
)

// Result is what a listener reports back to a halting event.
type Result int

const (
	// NoOpinion lets propagation continue.
	NoOpinion Result = iota
	// Continue explicitly lets propagation continue.
	Continue
	// Abort stops propagation of a halting event and cancels the operation it guards.
	Abort
)

func (r Result) String() string {
	switch r {
	case Continue:
		return "continue"
	case Abort:
		return "abort"
	default:
		return "no-opinion"
	}
}

// Listener reacts to a fired event. Returning an error stops propagation for every event kind.
type Listener func(ctx context.Context, payload any) (Result, error)

// Phase is a lifecycle stage a listener can hook into.
type Phase string

const (
	Initializing Phase = "initializing"
	Booting      Phase = "booting"
	Booted       Phase = "booted"
	Validating   Phase = "validating"
	Validated    Phase = "validated"
	Saving       Phase = "saving"
	Saved        Phase = "saved"
	Creating     Phase = "creating"
	Created      Phase = "created"
	Updating     Phase = "updating"
	Updated      Phase = "updated"
	Deleting     Phase = "deleting"
	Deleted      Phase = "deleted"
)

// Halts reports whether listeners of the phase can abort the operation.
func (p Phase) Halts() bool {
	switch p {
	case Validating, Saving, Creating, Updating, Deleting:
		return true
	default:
		return false
	}
}

// ObservablePhases lists the phases an observer may implement.
var ObservablePhases = []Phase{
	Creating, Created,
	Updating, Updated,
	Saving, Saved,
	Deleting, Deleted,
	Validating, Validated,
}

// EventName builds the hub key for phase on the model type typeName.
func EventName(phase Phase, typeName string) string {
	return fmt.Sprintf("model.%s.%s", phase, typeName)
}

// Hub is safe for concurrent use, although listeners are expected to be
// registered during initialization.
type Hub struct {
	mu        sync.RWMutex
	listeners map[string][]Listener
}

func NewHub() *Hub {
	return &Hub{listeners: make(map[string][]Listener)}
}

// Listen appends l to the listeners of name.
func (h *Hub) Listen(name string, l Listener) {
	if l == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners[name] = append(h.listeners[name], l)
}

// Forget removes every listener of name.
func (h *Hub) Forget(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.listeners, name)
}

func (h *Hub) HasListeners(name string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners[name]) > 0
}

// Fire calls the listeners of name in registration order.
//
// With halt set, the first listener returning Abort stops propagation and Fire returns Abort.
// Without halt every listener runs and results are ignored. In both cases the first
// listener error stops propagation and is returned.
func (h *Hub) Fire(ctx context.Context, name string, payload any, halt bool) (Result, error) {
	h.mu.RLock()
	listeners := append([]Listener(nil), h.listeners[name]...)
	h.mu.RUnlock()

	for _, l := range listeners {
		res, err := l(ctx, payload)
		if err != nil {
			return Abort, fmt.Errorf("listener for %s: %w", name, err)
		}
		if halt && res == Abort {
			return Abort, nil
		}
	}

	return NoOpinion, nil
}
