package server

import (
	"fmt"
	"sync"

	"github.com/sweet-bbq-sauce/sfap/protocol"
	"github.com/sweet-bbq-sauce/sfap/wire"
)

// Handler is the signature of a registered command implementation: it
// runs while the session is in the PROCESSING state, with full access to
// the session and its stream (spec §4.3).
type Handler func(sess *Session, s *wire.Stream) error

type registryEntry struct {
	name    string
	handler Handler
}

// CommandRegistry is a thread-safe map from command id to (name, handler).
// One read/write lock guards the inner map: reads take a shared lock,
// mutations take an exclusive lock (spec §4.3), ported from
// original_source's command_registry.cpp.
type CommandRegistry struct {
	mu      sync.RWMutex
	entries map[protocol.Command]registryEntry
}

// NewCommandRegistry returns an empty registry.
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{entries: make(map[protocol.Command]registryEntry)}
}

// Add registers handler under id and name. It fails if either the id or
// the name is already registered (spec §4.3's uniqueness invariant).
func (r *CommandRegistry) Add(id protocol.Command, name string, handler Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[id]; ok {
		return fmt.Errorf("server: command id %d already registered", id)
	}
	for _, e := range r.entries {
		if e.name == name {
			return fmt.Errorf("server: command name %q already registered", name)
		}
	}
	r.entries[id] = registryEntry{name: name, handler: handler}
	return nil
}

// Remove deletes id from the registry, if present.
func (r *CommandRegistry) Remove(id protocol.Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

// RemoveByName deletes the command named name, if present.
func (r *CommandRegistry) RemoveByName(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, e := range r.entries {
		if e.name == name {
			delete(r.entries, id)
			return
		}
	}
}

// Size returns the number of registered commands.
func (r *CommandRegistry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Empty reports whether the registry has no entries.
func (r *CommandRegistry) Empty() bool { return r.Size() == 0 }

// CommandList returns a snapshot of id -> name for every registered
// command, used by the COMMANDS always-allowed handler.
func (r *CommandRegistry) CommandList() map[protocol.Command]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[protocol.Command]string, len(r.entries))
	for id, e := range r.entries {
		out[id] = e.name
	}
	return out
}

// Exists reports whether id is registered.
func (r *CommandRegistry) Exists(id protocol.Command) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[id]
	return ok
}

// ExistsName reports whether name is registered.
func (r *CommandRegistry) ExistsName(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.name == name {
			return true
		}
	}
	return false
}

// Get returns the handler registered for id. ok is false if id is not
// registered, or if it is registered with a nil handler (the
// always-allowed ids are registered this way purely for enumeration).
func (r *CommandRegistry) Get(id protocol.Command) (handler Handler, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, present := r.entries[id]
	if !present || e.handler == nil {
		return nil, false
	}
	return e.handler, true
}

// Merge copies every entry of other into r, subject to the same
// duplicate-id/duplicate-name rejection as Add.
func (r *CommandRegistry) Merge(other *CommandRegistry) error {
	other.mu.RLock()
	snapshot := make(map[protocol.Command]registryEntry, len(other.entries))
	for id, e := range other.entries {
		snapshot[id] = e
	}
	other.mu.RUnlock()

	for id, e := range snapshot {
		if err := r.Add(id, e.name, e.handler); err != nil {
			return err
		}
	}
	return nil
}
