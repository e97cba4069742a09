package tmi

import (
	"sync"
	"sync/atomic"
)

// listenerID disambiguates two otherwise-identical EventHandler values so
// the internal removeByID/offByID path can drop exactly one registration
// instead of every registration for a topic.
type listenerID uint64

var nextListenerID uint64

type listenerEntry struct {
	id       listenerID
	listener EventHandler
}

// EventEmitter is a minimal, synchronous, multi-topic pub/sub bus. Emit
// calls run listeners on the calling goroutine in registration order; a
// listener that blocks blocks the emitter, so long-running work should be
// handed off to a new goroutine by the listener itself.
type EventEmitter struct {
	mu           sync.RWMutex
	events       map[string][]listenerEntry
	maxListeners int
}

// NewEventEmitter creates a new EventEmitter.
func NewEventEmitter() *EventEmitter {
	return &EventEmitter{
		events:       make(map[string][]listenerEntry),
		maxListeners: 0,
	}
}

// SetMaxListeners sets the maximum number of listeners per event (0 = unlimited).
func (e *EventEmitter) SetMaxListeners(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.maxListeners = n
}

// On registers an event listener and returns the emitter for chaining. The
// public API cannot remove this one registration on its own:
// Off/RemoveListener clear every listener on the topic.
func (e *EventEmitter) On(eventType string, listener EventHandler) *EventEmitter {
	e.addListener(eventType, listener)
	return e
}

func (e *EventEmitter) addListener(eventType string, listener EventHandler) listenerID {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.maxListeners > 0 && len(e.events[eventType]) >= e.maxListeners {
		return 0
	}

	id := listenerID(atomic.AddUint64(&nextListenerID, 1))
	e.events[eventType] = append(e.events[eventType], listenerEntry{id: id, listener: listener})
	return id
}

// Once registers a listener that removes itself before its first invocation
// completes, so a recursive Emit from within the listener can't observe it
// twice.
func (e *EventEmitter) Once(eventType string, listener EventHandler) *EventEmitter {
	var id listenerID
	var idMu sync.Mutex

	wrapped := func(args ...any) {
		idMu.Lock()
		captured := id
		idMu.Unlock()
		e.removeByID(eventType, captured)
		listener(args...)
	}

	idMu.Lock()
	id = e.addListener(eventType, wrapped)
	idMu.Unlock()

	return e
}

// Emit triggers an event with the given arguments, running each listener on
// the calling goroutine. Returns true if any listener was registered.
func (e *EventEmitter) Emit(eventType string, args ...any) bool {
	e.mu.RLock()
	entries, exists := e.events[eventType]
	e.mu.RUnlock()

	if !exists || len(entries) == 0 {
		return false
	}

	entriesCopy := make([]listenerEntry, len(entries))
	copy(entriesCopy, entries)

	for _, entry := range entriesCopy {
		entry.listener(args...)
	}

	return true
}

// Emits triggers multiple topics with corresponding argument sets, one Emit
// per topic in order on the calling goroutine (e.g. ["connected",
// "_promiseConnect"]). A topic past the end of values reuses the last
// argument set. No lock is held across the topics, so an Emit from another
// goroutine can run between two of them.
func (e *EventEmitter) Emits(types []string, values [][]any) {
	for i, eventType := range types {
		var val []any
		if i < len(values) {
			val = values[i]
		} else if len(values) > 0 {
			val = values[len(values)-1]
		}
		e.Emit(eventType, val...)
	}
}

// RemoveListener removes ALL registrations under eventType, whatever
// EventHandler value is passed: Go cannot compare arbitrary closures for
// equality, so the handler argument is ignored. The correlation layer,
// which needs precise single-registration removal, uses the internal
// once/offByID path instead.
func (e *EventEmitter) RemoveListener(eventType string, _ EventHandler) *EventEmitter {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.events, eventType)
	return e
}

// removeByID drops exactly the registration identified by id, leaving all
// other listeners on eventType untouched.
func (e *EventEmitter) removeByID(eventType string, id listenerID) {
	if id == 0 {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	entries, exists := e.events[eventType]
	if !exists {
		return
	}

	filtered := entries[:0:0]
	for _, entry := range entries {
		if entry.id != id {
			filtered = append(filtered, entry)
		}
	}

	if len(filtered) == 0 {
		delete(e.events, eventType)
	} else {
		e.events[eventType] = filtered
	}
}

// RemoveAllListeners removes all listeners for an event type, or all events
// if no type is specified.
func (e *EventEmitter) RemoveAllListeners(eventType ...string) *EventEmitter {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(eventType) == 0 {
		e.events = make(map[string][]listenerEntry)
	} else {
		delete(e.events, eventType[0])
	}

	return e
}

// Listeners returns a snapshot of the listeners registered for an event type.
func (e *EventEmitter) Listeners(eventType string) []EventHandler {
	e.mu.RLock()
	defer e.mu.RUnlock()

	entries, exists := e.events[eventType]
	if !exists {
		return []EventHandler{}
	}

	result := make([]EventHandler, len(entries))
	for i, entry := range entries {
		result[i] = entry.listener
	}
	return result
}

// ListenerCount returns the number of listeners for an event type.
func (e *EventEmitter) ListenerCount(eventType string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.events[eventType])
}

// AddListener is an alias for On.
func (e *EventEmitter) AddListener(eventType string, listener EventHandler) *EventEmitter {
	return e.On(eventType, listener)
}

// Off is an alias for RemoveListener.
func (e *EventEmitter) Off(eventType string, listener EventHandler) *EventEmitter {
	return e.RemoveListener(eventType, listener)
}

// once registers a listener and returns the id needed to remove exactly
// that registration via offByID. Internal callers (the correlation layer)
// use this instead of Once/Off so a timeout path can cancel a still-pending
// one-shot listener without guessing at closure identity.
func (e *EventEmitter) once(eventType string, listener EventHandler) listenerID {
	var id listenerID
	var idMu sync.Mutex

	wrapped := func(args ...any) {
		idMu.Lock()
		captured := id
		idMu.Unlock()
		e.removeByID(eventType, captured)
		listener(args...)
	}

	idMu.Lock()
	id = e.addListener(eventType, wrapped)
	idMu.Unlock()

	return id
}

// offByID cancels a pending registration made via once/on by id, used by the
// correlation layer's timeout path so a late response can't invoke a future
// that already resolved via timeout.
func (e *EventEmitter) offByID(eventType string, id listenerID) {
	e.removeByID(eventType, id)
}
