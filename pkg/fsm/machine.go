package fsm

import (
	"context"
	"fmt"
	"sync"
)

type State string
type Event string

// Handler is executed when a transition occurs. If it returns an error the
// machine stays in the source state.
type Handler func(ctx context.Context, event Event, args ...interface{}) error

// Observer is notified after every Fire, successful or not.
type Observer func(from, to State, event Event, err error)

// TransitionError is returned by Fire when no transition is registered for
// the current state and event.
type TransitionError struct {
	From  State
	Event Event
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s via %s", e.From, e.Event)
}

type StateMachine struct {
	// firing serializes Fire; mu guards current so handlers can read it.
	firing      sync.Mutex
	mu          sync.RWMutex
	current     State
	transitions map[State]map[Event]State
	callbacks   map[State]map[Event]Handler
	observers   []Observer
}

func New(initial State) *StateMachine {
	return &StateMachine{
		current:     initial,
		transitions: make(map[State]map[Event]State),
		callbacks:   make(map[State]map[Event]Handler),
	}
}

func (sm *StateMachine) Current() State {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.current
}

// AddTransition registers from --event--> to. from and to may be equal.
func (sm *StateMachine) AddTransition(from, to State, event Event, callback Handler) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if _, ok := sm.transitions[from]; !ok {
		sm.transitions[from] = make(map[Event]State)
		sm.callbacks[from] = make(map[Event]Handler)
	}
	sm.transitions[from][event] = to
	sm.callbacks[from][event] = callback
}

// Observe adds an observer. Observers run synchronously at the end of Fire.
func (sm *StateMachine) Observe(o Observer) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.observers = append(sm.observers, o)
}

// Can reports whether event is valid from the current state.
func (sm *StateMachine) Can(event Event) bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	_, ok := sm.transitions[sm.current][event]
	return ok
}

// Fire triggers a state transition. Calls are serialized; a handler must not
// call Fire itself.
func (sm *StateMachine) Fire(ctx context.Context, event Event, args ...interface{}) error {
	sm.firing.Lock()
	defer sm.firing.Unlock()

	sm.mu.RLock()
	from := sm.current
	next, ok := sm.transitions[from][event]
	handler := sm.callbacks[from][event]
	observers := append([]Observer(nil), sm.observers...)
	sm.mu.RUnlock()

	if !ok {
		err := &TransitionError{From: from, Event: event}
		notify(observers, from, from, event, err)
		return err
	}

	if handler != nil {
		if err := handler(ctx, event, args...); err != nil {
			notify(observers, from, from, event, err)
			return err
		}
	}

	sm.mu.Lock()
	sm.current = next
	sm.mu.Unlock()

	notify(observers, from, next, event, nil)
	return nil
}

func notify(observers []Observer, from, to State, event Event, err error) {
	for _, o := range observers {
		o(from, to, event, err)
	}
}

// Personal.AI order the ending
