// Package events allows for the registering and receiving of chain events.
package events

import (
	"errors"
	"fmt"
	"sync"
)

// ErrShutdown is returned when acquiring a channel after Shutdown.
var ErrShutdown = errors.New("events has been shutdown")

// messageBuffer is the capacity of each subscriber channel. A message is
// dropped if the subscriber is not ready to receive, and a websocket send can
// take a while.
const messageBuffer = 100

// Events maintains a mapping of unique id and channels so goroutines
// can register and receive events.
type Events struct {
	m    map[string]chan string
	mu   sync.RWMutex
	shut bool
}

// New constructs an events for registering and receiving events.
func New() *Events {
	return &Events{
		m: make(map[string]chan string),
	}
}

// Shutdown closes and removes all channels that were provided by
// the call to Acquire.
func (evt *Events) Shutdown() {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	for id, ch := range evt.m {
		delete(evt.m, id)
		close(ch)
	}
	evt.shut = true
}

// Acquire takes a unique id and returns a channel that can be used
// to receive events.
func (evt *Events) Acquire(id string) (chan string, error) {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	if evt.shut {
		return nil, ErrShutdown
	}

	ch, exists := evt.m[id]
	if exists {
		return ch, nil
	}

	evt.m[id] = make(chan string, messageBuffer)
	return evt.m[id], nil
}

// Release closes and removes the channel that was provided by
// the call to Acquire.
func (evt *Events) Release(id string) error {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	ch, exists := evt.m[id]
	if !exists {
		return fmt.Errorf("id %q does not exist", id)
	}

	delete(evt.m, id)
	close(ch)
	return nil
}

// Count returns the number of registered subscribers.
func (evt *Events) Count() int {
	evt.mu.RLock()
	defer evt.mu.RUnlock()

	return len(evt.m)
}

// Send signals a message to every registered channel. Send will not block
// waiting for a receiver on any given channel.
func (evt *Events) Send(s string) {
	evt.mu.RLock()
	defer evt.mu.RUnlock()

	for _, ch := range evt.m {
		select {
		case ch <- s:
		default:
		}
	}
}
