package realtime

import (
	"sync"
)

// Operation identifies what happened to a notification record.
type Operation string

// Change feed operations.
const (
	OpCreated Operation = "created"
	OpUpdated Operation = "updated"
)

// Event is a single entry in the notification change feed. Seq is assigned
// in append order, so events for one recipient are causally ordered.
type Event struct {
	Seq          uint64      `json:"seq"`
	Op           Operation   `json:"op"`
	RecipientID  string      `json:"recipient_id"`
	Notification interface{} `json:"notification"`
}

// Consumer receives every appended event. Consumers must not block.
type Consumer func(Event)

const defaultFeedCapacity = 1024

// Feed is an append-only log of notification change events. It is the
// boundary between the notification dispatcher and whatever transport
// pushes updates to clients: the feed owns the authoritative per-recipient
// event order, delivery is at-least-once. Consumers that fall behind the
// retained window re-sync from the notification store.
type Feed struct {
	mu        sync.RWMutex
	seq       uint64
	events    []Event
	capacity  int
	consumers map[int]Consumer
	nextID    int
}

// NewFeed constructs a feed retaining up to capacity recent events.
func NewFeed(capacity int) *Feed {
	if capacity <= 0 {
		capacity = defaultFeedCapacity
	}
	return &Feed{
		capacity:  capacity,
		consumers: make(map[int]Consumer),
	}
}

// Append records an event and synchronously notifies all consumers.
// It returns the stored event with its assigned sequence number.
func (f *Feed) Append(recipientID string, op Operation, notification interface{}) Event {
	f.mu.Lock()
	f.seq++
	event := Event{
		Seq:          f.seq,
		Op:           op,
		RecipientID:  recipientID,
		Notification: notification,
	}

	f.events = append(f.events, event)
	if overflow := len(f.events) - f.capacity; overflow > 0 {
		f.events = append(f.events[:0:0], f.events[overflow:]...)
	}

	consumers := make([]Consumer, 0, len(f.consumers))
	for _, consumer := range f.consumers {
		consumers = append(consumers, consumer)
	}
	f.mu.Unlock()

	for _, consumer := range consumers {
		consumer(event)
	}

	return event
}

// Since returns the retained events for a recipient with Seq > afterSeq,
// oldest first.
func (f *Feed) Since(recipientID string, afterSeq uint64) []Event {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var out []Event
	for _, event := range f.events {
		if event.Seq > afterSeq && event.RecipientID == recipientID {
			out = append(out, event)
		}
	}
	return out
}

// LastSeq returns the sequence number of the most recent event.
func (f *Feed) LastSeq() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.seq
}

// Subscribe registers a consumer for future events and returns a cancel
// function removing it.
func (f *Feed) Subscribe(consumer Consumer) func() {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextID
	f.nextID++
	f.consumers[id] = consumer

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.consumers, id)
	}
}
