package session

import "sync"

// EventKind identifies a session notification.
type EventKind int

const (
	// EventKeysLoaded fires after a key scan, load-more, prefix expansion or
	// exact lookup has been applied. Observers compare TreeID to decide
	// between a full rebuild and an incremental merge of their view.
	EventKeysLoaded EventKind = iota
	// EventValueAdded fires after a field was added to the active value.
	EventValueAdded
	// EventValueUpdated fires after the active value changed in place.
	EventValueUpdated
	// EventValuePaginationStarted fires when a value page fetch is dispatched.
	EventValuePaginationStarted
	// EventValuePaginationFinished fires when a value page fetch was applied.
	EventValuePaginationFinished
	// EventNotification carries a user-facing message.
	EventNotification
)

func (k EventKind) String() string {
	switch k {
	case EventKeysLoaded:
		return "keys_loaded"
	case EventValueAdded:
		return "value_added"
	case EventValueUpdated:
		return "value_updated"
	case EventValuePaginationStarted:
		return "value_pagination_started"
	case EventValuePaginationFinished:
		return "value_pagination_finished"
	case EventNotification:
		return "notification"
	default:
		return "unknown"
	}
}

// Severity grades a notification.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// Notification is a user-facing message attached to an EventNotification.
type Notification struct {
	Severity Severity
	Title    string
	Message  string
}

// Event is a session notification. Key names the subject key where
// applicable; Notification is set only for EventNotification.
type Event struct {
	Kind         EventKind
	Key          string
	Notification *Notification
}

// bus fans events out to subscriber channels. Sends never block: a
// subscriber that falls behind its buffer misses events rather than
// stalling the session.
type bus struct {
	mu     sync.Mutex
	subs   []chan Event
	buffer int
	closed bool
}

func newBus(buffer int) *bus {
	if buffer <= 0 {
		buffer = 16
	}
	return &bus{buffer: buffer}
}

func (b *bus) subscribe() <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.buffer)
	if b.closed {
		close(ch)
		return ch
	}
	b.subs = append(b.subs, ch)
	return ch
}

func (b *bus) publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

func (b *bus) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}
