// Package notification keeps the most recent notification a device reported
// receiving.
package notification

import (
	"errors"
	"sync"
	"time"
)

// ErrEmptyContent is returned for events with neither title nor body.
var ErrEmptyContent = errors.New("notification has no title or body")

// Content is the visible part of a notification.
type Content struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Request wraps the content as delivered by the device's notification API.
type Request struct {
	Content Content `json:"content"`
}

// Event is one received notification.
type Event struct {
	Request    Request   `json:"request"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// Inbox holds the latest event. Only the latest is kept.
type Inbox struct {
	mu     sync.RWMutex
	latest *Event
	now    func() time.Time
}

// NewInbox creates an empty inbox.
func NewInbox() *Inbox {
	return &Inbox{now: time.Now}
}

// Record replaces the latest event. A zero ReceivedAt is stamped with the
// current time.
func (i *Inbox) Record(ev Event) (Event, error) {
	if ev.Request.Content.Title == "" && ev.Request.Content.Body == "" {
		return Event{}, ErrEmptyContent
	}
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = i.now().UTC()
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	i.latest = &ev
	return ev, nil
}

// Latest returns a copy of the latest event.
func (i *Inbox) Latest() (*Event, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.latest == nil {
		return nil, false
	}
	ev := *i.latest
	return &ev, true
}
