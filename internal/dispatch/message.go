// Package dispatch fans one title/body out to a set of push tokens through a
// push gateway.
package dispatch

import "context"

// Message is one push notification addressed to a single token.
type Message struct {
	To    string `json:"to"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Ticket statuses reported by gateways.
const (
	TicketOK    = "ok"
	TicketError = "error"
)

// Ticket is the gateway's per-recipient answer to a push.
type Ticket struct {
	To      string `json:"to"`
	Status  string `json:"status"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Gateway delivers a batch of messages in one request. Tickets, if returned,
// are in message order.
type Gateway interface {
	Push(ctx context.Context, messages []Message) ([]Ticket, error)
}

// BuildMessages returns one message per distinct non-empty recipient, in the
// order recipients were given.
func BuildMessages(recipients []string, title, body string) []Message {
	seen := make(map[string]struct{}, len(recipients))
	messages := make([]Message, 0, len(recipients))
	for _, to := range recipients {
		if to == "" {
			continue
		}
		if _, dup := seen[to]; dup {
			continue
		}
		seen[to] = struct{}{}
		messages = append(messages, Message{To: to, Title: title, Body: body})
	}
	return messages
}

// Result describes an accepted broadcast.
type Result struct {
	Recipients []string
	Tickets    []Ticket
}

// Failed returns recipients whose ticket reports an error.
func (r *Result) Failed() []string {
	var failed []string
	for _, t := range r.Tickets {
		if t.Status == TicketError {
			failed = append(failed, t.To)
		}
	}
	return failed
}
