package models

import "github.com/swarmpush/swarmpush/internal/dispatch"

// BroadcastRequest fans one title/body out to every push token in To.
type BroadcastRequest struct {
	To    []string `json:"to"`
	Title string   `json:"title"`
	Body  string   `json:"body"`
}

// Validate returns field errors for the request.
func (r *BroadcastRequest) Validate() []FieldError {
	var errs []FieldError
	if len(r.To) == 0 {
		errs = append(errs, FieldError{Field: "to", Message: "at least one recipient is required", Code: "REQUIRED"})
	}
	for _, to := range r.To {
		if to == "" {
			errs = append(errs, FieldError{Field: "to", Message: "recipients must be non-empty", Code: "INVALID"})
			break
		}
	}
	return errs
}

// BroadcastResponse reports what the gateway accepted.
type BroadcastResponse struct {
	Recipients int               `json:"recipients"`
	Tickets    []dispatch.Ticket `json:"tickets,omitempty"`
	Failed     []string          `json:"failed,omitempty"`
}
