package types

import (
	"errors"
	"time"
)

// ErrInvalidRequest marks a request the gateway cannot accept as given.
var ErrInvalidRequest = errors.New("invalid request")

// Request is the canonical representation of one caller invocation.
// It is not modified after the gateway creates it.
type Request struct {
	ID         string         `json:"id"`
	Capability Capability     `json:"capability"`
	Payload    string         `json:"payload"`
	ServiceID  string         `json:"service_id,omitempty"`
	CallerID   string         `json:"caller_id,omitempty"`
	Context    map[string]any `json:"context,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`

	SubmittedAt time.Time `json:"submitted_at"`
}

// ContextString returns a string value from the request context, if set.
func (r *Request) ContextString(key string) string {
	if r == nil || r.Context == nil {
		return ""
	}
	s, _ := r.Context[key].(string)
	return s
}
