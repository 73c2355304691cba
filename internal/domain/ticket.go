package domain

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Ticket statuses as reported by the ticketing API.
const (
	StatusOpen    = "open"
	StatusPending = "pending"
	StatusOnHold  = "on-hold"
	StatusSolved  = "solved"
	StatusClosed  = "closed"
)

// TicketID carries a ticket identifier as received from the upstream API.
// The search endpoint mixes numeric and string ids, so the raw form is kept
// and integer coercion happens where a numeric key is required.
type TicketID string

// UnmarshalJSON accepts both numeric and string id forms.
func (t *TicketID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = TicketID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*t = TicketID(n.String())
	return nil
}

// MarshalJSON renders the id as a number when it is digit-only, preserving
// the wire shape the upstream produced.
func (t TicketID) MarshalJSON() ([]byte, error) {
	if n, ok := t.Int(); ok {
		return json.Marshal(n)
	}
	return json.Marshal(string(t))
}

// Int coerces the id to an integer. Returns false for non-digit ids.
func (t TicketID) Int() (int64, bool) {
	if len(t) == 0 {
		return 0, false
	}
	var n int64
	for _, r := range string(t) {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int64(r-'0')
	}
	return n, true
}

// Ticket is the transient copy of an upstream helpdesk ticket. It lives in
// the external system; this service never creates or deletes one.
type Ticket struct {
	ID         TicketID `json:"id"`
	Subject    string   `json:"subject"`
	Status     string   `json:"status"`
	CreatedAt  string   `json:"created_at"`
	UpdatedAt  string   `json:"updated_at"`
	AssigneeID *int64   `json:"assignee_id"`
	GroupID    *int64   `json:"group_id"`
}

// User is the canonical agent shape, normalized at the adapter boundary.
type User struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	GroupID *int64 `json:"group_id"`
}

// Comment is a ticket comment returned by the comments endpoint.
type Comment struct {
	ID        int64  `json:"id"`
	AuthorID  *int64 `json:"author_id"`
	Body      string `json:"body"`
	Public    bool   `json:"public"`
	CreatedAt string `json:"created_at"`
}

// IsResolved reports whether a status counts as resolved for reporting.
func IsResolved(status string) bool {
	status = strings.ToLower(status)
	return status == StatusSolved || status == StatusClosed
}
