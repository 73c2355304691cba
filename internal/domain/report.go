package domain

import "time"

// Age buckets for open-ticket triage. Thresholds are strict lower bounds on
// days open: >30, >20, >10, else under 10.
const (
	BucketOver30  = "Over 30 Days"
	BucketOver20  = "Over 20 Days"
	BucketOver10  = "Over 10 Days"
	BucketUnder10 = "Under 10 Days"
)

// StatusEntry tracks the reporting state for one ticket, keyed by its
// integer id. ResolvedAt is attached by the enrichment pass and stays empty
// for tickets that never resolved.
type StatusEntry struct {
	Status     string
	UpdatedAt  string
	ResolvedAt string
}

// StatusMap indexes status entries by coerced integer ticket id.
type StatusMap map[int64]*StatusEntry

// MeetingWindow is the current reporting period. Start falls on the anchor
// weekday at midnight; End never exceeds now.
type MeetingWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// TicketRow is the enriched, export-ready projection of a ticket. Rows are
// immutable once built.
type TicketRow struct {
	ID              TicketID `json:"id"`
	Subject         string   `json:"subject"`
	Group           *int64   `json:"group"`
	Status          string   `json:"status"`
	AssigneeID      *int64   `json:"assignee_id"`
	AssigneeName    *string  `json:"assignee_name"`
	AgeBucket       *string  `json:"ageBucket"`
	AgeDays         int      `json:"ageDays"`
	ClosedByMeeting bool     `json:"closedByMeeting"`
}
