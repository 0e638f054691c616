package models

// Filter structs carry the optional predicates a dashboard list view can
// apply to each entity. Zero values mean "not set"; pointer fields
// distinguish "unset" from a legitimate zero. All set predicates are
// combined with AND.

// RequestFilter narrows the request list.
type RequestFilter struct {
	Method      string   // exact match
	URL         string   // substring match
	Status      *int     // exact match
	StatusMin   *int     // inclusive lower bound
	StatusMax   *int     // inclusive upper bound
	DurationMin *float64 // inclusive, milliseconds
	DurationMax *float64
}

// QueryFilter narrows the query list.
type QueryFilter struct {
	Method      string // exact match
	Model       string // exact match
	Connection  string // exact match
	DurationMin *float64
	DurationMax *float64
	RequestID   *int64
}

// EventFilter narrows the event list.
type EventFilter struct {
	Name string // substring match on event_name
}

// EmailFilter narrows the email list. ExcludeBody requests the list
// projection that omits the html/text columns.
type EmailFilter struct {
	From        string // substring match
	To          string // substring match
	Subject     string // substring match
	Mailer      string // exact match
	Status      string // exact match
	ExcludeBody bool
}

// Structured log filter operators.
const (
	OpEquals     = "equals"
	OpContains   = "contains"
	OpStartsWith = "startsWith"
)

// DataFilter is one structured predicate compiled against a JSON-path
// extraction ($.Field) of a log entry's structured payload.
type DataFilter struct {
	Field    string `json:"field"`
	Operator string `json:"operator"` // equals | contains | startsWith
	Value    string `json:"value"`
}

// LogFilter narrows the log list.
type LogFilter struct {
	Level     string // exact match
	RequestID string // exact match
	Search    string // substring match on message
	Data      []DataFilter
}

// TraceFilter narrows the trace list.
type TraceFilter struct {
	Method    string // exact match
	URL       string // substring match
	StatusMin *int
	StatusMax *int
}
