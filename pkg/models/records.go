// Package models defines the core data structures for the telemetry store.
//
// This package contains the domain models used throughout the engine to
// represent telemetry captured by the host application's collectors:
// HTTP requests, database queries, domain events, outgoing email, log
// entries and execution traces, plus the per-minute rollup buckets and
// saved dashboard filters derived from or attached to them.
package models

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested row does not exist.
// Storage implementations wrap this error when a lookup misses.
var ErrNotFound = errors.New("not found")

// ErrNotExplainable is returned by the EXPLAIN path when the stored
// statement is not a SELECT and therefore cannot be explained safely.
var ErrNotExplainable = errors.New("only SELECT statements can be explained")

// ErrStoreClosed is returned when an operation reaches a store whose
// underlying database handle has already been closed.
var ErrStoreClosed = errors.New("store is closed")

// Request is one completed HTTP request handled by the host application.
// Rows are immutable once written and removed only by retention.
type Request struct {
	ID           int64     `json:"id"`
	Method       string    `json:"method"`
	URL          string    `json:"url"`
	StatusCode   int       `json:"status_code"`
	Duration     float64   `json:"duration"` // milliseconds
	SpanCount    int       `json:"span_count"`
	WarningCount int       `json:"warning_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// Query is one database statement executed while serving a request.
// RequestID is a weak reference: deleting the request does not cascade.
type Query struct {
	ID            int64     `json:"id"`
	RequestID     int64     `json:"request_id,omitempty"`
	SQL           string    `json:"sql"`
	SQLNormalized string    `json:"sql_normalized"`
	Bindings      []any     `json:"bindings,omitempty"`
	Duration      float64   `json:"duration"` // milliseconds
	Method        string    `json:"method,omitempty"`
	Model         string    `json:"model,omitempty"`
	Connection    string    `json:"connection,omitempty"`
	InTransaction bool      `json:"in_transaction"`
	CreatedAt     time.Time `json:"created_at"`
}

// Event is one domain event dispatched while serving a request.
type Event struct {
	ID        int64           `json:"id"`
	RequestID int64           `json:"request_id,omitempty"`
	Name      string          `json:"event_name"`
	Data      json.RawMessage `json:"data,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Email delivery status values.
const (
	EmailSent   = "sent"
	EmailQueued = "queued"
	EmailFailed = "failed"
)

// Email is one outgoing message observed by the mail integration.
type Email struct {
	ID              int64     `json:"id"`
	From            string    `json:"from"`
	To              []string  `json:"to"`
	Cc              []string  `json:"cc,omitempty"`
	Bcc             []string  `json:"bcc,omitempty"`
	Subject         string    `json:"subject"`
	HTML            string    `json:"html,omitempty"`
	Text            string    `json:"text,omitempty"`
	Mailer          string    `json:"mailer,omitempty"`
	Status          string    `json:"status"`
	MessageID       string    `json:"message_id,omitempty"`
	AttachmentCount int       `json:"attachment_count"`
	CreatedAt       time.Time `json:"created_at"`
}

// Log is one structured log entry. RequestID is the collector-supplied
// correlation id and may be empty for entries emitted outside a request.
type Log struct {
	ID        int64          `json:"id"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	RequestID string         `json:"request_id,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Span is one timed segment inside a trace. IDs are collector-supplied
// strings; ParentID is empty for root spans.
type Span struct {
	ID          string         `json:"id"`
	ParentID    string         `json:"parentId,omitempty"`
	Label       string         `json:"label"`
	Category    string         `json:"category,omitempty"`
	StartOffset float64        `json:"startOffset"` // ms from trace start
	Duration    float64        `json:"duration"`    // milliseconds
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Trace is the execution trace recorded for one request.
type Trace struct {
	ID            int64     `json:"id"`
	RequestID     int64     `json:"request_id,omitempty"`
	Method        string    `json:"method"`
	URL           string    `json:"url"`
	StatusCode    int       `json:"status_code"`
	TotalDuration float64   `json:"total_duration"` // milliseconds
	SpanCount     int       `json:"span_count"`
	Spans         []Span    `json:"spans"`
	Warnings      []string  `json:"warnings,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// MetricsBucket is one per-minute rollup row. Bucket is the minute
// timestamp and the idempotence key: at most one row exists per minute.
type MetricsBucket struct {
	Bucket           time.Time `json:"bucket"`
	RequestCount     int       `json:"request_count"`
	AvgDuration      float64   `json:"avg_duration"`
	P95Duration      float64   `json:"p95_duration"`
	ErrorCount       int       `json:"error_count"`
	QueryCount       int       `json:"query_count"`
	AvgQueryDuration float64   `json:"avg_query_duration"`
}

// SavedFilter is a named filter preset a dashboard user can reapply.
// Saved filters are user-managed and exempt from retention.
type SavedFilter struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Section   string          `json:"section"`
	Config    json.RawMessage `json:"filter_config"`
	CreatedAt time.Time       `json:"created_at"`
}
