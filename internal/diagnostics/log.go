// Package diagnostics collects the operator-facing findings of a data run.
package diagnostics

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// Severity of a diagnostic
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Entry is one recorded diagnostic
type Entry struct {
	Severity Severity  `json:"severity"`
	Message  string    `json:"message"`
	Cause    string    `json:"cause,omitempty"`
	Time     time.Time `json:"time"`
	err      error
}

// Err returns the attached cause, if any
func (e Entry) Err() error {
	return e.err
}

// String renders the entry the way Print writes it
func (e Entry) String() string {
	prefix := "ERROR"
	if e.Severity == SeverityWarning {
		prefix = "WARNING"
	}
	if e.Cause != "" {
		return fmt.Sprintf("%s: %s: %s", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// Observer is notified after every append
type Observer func(Entry)

// Log is an append-only, concurrency-safe list of diagnostics
type Log struct {
	mu        sync.Mutex
	entries   []Entry
	hasError  bool
	logger    *slog.Logger
	observers []Observer
}

// NewLog creates an empty log. A nil logger uses slog.Default().
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger.With(slog.String("component", "diagnostics"))}
}

// Observe registers fn to be called after each append
func (l *Log) Observe(fn Observer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.observers = append(l.observers, fn)
}

// Error records an error diagnostic. err may be nil.
func (l *Log) Error(msg string, err error) {
	l.add(SeverityError, msg, err)
}

// Warning records a warning diagnostic. err may be nil.
func (l *Log) Warning(msg string, err error) {
	l.add(SeverityWarning, msg, err)
}

func (l *Log) add(sev Severity, msg string, err error) {
	e := Entry{Severity: sev, Message: msg, Time: time.Now(), err: err}
	if err != nil {
		e.Cause = err.Error()
	}

	l.mu.Lock()
	l.entries = append(l.entries, e)
	if sev == SeverityError {
		l.hasError = true
	}
	observers := l.observers
	l.mu.Unlock()

	l.logger.Debug("diagnostic recorded",
		slog.String("severity", string(sev)),
		slog.String("message", msg),
		slog.Any("error", err),
	)
	for _, fn := range observers {
		fn(e)
	}
}

// HasError reports whether any error-severity entry was recorded
func (l *Log) HasError() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hasError
}

// Len returns the number of entries
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Entries returns a copy of the entries in append order
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry(nil), l.entries...)
}

// Count returns the number of entries with the given severity
func (l *Log) Count(sev Severity) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.Severity == sev {
			n++
		}
	}
	return n
}

// Print writes one line per entry
func (l *Log) Print(w io.Writer) error {
	for _, e := range l.Entries() {
		if _, err := fmt.Fprintln(w, e.String()); err != nil {
			return err
		}
	}
	return nil
}
