// Package errlog collects diagnostic records raised by the numerics
// components. A Reporter is an append-only sink of (procedure, message)
// pairs, injected explicitly into whatever needs to report; it is not a
// flow-control mechanism, so callers signal failures through returned
// errors and use the reporter for context only.
package errlog

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Record is one reported diagnostic.
type Record struct {
	Proc string
	Msg  string
}

// Reporter accumulates records until drained. The zero value is usable.
// A Reporter is safe for use by a single solver instance; independent
// solvers must own independent reporters.
type Reporter struct {
	mu      sync.Mutex
	records []Record
	log     *slog.Logger
}

// New returns an empty Reporter.
func New() *Reporter {
	return &Reporter{}
}

// WithLogger mirrors every record to l as a warning, in addition to
// accumulating it.
func (r *Reporter) WithLogger(l *slog.Logger) *Reporter {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = l
	return r
}

// Report appends a record.
func (r *Reporter) Report(proc, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, Record{Proc: proc, Msg: msg})
	if r.log != nil {
		r.log.Warn(msg, "proc", proc)
	}
}

// Reportf appends a record with a formatted message.
func (r *Reporter) Reportf(proc, format string, args ...any) {
	r.Report(proc, fmt.Sprintf(format, args...))
}

// Len returns the number of accumulated records.
func (r *Reporter) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// Records returns a copy of the accumulated records in report order.
func (r *Reporter) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

// Drain returns the accumulated records and clears the sink.
func (r *Reporter) Drain() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.records
	r.records = nil
	return out
}

// String formats the accumulated records one per line.
func (r *Reporter) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sb strings.Builder
	for _, rec := range r.records {
		fmt.Fprintf(&sb, "%s: %s\n", rec.Proc, rec.Msg)
	}
	return sb.String()
}
