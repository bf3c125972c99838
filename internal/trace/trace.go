// Package trace implements the execution trace logger (C12) of spec.md
// §4.10: a per-context, append-only record of executed statements that
// becomes immutable once its context ends and converts to a replayable
// script.
package trace

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"spock/internal/value"
)

// StepRecord is one executed statement's trace entry: its index in execution
// order, rendered statement text, and the input/output value summaries spec.md
// §3 calls for.
type StepRecord struct {
	Index         int
	StatementText string
	InputSummary  string
	OutputSummary string
	Timestamp     time.Time
}

// Record is one context's ordered trace. Steps is only ever appended to
// while the record is active; EndTrace freezes it.
type Record struct {
	ID        string
	Steps     []StepRecord
	StartedAt time.Time
	EndedAt   time.Time // zero until EndTrace
}

// Recorder holds every active context's trace, guarded by a single
// RWMutex, mirroring the teacher's `Engine.store`/`Engine.queryContext`
// guarded-map shape.
type Recorder struct {
	mu     sync.RWMutex
	active map[string]*Record
}

// NewRecorder constructs an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{active: make(map[string]*Record)}
}

// StartTrace creates an active record for id, discarding any prior active
// record under the same id.
func (r *Recorder) StartTrace(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active[id] = &Record{ID: id, StartedAt: time.Now()}
}

// LogStep appends step to id's active record. A no-op if id has no active
// record (spec.md §4.10: "appends if active").
func (r *Recorder) LogStep(id string, step StepRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.active[id]
	if !ok {
		return
	}
	rec.Steps = append(rec.Steps, step)
}

// EndTrace stamps the end time, removes id from the active table, and
// returns a frozen copy. Reports false if id had no active record.
func (r *Recorder) EndTrace(id string) (*Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.active[id]
	if !ok {
		return nil, false
	}
	delete(r.active, id)

	frozen := &Record{
		ID:        rec.ID,
		Steps:     append([]StepRecord(nil), rec.Steps...),
		StartedAt: rec.StartedAt,
		EndedAt:   time.Now(),
	}
	return frozen, true
}

// GetTrace returns a snapshot of id's live record, if any.
func (r *Recorder) GetTrace(id string) (*Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.active[id]
	if !ok {
		return nil, false
	}
	return &Record{
		ID:        rec.ID,
		Steps:     append([]StepRecord(nil), rec.Steps...),
		StartedAt: rec.StartedAt,
	}, true
}

// Replayable concatenates each step's rendered statement text with "\n",
// producing a script that reproduces the traced execution.
func Replayable(rec *Record) string {
	var sb strings.Builder
	for _, step := range rec.Steps {
		sb.WriteString(step.StatementText)
		sb.WriteString("\n")
	}
	return sb.String()
}

// Summarise renders a trace-step value summary per spec.md §4.10: vectors
// name only their tag and length, scalars format to a small fixed
// precision. Other tags fall back to the value's general Summary().
func Summarise(v value.Value) string {
	switch v.Tag {
	case value.TagVector:
		return fmt.Sprintf("VECTOR(len=%d)", v.Vector().Dim())
	case value.TagScalar:
		return fmt.Sprintf("SCALAR(%.4f)", v.Scalar())
	default:
		return v.Summary()
	}
}
