package engine

import (
	"errors"
	"math"

	"github.com/google/uuid"

	"spock/internal/errs"
	"spock/internal/exec"
	"spock/internal/lang/parser"
	"spock/internal/session"
	"spock/internal/trace"
	"spock/internal/value"
)

// Session is the transient scope the Session API operates against: a name
// table overlaying theories and parent scopes (internal/session.Session),
// bound to the engine that created it. Obtained via Engine.CreateSession.
type Session struct {
	engine *Engine
	sess   *session.Session
}

// Scores is the {truthScore, confidence} pair spec.md §4.11 attaches to
// every Session API result: truthScore is the cosine projection of the
// call's @result (or its most recently bound VECTOR) onto Truth, scaled to
// [0, 1]; confidence is how far that score sits from the uninformative
// midpoint 0.5, scaled back to [0, 1].
type Scores struct {
	Truth      float64
	Confidence float64
}

// Result is the structured outcome every Session API method returns,
// matching spec.md §4.11/§6 exactly: `{success, symbols, scores, trace,
// replayable text, error?, line?}`.
type Result struct {
	Success bool
	Symbols map[string]value.Value
	Scores  Scores

	// Trace is the replayable SpockDSL text for this call (spec.md §4.10's
	// Replayable); TraceRecord is the full step-by-step record behind it.
	Trace       string
	TraceRecord *trace.Record

	Error string
	Line  int
}

// Learn executes script and remembers its bindings are now part of this
// session's scope (no persistence beyond the session unless the script
// itself calls Remember/Persist) — the baseline Session API operation.
func (s *Session) Learn(script string) Result { return s.run("learn", script) }

// Ask executes script and reports its truth score — same core as Learn,
// named for the caller's intent (spec.md §4.11: "Methods only differ in
// the traceId prefix... the core executor is the same").
func (s *Session) Ask(script string) Result { return s.run("ask", script) }

// Prove executes script, intended for scripts that conclude with an
// Evaluate/Distance statement whose truth score is the answer.
func (s *Session) Prove(script string) Result { return s.run("prove", script) }

// Explain executes script, intended for callers that want the emitted
// trace as a human-facing explanation of how @result was reached.
func (s *Session) Explain(script string) Result { return s.run("explain", script) }

// Plan executes script, intended for scripts whose final statement is a
// Plan verb invocation.
func (s *Session) Plan(script string) Result { return s.run("plan", script) }

// Solve executes script, intended for scripts whose final statement is a
// Solve verb invocation.
func (s *Session) Solve(script string) Result { return s.run("solve", script) }

// Summarise executes script, intended for callers that just want the
// resulting symbol table and scores without a particular verb in mind.
func (s *Session) Summarise(script string) Result { return s.run("summarise", script) }

// run is the single core implementation every Session API method shares:
// parse, execute in dependency order, score, and package the result.
// On an error the call's trace is ended and discarded and no symbols or
// scores are returned. Writes made by statements that ran before the
// failing one are not undone: theory-store writes (Remember, BranchTheory,
// MergeTheory, inline theory seeding) stay on disk.
func (s *Session) run(prefix, script string) Result {
	parsed, err := parser.Parse(script)
	if err != nil {
		return errorResult(err)
	}

	traceID := prefix + "-" + uuid.New().String()
	s.engine.tracer.StartTrace(traceID)

	ctx := exec.NewContext(s.sess, traceID)
	symbols, err := s.engine.exec.Run(ctx, parsed)
	if err != nil {
		s.engine.tracer.EndTrace(traceID) // discard: "not committed" (spec.md §7)
		return errorResult(err)
	}

	rec, _ := s.engine.tracer.EndTrace(traceID)
	s.engine.factCount += len(symbols)

	return Result{
		Success:     true,
		Symbols:     symbols,
		Scores:      s.score(symbols, ctx),
		Trace:       trace.Replayable(rec),
		TraceRecord: rec,
	}
}

// score implements spec.md §4.11's truthScore/confidence computation:
// find @result (or the most recent VECTOR bound anywhere in the call) and
// project it onto Truth. An empty script, or one that never binds a
// VECTOR, reports the zero value — there is nothing to score.
func (s *Session) score(symbols map[string]value.Value, ctx *exec.Context) Scores {
	result, ok := symbols["result"]
	if !ok || !result.IsVector() {
		result, ok = ctx.LastVector()
	}
	if !ok {
		return Scores{}
	}

	truthScore := result.Vector().CosineDistance(s.engine.truth)
	confidence := math.Abs(2*truthScore - 1)
	return Scores{Truth: truthScore, Confidence: confidence}
}

// errorResult packages a failed call per spec.md §7: {success: false,
// error, line?}, recovering a line number from whichever of the typed
// error kinds carries one.
func errorResult(err error) Result {
	return Result{Success: false, Error: err.Error(), Line: extractLine(err)}
}

func extractLine(err error) int {
	var perr *errs.ParseError
	if errors.As(err, &perr) {
		return perr.Line
	}
	var eerr *errs.ExecutionError
	if errors.As(err, &eerr) {
		return eerr.Line
	}
	return 0
}
