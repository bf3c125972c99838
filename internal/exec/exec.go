// Package exec implements the executor (C11) of spec.md §4.5: the central
// dispatcher that walks a scheduled script, resolving operands, resolving
// verbs (user-defined verb macros in scope first, then the geometric,
// numeric, planning and theory registries, then the distinguished verbs
// Persist/Describe/Evaluate), type-checking, dispatching, binding results,
// and logging a trace step per statement.
package exec

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"spock/internal/config"
	"spock/internal/errs"
	"spock/internal/kernel"
	"spock/internal/lang/ast"
	"spock/internal/lang/depgraph"
	"spock/internal/lang/parser"
	"spock/internal/logging"
	"spock/internal/numeric"
	"spock/internal/planner"
	"spock/internal/session"
	"spock/internal/theory"
	"spock/internal/trace"
	"spock/internal/value"
	"spock/internal/vecspace"
)

// planningVerbs and theoryVerbs are the registries §4.5 step 2 checks
// after the geometric and numeric kernels, in order.
var planningVerbs = map[string]bool{"Plan": true, "Solve": true}
var theoryVerbs = map[string]bool{"UseTheory": true, "Remember": true, "BranchTheory": true, "MergeTheory": true}
var distinguishedVerbs = map[string]bool{"Persist": true, "Describe": true, "Evaluate": true}

// Executor owns the shared services every dispatched verb needs: the
// vector space (auto-concept generation), the planner, the theory store,
// the trace recorder, the canonical Truth vector Evaluate projects onto,
// and the recursion/step limits from config.
type Executor struct {
	space   *vecspace.Space
	planner *planner.Planner
	store   *theory.Store
	tracer  *trace.Recorder
	cfg     *config.Config
	truth   vecspace.Vector
}

// New constructs an Executor. truth is the engine's canonical Truth
// vector, against which Evaluate projects.
func New(space *vecspace.Space, p *planner.Planner, store *theory.Store, tracer *trace.Recorder, cfg *config.Config, truth vecspace.Vector) *Executor {
	return &Executor{space: space, planner: p, store: store, tracer: tracer, cfg: cfg, truth: truth}
}

// Context carries the per-call state that changes as execution descends
// into user verb macros and theory bodies: the current session, the
// shared trace id and step counter, recursion depth, and the user verb
// macros presently in lexical scope.
type Context struct {
	Session *session.Session
	TraceID string
	Depth   int
	Macros  map[string]*ast.Macro

	stepIndex  *int
	lastVector *value.Value
}

// NewContext starts a fresh top-level execution context bound to sess and
// traceId. The trace must already have been started via the Executor's
// tracer (StartTrace) by the caller (the Session API owns trace
// lifecycle); exec only logs steps into it.
func NewContext(sess *session.Session, traceID string) *Context {
	idx := 0
	return &Context{Session: sess, TraceID: traceID, Depth: 0, Macros: map[string]*ast.Macro{}, stepIndex: &idx, lastVector: &value.Value{}}
}

func (c *Context) child(sess *session.Session, macros map[string]*ast.Macro) *Context {
	return &Context{Session: sess, TraceID: c.TraceID, Depth: c.Depth + 1, Macros: macros, stepIndex: c.stepIndex, lastVector: c.lastVector}
}

// LastVector returns the most recently bound VECTOR result seen anywhere
// in this call's execution (including descents into macro/theory bodies),
// used by the Session API to score a call whose script never declares
// `@result`.
func (c *Context) LastVector() (value.Value, bool) {
	if c.lastVector == nil || !c.lastVector.IsVector() || c.lastVector.Vector().Dim() == 0 {
		return value.Value{}, false
	}
	return *c.lastVector, true
}

// Run executes every top-level statement of script in dependency order
// against ctx.Session. Top-level verb macros become invocable verb names
// for this call (spec.md §4.5 step 2's "user-defined verb macro in
// scope"); top-level theory macros are auto-persisted to the theory store
// under their own name the first time they are seen, so an inline `theory
// ... end` block is usable by UseTheory/BranchTheory/MergeTheory without a
// separate save step. Returns the declaration->value map this call bound.
func (e *Executor) Run(ctx *Context, script *ast.Script) (map[string]value.Value, error) {
	macros := mergeMacros(ctx.Macros, script.Macros)
	ctx = ctx.withMacros(macros)

	if err := e.seedInlineTheories(script.Macros); err != nil {
		return nil, err
	}

	return e.executeScheduled(ctx, script.Statements)
}

func (c *Context) withMacros(macros map[string]*ast.Macro) *Context {
	cp := *c
	cp.Macros = macros
	return &cp
}

// mergeMacros layers child (script- or macro-local) verb macros over the
// parent's, so a nested scope can see its ancestors' macros plus its own.
func mergeMacros(parent map[string]*ast.Macro, local []*ast.Macro) map[string]*ast.Macro {
	merged := make(map[string]*ast.Macro, len(parent)+len(local))
	for k, v := range parent {
		merged[k] = v
	}
	for _, m := range local {
		if m.Kind == ast.KindVerb {
			merged[strings.TrimPrefix(m.Name, "@")] = m
		}
	}
	return merged
}

// seedInlineTheories persists every top-level theory-kind macro to the
// theory store under its own name, if no theory by that name exists yet.
// This lets a script declare `@Geometry theory begin ... end` and
// immediately `UseTheory`/`BranchTheory`/`MergeTheory` it by name, instead
// of requiring a separate out-of-band save.
func (e *Executor) seedInlineTheories(macros []*ast.Macro) error {
	for _, m := range macros {
		if m.Kind != ast.KindTheory {
			continue
		}
		name := strings.TrimPrefix(m.Name, "@")
		if _, err := e.store.Load(name); err == nil {
			continue
		}
		sourceText := renderMacroBody(m)
		script, perr := parser.Parse(sourceText)
		if perr != nil {
			return fmt.Errorf("exec: seeding inline theory %q: %w", name, perr)
		}
		now := time.Now()
		d := &theory.Descriptor{
			Name:       name,
			VersionID:  uuid.New().String(),
			Script:     script,
			SourceText: sourceText,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := e.store.Save(d); err != nil {
			return fmt.Errorf("exec: seeding inline theory %q: %w", name, err)
		}
		logging.Executor("seeded inline theory %q as version %s", name, d.VersionID)
	}
	return nil
}

func renderMacroBody(m *ast.Macro) string {
	var sb strings.Builder
	for _, st := range m.Statements {
		sb.WriteString(st.String())
		sb.WriteString("\n")
	}
	return sb.String()
}

// executeScheduled orders statements by dependency and executes them one
// at a time against ctx.Session, returning the bare-name->value map of
// everything bound. This is also the shape theory.ExecuteFunc needs, so
// asExecuteFunc below wraps it directly.
func (e *Executor) executeScheduled(ctx *Context, statements []ast.Statement) (map[string]value.Value, error) {
	scheduled, err := depgraph.Build(statements).Schedule()
	if err != nil {
		return nil, err
	}

	symbols := make(map[string]value.Value, len(scheduled))
	for _, st := range scheduled {
		v, err := e.executeStatement(ctx, st)
		if err != nil {
			return nil, err
		}
		symbols[strings.TrimPrefix(st.Declaration, "@")] = v
	}
	return symbols, nil
}

// asExecuteFunc adapts the executor into the theory.ExecuteFunc callback
// Store.Use injects, so UseTheory executes a theory body through the same
// dispatcher recursion depth and trace id as everything else (spec.md
// §4.9: "the executor injects itself").
func (e *Executor) asExecuteFunc(ctx *Context) theory.ExecuteFunc {
	return func(child *session.Session, statements []ast.Statement) (map[string]value.Value, error) {
		if ctx.Depth+1 >= e.cfg.MaxRecursion {
			return nil, &errs.ExecutionError{Message: "max recursion depth exceeded executing theory body"}
		}
		return e.executeScheduled(ctx.child(child, ctx.Macros), statements)
	}
}

// executeStatement runs spec.md §4.5's six steps for a single statement.
func (e *Executor) executeStatement(ctx *Context, st ast.Statement) (value.Value, error) {
	verb := st.Verb

	var result value.Value
	var err error
	inputSummary := fmt.Sprintf("%s %s", st.Subject.Text, st.Object.Text)

	stampOrigin := false
	switch {
	case ctx.Macros[verb] != nil:
		result, err = e.dispatchUserMacro(ctx, st, ctx.Macros[verb])
	case kernel.IsVerb(verb):
		var subject, object value.Value
		subject, object, err = e.resolveOperands(ctx, st)
		if err == nil {
			inputSummary = fmt.Sprintf("%s %s", trace.Summarise(subject), trace.Summarise(object))
			result, err = kernel.Dispatch(verb, subject, object)
			stampOrigin = true
		}
	case numeric.IsVerb(verb):
		var subject, object value.Value
		subject, object, err = e.resolveOperands(ctx, st)
		if err == nil {
			inputSummary = fmt.Sprintf("%s %s", trace.Summarise(subject), trace.Summarise(object))
			result, err = numeric.Dispatch(verb, subject, object)
			stampOrigin = true
		}
		if err == nil && verb == "AttachToConcept" && st.Object.Kind != ast.OperandPlaceholder && object.IsVector() {
			f, unit := subject.Numeric()
			updated := object.WithProperty(numeric.PropertyKey(unit), f)
			ctx.Session.Bind(st.Object.Text, updated)
		}
	case planningVerbs[verb]:
		var subject, object value.Value
		subject, object, err = e.resolveOperands(ctx, st)
		if err == nil {
			inputSummary = fmt.Sprintf("%s %s", trace.Summarise(subject), trace.Summarise(object))
			result, err = e.dispatchPlanning(verb, subject, object)
		}
	case theoryVerbs[verb]:
		result, err = e.dispatchTheory(ctx, st)
	case distinguishedVerbs[verb]:
		result, err = e.dispatchDistinguished(ctx, st)
	default:
		return value.Value{}, &errs.UnknownVerbError{Verb: verb}
	}

	if err != nil {
		return value.Value{}, fmt.Errorf("line %d (%s): %w", st.Line, st.String(), err)
	}

	if stampOrigin && result.IsVector() {
		result = result.WithOrigin(value.Origin{Subject: st.Subject.Text, Verb: st.Verb, Object: st.Object.Text})
	}

	ctx.Session.Bind(st.Declaration, result)
	if result.IsVector() {
		*ctx.lastVector = result
	}
	e.logStep(ctx, st, inputSummary, result)
	return result, nil
}

func (e *Executor) logStep(ctx *Context, st ast.Statement, inputSummary string, result value.Value) {
	index := *ctx.stepIndex
	*ctx.stepIndex++
	e.tracer.LogStep(ctx.TraceID, trace.StepRecord{
		Index:         index,
		StatementText: st.String(),
		InputSummary:  inputSummary,
		OutputSummary: trace.Summarise(result),
		Timestamp:     time.Now(),
	})
}

// resolveOperands resolves both operands of a statement through the
// generic rule of spec.md §4.5 step 1: magic-var references must already
// resolve, numeric literals become SCALAR, and bare identifiers resolve
// against the session or else trigger auto-concept generation.
func (e *Executor) resolveOperands(ctx *Context, st ast.Statement) (value.Value, value.Value, error) {
	subject, err := e.resolveOperand(ctx, st.Subject)
	if err != nil {
		return value.Value{}, value.Value{}, err
	}
	object, err := e.resolveOperand(ctx, st.Object)
	if err != nil {
		return value.Value{}, value.Value{}, err
	}
	return subject, object, nil
}

func (e *Executor) resolveOperand(ctx *Context, op ast.Operand) (value.Value, error) {
	switch op.Kind {
	case ast.OperandPlaceholder:
		return value.Value{}, nil
	case ast.OperandMagicVar:
		v, ok := ctx.Session.Resolve(op.Text)
		if !ok {
			return value.Value{}, &errs.UnknownReferenceError{Name: op.Text}
		}
		return v, nil
	case ast.OperandLiteral:
		f, perr := strconv.ParseFloat(op.Text, 64)
		if perr != nil {
			return value.Value{}, fmt.Errorf("exec: malformed numeric literal %q: %w", op.Text, perr)
		}
		return value.NewScalar(f), nil
	default: // ast.OperandIdentifier
		if v, ok := ctx.Session.Resolve(op.Text); ok {
			return v, nil
		}
		v := value.NewVectorAnnotated(e.space.Random(), op.Text, nil)
		ctx.Session.Bind(op.Text, v)
		logging.ExecutorDebug("auto-concept generated for identifier %q", op.Text)
		return v, nil
	}
}

// nameOperand resolves an operand to a plain name string rather than a
// boxed Value: used for theory names, branch names, and Persist/Describe's
// rename target, none of which should trigger auto-concept generation. A
// magic-var is resolved and, if it names a STRING or THEORY value, that
// value's text is used; anything else (including a bare identifier) uses
// the operand's literal text.
func nameOperand(ctx *Context, op ast.Operand) string {
	if op.Kind == ast.OperandMagicVar {
		if v, ok := ctx.Session.Resolve(op.Text); ok {
			switch v.Tag {
			case value.TagString:
				return v.StringValue()
			case value.TagTheory:
				return v.Theory().Name
			}
		}
	}
	return op.Text
}

// dispatchUserMacro implements spec.md §4.5 step 4's user verb macro
// case: a child session with $subject/$object bound, the macro's body
// executed in dependency order, and its @result read back.
func (e *Executor) dispatchUserMacro(ctx *Context, st ast.Statement, macro *ast.Macro) (value.Value, error) {
	if ctx.Depth+1 >= e.cfg.MaxRecursion {
		return value.Value{}, &errs.ExecutionError{Message: "max recursion depth exceeded", Statement: st.String(), Line: st.Line}
	}

	subject, object, err := e.resolveOperands(ctx, st)
	if err != nil {
		return value.Value{}, err
	}

	child := ctx.Session.NewChild()
	child.Bind("subject", subject)
	child.Bind("object", object)

	childMacros := mergeMacros(ctx.Macros, macro.Nested)
	childCtx := ctx.child(child, childMacros)

	if _, err := e.executeScheduled(childCtx, macro.Statements); err != nil {
		return value.Value{}, fmt.Errorf("verb macro %s: %w", macro.Name, err)
	}

	result, ok := child.Resolve(ast.ResultDeclaration)
	if !ok {
		return value.Value{}, &errs.ExecutionError{Message: fmt.Sprintf("verb macro %q produced no @result", macro.Name), Statement: st.String(), Line: st.Line}
	}
	return result, nil
}

// dispatchPlanning resolves Plan and Solve against the two-vector
// statement contract: Solve reduces the verb catalogue's general
// constraint-set form to a single implicit constraint against object,
// since a statement has no way to carry a list of constraints.
func (e *Executor) dispatchPlanning(verb string, subject, object value.Value) (value.Value, error) {
	if !subject.IsVector() {
		return value.Value{}, &errs.TypeError{Expected: []string{"VECTOR"}, Actual: subject.Tag.String(), Verb: verb, Position: 1}
	}
	if !object.IsVector() {
		return value.Value{}, &errs.TypeError{Expected: []string{"VECTOR"}, Actual: object.Tag.String(), Verb: verb, Position: 2}
	}

	switch verb {
	case "Plan":
		result := e.planner.Plan(subject.Vector(), object.Vector(), nil)
		if !result.Success {
			logging.ExecutorWarn("Plan did not converge within %d steps (final distance %g)", e.cfg.MaxPlanningSteps, result.FinalDistance)
		}
		out := value.NewVector(result.FinalVector).WithProperty("distance", result.FinalDistance)
		return out, nil
	case "Solve":
		constraints := []planner.Constraint{{Name: "target", Target: object.Vector(), MinSimilarity: 1 - e.cfg.PlanningEpsilon}}
		result := e.planner.Solve(subject.Vector(), constraints, nil)
		if !result.Success {
			logging.ExecutorWarn("Solve did not satisfy its constraint within %d steps (score %g)", e.cfg.MaxPlanningSteps, result.Score)
		}
		out := value.NewVector(result.FinalVector).WithProperty("score", result.Score)
		return out, nil
	default:
		return value.Value{}, &errs.UnknownVerbError{Verb: verb}
	}
}

// dispatchTheory resolves the four theory-versioning verbs, each of which
// treats its name operands as plain store keys rather than session
// references (spec.md §4.9).
func (e *Executor) dispatchTheory(ctx *Context, st ast.Statement) (value.Value, error) {
	switch st.Verb {
	case "UseTheory":
		name := nameOperand(ctx, st.Object)
		d, err := e.store.Load(name)
		if err != nil {
			return value.Value{}, err
		}
		if _, err := e.store.Use(ctx.Session, name, e.asExecuteFunc(ctx)); err != nil {
			return value.Value{}, err
		}
		return value.NewTheory(name, d.VersionID), nil

	case "Remember":
		name := nameOperand(ctx, st.Object)
		d, err := e.store.Remember(ctx.Session, name)
		if err != nil {
			return value.Value{}, err
		}
		return value.NewTheory(d.Name, d.VersionID), nil

	case "BranchTheory":
		source := nameOperand(ctx, st.Subject)
		branchName := nameOperand(ctx, st.Object)
		d, err := e.store.Branch(source, branchName)
		if err != nil {
			return value.Value{}, err
		}
		return value.NewTheory(d.Name, d.VersionID), nil

	case "MergeTheory":
		target := nameOperand(ctx, st.Subject)
		raw := nameOperand(ctx, st.Object)
		source, strategy, hasStrategy := strings.Cut(raw, ":")
		if !hasStrategy {
			strategy = "target"
		}
		d, err := e.store.Merge(target, source, strategy)
		if err != nil {
			return value.Value{}, err
		}
		return value.NewTheory(d.Name, d.VersionID), nil

	default:
		return value.Value{}, &errs.UnknownVerbError{Verb: st.Verb}
	}
}

// dispatchDistinguished implements Persist, Describe, and Evaluate
// directly, since none of them belongs to the kernel/numeric/planner/
// theory packages (spec.md §4.5 step 4).
func (e *Executor) dispatchDistinguished(ctx *Context, st ast.Statement) (value.Value, error) {
	subject, err := e.resolveOperand(ctx, st.Subject)
	if err != nil {
		return value.Value{}, err
	}

	switch st.Verb {
	case "Persist":
		name := nameOperand(ctx, st.Object)
		ctx.Session.Bind(name, subject)
		return subject, nil

	case "Describe":
		name := nameOperand(ctx, st.Object)
		if name == "_" || name == "" {
			name = subject.SymbolName()
		}
		return subject.Describe(name), nil

	case "Evaluate":
		if !subject.IsVector() {
			return value.Value{}, &errs.TypeError{Expected: []string{"VECTOR"}, Actual: subject.Tag.String(), Verb: "Evaluate", Position: 1}
		}
		truth := e.truth
		if st.Object.Kind != ast.OperandPlaceholder {
			if object, operr := e.resolveOperand(ctx, st.Object); operr == nil && object.IsVector() {
				truth = object.Vector()
			}
		}
		score := subject.Vector().CosineDistance(truth)
		return value.NewScalar(score), nil

	default:
		return value.Value{}, &errs.UnknownVerbError{Verb: st.Verb}
	}
}
