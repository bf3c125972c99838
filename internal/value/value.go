// Package value implements the boxed runtime value that every statement in
// a SPOCK GOS script produces and consumes: a small tagged sum over
// vectors, scalars, units-bearing numerics, measured concepts, strings, and
// the carrier tags used for parser output (macros, theory references).
//
// This package sits below internal/kernel, internal/numeric,
// internal/session, internal/theory and internal/exec so all of them can
// share one value representation without importing each other.
package value

import (
	"fmt"

	"spock/internal/vecspace"
)

// Tag identifies which alternative of the boxed value sum is populated.
type Tag int

const (
	TagVector Tag = iota
	TagScalar
	TagNumeric
	TagMeasured
	TagString
	TagMacro
	TagTheory
)

// String renders the tag name, used in TypeError messages.
func (t Tag) String() string {
	switch t {
	case TagVector:
		return "VECTOR"
	case TagScalar:
		return "SCALAR"
	case TagNumeric:
		return "NUMERIC"
	case TagMeasured:
		return "MEASURED"
	case TagString:
		return "STRING"
	case TagMacro:
		return "MACRO"
	case TagTheory:
		return "THEORY"
	default:
		return "UNKNOWN"
	}
}

// Origin records the (subject, verb, object) declaration that first bound a
// VECTOR value, used by theory.Store.Remember to re-emit that statement.
type Origin struct {
	Subject string
	Verb    string
	Object  string
}

// TheoryRef is the lightweight carrier a boxed THEORY value holds; the full
// descriptor (AST, metadata, cache) lives in internal/theory's Store, keyed
// by this name/version pair.
type TheoryRef struct {
	Name      string
	VersionID string
}

// MacroRef is the carrier a boxed MACRO value holds — the macro body lives
// in the parser's AST; exec looks it up by name when dispatching to a
// user-defined verb.
type MacroRef struct {
	Name string
}

// Value is the boxed runtime value. Exactly one field group is meaningful,
// selected by Tag; accessor methods panic if called against the wrong tag,
// matching the executor's contract that type-checking happens before
// dispatch (§4.5 step 3) — by the time code calls an accessor, the tag has
// already been validated.
type Value struct {
	Tag Tag

	vec    vecspace.Vector
	scalar float64

	numericF    float64
	numericUnit string

	measuredF       float64
	measuredUnit    string
	measuredConcept string
	measuredVec     *vecspace.Vector

	str   string
	macro MacroRef
	theory TheoryRef

	symbolName string
	origin     *Origin
	properties map[string]float64
}

// NewVector boxes a vecspace.Vector with no annotation.
func NewVector(v vecspace.Vector) Value {
	return Value{Tag: TagVector, vec: v}
}

// NewVectorAnnotated boxes a vecspace.Vector carrying its symbol name and
// the (subject, verb, object) declaration that produced it.
func NewVectorAnnotated(v vecspace.Vector, symbolName string, origin *Origin) Value {
	return Value{Tag: TagVector, vec: v, symbolName: symbolName, origin: origin}
}

// NewScalar boxes a scalar (distances, cosine projections).
func NewScalar(f float64) Value {
	return Value{Tag: TagScalar, scalar: f}
}

// NewNumeric boxes a measured quantity with an optional unit ("" = none).
func NewNumeric(f float64, unit string) Value {
	return Value{Tag: TagNumeric, numericF: f, numericUnit: unit}
}

// NewMeasuredByVector boxes a numeric bound to a concept carried as a
// vector copy.
func NewMeasuredByVector(f float64, unit string, concept vecspace.Vector) Value {
	return Value{Tag: TagMeasured, measuredF: f, measuredUnit: unit, measuredVec: &concept}
}

// NewMeasuredByName boxes a numeric bound to a concept referenced by name,
// to be resolved later through the session.
func NewMeasuredByName(f float64, unit string, conceptName string) Value {
	return Value{Tag: TagMeasured, measuredF: f, measuredUnit: unit, measuredConcept: conceptName}
}

// NewString boxes a quoted literal.
func NewString(s string) Value {
	return Value{Tag: TagString, str: s}
}

// NewMacro boxes a reference to a user-defined macro.
func NewMacro(name string) Value {
	return Value{Tag: TagMacro, macro: MacroRef{Name: name}}
}

// NewTheory boxes a reference to a theory version.
func NewTheory(name, versionID string) Value {
	return Value{Tag: TagTheory, theory: TheoryRef{Name: name, VersionID: versionID}}
}

// IsVector reports whether the value is tagged VECTOR.
func (v Value) IsVector() bool { return v.Tag == TagVector }

// Vector returns the boxed vector, panicking if the tag isn't VECTOR.
func (v Value) Vector() vecspace.Vector {
	v.mustBe(TagVector)
	return v.vec
}

// Scalar returns the boxed scalar, panicking if the tag isn't SCALAR.
func (v Value) Scalar() float64 {
	v.mustBe(TagScalar)
	return v.scalar
}

// Numeric returns the boxed numeric value and its unit ("" if none).
func (v Value) Numeric() (float64, string) {
	v.mustBe(TagNumeric)
	return v.numericF, v.numericUnit
}

// Measured returns the boxed measured quantity: value, unit, and a concept
// reference that is either a name (to resolve through the session) or a
// vector copy.
func (v Value) Measured() (f float64, unit string, conceptName string, conceptVec *vecspace.Vector) {
	v.mustBe(TagMeasured)
	return v.measuredF, v.measuredUnit, v.measuredConcept, v.measuredVec
}

// StringValue returns the boxed string literal, panicking if the tag isn't
// STRING. Named StringValue to avoid colliding with fmt.Stringer's String().
func (v Value) StringValue() string {
	v.mustBe(TagString)
	return v.str
}

// Macro returns the boxed macro reference.
func (v Value) Macro() MacroRef {
	v.mustBe(TagMacro)
	return v.macro
}

// Theory returns the boxed theory reference.
func (v Value) Theory() TheoryRef {
	v.mustBe(TagTheory)
	return v.theory
}

// SymbolName returns the declaration name a VECTOR was first bound under,
// or "" if unannotated.
func (v Value) SymbolName() string {
	if v.Tag != TagVector {
		return ""
	}
	return v.symbolName
}

// Origin returns the (subject, verb, object) that produced a VECTOR, or nil.
func (v Value) Origin() *Origin {
	if v.Tag != TagVector {
		return nil
	}
	return v.origin
}

// WithProperty returns a copy of a VECTOR value with a named numeric
// property attached, used by the executor after AttachToConcept against a
// VECTOR concept so a later ProjectNumeric(V, property) has somewhere to
// look. Panics if v is not a VECTOR.
func (v Value) WithProperty(name string, f float64) Value {
	v.mustBe(TagVector)
	cp := v
	cp.properties = make(map[string]float64, len(v.properties)+1)
	for k, val := range v.properties {
		cp.properties[k] = val
	}
	cp.properties[name] = f
	return cp
}

// WithOrigin returns a copy of a VECTOR value stamped with the (subject,
// verb, object) declaration that produced it, so theory.Store.Remember can
// later replay that exact statement instead of falling back to an
// Identity self-reference. Panics if v is not a VECTOR.
func (v Value) WithOrigin(origin Origin) Value {
	v.mustBe(TagVector)
	cp := v
	cp.origin = &origin
	return cp
}

// Property looks up a named numeric property on a VECTOR value. The second
// return is false if absent.
func (v Value) Property(name string) (float64, bool) {
	if v.Tag != TagVector || v.properties == nil {
		return 0, false
	}
	f, ok := v.properties[name]
	return f, ok
}

func (v Value) mustBe(want Tag) {
	if v.Tag != want {
		panic(fmt.Sprintf("value: expected %s, got %s", want, v.Tag))
	}
}

// Describe returns a shallow copy of v annotated with name, matching the
// Describe verb's value semantics (§4.6): side-effect free, the annotation
// is informational only and does not change equality or downstream
// dispatch behaviour.
func (v Value) Describe(name string) Value {
	cp := v
	cp.symbolName = name
	return cp
}

// Summary renders a short human-readable description of v, including a
// VECTOR's symbol name, for log lines. trace.Summarise falls back to it for
// tags other than VECTOR and SCALAR.
func (v Value) Summary() string {
	switch v.Tag {
	case TagVector:
		if v.symbolName != "" {
			return fmt.Sprintf("VECTOR(%s, dim=%d)", v.symbolName, v.vec.Dim())
		}
		return fmt.Sprintf("VECTOR(dim=%d)", v.vec.Dim())
	case TagScalar:
		return fmt.Sprintf("SCALAR(%g)", v.scalar)
	case TagNumeric:
		if v.numericUnit == "" {
			return fmt.Sprintf("NUMERIC(%g)", v.numericF)
		}
		return fmt.Sprintf("NUMERIC(%g %s)", v.numericF, v.numericUnit)
	case TagMeasured:
		if v.measuredConcept != "" {
			return fmt.Sprintf("MEASURED(%g %s @%s)", v.measuredF, v.measuredUnit, v.measuredConcept)
		}
		return fmt.Sprintf("MEASURED(%g %s)", v.measuredF, v.measuredUnit)
	case TagString:
		return fmt.Sprintf("STRING(%q)", v.str)
	case TagMacro:
		return fmt.Sprintf("MACRO(%s)", v.macro.Name)
	case TagTheory:
		return fmt.Sprintf("THEORY(%s@%s)", v.theory.Name, v.theory.VersionID)
	default:
		return "UNKNOWN"
	}
}
