// Package kernel implements the eight geometric verbs of spec.md §4.6 that
// the executor dispatches to when it resolves a verb name against the
// geometric registry: Add, Bind, Negate, Distance, Move, Modulate,
// Identity, Normalise. It also carries the relation-assertion verbs Is and
// In, which spec.md's worked examples (§8 scenarios 1 and 4) use freely but
// which appear in neither spec.md §4.5's verb catalogue nor §4.6's table —
// see the package-level note below on how that gap is resolved.
package kernel

import (
	"spock/internal/errs"
	"spock/internal/logging"
	"spock/internal/value"
)

// Is and In are relation-assertion verbs: `@fact Socrates Is Human` and
// `@fact a In b` both bind subject and object into a single fact vector the
// same way Bind does. They are aliased to Bind rather than given a
// separate op because Bind's Hadamard product is self-inverse over the
// bipolar vector distribution (b⊙b is a positive uniform scaling of the
// identity for any constant-magnitude b), which is exactly the algebra
// spec.md §8 scenario 4's TransitiveChain relies on: composing
// Bind(a,b) with Bind(b,c) cancels the shared b and yields a fact
// proportional to Bind(a,c). spec.md leaves Is/In out of its own verb
// catalogue (spec.md:125, §4.6) even though its own worked examples use
// them, so resolving the gap this way keeps both scenarios' semantics
// intact without inventing a new geometric primitive.
const (
	verbIs = "Is"
	verbIn = "In"
)

// Verbs lists the geometric verb names, in the order the executor checks
// them against this registry (spec.md §4.5 step 2).
var Verbs = []string{"Add", "Bind", "Negate", "Distance", "Move", "Modulate", "Identity", "Normalise", verbIs, verbIn}

// IsVerb reports whether name belongs to the geometric registry.
func IsVerb(name string) bool {
	for _, v := range Verbs {
		if v == name {
			return true
		}
	}
	return false
}

// Dispatch evaluates a geometric verb given its already-resolved subject
// and object. Callers are expected to have performed spec.md §4.5 step 3's
// type check already; Dispatch still double-checks and returns a
// *errs.TypeError rather than panicking, since a caller bug here should be
// visible as a structured error, not a crash.
func Dispatch(verb string, subject, object value.Value) (value.Value, error) {
	switch verb {
	case "Add":
		return binaryVector(verb, subject, object, addOp)
	case "Bind":
		return binaryVector(verb, subject, object, bindOp)
	case "Negate":
		return unaryVector(verb, subject, negateOp)
	case "Distance":
		return distance(subject, object)
	case "Move":
		return binaryVector(verb, subject, object, addOp)
	case verbIs, verbIn:
		return binaryVector(verb, subject, object, bindOp)
	case "Modulate":
		return modulate(subject, object)
	case "Identity":
		return unaryVector(verb, subject, identityOp)
	case "Normalise":
		return unaryVector(verb, subject, normaliseOp)
	default:
		return value.Value{}, &errs.UnknownVerbError{Verb: verb}
	}
}

type binaryOp func(a, b value.Value) value.Value

func addOp(a, b value.Value) value.Value {
	return value.NewVector(a.Vector().Add(b.Vector()))
}

func bindOp(a, b value.Value) value.Value {
	return value.NewVector(a.Vector().Hadamard(b.Vector()))
}

func binaryVector(verb string, subject, object value.Value, op binaryOp) (value.Value, error) {
	if !subject.IsVector() {
		return value.Value{}, &errs.TypeError{Expected: []string{"VECTOR"}, Actual: subject.Tag.String(), Verb: verb, Position: 1}
	}
	if !object.IsVector() {
		return value.Value{}, &errs.TypeError{Expected: []string{"VECTOR"}, Actual: object.Tag.String(), Verb: verb, Position: 2}
	}
	logging.Kernel("%s(%s, %s)", verb, subject.Summary(), object.Summary())
	return op(subject, object), nil
}

type unaryOp func(a value.Value) value.Value

func negateOp(a value.Value) value.Value { return value.NewVector(a.Vector().Negate()) }

// identityOp returns a deep copy, per the verb catalogue's "Identity | V, _
// | V | deep copy" contract.
func identityOp(a value.Value) value.Value { return value.NewVector(a.Vector().Scale(1)) }

func normaliseOp(a value.Value) value.Value { return value.NewVector(a.Vector().Normalise()) }

func unaryVector(verb string, subject value.Value, op unaryOp) (value.Value, error) {
	if !subject.IsVector() {
		return value.Value{}, &errs.TypeError{Expected: []string{"VECTOR"}, Actual: subject.Tag.String(), Verb: verb, Position: 1}
	}
	logging.Kernel("%s(%s)", verb, subject.Summary())
	return op(subject), nil
}

// distance computes cosine distance mapped to [0, 1] (spec.md §4.5 step 4).
func distance(subject, object value.Value) (value.Value, error) {
	if !subject.IsVector() {
		return value.Value{}, &errs.TypeError{Expected: []string{"VECTOR"}, Actual: subject.Tag.String(), Verb: "Distance", Position: 1}
	}
	if !object.IsVector() {
		return value.Value{}, &errs.TypeError{Expected: []string{"VECTOR"}, Actual: object.Tag.String(), Verb: "Distance", Position: 2}
	}
	d := subject.Vector().CosineDistance(object.Vector())
	logging.Kernel("Distance(%s, %s) = %g", subject.Summary(), object.Summary(), d)
	return value.NewScalar(d), nil
}

// modulate is polymorphic: VECTOR x VECTOR -> Hadamard, VECTOR x SCALAR ->
// scalar multiply (spec.md §4.6).
func modulate(subject, object value.Value) (value.Value, error) {
	if !subject.IsVector() {
		return value.Value{}, &errs.TypeError{Expected: []string{"VECTOR"}, Actual: subject.Tag.String(), Verb: "Modulate", Position: 1}
	}
	switch object.Tag {
	case value.TagVector:
		logging.Kernel("Modulate(%s, %s) [vector]", subject.Summary(), object.Summary())
		return value.NewVector(subject.Vector().Hadamard(object.Vector())), nil
	case value.TagScalar:
		logging.Kernel("Modulate(%s, %s) [scalar]", subject.Summary(), object.Summary())
		return value.NewVector(subject.Vector().Scale(object.Scalar())), nil
	default:
		return value.Value{}, &errs.TypeError{Expected: []string{"VECTOR", "SCALAR"}, Actual: object.Tag.String(), Verb: "Modulate", Position: 2}
	}
}
