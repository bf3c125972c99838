// Package numeric implements the numeric kernel of spec.md §4.6: boxed
// NUMERIC/MEASURED values, unit-aware arithmetic, and the concept-binding
// verbs AttachToConcept/ProjectNumeric.
package numeric

import (
	"fmt"

	"spock/internal/errs"
	"spock/internal/logging"
	"spock/internal/value"
)

// Verbs lists the numeric verb names, in the order the executor checks
// them against this registry (spec.md §4.5 step 2).
var Verbs = []string{
	"HasNumericValue", "AttachUnit", "AddNumeric", "SubNumeric",
	"MulNumeric", "DivNumeric", "AttachToConcept", "ProjectNumeric",
}

// IsVerb reports whether name belongs to the numeric registry.
func IsVerb(name string) bool {
	for _, v := range Verbs {
		if v == name {
			return true
		}
	}
	return false
}

// multiplyTable names the handful of unit compositions spec.md §4.5 calls
// out explicitly (m·m -> m², kg·m_per_s² -> N). Compositions outside the
// table fall back to a generic "a·b" name so the operation never fails
// just because a product is unfamiliar.
var multiplyTable = map[[2]string]string{
	{"m", "m"}:            "m2",
	{"kg", "m_per_s2"}:    "N",
	{"m_per_s2", "kg"}:    "N",
}

// divideTable mirrors multiplyTable for the division direction spec.md
// calls out explicitly (m/s -> m_per_s).
var divideTable = map[[2]string]string{
	{"m", "s"}: "m_per_s",
}

func composeMultiply(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	if r, ok := multiplyTable[[2]string{a, b}]; ok {
		return r
	}
	return a + "·" + b // a·b
}

func composeDivide(a, b string) string {
	if b == "" {
		return a
	}
	if a == "" {
		return "1_per_" + b
	}
	if r, ok := divideTable[[2]string{a, b}]; ok {
		return r
	}
	return a + "_per_" + b
}

// Dispatch evaluates a numeric verb given its resolved subject and object.
func Dispatch(verb string, subject, object value.Value) (value.Value, error) {
	switch verb {
	case "HasNumericValue":
		return hasNumericValue(subject)
	case "AttachUnit":
		return attachUnit(subject, object)
	case "AddNumeric":
		return binaryNumeric(verb, subject, object, func(a, b float64) float64 { return a + b }, compatibleUnit)
	case "SubNumeric":
		return binaryNumeric(verb, subject, object, func(a, b float64) float64 { return a - b }, compatibleUnit)
	case "MulNumeric":
		return mulDiv(verb, subject, object, true)
	case "DivNumeric":
		return mulDiv(verb, subject, object, false)
	case "AttachToConcept":
		return attachToConcept(subject, object)
	case "ProjectNumeric":
		return projectNumeric(subject, object)
	default:
		return value.Value{}, &errs.UnknownVerbError{Verb: verb}
	}
}

func hasNumericValue(subject value.Value) (value.Value, error) {
	switch subject.Tag {
	case value.TagNumeric:
		return subject, nil
	case value.TagScalar:
		return value.NewNumeric(subject.Scalar(), ""), nil
	default:
		return value.Value{}, &errs.TypeError{Expected: []string{"SCALAR", "NUMERIC"}, Actual: subject.Tag.String(), Verb: "HasNumericValue", Position: 1}
	}
}

func attachUnit(subject, object value.Value) (value.Value, error) {
	if subject.Tag != value.TagNumeric {
		return value.Value{}, &errs.TypeError{Expected: []string{"NUMERIC"}, Actual: subject.Tag.String(), Verb: "AttachUnit", Position: 1}
	}
	unit, err := unitName(object)
	if err != nil {
		return value.Value{}, err
	}
	f, _ := subject.Numeric()
	return value.NewNumeric(f, unit), nil
}

func compatibleUnit(a, b string) bool {
	return a == b || a == "" || b == ""
}

func resolvedUnit(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func binaryNumeric(verb string, subject, object value.Value, op func(a, b float64) float64, compat func(a, b string) bool) (value.Value, error) {
	if subject.Tag != value.TagNumeric {
		return value.Value{}, &errs.TypeError{Expected: []string{"NUMERIC"}, Actual: subject.Tag.String(), Verb: verb, Position: 1}
	}
	if object.Tag != value.TagNumeric {
		return value.Value{}, &errs.TypeError{Expected: []string{"NUMERIC"}, Actual: object.Tag.String(), Verb: verb, Position: 2}
	}
	af, au := subject.Numeric()
	bf, bu := object.Numeric()
	if !compat(au, bu) {
		return value.Value{}, &errs.NumericError{Message: fmt.Sprintf("incompatible units %q and %q for %s", au, bu, verb)}
	}
	result := op(af, bf)
	logging.Kernel("%s(%g %s, %g %s) = %g", verb, af, au, bf, bu, result)
	return value.NewNumeric(result, resolvedUnit(au, bu)), nil
}

func mulDiv(verb string, subject, object value.Value, multiply bool) (value.Value, error) {
	if subject.Tag != value.TagNumeric {
		return value.Value{}, &errs.TypeError{Expected: []string{"NUMERIC"}, Actual: subject.Tag.String(), Verb: verb, Position: 1}
	}
	if object.Tag != value.TagNumeric {
		return value.Value{}, &errs.TypeError{Expected: []string{"NUMERIC"}, Actual: object.Tag.String(), Verb: verb, Position: 2}
	}
	af, au := subject.Numeric()
	bf, bu := object.Numeric()

	if multiply {
		return value.NewNumeric(af*bf, composeMultiply(au, bu)), nil
	}
	if bf == 0 {
		return value.Value{}, &errs.NumericError{Message: "division by zero"}
	}
	return value.NewNumeric(af/bf, composeDivide(au, bu)), nil
}

// unitName extracts a unit/property string operand. A STRING value
// supplies its literal text directly; a VECTOR operand (auto-concept
// generated from a bare identifier, per spec.md §4.5 step 1) supplies the
// declaration name it was first bound under.
func unitName(v value.Value) (string, error) {
	switch v.Tag {
	case value.TagString:
		return v.StringValue(), nil
	case value.TagVector:
		if name := v.SymbolName(); name != "" {
			return name, nil
		}
	}
	return "", &errs.TypeError{Expected: []string{"STRING", "VECTOR"}, Actual: v.Tag.String(), Verb: "AttachUnit", Position: 2}
}

// attachToConcept binds a NUMERIC to a concept, referenced either by vector
// or by name (spec.md §4.6's "AttachToConcept | N, V|string | M").
func attachToConcept(subject, object value.Value) (value.Value, error) {
	if subject.Tag != value.TagNumeric {
		return value.Value{}, &errs.TypeError{Expected: []string{"NUMERIC"}, Actual: subject.Tag.String(), Verb: "AttachToConcept", Position: 1}
	}
	f, unit := subject.Numeric()

	switch object.Tag {
	case value.TagVector:
		return value.NewMeasuredByVector(f, unit, object.Vector()), nil
	case value.TagString:
		return value.NewMeasuredByName(f, unit, object.StringValue()), nil
	default:
		return value.Value{}, &errs.TypeError{Expected: []string{"VECTOR", "STRING"}, Actual: object.Tag.String(), Verb: "AttachToConcept", Position: 2}
	}
}

// PropertyKey is the key AttachToConcept's named-property resolution uses
// when a MEASURED value's unit is attached back onto its referenced
// concept's property map, letting a later ProjectNumeric(V, property) find
// it. Falls back to "value" for unitless numerics. This resolves the part
// of spec.md's ProjectNumeric contract ("on V, look up named numeric
// property") that the table leaves open: properties are keyed by unit.
func PropertyKey(unit string) string {
	if unit == "" {
		return "value"
	}
	return unit
}

// projectNumeric extracts a NUMERIC from a MEASURED, VECTOR, or NUMERIC
// subject. On VECTOR without the named property, per the resolved Open
// Question, it returns NUMERIC(0, none) and logs a warning rather than
// failing.
func projectNumeric(subject, object value.Value) (value.Value, error) {
	property, err := unitName(object)
	if err != nil {
		property = ""
	}

	switch subject.Tag {
	case value.TagMeasured:
		f, unit, _, _ := subject.Measured()
		return value.NewNumeric(f, unit), nil
	case value.TagNumeric:
		return subject, nil
	case value.TagVector:
		if f, ok := subject.Property(property); ok {
			return value.NewNumeric(f, property), nil
		}
		logging.ExecutorWarn("ProjectNumeric: VECTOR %s has no property %q, returning NUMERIC(0, none)", subject.Summary(), property)
		return value.NewNumeric(0, ""), nil
	default:
		return value.Value{}, &errs.TypeError{Expected: []string{"MEASURED", "VECTOR", "NUMERIC"}, Actual: subject.Tag.String(), Verb: "ProjectNumeric", Position: 1}
	}
}
