package numeric

import (
	"errors"
	"testing"

	"spock/internal/config"
	"spock/internal/errs"
	"spock/internal/logging"
	"spock/internal/value"
	"spock/internal/vecspace"
)

func init() {
	// Numeric tests exercise logging.ExecutorWarn; keep it a harmless no-op
	// by never calling logging.Initialize, matching the package's
	// fail-open behaviour when logging isn't configured.
	_ = logging.CategoryExecutor
}

func TestHasNumericValueBoxesScalar(t *testing.T) {
	got, err := Dispatch("HasNumericValue", value.NewScalar(4.5), value.Value{})
	if err != nil {
		t.Fatalf("Dispatch error = %v", err)
	}
	f, unit := got.Numeric()
	if f != 4.5 || unit != "" {
		t.Fatalf("got (%v, %q)", f, unit)
	}
}

func TestAttachUnitReplacesUnit(t *testing.T) {
	n := value.NewNumeric(10, "m")
	got, err := Dispatch("AttachUnit", n, value.NewString("kg"))
	if err != nil {
		t.Fatalf("Dispatch error = %v", err)
	}
	f, unit := got.Numeric()
	if f != 10 || unit != "kg" {
		t.Fatalf("got (%v, %q)", f, unit)
	}
}

func TestAddNumericRequiresCompatibleUnits(t *testing.T) {
	a := value.NewNumeric(1, "m")
	b := value.NewNumeric(2, "kg")
	_, err := Dispatch("AddNumeric", a, b)

	var ne *errs.NumericError
	if !errors.As(err, &ne) {
		t.Fatalf("expected *errs.NumericError, got %v", err)
	}
}

func TestAddNumericAllowsOneUnitless(t *testing.T) {
	a := value.NewNumeric(1, "m")
	b := value.NewNumeric(2, "")
	got, err := Dispatch("AddNumeric", a, b)
	if err != nil {
		t.Fatalf("Dispatch error = %v", err)
	}
	f, unit := got.Numeric()
	if f != 3 || unit != "m" {
		t.Fatalf("got (%v, %q)", f, unit)
	}
}

func TestSubNumericSubtracts(t *testing.T) {
	a := value.NewNumeric(5, "m")
	b := value.NewNumeric(2, "m")
	got, err := Dispatch("SubNumeric", a, b)
	if err != nil {
		t.Fatalf("Dispatch error = %v", err)
	}
	f, _ := got.Numeric()
	if f != 3 {
		t.Fatalf("got %v want 3", f)
	}
}

func TestMulNumericComposesKnownUnits(t *testing.T) {
	a := value.NewNumeric(2, "m")
	b := value.NewNumeric(3, "m")
	got, err := Dispatch("MulNumeric", a, b)
	if err != nil {
		t.Fatalf("Dispatch error = %v", err)
	}
	f, unit := got.Numeric()
	if f != 6 || unit != "m2" {
		t.Fatalf("got (%v, %q)", f, unit)
	}
}

func TestMulNumericFallsBackToGenericComposition(t *testing.T) {
	a := value.NewNumeric(2, "widget")
	b := value.NewNumeric(3, "sprocket")
	got, err := Dispatch("MulNumeric", a, b)
	if err != nil {
		t.Fatalf("Dispatch error = %v", err)
	}
	_, unit := got.Numeric()
	if unit != "widget·sprocket" {
		t.Fatalf("got unit %q", unit)
	}
}

func TestDivNumericComposesKnownUnits(t *testing.T) {
	a := value.NewNumeric(10, "m")
	b := value.NewNumeric(2, "s")
	got, err := Dispatch("DivNumeric", a, b)
	if err != nil {
		t.Fatalf("Dispatch error = %v", err)
	}
	f, unit := got.Numeric()
	if f != 5 || unit != "m_per_s" {
		t.Fatalf("got (%v, %q)", f, unit)
	}
}

func TestDivNumericByZeroFails(t *testing.T) {
	a := value.NewNumeric(10, "m")
	b := value.NewNumeric(0, "s")
	_, err := Dispatch("DivNumeric", a, b)

	var ne *errs.NumericError
	if !errors.As(err, &ne) {
		t.Fatalf("expected *errs.NumericError, got %v", err)
	}
}

func TestAttachToConceptByVector(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Dimensions = 64
	space := vecspace.NewSpace(cfg)
	concept := space.Random()

	n := value.NewNumeric(98.6, "degF")
	got, err := Dispatch("AttachToConcept", n, value.NewVector(concept))
	if err != nil {
		t.Fatalf("Dispatch error = %v", err)
	}
	if got.Tag != value.TagMeasured {
		t.Fatalf("expected MEASURED, got %s", got.Tag)
	}
	f, unit, name, vec := got.Measured()
	if f != 98.6 || unit != "degF" || name != "" || vec == nil {
		t.Fatalf("unexpected measured fields: %v %v %v %v", f, unit, name, vec)
	}
}

func TestAttachToConceptByName(t *testing.T) {
	n := value.NewNumeric(42, "")
	got, err := Dispatch("AttachToConcept", n, value.NewString("temperature"))
	if err != nil {
		t.Fatalf("Dispatch error = %v", err)
	}
	_, _, name, vec := got.Measured()
	if name != "temperature" || vec != nil {
		t.Fatalf("unexpected measured fields: name=%v vec=%v", name, vec)
	}
}

func TestProjectNumericOnMeasuredExtracts(t *testing.T) {
	m := value.NewMeasuredByName(7, "kg", "concept")
	got, err := Dispatch("ProjectNumeric", m, value.Value{})
	if err != nil {
		t.Fatalf("Dispatch error = %v", err)
	}
	f, unit := got.Numeric()
	if f != 7 || unit != "kg" {
		t.Fatalf("got (%v, %q)", f, unit)
	}
}

func TestProjectNumericOnVectorWithoutPropertyReturnsZero(t *testing.T) {
	v := value.NewVector(vecspace.New([]float64{1, 2, 3}))
	got, err := Dispatch("ProjectNumeric", v, value.NewString("mass"))
	if err != nil {
		t.Fatalf("Dispatch error = %v", err)
	}
	f, unit := got.Numeric()
	if f != 0 || unit != "" {
		t.Fatalf("expected NUMERIC(0, none), got (%v, %q)", f, unit)
	}
}

func TestProjectNumericOnVectorWithPropertyFindsIt(t *testing.T) {
	v := value.NewVector(vecspace.New([]float64{1, 2, 3})).WithProperty("mass", 12)
	got, err := Dispatch("ProjectNumeric", v, value.NewString("mass"))
	if err != nil {
		t.Fatalf("Dispatch error = %v", err)
	}
	f, unit := got.Numeric()
	if f != 12 || unit != "mass" {
		t.Fatalf("got (%v, %q)", f, unit)
	}
}

func TestIsVerbRecognisesCatalogue(t *testing.T) {
	for _, v := range Verbs {
		if !IsVerb(v) {
			t.Fatalf("expected %s to be recognised", v)
		}
	}
	if IsVerb("Add") {
		t.Fatal("did not expect a geometric verb in the numeric registry")
	}
}
