package trace

import (
	"strings"
	"testing"

	"spock/internal/value"
	"spock/internal/vecspace"
)

func TestLogStepNoopsWithoutActiveTrace(t *testing.T) {
	r := NewRecorder()
	r.LogStep("missing", StepRecord{StatementText: "@a dog Bind cat"})

	if _, ok := r.GetTrace("missing"); ok {
		t.Fatal("expected no trace to exist")
	}
}

func TestStartLogEndRoundTrip(t *testing.T) {
	r := NewRecorder()
	r.StartTrace("t1")
	r.LogStep("t1", StepRecord{Index: 0, StatementText: "@a dog Bind cat"})
	r.LogStep("t1", StepRecord{Index: 1, StatementText: "@b $a Negate _"})

	live, ok := r.GetTrace("t1")
	if !ok || len(live.Steps) != 2 {
		t.Fatalf("expected 2 live steps, got %+v", live)
	}

	frozen, ok := r.EndTrace("t1")
	if !ok {
		t.Fatal("expected EndTrace to find the active record")
	}
	if len(frozen.Steps) != 2 {
		t.Fatalf("expected 2 frozen steps, got %+v", frozen.Steps)
	}
	if frozen.EndedAt.IsZero() {
		t.Fatal("expected EndedAt to be stamped")
	}

	if _, ok := r.GetTrace("t1"); ok {
		t.Fatal("expected the trace to be removed from the active table after EndTrace")
	}
}

func TestEndTraceMissingIDReportsFalse(t *testing.T) {
	r := NewRecorder()
	if _, ok := r.EndTrace("nope"); ok {
		t.Fatal("expected EndTrace to report false for an unknown id")
	}
}

func TestReplayableConcatenatesStatementText(t *testing.T) {
	rec := &Record{Steps: []StepRecord{
		{StatementText: "@a dog Bind cat"},
		{StatementText: "@b $a Negate _"},
	}}
	got := Replayable(rec)
	want := "@a dog Bind cat\n@b $a Negate _\n"
	if got != want {
		t.Fatalf("Replayable() = %q, want %q", got, want)
	}
}

func TestReplayableEmptyTraceIsEmptyString(t *testing.T) {
	if got := Replayable(&Record{}); got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
}

func TestSummariseVectorOmitsNameAndOrigin(t *testing.T) {
	v := value.NewVectorAnnotated(vecspace.New([]float64{1, 0, 0, 0}), "dog", &value.Origin{Subject: "dog", Verb: "Identity", Object: "_"})
	got := Summarise(v)
	if got != "VECTOR(len=4)" {
		t.Fatalf("Summarise() = %q, want VECTOR(len=4)", got)
	}
	if strings.Contains(got, "dog") {
		t.Fatalf("expected no symbol name leakage into the trace summary, got %q", got)
	}
}

func TestSummariseScalarUsesFixedPrecision(t *testing.T) {
	got := Summarise(value.NewScalar(0.123456789))
	if got != "SCALAR(0.1235)" {
		t.Fatalf("Summarise() = %q, want SCALAR(0.1235)", got)
	}
}

func TestGetTraceSnapshotIsIndependentOfFurtherLogging(t *testing.T) {
	r := NewRecorder()
	r.StartTrace("t1")
	r.LogStep("t1", StepRecord{Index: 0, StatementText: "@a dog Bind cat"})

	snapshot, _ := r.GetTrace("t1")
	r.LogStep("t1", StepRecord{Index: 1, StatementText: "@b $a Negate _"})

	if len(snapshot.Steps) != 1 {
		t.Fatalf("expected snapshot to be unaffected by later LogStep calls, got %d steps", len(snapshot.Steps))
	}
}
