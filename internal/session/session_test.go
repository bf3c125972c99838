package session

import (
	"testing"

	"spock/internal/value"
	"spock/internal/vecspace"
)

func vec(x float64) value.Value {
	return value.NewVector(vecspace.New([]float64{x, 0, 0, 0}))
}

func TestBindAndResolveExactName(t *testing.T) {
	s := New(NewGlobals())
	s.Bind("@dog", vec(1))

	got, ok := s.Resolve("@dog")
	if !ok {
		t.Fatal("expected @dog to resolve")
	}
	if got.Vector().At(0) != 1 {
		t.Fatalf("unexpected value: %+v", got)
	}
}

func TestResolveNormalisesDollarAndAtForms(t *testing.T) {
	s := New(NewGlobals())
	s.Bind("@dog", vec(2))

	if _, ok := s.Resolve("$dog"); !ok {
		t.Fatal("expected $dog to resolve to the @dog binding")
	}
	if _, ok := s.Resolve("dog"); !ok {
		t.Fatal("expected bare dog to resolve to the @dog binding")
	}
}

func TestChildSessionWalksParent(t *testing.T) {
	parent := New(NewGlobals())
	parent.Bind("@x", vec(3))
	child := parent.NewChild()

	got, ok := child.Resolve("$x")
	if !ok {
		t.Fatal("expected child to resolve @x through parent")
	}
	if got.Vector().At(0) != 3 {
		t.Fatalf("unexpected value: %+v", got)
	}
}

func TestChildLocalBindingDoesNotLeakToParent(t *testing.T) {
	parent := New(NewGlobals())
	child := parent.NewChild()
	child.Bind("@y", vec(4))

	if _, ok := parent.Resolve("@y"); ok {
		t.Fatal("parent should not see the child's local binding")
	}
	if _, ok := child.Resolve("@y"); !ok {
		t.Fatal("child should resolve its own binding")
	}
}

func TestOverlayResolvesAfterParentChain(t *testing.T) {
	parent := New(NewGlobals())
	child := parent.NewChild()
	child.AddOverlay(Overlay{
		TheoryName: "geometry",
		Symbols:    map[string]value.Value{"shape": vec(5)},
	})

	got, ok := child.Resolve("$shape")
	if !ok {
		t.Fatal("expected overlay symbol to resolve")
	}
	if got.Vector().At(0) != 5 {
		t.Fatalf("unexpected value: %+v", got)
	}
}

func TestLocalBindingShadowsOverlay(t *testing.T) {
	s := New(NewGlobals())
	s.AddOverlay(Overlay{
		TheoryName: "geometry",
		Symbols:    map[string]value.Value{"shape": vec(5)},
	})
	s.Bind("@shape", vec(9))

	got, ok := s.Resolve("$shape")
	if !ok {
		t.Fatal("expected shape to resolve")
	}
	if got.Vector().At(0) != 9 {
		t.Fatalf("expected local binding to shadow overlay, got %+v", got)
	}
}

func TestOverlayInsertionOrderFirstMatchWins(t *testing.T) {
	s := New(NewGlobals())
	s.AddOverlay(Overlay{TheoryName: "first", Symbols: map[string]value.Value{"shape": vec(1)}})
	s.AddOverlay(Overlay{TheoryName: "second", Symbols: map[string]value.Value{"shape": vec(2)}})

	got, ok := s.Resolve("$shape")
	if !ok {
		t.Fatal("expected shape to resolve")
	}
	if got.Vector().At(0) != 1 {
		t.Fatalf("expected the first-inserted overlay to win, got %+v", got)
	}
}

func TestResolveFallsBackToGlobals(t *testing.T) {
	globals := NewGlobals()
	globals.Set("Truth", vec(7))
	s := New(globals)

	got, ok := s.Resolve("$Truth")
	if !ok {
		t.Fatal("expected Truth to resolve from globals")
	}
	if got.Vector().At(0) != 7 {
		t.Fatalf("unexpected value: %+v", got)
	}
}

func TestResolveUnknownNameFails(t *testing.T) {
	s := New(NewGlobals())
	if _, ok := s.Resolve("$nope"); ok {
		t.Fatal("expected unknown reference to fail resolution")
	}
}

func TestGlobalsSetOverwrites(t *testing.T) {
	globals := NewGlobals()
	globals.Set("Zero", vec(0))
	globals.Set("Zero", vec(42))

	got, ok := globals.Get("Zero")
	if !ok || got.Vector().At(0) != 42 {
		t.Fatalf("expected overwritten value 42, got %+v ok=%v", got, ok)
	}
}
