package ast

import "testing"

func TestStatementStringRendersSourceForm(t *testing.T) {
	s := Statement{
		Declaration: "@a",
		Subject:     Operand{Text: "dog", Kind: OperandIdentifier},
		Verb:        "Bind",
		Object:      Operand{Text: "cat", Kind: OperandIdentifier},
		Line:        3,
	}
	want := "@a dog Bind cat"
	if s.String() != want {
		t.Fatalf("got %q want %q", s.String(), want)
	}
}

func TestMacroKindString(t *testing.T) {
	cases := map[MacroKind]string{KindTheory: "theory", KindVerb: "verb", KindSession: "session"}
	for k, want := range cases {
		if k.String() != want {
			t.Fatalf("got %q want %q", k.String(), want)
		}
	}
}

func TestAllDeclarationsReturnsBodyOnly(t *testing.T) {
	m := &Macro{
		Name: "greet",
		Kind: KindVerb,
		Statements: []Statement{
			{Declaration: "@a"},
			{Declaration: "@result"},
		},
		Nested: []*Macro{{Name: "nested", Statements: []Statement{{Declaration: "@x"}}}},
	}
	got := m.AllDeclarations()
	if len(got) != 2 || got[0] != "@a" || got[1] != "@result" {
		t.Fatalf("unexpected declarations: %+v", got)
	}
}
