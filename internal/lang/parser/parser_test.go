package parser

import (
	"errors"
	"testing"

	"spock/internal/errs"
	"spock/internal/lang/ast"
)

func TestParseTopLevelStatements(t *testing.T) {
	script, err := Parse("@a dog Bind cat\n@b $a Negate _\n")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(script.Statements) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(script.Statements))
	}
	if script.Statements[0].Declaration != "@a" || script.Statements[0].Verb != "Bind" {
		t.Fatalf("unexpected first statement: %+v", script.Statements[0])
	}
	if script.Statements[1].Subject.Kind != ast.OperandMagicVar {
		t.Fatalf("expected magic var subject, got %v", script.Statements[1].Subject.Kind)
	}
}

func TestParseMacro(t *testing.T) {
	src := "@mytheory theory begin\n@a dog Bind cat\nend\n"
	script, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(script.Macros) != 1 {
		t.Fatalf("expected 1 macro, got %d", len(script.Macros))
	}
	m := script.Macros[0]
	if m.Name != "@mytheory" || m.Kind != ast.KindTheory {
		t.Fatalf("unexpected macro: %+v", m)
	}
	if len(m.Statements) != 1 {
		t.Fatalf("expected 1 statement in macro body, got %d", len(m.Statements))
	}
}

func TestParseNestedMacros(t *testing.T) {
	src := "@outer session begin\n@inner verb begin\n@result x Identity _\nend\nend\n"
	script, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	outer := script.Macros[0]
	if len(outer.Nested) != 1 {
		t.Fatalf("expected 1 nested macro, got %d", len(outer.Nested))
	}
	inner := outer.Nested[0]
	if inner.Kind != ast.KindVerb {
		t.Fatalf("expected nested macro to be a verb, got %v", inner.Kind)
	}
}

func TestParseMacroIsCaseInsensitiveForKeywords(t *testing.T) {
	src := "@t THEORY BEGIN\n@a dog Bind cat\nEND\n"
	if _, err := Parse(src); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
}

func TestParseRejectsDuplicateDeclarationInMacro(t *testing.T) {
	src := "@t theory begin\n@a dog Bind cat\n@a cat Bind dog\nend\n"
	_, err := Parse(src)
	var pe *errs.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *errs.ParseError, got %v", err)
	}
}

func TestParseRejectsDuplicateDeclarationAtTopLevel(t *testing.T) {
	_, err := Parse("@a dog Bind cat\n@a cat Bind dog\n")
	var pe *errs.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *errs.ParseError, got %v", err)
	}
}

func TestParseRejectsVerbMacroWithoutResult(t *testing.T) {
	src := "@v verb begin\n@a x Identity _\nend\n"
	_, err := Parse(src)
	var pe *errs.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *errs.ParseError, got %v", err)
	}
}

func TestParseRejectsVerbMacroWithDuplicateResult(t *testing.T) {
	src := "@v verb begin\n@result x Identity _\n@result y Identity _\nend\n"
	_, err := Parse(src)
	if err == nil {
		t.Fatal("expected error for duplicate @result (also a duplicate-declaration SSA violation)")
	}
}

func TestParseRejectsUnterminatedMacro(t *testing.T) {
	_, err := Parse("@t theory begin\n@a dog Bind cat\n")
	var pe *errs.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *errs.ParseError, got %v", err)
	}
}

func TestParseRejectsMalformedStatementLine(t *testing.T) {
	_, err := Parse("@a dog Bind\n")
	var pe *errs.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *errs.ParseError, got %v", err)
	}
}

func TestParseRejectsDanglingEnd(t *testing.T) {
	_, err := Parse("end\n")
	var pe *errs.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *errs.ParseError, got %v", err)
	}
}

func TestParseRejectsDeclarationAsSubject(t *testing.T) {
	_, err := Parse("@a @b Bind cat\n")
	var pe *errs.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *errs.ParseError, got %v", err)
	}
}

func TestParseRejectsDeclarationAsVerb(t *testing.T) {
	_, err := Parse("@a $b @c $d\n")
	var pe *errs.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *errs.ParseError, got %v", err)
	}
}

func TestParseEmptyScriptSucceeds(t *testing.T) {
	script, err := Parse("")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(script.Statements) != 0 || len(script.Macros) != 0 {
		t.Fatalf("expected empty script, got %+v", script)
	}
}

func TestParseIgnoresCommentsAndBlankLines(t *testing.T) {
	src := "# a comment\n\n@a dog Bind cat # trailing\n\n"
	script, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(script.Statements) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(script.Statements))
	}
}
