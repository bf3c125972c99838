// Package parser implements the SPOCK GOS recursive-descent parser
// (spec.md §4.2): macro headers, end lines, and four-token statements,
// with single-static-assignment validation per macro body and positional
// diagnostics.
package parser

import (
	"fmt"
	"strings"

	"spock/internal/errs"
	"spock/internal/lang/ast"
	"spock/internal/lang/token"
)

// Parse tokenizes and parses script text into a Script AST, matching
// spec.md §4.2 line shapes exactly. Returns an *errs.ParseError (recoverable
// via errors.As) on the first malformed line, duplicate
// declaration, missing @result, or unterminated macro.
func Parse(script string) (*ast.Script, error) {
	lines := token.TokenizeLines(script)
	p := &parser{lines: lines}
	return p.parseScript()
}

type parser struct {
	lines [][]token.Token
	pos   int
}

func (p *parser) peek() []token.Token {
	if p.pos >= len(p.lines) {
		return nil
	}
	return p.lines[p.pos]
}

func (p *parser) advance() []token.Token {
	line := p.peek()
	p.pos++
	return line
}

func (p *parser) parseScript() (*ast.Script, error) {
	script := &ast.Script{}

	for p.peek() != nil {
		line := p.peek()
		if isMacroHeader(line) {
			m, err := p.parseMacro()
			if err != nil {
				return nil, err
			}
			script.Macros = append(script.Macros, m)
			continue
		}
		if isEndLine(line) {
			return nil, &errs.ParseError{Message: "unexpected 'end' with no matching macro header", Line: line[0].Line}
		}
		stmt, err := parseStatementLine(line)
		if err != nil {
			return nil, err
		}
		script.Statements = append(script.Statements, stmt)
		p.advance()
	}

	if err := checkSSA(script.Statements); err != nil {
		return nil, err
	}
	return script, nil
}

// parseMacro consumes a macro header line, its body (statements and
// nested macros) up to and including its matching end line.
func (p *parser) parseMacro() (*ast.Macro, error) {
	header := p.advance()
	kind, err := macroKind(header[1].Text)
	if err != nil {
		return nil, &errs.ParseError{Message: err.Error(), Line: header[0].Line}
	}

	m := &ast.Macro{
		Name: header[0].Text,
		Kind: kind,
		Line: header[0].Line,
	}

	for {
		line := p.peek()
		if line == nil {
			return nil, &errs.ParseError{Message: "unterminated macro " + m.Name, Line: m.Line}
		}
		if isEndLine(line) {
			p.advance()
			break
		}
		if isMacroHeader(line) {
			nested, err := p.parseMacro()
			if err != nil {
				return nil, err
			}
			m.Nested = append(m.Nested, nested)
			continue
		}
		stmt, err := parseStatementLine(line)
		if err != nil {
			return nil, err
		}
		m.Statements = append(m.Statements, stmt)
		p.advance()
	}

	if err := checkSSA(m.Statements); err != nil {
		return nil, err
	}
	if m.Kind == ast.KindVerb {
		if err := checkVerbResult(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func isMacroHeader(line []token.Token) bool {
	if len(line) != 3 {
		return false
	}
	return line[0].Kind == token.DECLARATION &&
		line[1].Kind == token.KEYWORD && isMacroKindKeyword(line[1].Text) &&
		line[2].Kind == token.KEYWORD && isKeyword(line[2].Text, "begin")
}

func isEndLine(line []token.Token) bool {
	return len(line) == 1 && line[0].Kind == token.KEYWORD && isKeyword(line[0].Text, "end")
}

func isMacroKindKeyword(text string) bool {
	switch strings.ToLower(text) {
	case "theory", "verb", "session":
		return true
	default:
		return false
	}
}

func isKeyword(text, want string) bool {
	return strings.ToLower(text) == want
}

func macroKind(text string) (ast.MacroKind, error) {
	switch strings.ToLower(text) {
	case "theory":
		return ast.KindTheory, nil
	case "verb":
		return ast.KindVerb, nil
	case "session":
		return ast.KindSession, nil
	default:
		return 0, fmt.Errorf("invalid macro kind: %s", text)
	}
}

// parseStatementLine parses a single four-token statement line.
func parseStatementLine(line []token.Token) (ast.Statement, error) {
	if len(line) != 4 {
		return ast.Statement{}, &errs.ParseError{Message: "expected a 4-token statement or a valid macro/end line", Line: lineNumber(line)}
	}
	if line[0].Kind != token.DECLARATION {
		return ast.Statement{}, &errs.ParseError{Message: "statement must begin with a declaration", Line: line[0].Line, Column: line[0].Column}
	}
	if line[1].Kind == token.DECLARATION {
		return ast.Statement{}, &errs.ParseError{Message: "subject must not be a declaration", Line: line[1].Line, Column: line[1].Column}
	}
	if line[2].Kind == token.DECLARATION {
		return ast.Statement{}, &errs.ParseError{Message: "verb must not be a declaration", Line: line[2].Line, Column: line[2].Column}
	}
	if line[3].Kind == token.DECLARATION {
		return ast.Statement{}, &errs.ParseError{Message: "object must not be a declaration", Line: line[3].Line, Column: line[3].Column}
	}

	return ast.Statement{
		Declaration: line[0].Text,
		Subject:     operandFrom(line[1]),
		Verb:        line[2].Text,
		Object:      operandFrom(line[3]),
		Line:        line[0].Line,
	}, nil
}

func operandFrom(t token.Token) ast.Operand {
	switch t.Kind {
	case token.MAGIC_VAR:
		return ast.Operand{Text: t.Text, Kind: ast.OperandMagicVar}
	case token.PLACEHOLDER:
		return ast.Operand{Text: t.Text, Kind: ast.OperandPlaceholder}
	case token.LITERAL:
		return ast.Operand{Text: t.Text, Kind: ast.OperandLiteral}
	default:
		return ast.Operand{Text: t.Text, Kind: ast.OperandIdentifier}
	}
}

func lineNumber(line []token.Token) int {
	if len(line) == 0 {
		return 0
	}
	return line[0].Line
}

// checkSSA enforces that every declaration within one macro body (or the
// top-level script) is unique.
func checkSSA(statements []ast.Statement) error {
	seen := make(map[string]int, len(statements))
	for _, s := range statements {
		if firstLine, ok := seen[s.Declaration]; ok {
			return &errs.ParseError{Message: fmt.Sprintf("duplicate declaration %s (first declared at line %d)", s.Declaration, firstLine), Line: s.Line}
		}
		seen[s.Declaration] = s.Line
	}
	return nil
}

// checkVerbResult enforces that a verb macro declares @result exactly once.
func checkVerbResult(m *ast.Macro) error {
	count := 0
	for _, s := range m.Statements {
		if s.Declaration == ast.ResultDeclaration {
			count++
		}
	}
	if count != 1 {
		return &errs.ParseError{Message: fmt.Sprintf("verb macro %s must declare @result exactly once, found %d", m.Name, count), Line: m.Line}
	}
	return nil
}
