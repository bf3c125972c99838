// Package token implements the SPOCK GOS tokenizer (spec.md §4.1):
// classify whitespace-delimited tokens into DECLARATION / MAGIC_VAR /
// PLACEHOLDER / KEYWORD / LITERAL / IDENTIFIER, strip comments, and carry
// 1-indexed line/column positions through the rest of the pipeline.
package token

import (
	"regexp"
	"strings"
)

// Kind classifies a token.
type Kind int

const (
	DECLARATION Kind = iota
	MAGIC_VAR
	PLACEHOLDER
	KEYWORD
	LITERAL
	IDENTIFIER
)

// String renders the kind name, used in parser diagnostics.
func (k Kind) String() string {
	switch k {
	case DECLARATION:
		return "DECLARATION"
	case MAGIC_VAR:
		return "MAGIC_VAR"
	case PLACEHOLDER:
		return "PLACEHOLDER"
	case KEYWORD:
		return "KEYWORD"
	case LITERAL:
		return "LITERAL"
	case IDENTIFIER:
		return "IDENTIFIER"
	default:
		return "UNKNOWN"
	}
}

// Token is a single classified lexeme with its source position.
type Token struct {
	Kind   Kind
	Text   string
	Line   int
	Column int
}

var keywords = map[string]bool{
	"theory":  true,
	"verb":    true,
	"session": true,
	"begin":   true,
	"end":     true,
}

// literalPattern matches a signed decimal with an optional fractional part.
var literalPattern = regexp.MustCompile(`^[+-]?[0-9]+(\.[0-9]+)?$`)

// Classify assigns a Kind to a raw lexeme, in the order spec.md §4.1 lists:
// DECLARATION, MAGIC_VAR, PLACEHOLDER, KEYWORD, LITERAL, IDENTIFIER.
func Classify(text string) Kind {
	switch {
	case strings.HasPrefix(text, "@"):
		return DECLARATION
	case strings.HasPrefix(text, "$"):
		return MAGIC_VAR
	case text == "_":
		return PLACEHOLDER
	case keywords[strings.ToLower(text)]:
		return KEYWORD
	case literalPattern.MatchString(text):
		return LITERAL
	default:
		return IDENTIFIER
	}
}

// Tokenize splits script text into classified tokens, stripping `#`
// comments (which run to end of line) and tracking 1-indexed line/column.
// No lexical errors are raised; unrecognised characters are simply part of
// an identifier unless they are whitespace.
func Tokenize(script string) []Token {
	var tokens []Token

	lines := strings.Split(script, "\n")
	for i, line := range lines {
		lineNum := i + 1
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = line[:idx]
		}

		for _, field := range splitFieldsWithColumns(line) {
			tokens = append(tokens, Token{
				Kind:   Classify(field.text),
				Text:   field.text,
				Line:   lineNum,
				Column: field.column,
			})
		}
	}

	return tokens
}

type fieldPos struct {
	text   string
	column int
}

// splitFieldsWithColumns splits on runs of whitespace, recording the
// 1-indexed column each field starts at.
func splitFieldsWithColumns(line string) []fieldPos {
	var fields []fieldPos
	inField := false
	start := 0

	runes := []rune(line)
	for i, r := range runes {
		isSpace := r == ' ' || r == '\t' || r == '\r'
		if isSpace {
			if inField {
				fields = append(fields, fieldPos{text: string(runes[start:i]), column: start + 1})
				inField = false
			}
			continue
		}
		if !inField {
			start = i
			inField = true
		}
	}
	if inField {
		fields = append(fields, fieldPos{text: string(runes[start:]), column: start + 1})
	}
	return fields
}

// TokenizeLines groups already-tokenized output back by source line, the
// shape the parser consumes (spec.md §4.2: "Groups tokens by line").
func TokenizeLines(script string) [][]Token {
	flat := Tokenize(script)
	if len(flat) == 0 {
		return nil
	}

	var lines [][]Token
	current := []Token{flat[0]}
	for _, tok := range flat[1:] {
		if tok.Line != current[0].Line {
			lines = append(lines, current)
			current = []Token{tok}
			continue
		}
		current = append(current, tok)
	}
	lines = append(lines, current)
	return lines
}
