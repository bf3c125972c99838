package token

import "testing"

func TestClassifyDeclaration(t *testing.T) {
	if Classify("@result") != DECLARATION {
		t.Fatal("expected DECLARATION")
	}
}

func TestClassifyMagicVar(t *testing.T) {
	if Classify("$subject") != MAGIC_VAR {
		t.Fatal("expected MAGIC_VAR")
	}
}

func TestClassifyPlaceholder(t *testing.T) {
	if Classify("_") != PLACEHOLDER {
		t.Fatal("expected PLACEHOLDER")
	}
}

func TestClassifyKeywordsCaseInsensitive(t *testing.T) {
	for _, kw := range []string{"theory", "VERB", "Session", "begin", "END"} {
		if Classify(kw) != KEYWORD {
			t.Fatalf("expected KEYWORD for %s", kw)
		}
	}
}

func TestClassifyLiteral(t *testing.T) {
	for _, lit := range []string{"42", "-3.14", "+7", "0.5"} {
		if Classify(lit) != LITERAL {
			t.Fatalf("expected LITERAL for %s", lit)
		}
	}
}

func TestClassifyIdentifierFallback(t *testing.T) {
	for _, id := range []string{"dog", "Concept1", "a-b", "42x"} {
		if Classify(id) != IDENTIFIER {
			t.Fatalf("expected IDENTIFIER for %s", id)
		}
	}
}

func TestTokenizeStripsComments(t *testing.T) {
	toks := Tokenize("@a dog Bind cat # a comment\n")
	if len(toks) != 4 {
		t.Fatalf("expected 4 tokens, got %d: %+v", len(toks), toks)
	}
}

func TestTokenizeBlankLinesProduceNoTokens(t *testing.T) {
	toks := Tokenize("\n\n@a dog Bind cat\n\n")
	if len(toks) != 4 {
		t.Fatalf("expected 4 tokens, got %d", len(toks))
	}
	if toks[0].Line != 3 {
		t.Fatalf("expected first token on line 3, got %d", toks[0].Line)
	}
}

func TestTokenizeTracksColumns(t *testing.T) {
	toks := Tokenize("@a dog")
	if toks[0].Column != 1 {
		t.Fatalf("expected column 1 for first token, got %d", toks[0].Column)
	}
	if toks[1].Column != 4 {
		t.Fatalf("expected column 4 for second token, got %d", toks[1].Column)
	}
}

func TestTokenizeLinesGroupsByLine(t *testing.T) {
	grouped := TokenizeLines("@theory1 theory begin\n@a dog Bind cat\nend\n")
	if len(grouped) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(grouped))
	}
	if len(grouped[0]) != 3 {
		t.Fatalf("expected 3 tokens on macro header line, got %d", len(grouped[0]))
	}
	if len(grouped[1]) != 4 {
		t.Fatalf("expected 4 tokens on statement line, got %d", len(grouped[1]))
	}
	if len(grouped[2]) != 1 {
		t.Fatalf("expected 1 token on end line, got %d", len(grouped[2]))
	}
}

func TestTokenizeLinesEmptyScript(t *testing.T) {
	if grouped := TokenizeLines(""); grouped != nil {
		t.Fatalf("expected nil for empty script, got %+v", grouped)
	}
}

func TestCommentCharacterInsideTokenDisallowedButNoLexError(t *testing.T) {
	// spec.md: "the comment character inside a token is disallowed (no
	// quoting escapes)" -- there is no quoting mode, so a bare '#'
	// anywhere on the line starts the comment, even mid-token.
	toks := Tokenize("@a dog#inline Bind cat")
	if len(toks) != 2 {
		t.Fatalf("expected tokenization to stop at the first #, got %d tokens: %+v", len(toks), toks)
	}
}
