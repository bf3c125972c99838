// Package session implements the hierarchical name tables of spec.md §4.4:
// a session owns a local `name -> boxed value` table, a parent pointer, an
// ordered list of theory overlays, and a handle to engine-wide globals.
package session

import (
	"strings"
	"sync"

	"spock/internal/lang/ast"
	"spock/internal/value"
)

// Overlay is the set of symbols a `UseTheory` invocation materialises into
// scope, exposed to name resolution in the insertion order overlays were
// added (spec.md §4.4 step 4). Overlays are read-only from a session's
// point of view; a session never mutates one of its overlays. Statements
// carries the theory's own AST so a later `Remember` can re-emit whichever
// of them a session write hasn't shadowed (spec.md §4.9 step 3).
type Overlay struct {
	TheoryName string
	Symbols    map[string]value.Value
	Statements []ast.Statement
}

// Globals is the engine-wide symbol table shared by every session: the
// canonical Truth/False/Zero constants the engine seeds at construction
// (Persist binds into the calling session, not here). It is its own lock domain
// since sessions across unrelated calls may read and write it concurrently.
type Globals struct {
	mu      sync.RWMutex
	symbols map[string]value.Value
}

// NewGlobals constructs an empty engine-wide symbol table.
func NewGlobals() *Globals {
	return &Globals{symbols: make(map[string]value.Value)}
}

// Get looks up a global symbol by its bare (undecorated) name.
func (g *Globals) Get(name string) (value.Value, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	v, ok := g.symbols[name]
	return v, ok
}

// Set binds a global symbol by its bare name, overwriting any prior value.
// Used by engine bootstrap to seed Truth/False/Zero.
func (g *Globals) Set(name string, v value.Value) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.symbols[name] = v
}

// Session is one scope of name resolution: a local table, an optional
// parent (for child sessions spawned by verb-macro invocation or UseTheory),
// an ordered overlay list, and the shared globals handle. Mirrors the
// locked, factory-constructed struct shape the kernel modules use, scaled
// down to the single mutex a session's own local table needs — overlays and
// parents are read-only from here and carry their own synchronisation.
type Session struct {
	mu      sync.RWMutex
	table   map[string]value.Value
	parent  *Session
	overlays []Overlay
	globals *Globals
}

// New constructs a root session (no parent) bound to globals.
func New(globals *Globals) *Session {
	return &Session{
		table:   make(map[string]value.Value),
		globals: globals,
	}
}

// NewChild constructs a child session for a verb-macro invocation or a
// UseTheory body: its local table is fresh and dies with the call, its
// parent chain and the globals handle are inherited. The child starts with
// no overlays of its own; theory overlays added to the parent remain
// visible via the parent walk, but the child sees only what it explicitly
// adds plus whatever its ancestors expose.
func (s *Session) NewChild() *Session {
	return &Session{
		table:   make(map[string]value.Value),
		parent:  s,
		globals: s.globals,
	}
}

// AddOverlay appends a theory overlay to this session's local overlay list,
// in materialisation order. Overlays are scanned after the parent chain
// fails to resolve a name (spec.md §4.4 step 4), most-recently-added first
// is NOT implied: insertion order is preserved, matching "scan theory
// overlays in insertion order".
func (s *Session) AddOverlay(o Overlay) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overlays = append(s.overlays, o)
}

// Bind writes name to v in this session's local table. Per spec.md §4.4,
// "writing always targets the top-most session" — exec calls Bind on
// whichever session is current for the statement being executed, which is
// already the top-most session in the active call; Bind never walks up to
// rebind an ancestor's table.
func (s *Session) Bind(name string, v value.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.table[canonicalKey(name)] = v
}

// Resolve looks up name through the full chain spec.md §4.4 defines:
// exact match in the local table; if the name is `$`-decorated, retry with
// the bare and `@`-prefixed forms; walk parent sessions; scan theory
// overlays in insertion order; fall back to engine globals. Reports false
// if no step resolves the name.
func (s *Session) Resolve(name string) (value.Value, bool) {
	if v, ok := s.resolveLocalChain(name); ok {
		return v, ok
	}
	if v, ok := s.resolveOverlays(name); ok {
		return v, ok
	}
	return s.globals.Get(canonicalKey(name))
}

// resolveLocalChain walks this session then its ancestors, trying the exact
// name and its canonical (bare) form at each level before moving up.
func (s *Session) resolveLocalChain(name string) (value.Value, bool) {
	for sess := s; sess != nil; sess = sess.parent {
		if v, ok := sess.lookupLocal(name); ok {
			return v, ok
		}
	}
	return value.Value{}, false
}

func (s *Session) lookupLocal(name string) (value.Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.table[canonicalKey(name)]
	return v, ok
}

// resolveOverlays scans this session's own overlays, then its ancestors'
// overlays outward, in insertion order within each level.
func (s *Session) resolveOverlays(name string) (value.Value, bool) {
	key := canonicalKey(name)
	for sess := s; sess != nil; sess = sess.parent {
		sess.mu.RLock()
		for _, overlay := range sess.overlays {
			if v, ok := overlay.Symbols[key]; ok {
				sess.mu.RUnlock()
				return v, true
			}
		}
		sess.mu.RUnlock()
	}
	return value.Value{}, false
}

// AllBindings returns the full non-overlay name->value view visible from s:
// ancestor tables merged bottom-up so a child's binding shadows its
// parent's, keyed by the canonical (bare) name. Used by `Remember` to
// serialise the session's symbols back to statements.
func (s *Session) AllBindings() map[string]value.Value {
	var chain []*Session
	for sess := s; sess != nil; sess = sess.parent {
		chain = append(chain, sess)
	}

	merged := make(map[string]value.Value)
	for i := len(chain) - 1; i >= 0; i-- {
		sess := chain[i]
		sess.mu.RLock()
		for k, v := range sess.table {
			merged[k] = v
		}
		sess.mu.RUnlock()
	}
	return merged
}

// OverlayStatements returns every statement contributed by an overlay
// visible from s (this session's own overlays, then its ancestors',
// outward) whose declaration is not shadowed by shadowed. Used by
// `Remember` to preserve overlay-sourced statements a session write hasn't
// overridden (spec.md §4.9 step 3).
func (s *Session) OverlayStatements(shadowed map[string]bool) []ast.Statement {
	var statements []ast.Statement
	seen := make(map[string]bool, len(shadowed))
	for k := range shadowed {
		seen[k] = true
	}
	for sess := s; sess != nil; sess = sess.parent {
		sess.mu.RLock()
		for _, overlay := range sess.overlays {
			for _, st := range overlay.Statements {
				if seen[st.Declaration] {
					continue
				}
				seen[st.Declaration] = true
				statements = append(statements, st)
			}
		}
		sess.mu.RUnlock()
	}
	return statements
}

// canonicalKey normalises a decorated reference ("$name" or "@name") to the
// bare name used as the storage key, resolving Open Question 1 in favour of
// a single undecorated canonical key with normalisation at lookup time.
func canonicalKey(name string) string {
	switch {
	case strings.HasPrefix(name, "$"):
		return strings.TrimPrefix(name, "$")
	case strings.HasPrefix(name, "@"):
		return strings.TrimPrefix(name, "@")
	default:
		return name
	}
}
