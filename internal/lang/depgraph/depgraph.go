// Package depgraph builds the per-macro dependency DAG of spec.md §4.3 and
// schedules statements by Kahn's algorithm, breaking ties by textual
// (source) order for determinism.
package depgraph

import (
	"fmt"
	"sort"
	"strings"

	"spock/internal/errs"
	"spock/internal/lang/ast"
)

// Graph is a dependency DAG over one macro body (or the top-level script):
// nodes are declaration names, edges point from a dependency to its
// dependent.
type Graph struct {
	statements map[string]ast.Statement
	order      []string // declaration order, for edge-extraction and tie-break
	edges      map[string][]string
}

// Build constructs the dependency graph for a flat list of statements
// visible in one scope. A `$name` reference only ever creates an edge to a
// declaration within this same statement list; a reference that resolves
// to an enclosing scope (spec.md §4.3) creates no edge here, since that
// declaration already schedules and executes in its own macro's graph
// before this one runs.
func Build(statements []ast.Statement) *Graph {
	g := &Graph{
		statements: make(map[string]ast.Statement, len(statements)),
		edges:      make(map[string][]string, len(statements)),
	}

	local := make(map[string]bool, len(statements))
	for _, s := range statements {
		local[s.Declaration] = true
	}

	for _, s := range statements {
		g.statements[s.Declaration] = s
		g.order = append(g.order, s.Declaration)

		for _, operand := range []ast.Operand{s.Subject, s.Object} {
			if operand.Kind != ast.OperandMagicVar {
				continue
			}
			bare := "@" + strings.TrimPrefix(operand.Text, "$")
			if local[bare] {
				g.edges[bare] = append(g.edges[bare], s.Declaration)
			}
			// A $ref resolving only to an enclosing scope
			// creates no edge in this graph: that declaration schedules
			// in its own macro's graph, already ordered before this one
			// executes (spec.md §4.3's "enclosing scope" clause).
		}
	}

	return g
}

// Schedule returns statements in dependency order via Kahn's algorithm,
// breaking ties by the textual (source) order captured in Build. Returns
// an *errs.CycleError naming one participating declaration if the graph
// has a cycle.
func (g *Graph) Schedule() ([]ast.Statement, error) {
	indegree := make(map[string]int, len(g.order))
	for _, decl := range g.order {
		indegree[decl] = 0
	}
	for _, dependents := range g.edges {
		for _, d := range dependents {
			indegree[d]++
		}
	}

	textualIndex := make(map[string]int, len(g.order))
	for i, decl := range g.order {
		textualIndex[decl] = i
	}

	var ready []string
	for _, decl := range g.order {
		if indegree[decl] == 0 {
			ready = append(ready, decl)
		}
	}
	sortByTextualOrder(ready, textualIndex)

	var scheduled []ast.Statement
	for len(ready) > 0 {
		next := ready[0]
		ready = ready[1:]
		scheduled = append(scheduled, g.statements[next])

		var newlyReady []string
		for _, dependent := range g.edges[next] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				newlyReady = append(newlyReady, dependent)
			}
		}
		sortByTextualOrder(newlyReady, textualIndex)
		ready = mergeByTextualOrder(ready, newlyReady, textualIndex)
	}

	if len(scheduled) != len(g.order) {
		for _, decl := range g.order {
			if indegree[decl] > 0 {
				return nil, &errs.CycleError{Declaration: decl}
			}
		}
	}
	return scheduled, nil
}

// DOT renders the graph in Graphviz dot format, for debugging macro
// scheduling. Not part of the public contract — a pure, side-effect-free
// convenience.
func (g *Graph) DOT() string {
	var sb strings.Builder
	sb.WriteString("digraph depgraph {\n")
	for _, decl := range g.order {
		fmt.Fprintf(&sb, "  %q;\n", decl)
	}
	for from, dependents := range g.edges {
		for _, to := range dependents {
			fmt.Fprintf(&sb, "  %q -> %q;\n", from, to)
		}
	}
	sb.WriteString("}\n")
	return sb.String()
}

func sortByTextualOrder(decls []string, textualIndex map[string]int) {
	sort.Slice(decls, func(i, j int) bool {
		return textualIndex[decls[i]] < textualIndex[decls[j]]
	})
}

// mergeByTextualOrder merges two already-sorted (by textual order) slices.
func mergeByTextualOrder(a, b []string, textualIndex map[string]int) []string {
	if len(b) == 0 {
		return a
	}
	merged := make([]string, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if textualIndex[a[i]] <= textualIndex[b[j]] {
			merged = append(merged, a[i])
			i++
		} else {
			merged = append(merged, b[j])
			j++
		}
	}
	merged = append(merged, a[i:]...)
	merged = append(merged, b[j:]...)
	return merged
}
