// Package theory implements the theory store (C8) and versioning algebra
// (C9) of spec.md §4.9: branch, merge, use, and remember, backed by
// per-theory folders under a working directory.
package theory

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"spock/internal/errs"
	"spock/internal/lang/ast"
	"spock/internal/lang/parser"
	"spock/internal/logging"
	"spock/internal/session"
	"spock/internal/value"
	"spock/internal/vecspace"
)

// MergeProvenance records which versions a consensus-merged vector was
// derived from, per spec.md §4.9 step 5.
type MergeProvenance struct {
	MergedFrom []string
}

// Descriptor is the theory descriptor of spec.md §3: an AST plus an
// optional prototype-vector cache, version lineage, and timestamps.
type Descriptor struct {
	Name            string
	VersionID       string
	ParentVersionID string // "" if none
	Script          *ast.Script
	SourceText      string
	VectorCache     map[string]vecspace.Vector
	CreatedAt       time.Time
	UpdatedAt       time.Time
	BranchedFrom    string // source theory name, set only by Branch
	MergeProvenance *MergeProvenance
}

type metadataFile struct {
	TheoryID        string     `json:"theoryId"`
	VersionID       string     `json:"versionId"`
	ParentVersionID *string    `json:"parentVersionId"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// Store persists theories under `<workingFolder>/theories/<name>/`, one
// `theory.spockdsl` + `metadata.json` pair per theory, matching spec.md §6
// exactly, plus an optional `vectors.db` prototype-vector cache.
type Store struct {
	workingFolder string
}

// NewStore constructs a Store rooted at workingFolder.
func NewStore(workingFolder string) *Store {
	return &Store{workingFolder: workingFolder}
}

func (s *Store) dir(name string) string {
	return filepath.Join(s.workingFolder, "theories", name)
}

// Load reads a theory descriptor from disk, returning *errs.TheoryNotFoundError
// if no such theory exists.
func (s *Store) Load(name string) (*Descriptor, error) {
	dir := s.dir(name)
	srcBytes, err := os.ReadFile(filepath.Join(dir, "theory.spockdsl"))
	if err != nil {
		return nil, &errs.TheoryNotFoundError{Name: name}
	}
	metaBytes, err := os.ReadFile(filepath.Join(dir, "metadata.json"))
	if err != nil {
		return nil, fmt.Errorf("load theory %s: reading metadata.json: %w", name, err)
	}

	var meta metadataFile
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return nil, fmt.Errorf("load theory %s: parsing metadata.json: %w", name, err)
	}

	script, err := parser.Parse(string(srcBytes))
	if err != nil {
		return nil, fmt.Errorf("load theory %s: %w", name, err)
	}

	vc, err := s.loadVectorCache(name)
	if err != nil {
		return nil, err
	}

	d := &Descriptor{
		Name:        name,
		VersionID:   meta.VersionID,
		Script:      script,
		SourceText:  string(srcBytes),
		VectorCache: vc,
		CreatedAt:   meta.CreatedAt,
		UpdatedAt:   meta.UpdatedAt,
	}
	if meta.ParentVersionID != nil {
		d.ParentVersionID = *meta.ParentVersionID
	}
	return d, nil
}

// Save writes a theory descriptor to disk, creating its folder if absent.
func (s *Store) Save(d *Descriptor) error {
	dir := s.dir(d.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("save theory %s: %w", d.Name, err)
	}
	if err := os.WriteFile(filepath.Join(dir, "theory.spockdsl"), []byte(d.SourceText), 0o644); err != nil {
		return fmt.Errorf("save theory %s: writing source: %w", d.Name, err)
	}

	var parentID *string
	if d.ParentVersionID != "" {
		parentID = &d.ParentVersionID
	}
	meta := metadataFile{
		TheoryID:        d.Name,
		VersionID:       d.VersionID,
		ParentVersionID: parentID,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
	metaBytes, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("save theory %s: encoding metadata.json: %w", d.Name, err)
	}
	if err := os.WriteFile(filepath.Join(dir, "metadata.json"), metaBytes, 0o644); err != nil {
		return fmt.Errorf("save theory %s: writing metadata.json: %w", d.Name, err)
	}

	if len(d.VectorCache) > 0 {
		if err := s.saveVectorCache(d.Name, d.VectorCache); err != nil {
			return err
		}
	}
	return nil
}

// List returns every theory name under the working folder, sorted.
func (s *Store) List() ([]string, error) {
	root := filepath.Join(s.workingFolder, "theories")
	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list theories: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes a theory's folder entirely.
func (s *Store) Delete(name string) error {
	dir := s.dir(name)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return &errs.TheoryNotFoundError{Name: name}
	}
	return os.RemoveAll(dir)
}

func (s *Store) vectorsDBPath(name string) string {
	return filepath.Join(s.dir(name), "vectors.db")
}

func (s *Store) loadVectorCache(name string) (map[string]vecspace.Vector, error) {
	path := s.vectorsDBPath(name)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("load theory %s: opening vector cache: %w", name, err)
	}
	defer db.Close()

	rows, err := db.Query(`SELECT name, data FROM vectors`)
	if err != nil {
		return nil, fmt.Errorf("load theory %s: querying vector cache: %w", name, err)
	}
	defer rows.Close()

	cache := make(map[string]vecspace.Vector)
	for rows.Next() {
		var rowName string
		var data []byte
		if err := rows.Scan(&rowName, &data); err != nil {
			return nil, fmt.Errorf("load theory %s: scanning vector cache: %w", name, err)
		}
		v, err := vecspace.FromBytes(data)
		if err != nil {
			return nil, fmt.Errorf("load theory %s: decoding cached vector %s: %w", name, rowName, err)
		}
		cache[rowName] = v
	}
	return cache, rows.Err()
}

func (s *Store) saveVectorCache(name string, cache map[string]vecspace.Vector) error {
	path := s.vectorsDBPath(name)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("save theory %s: opening vector cache: %w", name, err)
	}
	defer db.Close()

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS vectors (name TEXT PRIMARY KEY, data BLOB)`); err != nil {
		return fmt.Errorf("save theory %s: creating vector cache table: %w", name, err)
	}
	for vecName, v := range cache {
		if _, err := db.Exec(`INSERT OR REPLACE INTO vectors (name, data) VALUES (?, ?)`, vecName, v.Bytes()); err != nil {
			return fmt.Errorf("save theory %s: writing cached vector %s: %w", name, vecName, err)
		}
	}
	return nil
}

// Branch implements spec.md §4.9's Branch algorithm: load source, compute
// `source__branchName`, deep-copy the AST and vector cache, assign a fresh
// version lineage, and persist.
func (s *Store) Branch(sourceName, branchName string) (*Descriptor, error) {
	source, err := s.Load(sourceName)
	if err != nil {
		return nil, err
	}

	newName := sourceName + "__" + branchName

	// Re-parsing the source text yields an AST that shares no nodes with the
	// source descriptor's.
	script, err := parser.Parse(source.SourceText)
	if err != nil {
		return nil, fmt.Errorf("branch theory %s: %w", sourceName, err)
	}

	vc := make(map[string]vecspace.Vector, len(source.VectorCache))
	for k, v := range source.VectorCache {
		vc[k] = v.Scale(1) // forces an independent backing array, not an alias
	}

	now := time.Now()
	d := &Descriptor{
		Name:            newName,
		VersionID:       uuid.New().String(),
		ParentVersionID: source.VersionID,
		Script:          script,
		SourceText:      source.SourceText,
		VectorCache:     vc,
		CreatedAt:       now,
		UpdatedAt:       now,
		BranchedFrom:    sourceName,
	}
	if err := s.Save(d); err != nil {
		return nil, err
	}
	return d, nil
}

// Merge implements spec.md §4.9's Merge algorithm over target and source
// theories under the given strategy ("target", "source", "both",
// "consensus", or "fail"; "" defaults to "target").
func (s *Store) Merge(targetName, sourceName, strategy string) (*Descriptor, error) {
	if strategy == "" {
		strategy = "target"
	}

	target, err := s.Load(targetName)
	if err != nil {
		return nil, err
	}
	source, err := s.Load(sourceName)
	if err != nil {
		return nil, err
	}

	statements, err := mergeStatements(target, source, strategy)
	if err != nil {
		return nil, err
	}
	macros := mergeMacros(target.Script.Macros, source.Script.Macros)
	mergedScript := &ast.Script{Statements: statements, Macros: macros}

	vc, provenance := mergeVectorCaches(target, source, strategy)

	now := time.Now()
	d := &Descriptor{
		Name:            targetName,
		VersionID:       uuid.New().String(),
		ParentVersionID: target.VersionID,
		Script:          mergedScript,
		SourceText:      renderScript(mergedScript),
		VectorCache:     vc,
		CreatedAt:       target.CreatedAt,
		UpdatedAt:       now,
		MergeProvenance: provenance,
	}
	if err := s.Save(d); err != nil {
		return nil, err
	}
	return d, nil
}

func mergeStatements(target, source *Descriptor, strategy string) ([]ast.Statement, error) {
	merged := append([]ast.Statement(nil), target.Script.Statements...)
	index := make(map[string]int, len(merged))
	for i, st := range merged {
		index[st.Declaration] = i
	}

	for _, st := range source.Script.Statements {
		pos, collides := index[st.Declaration]
		if !collides {
			index[st.Declaration] = len(merged)
			merged = append(merged, st)
			continue
		}
		switch strategy {
		case "target":
			// keep target, skip source
		case "source":
			merged[pos] = st
		case "both":
			renamed := st
			renamed.Declaration = st.Declaration + "_merged"
			merged = append(merged, renamed)
		case "consensus":
			renamed := st
			renamed.Declaration = st.Declaration + "_consensus"
			merged = append(merged, renamed)
		case "fail":
			return nil, &errs.MergeConflictError{
				Declaration:   st.Declaration,
				TargetVersion: target.VersionID,
				SourceVersion: source.VersionID,
			}
		default:
			return nil, fmt.Errorf("merge theory: unknown strategy %q", strategy)
		}
	}
	return merged, nil
}

func mergeMacros(target, source []*ast.Macro) []*ast.Macro {
	merged := append([]*ast.Macro(nil), target...)
	existing := make(map[string]bool, len(merged))
	for _, m := range merged {
		existing[m.Name] = true
	}
	for _, m := range source {
		if !existing[m.Name] {
			merged = append(merged, m)
		}
	}
	return merged
}

func mergeVectorCaches(target, source *Descriptor, strategy string) (map[string]vecspace.Vector, *MergeProvenance) {
	vc := make(map[string]vecspace.Vector, len(target.VectorCache)+len(source.VectorCache))
	for k, v := range target.VectorCache {
		vc[k] = v
	}

	var provenance *MergeProvenance
	for k, v := range source.VectorCache {
		existing, collides := vc[k]
		if !collides {
			vc[k] = v
			continue
		}
		switch strategy {
		case "source":
			vc[k] = v
		case "both":
			vc[k+"_merged"] = v
		case "consensus":
			vc[k] = existing.Add(v).Normalise()
			provenance = &MergeProvenance{MergedFrom: []string{target.VersionID, source.VersionID}}
		default: // "target", "fail": keep the target's vector
		}
	}
	return vc, provenance
}

// ExecuteFunc runs a theory's statements under a freshly created child
// session, returning the materialised name->value map. The executor (C11)
// supplies this so theory stays decoupled from execution: spec.md §4.9's
// "the executor injects itself (and its context constructor)".
type ExecuteFunc func(child *session.Session, statements []ast.Statement) (map[string]value.Value, error)

// Use implements spec.md §4.9's Use algorithm: load the theory, execute its
// AST under a child of parent, and register the resulting symbols as the
// newest overlay on parent.
func (s *Store) Use(parent *session.Session, name string, execute ExecuteFunc) (*session.Overlay, error) {
	d, err := s.Load(name)
	if err != nil {
		return nil, err
	}

	child := parent.NewChild()
	symbols, err := execute(child, d.Script.Statements)
	if err != nil {
		return nil, fmt.Errorf("use theory %s: %w", name, err)
	}

	overlay := session.Overlay{TheoryName: name, Symbols: symbols, Statements: d.Script.Statements}
	parent.AddOverlay(overlay)
	return &overlay, nil
}

// Remember implements spec.md §4.9's Remember algorithm: serialise sess's
// visible symbols to statements (preserving origin where one was recorded,
// falling back to a self-Identity statement otherwise), preserve any
// overlay statements a session write hasn't shadowed, and persist a new
// version of the named theory.
func (s *Store) Remember(sess *session.Session, name string) (*Descriptor, error) {
	existing, err := s.Load(name)
	notFound := false
	if err != nil {
		var tnf *errs.TheoryNotFoundError
		if errors.As(err, &tnf) {
			notFound = true
		} else {
			return nil, err
		}
	}

	bindings := sess.AllBindings()
	names := make([]string, 0, len(bindings))
	for n := range bindings {
		names = append(names, n)
	}
	sort.Strings(names)

	shadowed := make(map[string]bool, len(bindings))
	statements := make([]ast.Statement, 0, len(bindings))
	for _, n := range names {
		decl := n
		if !strings.HasPrefix(decl, "@") {
			decl = "@" + decl
		}
		shadowed[decl] = true
		if st, ok := declarationStatement(decl, bindings[n]); ok {
			statements = append(statements, st)
		} else {
			logging.TheoryWarn("remember %s: dropping %s (%s) — no type-correct verb reproduces a non-VECTOR binding", name, decl, bindings[n].Tag)
		}
	}
	statements = append(statements, sess.OverlayStatements(shadowed)...)

	script := &ast.Script{Statements: statements}
	sourceText := renderScript(script)
	reparsed, err := parser.Parse(sourceText)
	if err != nil {
		return nil, fmt.Errorf("remember %s: re-parsing serialised statements: %w", name, err)
	}

	now := time.Now()
	createdAt := now
	parentVersion := ""
	if !notFound {
		createdAt = existing.CreatedAt
		parentVersion = existing.VersionID
	}

	d := &Descriptor{
		Name:            name,
		VersionID:       uuid.New().String(),
		ParentVersionID: parentVersion,
		Script:          reparsed,
		SourceText:      sourceText,
		CreatedAt:       createdAt,
		UpdatedAt:       now,
	}
	if err := s.Save(d); err != nil {
		return nil, err
	}
	return d, nil
}

// declarationStatement renders one session binding as the statement that
// reproduces it (spec.md §4.9 step 2): its recorded origin if the VECTOR
// carries one, or a VECTOR-producing Identity self-reference otherwise.
// Identity only ever accepts a VECTOR subject, so a non-VECTOR binding
// (SCALAR/NUMERIC/MEASURED/STRING/MACRO/THEORY) has no statement in the
// catalogue that both takes its tag as input and reproduces that same tag
// — reported via the second return value instead of silently emitting a
// statement a reload can't execute.
func declarationStatement(decl string, v value.Value) (ast.Statement, bool) {
	if !v.IsVector() {
		return ast.Statement{}, false
	}
	if origin := v.Origin(); origin != nil {
		return ast.Statement{
			Declaration: decl,
			Subject:     ast.Operand{Text: origin.Subject},
			Verb:        origin.Verb,
			Object:      ast.Operand{Text: origin.Object},
		}, true
	}
	bare := strings.TrimPrefix(decl, "@")
	return ast.Statement{
		Declaration: decl,
		Subject:     ast.Operand{Text: bare},
		Verb:        "Identity",
		Object:      ast.Operand{Text: "_"},
	}, true
}

// renderScript re-serialises a script AST to SpockDSL source text,
// statements first then each top-level macro in source order.
func renderScript(script *ast.Script) string {
	var sb strings.Builder
	for _, st := range script.Statements {
		sb.WriteString(st.String())
		sb.WriteString("\n")
	}
	for _, m := range script.Macros {
		renderMacro(&sb, m)
	}
	return sb.String()
}

func renderMacro(sb *strings.Builder, m *ast.Macro) {
	fmt.Fprintf(sb, "%s %s begin\n", m.Name, m.Kind)
	for _, st := range m.Statements {
		sb.WriteString(st.String())
		sb.WriteString("\n")
	}
	for _, nested := range m.Nested {
		renderMacro(sb, nested)
	}
	sb.WriteString("end\n")
}
