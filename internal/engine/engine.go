// Package engine is the public surface of SPOCK GOS (spec.md §4.11/§6):
// the engine factory (C14) that wires every subsystem together from a
// Config, and the Session API (C13) built on top of it.
package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"spock/internal/config"
	"spock/internal/exec"
	"spock/internal/lang/parser"
	"spock/internal/logging"
	"spock/internal/planner"
	"spock/internal/session"
	"spock/internal/theory"
	"spock/internal/trace"
	"spock/internal/value"
	"spock/internal/vecspace"
)

// truthFileName is the canonical constant store of spec.md §6.
const truthFileName = "truth.bin"

// Engine owns every long-lived subsystem (C1-C12) for one working folder:
// the vector space, the theory store, the trace recorder, the executor,
// and the engine-wide globals (Truth/False/Zero). Grounded on the teacher's
// central `Engine` struct in `internal/mangle/engine.go`
// (`NewEngine`/`Config`/`DefaultConfig` factory convention), rescoped to
// SPOCK GOS's own subsystem set.
type Engine struct {
	cfg     *config.Config
	space   *vecspace.Space
	globals *session.Globals
	store   *theory.Store
	tracer  *trace.Recorder
	exec    *Executor
	truth   vecspace.Vector

	sessionCount int
	factCount    int
}

// Executor is internal/exec.Executor, aliased here so callers of this
// package never need to import internal/exec directly.
type Executor = exec.Executor

// New constructs an Engine from cfg, matching spec.md §4.11's
// "createEngine(config) -> Engine": validates the configuration, seeds the
// RNG-backed vector space, restores or creates the canonical Truth/False/Zero
// constants, opens the theory store, and seeds the bundled theories if the
// working folder is new. A nil cfg uses config.DefaultConfig().
func New(cfg *config.Config) (*Engine, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine: invalid config: %w", err)
	}
	if err := os.MkdirAll(cfg.WorkingFolder, 0o755); err != nil {
		return nil, fmt.Errorf("engine: creating working folder: %w", err)
	}
	if err := logging.Initialize(cfg.WorkingFolder, cfg.LogLevel == "debug", cfg.LogLevel, false); err != nil {
		return nil, fmt.Errorf("engine: initialising logging: %w", err)
	}

	space := vecspace.NewSpace(cfg)

	truth, err := loadOrCreateTruth(cfg, space)
	if err != nil {
		return nil, fmt.Errorf("engine: establishing canonical Truth: %w", err)
	}
	falsehood := truth.Negate()
	zero := space.Zero()

	globals := session.NewGlobals()
	globals.Set("Truth", value.NewVectorAnnotated(truth, "Truth", nil))
	globals.Set("False", value.NewVectorAnnotated(falsehood, "False", nil))
	globals.Set("Zero", value.NewVectorAnnotated(zero, "Zero", nil))

	store := theory.NewStore(cfg.WorkingFolder)
	tracer := trace.NewRecorder()
	pl := planner.New(cfg, cfg.NewRand())
	ex := exec.New(space, pl, store, tracer, cfg, truth)

	e := &Engine{
		cfg:     cfg,
		space:   space,
		globals: globals,
		store:   store,
		tracer:  tracer,
		exec:    ex,
		truth:   truth,
	}

	isNew := !theoriesDirExists(cfg.WorkingFolder)
	if isNew {
		if err := e.seedBundledTheories(); err != nil {
			return nil, fmt.Errorf("engine: seeding bundled theories: %w", err)
		}
	}

	logging.Boot("engine initialised: workingFolder=%s dimensions=%d seed=%d new=%v", cfg.WorkingFolder, cfg.Dimensions, cfg.RandomSeed, isNew)
	return e, nil
}

func theoriesDirExists(workingFolder string) bool {
	_, err := os.Stat(filepath.Join(workingFolder, "theories"))
	return err == nil
}

// loadOrCreateTruth implements spec.md §6's canonical constant store:
// raw IEEE-754 bytes at <workingFolder>/truth.bin. If the file is absent,
// unreadable, or was written for a different dimensionality, a fresh Truth
// is drawn from the space and persisted.
func loadOrCreateTruth(cfg *config.Config, space *vecspace.Space) (vecspace.Vector, error) {
	path := filepath.Join(cfg.WorkingFolder, truthFileName)

	if data, err := os.ReadFile(path); err == nil {
		if v, ferr := vecspace.FromBytes(data); ferr == nil && v.Dim() == cfg.Dimensions {
			logging.Boot("restored canonical Truth from %s", path)
			return v, nil
		}
		logging.Boot("discarding stale %s (dimension mismatch or decode failure)", path)
	} else if !os.IsNotExist(err) {
		return vecspace.Vector{}, fmt.Errorf("reading %s: %w", path, err)
	}

	truth := space.Random()
	if err := os.WriteFile(path, truth.Bytes(), 0o644); err != nil {
		return vecspace.Vector{}, fmt.Errorf("writing %s: %w", path, err)
	}
	return truth, nil
}

// seedBundledTheories persists a small "Core" theory the first time an
// engine opens a fresh working folder, giving UseTheory/BranchTheory
// something to exercise without requiring a prior Remember call. Its body
// only binds the canonical constants under their own names via Identity,
// so it carries no opinionated domain content. Relation statements like
// `@p1 Humans Is Mortal` (spec.md §8 scenario 1) and `@ab a In b` (scenario
// 4) need nothing seeded here: Is/In are resolved directly by the
// geometric kernel registry (internal/kernel), so a fresh engine satisfies
// those scenarios on the very first script it runs, with no theory loaded
// at all.
func (e *Engine) seedBundledTheories() error {
	const name = "Core"
	source := "@truth Truth Identity _\n@falsehood False Identity _\n@origin Zero Identity _\n"
	script, err := parser.Parse(source)
	if err != nil {
		return err
	}
	now := time.Now()
	d := &theory.Descriptor{
		Name:       name,
		VersionID:  uuid.New().String(),
		Script:     script,
		SourceText: source,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return e.store.Save(d)
}

// CreateSession returns a fresh root Session (spec.md §4.11
// "engine.createSession() -> Session").
func (e *Engine) CreateSession() *Session {
	e.sessionCount++
	return &Session{engine: e, sess: session.New(e.globals)}
}

// ListTheories returns every theory name under the working folder, sorted
// (spec.md §6 "engine.listTheories() -> list of names"). Each name is
// validated by loading its descriptor concurrently (one errgroup goroutine
// per name, with no limit on how many run at once), matching the teacher's pattern of fanning background work out
// across goroutines rather than stat-ing folders serially.
func (e *Engine) ListTheories() ([]string, error) {
	names, err := e.store.List()
	if err != nil {
		return nil, err
	}

	g := new(errgroup.Group)
	for _, name := range names {
		name := name
		g.Go(func() error {
			_, loadErr := e.store.Load(name)
			return loadErr
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("engine: listing theories: %w", err)
	}
	return names, nil
}

// LoadTheory returns a theory's descriptor, wrapping the theory store's
// load for callers (the CLI's `spock theory show`) that need more than a
// bare name list.
func (e *Engine) LoadTheory(name string) (*theory.Descriptor, error) {
	return e.store.Load(name)
}

// DeleteTheory removes a theory from the store entirely, wrapping the
// theory store's delete for the CLI's `spock theory delete`.
func (e *Engine) DeleteTheory(name string) error {
	return e.store.Delete(name)
}

// Shutdown releases the engine's resources (spec.md §4.11
// "engine.shutdown()"): closes the category loggers. Sessions and their
// local tables are dropped by the caller simply releasing references to
// them, per spec.md §4.4.
func (e *Engine) Shutdown() error {
	logging.Boot("engine shutting down: sessions=%d facts=%d", e.sessionCount, e.factCount)
	logging.CloseAll()
	return nil
}

// Stats reports cheap lifetime counters: sessions created and facts
// (bound names) materialized, modeled on the teacher's `Engine.GetStats()`.
// Not part of spec.md's public operations list — harmless observability
// that does not touch core semantics.
type Stats struct {
	SessionsCreated int
	FactsBound      int
}

// Stats returns a snapshot of the engine's lifetime counters.
func (e *Engine) Stats() Stats {
	return Stats{SessionsCreated: e.sessionCount, FactsBound: e.factCount}
}
