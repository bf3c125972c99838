// Package planner implements the semantic gradient descent planner (C10)
// of spec.md §4.8: a greedy hill-climbing search over named vector actions,
// generalised to multi-constraint solving.
package planner

import (
	"math/rand"
	"sort"

	"spock/internal/config"
	"spock/internal/vecspace"
)

// Action is one candidate move the planner may take: a named delta vector
// added to the current state.
type Action struct {
	Name  string
	Delta vecspace.Vector
}

// StepKind distinguishes a plan's first record from its subsequent action
// steps (spec.md §4.8's "trace (with type `initial` first, then one per
// action)").
type StepKind string

const (
	StepInitial StepKind = "initial"
	StepAction  StepKind = "action"
)

// Step is one entry in a plan or solve trace.
type Step struct {
	Kind        StepKind
	Action      string // "" for the initial step
	Vector      vecspace.Vector
	Distance    float64 // Plan: cosine distance to goal, [0,2]; Solve: the negated constraint score
	Improvement float64 // 0 for the initial step
}

// Result is the outcome of Plan.
type Result struct {
	Success       bool
	Steps         []Step
	FinalVector   vecspace.Vector
	FinalDistance float64
}

// Constraint is one named requirement a Solve call must satisfy: the
// current state's cosine similarity to Target must meet or exceed
// MinSimilarity.
type Constraint struct {
	Name          string
	Target        vecspace.Vector
	MinSimilarity float64
}

// ConstraintStatus reports one constraint's similarity at the final state.
type ConstraintStatus struct {
	Name       string
	Similarity float64
	Satisfied  bool
}

// SolveResult is the outcome of Solve.
type SolveResult struct {
	Success     bool
	Steps       []Step
	FinalVector vecspace.Vector
	Score       float64 // worst (smallest) similarity minus its minimum
	Violated    []ConstraintStatus
}

// Planner runs the gradient-descent search bounded by a Config's planning
// parameters, using rng only for plateau perturbation/restart.
type Planner struct {
	cfg *config.Config
	rng *rand.Rand
}

// New constructs a Planner bounded by cfg, drawing plateau randomness from rng.
func New(cfg *config.Config, rng *rand.Rand) *Planner {
	return &Planner{cfg: cfg, rng: rng}
}

// cosineDistance maps cosine similarity to spec.md §4.8's [0,2] scale: 0
// identical, 2 antipodal.
func cosineDistance(a, b vecspace.Vector) float64 {
	return 1 - a.CosineSimilarity(b)
}

// defaultActions returns the single built-in gradient-direction action used
// when the caller supplies no action catalog: a unit step toward goal from
// current, named "gradient". This keeps the two-vector `Plan(current,
// goal)` contract of spec.md §4.6 meaningful on its own, while still
// letting a caller (the executor) pass a richer catalog of named concept
// vectors as alternative candidate moves.
func defaultActions(current, goal vecspace.Vector) []Action {
	delta := goal.Add(current.Negate())
	if delta.IsZero() {
		return nil
	}
	return []Action{{Name: "gradient", Delta: delta.Normalise()}}
}

// Plan runs the loop of spec.md §4.8 from current toward goal. If actions
// is empty, the planner falls back to the single gradient-direction action.
func (p *Planner) Plan(current, goal vecspace.Vector, actions []Action) Result {
	if len(actions) == 0 {
		actions = defaultActions(current, goal)
	}
	actions = capActions(actions, p.cfg.CandidateLimit)

	steps := []Step{{
		Kind:     StepInitial,
		Vector:   current,
		Distance: cosineDistance(current, goal),
	}}

	state := current
	for i := 0; i < p.cfg.MaxPlanningSteps; i++ {
		currentDistance := cosineDistance(state, goal)
		if currentDistance <= p.cfg.PlanningEpsilon {
			return Result{Success: true, Steps: steps, FinalVector: state, FinalDistance: currentDistance}
		}

		best, bestCandidate, bestImprovement, found := bestAction(state, goal, actions, currentDistance)
		if !found {
			next, ok := p.plateau(state)
			if !ok {
				return Result{Success: false, Steps: steps, FinalVector: state, FinalDistance: currentDistance}
			}
			state = next
			steps = append(steps, Step{Kind: StepAction, Action: "plateau", Vector: state, Distance: cosineDistance(state, goal)})
			continue
		}

		state = bestCandidate
		steps = append(steps, Step{
			Kind:        StepAction,
			Action:      best,
			Vector:      state,
			Distance:    cosineDistance(state, goal),
			Improvement: bestImprovement,
		})
	}

	return Result{Success: false, Steps: steps, FinalVector: state, FinalDistance: cosineDistance(state, goal)}
}

// bestAction evaluates every action against state, returning the one with
// the largest positive improvement over currentDistance, ties broken by
// name (spec.md §4.8's determinism requirement).
func bestAction(state, goal vecspace.Vector, actions []Action, currentDistance float64) (name string, candidate vecspace.Vector, improvement float64, found bool) {
	ordered := append([]Action(nil), actions...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Name < ordered[j].Name })

	best := -1.0
	for _, a := range ordered {
		c := state.Add(a.Delta)
		imp := currentDistance - cosineDistance(c, goal)
		if imp > 0 && imp > best {
			best = imp
			name, candidate, improvement, found = a.Name, c, imp, true
		}
	}
	return
}

// plateau applies the configured plateau strategy, reporting ok=false when
// the strategy is to stop (best_effort).
func (p *Planner) plateau(state vecspace.Vector) (vecspace.Vector, bool) {
	switch p.cfg.PlateauStrategy {
	case config.PlateauRestart:
		return randomUnitVector(p.rng, state.Dim()), true
	case config.PlateauPerturb:
		return state.Add(smallRandomVector(p.rng, state.Dim())), true
	default: // config.PlateauBestEffort, and procedural_fallback's opaque external solver is out of scope
		return state, false
	}
}

func randomUnitVector(rng *rand.Rand, dim int) vecspace.Vector {
	data := make([]float64, dim)
	for i := range data {
		data[i] = rng.NormFloat64()
	}
	return vecspace.New(data).Normalise()
}

func smallRandomVector(rng *rand.Rand, dim int) vecspace.Vector {
	const perturbScale = 0.05
	data := make([]float64, dim)
	for i := range data {
		data[i] = rng.NormFloat64() * perturbScale
	}
	return vecspace.New(data)
}

func capActions(actions []Action, limit int) []Action {
	if limit <= 0 || len(actions) <= limit {
		return actions
	}
	return actions[:limit]
}

// Solve generalises Plan to a set of constraints: the score is the worst
// (smallest) similarity minus its minimum, and the loop seeks to drive the
// score above zero (spec.md §4.8).
func (p *Planner) Solve(current vecspace.Vector, constraints []Constraint, actions []Action) SolveResult {
	actions = capActions(actions, p.cfg.CandidateLimit)

	score, _ := worstConstraint(current, constraints)
	steps := []Step{{Kind: StepInitial, Vector: current, Distance: -score}}

	state := current
	for i := 0; i < p.cfg.MaxPlanningSteps; i++ {
		currentScore, _ := worstConstraint(state, constraints)
		if currentScore > 0 {
			return SolveResult{Success: true, Steps: steps, FinalVector: state, Score: currentScore, Violated: violations(state, constraints)}
		}

		best, bestCandidate, bestImprovement, found := bestSolveAction(state, constraints, actions, currentScore)
		if !found {
			next, ok := p.plateau(state)
			if !ok {
				return SolveResult{Success: false, Steps: steps, FinalVector: state, Score: currentScore, Violated: violations(state, constraints)}
			}
			state = next
			s, _ := worstConstraint(state, constraints)
			steps = append(steps, Step{Kind: StepAction, Action: "plateau", Vector: state, Distance: -s})
			continue
		}

		state = bestCandidate
		s, _ := worstConstraint(state, constraints)
		steps = append(steps, Step{Kind: StepAction, Action: best, Vector: state, Distance: -s, Improvement: bestImprovement})
	}

	finalScore, _ := worstConstraint(state, constraints)
	return SolveResult{Success: false, Steps: steps, FinalVector: state, Score: finalScore, Violated: violations(state, constraints)}
}

// worstConstraint returns the smallest (similarity - minSimilarity) across
// constraints and the name of the constraint that attains it. Returns
// (1, "") for an empty constraint set so an empty Solve call trivially
// succeeds on its first iteration.
func worstConstraint(state vecspace.Vector, constraints []Constraint) (float64, string) {
	if len(constraints) == 0 {
		return 1, ""
	}
	worst := 0.0
	worstName := ""
	for i, c := range constraints {
		margin := state.CosineSimilarity(c.Target) - c.MinSimilarity
		if i == 0 || margin < worst {
			worst = margin
			worstName = c.Name
		}
	}
	return worst, worstName
}

func violations(state vecspace.Vector, constraints []Constraint) []ConstraintStatus {
	statuses := make([]ConstraintStatus, 0, len(constraints))
	for _, c := range constraints {
		sim := state.CosineSimilarity(c.Target)
		statuses = append(statuses, ConstraintStatus{Name: c.Name, Similarity: sim, Satisfied: sim >= c.MinSimilarity})
	}
	return statuses
}

func bestSolveAction(state vecspace.Vector, constraints []Constraint, actions []Action, currentScore float64) (name string, candidate vecspace.Vector, improvement float64, found bool) {
	ordered := append([]Action(nil), actions...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Name < ordered[j].Name })

	best := -1.0
	hasBest := false
	for _, a := range ordered {
		c := state.Add(a.Delta)
		s, _ := worstConstraint(c, constraints)
		imp := s - currentScore
		if imp > 0 && (!hasBest || imp > best) {
			best, hasBest = imp, true
			name, candidate, improvement, found = a.Name, c, imp, true
		}
	}
	return
}
