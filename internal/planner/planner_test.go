package planner

import (
	"math"
	"testing"

	"spock/internal/config"
	"spock/internal/vecspace"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Dimensions = 4
	cfg.RandomSeed = 42
	cfg.PlanningEpsilon = 1e-3
	cfg.MaxPlanningSteps = 200
	cfg.CandidateLimit = 32
	return cfg
}

func TestPlanSucceedsWhenAlreadyAtGoal(t *testing.T) {
	cfg := testConfig()
	p := New(cfg, cfg.NewRand())
	goal := vecspace.New([]float64{1, 0, 0, 0})

	result := p.Plan(goal, goal, nil)
	if !result.Success {
		t.Fatalf("expected immediate success, got %+v", result)
	}
	if len(result.Steps) != 1 || result.Steps[0].Kind != StepInitial {
		t.Fatalf("expected only the initial step, got %+v", result.Steps)
	}
}

func TestPlanConvergesWithDefaultGradientAction(t *testing.T) {
	cfg := testConfig()
	cfg.PlanningEpsilon = 0.05
	p := New(cfg, cfg.NewRand())

	current := vecspace.New([]float64{0, 1, 0, 0})
	goal := vecspace.New([]float64{1, 0, 0, 0})

	result := p.Plan(current, goal, nil)
	if !result.Success {
		t.Fatalf("expected convergence, got %+v", result)
	}
	if result.FinalDistance > cfg.PlanningEpsilon {
		t.Fatalf("final distance %v exceeds epsilon %v", result.FinalDistance, cfg.PlanningEpsilon)
	}
}

func TestPlanChoosesLargestImprovementAction(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPlanningSteps = 1
	p := New(cfg, cfg.NewRand())

	current := vecspace.New([]float64{0, 0, 1, 0})
	goal := vecspace.New([]float64{1, 0, 0, 0})

	actions := []Action{
		{Name: "small", Delta: vecspace.New([]float64{0.01, 0, -0.01, 0})},
		{Name: "big", Delta: vecspace.New([]float64{1, 0, -1, 0})},
	}

	result := p.Plan(current, goal, actions)
	if len(result.Steps) != 2 {
		t.Fatalf("expected exactly 1 action step, got %+v", result.Steps)
	}
	if result.Steps[1].Action != "big" {
		t.Fatalf("expected 'big' to be chosen, got %s", result.Steps[1].Action)
	}
}

func TestPlanBreaksTiesByActionName(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPlanningSteps = 1
	p := New(cfg, cfg.NewRand())

	current := vecspace.New([]float64{0, 0, 1, 0})
	goal := vecspace.New([]float64{1, 0, 0, 0})

	delta := vecspace.New([]float64{1, 0, -1, 0})
	actions := []Action{
		{Name: "zeta", Delta: delta},
		{Name: "alpha", Delta: delta},
	}

	result := p.Plan(current, goal, actions)
	if result.Steps[1].Action != "alpha" {
		t.Fatalf("expected lexicographically-first action 'alpha' to win the tie, got %s", result.Steps[1].Action)
	}
}

func TestPlanBestEffortStopsImmediatelyOnPlateau(t *testing.T) {
	cfg := testConfig()
	cfg.PlateauStrategy = config.PlateauBestEffort
	cfg.MaxPlanningSteps = 100
	p := New(cfg, cfg.NewRand())

	current := vecspace.New([]float64{1, 0, 0, 0})
	goal := vecspace.New([]float64{0, 1, 0, 0})
	// A zero-delta action never improves distance, forcing an immediate plateau.
	actions := []Action{{Name: "noop", Delta: vecspace.New([]float64{0, 0, 0, 0})}}

	result := p.Plan(current, goal, actions)
	if result.Success {
		t.Fatalf("expected failure, current never reaches goal with a zero-delta action")
	}
	if len(result.Steps) != 1 {
		t.Fatalf("expected best_effort to stop after only the initial step, got %d steps", len(result.Steps))
	}
}

func TestPlanPerturbStrategyContinuesPastPlateau(t *testing.T) {
	cfg := testConfig()
	cfg.PlateauStrategy = config.PlateauPerturb
	cfg.MaxPlanningSteps = 5
	p := New(cfg, cfg.NewRand())

	current := vecspace.New([]float64{1, 0, 0, 0})
	goal := vecspace.New([]float64{0, 1, 0, 0})
	// A zero-delta action never improves distance, forcing a plateau on every iteration.
	actions := []Action{{Name: "noop", Delta: vecspace.New([]float64{0, 0, 0, 0})}}

	result := p.Plan(current, goal, actions)
	if len(result.Steps) != cfg.MaxPlanningSteps+1 {
		t.Fatalf("expected perturb to keep the loop running to the step cap (%d steps), got %d", cfg.MaxPlanningSteps+1, len(result.Steps))
	}
}

func TestSolveSucceedsWhenAllConstraintsAlreadySatisfied(t *testing.T) {
	cfg := testConfig()
	p := New(cfg, cfg.NewRand())

	current := vecspace.New([]float64{1, 0, 0, 0})
	constraints := []Constraint{{Name: "near-x", Target: vecspace.New([]float64{1, 0, 0, 0}), MinSimilarity: 0.5}}

	result := p.Solve(current, constraints, nil)
	if !result.Success {
		t.Fatalf("expected immediate success, got %+v", result)
	}
}

func TestSolveReportsViolatedConstraintsOnFailure(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPlanningSteps = 1
	p := New(cfg, cfg.NewRand())

	current := vecspace.New([]float64{0, 1, 0, 0})
	constraints := []Constraint{
		{Name: "near-x", Target: vecspace.New([]float64{1, 0, 0, 0}), MinSimilarity: 0.99},
	}

	result := p.Solve(current, constraints, nil)
	if result.Success {
		t.Fatalf("expected failure within a single step, got %+v", result)
	}
	if len(result.Violated) != 1 || result.Violated[0].Satisfied {
		t.Fatalf("expected the near-x constraint to be reported violated, got %+v", result.Violated)
	}
}

func TestSolveDrivesScoreTowardConstraintSatisfaction(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPlanningSteps = 50
	p := New(cfg, cfg.NewRand())

	current := vecspace.New([]float64{0, 1, 0, 0})
	target := vecspace.New([]float64{1, 0, 0, 0})
	constraints := []Constraint{{Name: "near-x", MinSimilarity: 0.9, Target: target}}
	actions := []Action{
		{Name: "toward-x", Delta: vecspace.New([]float64{0.2, -0.1, 0, 0})},
	}

	result := p.Solve(current, constraints, actions)
	if !result.Success {
		t.Fatalf("expected the solver to reach the constraint, got %+v", result)
	}
}

func TestCosineDistanceIdenticalIsZero(t *testing.T) {
	v := vecspace.New([]float64{1, 0, 0, 0})
	if d := cosineDistance(v, v); math.Abs(d) > 1e-9 {
		t.Fatalf("expected distance 0 for identical vectors, got %v", d)
	}
}

func TestCosineDistanceAntipodalIsTwo(t *testing.T) {
	a := vecspace.New([]float64{1, 0, 0, 0})
	b := vecspace.New([]float64{-1, 0, 0, 0})
	if d := cosineDistance(a, b); math.Abs(d-2) > 1e-9 {
		t.Fatalf("expected distance 2 for antipodal vectors, got %v", d)
	}
}
