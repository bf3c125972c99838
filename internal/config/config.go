// Package config holds the configuration surface for the SPOCK GOS engine:
// the constructor-time settings an Engine is built from, YAML load/save, and
// environment-variable overrides.
package config

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// NumericType selects the element type used by the vector space and the
// numeric kernel.
type NumericType string

const (
	NumericFloat32 NumericType = "float32"
	NumericFloat64 NumericType = "float64"
)

// VectorGeneration selects the random distribution used to synthesise new
// prototype vectors.
type VectorGeneration string

const (
	VectorGaussian VectorGeneration = "gaussian"
	VectorBipolar  VectorGeneration = "bipolar"
)

// PlateauStrategy selects what the planner does when a gradient step
// produces no measurable improvement.
type PlateauStrategy string

const (
	PlateauRestart   PlateauStrategy = "restart"
	PlateauPerturb   PlateauStrategy = "perturb"
	PlateauBestEffort PlateauStrategy = "best_effort"
)

// Config is the complete set of engine construction parameters, matching
// spec.md §4.11/§6 exactly: {workingFolder, dimensions, numericType,
// vectorGeneration, logLevel, traceEnabled, planningEpsilon,
// maxPlanningSteps, plateauStrategy, candidateLimit, maxRecursion,
// randomSeed}.
type Config struct {
	WorkingFolder string `yaml:"working_folder"`

	Dimensions       int              `yaml:"dimensions"`
	NumericType      NumericType      `yaml:"numeric_type"`
	VectorGeneration VectorGeneration `yaml:"vector_generation"`
	RandomSeed       int64            `yaml:"random_seed"`

	LogLevel     string `yaml:"log_level"`
	TraceEnabled bool   `yaml:"trace_enabled"`

	PlanningEpsilon  float64         `yaml:"planning_epsilon"`
	MaxPlanningSteps int             `yaml:"max_planning_steps"`
	PlateauStrategy  PlateauStrategy `yaml:"plateau_strategy"`
	CandidateLimit   int             `yaml:"candidate_limit"`
	MaxRecursion     int             `yaml:"max_recursion"`
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() *Config {
	return &Config{
		WorkingFolder: ".spock",

		Dimensions:       256,
		NumericType:      NumericFloat32,
		VectorGeneration: VectorGaussian,
		RandomSeed:       time.Now().UnixNano(),

		LogLevel:     "info",
		TraceEnabled: true,

		PlanningEpsilon:  1e-4,
		MaxPlanningSteps: 500,
		PlateauStrategy:  PlateauPerturb,
		CandidateLimit:   32,
		MaxRecursion:     64,
	}
}

// Load loads configuration from a YAML file, falling back to defaults (plus
// environment overrides) if the file does not exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if eerr := cfg.applyEnvOverrides(); eerr != nil {
				return nil, eerr
			}
			if verr := cfg.Validate(); verr != nil {
				return nil, verr
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies the environment variables named in spec.md §6,
// returning an error for an unparsable SPOCK_RANDOM_SEED.
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("SPOCK_WORKING_FOLDER"); v != "" {
		c.WorkingFolder = v
	}
	if v := os.Getenv("SPOCK_DIMENSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Dimensions = n
		} else {
			c.Dimensions = -1 // force Validate() to reject the bad override
		}
	}
	if v := os.Getenv("SPOCK_NUMERIC_TYPE"); v != "" {
		c.NumericType = NumericType(v)
	}
	if v := os.Getenv("SPOCK_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("SPOCK_RANDOM_SEED"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid SPOCK_RANDOM_SEED %q: %w", v, err)
		}
		c.RandomSeed = seed
	}
	return nil
}

// isPowerOfTwo reports whether n is a positive power of two.
func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// Validate validates the configuration, matching spec.md §6's requirement
// that invalid values fail engine construction with a descriptive error.
func (c *Config) Validate() error {
	if c.WorkingFolder == "" {
		return fmt.Errorf("working folder must not be empty")
	}
	if c.Dimensions < 64 || !isPowerOfTwo(c.Dimensions) {
		return fmt.Errorf("dimensions must be a power of two >= 64, got %d", c.Dimensions)
	}
	if c.NumericType != NumericFloat32 && c.NumericType != NumericFloat64 {
		return fmt.Errorf("invalid numeric type: %q (valid: %q, %q)", c.NumericType, NumericFloat32, NumericFloat64)
	}
	if c.VectorGeneration != VectorGaussian && c.VectorGeneration != VectorBipolar {
		return fmt.Errorf("invalid vector generation: %q (valid: %q, %q)", c.VectorGeneration, VectorGaussian, VectorBipolar)
	}
	if c.PlateauStrategy != PlateauRestart && c.PlateauStrategy != PlateauPerturb && c.PlateauStrategy != PlateauBestEffort {
		return fmt.Errorf("invalid plateau strategy: %q", c.PlateauStrategy)
	}
	if c.PlanningEpsilon <= 0 {
		return fmt.Errorf("planning epsilon must be positive, got %v", c.PlanningEpsilon)
	}
	if c.MaxPlanningSteps <= 0 {
		return fmt.Errorf("max planning steps must be positive, got %d", c.MaxPlanningSteps)
	}
	if c.CandidateLimit <= 0 {
		return fmt.Errorf("candidate limit must be positive, got %d", c.CandidateLimit)
	}
	if c.MaxRecursion <= 0 {
		return fmt.Errorf("max recursion must be positive, got %d", c.MaxRecursion)
	}
	return nil
}

// NewRand returns a source seeded from the configured random seed, used by
// the vector space and planner for reproducible runs.
func (c *Config) NewRand() *rand.Rand {
	return rand.New(rand.NewSource(c.RandomSeed))
}
