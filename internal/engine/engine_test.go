package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"spock/internal/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.WorkingFolder = t.TempDir()
	cfg.Dimensions = 64
	cfg.RandomSeed = 42
	cfg.MaxPlanningSteps = 50
	cfg.PlanningEpsilon = 0.05
	return cfg
}

func TestNewSeedsBundledCoreTheoryOnFreshFolder(t *testing.T) {
	cfg := testConfig(t)
	e, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Shutdown() })

	names, err := e.ListTheories()
	require.NoError(t, err)
	require.Contains(t, names, "Core")
}

func TestNewRestoresSameTruthAcrossReopen(t *testing.T) {
	cfg := testConfig(t)

	e1, err := New(cfg)
	require.NoError(t, err)
	truth1 := e1.truth
	require.NoError(t, e1.Shutdown())

	e2, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e2.Shutdown() })

	require.InDelta(t, 1.0, truth1.CosineSimilarity(e2.truth), 1e-9)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Dimensions = 3 // not a power of two >= 64... well >=64 check, 3 fails both
	_, err := New(cfg)
	require.Error(t, err)
}

func TestCreateSessionIncrementsStats(t *testing.T) {
	cfg := testConfig(t)
	e, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Shutdown() })

	before := e.Stats().SessionsCreated
	e.CreateSession()
	e.CreateSession()
	require.Equal(t, before+2, e.Stats().SessionsCreated)
}

func TestListTheoriesReturnsSeededAndRememberedNames(t *testing.T) {
	cfg := testConfig(t)
	e, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Shutdown() })

	sess := e.CreateSession()
	res := sess.Learn("@a dog Bind cat\n@b _ Remember geometry\n")
	require.True(t, res.Success, "Learn() failed: %s", res.Error)

	names, err := e.ListTheories()
	require.NoError(t, err)
	require.Contains(t, names, "Core")
	require.Contains(t, names, "geometry")
}
