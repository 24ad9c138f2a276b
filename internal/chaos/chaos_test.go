package chaos

import (
	"bytes"
	"context"
	"errors"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerlib/internal/catalog"
	"ledgerlib/internal/host"
	"ledgerlib/internal/journal"
	"ledgerlib/internal/storage"
	"ledgerlib/internal/storage/memory"
)

func quietLogger() *log.Logger { return log.New(&bytes.Buffer{}, "", 0) }

func newFaultyCatalog(t *testing.T) (catalog.Service, *FaultyPort, *memory.Store) {
	t.Helper()
	backing := memory.NewStore()
	port := NewFaultyPort(backing, 1)
	env := host.New(port, host.WithJournal(journal.NewMemoryJournal()), host.WithLogger(quietLogger()))
	return catalog.NewService(env), port, backing
}

func TestFaultyPortPassesThroughWhenHealthy(t *testing.T) {
	ctx := context.Background()
	port := NewFaultyPort(memory.NewStore(), 1)

	require.NoError(t, port.Set(ctx, "a", []byte("1")))
	v, ok, err := port.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("1"), v)
	assert.Equal(t, 0, port.Injected())
}

func TestFaultyPortFailsWholeBatch(t *testing.T) {
	ctx := context.Background()
	backing := memory.NewStore()
	port := NewFaultyPort(backing, 1)

	port.Inject(1, 0)
	err := storage.Apply(ctx, port, []storage.Write{{Key: "a", Value: []byte("1")}, {Key: "b", Value: []byte("2")}})
	assert.True(t, errors.Is(err, ErrInjected))
	assert.Equal(t, 0, backing.Len())
	assert.Equal(t, 1, port.Injected())

	port.Heal()
	require.NoError(t, storage.Apply(ctx, port, []storage.Write{{Key: "a", Value: []byte("1")}}))
	assert.Equal(t, 1, backing.Len())
}

func TestFaultyPortLatencyHonorsContext(t *testing.T) {
	port := NewFaultyPort(memory.NewStore(), 1)
	port.Inject(0, time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, _, err := port.Get(ctx, "a")
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestFaultyPortIsReproducible(t *testing.T) {
	run := func() []bool {
		port := NewFaultyPort(memory.NewStore(), 42)
		port.Inject(0.5, 0)
		var out []bool
		for i := 0; i < 32; i++ {
			out = append(out, port.Set(context.Background(), "k", nil) != nil)
		}
		return out
	}
	assert.Equal(t, run(), run())
}

func TestEvaluateThreshold(t *testing.T) {
	tests := []struct {
		op    string
		value float64
		want  bool
	}{
		{">", 2, true},
		{">", 1, false},
		{"<", 0, true},
		{">=", 1, true},
		{"<=", 1, true},
		{"<=", 2, false},
		{"==", 1, true},
		{"!=", 1, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, evaluateThreshold(tt.value, Threshold{Operator: tt.op, Value: 1}), "%v %s 1", tt.value, tt.op)
	}
}

func TestRunExperimentAbortsOnBadSteadyState(t *testing.T) {
	engine := NewChaosEngine(WithLogger(quietLogger()))
	executed := false
	result, err := engine.RunExperiment(context.Background(), ChaosExperiment{
		Name: "unhealthy",
		SteadyState: []Metric{{
			Name:      "errors",
			Query:     func(context.Context) (float64, error) { return 5, nil },
			Threshold: Threshold{Operator: "==", Value: 0},
		}},
		Method: []Action{{Execute: func(context.Context) error { executed = true; return nil }}},
	})
	assert.ErrorIs(t, err, ErrSteadyStateInvalid)
	assert.False(t, result.SteadyStateValid)
	assert.Len(t, result.Violations, 1)
	assert.False(t, executed)
}

func TestConcurrentLoanExperimentHolds(t *testing.T) {
	svc, _, _ := newFaultyCatalog(t)
	engine := NewChaosEngine(WithLogger(quietLogger()))

	result, err := engine.RunExperiment(context.Background(), ConcurrentLoanExperiment(svc, 50))
	require.NoError(t, err)
	assert.True(t, result.HypothesisHeld, result.FailedAssertions)
	assert.Empty(t, result.Violations)
}

func TestStorageFailureExperimentHolds(t *testing.T) {
	svc, port, _ := newFaultyCatalog(t)
	engine := NewChaosEngine(WithLogger(quietLogger()))

	exp := StorageFaultExperiment("storage-failure", svc, port, Faults{FailRate: 0.5}, 40)
	result, err := engine.RunExperiment(context.Background(), exp)
	require.NoError(t, err)
	assert.True(t, result.HypothesisHeld, result.FailedAssertions)
	assert.Greater(t, port.Injected(), 0)

	// After healing, the catalog keeps allocating dense IDs.
	items, err := svc.ListAll(context.Background())
	require.NoError(t, err)
	id, err := svc.CreateItem(context.Background(), "after", "chaos")
	require.NoError(t, err)
	assert.Equal(t, uint32(len(items)+1), id)
}

func TestStorageLatencyExperimentHolds(t *testing.T) {
	svc, port, _ := newFaultyCatalog(t)
	engine := NewChaosEngine(WithLogger(quietLogger()))

	exp := StorageFaultExperiment("storage-latency", svc, port, Faults{
		Latency:     5 * time.Millisecond,
		CallTimeout: 8 * time.Millisecond,
	}, 5)
	result, err := engine.RunExperiment(context.Background(), exp)
	require.NoError(t, err)
	assert.True(t, result.HypothesisHeld, result.FailedAssertions)
}

func TestExecuteGameDay(t *testing.T) {
	svc, port, _ := newFaultyCatalog(t)
	var logs bytes.Buffer
	engine := NewChaosEngine(WithLogger(log.New(&logs, "", 0)))

	held, err := engine.ExecuteGameDay(context.Background(), GameDay{
		Name:      "test",
		Date:      time.Now(),
		Scenarios: CatalogExperiments(svc, port),
	})
	require.NoError(t, err)
	assert.True(t, held, logs.String())
	assert.Len(t, engine.Results(), 3)
	assert.Contains(t, logs.String(), "concurrent-loan-race-condition")
}

func TestStorageFailureExperimentOnPopulatedCatalog(t *testing.T) {
	ctx := context.Background()
	svc, port, _ := newFaultyCatalog(t)
	for i := 0; i < 3; i++ {
		_, err := svc.CreateItem(ctx, "existing", "owner")
		require.NoError(t, err)
	}
	engine := NewChaosEngine(WithLogger(quietLogger()))

	result, err := engine.RunExperiment(ctx, StorageFaultExperiment("storage-failure", svc, port, Faults{FailRate: 0.5}, 20))
	require.NoError(t, err)
	assert.True(t, result.SteadyStateValid)
	assert.True(t, result.HypothesisHeld, result.FailedAssertions)
	require.NotEmpty(t, result.Observations["lost_writes"])
	assert.Zero(t, result.Observations["lost_writes"][len(result.Observations["lost_writes"])-1].Value)
}

func TestObserveMetricsSkipSteadyState(t *testing.T) {
	engine := NewChaosEngine(WithLogger(quietLogger()))
	var started bool

	result, err := engine.RunExperiment(context.Background(), ChaosExperiment{
		Name: "observe-only",
		Observe: []Metric{{
			Name: "started",
			Query: func(context.Context) (float64, error) {
				if started {
					return 1, nil
				}
				return 0, nil
			},
			Threshold: Threshold{Operator: "==", Value: 1},
		}},
		Method: []Action{{Execute: func(context.Context) error { started = true; return nil }}},
		Validation: []Assertion{{
			Metric:    "started",
			Condition: func(v float64) bool { return v == 1 },
			Message:   "method ran",
		}},
	})
	require.NoError(t, err)
	assert.True(t, result.HypothesisHeld)
	assert.Empty(t, result.Violations)
}
