// internal/chaos/experiments.go
package chaos

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"ledgerlib/internal/catalog"
)

// Faults describes what a FaultyPort injects during an experiment.
type Faults struct {
	FailRate float64
	Latency  time.Duration
	// CallTimeout bounds each catalog call made by the load; zero means none.
	CallTimeout time.Duration
}

// CatalogExperiments returns the standard experiment set for a catalog whose
// storage is wrapped by port.
func CatalogExperiments(svc catalog.Service, port *FaultyPort) []ChaosExperiment {
	return []ChaosExperiment{
		ConcurrentLoanExperiment(svc, 100),
		StorageFaultExperiment("storage-failure", svc, port, Faults{FailRate: 0.3}, 50),
		StorageFaultExperiment("storage-latency", svc, port, Faults{
			Latency:     20 * time.Millisecond,
			CallTimeout: 30 * time.Millisecond,
		}, 20),
	}
}

// idGapsMetric counts IDs missing from the listed range. The catalog keeps
// IDs dense, so anything but zero means a half-applied creation.
func idGapsMetric(svc catalog.Service) Metric {
	return Metric{
		Name: "id_gaps",
		Query: func(ctx context.Context) (float64, error) {
			items, err := svc.ListAll(ctx)
			if err != nil {
				return 0, err
			}
			if len(items) == 0 {
				return 0, nil
			}
			return float64(int(items[len(items)-1].ID) - len(items)), nil
		},
		Threshold: Threshold{Operator: "==", Value: 0},
	}
}

// ConcurrentLoanExperiment fires concurrency simultaneous loans at one fresh
// item.
func ConcurrentLoanExperiment(svc catalog.Service, concurrency int) ChaosExperiment {
	var granted atomic.Int64

	return ChaosExperiment{
		Name:       "concurrent-loan-race-condition",
		Hypothesis: "An item is loaned exactly once when many loans arrive together",
		SteadyState: []Metric{
			{
				Name: "loans_granted",
				Query: func(context.Context) (float64, error) {
					return float64(granted.Load()), nil
				},
				Threshold: Threshold{Operator: "<=", Value: 1},
			},
			idGapsMetric(svc),
		},
		Method: []Action{
			{
				Type:   "load",
				Target: "catalog",
				Execute: func(ctx context.Context) error {
					granted.Store(0)
					id, err := svc.CreateItem(ctx, "chaos", "chaos")
					if err != nil {
						return err
					}

					var wg sync.WaitGroup
					for i := 0; i < concurrency; i++ {
						wg.Add(1)
						go func() {
							defer wg.Done()
							if svc.Loan(ctx, id) == nil {
								granted.Add(1)
							}
						}()
					}
					wg.Wait()
					return nil
				},
			},
		},
		Validation: []Assertion{
			{
				Metric:    "loans_granted",
				Condition: func(v float64) bool { return v == 1 },
				Message:   "exactly one loan is granted",
			},
			{
				Metric:    "id_gaps",
				Condition: func(v float64) bool { return v == 0 },
				Message:   "item IDs stay dense",
			},
		},
	}
}

// StorageFaultExperiment creates attempts items while the storage port
// misbehaves. Every creation either lands completely or not at all.
func StorageFaultExperiment(name string, svc catalog.Service, port *FaultyPort, faults Faults, attempts int) ChaosExperiment {
	var baseline, created atomic.Int64

	return ChaosExperiment{
		Name:        name,
		Hypothesis:  "Failed or timed out calls leave no partial records behind",
		SteadyState: []Metric{idGapsMetric(svc)},
		// lost_writes compares against the baseline taken by the first
		// action, so it is only meaningful once the method has started.
		Observe: []Metric{
			{
				Name: "lost_writes",
				Query: func(ctx context.Context) (float64, error) {
					items, err := svc.ListAll(ctx)
					if err != nil {
						return 0, err
					}
					diff := int64(len(items)) - baseline.Load() - created.Load()
					if diff < 0 {
						diff = -diff
					}
					return float64(diff), nil
				},
				Threshold: Threshold{Operator: "==", Value: 0},
			},
		},
		Method: []Action{
			{
				Type:   "baseline",
				Target: "catalog",
				Execute: func(ctx context.Context) error {
					items, err := svc.ListAll(ctx)
					if err != nil {
						return err
					}
					baseline.Store(int64(len(items)))
					created.Store(0)
					return nil
				},
			},
			{
				Type:   "failure",
				Target: "storage",
				Execute: func(context.Context) error {
					port.Inject(faults.FailRate, faults.Latency)
					return nil
				},
			},
			{
				Type:   "load",
				Target: "catalog",
				Execute: func(ctx context.Context) error {
					for i := 0; i < attempts; i++ {
						err := createWithTimeout(ctx, svc, faults.CallTimeout)
						switch {
						case err == nil:
							created.Add(1)
						case errors.Is(err, ErrInjected), errors.Is(err, context.DeadlineExceeded):
						default:
							return err
						}
					}
					return nil
				},
			},
		},
		Rollback: []Action{
			{
				Type:   "recovery",
				Target: "storage",
				Execute: func(context.Context) error {
					port.Heal()
					return nil
				},
			},
		},
		Validation: []Assertion{
			{
				Metric:    "id_gaps",
				Condition: func(v float64) bool { return v == 0 },
				Message:   "item IDs stay dense",
			},
			{
				Metric:    "lost_writes",
				Condition: func(v float64) bool { return v == 0 },
				Message:   "every acknowledged creation is listed and nothing else",
			},
		},
	}
}

func createWithTimeout(ctx context.Context, svc catalog.Service, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	_, err := svc.CreateItem(ctx, "chaos", "chaos")
	return err
}
