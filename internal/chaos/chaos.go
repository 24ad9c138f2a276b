// internal/chaos/chaos.go
package chaos

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ChaosExperiment defines a chaos engineering test
type ChaosExperiment struct {
	Name        string
	Hypothesis  string
	SteadyState []Metric
	// Observe metrics are sampled with SteadyState once the method has
	// started, but are not required to hold beforehand.
	Observe    []Metric
	Method     []Action
	Rollback   []Action
	Validation []Assertion
	// Duration is how long the system is observed after the method runs.
	// Zero takes a single sample.
	Duration time.Duration
}

// Metric defines a measurable system property
type Metric struct {
	Name      string
	Query     func(context.Context) (float64, error)
	Threshold Threshold
}

type Threshold struct {
	Operator string // >, <, >=, <=, ==
	Value    float64
}

// Action represents a fault injection or recovery action
type Action struct {
	Type    string // latency, failure, load
	Target  string
	Execute func(context.Context) error
}

// Assertion validates experiment outcome against the final observation of
// Metric.
type Assertion struct {
	Metric    string
	Condition func(float64) bool
	Message   string
}

type ExperimentResult struct {
	ExperimentName   string                 `json:"experiment_name"`
	StartTime        time.Time              `json:"start_time"`
	EndTime          time.Time              `json:"end_time"`
	Duration         time.Duration          `json:"duration"`
	HypothesisHeld   bool                   `json:"hypothesis_held"`
	SteadyStateValid bool                   `json:"steady_state_valid"`
	Violations       []MetricViolation      `json:"violations"`
	Observations     map[string][]DataPoint `json:"observations"`
	ErrorEvents      []ErrorEvent           `json:"error_events"`
	FailedAssertions []string               `json:"failed_assertions,omitempty"`
}

type MetricViolation struct {
	MetricName string    `json:"metric_name"`
	Expected   float64   `json:"expected"`
	Actual     float64   `json:"actual"`
	Timestamp  time.Time `json:"timestamp"`
}

type DataPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

type ErrorEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error"`
	Component string    `json:"component"`
}

// ErrSteadyStateInvalid aborts an experiment whose system was unhealthy before
// any fault was injected.
var ErrSteadyStateInvalid = errors.New("steady state invalid - aborting experiment")

// ChaosEngine orchestrates chaos experiments
type ChaosEngine struct {
	tracer   trace.Tracer
	logger   *log.Logger
	interval time.Duration

	mu      sync.Mutex
	results []ExperimentResult
}

type EngineOption func(*ChaosEngine)

// WithSampleInterval sets how often metrics are sampled while observing.
func WithSampleInterval(d time.Duration) EngineOption {
	return func(ce *ChaosEngine) { ce.interval = d }
}

func WithLogger(l *log.Logger) EngineOption {
	return func(ce *ChaosEngine) { ce.logger = l }
}

func NewChaosEngine(opts ...EngineOption) *ChaosEngine {
	ce := &ChaosEngine{
		tracer:   otel.Tracer("ledgerlib/internal/chaos"),
		logger:   log.Default(),
		interval: time.Second,
	}
	for _, opt := range opts {
		opt(ce)
	}
	return ce
}

// Results returns every experiment result recorded so far.
func (ce *ChaosEngine) Results() []ExperimentResult {
	ce.mu.Lock()
	defer ce.mu.Unlock()
	return append([]ExperimentResult(nil), ce.results...)
}

// RunExperiment executes a single chaos experiment
func (ce *ChaosEngine) RunExperiment(ctx context.Context, exp ChaosExperiment) (*ExperimentResult, error) {
	ctx, span := ce.tracer.Start(ctx, "chaos.run_experiment",
		trace.WithAttributes(
			attribute.String("experiment.name", exp.Name),
		),
	)
	defer span.End()

	result := &ExperimentResult{
		ExperimentName: exp.Name,
		StartTime:      time.Now(),
		Observations:   make(map[string][]DataPoint),
		ErrorEvents:    make([]ErrorEvent, 0),
	}

	span.AddEvent("validating_steady_state")
	if valid, violations := ce.validateSteadyState(ctx, exp.SteadyState); !valid {
		result.Violations = violations
		return result, ErrSteadyStateInvalid
	}
	result.SteadyStateValid = true

	span.AddEvent("injecting_chaos")
	ce.execute(ctx, exp.Method, result, span)

	observed := append(append([]Metric(nil), exp.SteadyState...), exp.Observe...)

	span.AddEvent("observing_system")
	ce.sample(ctx, observed, result)
	if exp.Duration > 0 {
		observationCtx, cancel := context.WithTimeout(ctx, exp.Duration)
		ticker := time.NewTicker(ce.interval)
	observe:
		for {
			select {
			case <-observationCtx.Done():
				break observe
			case <-ticker.C:
				ce.sample(ctx, observed, result)
			}
		}
		ticker.Stop()
		cancel()
	}

	span.AddEvent("rolling_back")
	ce.execute(ctx, exp.Rollback, result, span)
	ce.sample(ctx, observed, result)

	span.AddEvent("validating_assertions")
	result.HypothesisHeld = ce.validateAssertions(exp.Validation, result)
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	ce.mu.Lock()
	ce.results = append(ce.results, *result)
	ce.mu.Unlock()

	span.SetAttributes(
		attribute.Bool("hypothesis_held", result.HypothesisHeld),
		attribute.Int("violations", len(result.Violations)),
	)
	return result, nil
}

func (ce *ChaosEngine) execute(ctx context.Context, actions []Action, result *ExperimentResult, span trace.Span) {
	for _, action := range actions {
		if err := action.Execute(ctx); err != nil {
			result.ErrorEvents = append(result.ErrorEvents, ErrorEvent{
				Timestamp: time.Now(),
				Error:     err.Error(),
				Component: action.Target,
			})
			span.RecordError(err)
		}
	}
}

// sample records one observation per metric. Query errors while faults are
// active are expected and kept as error events.
func (ce *ChaosEngine) sample(ctx context.Context, metrics []Metric, result *ExperimentResult) {
	for _, metric := range metrics {
		value, err := metric.Query(ctx)
		if err != nil {
			result.ErrorEvents = append(result.ErrorEvents, ErrorEvent{
				Timestamp: time.Now(),
				Error:     err.Error(),
				Component: metric.Name,
			})
			continue
		}

		result.Observations[metric.Name] = append(
			result.Observations[metric.Name],
			DataPoint{Timestamp: time.Now(), Value: value},
		)
		if !evaluateThreshold(value, metric.Threshold) {
			result.Violations = append(result.Violations, MetricViolation{
				MetricName: metric.Name,
				Expected:   metric.Threshold.Value,
				Actual:     value,
				Timestamp:  time.Now(),
			})
		}
	}
}

func (ce *ChaosEngine) validateSteadyState(ctx context.Context, metrics []Metric) (bool, []MetricViolation) {
	violations := make([]MetricViolation, 0)

	for _, metric := range metrics {
		value, err := metric.Query(ctx)
		if err != nil {
			violations = append(violations, MetricViolation{
				MetricName: metric.Name,
				Expected:   metric.Threshold.Value,
				Actual:     -1,
				Timestamp:  time.Now(),
			})
			continue
		}

		if !evaluateThreshold(value, metric.Threshold) {
			violations = append(violations, MetricViolation{
				MetricName: metric.Name,
				Expected:   metric.Threshold.Value,
				Actual:     value,
				Timestamp:  time.Now(),
			})
		}
	}

	return len(violations) == 0, violations
}

func evaluateThreshold(value float64, threshold Threshold) bool {
	switch threshold.Operator {
	case ">":
		return value > threshold.Value
	case "<":
		return value < threshold.Value
	case ">=":
		return value >= threshold.Value
	case "<=":
		return value <= threshold.Value
	case "==":
		return value == threshold.Value
	default:
		return false
	}
}

func (ce *ChaosEngine) validateAssertions(assertions []Assertion, result *ExperimentResult) bool {
	held := true
	for _, assertion := range assertions {
		observations := result.Observations[assertion.Metric]
		if len(observations) == 0 || !assertion.Condition(observations[len(observations)-1].Value) {
			result.FailedAssertions = append(result.FailedAssertions, assertion.Message)
			held = false
		}
	}
	return held
}

// GameDay orchestrates a series of chaos experiments.
type GameDay struct {
	Name      string
	Date      time.Time
	Scenarios []ChaosExperiment
	// Pause is waited between experiments.
	Pause time.Duration
}

// ExecuteGameDay runs every scenario in order and reports whether all
// hypotheses held. Experiments that abort are logged and counted as failures.
func (ce *ChaosEngine) ExecuteGameDay(ctx context.Context, gameDay GameDay) (bool, error) {
	ctx, span := ce.tracer.Start(ctx, "chaos.game_day",
		trace.WithAttributes(
			attribute.String("gameday.name", gameDay.Name),
		),
	)
	defer span.End()

	ce.logger.Printf("Starting game day %q (%s)", gameDay.Name, gameDay.Date.Format(time.RFC3339))

	allHeld := true
	for i, scenario := range gameDay.Scenarios {
		ce.logger.Printf("Experiment %d/%d: %s", i+1, len(gameDay.Scenarios), scenario.Name)
		ce.logger.Printf("Hypothesis: %s", scenario.Hypothesis)

		result, err := ce.RunExperiment(ctx, scenario)
		if err != nil {
			ce.logger.Printf("Experiment %s failed: %v", scenario.Name, err)
			allHeld = false
			continue
		}
		ce.logResult(result)
		allHeld = allHeld && result.HypothesisHeld

		if gameDay.Pause > 0 && i < len(gameDay.Scenarios)-1 {
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(gameDay.Pause):
			}
		}
	}
	return allHeld, nil
}

func (ce *ChaosEngine) logResult(result *ExperimentResult) {
	if result.HypothesisHeld {
		ce.logger.Printf("Hypothesis held for %s", result.ExperimentName)
	} else {
		ce.logger.Printf("Hypothesis violated for %s: %v", result.ExperimentName, result.FailedAssertions)
	}
	for _, v := range result.Violations {
		ce.logger.Printf("  violation %s: expected %.2f, got %.2f", v.MetricName, v.Expected, v.Actual)
	}
	ce.logger.Printf("  errors=%d duration=%s", len(result.ErrorEvents), result.Duration)
}
