package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/querylift/internal/engine"
	"github.com/roach88/querylift/internal/modelspec"
)

// Result is the outcome of running a scenario.
type Result struct {
	// Pass is true when every assertion holds.
	Pass bool `json:"pass"`

	// Translation is the translated query, nil when translation failed.
	Translation *engine.Translation `json:"-"`

	// Err is the translation error, nil on success.
	Err error `json:"-"`

	// Errors contains assertion failure messages.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{Pass: true, Errors: []string{}}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Run translates the scenario's query and evaluates its assertions.
//
// A failing translation is not an error of Run: it is recorded on the
// result, where error_code assertions can check it. Run fails only when the
// scenario itself cannot be set up (model, dialect or query document).
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	m, err := modelspec.Load(scenario.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to load model: %w", err)
	}
	d, err := scenario.buildDialect()
	if err != nil {
		return nil, fmt.Errorf("failed to configure dialect: %w", err)
	}
	q, err := DecodeQuery(&scenario.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to decode query: %w", err)
	}

	eng, err := engine.New(m, d,
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))), // Suppress logs in tests
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	result := NewResult()
	result.Translation, result.Err = eng.Translate(ctx, q)

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	if result.Err != nil && !expectsError(scenario.Assertions) {
		result.AddError(fmt.Sprintf("translation failed: %v", result.Err))
	}
	return result, nil
}

func expectsError(assertions []Assertion) bool {
	for _, a := range assertions {
		if a.Type == AssertErrorCode {
			return true
		}
	}
	return false
}
