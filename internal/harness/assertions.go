package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/querylift/internal/engine"
	"github.com/roach88/querylift/internal/qerr"
)

// AssertionError is returned when an assertion fails.
// It includes the translation to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	SQL      string // Translated SQL, if any
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if e.SQL != "" {
		fmt.Fprintf(&buf, "\nSQL:\n  %s\n", e.SQL)
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion against the result and returns
// the failure messages. Assertions on the translation are skipped when
// translation failed; Run reports that failure once.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for _, a := range assertions {
		var err error
		if a.Type == AssertErrorCode {
			err = assertErrorCode(result, a)
		} else if result.Translation != nil {
			err = evaluateAssertion(result.Translation, a)
		}
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func evaluateAssertion(tr *engine.Translation, a Assertion) error {
	switch a.Type {
	case AssertSQLEquals:
		return assertSQLEquals(tr, a)
	case AssertSQLContains:
		if !strings.Contains(tr.SQL, a.SQL) {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("SQL containing %q", a.SQL), Actual: "not found", SQL: tr.SQL}
		}
	case AssertSQLNotContains:
		if strings.Contains(tr.SQL, a.SQL) {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("SQL without %q", a.SQL), Actual: "found", SQL: tr.SQL}
		}
	case AssertArgsEqual:
		return assertArgsEqual(tr, a)
	case AssertColumnsEqual:
		if !slices.Equal(tr.Columns, a.Columns) {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprint(a.Columns), Actual: fmt.Sprint(tr.Columns), SQL: tr.SQL}
		}
	case AssertStrategies:
		return assertStrategies(tr, a)
	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
	return nil
}

func assertSQLEquals(tr *engine.Translation, a Assertion) error {
	want := strings.TrimSpace(a.SQL)
	if tr.SQL == want {
		return nil
	}
	return &AssertionError{
		Type:     AssertSQLEquals,
		Expected: want,
		Actual:   fmt.Sprintf("differs at byte %d", firstDifference(tr.SQL, want)),
		SQL:      tr.SQL,
	}
}

func firstDifference(a, b string) int {
	n := min(len(a), len(b))
	for i := range n {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}

// assertArgsEqual compares driver values by their printed form, so that
// YAML's int and the driver's int64 agree.
func assertArgsEqual(tr *engine.Translation, a Assertion) error {
	_, values, err := tr.ToSql()
	if err != nil {
		return &AssertionError{Type: AssertArgsEqual, Expected: fmt.Sprint(a.Args), Actual: err.Error(), SQL: tr.SQL}
	}
	actual := printed(values)
	expected := printed(a.Args)
	if !slices.Equal(actual, expected) {
		return &AssertionError{
			Type:     AssertArgsEqual,
			Expected: fmt.Sprintf("%d args %v", len(expected), expected),
			Actual:   fmt.Sprintf("%d args %v", len(actual), actual),
			SQL:      tr.SQL,
		}
	}
	return nil
}

func printed(values []any) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = fmt.Sprint(v)
	}
	return out
}

func assertStrategies(tr *engine.Translation, a Assertion) error {
	actual := make([]string, len(tr.Collections))
	for i, c := range tr.Collections {
		actual[i] = c.Strategy.String()
	}
	if !slices.Equal(actual, a.Strategies) {
		return &AssertionError{
			Type:     AssertStrategies,
			Expected: fmt.Sprint(a.Strategies),
			Actual:   fmt.Sprint(actual),
			SQL:      tr.SQL,
		}
	}
	return nil
}

func assertErrorCode(result *Result, a Assertion) error {
	if result.Err == nil {
		sql := ""
		if result.Translation != nil {
			sql = result.Translation.SQL
		}
		return &AssertionError{Type: AssertErrorCode, Expected: a.Code, Actual: "translation succeeded", SQL: sql}
	}
	if code := qerr.CodeOf(result.Err); string(code) != a.Code {
		return &AssertionError{
			Type:     AssertErrorCode,
			Expected: a.Code,
			Actual:   fmt.Sprintf("%q: %v", code, result.Err),
		}
	}
	return nil
}
