package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/querylift/internal/dialect"
)

// DefaultDialect is used when a scenario names none.
const DefaultDialect = "mysql-8.0.35"

// Scenario is one translation case: a model, a dialect, a query and the
// assertions the translation must satisfy.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Model is the directory of the CUE model package.
	// Relative paths are resolved against the scenario file.
	Model string `yaml:"model"`

	// Dialect describes the target server. Version defaults to
	// DefaultDialect.
	Dialect dialect.File `yaml:"dialect,omitempty"`

	// Query is the query tree in the YAML query syntax.
	Query yaml.Node `yaml:"query"`

	// Assertions validate the translation.
	Assertions []Assertion `yaml:"assertions"`
}

// Assertion checks one property of a translation.
type Assertion struct {
	// Type specifies the assertion type:
	// - "sql_equals": the SQL text equals SQL
	// - "sql_contains": the SQL text contains SQL
	// - "sql_not_contains": the SQL text does not contain SQL
	// - "args_equal": the driver values of the args, printed, equal Args
	// - "columns_equal": the output columns equal Columns
	// - "strategies": the collection strategies equal Strategies
	// - "error_code": translation fails with Code
	Type string `yaml:"type"`

	SQL        string   `yaml:"sql,omitempty"`
	Args       []any    `yaml:"args,omitempty"`
	Columns    []string `yaml:"columns,omitempty"`
	Strategies []string `yaml:"strategies,omitempty"`
	Code       string   `yaml:"code,omitempty"`
}

// Assertion type constants.
const (
	AssertSQLEquals      = "sql_equals"
	AssertSQLContains    = "sql_contains"
	AssertSQLNotContains = "sql_not_contains"
	AssertArgsEqual      = "args_equal"
	AssertColumnsEqual   = "columns_equal"
	AssertStrategies     = "strategies"
	AssertErrorCode      = "error_code"
)

// LoadScenario reads and parses a scenario YAML file. A relative model
// path is resolved against the file's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Reject unknown fields (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Model != "" && !filepath.IsAbs(scenario.Model) {
		scenario.Model = filepath.Join(filepath.Dir(path), scenario.Model)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every .yaml file in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	out := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		out = append(out, s)
	}
	return out, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Model == "" {
		return fmt.Errorf("model is required")
	}
	if _, err := os.Stat(s.Model); os.IsNotExist(err) {
		return fmt.Errorf("model directory not found: %s", s.Model)
	}
	if s.Query.Kind == 0 {
		return fmt.Errorf("query is required")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertSQLEquals, AssertSQLContains, AssertSQLNotContains:
		if a.SQL == "" {
			return fmt.Errorf("assertions[%d]: sql is required for %s", index, a.Type)
		}
	case AssertArgsEqual:
		if a.Args == nil {
			return fmt.Errorf("assertions[%d]: args is required for args_equal (use [] for none)", index)
		}
	case AssertColumnsEqual:
		if len(a.Columns) == 0 {
			return fmt.Errorf("assertions[%d]: columns is required for columns_equal", index)
		}
	case AssertStrategies:
		if a.Strategies == nil {
			return fmt.Errorf("assertions[%d]: strategies is required", index)
		}
	case AssertErrorCode:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for error_code", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

// buildDialect returns the scenario's dialect.
func (s *Scenario) buildDialect() (*dialect.Dialect, error) {
	f := s.Dialect
	if f.Version == "" {
		f.Version = DefaultDialect
	}
	return f.Dialect()
}
