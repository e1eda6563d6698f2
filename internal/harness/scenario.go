package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/ormql/internal/dialect"
	"github.com/roach88/ormql/internal/exp"
)

// Scenario defines a dual-evaluation test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema is the path of the mapping file (YAML or CUE). Relative paths
	// are resolved against the scenario file's directory.
	Schema string `yaml:"schema"`

	// Dialect renders the queries. Scenarios run on SQLite, so only
	// dialects SQLite can execute are accepted. Defaults to sqlite.
	Dialect string `yaml:"dialect,omitempty"`

	// InListLimit overrides the dialect's IN-list slice size so batching
	// can be exercised with small lists.
	InListLimit int `yaml:"in_list_limit,omitempty"`

	// Data holds rows per entity, keyed by attribute name.
	Data map[string][]map[string]any `yaml:"data"`

	Queries []QueryStep `yaml:"queries"`

	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// QueryStep is one query run both as SQL and in memory.
type QueryStep struct {
	Name   string         `yaml:"name"`
	Entity string         `yaml:"entity"`
	Where  string         `yaml:"where,omitempty"`
	Order  []string       `yaml:"order,omitempty"`
	Limit  int            `yaml:"limit,omitempty"`
	Offset int            `yaml:"offset,omitempty"`
	Params map[string]any `yaml:"params,omitempty"`

	// Expect lists the primary keys the query must return. When nil only
	// agreement between SQL and memory is checked.
	Expect []any `yaml:"expect,omitempty"`
}

// Assertion validates query output or final table state.
type Assertion struct {
	// Type is one of sql_contains, row_count, final_state.
	Type string `yaml:"type"`

	// Query names the query step (sql_contains, row_count).
	Query string `yaml:"query,omitempty"`

	// Text must appear in the rendered SQL (sql_contains).
	Text string `yaml:"text,omitempty"`

	// Count is the expected number of rows (row_count).
	Count int `yaml:"count,omitempty"`

	// Table, Where and Expect select one row and check column values
	// (final_state). Expect is a subset match.
	Table  string         `yaml:"table,omitempty"`
	Where  map[string]any `yaml:"where,omitempty"`
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertSQLContains = "sql_contains"
	AssertRowCount    = "row_count"
	AssertFinalState  = "final_state"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "query:" vs "queries:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Schema != "" && !filepath.IsAbs(scenario.Schema) {
		scenario.Schema = filepath.Join(filepath.Dir(path), scenario.Schema)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// LoadScenarios loads every *.yaml file in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Schema == "" {
		return fmt.Errorf("schema is required")
	}
	if _, err := os.Stat(s.Schema); os.IsNotExist(err) {
		return fmt.Errorf("schema file not found: %s", s.Schema)
	}

	if s.Dialect == "" {
		s.Dialect = dialect.SQLite
	}
	if s.Dialect != dialect.SQLite {
		return fmt.Errorf("dialect %q: scenarios execute on SQLite", s.Dialect)
	}

	if s.InListLimit < 0 {
		return fmt.Errorf("in_list_limit must be non-negative")
	}

	if len(s.Queries) == 0 {
		return fmt.Errorf("queries list is required and must be non-empty")
	}

	names := make(map[string]bool, len(s.Queries))
	for i, q := range s.Queries {
		if err := validateQuery(i, &q); err != nil {
			return err
		}
		if names[q.Name] {
			return fmt.Errorf("queries[%d]: duplicate name %q", i, q.Name)
		}
		names[q.Name] = true
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a, names); err != nil {
			return err
		}
	}

	return nil
}

func validateQuery(index int, q *QueryStep) error {
	if q.Name == "" {
		return fmt.Errorf("queries[%d]: name is required", index)
	}
	if q.Entity == "" {
		return fmt.Errorf("queries[%d]: entity is required", index)
	}
	if q.Limit < 0 || q.Offset < 0 {
		return fmt.Errorf("queries[%d]: limit and offset must be non-negative", index)
	}
	// Without an order the window picks arbitrary rows, and the two
	// evaluations cannot be compared.
	if (q.Limit > 0 || q.Offset > 0) && len(q.Order) == 0 {
		return fmt.Errorf("queries[%d]: limit and offset require an order", index)
	}
	if q.Where != "" {
		if _, err := exp.Parse(q.Where); err != nil {
			return fmt.Errorf("queries[%d].where: %w", index, err)
		}
	}
	for j, o := range q.Order {
		if _, err := exp.ParseOrdering(o); err != nil {
			return fmt.Errorf("queries[%d].order[%d]: %w", index, j, err)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, queries map[string]bool) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertSQLContains, AssertRowCount:
		if a.Query == "" {
			return fmt.Errorf("assertions[%d]: query is required for %s", index, a.Type)
		}
		if !queries[a.Query] {
			return fmt.Errorf("assertions[%d]: unknown query %q", index, a.Query)
		}
		if a.Type == AssertSQLContains && a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for sql_contains", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for row_count", index)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
