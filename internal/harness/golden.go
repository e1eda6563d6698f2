package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/ormql/internal/jsontok"
)

// TraceSnapshot captures the complete trace for a scenario execution.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario"`
	Dialect      string       `json:"dialect"`
	Trace        []TraceEvent `json:"queries"`
}

// toCanonicalMap converts a TraceSnapshot to a map for canonical JSON
// serialization.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	queries := make([]any, len(s.Trace))
	for i, ev := range s.Trace {
		queries[i] = map[string]any{
			"query": ev.Query,
			"sql":   ev.SQL,
			"args":  ev.Args,
			"keys":  flattenKeys(ev.Keys),
		}
	}
	return map[string]any{
		"scenario": s.ScenarioName,
		"dialect":  s.Dialect,
		"queries":  queries,
	}
}

// flattenKeys converts the parts of compound keys to trace values.
func flattenKeys(keys []any) []any {
	out := make([]any, len(keys))
	for i, k := range keys {
		if parts, ok := k.([]any); ok {
			out[i] = traceValues(parts)
			continue
		}
		out[i] = traceValues([]any{k})[0]
	}
	return out
}

// Snapshot returns the canonical JSON trace of a result.
func Snapshot(scenario *Scenario, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: scenario.Name,
		Dialect:      scenario.Dialect,
		Trace:        result.Trace,
	}
	return jsontok.Canonical(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	traceJSON, err := Snapshot(scenario, result)
	if err != nil {
		return nil, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, traceJSON)

	return result, nil
}
