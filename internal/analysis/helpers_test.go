package analysis

import (
	"testing"

	"github.com/mvp-joe/docmint/internal/diag"
	"github.com/mvp-joe/docmint/internal/model"
	"github.com/mvp-joe/docmint/internal/source"
	"github.com/mvp-joe/docmint/internal/symbols"
	"github.com/stretchr/testify/require"
)

// buildTable parses in-memory files keyed by relative path.
func buildTable(t *testing.T, files map[string]string) (*symbols.Table, *diag.Collector) {
	t.Helper()
	loader := source.NewLoader("/project", 1)

	var units []*source.SourceUnit
	for rel, content := range files {
		unit, err := loader.ParseSource(rel, []byte(content))
		require.NoError(t, err)
		units = append(units, unit)
	}
	t.Cleanup(func() {
		for _, u := range units {
			u.Close()
		}
	})

	collector := diag.NewCollector()
	return symbols.Build(units, collector), collector
}

// analyze runs every resolver with default options.
func analyze(t *testing.T, files map[string]string) (*Result, *diag.Collector) {
	t.Helper()
	table, collector := buildTable(t, files)
	return Analyze(table, Options{}, collector), collector
}

func findSchema(t *testing.T, result *Result, name string) *model.Schema {
	t.Helper()
	for _, s := range result.Schemas {
		if s.Name == name {
			return s
		}
	}
	require.Failf(t, "schema not found", "%s", name)
	return nil
}

func findEndpoint(t *testing.T, result *Result, name string) *model.Endpoint {
	t.Helper()
	for _, e := range result.Endpoints {
		if e.Name == name {
			return e
		}
		for _, a := range e.Actions {
			if a.Name == name {
				return a
			}
		}
	}
	require.Failf(t, "endpoint not found", "%s", name)
	return nil
}

func warningsOf(collector *diag.Collector, kind diag.Kind) []diag.Diagnostic {
	var out []diag.Diagnostic
	for _, d := range collector.Items() {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}
