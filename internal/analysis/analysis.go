package analysis

import (
	"log/slog"

	"github.com/mvp-joe/docmint/internal/diag"
	"github.com/mvp-joe/docmint/internal/model"
	"github.com/mvp-joe/docmint/internal/symbols"
)

// Options configures the resolvers.
type Options struct {
	Registry    *Registry
	RoutePolicy RoutePolicy
}

// Result is the output of all resolution stages.
type Result struct {
	Endpoints []*model.Endpoint
	Schemas   []*model.Schema // Every schema in the project, sorted by name
}

// Analyze runs schema, endpoint and binding resolution over a finished
// symbol table. It never fails; problems are recorded in collector.
func Analyze(table *symbols.Table, opts Options, collector *diag.Collector) *Result {
	registry := opts.Registry
	if registry == nil {
		registry = DefaultRegistry()
	}
	policy := opts.RoutePolicy
	if policy == nil {
		policy, _ = ParseRoutePolicy(RouteKebab)
	}

	hierarchy := NewHierarchy(table, registry, collector)
	classifier := NewClassifier(table, hierarchy, registry, collector)
	schemas := NewSchemaResolver(table, hierarchy, classifier, collector)
	urls := NewURLConf(table, collector)
	endpoints := NewEndpointResolver(table, hierarchy, classifier, urls, policy, collector)
	bindings := NewBindingResolver(table, hierarchy, schemas, collector)

	handlers := endpoints.Resolve()
	result := &Result{Endpoints: make([]*model.Endpoint, 0, len(handlers))}
	for _, h := range handlers {
		bindings.Bind(h)
		result.Endpoints = append(result.Endpoints, h.Endpoint)
	}
	result.Schemas = schemas.All()

	slog.Debug("resolved endpoints",
		"endpoints", len(result.Endpoints),
		"schemas", len(result.Schemas),
		"routes", urls.Len())

	return result
}
