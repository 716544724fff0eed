package model

import (
	"sort"

	"github.com/mvp-joe/docmint/internal/diag"
)

// Assemble builds the read-only model: endpoints ordered by file then line,
// and the schemas reachable from any binding, directly or through nested
// fields, sorted by name. Invariant violations become warnings.
func Assemble(project string, endpoints []*Endpoint, schemas []*Schema, collector *diag.Collector) *Model {
	ordered := make([]*Endpoint, len(endpoints))
	copy(ordered, endpoints)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].File != ordered[j].File {
			return ordered[i].File < ordered[j].File
		}
		return ordered[i].Line < ordered[j].Line
	})

	available := make(map[string]*Schema, len(schemas))
	for _, s := range schemas {
		available[s.Name] = s
	}

	reachable := make(map[string]*Schema)
	var queue []string
	reach := func(name, file string, line int, from string) {
		if name == "" {
			return
		}
		if _, done := reachable[name]; done {
			return
		}
		s, ok := available[name]
		if !ok {
			collector.Warn(diag.KindInvariant, file, line, from,
				"reference to unknown schema %s", name)
			return
		}
		reachable[name] = s
		queue = append(queue, name)
	}

	// First operation to claim each "METHOD path"
	routes := make(map[string]string)

	for _, e := range ordered {
		validateEndpoint(e, collector)
		for _, op := range append([]*Endpoint{e}, e.Actions...) {
			for _, b := range op.Bindings() {
				if b == nil {
					continue
				}
				route := string(b.Method) + " " + op.Path
				if first, taken := routes[route]; !taken {
					routes[route] = op.Name
				} else if first != op.Name {
					collector.Warn(diag.KindInvariant, op.File, op.Line, op.Name,
						"%s is also served by %s; only the first appears in the OpenAPI document", route, first)
				}
				reach(b.Request, op.File, op.Line, op.Name)
				reach(b.Response, op.File, op.Line, op.Name)
			}
		}
	}
	for len(queue) > 0 {
		s := reachable[queue[0]]
		queue = queue[1:]
		for _, f := range s.Fields {
			reach(f.Ref, s.File, s.Line, s.Name)
		}
	}

	m := &Model{
		Project:     project,
		Endpoints:   ordered,
		Schemas:     make([]*Schema, 0, len(reachable)),
		schemaIndex: reachable,
	}
	for _, s := range reachable {
		validateSchema(s, collector)
		m.Schemas = append(m.Schemas, s)
	}
	sort.Slice(m.Schemas, func(i, j int) bool { return m.Schemas[i].Name < m.Schemas[j].Name })

	m.Warnings = collector.Items()
	if m.Warnings == nil {
		m.Warnings = []diag.Diagnostic{}
	}
	return m
}

func validateSchema(s *Schema, collector *diag.Collector) {
	seen := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		if seen[f.Name] {
			collector.Warn(diag.KindInvariant, s.File, s.Line, s.Name,
				"duplicate field %s", f.Name)
		}
		seen[f.Name] = true
	}
}

func validateEndpoint(e *Endpoint, collector *diag.Collector) {
	for _, op := range append([]*Endpoint{e}, e.Actions...) {
		for m, b := range op.Methods {
			if b == nil || b.Method != m {
				collector.Warn(diag.KindInvariant, op.File, op.Line, op.Name,
					"binding for %s is registered under a different method", m)
			}
		}
	}
}
