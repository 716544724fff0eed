package analysis

import (
	"strings"

	"github.com/mvp-joe/docmint/internal/diag"
	"github.com/mvp-joe/docmint/internal/model"
	"github.com/mvp-joe/docmint/internal/symbols"
)

// relationFields are model field constructors that do not end in "Field".
var relationFields = map[string]bool{
	"ForeignKey":      true,
	"OneToOneField":   true,
	"ManyToManyField": true,
}

// Classifier decides whether a class is a handler, a schema or a model.
// Results are cached so heuristic notes are recorded once per class.
type Classifier struct {
	table     *symbols.Table
	hierarchy *Hierarchy
	registry  *Registry
	collector *diag.Collector

	handlers map[string]bool
}

// NewClassifier creates a classifier over a finished hierarchy.
func NewClassifier(table *symbols.Table, hierarchy *Hierarchy, registry *Registry, collector *diag.Collector) *Classifier {
	return &Classifier{
		table:     table,
		hierarchy: hierarchy,
		registry:  registry,
		collector: collector,
		handlers:  make(map[string]bool),
	}
}

// IsModel reports whether the class is a persistence model.
func (c *Classifier) IsModel(class *symbols.Symbol) bool {
	return class.Kind == symbols.KindClass && c.hierarchy.Reaches(class, c.registry.ModelBases)
}

// IsHandler reports whether the class handles requests. A class whose
// chain leaves the project through an unknown base still counts when it
// directly defines an HTTP method function taking a request.
func (c *Classifier) IsHandler(class *symbols.Symbol) bool {
	if class.Kind != symbols.KindClass {
		return false
	}
	if v, ok := c.handlers[class.QualifiedName]; ok {
		return v
	}

	handler := c.hierarchy.Reaches(class, c.registry.HandlerBases)
	if !handler && len(c.hierarchy.UnknownBases(class)) > 0 && c.definesRequestMethod(class) {
		handler = true
		c.collector.Note(diag.KindHeuristic, class.File, class.Line, class.QualifiedName,
			"classified as handler from its request methods; base %s is unknown",
			c.hierarchy.UnknownBases(class)[0].Ref)
	}
	c.handlers[class.QualifiedName] = handler
	return handler
}

// IsSchema reports whether the class is a data-transfer schema.
func (c *Classifier) IsSchema(class *symbols.Symbol) bool {
	if class.Kind != symbols.KindClass || c.IsHandler(class) || c.IsModel(class) {
		return false
	}
	return c.reachesSchemaBase(class) || c.declaresFields(class)
}

func (c *Classifier) reachesSchemaBase(class *symbols.Symbol) bool {
	return c.hierarchy.Reaches(class, c.registry.SchemaBases)
}

// declaresFields reports whether any class-level assignment is a field
// constructor call.
func (c *Classifier) declaresFields(class *symbols.Symbol) bool {
	for _, attr := range class.Attributes {
		callee := attr.Value.Callee()
		if callee == "" {
			continue
		}
		if isFieldConstructor(callee) {
			return true
		}
		if target, ok := c.resolveClass(class.Module, callee); ok && c.reachesSchemaBase(target) {
			return true
		}
	}
	return false
}

func (c *Classifier) definesRequestMethod(class *symbols.Symbol) bool {
	for _, m := range c.table.Methods(class) {
		if _, ok := httpMethodName(m.Name); ok && takesRequest(m) {
			return true
		}
	}
	return false
}

// takesRequest reports whether the first argument after self names a
// request: "request", "req" or any name ending in "request". Mapping-style
// get(self, key) methods do not qualify.
func takesRequest(m *symbols.Symbol) bool {
	params := m.Params
	if len(params) > 0 && params[0] == "self" {
		params = params[1:]
	}
	if len(params) == 0 {
		return false
	}
	p := strings.ToLower(params[0])
	return p == "req" || strings.HasSuffix(p, "request")
}

// resolveClass resolves a dotted name to a project class.
func (c *Classifier) resolveClass(module, dotted string) (*symbols.Symbol, bool) {
	q, match := c.table.Resolve(module, dotted)
	if match == symbols.MatchNone {
		return nil, false
	}
	sym, ok := c.table.Get(q)
	if !ok || sym.Kind != symbols.KindClass {
		return nil, false
	}
	return sym, true
}

// isFieldConstructor applies the naming rule for field declarations.
func isFieldConstructor(callee string) bool {
	last := symbols.LastComponent(callee)
	return strings.HasSuffix(last, "Field") && last != "Field" || relationFields[last]
}

// httpMethodName matches a function named exactly like an HTTP method,
// ignoring case.
func httpMethodName(name string) (model.Method, bool) {
	m, ok := model.ParseMethod(name)
	if !ok || strings.TrimSpace(name) != name {
		return "", false
	}
	return m, true
}
