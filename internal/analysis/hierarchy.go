package analysis

import (
	"sort"
	"strings"

	"github.com/dominikbraun/graph"
	"github.com/mvp-joe/docmint/internal/diag"
	"github.com/mvp-joe/docmint/internal/symbols"
)

// Ancestor is one base class reference, resolved when it points into the
// project.
type Ancestor struct {
	Ref    string          // Name as written
	Symbol *symbols.Symbol // nil when the base is outside the project
	Match  symbols.Match
	Line   int
}

// SimpleName returns the last component of the base name.
func (a Ancestor) SimpleName() string {
	if a.Symbol != nil {
		return a.Symbol.Name
	}
	return symbols.LastComponent(a.Ref)
}

// Hierarchy resolves class inheritance over the symbol table. Inheritance
// cycles are found once up front with strongly connected components; every
// walk additionally carries a visited set so it terminates on any input.
type Hierarchy struct {
	table     *symbols.Table
	registry  *Registry
	collector *diag.Collector

	bases  map[string][]Ancestor
	cyclic map[string]bool
	warned map[string]bool
}

// NewHierarchy resolves every class's direct bases and detects cycles.
func NewHierarchy(table *symbols.Table, registry *Registry, collector *diag.Collector) *Hierarchy {
	h := &Hierarchy{
		table:     table,
		registry:  registry,
		collector: collector,
		bases:     make(map[string][]Ancestor),
		cyclic:    make(map[string]bool),
		warned:    make(map[string]bool),
	}

	for _, class := range table.Classes() {
		var resolved []Ancestor
		for _, base := range class.Bases {
			a := Ancestor{Ref: base.Name, Line: base.Line}
			if q, match := table.Resolve(class.Module, base.Name); match != symbols.MatchNone {
				if target, ok := table.Get(q); ok && target.Kind == symbols.KindClass {
					a.Symbol = target
					a.Match = match
				}
			}
			resolved = append(resolved, a)
		}
		h.bases[class.QualifiedName] = resolved
	}

	h.detectCycles()
	return h
}

func (h *Hierarchy) detectCycles() {
	g := graph.New(func(s *symbols.Symbol) string { return s.QualifiedName }, graph.Directed())

	classes := h.table.Classes()
	for _, class := range classes {
		_ = g.AddVertex(class)
	}
	for _, class := range classes {
		for _, a := range h.bases[class.QualifiedName] {
			if a.Symbol == nil {
				continue
			}
			if a.Symbol.QualifiedName == class.QualifiedName {
				h.markCycle([]string{class.QualifiedName})
				continue
			}
			// Duplicate edges (class A(B, B)) are harmless
			_ = g.AddEdge(class.QualifiedName, a.Symbol.QualifiedName)
		}
	}

	components, err := graph.StronglyConnectedComponents(g)
	if err != nil {
		return
	}
	for _, component := range components {
		if len(component) > 1 {
			h.markCycle(component)
		}
	}
}

func (h *Hierarchy) markCycle(members []string) {
	sort.Strings(members)
	for _, name := range members {
		h.cyclic[name] = true
	}
	for _, name := range members {
		sym, _ := h.table.Get(name)
		h.collector.Warn(diag.KindCycle, sym.File, sym.Line, name,
			"inheritance cycle through %s", strings.Join(members, ", "))
	}
}

// Cyclic reports whether the class is part of an inheritance cycle.
func (h *Hierarchy) Cyclic(class *symbols.Symbol) bool {
	return h.cyclic[class.QualifiedName]
}

// DirectBases returns the class's bases in declaration order.
func (h *Hierarchy) DirectBases(class *symbols.Symbol) []Ancestor {
	return h.bases[class.QualifiedName]
}

// Ancestors walks every base depth-first in declaration order, each class
// at most once. The class itself is not included.
func (h *Hierarchy) Ancestors(class *symbols.Symbol) []Ancestor {
	var out []Ancestor
	visited := map[string]bool{class.QualifiedName: true}

	var walk func(*symbols.Symbol)
	walk = func(s *symbols.Symbol) {
		for _, a := range h.bases[s.QualifiedName] {
			if a.Symbol == nil {
				out = append(out, a)
				continue
			}
			if visited[a.Symbol.QualifiedName] {
				continue
			}
			visited[a.Symbol.QualifiedName] = true
			out = append(out, a)
			walk(a.Symbol)
		}
	}
	walk(class)
	return out
}

// Lineage returns the class followed by its project ancestors, nearest
// first. Attribute and method lookups search in this order.
func (h *Hierarchy) Lineage(class *symbols.Symbol) []*symbols.Symbol {
	out := []*symbols.Symbol{class}
	for _, a := range h.Ancestors(class) {
		if a.Symbol != nil {
			out = append(out, a.Symbol)
		}
	}
	return out
}

// Reaches reports whether any ancestor's simple name is in names.
func (h *Hierarchy) Reaches(class *symbols.Symbol, names map[string]bool) bool {
	for _, a := range h.Ancestors(class) {
		if names[a.SimpleName()] || names[symbols.LastComponent(a.Ref)] {
			return true
		}
	}
	return false
}

// UnknownBases returns the ancestors that are neither project classes nor
// registered names.
func (h *Hierarchy) UnknownBases(class *symbols.Symbol) []Ancestor {
	var out []Ancestor
	for _, a := range h.Ancestors(class) {
		if a.Symbol == nil && !h.registry.known(symbols.LastComponent(a.Ref)) {
			out = append(out, a)
		}
	}
	return out
}

// FindAttribute looks an attribute up along the lineage.
func (h *Hierarchy) FindAttribute(class *symbols.Symbol, name string) (symbols.Attribute, *symbols.Symbol, bool) {
	for _, s := range h.Lineage(class) {
		if attr, ok := s.Attribute(name); ok {
			return attr, s, true
		}
	}
	return symbols.Attribute{}, nil, false
}

// FindMethod looks a method up along the lineage. A subclass definition
// hides every inherited one.
func (h *Hierarchy) FindMethod(class *symbols.Symbol, name string) (*symbols.Symbol, bool) {
	for _, s := range h.Lineage(class) {
		if m, ok := h.table.Method(s, name); ok {
			return m, true
		}
	}
	return nil, false
}

// warnUnknownBases records one unresolved-reference warning per unknown
// base of a class that analysis cares about.
func (h *Hierarchy) warnUnknownBases(class *symbols.Symbol) {
	if h.warned[class.QualifiedName] {
		return
	}
	h.warned[class.QualifiedName] = true
	for _, a := range h.DirectBases(class) {
		if a.Symbol == nil && !h.registry.known(symbols.LastComponent(a.Ref)) {
			h.collector.Warn(diag.KindUnresolved, class.File, a.Line, class.QualifiedName,
				"base class %s could not be resolved", a.Ref)
		}
		if a.Match == symbols.MatchHeuristic {
			h.collector.Note(diag.KindHeuristic, class.File, a.Line, class.QualifiedName,
				"base class %s matched %s by name only", a.Ref, a.Symbol.QualifiedName)
		}
	}
}
