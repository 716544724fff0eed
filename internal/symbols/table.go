package symbols

import (
	"sort"
	"strings"
)

// maxImportHops bounds how many re-export hops name resolution follows.
const maxImportHops = 8

// Match describes how a name was resolved.
type Match int

const (
	// MatchNone means the name could not be resolved within the project
	MatchNone Match = iota
	// MatchExact means the name resolved through scope or imports
	MatchExact
	// MatchHeuristic means the name resolved by a unique simple-name match
	MatchHeuristic
)

// Table is the immutable index of every definition in a project.
// Entries live in an arena slice; the index maps qualified names to slots.
type Table struct {
	symbols []*Symbol
	index   map[string]int
	byName  map[string][]int
	modules map[string]*Module
}

func newTable() *Table {
	return &Table{
		index:   make(map[string]int),
		byName:  make(map[string][]int),
		modules: make(map[string]*Module),
	}
}

// Get returns the symbol with the given qualified name.
func (t *Table) Get(qualifiedName string) (*Symbol, bool) {
	i, ok := t.index[qualifiedName]
	if !ok {
		return nil, false
	}
	return t.symbols[i], true
}

// Symbols returns every symbol ordered by file, then line.
func (t *Table) Symbols() []*Symbol {
	out := make([]*Symbol, 0, len(t.index))
	for _, s := range t.symbols {
		if s != nil {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].File != out[j].File {
			return out[i].File < out[j].File
		}
		return out[i].Line < out[j].Line
	})
	return out
}

// Classes returns every class symbol ordered by file, then line.
func (t *Table) Classes() []*Symbol {
	var out []*Symbol
	for _, s := range t.Symbols() {
		if s.Kind == KindClass {
			out = append(out, s)
		}
	}
	return out
}

// Len returns the number of indexed symbols.
func (t *Table) Len() int {
	return len(t.index)
}

// Module returns the module facts for a dotted module path.
func (t *Table) Module(path string) (*Module, bool) {
	m, ok := t.modules[path]
	return m, ok
}

// Modules returns every module sorted by path.
func (t *Table) Modules() []*Module {
	out := make([]*Module, 0, len(t.modules))
	for _, m := range t.modules {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Methods returns the methods defined directly on a class.
func (t *Table) Methods(class *Symbol) []*Symbol {
	var out []*Symbol
	for _, q := range class.Methods {
		if m, ok := t.Get(q); ok {
			out = append(out, m)
		}
	}
	return out
}

// Method returns the method with the given simple name defined directly on
// a class.
func (t *Table) Method(class *Symbol, name string) (*Symbol, bool) {
	return t.Get(class.QualifiedName + "." + name)
}

// Resolve finds the qualified name a dotted reference points to from within
// a module. It tries, in order: a definition in the same module, import
// aliases (following package re-exports), star imports, and finally a
// project-wide unique simple-name match.
func (t *Table) Resolve(module, dotted string) (string, Match) {
	if dotted == "" {
		return "", MatchNone
	}
	if q, ok := t.resolveIn(module, dotted, 0); ok {
		return q, MatchExact
	}

	// Only bare names that are neither local nor imported fall back to a
	// project-wide match; imported names point outside the project.
	if strings.Contains(dotted, ".") {
		return "", MatchNone
	}
	if m, ok := t.modules[module]; ok {
		if _, imported := m.Imports[dotted]; imported {
			return "", MatchNone
		}
	}

	var found *Symbol
	for _, i := range t.byName[dotted] {
		s := t.symbols[i]
		if s == nil || s.Parent != "" {
			continue
		}
		if found != nil {
			return "", MatchNone
		}
		found = s
	}
	if found == nil {
		return "", MatchNone
	}
	return found.QualifiedName, MatchHeuristic
}

// resolveIn resolves a dotted name in the scope of a module.
func (t *Table) resolveIn(module, dotted string, hops int) (string, bool) {
	if hops > maxImportHops {
		return "", false
	}

	if q := joinDotted(module, dotted); t.has(q) {
		return q, true
	}

	m, ok := t.modules[module]
	if !ok {
		return "", false
	}

	first, rest, _ := strings.Cut(dotted, ".")
	if imp, ok := m.Imports[first]; ok {
		if q, ok := t.resolveAbsolute(joinDotted(imp.Target, rest), hops+1); ok {
			return q, true
		}
	}

	for _, star := range m.Stars {
		if q, ok := t.resolveIn(star, dotted, hops+1); ok {
			return q, true
		}
	}
	return "", false
}

// resolveAbsolute resolves a fully qualified dotted name, descending into
// the longest known module prefix so that re-exports are followed.
func (t *Table) resolveAbsolute(target string, hops int) (string, bool) {
	if hops > maxImportHops {
		return "", false
	}
	if t.has(target) {
		return target, true
	}

	parts := strings.Split(target, ".")
	for i := len(parts) - 1; i >= 1; i-- {
		mod := strings.Join(parts[:i], ".")
		if _, ok := t.modules[mod]; !ok {
			continue
		}
		return t.resolveIn(mod, strings.Join(parts[i:], "."), hops)
	}
	return "", false
}

func (t *Table) has(q string) bool {
	_, ok := t.index[q]
	return ok
}

// insert adds a symbol, replacing any earlier definition with the same
// qualified name. It returns the replaced symbol, if any.
func (t *Table) insert(s *Symbol) *Symbol {
	if i, ok := t.index[s.QualifiedName]; ok {
		old := t.symbols[i]
		t.symbols[i] = s
		t.replaceName(old, i)
		t.byName[s.Name] = append(t.byName[s.Name], i)
		return old
	}
	t.symbols = append(t.symbols, s)
	i := len(t.symbols) - 1
	t.index[s.QualifiedName] = i
	t.byName[s.Name] = append(t.byName[s.Name], i)
	return nil
}

// remove drops a symbol from the index, leaving its arena slot empty.
func (t *Table) remove(qualifiedName string) {
	i, ok := t.index[qualifiedName]
	if !ok {
		return
	}
	old := t.symbols[i]
	t.symbols[i] = nil
	delete(t.index, qualifiedName)
	t.replaceName(old, i)
}

func (t *Table) replaceName(old *Symbol, slot int) {
	ids := t.byName[old.Name]
	for j, id := range ids {
		if id == slot {
			t.byName[old.Name] = append(ids[:j:j], ids[j+1:]...)
			break
		}
	}
}
