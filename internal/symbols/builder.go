package symbols

import (
	"log/slog"
	"sort"

	"github.com/mvp-joe/docmint/internal/diag"
	"github.com/mvp-joe/docmint/internal/source"
)

// Build indexes every unit into a new table. Units with syntax errors are
// skipped with one parse-failure warning each. The table is complete and
// read-only when Build returns.
func Build(units []*source.SourceUnit, collector *diag.Collector) *Table {
	ordered := make([]*source.SourceUnit, len(units))
	copy(ordered, units)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].RelPath < ordered[j].RelPath })

	table := newTable()
	skipped := 0

	for _, unit := range ordered {
		if line := unit.SyntaxError(); line > 0 {
			collector.Warn(diag.KindParseFailure, unit.RelPath, line, "",
				"syntax error, file skipped")
			skipped++
			continue
		}

		module, defs := newExtractor(unit).extract()
		if existing, ok := table.modules[module.Path]; ok {
			collector.Note(diag.KindRedefinition, unit.RelPath, 0, module.Path,
				"module path also provided by %s", existing.File)
		}
		table.modules[module.Path] = module

		for _, sym := range defs {
			old := table.insert(sym)
			if old == nil {
				continue
			}
			collector.Note(diag.KindRedefinition, sym.File, sym.Line, sym.QualifiedName,
				"redefinition replaces the definition at %s:%d", old.File, old.Line)
			if old.Kind == KindClass {
				dropStaleMembers(table, old, sym)
			}
		}
	}

	slog.Debug("built symbol table",
		"units", len(units),
		"skipped", skipped,
		"symbols", table.Len(),
		"modules", len(table.modules))

	return table
}

// dropStaleMembers removes methods of a replaced class that the new
// definition does not declare.
func dropStaleMembers(table *Table, old, replacement *Symbol) {
	keep := make(map[string]bool, len(replacement.Methods))
	for _, m := range replacement.Methods {
		keep[m] = true
	}
	for _, m := range old.Methods {
		if !keep[m] {
			table.remove(m)
		}
	}
}
