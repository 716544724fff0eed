// Package diag collects the non-fatal findings produced while analyzing a
// project: parse failures, unresolved references, cycles and heuristic
// defaults. Fatal conditions are plain errors and never end up here.
package diag

import (
	"fmt"
	"sort"
)

// Kind classifies a diagnostic.
type Kind string

const (
	KindParseFailure Kind = "parse-failure"
	KindUnresolved   Kind = "unresolved-reference"
	KindHeuristic    Kind = "heuristic"
	KindCycle        Kind = "cycle"
	KindInvariant    Kind = "invariant"
	KindUnsupported  Kind = "unsupported"
	KindRedefinition Kind = "redefinition"
)

// Severity separates real warnings from informational notes.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Diagnostic is a single recoverable finding.
type Diagnostic struct {
	Kind     Kind     `json:"kind"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	File     string   `json:"file,omitempty"`   // Relative file path
	Line     int      `json:"line,omitempty"`   // 1-indexed, 0 if unknown
	Symbol   string   `json:"symbol,omitempty"` // Qualified name the finding belongs to
}

// String renders the diagnostic as "file:line: [kind] message (symbol)".
func (d Diagnostic) String() string {
	loc := d.File
	if loc != "" && d.Line > 0 {
		loc = fmt.Sprintf("%s:%d", d.File, d.Line)
	}
	msg := fmt.Sprintf("[%s] %s", d.Kind, d.Message)
	if loc != "" {
		msg = loc + ": " + msg
	}
	if d.Symbol != "" {
		msg += fmt.Sprintf(" (%s)", d.Symbol)
	}
	return msg
}

// Collector accumulates diagnostics, dropping exact duplicates.
// It is not safe for concurrent use; stages that run in parallel collect
// locally and merge afterwards.
type Collector struct {
	items []Diagnostic
	seen  map[Diagnostic]bool
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{seen: make(map[Diagnostic]bool)}
}

// Add records a diagnostic.
func (c *Collector) Add(d Diagnostic) {
	if d.Severity == "" {
		d.Severity = SeverityWarning
	}
	if c.seen[d] {
		return
	}
	c.seen[d] = true
	c.items = append(c.items, d)
}

// Warn records a warning-level diagnostic.
func (c *Collector) Warn(kind Kind, file string, line int, symbol, format string, args ...any) {
	c.Add(Diagnostic{
		Kind:     kind,
		Severity: SeverityWarning,
		Message:  fmt.Sprintf(format, args...),
		File:     file,
		Line:     line,
		Symbol:   symbol,
	})
}

// Note records an informational diagnostic.
func (c *Collector) Note(kind Kind, file string, line int, symbol, format string, args ...any) {
	c.Add(Diagnostic{
		Kind:     kind,
		Severity: SeverityInfo,
		Message:  fmt.Sprintf(format, args...),
		File:     file,
		Line:     line,
		Symbol:   symbol,
	})
}

// Merge appends every diagnostic of other.
func (c *Collector) Merge(other []Diagnostic) {
	for _, d := range other {
		c.Add(d)
	}
}

// Items returns the diagnostics in a stable order: by file, line, kind, message.
func (c *Collector) Items() []Diagnostic {
	out := make([]Diagnostic, len(c.items))
	copy(out, c.items)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].File != out[j].File {
			return out[i].File < out[j].File
		}
		if out[i].Line != out[j].Line {
			return out[i].Line < out[j].Line
		}
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Message < out[j].Message
	})
	return out
}

// Count returns how many diagnostics of the given kind were recorded.
func (c *Collector) Count(kind Kind) int {
	n := 0
	for _, d := range c.items {
		if d.Kind == kind {
			n++
		}
	}
	return n
}

// Len returns the number of recorded diagnostics.
func (c *Collector) Len() int {
	return len(c.items)
}
