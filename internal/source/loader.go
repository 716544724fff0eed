package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/mvp-joe/docmint/internal/diag"
	sitter "github.com/tree-sitter/go-tree-sitter"
	python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	"golang.org/x/sync/errgroup"
)

// SourceUnit is one analyzed file: its location, bytes and tree-sitter tree.
// Units are immutable once produced; Close releases the tree.
type SourceUnit struct {
	Path    string // Absolute path
	RelPath string // Slash-separated path relative to the project root
	Module  string // Python module path derived from RelPath
	Source  []byte
	Tree    *sitter.Tree
}

// Root returns the root node of the parse tree.
func (u *SourceUnit) Root() *sitter.Node {
	if u.Tree == nil {
		return nil
	}
	return u.Tree.RootNode()
}

// SyntaxError reports the first line containing a syntax error, or 0 when
// the file parsed cleanly.
func (u *SourceUnit) SyntaxError() int {
	root := u.Root()
	if root == nil {
		return 1
	}
	if !root.HasError() {
		return 0
	}
	line := 0
	walkErrors(root, func(n *sitter.Node) {
		if line == 0 {
			line = int(n.StartPosition().Row) + 1
		}
	})
	if line == 0 {
		line = 1
	}
	return line
}

// Close releases the parse tree.
func (u *SourceUnit) Close() {
	if u.Tree != nil {
		u.Tree.Close()
		u.Tree = nil
	}
}

func walkErrors(n *sitter.Node, visit func(*sitter.Node)) {
	if n == nil || !n.HasError() && !n.IsMissing() {
		return
	}
	if n.IsError() || n.IsMissing() {
		visit(n)
		return
	}
	for i := uint(0); i < n.ChildCount(); i++ {
		walkErrors(n.Child(i), visit)
	}
}

// Language returns the tree-sitter grammar used for every source file.
func Language() *sitter.Language {
	return sitter.NewLanguage(python.Language())
}

// Loader reads and parses source files on a bounded worker pool.
type Loader struct {
	rootDir  string
	workers  int
	language *sitter.Language
}

// NewLoader creates a loader for files below rootDir. workers <= 0 means one
// worker per CPU.
func NewLoader(rootDir string, workers int) *Loader {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Loader{
		rootDir:  rootDir,
		workers:  workers,
		language: Language(),
	}
}

// Load parses every file concurrently. Each worker owns its parser and writes
// only its own slot of the result slice, so the units come back in input
// order. Unreadable files are reported as diagnostics and left out; only
// context cancellation aborts the load.
//
// onParsed, if non-nil, is called once per file; calls are serialized.
func (l *Loader) Load(ctx context.Context, files []string, onParsed func(relPath string)) ([]*SourceUnit, []diag.Diagnostic, error) {
	units := make([]*SourceUnit, len(files))
	problems := make([]*diag.Diagnostic, len(files))

	var callbackMu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)

	for i, file := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			unit, err := l.parseFile(file)
			if err != nil {
				problems[i] = &diag.Diagnostic{
					Kind:     diag.KindParseFailure,
					Severity: diag.SeverityWarning,
					Message:  fmt.Sprintf("cannot read file: %v", err),
					File:     l.relPath(file),
				}
			} else {
				units[i] = unit
			}

			if onParsed != nil {
				callbackMu.Lock()
				onParsed(l.relPath(file))
				callbackMu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		for _, u := range units {
			if u != nil {
				u.Close()
			}
		}
		return nil, nil, err
	}

	result := make([]*SourceUnit, 0, len(units))
	for _, u := range units {
		if u != nil {
			result = append(result, u)
		}
	}
	var diags []diag.Diagnostic
	for _, p := range problems {
		if p != nil {
			diags = append(diags, *p)
		}
	}

	slog.Debug("parsed source files", "files", len(files), "units", len(result), "failures", len(diags))
	return result, diags, nil
}

// ParseSource parses an in-memory file. relPath determines the module path.
func (l *Loader) ParseSource(relPath string, source []byte) (*SourceUnit, error) {
	parser := sitter.NewParser()
	defer parser.Close()

	if err := parser.SetLanguage(l.language); err != nil {
		return nil, fmt.Errorf("failed to set python grammar: %w", err)
	}

	tree := parser.Parse(source, nil)
	if tree == nil {
		return nil, fmt.Errorf("failed to parse python file: %s", relPath)
	}

	relPath = filepath.ToSlash(relPath)
	return &SourceUnit{
		Path:    filepath.Join(l.rootDir, filepath.FromSlash(relPath)),
		RelPath: relPath,
		Module:  ModulePath(relPath),
		Source:  source,
		Tree:    tree,
	}, nil
}

func (l *Loader) parseFile(path string) (*SourceUnit, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	unit, err := l.ParseSource(l.relPath(path), source)
	if err != nil {
		return nil, err
	}
	unit.Path = path
	return unit, nil
}

func (l *Loader) relPath(path string) string {
	rel, err := filepath.Rel(l.rootDir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
