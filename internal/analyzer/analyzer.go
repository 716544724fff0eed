// Package analyzer runs the full extraction pipeline: discovery, parsing,
// symbol indexing, resolution and model assembly.
package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/mvp-joe/docmint/internal/analysis"
	"github.com/mvp-joe/docmint/internal/diag"
	"github.com/mvp-joe/docmint/internal/model"
	"github.com/mvp-joe/docmint/internal/source"
	"github.com/mvp-joe/docmint/internal/symbols"
)

// Sentinel errors re-exported so callers need only this package.
var (
	ErrInvalidRoot   = source.ErrInvalidRoot
	ErrNoSourceFiles = source.ErrNoSourceFiles
)

// DefaultInclude matches every Python file below the root.
var DefaultInclude = []string{"**/*.py"}

// Config contains configuration for one analysis run.
type Config struct {
	// Root directory of the project to analyze
	RootDir string

	// Display name; defaults to the root directory's base name
	ProjectName string

	// Discovery patterns, relative to RootDir
	Include []string
	Ignore  []string

	// Parse pool size; <= 0 means one worker per CPU
	Workers int

	// Route naming policy for handlers without a URL-conf entry
	RoutePolicy string

	// Extra base-class names recognized by the classifier
	HandlerBases []string
	SchemaBases  []string
	ModelBases   []string

	// Diagnostics produced outside the pipeline, included in the model
	Diagnostics []diag.Diagnostic
}

// Stats summarizes a run.
type Stats struct {
	FilesDiscovered int           `json:"files_discovered"`
	FilesParsed     int           `json:"files_parsed"`
	FilesSkipped    int           `json:"files_skipped"`
	Symbols         int           `json:"symbols"`
	Endpoints       int           `json:"endpoints"`
	Schemas         int           `json:"schemas"`
	Warnings        int           `json:"warnings"`
	Duration        time.Duration `json:"duration"`
}

// Analyzer runs the pipeline. It holds no state between runs, so watch mode
// calls Run repeatedly on the same value.
type Analyzer struct {
	config   *Config
	policy   analysis.RoutePolicy
	registry *analysis.Registry
	progress ProgressReporter
}

// New validates the configuration and returns an analyzer. A nil progress
// reporter is replaced with a no-op one.
func New(config *Config, progress ProgressReporter) (*Analyzer, error) {
	if config == nil || config.RootDir == "" {
		return nil, fmt.Errorf("%w: root directory not set", ErrInvalidRoot)
	}

	policy, err := analysis.ParseRoutePolicy(config.RoutePolicy)
	if err != nil {
		return nil, err
	}

	if progress == nil {
		progress = &NoOpProgressReporter{}
	}

	return &Analyzer{
		config:   config,
		policy:   policy,
		registry: analysis.NewRegistry(config.HandlerBases, config.SchemaBases, config.ModelBases),
		progress: progress,
	}, nil
}

// Run analyzes the project and returns the assembled model. Only an invalid
// root, an empty project or cancellation fail the run; everything else ends
// up in the model's warnings.
func (a *Analyzer) Run(ctx context.Context) (*model.Model, *Stats, error) {
	start := time.Now()
	stats := &Stats{}

	root, err := filepath.Abs(a.config.RootDir)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidRoot, err)
	}

	a.progress.OnDiscoveryStart()
	include := a.config.Include
	if len(include) == 0 {
		include = DefaultInclude
	}
	discovery, err := source.NewFileDiscovery(root, include, a.config.Ignore)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create file discovery: %w", err)
	}
	files, err := discovery.Discover()
	if err != nil {
		return nil, nil, err
	}
	stats.FilesDiscovered = len(files)
	a.progress.OnDiscoveryComplete(len(files))
	if len(files) == 0 {
		return nil, nil, fmt.Errorf("%w in %s", ErrNoSourceFiles, root)
	}
	slog.Debug("discovered source files", "root", root, "files", len(files))

	a.progress.OnParsingStart(len(files))
	loader := source.NewLoader(root, a.config.Workers)
	units, readFailures, err := loader.Load(ctx, files, a.progress.OnFileParsed)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load source files: %w", err)
	}
	stats.FilesParsed = len(units)

	collector := diag.NewCollector()
	collector.Merge(readFailures)
	collector.Merge(a.config.Diagnostics)

	table := symbols.Build(units, collector)
	// The table keeps no tree references, so parse trees can go now
	for _, u := range units {
		u.Close()
	}
	stats.Symbols = table.Len()
	stats.FilesSkipped = collector.Count(diag.KindParseFailure)

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	a.progress.OnResolutionStart(table.Len())
	result := analysis.Analyze(table, analysis.Options{
		Registry:    a.registry,
		RoutePolicy: a.policy,
	}, collector)

	m := model.Assemble(a.projectName(root), result.Endpoints, result.Schemas, collector)

	stats.Endpoints = len(m.Operations())
	stats.Schemas = len(m.Schemas)
	stats.Warnings = len(m.Warnings)
	stats.Duration = time.Since(start)

	slog.Info("analysis complete",
		"root", root,
		"files", stats.FilesParsed,
		"skipped", stats.FilesSkipped,
		"endpoints", stats.Endpoints,
		"schemas", stats.Schemas,
		"warnings", stats.Warnings,
		"duration", stats.Duration)

	a.progress.OnComplete(stats)
	return m, stats, nil
}

func (a *Analyzer) projectName(root string) string {
	if a.config.ProjectName != "" {
		return a.config.ProjectName
	}
	return filepath.Base(root)
}
