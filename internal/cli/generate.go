package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/mvp-joe/docmint/internal/analyzer"
	"github.com/mvp-joe/docmint/internal/config"
	"github.com/mvp-joe/docmint/internal/diag"
	"github.com/mvp-joe/docmint/internal/model"
	"github.com/mvp-joe/docmint/internal/render"
	"github.com/mvp-joe/docmint/internal/watcher"
	"github.com/spf13/cobra"
)

// generator holds everything one run needs, so watch mode can repeat it.
type generator struct {
	analyzer  *analyzer.Analyzer
	formats   []render.Format
	outputDir string
	render    render.Options
	quiet     bool
	verbose   bool
	stdout    io.Writer
}

func runGenerate(cmd *cobra.Command, root string, opts *options) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	rootDir, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("%w: %v", analyzer.ErrInvalidRoot, err)
	}
	if info, err := os.Stat(rootDir); err != nil {
		return fmt.Errorf("%w: %v", analyzer.ErrInvalidRoot, err)
	} else if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", analyzer.ErrInvalidRoot, rootDir)
	}

	cfg, err := config.NewLoader(rootDir, opts.configFile).Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := applyFlags(cmd, cfg, opts); err != nil {
		return err
	}

	format, err := render.ParseFormat(cfg.Output.Format)
	if err != nil {
		return err
	}
	formats, skipped, err := render.Expand(format)
	if err != nil {
		return err
	}

	outputDir, err := filepath.Abs(cfg.Output.Dir)
	if err != nil {
		return fmt.Errorf("failed to resolve output directory: %w", err)
	}

	var progress analyzer.ProgressReporter = &analyzer.NoOpProgressReporter{}
	if !opts.quiet {
		progress = NewCLIProgressReporter(cmd.ErrOrStderr())
	}

	a, err := analyzer.New(cfg.ToAnalyzerConfig(rootDir, skipped), progress)
	if err != nil {
		return fmt.Errorf("failed to create analyzer: %w", err)
	}

	g := &generator{
		analyzer:  a,
		formats:   formats,
		outputDir: outputDir,
		render:    render.Options{OpenAPIYAML: cfg.Output.OpenAPIYAML},
		quiet:     opts.quiet,
		verbose:   opts.verbose,
		stdout:    cmd.OutOrStdout(),
	}

	if err := g.run(ctx); err != nil {
		return err
	}
	if !opts.watch {
		return nil
	}
	return g.watch(ctx, rootDir, cfg.Paths.Ignore)
}

// applyFlags overrides configuration with explicitly set flags and
// revalidates the result.
func applyFlags(cmd *cobra.Command, cfg *config.Config, opts *options) error {
	flags := cmd.Flags()
	if flags.Changed("format") {
		cfg.Output.Format = opts.format
	}
	if flags.Changed("output") {
		cfg.Output.Dir = opts.output
	}
	if flags.Changed("name") {
		cfg.Output.ProjectName = opts.name
	}
	if flags.Changed("openapi-yaml") {
		cfg.Output.OpenAPIYAML = opts.openAPIYAML
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}
	return nil
}

// run analyzes the project once and writes every requested format.
func (g *generator) run(ctx context.Context) error {
	m, stats, err := g.analyzer.Run(ctx)
	if err != nil {
		return err
	}

	written, err := render.WriteAll(g.outputDir, g.formats, m, g.render)
	if err != nil {
		return err
	}

	printSummary(g.stdout, m, stats, written, g.quiet, g.verbose)
	return nil
}

// watch regenerates on every debounced batch of source changes until ctx
// is cancelled. The watcher is paused while a run is in progress so changes
// made meanwhile arrive as one batch afterwards.
func (g *generator) watch(ctx context.Context, rootDir string, ignore []string) error {
	w, err := watcher.NewFileWatcher(watcher.Options{
		Root:       rootDir,
		Extensions: []string{".py"},
		Ignore:     ignore,
	})
	if err != nil {
		return fmt.Errorf("failed to start watch mode: %w", err)
	}
	defer w.Stop()

	changes := make(chan []string, 1)
	if err := w.Start(ctx, func(files []string) {
		select {
		case changes <- files:
		default:
			// A regeneration is already pending and covers these files
		}
	}); err != nil {
		return fmt.Errorf("failed to start watch mode: %w", err)
	}

	if !g.quiet {
		fmt.Fprintln(g.stdout, "Watching for changes (Ctrl+C to stop)...")
	}

	for {
		select {
		case <-ctx.Done():
			if !g.quiet {
				fmt.Fprintln(g.stdout, "Watch mode stopped")
			}
			return nil

		case files := <-changes:
			w.Pause()
			slog.Info("source changed, regenerating", "files", files)
			if err := g.run(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				// Keep watching; the next change may fix it
				slog.Error("regeneration failed", "error", err)
			}
			w.Resume()
		}
	}
}

// printSummary reports written files and warning counts per kind. Verbose
// output lists every diagnostic, notes included.
func printSummary(w io.Writer, m *model.Model, stats *analyzer.Stats, written []string, quiet, verbose bool) {
	if !quiet {
		fmt.Fprintf(w, "✓ Documented %s endpoints and %s schemas from %s files in %.1fs\n",
			formatNumber(stats.Endpoints),
			formatNumber(stats.Schemas),
			formatNumber(stats.FilesDiscovered-stats.FilesSkipped),
			stats.Duration.Seconds())
		for _, path := range written {
			fmt.Fprintf(w, "  Wrote %s\n", path)
		}
	}

	counts := make(map[diag.Kind]int)
	warnings := 0
	for _, d := range m.Warnings {
		if d.Severity == diag.SeverityWarning {
			counts[d.Kind]++
			warnings++
		}
	}

	if warnings > 0 {
		kinds := make([]string, 0, len(counts))
		for k := range counts {
			kinds = append(kinds, string(k))
		}
		sort.Strings(kinds)

		fmt.Fprintf(w, "⚠ %s warnings:\n", formatNumber(warnings))
		for _, k := range kinds {
			fmt.Fprintf(w, "  %-22s %s\n", k, formatNumber(counts[diag.Kind(k)]))
		}
	}

	if verbose {
		for _, d := range m.Warnings {
			fmt.Fprintf(w, "  %s %s\n", d.Severity, d)
		}
	}
}
