package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// options holds the root command's flags.
type options struct {
	configFile  string
	format      string
	output      string
	name        string
	verbose     bool
	quiet       bool
	watch       bool
	openAPIYAML bool
}

// NewRootCommand builds the docmint command tree.
func NewRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "docmint [root]",
		Short: "Generate API documentation from a Django REST Framework project",
		Long: `docmint statically analyzes a Django REST Framework project and writes
API documentation without importing or running any of its code.

It discovers views, viewsets and @api_view functions, resolves their routes
from the project's URL configuration, and binds request and response
serializers and query parameters to every HTTP method.

Examples:
  # Document the current directory as Markdown into ./docs
  docmint

  # Write every supported format for another project
  docmint ~/src/shop --format all --output build/api

  # OpenAPI as YAML, regenerated whenever a Python file changes
  docmint --format openapi --openapi-yaml --watch
`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(cmd.ErrOrStderr(), opts)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			return runGenerate(cmd, root, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.format, "format", "f", "", "output format: markdown, html, pdf, openapi, postman or all")
	flags.StringVarP(&opts.output, "output", "o", "", "output directory (default \"docs\")")
	flags.StringVarP(&opts.name, "name", "n", "", "project display name (default: root directory name)")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "disable progress bars and non-error output")
	flags.BoolVarP(&opts.watch, "watch", "w", false, "regenerate whenever a source file changes")
	flags.BoolVar(&opts.openAPIYAML, "openapi-yaml", false, "write openapi.yaml instead of openapi.json")

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default is <root>/.docmint/config.yml)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(newVersionCommand())
	return cmd
}

// setupLogging installs the process-wide slog handler on stderr.
func setupLogging(w io.Writer, opts *options) {
	level := slog.LevelInfo
	switch {
	case opts.verbose:
		level = slog.LevelDebug
	case opts.quiet:
		level = slog.LevelWarn
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// Execute runs the root command and returns the process exit code.
// This is called by main.main().
func Execute(ctx context.Context) int {
	cmd := NewRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "Interrupted")
			return 130
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}
