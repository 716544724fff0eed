// Package config loads docmint's project configuration.
//
// Configuration hierarchy (highest to lowest priority):
//  1. Command-line flags (applied by the CLI)
//  2. Environment variables (DOCMINT_*)
//  3. Project config (.docmint/config.yml or .docmint/config.yaml)
//  4. Built-in defaults
//
// Nested keys map to environment variables with underscores, for example
// DOCMINT_ANALYSIS_ROUTE_POLICY. List values accept comma-separated strings.
package config

import (
	"github.com/mvp-joe/docmint/internal/analyzer"
	"github.com/mvp-joe/docmint/internal/diag"
)

// DirName is the per-project configuration directory.
const DirName = ".docmint"

// Config represents the complete docmint configuration.
type Config struct {
	Paths    PathsConfig    `yaml:"paths" mapstructure:"paths"`
	Analysis AnalysisConfig `yaml:"analysis" mapstructure:"analysis"`
	Output   OutputConfig   `yaml:"output" mapstructure:"output"`
}

// PathsConfig defines which files to analyze and which to ignore.
type PathsConfig struct {
	Include []string `yaml:"include" mapstructure:"include"` // glob patterns for source files
	Ignore  []string `yaml:"ignore" mapstructure:"ignore"`   // glob patterns to skip
}

// AnalysisConfig tunes the resolvers.
type AnalysisConfig struct {
	Workers      int      `yaml:"workers" mapstructure:"workers"`             // parse pool size, 0 = one per CPU
	RoutePolicy  string   `yaml:"route_policy" mapstructure:"route_policy"`   // kebab, snake or lower
	HandlerBases []string `yaml:"handler_bases" mapstructure:"handler_bases"` // extra view base classes
	SchemaBases  []string `yaml:"schema_bases" mapstructure:"schema_bases"`   // extra serializer base classes
	ModelBases   []string `yaml:"model_bases" mapstructure:"model_bases"`     // extra pydantic-style base classes
}

// OutputConfig controls the generated files.
type OutputConfig struct {
	Format      string `yaml:"format" mapstructure:"format"`             // markdown, html, pdf, openapi, postman or all
	Dir         string `yaml:"dir" mapstructure:"dir"`                   // output directory, relative to the working directory
	ProjectName string `yaml:"project_name" mapstructure:"project_name"` // display name, defaults to the root's base name
	OpenAPIYAML bool   `yaml:"openapi_yaml" mapstructure:"openapi_yaml"` // write openapi.yaml instead of openapi.json
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			Include: []string{"**/*.py"},
			Ignore: []string{
				".git/**",
				".venv/**",
				"venv/**",
				".tox/**",
				"node_modules/**",
				"__pycache__/**",
				"**/migrations/**",
				"build/**",
				"dist/**",
			},
		},
		Analysis: AnalysisConfig{
			Workers:     0,
			RoutePolicy: "kebab",
		},
		Output: OutputConfig{
			Format: "markdown",
			Dir:    "docs",
		},
	}
}

// ToAnalyzerConfig converts a Config to an analyzer.Config.
// The rootDir parameter specifies the project to analyze; extra carries
// diagnostics raised before the run, such as skipped output formats.
func (c *Config) ToAnalyzerConfig(rootDir string, extra []diag.Diagnostic) *analyzer.Config {
	return &analyzer.Config{
		RootDir:      rootDir,
		ProjectName:  c.Output.ProjectName,
		Include:      c.Paths.Include,
		Ignore:       c.Paths.Ignore,
		Workers:      c.Analysis.Workers,
		RoutePolicy:  c.Analysis.RoutePolicy,
		HandlerBases: c.Analysis.HandlerBases,
		SchemaBases:  c.Analysis.SchemaBases,
		ModelBases:   c.Analysis.ModelBases,
		Diagnostics:  extra,
	}
}
