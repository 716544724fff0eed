package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gobwas/glob"
	"github.com/mvp-joe/docmint/internal/analysis"
	"github.com/mvp-joe/docmint/internal/render"
)

var (
	// ErrEmptyInclude indicates no include patterns are configured
	ErrEmptyInclude = errors.New("empty include patterns")

	// ErrInvalidPattern indicates a glob pattern that does not compile
	ErrInvalidPattern = errors.New("invalid glob pattern")

	// ErrInvalidWorkers indicates a negative worker count
	ErrInvalidWorkers = errors.New("invalid worker count")

	// ErrInvalidRoutePolicy indicates an unknown route naming policy
	ErrInvalidRoutePolicy = errors.New("invalid route policy")

	// ErrInvalidFormat indicates an unknown output format
	ErrInvalidFormat = errors.New("invalid output format")

	// ErrEmptyOutputDir indicates a missing output directory
	ErrEmptyOutputDir = errors.New("empty output directory")
)

// Validate checks that the configuration is valid and complete.
func Validate(cfg *Config) error {
	var errs []error

	if err := validatePaths(&cfg.Paths); err != nil {
		errs = append(errs, err)
	}

	if err := validateAnalysis(&cfg.Analysis); err != nil {
		errs = append(errs, err)
	}

	if err := validateOutput(&cfg.Output); err != nil {
		errs = append(errs, err)
	}

	return joinErrors(errs)
}

func validatePaths(cfg *PathsConfig) error {
	var errs []error

	if len(cfg.Include) == 0 {
		errs = append(errs, fmt.Errorf("%w: at least one include pattern required", ErrEmptyInclude))
	}

	for _, pattern := range append(append([]string{}, cfg.Include...), cfg.Ignore...) {
		if _, err := glob.Compile(pattern, '/'); err != nil {
			errs = append(errs, fmt.Errorf("%w: %q: %v", ErrInvalidPattern, pattern, err))
		}
	}

	return joinErrors(errs)
}

func validateAnalysis(cfg *AnalysisConfig) error {
	var errs []error

	if cfg.Workers < 0 {
		errs = append(errs, fmt.Errorf("%w: workers cannot be negative, got %d", ErrInvalidWorkers, cfg.Workers))
	}

	if _, err := analysis.ParseRoutePolicy(cfg.RoutePolicy); err != nil {
		errs = append(errs, fmt.Errorf("%w: must be 'kebab', 'snake' or 'lower', got '%s'", ErrInvalidRoutePolicy, cfg.RoutePolicy))
	}

	return joinErrors(errs)
}

func validateOutput(cfg *OutputConfig) error {
	var errs []error

	if _, err := render.ParseFormat(cfg.Format); err != nil {
		errs = append(errs, fmt.Errorf("%w: %v", ErrInvalidFormat, err))
	}

	if strings.TrimSpace(cfg.Dir) == "" {
		errs = append(errs, fmt.Errorf("%w: dir is required", ErrEmptyOutputDir))
	}

	return joinErrors(errs)
}

// joinErrors combines multiple errors into a single error with clear
// formatting. Every error stays matchable with errors.Is.
func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}

	if len(errs) == 1 {
		return errs[0]
	}

	args := make([]any, len(errs))
	for i, err := range errs {
		args[i] = err
	}
	return fmt.Errorf("validation failed:"+strings.Repeat("\n  - %w", len(errs)), args...)
}
