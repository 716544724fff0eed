package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader provides configuration loading capabilities.
type Loader interface {
	// Load loads configuration from file and environment variables.
	// Priority: defaults → config file → environment variables (env wins)
	Load() (*Config, error)
}

type loader struct {
	rootDir    string
	configFile string
}

// NewLoader creates a new configuration loader for the given root directory.
// A non-empty configFile is read instead of searching .docmint/ and must
// exist.
func NewLoader(rootDir, configFile string) Loader {
	return &loader{
		rootDir:    rootDir,
		configFile: configFile,
	}
}

// Load loads configuration with the following priority (highest to lowest):
// 1. Environment variables (DOCMINT_*)
// 2. Config file (.docmint/config.yml or .docmint/config.yaml)
// 3. Default values
func (l *loader) Load() (*Config, error) {
	v := viper.New()

	if l.configFile != "" {
		if _, err := os.Stat(l.configFile); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		v.SetConfigFile(l.configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(filepath.Join(l.rootDir, DirName))
	}

	// Replace . with _ in env var names (e.g., DOCMINT_OUTPUT_FORMAT)
	v.SetEnvPrefix("DOCMINT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	bindEnv(v)

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is acceptable - we'll use defaults + env vars
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// bindEnv registers every key so AutomaticEnv sees it during Unmarshal.
func bindEnv(v *viper.Viper) {
	// Paths configuration
	v.BindEnv("paths.include")
	v.BindEnv("paths.ignore")

	// Analysis configuration
	v.BindEnv("analysis.workers")
	v.BindEnv("analysis.route_policy")
	v.BindEnv("analysis.handler_bases")
	v.BindEnv("analysis.schema_bases")
	v.BindEnv("analysis.model_bases")

	// Output configuration
	v.BindEnv("output.format")
	v.BindEnv("output.dir")
	v.BindEnv("output.project_name")
	v.BindEnv("output.openapi_yaml")
}

// setDefaults configures viper with default values.
func setDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("paths.include", defaults.Paths.Include)
	v.SetDefault("paths.ignore", defaults.Paths.Ignore)

	v.SetDefault("analysis.workers", defaults.Analysis.Workers)
	v.SetDefault("analysis.route_policy", defaults.Analysis.RoutePolicy)
	v.SetDefault("analysis.handler_bases", []string{})
	v.SetDefault("analysis.schema_bases", []string{})
	v.SetDefault("analysis.model_bases", []string{})

	v.SetDefault("output.format", defaults.Output.Format)
	v.SetDefault("output.dir", defaults.Output.Dir)
	v.SetDefault("output.project_name", defaults.Output.ProjectName)
	v.SetDefault("output.openapi_yaml", defaults.Output.OpenAPIYAML)
}

// LoadConfigFromDir loads configuration from a specific directory.
func LoadConfigFromDir(rootDir string) (*Config, error) {
	return NewLoader(rootDir, "").Load()
}
