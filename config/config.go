package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	logger "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/nextver/nextver/domain"
)

// Config holds the persistent defaults for a run. Every field can be
// overridden by a CLI flag.
type Config struct {
	Registry       string      `yaml:"registry"`
	Target         string      `yaml:"target"`
	Concurrency    int         `yaml:"concurrency"`
	Sections       []string    `yaml:"sections"`
	Filter         []string    `yaml:"filter"`
	Prerelease     FilterValue `yaml:"prerelease"`
	Greatest       FilterValue `yaml:"greatest"`
	ReleaseOnly    FilterValue `yaml:"release_only"`
	AllowDowngrade FilterValue `yaml:"allow_downgrade"`
	GitHubToken    string      `yaml:"github_token"` // Inline, ${ENV_VAR}, or file path
}

// FilterValue is a policy field accepting either a boolean ("applies to all
// packages") or a list of package names.
type FilterValue struct {
	set   bool
	all   bool
	names []string
}

// UnmarshalYAML decodes a bool or a string list into the filter.
func (f *FilterValue) UnmarshalYAML(node *yaml.Node) error {
	var all bool
	if err := node.Decode(&all); err == nil {
		f.set = true
		f.all = all
		return nil
	}

	var names []string
	if err := node.Decode(&names); err == nil {
		f.set = true
		f.names = names
		return nil
	}

	return fmt.Errorf("line %d: expected a boolean or a list of package names", node.Line)
}

// Filter converts the value into the domain's package filter.
func (f FilterValue) Filter() domain.PackageFilter {
	switch {
	case !f.set:
		return domain.NoPackages()
	case f.all:
		return domain.AllPackages()
	case len(f.names) > 0:
		return domain.SpecificPackages(f.names...)
	default:
		return domain.NoPackages()
	}
}

// envVarPattern matches ${VAR_NAME} placeholders.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)}`)

// Load reads and parses a configuration file, expanding environment variables
// and resolving token file paths.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
	}

	var cfg Config
	if unmarshalErr := yaml.Unmarshal(data, &cfg); unmarshalErr != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", unmarshalErr)
	}

	cfg.GitHubToken = resolveToken(cfg.GitHubToken)

	if validateErr := validate(&cfg); validateErr != nil {
		return nil, validateErr
	}

	return &cfg, nil
}

// FindConfigFile searches for a configuration file in standard locations.
// Returns the path to the first file found or an error if none is found.
func FindConfigFile() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = ""
	}

	locations := []string{"."}
	if homeDir != "" {
		locations = append(locations, homeDir, filepath.Join(homeDir, ".config"))
	}

	patterns := []string{
		".nextver.yaml",
		".nextver.yml",
		"nextver.yaml",
		"nextver.yml",
	}

	for _, loc := range locations {
		for _, pat := range patterns {
			p := filepath.Join(loc, pat)
			if _, statErr := os.Stat(p); statErr == nil {
				return p, nil
			}
		}
	}

	return "", errors.New("config file not found in default locations")
}

// resolveToken expands environment variable references (${VAR}) and, if the
// resulting string is a path to an existing file, reads the token from the file.
func resolveToken(raw string) string {
	if raw == "" {
		return raw
	}

	resolved := envVarPattern.ReplaceAllStringFunc(raw, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		logger.Warnf("Environment variable %q is not set", varName)
		return ""
	})

	if _, statErr := os.Stat(resolved); statErr == nil {
		data, readErr := os.ReadFile(resolved)
		if readErr != nil {
			logger.Warnf("Failed to read token file %q: %v", resolved, readErr)
			return resolved
		}
		logger.Infof("Read token from file %q", resolved)
		return strings.TrimSpace(string(data))
	}

	return resolved
}

// validate checks the configured values that have a constrained shape.
func validate(cfg *Config) error {
	if _, err := domain.ParseCeiling(cfg.Target); err != nil {
		return err
	}
	if cfg.Concurrency < 0 {
		return errors.New("concurrency must not be negative")
	}
	for _, section := range cfg.Sections {
		if !isKnownSection(section) {
			return fmt.Errorf("unknown section %q", section)
		}
	}
	return nil
}

func isKnownSection(name string) bool {
	switch name {
	case "dependencies", "devDependencies", "peerDependencies", "optionalDependencies":
		return true
	default:
		return false
	}
}
