package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	logger "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nextver/nextver/application"
	"github.com/nextver/nextver/config"
	"github.com/nextver/nextver/domain"
	"github.com/nextver/nextver/infrastructure/report"
)

// Sentinel errors turned into exit code 2 by main.
var (
	ErrOutdated        = errors.New("outdated dependencies found")
	ErrNothingToUpdate = errors.New("no updates available")
)

var (
	// Global flags
	configPath  string
	registryURL string
	target      string
	concurrency int
	sections    []string
	filter      []string

	prerelease     bool
	greatest       bool
	releaseOnly    bool
	allowDowngrade bool

	write            bool
	jsonOutput       bool
	verbose          bool
	errorOnOutdated  bool
	errorOnUnchanged bool
)

var rootCmd = &cobra.Command{
	Use:   "nextver [path]",
	Short: "Check package.json dependencies for newer versions",
	Long: `A CLI tool that reads a package.json manifest, queries the npm registry
(and GitHub, for commit- or tag-pinned dependencies), and reports the
next version each dependency could move to under the selected policy.

With --write the manifest is patched in place, keeping range prefixes
and all surrounding formatting intact.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runCheck,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "Path to config file (default: auto-detect)")
	flags.StringVar(&registryURL, "registry", "", "npm registry URL (default: registry.npmjs.org or .npmrc)")
	flags.StringVarP(&target, "target", "t", "", "Highest change to offer: patch, minor, or major (default: major)")
	flags.IntVar(&concurrency, "concurrency", 0, "Maximum concurrent registry requests")
	flags.StringSliceVarP(&sections, "section", "s", nil,
		"Manifest sections to check (default: all dependency sections)")
	flags.StringSliceVarP(&filter, "filter", "f", nil, "Only check the named packages")

	flags.BoolVar(&prerelease, "prerelease", false, "Consider prerelease versions for every package")
	flags.BoolVar(&greatest, "greatest", false, "Pick the highest version instead of the most recently published")
	flags.BoolVar(&releaseOnly, "release-only", false, "Never offer a prerelease, even off a prerelease range")
	flags.BoolVar(&allowDowngrade, "allow-downgrade", false, "Follow the latest tag even when it points below the range")

	flags.BoolVarP(&write, "write", "w", false, "Rewrite package.json with the resolved versions")
	flags.BoolVar(&jsonOutput, "json", false, "Emit JSON instead of the table")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	flags.BoolVar(&errorOnOutdated, "error-on-outdated", false, "Exit with code 2 when updates are available")
	flags.BoolVar(&errorOnUnchanged, "error-on-unchanged", false, "Exit with code 2 when nothing needs an update")
}

func runCheck(cmd *cobra.Command, args []string) error {
	if verbose {
		logger.SetLevel(logger.DebugLevel)
	}
	if errorOnOutdated && errorOnUnchanged {
		return errors.New("--error-on-outdated and --error-on-unchanged are mutually exclusive")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	mergeFlags(cmd, cfg)

	manifestPath, projectDir, err := resolveManifestPath(args)
	if err != nil {
		return err
	}

	policy, err := buildPolicy(cmd, cfg)
	if err != nil {
		return err
	}

	service, err := injectCheckService(cfg, projectDir)
	if err != nil {
		return err
	}

	result, runErr := service.Run(cmd.Context(), application.CheckOptions{
		ManifestPath: manifestPath,
		Sections:     cfg.Sections,
		Filter:       cfg.Filter,
		Policy:       policy,
		Concurrency:  cfg.Concurrency,
		Write:        write,
	})

	reporter := report.NewReporter(cmd.OutOrStdout(), jsonOutput)
	if runErr != nil {
		// a failed manifest rewrite still carries the computed results
		if result != nil && len(result.Resolutions) > 0 {
			_ = reporter.PrintResults(result.Resolutions)
		}
		if jsonOutput {
			_ = reporter.PrintError(runErr)
		}
		return runErr
	}

	if len(result.Resolutions) == 0 {
		if printErr := reporter.PrintMessage("All dependencies match their policy ceilings"); printErr != nil {
			return printErr
		}
		if errorOnUnchanged {
			return ErrNothingToUpdate
		}
		return nil
	}

	if printErr := reporter.PrintResults(result.Resolutions); printErr != nil {
		return printErr
	}
	if result.Written {
		logger.Infof("[nextver] Updated %d of %d dependencies in %s",
			len(result.Resolutions), result.Total, manifestPath)
	}
	if errorOnOutdated {
		return ErrOutdated
	}
	return nil
}

// loadConfig reads the config file named by --config, or the first one found
// in the default locations. Running without any config file is fine.
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.Load(configPath)
	}

	found, err := config.FindConfigFile()
	if err != nil {
		//nolint:exhaustruct // empty config means flag defaults apply
		return &config.Config{}, nil
	}
	logger.Debugf("[nextver] Using config file %s", found)
	return config.Load(found)
}

// mergeFlags overlays explicitly set flags on top of the config file values.
func mergeFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("registry") {
		cfg.Registry = registryURL
	}
	if flags.Changed("target") {
		cfg.Target = target
	}
	if flags.Changed("concurrency") {
		cfg.Concurrency = concurrency
	}
	if flags.Changed("section") {
		cfg.Sections = sections
	}
	if flags.Changed("filter") {
		cfg.Filter = filter
	}
}

// buildPolicy combines the config file policy with the boolean CLI switches.
// A switch given on the command line wins over the config file for that flag.
func buildPolicy(cmd *cobra.Command, cfg *config.Config) (domain.Policy, error) {
	ceiling, err := domain.ParseCeiling(cfg.Target)
	if err != nil {
		return domain.Policy{}, err
	}

	pick := func(name string, flagValue bool, configured config.FilterValue) domain.PackageFilter {
		if cmd.Flags().Changed(name) {
			if flagValue {
				return domain.AllPackages()
			}
			return domain.NoPackages()
		}
		return configured.Filter()
	}

	return domain.Policy{
		Prerelease:     pick("prerelease", prerelease, cfg.Prerelease),
		Greatest:       pick("greatest", greatest, cfg.Greatest),
		ReleaseOnly:    pick("release-only", releaseOnly, cfg.ReleaseOnly),
		AllowDowngrade: pick("allow-downgrade", allowDowngrade, cfg.AllowDowngrade),
		Ceiling:        ceiling,
	}, nil
}

// resolveManifestPath turns the optional positional argument into a manifest
// file path plus the project directory holding any .npmrc.
func resolveManifestPath(args []string) (string, string, error) {
	path := "."
	if len(args) == 1 {
		path = args[0]
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", "", fmt.Errorf("failed to access %q: %w", path, err)
	}

	if info.IsDir() {
		return filepath.Join(path, "package.json"), path, nil
	}
	return path, filepath.Dir(path), nil
}
