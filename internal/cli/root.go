package cli

import (
	"context"
	"io"
	"time"

	"github.com/ralt/apm/internal/config"
	"github.com/ralt/apm/internal/external"
	"github.com/ralt/apm/internal/models"
	"github.com/ralt/apm/internal/registry"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// repoProber checks repository reachability
type repoProber interface {
	Probe(ctx context.Context, repoURL string) error
}

// environment holds the process-level collaborators commands are built on.
// Tests replace them with fakes.
type environment struct {
	runner external.Runner
	prober repoProber
	now    func() time.Time
}

func defaultEnvironment() *environment {
	return &environment{
		runner: external.NewExecRunner(),
		prober: external.NewProber(10*time.Second, 2),
		now:    time.Now,
	}
}

// app is what a command needs once the config has been read
type app struct {
	cfg      *models.Config
	registry *registry.Registry
	fdroid   *external.FDroidCL
	adb      *external.ADB
	prober   repoProber
	now      func() time.Time
	out      io.Writer
	in       io.Reader

	// packages from the cache directory, once loaded
	cached []models.PackageMetadata
}

func (env *environment) load(cmd *cobra.Command) (*app, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	reg, err := registry.Open(cfg.MappingsFile)
	if err != nil {
		// The registry is empty but usable; package IDs still resolve
		logrus.Warnf("Package mappings unavailable: %v", err)
	}

	return &app{
		cfg:      cfg,
		registry: reg,
		fdroid:   external.NewFDroidCL(env.runner, cfg.FDroidCLPath),
		adb:      external.NewADB(env.runner, external.FindADB(cfg.ADBPath)),
		prober:   env.prober,
		now:      env.now,
		out:      cmd.OutOrStdout(),
		in:       cmd.InOrStdin(),
	}, nil
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	return newRootCmd(defaultEnvironment())
}

func newRootCmd(env *environment) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "apm",
		Short: "Install FOSS Android apps by friendly name",
		Long: `apm resolves friendly application names to Android package IDs and
installs them through fdroidcl and adb.

Package mappings live in ~/.config/apm/package_mappings.yaml, grouped by
category. A curation policy can restrict which packages are installed by
license, category, anti-features and quality thresholds.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Setup logging
			verbose, _ := cmd.Flags().GetBool("verbose")
			if verbose {
				logrus.SetLevel(logrus.DebugLevel)
			} else {
				logrus.SetLevel(logrus.InfoLevel)
			}
		},
	}

	// Global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Config file (default: ~/.config/apm/config.yaml, then ./config.yaml)")
	rootCmd.PersistentFlags().String("mappings", "", "Package mappings file (overrides mappings_file)")
	rootCmd.PersistentFlags().String("policy", "", "Curation policy file (overrides policy_file)")

	// Add subcommands
	rootCmd.AddCommand(
		newResolveCmd(env),
		newMappingsCmd(env),
		newAddMappingCmd(env),
		newRemoveMappingCmd(env),
		newListCategoriesCmd(env),
		newDebugMappingsCmd(env),
		newInstallCmd(env),
		newBatchInstallCmd(env),
		newSearchCmd(env),
		newUpdateCmd(env),
		newDevicesCmd(env),
		newCurateCmd(env),
		newCheckCmd(env),
		newRepoCmd(env),
	)

	return rootCmd
}
