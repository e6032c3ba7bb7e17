package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ralt/apm/internal/index"
	"github.com/ralt/apm/internal/models"
	"github.com/ralt/apm/internal/utils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type installOptions struct {
	device      string
	checkPolicy bool
}

func (o *installOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.device, "device", "d", "", "Target device serial")
	cmd.Flags().BoolVar(&o.checkPolicy, "check-policy", false, "Refuse packages the curation policy rejects")
}

// install resolves name and hands the package ID to fdroidcl
func (a *app) install(cmd *cobra.Command, name string, opts installOptions) error {
	packageID, err := a.resolve(name)
	if err != nil {
		return err
	}

	if opts.checkPolicy {
		d, err := a.decide(cmd.Context(), packageID)
		if err != nil {
			return err
		}
		if !d.Allowed {
			return fmt.Errorf("%s rejected by curation policy: %s", packageID, d.Reason)
		}
		logrus.Debugf("%s passes curation policy", packageID)
	}

	logrus.Infof("Installing %s...", packageID)
	if err := a.fdroid.Install(cmd.Context(), packageID, opts.device); err != nil {
		return fmt.Errorf("failed to install %s: %w", packageID, err)
	}
	fmt.Fprintf(a.out, "Successfully installed %s\n", packageID)
	return nil
}

func newInstallCmd(env *environment) *cobra.Command {
	var opts installOptions

	cmd := &cobra.Command{
		Use:   "install <name>",
		Short: "Install a package by friendly name or package ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := env.load(cmd)
			if err != nil {
				return err
			}
			return a.install(cmd, args[0], opts)
		},
	}

	opts.addFlags(cmd)

	return cmd
}

// readPackageList reads one name per line, skipping blanks and # comments
func readPackageList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("package list file not found: %w", err)
	}
	defer f.Close()

	var names []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names = append(names, line)
	}
	return names, scanner.Err()
}

func newBatchInstallCmd(env *environment) *cobra.Command {
	var opts installOptions

	cmd := &cobra.Command{
		Use:   "batch-install <package-list-file>",
		Short: "Install every package listed in a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := env.load(cmd)
			if err != nil {
				return err
			}

			names, err := readPackageList(args[0])
			if err != nil {
				return err
			}

			var failed []string
			for _, name := range names {
				if err := cmd.Context().Err(); err != nil {
					return err
				}
				if err := a.install(cmd, name, opts); err != nil {
					logrus.Warnf("%v", err)
					failed = append(failed, name)
				}
			}

			fmt.Fprintf(a.out, "Installed %d/%d packages\n", len(names)-len(failed), len(names))
			if len(failed) > 0 {
				return fmt.Errorf("failed to install: %s", strings.Join(failed, ", "))
			}
			return nil
		},
	}

	opts.addFlags(cmd)

	return cmd
}

func newSearchCmd(env *environment) *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search repositories for packages",
		Long: `Search delegates to fdroidcl. With --category the locally cached
repository indexes are searched instead, since fdroidcl cannot filter by
category.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := env.load(cmd)
			if err != nil {
				return err
			}

			query := ""
			if len(args) == 1 {
				query = args[0]
			}

			if category == "" {
				out, err := a.fdroid.Search(cmd.Context(), query)
				if err != nil {
					return err
				}
				if out != "" {
					fmt.Fprintln(a.out, out)
				}
				return nil
			}

			pkgs, err := a.loadIndex(cmd.Context(), nil)
			if err != nil {
				return err
			}
			matches := filterPackages(pkgs, query, category)
			if len(matches) == 0 {
				fmt.Fprintln(a.out, "No packages found")
				return nil
			}
			for _, p := range matches {
				fmt.Fprintf(a.out, "%-40s %s\n", p.PackageID, p.Name)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "Filter by index category")

	return cmd
}

// filterPackages matches query against ID and name, and category exactly,
// both case-insensitively
func filterPackages(pkgs []models.PackageMetadata, query, category string) []models.PackageMetadata {
	query = strings.ToLower(query)
	var out []models.PackageMetadata
	for _, p := range pkgs {
		if query != "" &&
			!strings.Contains(strings.ToLower(p.PackageID), query) &&
			!strings.Contains(strings.ToLower(p.Name), query) {
			continue
		}
		if category != "" && !containsFold(p.Categories, category) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func containsFold(values []string, s string) bool {
	for _, v := range values {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// loadIndex reads the given index files, or every index under the cache
// directory when paths is empty. The cache directory is read once per
// invocation.
func (a *app) loadIndex(ctx context.Context, paths []string) ([]models.PackageMetadata, error) {
	if len(paths) > 0 {
		expanded := make([]string, len(paths))
		for i, p := range paths {
			expanded[i] = utils.ExpandHome(p)
		}
		return index.LoadAll(ctx, expanded)
	}

	if a.cached != nil {
		return a.cached, nil
	}
	paths, err := index.Scan(ctx, a.cfg.CacheDir)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, models.NewError(models.ErrConfigLoad, a.cfg.CacheDir,
			fmt.Errorf("no repository index found, run 'apm update' first"))
	}
	pkgs, err := index.LoadAll(ctx, paths)
	if err != nil {
		return nil, err
	}
	a.cached = pkgs
	return pkgs, nil
}

func newDevicesCmd(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List connected devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := env.load(cmd)
			if err != nil {
				return err
			}
			if !a.adb.Available() {
				return models.NewError(models.ErrExternal, "adb",
					fmt.Errorf("adb not found, install Android SDK platform-tools"))
			}

			devices, err := a.adb.Devices(cmd.Context())
			if err != nil {
				return err
			}
			if len(devices) == 0 {
				fmt.Fprintln(a.out, "No devices connected")
				return nil
			}

			fmt.Fprintln(a.out, "Connected devices:")
			for _, d := range devices {
				fmt.Fprintf(a.out, "  %-20s %s\n", d, a.adb.DeviceInfo(cmd.Context(), d))
			}
			return nil
		},
	}
}
