package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ralt/apm/internal/external"
	"github.com/ralt/apm/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newUpdateCmd(env *environment) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Refresh repository indexes and update device packages",
		Long: `Update checks which configured repositories are reachable, refreshes
the fdroidcl indexes, then offers the available updates on every connected
device. Device updates still run after a failed refresh unless
updates.continue_on_repo_failure is false.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := env.load(cmd)
			if err != nil {
				return err
			}
			return a.update(cmd.Context(), yes)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Install updates without asking")

	return cmd
}

func (a *app) update(ctx context.Context, yes bool) error {
	repos := a.cfg.EnabledRepositories()
	if len(repos) == 0 {
		return models.NewError(models.ErrInvalidConfig, a.cfg.Source,
			errors.New("no repositories configured or all repositories are disabled"))
	}
	logrus.Infof("Found %d enabled repositories in configuration", len(repos))

	var working, failed []string
	for _, repo := range repos {
		if err := a.prober.Probe(ctx, repo.URL); err != nil {
			logrus.Warnf("%s is unreachable, skipping: %v", repo.Name, err)
			failed = append(failed, repo.Name)
			continue
		}
		logrus.Infof("%s is reachable", repo.Name)
		working = append(working, repo.Name)
	}

	var refreshErr error
	if len(working) == 0 {
		refreshErr = errors.New("no repositories are currently reachable")
	} else if err := a.fdroid.Update(ctx); err != nil {
		refreshErr = fmt.Errorf("repository update failed: %w", err)
	} else {
		fmt.Fprintln(a.out, "Repository indices updated successfully")
	}

	if len(failed) > 0 {
		fmt.Fprintf(a.out, "Unreachable repositories: %s\n", strings.Join(failed, ", "))
	}
	if len(working) > 0 {
		fmt.Fprintf(a.out, "Working repositories: %s\n", strings.Join(working, ", "))
	}

	if refreshErr != nil {
		if !a.cfg.ContinueOnRepoFailure() {
			return refreshErr
		}
		logrus.Warnf("%v, continuing with cached repository data", refreshErr)
	}

	if err := a.updateDevices(ctx, yes); err != nil {
		return err
	}
	return refreshErr
}

// updateDevices offers the available updates on each connected device.
// A failure on one device does not stop the others.
func (a *app) updateDevices(ctx context.Context, yes bool) error {
	if !a.adb.Available() {
		logrus.Warn("adb not found, skipping device updates")
		return nil
	}

	devices, err := a.adb.Devices(ctx)
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		fmt.Fprintln(a.out, "No Android devices connected")
		return nil
	}

	fmt.Fprintf(a.out, "Found %d connected device(s)\n", len(devices))
	for _, device := range devices {
		fmt.Fprintf(a.out, "\nChecking device: %s (%s)\n", device, a.adb.DeviceInfo(ctx, device))
		if err := a.updateDevice(ctx, device, yes); err != nil {
			logrus.Warnf("Error updating device %s: %v", device, err)
		}
	}
	return nil
}

func (a *app) updateDevice(ctx context.Context, device string, yes bool) error {
	updates, err := external.AvailableUpdates(ctx, a.adb, a.fdroid, device)
	if err != nil {
		return err
	}
	if len(updates) == 0 {
		fmt.Fprintln(a.out, "All packages are up to date")
		return nil
	}

	fmt.Fprintf(a.out, "Found %d package updates available:\n", len(updates))
	for _, u := range updates {
		fmt.Fprintf(a.out, "  %s: %s -> %s\n", u.Package, u.CurrentVersion, u.LatestVersion)
	}

	if !yes && !a.confirm(fmt.Sprintf("Update %d packages?", len(updates))) {
		return nil
	}

	updated := 0
	for _, u := range updates {
		logrus.Infof("Updating %s...", u.Package)
		if err := a.fdroid.Install(ctx, u.Package, device); err != nil {
			logrus.Warnf("Failed to update %s: %v", u.Package, err)
			continue
		}
		updated++
	}
	fmt.Fprintf(a.out, "Successfully updated %d/%d packages\n", updated, len(updates))
	return nil
}

// confirm asks a yes/no question on the command's input; anything but y
// or yes is a no
func (a *app) confirm(question string) bool {
	fmt.Fprintf(a.out, "%s [y/N]: ", question)
	answer, _ := bufio.NewReader(a.in).ReadString('\n')
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
