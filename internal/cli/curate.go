package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/ralt/apm/internal/curation"
	"github.com/ralt/apm/internal/index"
	"github.com/ralt/apm/internal/models"
	"github.com/ralt/apm/internal/signer"
	"github.com/ralt/apm/internal/utils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// PublicKeyFile is written next to signed reports
const PublicKeyFile = "curation-key.asc"

// engine loads the configured policy
func (a *app) engine() (*curation.Engine, error) {
	policy, err := curation.LoadPolicy(a.cfg.PolicyFile)
	if err != nil {
		return nil, err
	}
	return curation.NewEngine(*policy, curation.WithClock(a.now)), nil
}

// decide evaluates packageID from the cached indexes against the policy.
// A package missing from every index cannot be vetted and is an error.
func (a *app) decide(ctx context.Context, packageID string) (curation.Decision, error) {
	engine, err := a.engine()
	if err != nil {
		return curation.Decision{}, err
	}

	pkgs, err := a.loadIndex(ctx, nil)
	if err != nil {
		return curation.Decision{}, err
	}

	meta, ok := index.Find(pkgs, packageID)
	if !ok {
		return curation.Decision{}, fmt.Errorf("%s not found in any cached repository index", packageID)
	}
	return engine.Evaluate(meta), nil
}

type curateOptions struct {
	indexes        []string
	output         string
	signKey        string
	signPassphrase string
	watch          bool
}

func newCurateCmd(env *environment) *cobra.Command {
	var opts curateOptions

	cmd := &cobra.Command{
		Use:   "curate",
		Short: "Evaluate repository indexes against the curation policy",
		Long: `Curate evaluates every package of the given index-v1.json files (or of
every index cached by fdroidcl) against the curation policy and writes a
report of approved and rejected packages.

An output path ending in .gz is gzip-compressed. With --sign-key a detached
armored OpenPGP signature is written next to the report. With --watch the
report is regenerated whenever the policy file changes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := env.load(cmd)
			if err != nil {
				return err
			}
			return a.runCuration(cmd, &opts)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.indexes, "index", "i", nil, "Index files to curate, in priority order (default: every index under cache_dir)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "curated_packages.json", "Report path (.json or .json.gz)")
	cmd.Flags().StringVarP(&opts.signKey, "sign-key", "k", "", "Path to OpenPGP private key for signing the report")
	cmd.Flags().StringVarP(&opts.signPassphrase, "sign-passphrase", "p", "", "OpenPGP key passphrase")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "Regenerate the report when the policy changes")

	return cmd
}

func (a *app) runCuration(cmd *cobra.Command, opts *curateOptions) error {
	var s signer.Signer
	if opts.signKey != "" {
		gpg, err := signer.NewGPGSigner(utils.ExpandHome(opts.signKey), opts.signPassphrase)
		if err != nil {
			return fmt.Errorf("failed to initialize GPG signer: %w", err)
		}
		s = gpg
		logrus.Info("GPG signer initialized")

		if err := exportPublicKey(gpg, opts.output); err != nil {
			return err
		}
	}

	pkgs, err := a.loadIndex(cmd.Context(), opts.indexes)
	if err != nil {
		return err
	}
	if len(pkgs) == 0 {
		logrus.Warn("No packages found in repository indexes")
		return nil
	}
	logrus.Infof("Loaded %d packages", len(pkgs))

	source := strings.Join(opts.indexes, ",")
	if source == "" {
		source = a.cfg.CacheDir
	}

	if !opts.watch {
		engine, err := a.engine()
		if err != nil {
			return err
		}
		return a.writeCuration(engine, pkgs, source, opts.output, s)
	}

	w, err := curation.NewWatcher(a.cfg.PolicyFile, curation.DefaultDebounce, curation.WithClock(a.now))
	if err != nil {
		return err
	}
	defer w.Stop()

	if err := a.writeCuration(w.Engine(), pkgs, source, opts.output, s); err != nil {
		return err
	}

	reloads, err := w.Start()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logrus.Infof("Watching %s for changes, press Ctrl-C to stop", a.cfg.PolicyFile)
	for {
		select {
		case <-ctx.Done():
			return nil
		case engine := <-reloads:
			if err := a.writeCuration(engine, pkgs, source, opts.output, s); err != nil {
				logrus.Errorf("Failed to regenerate report: %v", err)
			}
		}
	}
}

// exportPublicKey writes the signing key next to the report so consumers
// can verify report.asc
func exportPublicKey(s signer.Signer, output string) error {
	key, err := s.GetPublicKey()
	if err != nil {
		return fmt.Errorf("failed to export public key: %w", err)
	}
	path := filepath.Join(filepath.Dir(output), PublicKeyFile)
	if err := utils.WriteFile(path, key, 0644); err != nil {
		return models.NewError(models.ErrPersist, path, err)
	}
	logrus.Infof("Public key written: %s", path)
	return nil
}

func (a *app) writeCuration(engine *curation.Engine, pkgs []models.PackageMetadata, source, output string, s signer.Signer) error {
	report := curation.Curate(engine, pkgs)
	report.Source = source

	digest, err := utils.FileSHA256(a.cfg.PolicyFile)
	if err != nil {
		logrus.Warnf("Could not hash policy file: %v", err)
	}
	report.PolicyDigest = digest

	if err := curation.WriteReport(output, report, s); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Approved: %d\n", len(report.Approved))
	fmt.Fprintf(a.out, "Rejected: %d\n", len(report.Rejected))

	counts := report.RejectionsByRule()
	rules := make([]string, 0, len(counts))
	for rule := range counts {
		rules = append(rules, string(rule))
	}
	sort.Strings(rules)
	for _, rule := range rules {
		fmt.Fprintf(a.out, "  %-30s %d\n", rule, counts[curation.Rule(rule)])
	}
	return nil
}

func newCheckCmd(env *environment) *cobra.Command {
	var indexes []string

	cmd := &cobra.Command{
		Use:   "check <name>",
		Short: "Check one package against the curation policy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := env.load(cmd)
			if err != nil {
				return err
			}

			packageID, err := a.resolve(args[0])
			if err != nil {
				return err
			}

			engine, err := a.engine()
			if err != nil {
				return err
			}
			pkgs, err := a.loadIndex(cmd.Context(), indexes)
			if err != nil {
				return err
			}
			meta, ok := index.Find(pkgs, packageID)
			if !ok {
				return fmt.Errorf("%s not found in repository index", packageID)
			}

			d := engine.Evaluate(meta)
			if !d.Allowed {
				fmt.Fprintf(a.out, "✗ %s: %s\n", packageID, d.Reason)
				return fmt.Errorf("%s rejected by curation policy (%s)", packageID, d.Rule)
			}
			fmt.Fprintf(a.out, "✓ %s: package approved\n", packageID)
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&indexes, "index", "i", nil, "Index files to read (default: every index under cache_dir)")

	return cmd
}
