package main

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/haukened/rr-ifw/internal/ifw/common/log"
	"github.com/haukened/rr-ifw/internal/ifw/config"
	"github.com/haukened/rr-ifw/internal/ifw/domain"
	"github.com/haukened/rr-ifw/internal/ifw/services/batch"
)

// RootOptions holds global flags and the lazily built application.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	build func(*config.AppConfig) (*Application, error)
	app   *Application
}

// close releases the application if one was built.
func (o *RootOptions) close() error {
	if o.app == nil {
		return nil
	}
	err := o.app.Close()
	o.app = nil
	return err
}

// NewRootCommand creates the root command. build is called once, before the
// first subcommand runs.
func NewRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   appName,
		Short: "rr-ifw - Intent Firewall component blocker",
		Long: `Blocks tracking components of installed applications by writing
Intent Firewall rule files and toggling providers through the package manager.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("configuration error: %w", err)
			}
			level := cfg.Log.Level
			if opts.Verbose {
				level = "debug"
			}
			if err := log.Configure(cfg.Env, level); err != nil {
				return fmt.Errorf("logging configuration error: %w", err)
			}
			app, err := opts.build(cfg)
			if err != nil {
				return err
			}
			opts.app = app
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(newBlockTrackersCommand(opts))
	cmd.AddCommand(newUnblockTrackersCommand(opts))
	cmd.AddCommand(newBlockFilteredCommand(opts))
	cmd.AddCommand(newRevertCommand(opts))
	cmd.AddCommand(newApplyAllCommand(opts))
	cmd.AddCommand(newImportLocalCommand(opts))
	cmd.AddCommand(newShowCommand(opts))
	cmd.AddCommand(newTrackersCommand(opts))
	cmd.AddCommand(newStatsCommand(opts))

	return cmd
}

// selection is the package selection shared by batch commands.
type selection struct {
	all    bool
	system bool
}

func (s *selection) bind(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&s.all, "all", false, "every installed package from the inventory")
	cmd.Flags().BoolVar(&s.system, "system", false, "include system packages with --all")
}

func (s *selection) packages(app *Application, args []string) ([]string, error) {
	if s.all {
		return app.inventory.PackageNames(s.system), nil
	}
	if len(args) == 0 {
		return nil, errors.New("no packages given: pass package names or --all")
	}
	return args, nil
}

// finishBatch prints a batch result and maps failures to exit codes.
func finishBatch(cmd *cobra.Command, opts *RootOptions, op string, pkgs int, failed []string, err error) error {
	out := formatter{format: opts.Format, w: cmd.OutOrStdout()}
	if perr := out.batch(BatchResult{Operation: op, Packages: pkgs, Failed: failed}); perr != nil {
		return perr
	}
	if err != nil {
		code := ExitFailure
		if batch.IsFatal(err) {
			code = ExitCommandError
		}
		return &ExitError{Code: code, Message: op + " aborted", Err: err}
	}
	if len(failed) > 0 {
		return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("%s: %d package(s) failed", op, len(failed))}
	}
	return nil
}

func newBlockTrackersCommand(opts *RootOptions) *cobra.Command {
	var sel selection
	cmd := &cobra.Command{
		Use:   "block-trackers [package...]",
		Short: "Block every tracker component of the given packages",
		RunE: func(cmd *cobra.Command, args []string) error {
			pkgs, err := sel.packages(opts.app, args)
			if err != nil {
				return err
			}
			failed, err := opts.app.ops.BlockTracking(cmd.Context(), pkgs)
			return finishBatch(cmd, opts, batch.OpBlockTracking, len(pkgs), failed, err)
		},
	}
	sel.bind(cmd)
	return cmd
}

func newUnblockTrackersCommand(opts *RootOptions) *cobra.Command {
	var sel selection
	cmd := &cobra.Command{
		Use:   "unblock-trackers [package...]",
		Short: "Unblock every tracker component of the given packages",
		RunE: func(cmd *cobra.Command, args []string) error {
			pkgs, err := sel.packages(opts.app, args)
			if err != nil {
				return err
			}
			failed, err := opts.app.ops.UnblockTracking(cmd.Context(), pkgs)
			return finishBatch(cmd, opts, batch.OpUnblockTracking, len(pkgs), failed, err)
		},
	}
	sel.bind(cmd)
	return cmd
}

func newBlockFilteredCommand(opts *RootOptions) *cobra.Command {
	var sel selection
	var signatures []string
	cmd := &cobra.Command{
		Use:   "block-filtered --signature <prefix> [package...]",
		Short: "Block components matching the given signatures",
		RunE: func(cmd *cobra.Command, args []string) error {
			pkgs, err := sel.packages(opts.app, args)
			if err != nil {
				return err
			}
			failed, err := opts.app.ops.BlockFiltered(cmd.Context(), pkgs, signatures)
			return finishBatch(cmd, opts, batch.OpBlockFiltered, len(pkgs), failed, err)
		},
	}
	sel.bind(cmd)
	cmd.Flags().StringSliceVarP(&signatures, "signature", "s", nil, "component name signature (repeatable)")
	_ = cmd.MarkFlagRequired("signature")
	return cmd
}

func newRevertCommand(opts *RootOptions) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "revert [package...]",
		Short: "Restore packages to their manifest defaults, keeping their rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			pkgs := args
			if all {
				var err error
				if pkgs, err = opts.app.registry.Packages(); err != nil {
					return err
				}
			} else if len(pkgs) == 0 {
				return errors.New("no packages given: pass package names or --all")
			}
			failed, err := opts.app.ops.Revert(cmd.Context(), pkgs)
			return finishBatch(cmd, opts, batch.OpRevert, len(pkgs), failed, err)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "every package with stored rules")
	return cmd
}

func newApplyAllCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "apply-all",
		Short: "Enforce the stored rules of every package",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pkgs, err := opts.app.registry.Packages()
			if err != nil {
				return err
			}
			failed, err := opts.app.ops.ApplyAll(cmd.Context())
			return finishBatch(cmd, opts, batch.OpApplyAll, len(pkgs), failed, err)
		},
	}
}

func newImportLocalCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import-local",
		Short: "Absorb rule files left in the staging directory and enforce them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pkgs := opts.app.registry.LocalRulePackages()
			failed, err := opts.app.ops.ImportLocalRules(cmd.Context())
			return finishBatch(cmd, opts, batch.OpImportLocal, len(pkgs), failed, err)
		},
	}
}

func newShowCommand(opts *RootOptions) *cobra.Command {
	var system bool
	cmd := &cobra.Command{
		Use:   "show <package>",
		Short: "Print the rules of a package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := formatter{format: opts.Format, w: cmd.OutOrStdout()}
			if system {
				return out.rules(systemRuleViews(opts.app.registry.SystemRules(args[0])))
			}
			return showStored(cmd.Context(), opts.app, out, args[0])
		},
	}
	cmd.Flags().BoolVar(&system, "system", false, "read the enforcement files instead of stored rules")
	return cmd
}

func showStored(ctx context.Context, app *Application, out formatter, pkg string) error {
	h, err := app.registry.Acquire(ctx, pkg)
	if err != nil {
		return err
	}
	var views []RuleView
	for _, e := range h.Entries() {
		views = append(views, RuleView{Name: e.Name, Type: e.Type.String(), State: e.State.String()})
	}
	if err := h.Release(); err != nil {
		return err
	}
	return out.rules(views)
}

func systemRuleViews(rules map[string]domain.ComponentType) []RuleView {
	names := make([]string, 0, len(rules))
	for n := range rules {
		names = append(names, n)
	}
	sort.Strings(names)
	views := make([]RuleView, 0, len(names))
	for _, n := range names {
		views = append(views, RuleView{Name: n, Type: rules[n].String()})
	}
	return views
}

func newTrackersCommand(opts *RootOptions) *cobra.Command {
	var sel selection
	cmd := &cobra.Command{
		Use:   "trackers [package...]",
		Short: "Count tracker components per package",
		RunE: func(cmd *cobra.Command, args []string) error {
			pkgs, err := sel.packages(opts.app, args)
			if err != nil {
				return err
			}
			out := formatter{format: opts.Format, w: cmd.OutOrStdout()}
			return out.counts(opts.app.classifier.TrackerCounts(pkgs))
		},
	}
	sel.bind(cmd)
	return cmd
}

func newStatsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print rule store and engine cache statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st := opts.app.rules.Stats()
			hits, misses, evictions := opts.app.registry.CacheStats()
			out := formatter{format: opts.Format, w: cmd.OutOrStdout()}
			if opts.Format == "json" {
				return out.writeJSON(map[string]any{
					"packages":      st.Packages,
					"rules":         st.Rules,
					"updated_unix":  st.UpdatedUnix,
					"cache_hits":    hits,
					"cache_misses":  misses,
					"cache_evicted": evictions,
				})
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "packages: %d\nrules: %d\nupdated: %d\n", st.Packages, st.Rules, st.UpdatedUnix)
			return err
		},
	}
}
