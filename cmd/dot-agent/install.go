package main

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/ynishi/dot-agent/pkg/core"
	"github.com/ynishi/dot-agent/pkg/installer"
)

// installFlags are shared by the commands that change a target
type installFlags struct {
	targetFlags
	skipConflicts bool
	noPrefix      bool
	noSnapshot    bool
}

func (f *installFlags) register(cmd *cobra.Command, prefix bool) {
	f.targetFlags.register(cmd)
	cmd.Flags().BoolVar(&f.skipConflicts, "skip-conflicts", false, MsgFlagSkipConflicts)
	cmd.Flags().BoolVar(&f.noSnapshot, "no-snapshot", false, MsgFlagNoSnapshot)
	if prefix {
		cmd.Flags().BoolVar(&f.noPrefix, "no-prefix", false, MsgFlagNoPrefix)
	}
}

// options merges configuration defaults with the command line
func (f *installFlags) options(g *globalOptions, eng *core.Engine) installer.Options {
	opts := eng.InstallOptions()
	opts.Force = g.force
	opts.DryRun = g.dryRun
	opts.SkipConflicts = f.skipConflicts
	if f.noPrefix {
		opts.NoPrefix = true
	}
	return opts
}

type mutation func(ctx context.Context, eng *core.Engine, target string, opts installer.Options) (*installer.Result, error)

// runMutation resolves the target, runs op and renders its result. A
// conflict still renders the plan so the user sees which paths collided.
func runMutation(cmd *cobra.Command, g *globalOptions, f *installFlags, op mutation) error {
	target, err := f.resolve()
	if err != nil {
		return err
	}
	if f.noSnapshot {
		g.override("snapshot.auto", false)
	}
	return g.withEngine(func(eng *core.Engine) error {
		res, err := op(cmd.Context(), eng, target, f.options(g, eng))
		if res != nil {
			if rerr := g.render(cmd, res); rerr != nil {
				log.Warn().Err(rerr).Msg("Failed to render result")
			}
		}
		return err
	})
}

func newInstallCmd(g *globalOptions) *cobra.Command {
	f := &installFlags{}
	cmd := &cobra.Command{
		Use:               "install <profile>",
		Short:             MsgInstallShort,
		Long:              MsgInstallLong,
		Example:           MsgInstallExample,
		GroupID:           "core",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: profileNamesCompletion(g),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMutation(cmd, g, f, func(ctx context.Context, eng *core.Engine, target string, opts installer.Options) (*installer.Result, error) {
				return eng.Install(ctx, args[0], target, opts)
			})
		},
	}
	f.register(cmd, true)
	return cmd
}

func newUpgradeCmd(g *globalOptions) *cobra.Command {
	f := &installFlags{}
	cmd := &cobra.Command{
		Use:               "upgrade <profile>",
		Short:             MsgUpgradeShort,
		Long:              MsgUpgradeLong,
		GroupID:           "core",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: profileNamesCompletion(g),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMutation(cmd, g, f, func(ctx context.Context, eng *core.Engine, target string, opts installer.Options) (*installer.Result, error) {
				return eng.Upgrade(ctx, args[0], target, opts)
			})
		},
	}
	f.register(cmd, false)
	return cmd
}

func newRemoveCmd(g *globalOptions) *cobra.Command {
	f := &installFlags{}
	cmd := &cobra.Command{
		Use:               "remove <profile>",
		Aliases:           []string{"uninstall"},
		Short:             MsgRemoveShort,
		GroupID:           "core",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: profileNamesCompletion(g),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMutation(cmd, g, f, func(ctx context.Context, eng *core.Engine, target string, opts installer.Options) (*installer.Result, error) {
				return eng.Remove(ctx, args[0], target, opts)
			})
		},
	}
	f.targetFlags.register(cmd)
	cmd.Flags().BoolVar(&f.noSnapshot, "no-snapshot", false, MsgFlagNoSnapshot)
	return cmd
}

func newSwitchCmd(g *globalOptions) *cobra.Command {
	f := &installFlags{}
	cmd := &cobra.Command{
		Use:               "switch <from> <to>",
		Short:             MsgSwitchShort,
		Long:              MsgSwitchLong,
		GroupID:           "core",
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: profileNamesCompletion(g),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMutation(cmd, g, f, func(ctx context.Context, eng *core.Engine, target string, opts installer.Options) (*installer.Result, error) {
				return eng.Switch(ctx, args[0], args[1], target, opts)
			})
		},
	}
	f.targetFlags.register(cmd)
	cmd.Flags().BoolVar(&f.noSnapshot, "no-snapshot", false, MsgFlagNoSnapshot)
	cmd.Flags().BoolVar(&f.noPrefix, "no-prefix", false, MsgFlagNoPrefix)
	return cmd
}

func newDiffCmd(g *globalOptions) *cobra.Command {
	f := &installFlags{}
	cmd := &cobra.Command{
		Use:               "diff <profile>",
		Short:             MsgDiffShort,
		GroupID:           "core",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: profileNamesCompletion(g),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := f.resolve()
			if err != nil {
				return err
			}
			return g.withEngine(func(eng *core.Engine) error {
				res, err := eng.Installer.Diff(cmd.Context(), args[0], target, f.options(g, eng))
				if err != nil {
					return err
				}
				return g.render(cmd, res)
			})
		},
	}
	f.targetFlags.register(cmd)
	cmd.Flags().BoolVar(&f.noPrefix, "no-prefix", false, MsgFlagNoPrefix)
	return cmd
}

func newStatusCmd(g *globalOptions) *cobra.Command {
	t := &targetFlags{}
	cmd := &cobra.Command{
		Use:     "status",
		Short:   MsgStatusShort,
		GroupID: "core",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := t.resolve()
			if err != nil {
				return err
			}
			return g.withEngine(func(eng *core.Engine) error {
				st, err := eng.Installer.Status(cmd.Context(), target)
				if err != nil {
					return err
				}
				return g.render(cmd, st)
			})
		},
	}
	t.register(cmd)
	return cmd
}
