package main

import (
	"github.com/spf13/cobra"
	"github.com/ynishi/dot-agent/pkg/core"
	"github.com/ynishi/dot-agent/pkg/types"
)

// subjectFlags address either a target or, with --profile, a profile source
type subjectFlags struct {
	targetFlags
	profile string
}

func (f *subjectFlags) register(cmd *cobra.Command, g *globalOptions) {
	f.targetFlags.register(cmd)
	cmd.Flags().StringVarP(&f.profile, "profile", "p", "", MsgFlagProfile)
	cmd.MarkFlagsMutuallyExclusive("profile", "dir")
	cmd.MarkFlagsMutuallyExclusive("profile", "global")
	_ = cmd.RegisterFlagCompletionFunc("profile", profileNamesCompletion(g))
}

func (f *subjectFlags) subject(eng *core.Engine) (types.Subject, error) {
	if f.profile != "" {
		return eng.ProfileSubject(f.profile)
	}
	target, err := f.resolve()
	if err != nil {
		return types.Subject{}, err
	}
	return eng.TargetSubject(target)
}

// withSubject opens the engine and resolves the addressed subject
func (f *subjectFlags) withSubject(g *globalOptions, fn func(eng *core.Engine, subject types.Subject) error) error {
	return g.withEngine(func(eng *core.Engine) error {
		subject, err := f.subject(eng)
		if err != nil {
			return err
		}
		return fn(eng, subject)
	})
}

func newSnapshotCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "snapshot",
		Aliases: []string{"snap"},
		Short:   MsgSnapshotShort,
		Long:    MsgSnapshotLong,
		Example: MsgSnapshotExample,
		GroupID: "manage",
	}
	cmd.AddCommand(newSnapshotSaveCmd(g))
	cmd.AddCommand(newSnapshotListCmd(g))
	cmd.AddCommand(newSnapshotDiffCmd(g))
	cmd.AddCommand(newSnapshotRestoreCmd(g))
	cmd.AddCommand(newSnapshotPruneCmd(g))
	cmd.AddCommand(newSnapshotDeleteCmd(g))
	return cmd
}

func newSnapshotSaveCmd(g *globalOptions) *cobra.Command {
	f := &subjectFlags{}
	var label string
	cmd := &cobra.Command{
		Use:   "save",
		Short: MsgSnapshotSaveShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.withSubject(g, func(eng *core.Engine, subject types.Subject) error {
				snap, err := eng.Snapshots.Save(cmd.Context(), subject, label, types.TriggerManual)
				if err != nil {
					return err
				}
				return g.render(cmd, snap)
			})
		},
	}
	f.register(cmd, g)
	cmd.Flags().StringVarP(&label, "message", "m", "", MsgFlagLabel)
	return cmd
}

func newSnapshotListCmd(g *globalOptions) *cobra.Command {
	f := &subjectFlags{}
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   MsgSnapshotListShort,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.withSubject(g, func(eng *core.Engine, subject types.Subject) error {
				list, err := eng.Snapshots.List(cmd.Context(), subject)
				if err != nil {
					return err
				}
				if list == nil {
					list = []types.Snapshot{}
				}
				return g.render(cmd, list)
			})
		},
	}
	f.register(cmd, g)
	return cmd
}

func newSnapshotDiffCmd(g *globalOptions) *cobra.Command {
	f := &subjectFlags{}
	cmd := &cobra.Command{
		Use:   "diff <id>",
		Short: MsgSnapshotDiffShort,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.withSubject(g, func(eng *core.Engine, subject types.Subject) error {
				res, err := eng.Snapshots.Diff(cmd.Context(), subject, args[0])
				if err != nil {
					return err
				}
				return g.render(cmd, res)
			})
		},
	}
	f.register(cmd, g)
	return cmd
}

func newSnapshotRestoreCmd(g *globalOptions) *cobra.Command {
	f := &subjectFlags{}
	cmd := &cobra.Command{
		Use:   "restore <id>",
		Short: MsgSnapshotRestoreShort,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.withSubject(g, func(eng *core.Engine, subject types.Subject) error {
				if g.dryRun {
					res, err := eng.Snapshots.Diff(cmd.Context(), subject, args[0])
					if err != nil {
						return err
					}
					return g.render(cmd, res)
				}
				res, err := eng.Snapshots.Restore(cmd.Context(), subject, args[0])
				if err != nil {
					return err
				}
				return g.render(cmd, res)
			})
		},
	}
	f.register(cmd, g)
	return cmd
}

func newSnapshotPruneCmd(g *globalOptions) *cobra.Command {
	f := &subjectFlags{}
	var keep int
	cmd := &cobra.Command{
		Use:   "prune",
		Short: MsgSnapshotPruneShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.withSubject(g, func(eng *core.Engine, subject types.Subject) error {
				n := eng.Config.Snapshot.Keep
				if cmd.Flags().Changed("keep") {
					n = keep
				}
				res, err := eng.Snapshots.Prune(cmd.Context(), subject, n)
				if err != nil {
					return err
				}
				return g.render(cmd, res)
			})
		},
	}
	f.register(cmd, g)
	cmd.Flags().IntVarP(&keep, "keep", "k", 0, MsgFlagKeep)
	return cmd
}

func newSnapshotDeleteCmd(g *globalOptions) *cobra.Command {
	f := &subjectFlags{}
	cmd := &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   MsgSnapshotDeleteShort,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.withSubject(g, func(eng *core.Engine, subject types.Subject) error {
				res, err := eng.Snapshots.Delete(cmd.Context(), subject, args[0])
				if err != nil {
					return err
				}
				return g.render(cmd, res)
			})
		},
	}
	f.register(cmd, g)
	return cmd
}
