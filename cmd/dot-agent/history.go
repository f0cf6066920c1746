package main

import (
	"github.com/spf13/cobra"
	"github.com/ynishi/dot-agent/pkg/core"
	"github.com/ynishi/dot-agent/pkg/errors"
	"github.com/ynishi/dot-agent/pkg/types"
)

func newHistoryCmd(g *globalOptions) *cobra.Command {
	f := &targetFlags{}
	var all bool
	var limit int
	cmd := &cobra.Command{
		Use:     "history",
		Aliases: []string{"log"},
		Short:   MsgHistoryShort,
		Long:    MsgHistoryLong,
		GroupID: "manage",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withEngine(func(eng *core.Engine) error {
				target := ""
				if !all {
					var err error
					if target, err = f.resolve(); err != nil {
						return err
					}
				}
				list, err := eng.History(cmd.Context(), target, limit)
				if err != nil {
					return err
				}
				return g.render(cmd, list)
			})
		},
	}
	f.register(cmd)
	cmd.Flags().BoolVarP(&all, "all", "a", false, MsgFlagAllTargets)
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, MsgFlagLimit)
	cmd.MarkFlagsMutuallyExclusive("all", "dir")
	cmd.MarkFlagsMutuallyExclusive("all", "global")
	cmd.AddCommand(newHistoryRollbackCmd(g))
	return cmd
}

func newHistoryRollbackCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rollback <id>",
		Short: MsgHistoryRollbackShort,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withEngine(func(eng *core.Engine) error {
				if g.dryRun {
					op, err := eng.Operation(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					if !op.Undoable() {
						return errors.Newf(errors.ErrNotUndoable, "operation %s has no snapshot to roll back to", op.ID)
					}
					res, err := eng.Snapshots.Diff(cmd.Context(), types.TargetSubject(op.Target), op.SnapshotID)
					if err != nil {
						return err
					}
					return g.render(cmd, res)
				}
				res, err := eng.Rollback(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return g.render(cmd, res)
			})
		},
	}
}
