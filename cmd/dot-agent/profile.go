package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/ynishi/dot-agent/pkg/core"
	"github.com/ynishi/dot-agent/pkg/style"
	"github.com/ynishi/dot-agent/pkg/ui"
)

func newProfileCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "profile",
		Aliases: []string{"profiles"},
		Short:   MsgProfileShort,
		GroupID: "manage",
	}
	cmd.AddCommand(newProfileListCmd(g))
	cmd.AddCommand(newProfileCreateCmd(g))
	cmd.AddCommand(newProfileRemoveCmd(g))
	cmd.AddCommand(newProfileCopyCmd(g))
	cmd.AddCommand(newProfileImportCmd(g))
	cmd.AddCommand(newProfileShowCmd(g))
	return cmd
}

func newProfileListCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   MsgProfileListShort,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withEngine(func(eng *core.Engine) error {
				list, err := eng.Profiles.List()
				if err != nil {
					return err
				}
				return g.render(cmd, list)
			})
		},
	}
}

func newProfileCreateCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: MsgProfileCreateShort,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withEngine(func(eng *core.Engine) error {
				p, err := eng.Profiles.Create(args[0])
				if err != nil {
					return err
				}
				return g.message(cmd, MsgProfileCreated, p.Name, p.Path)
			})
		},
	}
}

func newProfileRemoveCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:               "remove <name>",
		Aliases:           []string{"rm"},
		Short:             MsgProfileRemoveShort,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: profileNamesCompletion(g),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withEngine(func(eng *core.Engine) error {
				if err := eng.Profiles.Remove(args[0]); err != nil {
					return err
				}
				return g.message(cmd, MsgProfileRemoved, args[0])
			})
		},
	}
}

func newProfileCopyCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:               "copy <source> <name>",
		Aliases:           []string{"cp"},
		Short:             MsgProfileCopyShort,
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: profileNamesCompletion(g),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withEngine(func(eng *core.Engine) error {
				p, err := eng.Profiles.Copy(cmd.Context(), args[0], args[1], g.force)
				if err != nil {
					return err
				}
				return g.message(cmd, MsgProfileCopied, args[0], p.Name)
			})
		},
	}
}

func newProfileImportCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <dir> [name]",
		Short: MsgProfileImportShort,
		Long:  "Import copies a local directory into the profiles directory. The name defaults to the directory's base name.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			name := filepath.Base(source)
			if len(args) == 2 {
				name = args[1]
			}
			return g.withEngine(func(eng *core.Engine) error {
				p, err := eng.Profiles.Import(cmd.Context(), source, name, g.force)
				if err != nil {
					return err
				}
				return g.message(cmd, MsgProfileImported, source, p.Name)
			})
		},
	}
}

func newProfileShowCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:               "show <name>",
		Short:             MsgProfileShowShort,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: profileNamesCompletion(g),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withEngine(func(eng *core.Engine) error {
				d, err := eng.Profiles.Show(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if err := g.render(cmd, d); err != nil {
					return err
				}
				if d.Readme == "" {
					return nil
				}
				// machine formats carry the file list only
				out := cmd.OutOrStdout()
				switch g.resolvedFormat(out) {
				case ui.FormatTerminal:
					_, err = fmt.Fprint(out, style.Markdown(d.Readme, 80))
				case ui.FormatText:
					_, err = fmt.Fprintf(out, "\n%s", d.Readme)
				}
				return err
			})
		},
	}
}
