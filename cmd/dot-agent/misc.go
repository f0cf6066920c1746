package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"
	"github.com/ynishi/dot-agent/pkg/config"
	"github.com/ynishi/dot-agent/pkg/core"
	"github.com/ynishi/dot-agent/pkg/errors"
	"github.com/ynishi/dot-agent/pkg/filesystem"
	"github.com/ynishi/dot-agent/pkg/paths"
)

func newGCCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "gc",
		Short:   MsgGCShort,
		GroupID: "manage",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withEngine(func(eng *core.Engine) error {
				res, err := eng.Snapshots.GC(cmd.Context())
				if err != nil {
					return err
				}
				return g.render(cmd, res)
			})
		},
	}
}

func newConfigCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "config",
		Short:   MsgConfigShort,
		GroupID: "misc",
	}
	cmd.AddCommand(newConfigInitCmd(g))
	return cmd
}

// newConfigInitCmd does not open the engine: the config being written may
// be the thing that currently fails to load.
func newConfigInitCmd(g *globalOptions) *cobra.Command {
	var write bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: MsgConfigInitShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			content := config.GenerateConfigContent()
			if !write {
				_, err := fmt.Fprint(cmd.OutOrStdout(), content)
				return err
			}

			p, err := paths.New(g.baseDir)
			if err != nil {
				return err
			}
			path := p.ConfigPath()
			fs := filesystem.New()
			exists, err := filesystem.Exists(fs, path)
			if err != nil {
				return err
			}
			if exists && !g.force {
				return errors.Newf(errors.ErrInvalidInput, MsgErrConfigExists, path).WithDetail("path", path)
			}
			if g.dryRun {
				return g.message(cmd, "Would write %s", path)
			}
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return errors.Wrapf(err, errors.ErrDirCreate, "failed to create %s", filepath.Dir(path))
			}
			if err := filesystem.WriteFileAtomic(fs, path, []byte(content), 0644); err != nil {
				return err
			}
			return g.message(cmd, MsgConfigWritten, path)
		},
	}
	cmd.Flags().BoolVarP(&write, "write", "w", false, MsgFlagWrite)
	return cmd
}

func newManCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:    "man",
		Short:  MsgManShort,
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return errors.Wrapf(err, errors.ErrDirCreate, "failed to create %s", dir)
			}
			header := &doc.GenManHeader{
				Title:   "DOT-AGENT",
				Section: "1",
			}
			return doc.GenManTree(cmd.Root(), header, dir)
		},
	}
	cmd.Flags().StringVarP(&dir, "output", "o", "man", MsgFlagManOutput)
	return cmd
}
