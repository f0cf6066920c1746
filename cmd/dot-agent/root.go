package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/ynishi/dot-agent/internal/version"
	"github.com/ynishi/dot-agent/pkg/core"
	"github.com/ynishi/dot-agent/pkg/errors"
	"github.com/ynishi/dot-agent/pkg/logging"
	"github.com/ynishi/dot-agent/pkg/paths"
	"github.com/ynishi/dot-agent/pkg/ui"
)

// globalOptions holds the persistent flags shared by every command
type globalOptions struct {
	verbosity int
	dryRun    bool
	force     bool
	format    string
	baseDir   string

	// overrides are extra configuration layers set by command flags
	overrides map[string]interface{}
}

// run executes the CLI and returns the process exit code. Errors are
// rendered in the requested format on stderr.
func run(ctx context.Context, args []string) int {
	g := &globalOptions{}
	rootCmd := newRootCmd(g)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	r, rerr := g.rendererFor(os.Stderr)
	if rerr != nil {
		r, _ = ui.NewRenderer(ui.FormatText, os.Stderr)
	}
	if rerr := r.RenderError(err); rerr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return errors.ExitCode(err)
}

// newRootCmd creates the root command with every subcommand attached
func newRootCmd(g *globalOptions) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "dot-agent",
		Short:   MsgRootShort,
		Long:    MsgRootLong,
		Version: version.Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logging.SetupLogger(g.verbosity, false)
			log.Debug().Str("command", cmd.CommandPath()).Msg("Command started")
			_, err := ui.ParseFormat(g.format)
			return err
		},
		SilenceUsage:      true,
		SilenceErrors:     true,
		DisableAutoGenTag: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	rootCmd.PersistentFlags().CountVarP(&g.verbosity, "verbose", "v", MsgFlagVerbose)
	rootCmd.PersistentFlags().BoolVar(&g.dryRun, "dry-run", false, MsgFlagDryRun)
	rootCmd.PersistentFlags().BoolVar(&g.force, "force", false, MsgFlagForce)
	rootCmd.PersistentFlags().StringVar(&g.format, "format", "auto", MsgFlagFormat)
	rootCmd.PersistentFlags().StringVar(&g.baseDir, "base-dir", "", MsgFlagBaseDir)

	rootCmd.AddGroup(&cobra.Group{ID: "core", Title: "Commands:"})
	rootCmd.AddGroup(&cobra.Group{ID: "manage", Title: "Profiles and snapshots:"})
	rootCmd.AddGroup(&cobra.Group{ID: "misc", Title: "Misc:"})

	rootCmd.AddCommand(newInstallCmd(g))
	rootCmd.AddCommand(newUpgradeCmd(g))
	rootCmd.AddCommand(newDiffCmd(g))
	rootCmd.AddCommand(newRemoveCmd(g))
	rootCmd.AddCommand(newSwitchCmd(g))
	rootCmd.AddCommand(newStatusCmd(g))
	rootCmd.AddCommand(newProfileCmd(g))
	rootCmd.AddCommand(newSnapshotCmd(g))
	rootCmd.AddCommand(newHistoryCmd(g))
	rootCmd.AddCommand(newGCCmd(g))
	rootCmd.AddCommand(newConfigCmd(g))
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newCompletionCmd())
	rootCmd.AddCommand(newManCmd())

	if err := initTopics(rootCmd); err != nil {
		log.Warn().Err(err).Msg("Help topics unavailable")
	}

	return rootCmd
}

// open wires the engine from the base directory and configuration. The
// log file is attached once the configuration asks for it.
func (g *globalOptions) open() (*core.Engine, error) {
	eng, err := core.Open(core.Options{BaseDir: g.baseDir, Overrides: g.overrides})
	if err != nil {
		return nil, err
	}
	if eng.Config.Log.File {
		logging.SetupLogger(g.verbosity, true)
	}
	return eng, nil
}

// withEngine runs fn with an open engine and closes it afterwards
func (g *globalOptions) withEngine(fn func(eng *core.Engine) error) error {
	eng, err := g.open()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := eng.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("Failed to close index")
		}
	}()
	return fn(eng)
}

func (g *globalOptions) override(key string, value interface{}) {
	if g.overrides == nil {
		g.overrides = map[string]interface{}{}
	}
	g.overrides[key] = value
}

func (g *globalOptions) rendererFor(w io.Writer) (ui.Renderer, error) {
	format, err := ui.ParseFormat(g.format)
	if err != nil {
		return nil, err
	}
	return ui.NewRenderer(format, w)
}

// resolvedFormat settles auto against the writer
func (g *globalOptions) resolvedFormat(w io.Writer) ui.Format {
	format, _ := ui.ParseFormat(g.format)
	if format != ui.FormatAuto {
		return format
	}
	if f, ok := w.(*os.File); ok {
		return ui.DetectFormat(f)
	}
	return ui.FormatText
}

// render prints result on the command's output
func (g *globalOptions) render(cmd *cobra.Command, result interface{}) error {
	r, err := g.rendererFor(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	return r.RenderResult(result)
}

// message prints a one-line confirmation
func (g *globalOptions) message(cmd *cobra.Command, format string, args ...interface{}) error {
	r, err := g.rendererFor(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	return r.RenderMessage(fmt.Sprintf(format, args...))
}

// targetFlags select the install target of a command
type targetFlags struct {
	dir    string
	global bool
}

func (t *targetFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&t.dir, "dir", "C", "", MsgFlagDir)
	cmd.Flags().BoolVarP(&t.global, "global", "g", false, MsgFlagGlobal)
	cmd.MarkFlagsMutuallyExclusive("dir", "global")
}

func (t *targetFlags) resolve() (string, error) {
	return paths.ResolveTarget(t.dir, t.global)
}

// profileNamesCompletion provides shell completion for profile names
func profileNamesCompletion(g *globalOptions) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		var names []string
		err := g.withEngine(func(eng *core.Engine) error {
			list, err := eng.Profiles.List()
			if err != nil {
				return err
			}
			for _, p := range list {
				names = append(names, p.Name)
			}
			return nil
		})
		if err != nil {
			return nil, cobra.ShellCompDirectiveError
		}
		return names, cobra.ShellCompDirectiveNoFileComp
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   MsgVersionShort,
		GroupID: "misc",
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "dot-agent version %s\n", version.Version)
			fmt.Fprintf(out, "  commit: %s\n", version.Commit)
			fmt.Fprintf(out, "  built:  %s\n", version.Date)
		},
	}
}

func newCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:                   "completion [bash|zsh|fish|powershell]",
		Short:                 MsgCompletionShort,
		Long:                  MsgCompletionLong,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		GroupID:               "misc",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
}
