package main

import (
	_ "embed"
	"strings"
)

// Short messages (one-liners)
const (
	// Command descriptions
	MsgRootShort            = "Install and reconcile AI agent configuration profiles"
	MsgInstallShort         = "Install a profile into a target"
	MsgUpgradeShort         = "Bring an installed profile up to date"
	MsgDiffShort            = "Show what install or upgrade would change"
	MsgRemoveShort          = "Remove an installed profile from a target"
	MsgSwitchShort          = "Replace one installed profile with another"
	MsgStatusShort          = "Show installed profiles and local changes"
	MsgProfileShort         = "Manage profile sources"
	MsgProfileListShort     = "List profiles"
	MsgProfileCreateShort   = "Create a new profile with the standard layout"
	MsgProfileRemoveShort   = "Delete a profile source"
	MsgProfileCopyShort     = "Copy a profile under a new name"
	MsgProfileImportShort   = "Import a local directory as a profile"
	MsgProfileShowShort     = "Show a profile's files and CLAUDE.md"
	MsgSnapshotShort        = "Save, inspect and restore snapshots"
	MsgSnapshotSaveShort    = "Save a snapshot"
	MsgSnapshotListShort    = "List snapshots, newest first"
	MsgSnapshotDiffShort    = "Compare a snapshot with the current state"
	MsgSnapshotRestoreShort = "Restore a snapshot"
	MsgSnapshotPruneShort   = "Delete all but the newest snapshots"
	MsgSnapshotDeleteShort  = "Delete one snapshot"
	MsgHistoryShort         = "List applied operations, newest first"
	MsgHistoryRollbackShort = "Undo an operation by restoring the snapshot taken before it"
	MsgGCShort              = "Remove stored content no snapshot or target uses"
	MsgConfigShort          = "Manage configuration"
	MsgConfigInitShort      = "Print or write a starting config.toml"
	MsgVersionShort         = "Print version information"
	MsgCompletionShort      = "Generate shell completion script"
	MsgManShort             = "Generate man pages"

	// Status messages
	MsgProfileCreated  = "Created profile %s at %s"
	MsgProfileRemoved  = "Removed profile %s"
	MsgProfileCopied   = "Copied profile %s to %s"
	MsgProfileImported = "Imported %s as profile %s"
	MsgSnapshotDeleted = "Deleted snapshot %s"
	MsgConfigWritten   = "Wrote %s"

	// Error messages
	MsgErrConfigExists = "%s already exists, use --force to overwrite it"

	// Flag descriptions
	MsgFlagVerbose       = "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)"
	MsgFlagDryRun        = "Preview changes without executing them"
	MsgFlagForce         = "Overwrite conflicting and locally modified files"
	MsgFlagFormat        = "Output format: auto, term, text, json or yaml"
	MsgFlagBaseDir       = "State directory (default $DOT_AGENT_HOME or ~/.dot-agent)"
	MsgFlagDir           = "Project directory whose .claude is the target (default current directory)"
	MsgFlagGlobal        = "Use ~/.claude as the target"
	MsgFlagSkipConflicts = "Apply everything except conflicting files"
	MsgFlagNoPrefix      = "Install files without the profile name prefix"
	MsgFlagNoSnapshot    = "Do not save a snapshot before changing the target"
	MsgFlagProfile       = "Address a profile source instead of the target"
	MsgFlagLabel         = "Label stored with the snapshot"
	MsgFlagKeep          = "Number of snapshots to keep (default snapshot.keep)"
	MsgFlagWrite         = "Write to the config file instead of stdout"
	MsgFlagManOutput     = "Directory the man pages are written to"
	MsgFlagAllTargets    = "List operations on every target"
	MsgFlagLimit         = "Show at most this many operations (0 shows all)"
)

// Long messages from embedded files
var (
	//go:embed msgs/root-long.txt
	msgRootLongRaw string
	MsgRootLong    = strings.TrimSpace(msgRootLongRaw)

	//go:embed msgs/history-long.txt
	msgHistoryLongRaw string
	MsgHistoryLong    = strings.TrimSpace(msgHistoryLongRaw)

	//go:embed msgs/install-long.txt
	msgInstallLongRaw string
	MsgInstallLong    = strings.TrimSpace(msgInstallLongRaw)

	//go:embed msgs/install-example.txt
	msgInstallExampleRaw string
	MsgInstallExample    = strings.TrimRight(msgInstallExampleRaw, "\n")

	//go:embed msgs/upgrade-long.txt
	msgUpgradeLongRaw string
	MsgUpgradeLong    = strings.TrimSpace(msgUpgradeLongRaw)

	//go:embed msgs/switch-long.txt
	msgSwitchLongRaw string
	MsgSwitchLong    = strings.TrimSpace(msgSwitchLongRaw)

	//go:embed msgs/snapshot-long.txt
	msgSnapshotLongRaw string
	MsgSnapshotLong    = strings.TrimSpace(msgSnapshotLongRaw)

	//go:embed msgs/snapshot-example.txt
	msgSnapshotExampleRaw string
	MsgSnapshotExample    = strings.TrimRight(msgSnapshotExampleRaw, "\n")

	//go:embed msgs/completion-long.txt
	msgCompletionLongRaw string
	MsgCompletionLong    = strings.TrimSpace(msgCompletionLongRaw)
)
