// Package paths provides centralized path handling for dot-agent.
//
// Every piece of engine state lives under a single base directory:
//
//   - profiles/<name>      profile sources
//   - store/objects/ab/…   the content-addressed blob store
//   - state.db             the snapshot index and target registry
//   - locks/<key>.lock     advisory lock files
//   - config.toml          user configuration
//
// # Environment Variables
//
//   - DOT_AGENT_HOME: base directory (default: ~/.dot-agent)
//   - XDG_STATE_HOME: log location (default: ~/.local/state)
//
// Install targets are resolved separately by ResolveTarget: the global
// target is ~/.claude, a project target is <dir>/.claude.
package paths
