// Package core wires configuration, paths and every engine component into
// an Engine, the single entry point the command line uses.
//
// # Storage layout
//
// Everything the engine owns lives under the base directory
// (DOT_AGENT_HOME, default ~/.dot-agent):
//
//	profiles/<name>/      profile sources
//	store/objects/ab/...  content-addressed blobs
//	state.db              snapshot index and target registry
//	locks/<key>.lock      advisory locks per target, profile and store
//	config.toml           optional configuration
//
// Install targets only ever gain the installed files and one manifest,
// .dot-agent-meta.toml.
//
// # Automatic snapshots
//
// When snapshot.auto is set, mutating installer operations snapshot the
// target first, and the target's snapshots are pruned to snapshot.keep
// afterwards.
package core
