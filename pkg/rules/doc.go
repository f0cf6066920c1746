// Package rules decides which paths a tree capture skips.
//
// # Pattern Conventions
//
// Patterns are matched against POSIX paths relative to the capture root:
//
//   - `.DS_Store` - file name glob, matched at any depth
//   - `node_modules/` - directory name glob, matched at any depth (trailing slash)
//   - `/projects/` - top-level directory only (leading slash)
//   - `/.dot-agent-meta.toml` - top-level file only
//   - `hooks/*.log` - path glob, matched against the whole relative path
//   - `!tests/` - include override: a directory matching it is never excluded
//
// Engine scratch files (temp and backup files left by an interrupted
// operation) are always excluded.
package rules
