// Package filesystem provides the afero-backed filesystem used by every
// dot-agent component, plus the small helpers they share: atomic writes,
// existence checks and cleanup of emptied directories.
//
// Production code uses New (the OS filesystem); unit tests that need no
// symlinks or locks use afero.NewMemMapFs.
package filesystem
