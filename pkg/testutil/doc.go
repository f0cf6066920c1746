// Package testutil provides helpers for tests that work on real
// directories: creating files with a given mode, reading them back and
// declaring profile sources inline.
//
// All test data should be defined inline, not in external files, and each
// test should get its own t.TempDir.
package testutil
