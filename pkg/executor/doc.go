// Package executor applies planned file operations to a directory as one
// staged transaction.
//
// New content is first written to temp files next to each destination
// (Stage). Commit then renames them into place, moving replaced and deleted
// files aside as backups. If the caller's follow-up step fails (typically
// saving the installation manifest) Rollback puts every file back; otherwise
// Finish discards the backups. Because every step is a rename within one
// directory, a reader never sees a half-written file.
package executor
