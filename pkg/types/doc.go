// Package types defines the data shared by every dot-agent component:
// captured trees and their entries, profiles, snapshot subjects and the
// snapshot records themselves.
package types
