package types

// Profile is a named directory tree of configuration artifacts
type Profile struct {
	// Name is the profile name, unique within the profiles directory
	Name string `json:"name" yaml:"name"`

	// Path is the absolute path to the profile source directory
	Path string `json:"path" yaml:"path"`
}
