package config

// Config is the complete user-facing configuration
type Config struct {
	Profile  Profile  `koanf:"profile" yaml:"profile" json:"profile"`
	Install  Install  `koanf:"install" yaml:"install" json:"install"`
	Snapshot Snapshot `koanf:"snapshot" yaml:"snapshot" json:"snapshot"`
	Log      Log      `koanf:"log" yaml:"log" json:"log"`
}

// Profile holds the exclusion rules applied when capturing profile sources
type Profile struct {
	// Exclude lists directory names skipped at any depth
	Exclude []string `koanf:"exclude" yaml:"exclude" json:"exclude"`
	// Include lists directory names that override Exclude
	Include []string `koanf:"include" yaml:"include" json:"include"`
	// IgnoreFiles lists file names never captured
	IgnoreFiles []string `koanf:"ignore_files" yaml:"ignoreFiles" json:"ignoreFiles"`
}

// Install holds installer defaults
type Install struct {
	NoPrefix  bool     `koanf:"no_prefix" yaml:"noPrefix" json:"noPrefix"`
	Protected []string `koanf:"protected" yaml:"protected" json:"protected"`
}

// Snapshot holds snapshot policy and target capture rules
type Snapshot struct {
	Auto              bool     `koanf:"auto" yaml:"auto" json:"auto"`
	Keep              int      `koanf:"keep" yaml:"keep" json:"keep"`
	TargetExclude     []string `koanf:"target_exclude" yaml:"targetExclude" json:"targetExclude"`
	TargetIgnoreFiles []string `koanf:"target_ignore_files" yaml:"targetIgnoreFiles" json:"targetIgnoreFiles"`
}

// Log holds logging options
type Log struct {
	File bool `koanf:"file" yaml:"file" json:"file"`
}
