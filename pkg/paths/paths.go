package paths

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/ynishi/dot-agent/pkg/errors"
)

// Environment variable names
const (
	// EnvHome overrides the base directory
	EnvHome = "DOT_AGENT_HOME"

	// EnvUserHome is the standard home directory variable
	EnvUserHome = "HOME"
)

// Layout of the base directory. These are not user-configurable: snapshots
// and manifests written by one version must be found by the next.
const (
	DefaultBaseDir = ".dot-agent"
	ProfilesDir    = "profiles"
	StoreDir       = "store"
	ObjectsDir     = "objects"
	LocksDir       = "locks"
	IndexFile      = "state.db"
	ConfigFile     = "config.toml"

	// TargetDir is the directory name that holds installed profile content.
	TargetDir = ".claude"

	// AppName names the XDG state subdirectory.
	AppName = "dot-agent"
)

// Paths resolves every location the engine reads or writes.
type Paths interface {
	BaseDir() string
	ProfilesDir() string
	ProfilePath(name string) string
	StoreDir() string
	ObjectsDir() string
	LocksDir() string
	IndexPath() string
	ConfigPath() string
	StateDir() string
}

type paths struct {
	baseDir  string
	xdgState string
}

// New creates a Paths rooted at baseDir. When baseDir is empty it comes from
// DOT_AGENT_HOME, falling back to ~/.dot-agent.
func New(baseDir string) (Paths, error) {
	if baseDir == "" {
		baseDir = os.Getenv(EnvHome)
	}
	if baseDir == "" {
		home, err := userHome()
		if err != nil {
			return nil, err
		}
		baseDir = filepath.Join(home, DefaultBaseDir)
	}

	abs, err := filepath.Abs(expandHome(baseDir))
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "failed to get absolute path for base dir %s", baseDir)
	}

	p := &paths{baseDir: abs}
	if s := os.Getenv("XDG_STATE_HOME"); s != "" {
		p.xdgState = filepath.Join(s, AppName)
	} else {
		p.xdgState = filepath.Join(xdg.StateHome, AppName)
	}
	return p, nil
}

func (p *paths) BaseDir() string     { return p.baseDir }
func (p *paths) ProfilesDir() string { return filepath.Join(p.baseDir, ProfilesDir) }
func (p *paths) StoreDir() string    { return filepath.Join(p.baseDir, StoreDir) }
func (p *paths) ObjectsDir() string  { return filepath.Join(p.StoreDir(), ObjectsDir) }
func (p *paths) LocksDir() string    { return filepath.Join(p.baseDir, LocksDir) }
func (p *paths) IndexPath() string   { return filepath.Join(p.baseDir, IndexFile) }
func (p *paths) ConfigPath() string  { return filepath.Join(p.baseDir, ConfigFile) }
func (p *paths) StateDir() string    { return p.xdgState }

// ProfilePath returns the source directory of a named profile
func (p *paths) ProfilePath(name string) string {
	return filepath.Join(p.ProfilesDir(), name)
}

// ResolveTarget returns the install target directory. With global set it is
// ~/.claude; otherwise <dir>/.claude where dir defaults to the working
// directory and must exist. The .claude directory itself need not exist yet.
func ResolveTarget(dir string, global bool) (string, error) {
	if global {
		home, err := userHome()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, TargetDir), nil
	}

	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", errors.Wrap(err, errors.ErrFileAccess, "failed to get current directory")
		}
		dir = cwd
	}

	abs, err := filepath.Abs(expandHome(dir))
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrFileAccess, "failed to resolve %s", dir)
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return "", errors.Newf(errors.ErrTargetNotFound, "target directory does not exist: %s", abs).
			WithDetail("path", abs)
	}
	return filepath.Join(abs, TargetDir), nil
}

// NormalizeTarget makes an explicit target path absolute and clean.
func NormalizeTarget(target string) (string, error) {
	if target == "" {
		return "", errors.New(errors.ErrInvalidInput, "target path is empty")
	}
	abs, err := filepath.Abs(expandHome(target))
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrFileAccess, "failed to resolve %s", target)
	}
	return filepath.Clean(abs), nil
}

func userHome() (string, error) {
	home, err := os.UserHomeDir()
	if err == nil && home != "" {
		return home, nil
	}
	if home = os.Getenv(EnvUserHome); home != "" {
		return home, nil
	}
	return "", errors.New(errors.ErrFileAccess, "cannot determine home directory")
}

// expandHome expands a leading ~ to the home directory
func expandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, err := userHome()
	if err != nil {
		return path
	}
	if len(path) == 1 {
		return home
	}
	if path[1] == '/' || path[1] == filepath.Separator {
		return filepath.Join(home, path[2:])
	}
	// ~otheruser is left alone
	return path
}
