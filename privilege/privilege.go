// Package privilege captures who the process runs as, decides whether it may
// change device state, and finds the nvidia-smi binary it will drive.
package privilege

import (
	"errors"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
)

// ToolName is the binary searched for in each PATH directory.
const ToolName = "nvidia-smi"

// DefaultCandidates are tried, in order, before PATH.
var DefaultCandidates = []string{
	"/usr/bin/nvidia-smi",
	"/usr/local/bin/nvidia-smi",
	"/bin/nvidia-smi",
}

var (
	ErrToolNotFound  = errors.New("nvidia-smi not found")
	ErrNotPrivileged = errors.New("not running with superuser privileges")
)

// Identity is captured once at startup and never changes afterwards.
type Identity struct {
	RealUID      int
	RealGID      int
	EffectiveUID int
	// Admin is true when the effective identity may change device state.
	Admin bool
}

// Setuid reports an elevated effective identity on behalf of a different
// real user, i.e. a setuid-root binary run by an ordinary account.
func (id Identity) Setuid() bool {
	return id.Admin && id.RealUID != id.EffectiveUID
}

// RequirePrivilege fails with ErrNotPrivileged unless the effective
// identity is the superuser. Nothing here ever lowers privileges.
func (id Identity) RequirePrivilege() error {
	if !id.Admin {
		return ErrNotPrivileged
	}
	return nil
}

// HomeDir resolves the real user's home directory from the account
// database, falling back to "/" as the login tools do.
func (id Identity) HomeDir() string {
	if id.RealUID < 0 {
		if home, err := os.UserHomeDir(); err == nil {
			return home
		}
		return "/"
	}

	u, err := user.LookupId(strconv.Itoa(id.RealUID))
	if err != nil || u.HomeDir == "" {
		return "/"
	}
	return u.HomeDir
}

// Locator finds the nvidia-smi binary.
type Locator struct {
	Candidates []string
	// SearchPath is a PATH-style list of directories.
	SearchPath string
	// RootOwned rejects any match that is not owned by root or that group
	// or others can write.
	RootOwned bool
}

// NewLocator searches the default locations and then searchPath.
func NewLocator(searchPath string, rootOwned bool) Locator {
	return Locator{
		Candidates: DefaultCandidates,
		SearchPath: searchPath,
		RootOwned:  rootOwned,
	}
}

// Find returns the absolute path of the first usable match.
func (l Locator) Find() (string, error) {
	for _, candidate := range l.Candidates {
		if l.usable(candidate) {
			return candidate, nil
		}
	}

	for _, dir := range strings.Split(l.SearchPath, string(os.PathListSeparator)) {
		// Empty and relative entries would resolve against the caller's
		// working directory.
		if dir == "" || !filepath.IsAbs(dir) {
			continue
		}

		candidate := filepath.Join(dir, toolFile)
		if l.usable(candidate) {
			return candidate, nil
		}
	}

	return "", ErrToolNotFound
}

func (l Locator) usable(path string) bool {
	if !filepath.IsAbs(path) {
		return false
	}

	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}

	if l.RootOwned && !rootOwned(info) {
		return false
	}

	return executable(path)
}
