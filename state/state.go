// Package state remembers the last applied profile for the invoking user.
package state

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/ghts/nvflux/clocks"
)

// maxRead bounds how much of the state file is ever read.
const maxRead = 128

const fileName = "state"

// dirParts lead from the home directory to the directory holding the
// state file. Only these are ever created.
var dirParts = []string{".local", "state", "nvflux"}

// RelPath is where the profile lives, relative to the user's home.
var RelPath = filepath.Join(append(dirParts, fileName)...)

var (
	// ErrNoState is returned by Load whenever no usable profile is saved.
	ErrNoState   = errors.New("no saved profile")
	ErrUnsafeDir = errors.New("state path is not a plain directory")
	ErrNotFile   = errors.New("state path is not a regular file")
)

// Store reads and writes the profile file of one user. Files and
// directories it creates are handed to that user even when the process
// runs as root. No symlink below the home directory is followed, and
// nothing above it is created.
type Store struct {
	home string
	uid  int
	gid  int
}

// New returns the store under home, owned by uid and gid. A negative uid
// leaves ownership alone.
func New(home string, uid, gid int) *Store {
	return &Store{
		home: home,
		uid:  uid,
		gid:  gid,
	}
}

func (s *Store) Path() string {
	return filepath.Join(s.home, RelPath)
}

// Load returns the saved profile. Every failure, a missing file included,
// wraps ErrNoState. Content that is not a known profile token is treated
// as absent.
func (s *Store) Load() (clocks.Profile, error) {
	data, err := s.read()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoState, err)
	}

	p, ok := clocks.ParseProfile(string(data))
	if !ok {
		return "", fmt.Errorf("%w: unrecognized content in %s", ErrNoState, s.Path())
	}

	return p, nil
}

// Save replaces the saved profile. The token goes to a temporary file in
// the same directory which is then renamed over the old one, so readers
// see either the old or the new profile.
func (s *Store) Save(p clocks.Profile) error {
	if _, ok := clocks.ParseProfile(string(p)); !ok {
		return fmt.Errorf("refusing to save unknown profile %q", p)
	}

	return s.write(string(p))
}
