//go:build !unix

package state

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// dir checks each component below home, creating missing ones when asked.
func (s *Store) dir(create bool) (string, error) {
	dir := s.home

	for _, name := range dirParts {
		dir = filepath.Join(dir, name)

		info, err := os.Lstat(dir)
		if errors.Is(err, fs.ErrNotExist) && create {
			if err := os.Mkdir(dir, 0o755); err != nil && !errors.Is(err, fs.ErrExist) {
				return "", err
			}
			info, err = os.Lstat(dir)
		}
		if err != nil {
			return "", err
		}
		if !info.IsDir() {
			return "", fmt.Errorf("%w: %s", ErrUnsafeDir, dir)
		}
	}

	return dir, nil
}

func (s *Store) read() ([]byte, error) {
	dir, err := s.dir(false)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(dir, fileName)

	info, err := os.Lstat(path)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, ErrNotFile
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return io.ReadAll(io.LimitReader(f, maxRead))
}

func (s *Store) write(token string) error {
	dir, err := s.dir(true)
	if err != nil {
		return err
	}

	f, err := os.CreateTemp(dir, ".state-*")
	if err != nil {
		return err
	}
	tmp := f.Name()

	if _, err := f.WriteString(token); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}

	if err := os.Rename(tmp, filepath.Join(dir, fileName)); err != nil {
		_ = os.Remove(tmp)
		return err
	}

	return nil
}
