//go:build unix

package state

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

const dirFlags = unix.O_RDONLY | unix.O_DIRECTORY | unix.O_NOFOLLOW | unix.O_CLOEXEC

// openDir walks from the home directory to the state directory one
// component at a time, refusing symlinks. With create set, missing
// components are made and handed to the store's user.
func (s *Store) openDir(create bool) (int, error) {
	fd, err := unix.Open(s.home, unix.O_RDONLY|unix.O_DIRECTORY|unix.O_CLOEXEC, 0)
	if err != nil {
		return -1, &os.PathError{Op: "open", Path: s.home, Err: err}
	}

	for _, name := range dirParts {
		next, err := unix.Openat(fd, name, dirFlags, 0)
		if errors.Is(err, unix.ENOENT) && create {
			if err := unix.Mkdirat(fd, name, 0o755); err != nil && !errors.Is(err, unix.EEXIST) {
				unix.Close(fd)
				return -1, &os.PathError{Op: "mkdir", Path: name, Err: err}
			}
			if s.uid >= 0 {
				_ = unix.Fchownat(fd, name, s.uid, s.gid, unix.AT_SYMLINK_NOFOLLOW)
			}
			next, err = unix.Openat(fd, name, dirFlags, 0)
		}
		unix.Close(fd)

		switch {
		case errors.Is(err, unix.ELOOP), errors.Is(err, unix.ENOTDIR), errors.Is(err, unix.EMLINK):
			return -1, fmt.Errorf("%w: %s", ErrUnsafeDir, name)
		case err != nil:
			return -1, &os.PathError{Op: "open", Path: name, Err: err}
		}

		fd = next
	}

	return fd, nil
}

func (s *Store) read() ([]byte, error) {
	dir, err := s.openDir(false)
	if err != nil {
		return nil, err
	}
	defer unix.Close(dir)

	// O_NONBLOCK keeps a FIFO planted in place of the file from hanging us.
	fd, err := unix.Openat(dir, fileName, unix.O_RDONLY|unix.O_NOFOLLOW|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, &os.PathError{Op: "open", Path: fileName, Err: err}
	}

	f := os.NewFile(uintptr(fd), fileName)
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, ErrNotFile
	}

	return io.ReadAll(io.LimitReader(f, maxRead))
}

func (s *Store) write(token string) error {
	dir, err := s.openDir(true)
	if err != nil {
		return err
	}
	defer unix.Close(dir)

	tmp := fmt.Sprintf(".state-%d-%d", os.Getpid(), time.Now().UnixNano())

	fd, err := unix.Openat(dir, tmp, unix.O_WRONLY|unix.O_CREAT|unix.O_EXCL|unix.O_NOFOLLOW|unix.O_CLOEXEC, 0o600)
	if err != nil {
		return &os.PathError{Op: "create", Path: tmp, Err: err}
	}

	f := os.NewFile(uintptr(fd), tmp)
	if err := s.fill(f, token); err != nil {
		_ = f.Close()
		_ = unix.Unlinkat(dir, tmp, 0)
		return err
	}
	if err := f.Close(); err != nil {
		_ = unix.Unlinkat(dir, tmp, 0)
		return err
	}

	if err := unix.Renameat(dir, tmp, dir, fileName); err != nil {
		_ = unix.Unlinkat(dir, tmp, 0)
		return &os.LinkError{Op: "rename", Old: tmp, New: fileName, Err: err}
	}

	return nil
}

func (s *Store) fill(f *os.File, token string) error {
	if s.uid >= 0 {
		if err := unix.Fchown(int(f.Fd()), s.uid, s.gid); err != nil {
			return err
		}
	}

	if err := unix.Fchmod(int(f.Fd()), 0o600); err != nil {
		return err
	}

	_, err := f.WriteString(token)

	return err
}
