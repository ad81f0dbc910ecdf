//go:build unix

package privilege

import (
	"fmt"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

const toolFile = ToolName

// CurrentIdentity reads the real and effective ids of this process.
func CurrentIdentity() Identity {
	euid := unix.Geteuid()

	return Identity{
		RealUID:      unix.Getuid(),
		RealGID:      unix.Getgid(),
		EffectiveUID: euid,
		Admin:        euid == 0,
	}
}

// ElevationHint tells the user how to give this binary the privileges it
// needs.
func ElevationHint() string {
	exe, err := os.Executable()
	if err != nil {
		exe = "nvflux"
	}

	return fmt.Sprintf("Hint: sudo chown root:root %s && sudo chmod u+s %s", exe, exe)
}

// executable checks execute permission for the real user, as access(2)
// does for a setuid process.
func executable(path string) bool {
	return unix.Access(path, unix.X_OK) == nil
}

func rootOwned(info os.FileInfo) bool {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return false
	}

	return st.Uid == 0 && info.Mode().Perm()&0o022 == 0
}
