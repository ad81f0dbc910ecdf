//go:build windows

package privilege

import (
	"fmt"
	"os"

	"golang.org/x/sys/windows"
)

const toolFile = ToolName + ".exe"

// CurrentIdentity has no real/effective split on windows; Admin reflects
// membership of the Administrators group.
func CurrentIdentity() Identity {
	return Identity{
		RealUID:      -1,
		RealGID:      -1,
		EffectiveUID: -1,
		Admin:        isAdmin(),
	}
}

// See https://github.com/golang/go/issues/28804#issuecomment-505326268
func isAdmin() bool {
	var sid *windows.SID

	err := windows.AllocateAndInitializeSid(
		&windows.SECURITY_NT_AUTHORITY,
		2,
		windows.SECURITY_BUILTIN_DOMAIN_RID,
		windows.DOMAIN_ALIAS_RID_ADMINS,
		0, 0, 0, 0, 0, 0,
		&sid)
	if err != nil {
		return false
	}
	defer windows.FreeSid(sid)

	token := windows.Token(0)

	member, err := token.IsMember(sid)
	if err != nil {
		return false
	}

	return member
}

// ElevationHint tells the user how to give this binary the privileges it
// needs.
func ElevationHint() string {
	exe, err := os.Executable()
	if err != nil {
		exe = "nvflux.exe"
	}

	return fmt.Sprintf("Hint: run %s from an Administrator prompt.", exe)
}

func executable(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func rootOwned(os.FileInfo) bool {
	return true
}
