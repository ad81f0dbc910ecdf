//go:build unix

package privilege

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTool(t *testing.T, dir string, mode os.FileMode) string {
	t.Helper()

	path := filepath.Join(dir, ToolName)
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), mode); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(path, mode); err != nil {
		t.Fatal(err)
	}

	return path
}

func TestLocatorPrefersCandidates(t *testing.T) {
	candidate := writeTool(t, t.TempDir(), 0o755)
	onPath := t.TempDir()
	writeTool(t, onPath, 0o755)

	l := Locator{
		Candidates: []string{filepath.Join(t.TempDir(), "missing"), candidate},
		SearchPath: onPath,
	}

	got, err := l.Find()
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if got != candidate {
		t.Errorf("Find() = %q, want %q", got, candidate)
	}
}

func TestLocatorSearchPathOrder(t *testing.T) {
	empty := t.TempDir()
	notExec := t.TempDir()
	writeTool(t, notExec, 0o644)
	first := t.TempDir()
	want := writeTool(t, first, 0o755)
	second := t.TempDir()
	writeTool(t, second, 0o755)

	l := Locator{
		SearchPath: strings.Join([]string{"", "relative/bin", empty, notExec, first, second}, string(os.PathListSeparator)),
	}

	got, err := l.Find()
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if got != want {
		t.Errorf("Find() = %q, want %q", got, want)
	}
}

func TestLocatorSkipsRelativeEntries(t *testing.T) {
	dir := t.TempDir()
	writeTool(t, dir, 0o755)
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	_, err = Locator{SearchPath: ".:" + string(os.PathListSeparator)}.Find()
	if !errors.Is(err, ErrToolNotFound) {
		t.Errorf("Find() error = %v, want ErrToolNotFound", err)
	}
}

func TestLocatorNotFound(t *testing.T) {
	l := Locator{
		Candidates: []string{filepath.Join(t.TempDir(), ToolName)},
		SearchPath: t.TempDir(),
	}

	if _, err := l.Find(); !errors.Is(err, ErrToolNotFound) {
		t.Errorf("Find() error = %v, want ErrToolNotFound", err)
	}
}

func TestLocatorRootOwned(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("files created by root are root owned")
	}

	dir := t.TempDir()
	writeTool(t, dir, 0o755)

	l := Locator{SearchPath: dir, RootOwned: true}
	if _, err := l.Find(); !errors.Is(err, ErrToolNotFound) {
		t.Errorf("Find() error = %v, want user-owned tool rejected", err)
	}

	l.RootOwned = false
	if _, err := l.Find(); err != nil {
		t.Errorf("Find() error = %v without ownership requirement", err)
	}
}

func TestIdentity(t *testing.T) {
	tests := []struct {
		name    string
		id      Identity
		setuid  bool
		wantErr error
	}{
		{"setuid root", Identity{RealUID: 1000, EffectiveUID: 0, Admin: true}, true, nil},
		{"plain root", Identity{RealUID: 0, EffectiveUID: 0, Admin: true}, false, nil},
		{"ordinary user", Identity{RealUID: 1000, EffectiveUID: 1000}, false, ErrNotPrivileged},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.id.Setuid(); got != tt.setuid {
				t.Errorf("Setuid() = %v, want %v", got, tt.setuid)
			}
			if err := tt.id.RequirePrivilege(); !errors.Is(err, tt.wantErr) {
				t.Errorf("RequirePrivilege() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCurrentIdentity(t *testing.T) {
	id := CurrentIdentity()

	if id.RealUID != os.Getuid() || id.EffectiveUID != os.Geteuid() {
		t.Errorf("CurrentIdentity() = %+v, want uid %d euid %d", id, os.Getuid(), os.Geteuid())
	}
	if id.Admin != (os.Geteuid() == 0) {
		t.Errorf("Admin = %v with euid %d", id.Admin, os.Geteuid())
	}
	if id.HomeDir() == "" {
		t.Error("HomeDir() is empty")
	}
}
