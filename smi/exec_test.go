package smi

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeScript drops an executable shell script standing in for a binary.
func writeScript(t *testing.T, body string) string {
	t.Helper()

	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}

	path := filepath.Join(t.TempDir(), "tool")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	return path
}

func TestExecutorRunExitCode(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"success", "exit 0", 0},
		{"failure", "exit 3", 3},
		{"output discarded", "echo noisy; echo louder >&2; exit 0", 0},
	}

	e := NewExecutor(nil, 5*time.Second)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, err := e.Run(context.Background(), []string{writeScript(t, tt.body)})
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if code != tt.want {
				t.Errorf("Run() code = %d, want %d", code, tt.want)
			}
		})
	}
}

func TestExecutorCaptureCombined(t *testing.T) {
	path := writeScript(t, `echo "out $1"; echo "err $2" >&2; exit 4`)

	out, err := NewExecutor(nil, 5*time.Second).Capture(context.Background(), []string{path, "a b", "*"})
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}

	if out.ExitCode != 4 {
		t.Errorf("ExitCode = %d, want 4", out.ExitCode)
	}
	if out.Truncated {
		t.Error("Truncated = true for small output")
	}

	got := out.String()
	if !strings.Contains(got, "out a b\n") || !strings.Contains(got, "err *\n") {
		t.Errorf("Capture() output = %q, want both streams with arguments unexpanded", got)
	}
}

func TestExecutorCaptureTruncates(t *testing.T) {
	path := writeScript(t, `i=0; while [ $i -lt 200 ]; do echo 1234567890; i=$((i+1)); done`)

	e := NewExecutor(nil, 5*time.Second)
	e.CaptureLimit = 100

	out, err := e.Capture(context.Background(), []string{path})
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}

	if !out.Truncated {
		t.Error("Truncated = false, want true")
	}
	if len(out.Data) != 100 {
		t.Errorf("kept %d bytes, want 100", len(out.Data))
	}
	if out.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", out.ExitCode)
	}
}

func TestExecutorRejectsBadArgv(t *testing.T) {
	e := NewExecutor(nil, time.Second)

	tests := []struct {
		name string
		argv []string
		want error
	}{
		{"empty", nil, ErrEmptyArgv},
		{"relative", []string{"nvidia-smi"}, ErrRelativePath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Run(context.Background(), tt.argv)

			var execErr *ExecError
			if !errors.As(err, &execErr) {
				t.Fatalf("Run() error = %v, want *ExecError", err)
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Run() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestExecutorMissingBinary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent")

	code, err := NewExecutor(nil, time.Second).Run(context.Background(), []string{path})

	var execErr *ExecError
	if !errors.As(err, &execErr) {
		t.Fatalf("Run() error = %v, want *ExecError", err)
	}
	if code != -1 {
		t.Errorf("Run() code = %d, want -1", code)
	}
}

func TestExecutorTimeout(t *testing.T) {
	path := writeScript(t, "exec sleep 10")

	start := time.Now()
	_, err := NewExecutor(nil, 200*time.Millisecond).Run(context.Background(), []string{path})

	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Run() error = %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Run() took %v after timeout", elapsed)
	}
}

func TestLimitedBuffer(t *testing.T) {
	b := &limitedBuffer{limit: 5}

	for _, chunk := range []string{"ab", "cd", "efgh"} {
		n, err := b.Write([]byte(chunk))
		if err != nil || n != len(chunk) {
			t.Fatalf("Write(%q) = %d, %v", chunk, n, err)
		}
	}

	if got := string(b.Bytes()); got != "abcde" {
		t.Errorf("kept %q, want %q", got, "abcde")
	}
	if !b.truncated {
		t.Error("truncated = false")
	}
}
