// Package host is the only place collectors touch the operating system.
// Everything goes through System so tests can substitute an in-memory host.
package host

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strings"

	"github.com/srodi/nv-swaptop/pkg/types"
)

// MemoryStatus is the host-wide memory summary reported by the kernel.
type MemoryStatus struct {
	RAMTotalBytes  uint64
	SwapTotalBytes uint64
	SwapFreeBytes  uint64
}

// System is the capability set collectors need from the host.
//
// Errors wrap types.ErrUnavailable when the path or command does not exist,
// types.ErrPermissionDenied when it cannot be accessed, types.ErrTimeout when
// ctx expires and types.ErrCommandFailed when a command exits non-zero.
type System interface {
	ReadFile(path string) ([]byte, error)
	ListDir(path string) ([]string, error)
	RunCommand(ctx context.Context, name string, args ...string) ([]byte, error)
	ListProcessIDs() ([]int, error)
	MemoryStatus() (MemoryStatus, error)
}

// Real is the System backed by the running kernel.
type Real struct{}

// NewReal returns the live host.
func NewReal() *Real { return &Real{} }

// ReadFile reads path, mapping fs errors onto the collection sentinels.
func (Real) ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, MapFSError(path, err)
	}
	return data, nil
}

// ListDir returns the entry names of a directory in lexical order.
func (Real) ListDir(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, MapFSError(path, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names, nil
}

// RunCommand runs name with args and returns stdout. Stderr is folded into
// the error when the command fails.
func (Real) RunCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	binary, err := exec.LookPath(name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", name, types.ErrUnavailable, err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s: %w: %w", name, types.ErrTimeout, ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			msg := strings.TrimSpace(stderr.String())
			if msg == "" {
				msg = strings.TrimSpace(stdout.String())
			}
			return nil, fmt.Errorf("%s exited %d: %w: %s", name, exitErr.ExitCode(), types.ErrCommandFailed, msg)
		}
		return nil, MapFSError(name, err)
	}
	return stdout.Bytes(), nil
}

// MapFSError wraps err with the sentinel matching its cause. The underlying
// error stays reachable through errors.Is.
func MapFSError(path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%s: %w: %w", path, types.ErrUnavailable, err)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%s: %w: %w", path, types.ErrPermissionDenied, err)
	}
	return fmt.Errorf("%s: %w", path, err)
}

// Gone reports whether err means the object vanished or never existed. For
// per-process files this is a process that exited mid-scan.
func Gone(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, types.ErrUnavailable)
}

// Denied reports whether err is an access failure.
func Denied(err error) bool {
	return errors.Is(err, fs.ErrPermission) || errors.Is(err, types.ErrPermissionDenied)
}
