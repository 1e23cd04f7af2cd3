// Package hosttest provides an in-memory host.System for collector tests.
package hosttest

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/srodi/nv-swaptop/pkg/collector/host"
	"github.com/srodi/nv-swaptop/pkg/types"
)

// CommandResult is the canned outcome of one command.
type CommandResult struct {
	Stdout string
	Err    error
}

// Fake serves files, directories and commands from maps. The zero value is
// an empty host; fields may be filled directly before use.
type Fake struct {
	mu sync.Mutex

	Files    map[string]string
	Errors   map[string]error
	Dirs     map[string][]string
	Commands map[string]CommandResult
	PIDs     []int
	Memory   host.MemoryStatus
	// MemoryErr, when set, is returned by MemoryStatus.
	MemoryErr error

	reads map[string]int
	runs  map[string]int
	args  map[string][]string
}

// New returns an empty fake host.
func New() *Fake {
	return &Fake{
		Files:    map[string]string{},
		Errors:   map[string]error{},
		Dirs:     map[string][]string{},
		Commands: map[string]CommandResult{},
	}
}

// SetFile installs content at path.
func (f *Fake) SetFile(p, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Files == nil {
		f.Files = map[string]string{}
	}
	f.Files[p] = content
}

// SetError makes every access to path fail with err.
func (f *Fake) SetError(p string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Errors == nil {
		f.Errors = map[string]error{}
	}
	f.Errors[p] = err
}

// SetCommand installs the canned result for name.
func (f *Fake) SetCommand(name string, result CommandResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Commands == nil {
		f.Commands = map[string]CommandResult{}
	}
	f.Commands[name] = result
}

// Remove deletes a file, simulating a process that exited.
func (f *Fake) Remove(p string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Files, p)
}

// Reads reports how many times path was read.
func (f *Fake) Reads(p string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads[p]
}

// Runs reports how many times the named command ran.
func (f *Fake) Runs(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs[name]
}

// LastArgs returns the arguments of the most recent run of name.
func (f *Fake) LastArgs(name string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.args[name]
}

func (f *Fake) ReadFile(p string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reads == nil {
		f.reads = map[string]int{}
	}
	f.reads[p]++
	if err, ok := f.Errors[p]; ok {
		return nil, err
	}
	content, ok := f.Files[p]
	if !ok {
		return nil, host.MapFSError(p, fs.ErrNotExist)
	}
	return []byte(content), nil
}

// ListDir returns Dirs[p] when set, otherwise the direct children implied by
// the keys of Files.
func (f *Fake) ListDir(p string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.Errors[p]; ok {
		return nil, err
	}
	if entries, ok := f.Dirs[p]; ok {
		out := append([]string(nil), entries...)
		sort.Strings(out)
		return out, nil
	}

	prefix := strings.TrimSuffix(p, "/") + "/"
	seen := map[string]struct{}{}
	for file := range f.Files {
		rest, ok := strings.CutPrefix(file, prefix)
		if !ok || rest == "" {
			continue
		}
		child, _, _ := strings.Cut(rest, "/")
		seen[child] = struct{}{}
	}
	if len(seen) == 0 {
		return nil, host.MapFSError(p, fs.ErrNotExist)
	}
	out := make([]string, 0, len(seen))
	for child := range seen {
		out = append(out, child)
	}
	sort.Strings(out)
	return out, nil
}

func (f *Fake) RunCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.runs == nil {
		f.runs = map[string]int{}
		f.args = map[string][]string{}
	}
	f.runs[name]++
	f.args[name] = append([]string(nil), args...)

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", name, types.ErrTimeout, err)
	}
	result, ok := f.Commands[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, types.ErrUnavailable)
	}
	if result.Err != nil {
		return nil, result.Err
	}
	return []byte(result.Stdout), nil
}

func (f *Fake) ListProcessIDs() ([]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PIDs != nil {
		return append([]int(nil), f.PIDs...), nil
	}
	// Derive from /proc/<pid>/... files.
	seen := map[int]struct{}{}
	for file := range f.Files {
		rest, ok := strings.CutPrefix(file, "/proc/")
		if !ok {
			continue
		}
		dir, _, _ := strings.Cut(rest, "/")
		if pid, err := strconv.Atoi(dir); err == nil && pid > 0 {
			seen[pid] = struct{}{}
		}
	}
	pids := make([]int, 0, len(seen))
	for pid := range seen {
		pids = append(pids, pid)
	}
	sort.Ints(pids)
	return pids, nil
}

func (f *Fake) MemoryStatus() (host.MemoryStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Memory, f.MemoryErr
}

var _ host.System = (*Fake)(nil)
