package host

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// ProcPath joins a per-process file under /proc.
func ProcPath(pid int, file string) string {
	return filepath.Join("/proc", strconv.Itoa(pid), file)
}

// CommForPID resolves a process name from /proc/<pid>/comm, remembering the
// answer in cache. Unreadable or blank names fall back to "pid-<n>" and are
// cached too, so a vanished process costs one read.
func CommForPID(sys System, pid int, cache map[int]string) string {
	if name, ok := cache[pid]; ok {
		return name
	}
	fallback := fmt.Sprintf("pid-%d", pid)
	if pid <= 0 {
		return fallback
	}
	data, err := sys.ReadFile(ProcPath(pid, "comm"))
	if err != nil {
		cache[pid] = fallback
		return fallback
	}
	comm := strings.TrimSpace(string(data))
	if comm == "" {
		comm = fallback
	}
	cache[pid] = comm
	return comm
}
