package host_test

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/srodi/nv-swaptop/pkg/collector/host"
	"github.com/srodi/nv-swaptop/pkg/collector/host/hosttest"
	"github.com/srodi/nv-swaptop/pkg/types"
)

func TestCommForPIDReadsOnceAndCaches(t *testing.T) {
	sys := hosttest.New()
	sys.SetFile("/proc/42/comm", "db\n")
	sys.SetFile("/proc/77/comm", "   \n")

	cache := map[int]string{}
	if name := host.CommForPID(sys, 42, cache); name != "db" {
		t.Fatalf("expected trimmed db, got %q", name)
	}
	if reads := sys.Reads("/proc/42/comm"); reads != 1 {
		t.Fatalf("expected single read for pid 42, got %d", reads)
	}
	if name := host.CommForPID(sys, 42, cache); name != "db" || sys.Reads("/proc/42/comm") != 1 {
		t.Fatalf("expected cached db, got %q with %d reads", name, sys.Reads("/proc/42/comm"))
	}

	if name := host.CommForPID(sys, 77, cache); name != "pid-77" {
		t.Fatalf("blank comm should fall back, got %q", name)
	}
	if cache[77] != "pid-77" {
		t.Fatalf("expected fallback cached, got %q", cache[77])
	}

	if name := host.CommForPID(sys, 88, cache); name != "pid-88" {
		t.Fatalf("missing file should fall back, got %q", name)
	}
	host.CommForPID(sys, 88, cache)
	if reads := sys.Reads("/proc/88/comm"); reads != 1 {
		t.Fatalf("fallback should be cached, got %d reads", reads)
	}
}

func TestMapFSError(t *testing.T) {
	err := host.MapFSError("/proc/1/numa_maps", fs.ErrNotExist)
	if !errors.Is(err, types.ErrUnavailable) || !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("not-exist should wrap both sentinels, got %v", err)
	}
	if !host.Gone(err) {
		t.Fatalf("expected Gone for %v", err)
	}

	err = host.MapFSError("/proc/1/numa_maps", fs.ErrPermission)
	if !errors.Is(err, types.ErrPermissionDenied) || !host.Denied(err) {
		t.Fatalf("permission should map to ErrPermissionDenied, got %v", err)
	}

	err = host.MapFSError("x", errors.New("io"))
	if types.KindOf(err) != types.KindFailed {
		t.Fatalf("unexpected kind %v", types.KindOf(err))
	}
}

func TestRealReadFileAndListDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "b"), []byte("two"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "a"), []byte("one"), 0o600); err != nil {
		t.Fatal(err)
	}

	sys := host.NewReal()
	data, err := sys.ReadFile(filepath.Join(dir, "a"))
	if err != nil || string(data) != "one" {
		t.Fatalf("read a: %q %v", data, err)
	}
	names, err := sys.ListDir(dir)
	if err != nil || len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Fatalf("list: %v %v", names, err)
	}

	_, err = sys.ReadFile(filepath.Join(dir, "missing"))
	if !errors.Is(err, types.ErrUnavailable) {
		t.Fatalf("missing file should be unavailable, got %v", err)
	}
}

func TestRealRunCommandMissingBinary(t *testing.T) {
	_, err := host.NewReal().RunCommand(context.Background(), "nv-swaptop-definitely-not-installed")
	if !errors.Is(err, types.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestFakeDerivesDirectoriesAndPIDs(t *testing.T) {
	sys := hosttest.New()
	sys.SetFile("/sys/devices/system/node/node1/meminfo", "")
	sys.SetFile("/sys/devices/system/node/node0/meminfo", "")
	sys.SetFile("/proc/12/status", "")
	sys.SetFile("/proc/3/status", "")
	sys.SetFile("/proc/meminfo", "")

	names, err := sys.ListDir("/sys/devices/system/node")
	if err != nil || len(names) != 2 || names[0] != "node0" {
		t.Fatalf("unexpected listing %v %v", names, err)
	}
	pids, _ := sys.ListProcessIDs()
	if len(pids) != 2 || pids[0] != 3 || pids[1] != 12 {
		t.Fatalf("unexpected pids %v", pids)
	}
	if _, err := sys.ListDir("/nope"); !errors.Is(err, types.ErrUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}
