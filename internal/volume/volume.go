// Package volume maps paths to physical volumes and samples per-volume
// free space and I/O busyness. Volumes are the unit of scheduling fairness:
// one identifier per mounted filesystem, with a sentinel for network paths.
package volume

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/shirou/gopsutil/v3/disk"
)

// NetworkID is the sentinel volume identifier for UNC/network paths, which
// have no local device to sample.
const NetworkID = "net"

type partition struct {
	mountpoint string
	device     string
}

// Resolver maps absolute paths to volume identifiers using the mount table
// captured at construction time. Mounts are assumed stable for the length
// of a run.
type Resolver struct {
	parts []partition // sorted by mountpoint length, longest first
}

// NewResolver snapshots the mount table.
func NewResolver() (*Resolver, error) {
	ps, err := disk.Partitions(false)
	if err != nil {
		return nil, err
	}
	parts := make([]partition, 0, len(ps))
	for _, p := range ps {
		parts = append(parts, partition{mountpoint: p.Mountpoint, device: deviceName(p.Device)})
	}
	sort.Slice(parts, func(i, j int) bool {
		return len(parts[i].mountpoint) > len(parts[j].mountpoint)
	})
	return &Resolver{parts: parts}, nil
}

// newResolverFromParts is the test seam for a fake mount table.
func newResolverFromParts(parts []partition) *Resolver {
	sorted := make([]partition, len(parts))
	copy(sorted, parts)
	for i := range sorted {
		sorted[i].device = deviceName(sorted[i].device)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return len(sorted[i].mountpoint) > len(sorted[j].mountpoint)
	})
	return &Resolver{parts: sorted}
}

// ID returns the volume identifier for a path: the longest matching
// mountpoint, or NetworkID for UNC-style paths. An unmatchable local path
// falls back to the filesystem root.
func (r *Resolver) ID(path string) string {
	if IsNetworkPath(path) {
		return NetworkID
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	for _, p := range r.parts {
		if abs == p.mountpoint || strings.HasPrefix(abs, withSep(p.mountpoint)) {
			return p.mountpoint
		}
	}
	return string(filepath.Separator)
}

// IsMountpoint reports whether path is itself the root of a mounted
// volume.
func (r *Resolver) IsMountpoint(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	abs = filepath.Clean(abs)
	for _, p := range r.parts {
		if abs == p.mountpoint {
			return true
		}
	}
	return false
}

// Device returns the short device name backing a volume identifier, or ""
// when unknown (network sentinel, unmatched mountpoint).
func (r *Resolver) Device(volID string) string {
	for _, p := range r.parts {
		if p.mountpoint == volID {
			return p.device
		}
	}
	return ""
}

// IsNetworkPath reports whether a path is UNC-style (//host/share).
func IsNetworkPath(path string) bool {
	return strings.HasPrefix(path, "//") || strings.HasPrefix(path, `\\`)
}

// FreeSpace returns the free bytes on the volume holding path.
func FreeSpace(path string) (uint64, error) {
	u, err := disk.Usage(path)
	if err != nil {
		return 0, err
	}
	return u.Free, nil
}

func withSep(mount string) string {
	if strings.HasSuffix(mount, string(filepath.Separator)) {
		return mount
	}
	return mount + string(filepath.Separator)
}

func deviceName(dev string) string {
	return strings.TrimPrefix(dev, "/dev/")
}
