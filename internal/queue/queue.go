// Package queue enumerates candidate files and organizes them into
// per-volume queues for the scheduler. Queues are built once per run and
// only ever drained; a fresh enumeration requires a fresh build.
package queue

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/backmassage/reclaimer/internal/config"
	"github.com/backmassage/reclaimer/internal/swap"
)

// File is one enumerated candidate. Read-only after enumeration; a
// successful swap produces a logically new file, it does not mutate this
// one.
type File struct {
	Path    string
	Size    int64
	Volume  string
	ModTime time.Time
}

// VolumeResolver maps a path to its volume identifier.
type VolumeResolver interface {
	ID(path string) string
}

// Set holds the per-volume queues. Each file appears in exactly one queue.
type Set struct {
	byVolume map[string][]File
}

// Build walks every target folder recursively and returns the grouped,
// ordered queues. Filters applied, in order: extension allow-list,
// exclusion pattern on the base name, replace-protocol artifacts, and the
// minimum-age cutoff (files modified within the last MinAgeDays are assumed
// to still be downloading and are left alone).
func Build(cfg *config.Config, resolver VolumeResolver, log hclog.Logger) (*Set, error) {
	allowed := make(map[string]bool, len(cfg.Extensions))
	for _, ext := range cfg.Extensions {
		allowed[strings.ToLower(ext)] = true
	}
	ageCutoff := time.Now().AddDate(0, 0, -cfg.MinAgeDays)

	set := &Set{byVolume: make(map[string][]File)}
	for _, target := range cfg.Targets {
		err := filepath.WalkDir(target, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				log.Warn("enumeration error, subtree skipped", "path", path, "error", err)
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}

			name := d.Name()
			if !allowed[strings.ToLower(filepath.Ext(name))] {
				return nil
			}
			if cfg.Exclude != nil && cfg.Exclude.MatchString(name) {
				return nil
			}
			if swap.IsArtifact(name) || swap.IsBackup(name) {
				return nil
			}

			fi, err := d.Info()
			if err != nil {
				return nil
			}
			if fi.ModTime().After(ageCutoff) {
				return nil
			}

			vol := resolver.ID(path)
			set.byVolume[vol] = append(set.byVolume[vol], File{
				Path:    path,
				Size:    fi.Size(),
				Volume:  vol,
				ModTime: fi.ModTime(),
			})
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	for vol := range set.byVolume {
		order(set.byVolume[vol], cfg.SortOrder)
	}
	return set, nil
}

// order sorts one volume's queue deterministically. Size orders tie-break
// on path so the result is a total order.
func order(files []File, so config.SortOrder) {
	switch so {
	case config.SortSmallest:
		sort.Slice(files, func(i, j int) bool {
			if files[i].Size != files[j].Size {
				return files[i].Size < files[j].Size
			}
			return files[i].Path < files[j].Path
		})
	case config.SortLargest:
		sort.Slice(files, func(i, j int) bool {
			if files[i].Size != files[j].Size {
				return files[i].Size > files[j].Size
			}
			return files[i].Path < files[j].Path
		})
	case config.SortAlpha:
		sort.Slice(files, func(i, j int) bool {
			return files[i].Path < files[j].Path
		})
	case config.SortUnordered:
		// Enumeration order.
	}
}

// Volumes returns the identifiers of all non-empty queues, sorted for
// deterministic iteration.
func (s *Set) Volumes() []string {
	vols := make([]string, 0, len(s.byVolume))
	for vol, files := range s.byVolume {
		if len(files) > 0 {
			vols = append(vols, vol)
		}
	}
	sort.Strings(vols)
	return vols
}

// Pop removes and returns the next file from a volume's queue.
func (s *Set) Pop(vol string) (File, bool) {
	files := s.byVolume[vol]
	if len(files) == 0 {
		return File{}, false
	}
	f := files[0]
	s.byVolume[vol] = files[1:]
	return f, true
}

// Len returns the number of files still queued on a volume.
func (s *Set) Len(vol string) int { return len(s.byVolume[vol]) }

// Size returns the total byte size of the files still queued on a volume.
func (s *Set) Size(vol string) int64 {
	var total int64
	for _, f := range s.byVolume[vol] {
		total += f.Size
	}
	return total
}

// Total returns the number of files queued across all volumes.
func (s *Set) Total() int {
	n := 0
	for _, files := range s.byVolume {
		n += len(files)
	}
	return n
}
