package queue

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/backmassage/reclaimer/internal/config"
	"github.com/backmassage/reclaimer/internal/logging"
)

// prefixResolver assigns a volume per top-level directory name, standing in
// for the mount-table resolver.
type prefixResolver struct {
	prefixes map[string]string // path prefix -> volume id
}

func (r prefixResolver) ID(path string) string {
	for prefix, vol := range r.prefixes {
		if strings.HasPrefix(path, prefix) {
			return vol
		}
	}
	return "/"
}

func testCfg(targets ...string) *config.Config {
	return &config.Config{
		Targets:           targets,
		Extensions:        []string{".mkv", ".mp4"},
		SortOrder:         config.SortSmallest,
		BitDepth:          config.BitDepthAuto,
		DolbyVision:       config.DVPreserve,
		Threshold4KKbps:   8000,
		Threshold1080Kbps: 4000,
		Width4KCutoff:     2500,
	}
}

// addFile creates a file of the given size with an old enough mod time to
// pass the default age filter.
func addFile(t *testing.T, dir, name string, size int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
	old := time.Now().Add(-30 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))
	return path
}

func TestBuild_FiltersAndGroups(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()
	resolver := prefixResolver{prefixes: map[string]string{dirA: "volA", dirB: "volB"}}

	a1 := addFile(t, dirA, "movies/big.mkv", 300)
	a2 := addFile(t, dirA, "movies/small.mp4", 100)
	b1 := addFile(t, dirB, "tv/episode.mkv", 200)

	// All of these must be filtered out.
	addFile(t, dirA, "notes.txt", 50)
	addFile(t, dirA, "movies/big.sample.mkv", 50)
	addFile(t, dirA, "movies/.big.mkv.1a2b3c4d.reclaimer.tmp.mkv", 50)
	addFile(t, dirA, "movies/old.mkv.bak", 50)

	cfg := testCfg(dirA, dirB)
	cfg.ExcludePattern = `(?i)sample`
	require.NoError(t, cfg.Validate())

	set, err := Build(cfg, resolver, logging.Discard())
	require.NoError(t, err)

	require.Equal(t, 3, set.Total())
	require.Equal(t, []string{"volA", "volB"}, set.Volumes())
	require.Equal(t, 2, set.Len("volA"))
	require.Equal(t, int64(400), set.Size("volA"))

	// Smallest first within the volume.
	f, ok := set.Pop("volA")
	require.True(t, ok)
	require.Equal(t, a2, f.Path)
	f, _ = set.Pop("volA")
	require.Equal(t, a1, f.Path)

	f, _ = set.Pop("volB")
	require.Equal(t, b1, f.Path)
	_, ok = set.Pop("volB")
	require.False(t, ok)
}

func TestBuild_MinAgeExcludesFreshFiles(t *testing.T) {
	dir := t.TempDir()
	resolver := prefixResolver{prefixes: map[string]string{dir: "vol"}}

	addFile(t, dir, "old.mkv", 100)
	fresh := filepath.Join(dir, "downloading.mkv")
	require.NoError(t, os.WriteFile(fresh, make([]byte, 100), 0o644))

	cfg := testCfg(dir)
	cfg.MinAgeDays = 3
	require.NoError(t, cfg.Validate())

	set, err := Build(cfg, resolver, logging.Discard())
	require.NoError(t, err)
	require.Equal(t, 1, set.Total())

	f, _ := set.Pop("vol")
	require.Equal(t, filepath.Join(dir, "old.mkv"), f.Path)
}

func TestBuild_ExtensionMatchIsCaseInsensitive(t *testing.T) {
	dir := t.TempDir()
	resolver := prefixResolver{prefixes: map[string]string{dir: "vol"}}
	addFile(t, dir, "UPPER.MKV", 100)

	cfg := testCfg(dir)
	require.NoError(t, cfg.Validate())

	set, err := Build(cfg, resolver, logging.Discard())
	require.NoError(t, err)
	require.Equal(t, 1, set.Total())
}

func TestOrder_Deterministic(t *testing.T) {
	files := func() []File {
		return []File{
			{Path: "/b.mkv", Size: 100},
			{Path: "/a.mkv", Size: 100},
			{Path: "/c.mkv", Size: 50},
		}
	}

	smallest := files()
	order(smallest, config.SortSmallest)
	require.Equal(t, "/c.mkv", smallest[0].Path)
	// Equal sizes tie-break on path.
	require.Equal(t, "/a.mkv", smallest[1].Path)
	require.Equal(t, "/b.mkv", smallest[2].Path)

	largest := files()
	order(largest, config.SortLargest)
	require.Equal(t, "/a.mkv", largest[0].Path)
	require.Equal(t, "/c.mkv", largest[2].Path)

	alpha := files()
	order(alpha, config.SortAlpha)
	require.Equal(t, "/a.mkv", alpha[0].Path)
	require.Equal(t, "/b.mkv", alpha[1].Path)
	require.Equal(t, "/c.mkv", alpha[2].Path)
}

func TestBuild_MissingTargetIsSkipped(t *testing.T) {
	dir := t.TempDir()
	resolver := prefixResolver{prefixes: map[string]string{dir: "vol"}}
	addFile(t, dir, "movie.mkv", 100)

	cfg := testCfg(filepath.Join(dir, "does-not-exist"), dir)
	require.NoError(t, cfg.Validate())

	set, err := Build(cfg, resolver, logging.Discard())
	require.NoError(t, err)
	require.Equal(t, 1, set.Total())
}
