package handin

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-grader/internal/archive"
	"github.com/noah-isme/gema-grader/internal/models"
	"github.com/noah-isme/gema-grader/internal/workspace"
)

type countingAccessor struct {
	archive.Accessor
	extracts atomic.Int32
}

func (a *countingAccessor) Extract(path, dest string, accept archive.Predicate) error {
	a.extracts.Add(1)
	return a.Accessor.Extract(path, dest, accept)
}

type recordingSink struct {
	mu     sync.Mutex
	calls  [][]string
	cached []bool
}

func (s *recordingSink) MissingFiles(_ context.Context, _ models.DistributablePart, _ models.Group, missing []string, cached bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, missing)
	s.cached = append(s.cached, cached)
}

func writeHandinZip(t *testing.T, path string, names ...string) {
	t.Helper()
	out, err := os.Create(path)
	require.NoError(t, err)
	defer out.Close()

	w := zip.NewWriter(out)
	for _, name := range names {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte("content of " + name))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
}

type harness struct {
	accessor   *countingAccessor
	sink       *recordingSink
	unarchiver *Unarchiver
	handins    string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		accessor: &countingAccessor{Accessor: archive.NewFormatAccessor(zerolog.Nop())},
		sink:     &recordingSink{},
		handins:  t.TempDir(),
	}
	h.unarchiver = NewUnarchiver(h.accessor, NewLocator(), workspace.NewManager(t.TempDir(), zerolog.Nop()), h.sink, zerolog.Nop())
	return h
}

func (h *harness) part(filter string) models.DistributablePart {
	return models.DistributablePart{
		ID:              1,
		Name:            "P1",
		InclusionFilter: []byte(filter),
		GradableEvent: models.GradableEvent{
			Name:            "Final",
			HandinDirectory: h.handins,
			Assignment:      models.Assignment{Name: "A1", Number: 1},
		},
	}
}

func aliceBob() models.Group {
	return models.Group{ID: 4, Name: "alice-bob", Members: []models.Student{{Login: "alice"}, {Login: "bob"}}}
}

func listFiles(t *testing.T, root string) []string {
	t.Helper()
	var files []string
	require.NoError(t, filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		require.NoError(t, err)
		if !d.IsDir() {
			rel, err := filepath.Rel(root, path)
			require.NoError(t, err)
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	}))
	sort.Strings(files)
	return files
}

const javaFilter = `{"rules":[{"kind":"extensions","extensions":["java"]}]}`

func TestUnarchiveFiltersCleanHandin(t *testing.T) {
	h := newHarness(t)
	writeHandinZip(t, filepath.Join(h.handins, "alice.zip"), "Main.java", "notes.txt", "README.md")

	record, err := h.unarchiver.Unarchive(context.Background(), h.part(javaFilter), aliceBob())
	require.NoError(t, err)
	require.True(t, record.Clean())
	require.Equal(t, []string{"Main.java", "README.md"}, listFiles(t, record.Dir))
	require.Empty(t, h.sink.calls)
}

func TestUnarchiveFallsBackToWholeArchiveWhenFilesMissing(t *testing.T) {
	h := newHarness(t)
	writeHandinZip(t, filepath.Join(h.handins, "alice-bob.zip"), "src/Main.py", "notes.txt")

	filter := `{"rules":[{"kind":"file","path":"src/Main.java"},{"kind":"directory","path":"src"}]}`
	record, err := h.unarchiver.Unarchive(context.Background(), h.part(filter), aliceBob())
	require.NoError(t, err)
	require.False(t, record.Clean())
	require.Equal(t, []string{"missing file: src/Main.java"}, record.Missing)
	require.Equal(t, []string{"notes.txt", "src/Main.py"}, listFiles(t, record.Dir))

	_, err = h.unarchiver.Unarchive(context.Background(), h.part(filter), aliceBob())
	require.NoError(t, err)
	require.Len(t, h.sink.calls, 2)
	require.Equal(t, []bool{false, true}, h.sink.cached)
	require.Equal(t, h.sink.calls[0], h.sink.calls[1])
}

func TestUnarchiveExtractsOnceForConcurrentCallers(t *testing.T) {
	h := newHarness(t)
	writeHandinZip(t, filepath.Join(h.handins, "bob.zip"), "Main.java")

	var wg sync.WaitGroup
	records := make([]Record, 8)
	for i := range records {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			record, err := h.unarchiver.Unarchive(context.Background(), h.part(javaFilter), aliceBob())
			require.NoError(t, err)
			records[i] = record
		}(i)
	}
	wg.Wait()

	require.EqualValues(t, 1, h.accessor.extracts.Load())
	for _, r := range records {
		require.Equal(t, records[0], r)
	}
}

func TestUnarchiveDoesNotCacheFailures(t *testing.T) {
	h := newHarness(t)
	part := h.part(javaFilter)

	_, err := h.unarchiver.Unarchive(context.Background(), part, aliceBob())
	require.ErrorIs(t, err, ErrHandinNotFound)

	writeHandinZip(t, filepath.Join(h.handins, "alice.zip"), "Main.java")
	record, err := h.unarchiver.Unarchive(context.Background(), part, aliceBob())
	require.NoError(t, err)
	require.Equal(t, []string{"Main.java"}, listFiles(t, record.Dir))
}

func TestUnarchiveSurfacesUnreadableArchive(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.WriteFile(filepath.Join(h.handins, "alice.zip"), []byte("not an archive"), 0o644))

	_, err := h.unarchiver.Unarchive(context.Background(), h.part(javaFilter), aliceBob())
	require.ErrorIs(t, err, archive.ErrArchiveFormat)
}

func TestReadmesAreScannedOnce(t *testing.T) {
	h := newHarness(t)
	writeHandinZip(t, filepath.Join(h.handins, "alice.zip"), "Main.java", "README.md", "docs/readme.txt", "README.md~", ".hidden/README")

	readmes, err := h.unarchiver.Readmes(context.Background(), h.part(`{}`), aliceBob())
	require.NoError(t, err)

	record, err := h.unarchiver.Unarchive(context.Background(), h.part(`{}`), aliceBob())
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(record.Dir, "README.md"), filepath.Join(record.Dir, "docs", "readme.txt")}, readmes)

	require.NoError(t, os.WriteFile(filepath.Join(record.Dir, "README.extra"), nil, 0o644))
	again, err := h.unarchiver.Readmes(context.Background(), h.part(`{}`), aliceBob())
	require.NoError(t, err)
	require.Equal(t, readmes, again)
}

func TestLocatorPicksMostRecentHandin(t *testing.T) {
	dir := t.TempDir()
	older := filepath.Join(dir, "alice.zip")
	newer := filepath.Join(dir, "bob.tar.gz")
	unrelated := filepath.Join(dir, "carol.zip")
	for _, p := range []string{older, newer, unrelated} {
		require.NoError(t, os.WriteFile(p, nil, 0o644))
	}

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(older, base, base))
	require.NoError(t, os.Chtimes(newer, base.Add(time.Hour), base.Add(time.Hour)))
	require.NoError(t, os.Chtimes(unrelated, base.Add(2*time.Hour), base.Add(2*time.Hour)))

	file, err := NewLocator().Latest(models.GradableEvent{HandinDirectory: dir}, aliceBob())
	require.NoError(t, err)
	require.Equal(t, newer, file.Path)
	require.True(t, file.SubmittedAt.Equal(base.Add(time.Hour)))
}

func TestLocatorBreaksTiesByName(t *testing.T) {
	dir := t.TempDir()
	stamp := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for _, name := range []string{"bob.zip", "alice-bob.zip", "alice.zip"} {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, nil, 0o644))
		require.NoError(t, os.Chtimes(p, stamp, stamp))
	}

	file, err := NewLocator().Latest(models.GradableEvent{HandinDirectory: dir}, aliceBob())
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "alice-bob.zip"), file.Path)
}

func TestLocatorReportsMissingHandin(t *testing.T) {
	_, err := NewLocator().Latest(models.GradableEvent{HandinDirectory: t.TempDir()}, aliceBob())
	require.ErrorIs(t, err, ErrHandinNotFound)

	_, err = NewLocator().Latest(models.GradableEvent{}, aliceBob())
	require.ErrorIs(t, err, ErrHandinNotFound)
}

func TestStripArchiveSuffix(t *testing.T) {
	name, ok := StripArchiveSuffix("alice.TAR.GZ")
	require.True(t, ok)
	require.Equal(t, "alice", name)

	_, ok = StripArchiveSuffix("alice.txt")
	require.False(t, ok)
}
