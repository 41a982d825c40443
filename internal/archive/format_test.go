package archive

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestFormatAccessorListsZipWithImpliedDirectories(t *testing.T) {
	dir := t.TempDir()
	archivePath := writeZip(t, dir, "alice.zip", []testFile{
		{Name: "src/app/Main.java", Content: "class Main {}"},
		{Name: "README.md", Content: "read me"},
	})

	accessor := NewFormatAccessor(zerolog.Nop())
	entries, err := accessor.ListEntries(archivePath)
	require.NoError(t, err)

	require.ElementsMatch(t, []Entry{
		{Path: "src", IsDir: true},
		{Path: "src/app", IsDir: true},
		{Path: "src/app/Main.java"},
		{Path: "README.md"},
	}, entries)
}

func TestFormatAccessorExtractsFilteredTarGz(t *testing.T) {
	dir := t.TempDir()
	archivePath := writeTarGz(t, dir, "bob.tar.gz", []testFile{
		{Name: "lib/", Content: ""},
		{Name: "lib/util.m", Content: "function util()"},
		{Name: "notes.txt", Content: "scratch"},
	})

	dest := filepath.Join(dir, "out")
	accessor := NewFormatAccessor(zerolog.Nop())
	err := accessor.Extract(archivePath, dest, func(e Entry) bool {
		return e.IsDir || strings.HasSuffix(e.Path, ".m")
	})
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(dest, "lib", "util.m"))
	require.NoError(t, err)
	require.Equal(t, "function util()", string(content))

	_, err = os.Stat(filepath.Join(dest, "notes.txt"))
	require.True(t, os.IsNotExist(err))
}

func TestFormatAccessorRejectsUnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	bogus := filepath.Join(dir, "carol.zip")
	require.NoError(t, os.WriteFile(bogus, []byte("definitely not an archive"), 0o600))

	accessor := NewFormatAccessor(zerolog.Nop())
	_, err := accessor.ListEntries(bogus)
	require.ErrorIs(t, err, ErrArchiveFormat)
}

func TestFormatAccessorRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	archivePath := writeZip(t, dir, "evil.zip", []testFile{
		{Name: "../escape.txt", Content: "gotcha"},
	})

	accessor := NewFormatAccessor(zerolog.Nop())
	err := accessor.Extract(archivePath, filepath.Join(dir, "out"), AcceptAll())
	require.ErrorIs(t, err, ErrUnsafeEntry)

	_, statErr := os.Stat(filepath.Join(dir, "escape.txt"))
	require.True(t, os.IsNotExist(statErr))
}

func TestPredicateCombinators(t *testing.T) {
	isDir := func(e Entry) bool { return e.IsDir }
	isJava := func(e Entry) bool { return strings.HasSuffix(e.Path, ".java") }

	file := Entry{Path: "Main.java"}
	folder := Entry{Path: "src", IsDir: true}

	require.True(t, Or(isDir, isJava)(file))
	require.False(t, And(isDir, isJava)(file))
	require.True(t, Not(isDir)(file))
	require.False(t, AcceptNone()(folder))
	require.True(t, AcceptAll()(folder))
}

func TestNormalizePath(t *testing.T) {
	require.Equal(t, "a/b", NormalizePath("./a/b/"))
	require.Equal(t, "a/b", NormalizePath("a\\b"))
	require.Equal(t, "", NormalizePath("./"))
}
