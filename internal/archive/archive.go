// Package archive lists and extracts handin archives independent of their codec.
package archive

import (
	"errors"
	"path"
	"strings"
)

// ErrArchiveFormat indicates the archive could not be read or uses an unsupported format.
var ErrArchiveFormat = errors.New("archive unreadable or unsupported")

// ErrUnsafeEntry indicates an entry would escape the extraction directory.
var ErrUnsafeEntry = errors.New("archive entry escapes destination")

// Entry describes a single archive member by its slash-separated relative path.
type Entry struct {
	Path  string
	IsDir bool
}

// Name returns the final path element of the entry.
func (e Entry) Name() string {
	return path.Base(e.Path)
}

// Accessor lists archive contents and extracts a filtered subset of them.
type Accessor interface {
	ListEntries(archivePath string) ([]Entry, error)
	Extract(archivePath, destDir string, accept Predicate) error
}

// NormalizePath converts an archive member name into the canonical relative form
// used for matching: forward slashes, no leading "./" or "/", no trailing "/".
func NormalizePath(name string) string {
	cleaned := strings.ReplaceAll(name, "\\", "/")
	cleaned = path.Clean("/" + cleaned)
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "." {
		return ""
	}
	return cleaned
}

// withImpliedDirectories adds directory entries for every parent of every entry
// that the archive did not list explicitly.
func withImpliedDirectories(entries []Entry) []Entry {
	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		if entry.IsDir {
			seen[entry.Path] = struct{}{}
		}
	}

	result := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		for dir := path.Dir(entry.Path); dir != "." && dir != "/" && dir != ""; dir = path.Dir(dir) {
			if _, ok := seen[dir]; ok {
				continue
			}
			seen[dir] = struct{}{}
			result = append(result, Entry{Path: dir, IsDir: true})
		}
		result = append(result, entry)
	}
	return result
}
