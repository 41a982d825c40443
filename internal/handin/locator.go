// Package handin locates a group's handin archive and unarchives it into the
// group's workspace, once per part and group for the life of the process.
package handin

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/noah-isme/gema-grader/internal/models"
)

// ErrHandinNotFound indicates no archive is attributed to the group.
var ErrHandinNotFound = errors.New("handin not found")

// archiveSuffixes are stripped from a file name to recover the login or group name it belongs to.
// Longer suffixes come first so ".tar.gz" wins over ".gz".
var archiveSuffixes = []string{".tar.gz", ".tgz", ".tar", ".zip", ".jar"}

// File is a located handin archive.
type File struct {
	Path        string
	SubmittedAt time.Time
}

// Locator finds handin archives inside a gradable event's handin directory.
type Locator struct{}

// NewLocator constructs a locator.
func NewLocator() *Locator {
	return &Locator{}
}

// Latest returns the most recently modified archive named after any member login
// or the group name. Ties on modification time resolve to the lexically first name.
func (l *Locator) Latest(event models.GradableEvent, group models.Group) (File, error) {
	if strings.TrimSpace(event.HandinDirectory) == "" {
		return File{}, fmt.Errorf("%w: event %q has no handin directory", ErrHandinNotFound, event.Name)
	}

	entries, err := os.ReadDir(event.HandinDirectory)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return File{}, fmt.Errorf("%w: handin directory %s does not exist", ErrHandinNotFound, event.HandinDirectory)
		}
		return File{}, fmt.Errorf("read handin directory: %w", err)
	}

	owners := make(map[string]struct{}, len(group.Members)+1)
	owners[group.Name] = struct{}{}
	for _, login := range group.Logins() {
		owners[login] = struct{}{}
	}

	var latest File
	found := false
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		owner, ok := StripArchiveSuffix(entry.Name())
		if !ok {
			continue
		}
		if _, match := owners[owner]; !match {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			return File{}, fmt.Errorf("stat handin %s: %w", entry.Name(), err)
		}

		candidate := File{Path: filepath.Join(event.HandinDirectory, entry.Name()), SubmittedAt: info.ModTime()}
		if !found || candidate.SubmittedAt.After(latest.SubmittedAt) {
			latest = candidate
			found = true
		}
	}

	if !found {
		return File{}, fmt.Errorf("%w: group %q in %s", ErrHandinNotFound, group.Name, event.HandinDirectory)
	}
	return latest, nil
}

// StripArchiveSuffix removes a recognised archive suffix from a file name.
func StripArchiveSuffix(name string) (string, bool) {
	lower := strings.ToLower(name)
	for _, suffix := range archiveSuffixes {
		if strings.HasSuffix(lower, suffix) && len(name) > len(suffix) {
			return name[:len(name)-len(suffix)], true
		}
	}
	return "", false
}
