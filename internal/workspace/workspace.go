// Package workspace owns the private per-part, per-group directories handins are unarchived into.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grader/internal/models"
)

// ErrWorkspaceCreationFailed indicates the unarchive directory could not be created or cleaned.
var ErrWorkspaceCreationFailed = errors.New("workspace creation failed")

// Manager lays out unarchive directories below a root.
type Manager struct {
	root   string
	logger zerolog.Logger
}

// NewManager constructs a workspace manager rooted at root.
func NewManager(root string, logger zerolog.Logger) *Manager {
	if root == "" {
		root = filepath.Join(os.TempDir(), "gema-grader")
	}
	return &Manager{
		root:   root,
		logger: logger.With().Str("component", "workspace").Logger(),
	}
}

// Root returns the directory all workspaces live under.
func (m *Manager) Root() string {
	return m.root
}

// Dir returns the unarchive directory for a part and group without touching the filesystem.
func (m *Manager) Dir(part models.DistributablePart, group models.Group) string {
	return filepath.Join(
		m.root,
		segment(part.AssignmentName(), part.GradableEvent.AssignmentID),
		segment(part.Name, part.ID),
		segment(group.Name, group.ID),
	)
}

// Prepare removes any stale directory for the part and group and creates it empty.
func (m *Manager) Prepare(part models.DistributablePart, group models.Group) (string, error) {
	dir := m.Dir(part, group)

	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("%w: clean %s: %v", ErrWorkspaceCreationFailed, dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create %s: %v", ErrWorkspaceCreationFailed, dir, err)
	}

	m.logger.Debug().Str("dir", dir).Uint("part_id", part.ID).Uint("group_id", group.ID).Msg("workspace prepared")
	return dir, nil
}

// segment turns a display name into a single safe path element suffixed with
// the id, so distinct records never share a directory.
func segment(name string, id uint) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, strings.TrimSpace(name))
	cleaned = strings.Trim(cleaned, "._")
	suffix := strconv.FormatUint(uint64(id), 10)
	if cleaned == "" {
		return suffix
	}
	return cleaned + "-" + suffix
}
