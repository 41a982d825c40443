package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-grader/internal/models"
)

func TestManagerPrepareCleansStaleContent(t *testing.T) {
	root := t.TempDir()
	manager := NewManager(root, zerolog.Nop())

	part := models.DistributablePart{ID: 3, Name: "P1", GradableEvent: models.GradableEvent{AssignmentID: 1, Assignment: models.Assignment{ID: 1, Name: "A1"}}}
	group := models.Group{ID: 9, Name: "alice-bob"}

	dir, err := manager.Prepare(part, group)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "A1-1", "P1-3", "alice-bob-9"), dir)

	stale := filepath.Join(dir, "old.txt")
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0o600))

	again, err := manager.Prepare(part, group)
	require.NoError(t, err)
	require.Equal(t, dir, again)
	_, err = os.Stat(stale)
	require.True(t, os.IsNotExist(err))
}

func TestSegmentSanitizesNames(t *testing.T) {
	require.Equal(t, "Homework_1-4", segment("Homework 1", 4))
	require.Equal(t, "a_b-4", segment("a/b", 4))
	require.Equal(t, "7", segment("..", 7))
}

func TestManagerKeepsGroupsWithCollidingNamesApart(t *testing.T) {
	root := t.TempDir()
	manager := NewManager(root, zerolog.Nop())
	part := models.DistributablePart{ID: 3, Name: "P1"}

	first, err := manager.Prepare(part, models.Group{ID: 1, Name: "alice bob"})
	require.NoError(t, err)
	marker := filepath.Join(first, "Main.java")
	require.NoError(t, os.WriteFile(marker, []byte("class Main {}"), 0o600))

	second, err := manager.Prepare(part, models.Group{ID: 2, Name: "alice_bob"})
	require.NoError(t, err)

	require.NotEqual(t, first, second)
	_, err = os.Stat(marker)
	require.NoError(t, err)
}

func TestManagerPrepareFailsWhenRootIsFile(t *testing.T) {
	root := filepath.Join(t.TempDir(), "blocked")
	require.NoError(t, os.WriteFile(root, []byte("file"), 0o600))

	manager := NewManager(root, zerolog.Nop())
	_, err := manager.Prepare(models.DistributablePart{ID: 1, Name: "P"}, models.Group{ID: 1, Name: "g"})
	require.ErrorIs(t, err, ErrWorkspaceCreationFailed)
}
