// Package action holds the catalog of grading actions, binds them to part
// properties and performs them against group workspaces.
package action

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grader/internal/handin"
	"github.com/noah-isme/gema-grader/internal/models"
	"github.com/noah-isme/gema-grader/internal/process"
	"github.com/noah-isme/gema-grader/pkg/docker"
)

// Action is a bound grading operation.
type Action interface {
	Perform(ctx context.Context, part models.DistributablePart, group models.Group) error
}

// BatchAction is an action that can act on several groups in one request.
type BatchAction interface {
	Action
	PerformBatch(ctx context.Context, part models.DistributablePart, groups []models.Group) error
}

// Provider contributes the descriptions of one namespace.
type Provider interface {
	Namespace() string
	Descriptions() []Description
}

// Unarchiver prepares group workspaces.
type Unarchiver interface {
	Unarchive(ctx context.Context, part models.DistributablePart, group models.Group) (handin.Record, error)
}

// WorkspaceLocator reports where a group's workspace lives without creating it.
type WorkspaceLocator interface {
	Dir(part models.DistributablePart, group models.Group) string
}

// Evaluator sends commands to the persistent external session.
type Evaluator interface {
	Evaluate(ctx context.Context, command string) (string, error)
}

// Environment carries the collaborators actions are built against.
type Environment struct {
	Unarchiver     Unarchiver
	Workspaces     WorkspaceLocator
	Runner         process.Runner
	Sessions       Evaluator
	Printer        Printer
	Docker         docker.Executor
	Editor         string
	DefaultPrinter string
	Logger         zerolog.Logger
}
