// Package session keeps a connection to a long-lived external application that
// evaluates commands on behalf of grading actions.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

var (
	// ErrSessionUnavailable indicates the external application could not be reached.
	ErrSessionUnavailable = errors.New("session unavailable")
	// ErrEvaluationFailed indicates the external application reported an error for a command.
	ErrEvaluationFailed = errors.New("session evaluation failed")
)

// Client evaluates commands against an open connection.
type Client interface {
	Evaluate(ctx context.Context, command string) (string, error)
	Close() error
}

// Dialer opens new clients.
type Dialer interface {
	Dial(ctx context.Context) (Client, error)
}

// Manager hands out a single shared client. The client is dialled on first use and
// discarded after a connection failure so the following call reconnects. A command
// the application rejects keeps the client. Failed calls are not retried.
type Manager struct {
	dialer Dialer
	logger zerolog.Logger

	mu     sync.Mutex
	client Client
}

// NewManager constructs a Manager around the given dialer.
func NewManager(dialer Dialer, logger zerolog.Logger) *Manager {
	return &Manager{
		dialer: dialer,
		logger: logger.With().Str("component", "session_manager").Logger(),
	}
}

// Evaluate sends command to the external application and returns its output.
// Calls are serialised; the underlying protocols are not multiplexed.
func (m *Manager) Evaluate(ctx context.Context, command string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client == nil {
		client, err := m.dialer.Dial(ctx)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrSessionUnavailable, err)
		}
		m.client = client
		m.logger.Debug().Msg("session connected")
	}

	output, err := m.client.Evaluate(ctx, command)
	if err != nil {
		if !errors.Is(err, ErrEvaluationFailed) {
			m.drop()
		}
		return output, err
	}
	return output, nil
}

// Close releases the current client, if any.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client == nil {
		return nil
	}
	err := m.client.Close()
	m.client = nil
	return err
}

func (m *Manager) drop() {
	if closeErr := m.client.Close(); closeErr != nil {
		m.logger.Warn().Err(closeErr).Msg("close failed session")
	}
	m.client = nil
	m.logger.Info().Msg("session dropped after failure")
}
