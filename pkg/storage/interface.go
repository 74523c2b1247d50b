// Package storage holds the per-user login baseline and the append-only logs
// of raw events and evaluated results.
package storage

import (
	"context"

	"github.com/gokaycavdar/go-loginguard/pkg/models"
)

// HistoryStore keeps exactly one LastLoginRecord per user.
// Implementations must be safe for concurrent use.
type HistoryStore interface {
	// GetLastRecord returns nil, nil for a user with no history.
	GetLastRecord(userID string) (*models.LastLoginRecord, error)

	// SaveRecord replaces the user's record.
	SaveRecord(record *models.LastLoginRecord) error

	// SwapRecord stores record as the user's baseline and returns the one it
	// replaced (nil on first login) in a single atomic step, so two parallel
	// evaluations of the same user each see a distinct predecessor.
	SwapRecord(record models.LastLoginRecord) (*models.LastLoginRecord, error)
}

// EventLog is the persistence collaborator for raw events and results.
// List methods return at most limit entries (0 means all), the most recent
// ones, oldest first.
type EventLog interface {
	SaveEvent(ctx context.Context, event models.LoginEvent) error
	SaveResult(ctx context.Context, result models.RiskAssessment) error
	ListEvents(ctx context.Context, limit int) ([]models.LoginEvent, error)
	ListResults(ctx context.Context, limit int) ([]models.RiskAssessment, error)
	Close() error
}

func tail[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[len(items)-limit:]
	}
	return items
}
