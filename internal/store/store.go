// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/firstprinciples/internal/domain"
)

// DefaultReportListLimit caps ListReports when no limit is given.
const DefaultReportListLimit = 50

// Repository defines the interface for persisting users and the report catalog.
type Repository interface {
	// GetUser retrieves a user by their user ID. It returns nil, nil when absent.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// UpsertUser creates or updates a user record.
	UpsertUser(ctx context.Context, user *domain.User) error

	// UpdateLastSeen updates the last_seen_at timestamp for a user.
	UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error

	// SaveReport records an emitted report.
	SaveReport(ctx context.Context, report *domain.Report) error

	// ListReports returns a user's reports, newest first, without content.
	ListReports(ctx context.Context, userID string, limit int) ([]*domain.Report, error)

	// GetReport retrieves one of a user's reports with its content.
	// It returns nil, nil when the report does not exist or belongs to another user.
	GetReport(ctx context.Context, userID, reportID string) (*domain.Report, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
