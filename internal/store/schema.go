package store

import (
	"context"
	"sync"
	"sync/atomic"

	apperrors "ai-bot-network/backend/pkg/errors"

	"gorm.io/gorm"
)

// Schema migrates the database on first successful use. Until a migration
// succeeds every Ensure retries it, so a database that was unreachable at
// boot is picked up once it comes back.
type Schema struct {
	migrate func(ctx context.Context) error
	mu      sync.Mutex
	ready   atomic.Bool
}

// NewSchema prepares lazy migration of db
func NewSchema(db *gorm.DB) *Schema {
	return &Schema{migrate: func(ctx context.Context) error {
		return Migrate(db.WithContext(ctx))
	}}
}

// Ensure migrates once. Failures are reported as an unavailable dependency.
func (s *Schema) Ensure(ctx context.Context) error {
	if s.ready.Load() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready.Load() {
		return nil
	}
	if err := s.migrate(ctx); err != nil {
		return apperrors.Wrap(apperrors.ErrDependencyUnavailable, err, "database schema unavailable")
	}
	s.ready.Store(true)
	return nil
}

// Ready reports whether the schema has been migrated
func (s *Schema) Ready() bool {
	return s.ready.Load()
}
