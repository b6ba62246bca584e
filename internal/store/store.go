// Package store is the Job Store (component A): the exclusive, durable
// owner of Job, RetryAttempt, DeadLetter and ScheduledJob rows. Every other
// component holds only copies of fields and writes through this package.
package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ragbendra/distributed-job-queue/internal/model"
)

// StatusMirror is the narrow Status Cache surface the Store writes through
// on every transition (spec.md §2: "written by A on submit, by E on
// transitions"). A nil mirror just skips the write — the cache is
// advisory-only and its absence must never affect a transition's outcome.
type StatusMirror interface {
	SetStatus(ctx context.Context, jobID uuid.UUID, status model.Status) error
}

// Store wraps a *gorm.DB connection. Constructed once per process and
// injected into the components that need it — no package-level globals.
type Store struct {
	db           *gorm.DB
	statusMirror StatusMirror
}

// New wraps an already-opened GORM connection.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// WithStatusMirror attaches the Status Cache this Store mirrors every
// transition's resulting status into. Optional: a Store built without it
// just skips the mirror write, the same way worker.Runtime's WithTracer
// does for spans.
func (s *Store) WithStatusMirror(mirror StatusMirror) *Store {
	s.statusMirror = mirror
	return s
}

// mirrorStatus best-effort writes job's current status to the Status
// Cache. Errors are swallowed, matching the cache's own fail-open policy
// (internal/cache, internal/ratelimit) — a Redis hiccup must never fail a
// Job Store transaction that already committed successfully.
func (s *Store) mirrorStatus(job *model.Job) {
	if s.statusMirror == nil {
		return
	}
	_ = s.statusMirror.SetStatus(context.Background(), job.ID, job.Status)
}

// Migrate creates/updates the four tables and their indexes (spec.md §6).
// GORM's AutoMigrate is sufficient for the struct tags already carrying the
// index annotations; a goose-based versioned migration runner layers on top
// for production rollout (see internal/store/migrations).
func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(
		&model.Job{},
		&model.RetryAttempt{},
		&model.DeadLetter{},
		&model.ScheduledJob{},
	); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// DB exposes the underlying connection for callers (migrations runner,
// health checks) that need it directly.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Ping verifies the underlying connection is alive, satisfying
// internal/health's Pinger interface.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
