package sensorgroup

import (
	"context"

	"github.com/nerrad567/furnace-core/internal/infrastructure/database"
)

// Logger defines the logging interface used by the Synchronizer.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Upserter is the persistence the Synchronizer needs.
// *SQLiteRepository satisfies it.
type Upserter interface {
	Upsert(ctx context.Context, name, version string, entityIDs []string) (*Group, error)
}

// Synchronizer writes parsed definitions to the store at startup.
type Synchronizer struct {
	store  Upserter
	logger Logger
}

// NewSynchronizer creates a Synchronizer over store.
func NewSynchronizer(store Upserter) *Synchronizer {
	return &Synchronizer{store: store, logger: noopLogger{}}
}

// SetLogger sets the logger for the synchronizer.
func (s *Synchronizer) SetLogger(logger Logger) {
	s.logger = logger
}

// Sync processes defs one at a time, each in its own transaction.
//
// A group whose write fails is rolled back, logged with its error kind and
// counted as skipped; the remaining groups still run. Running Sync twice with
// the same input creates no rows and changes no associations the second time.
// A cancelled context stops the run before the next group.
func (s *Synchronizer) Sync(ctx context.Context, defs []Definition) SyncResult {
	var res SyncResult

	if len(defs) == 0 {
		s.logger.Info("no sensor groups configured")
		return res
	}

	for i, def := range defs {
		if err := ctx.Err(); err != nil {
			s.logger.Warn("sensor group sync cancelled", "remaining", len(defs)-i, "error", err)
			res.Skipped += len(defs) - i
			break
		}

		version := Version(def.Sensors)
		group, err := s.store.Upsert(ctx, def.Name, version, def.Sensors)
		if err != nil {
			res.Skipped++
			s.logger.Error("sensor group sync failed",
				"group", def.Name,
				"version", version,
				"kind", database.KindOf(err).String(),
				"error", err,
			)
			continue
		}

		res.Synced++
		s.logger.Info("sensor group synced",
			"group", group.Name,
			"id", group.ID,
			"version", version,
			"sensors", len(def.Sensors),
		)
	}

	return res
}
