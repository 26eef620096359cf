package telemetry

import (
	"context"
	"fmt"
	"strings"

	"github.com/nerrad567/furnace-core/internal/infrastructure/database"
)

// Store is what the Writer needs from persistence.
type Store interface {
	Record(ctx context.Context, ev Event) (int64, error)
}

// Repository adds read access for the REST layer.
type Repository interface {
	Store
	Query(ctx context.Context, q Query) ([]Event, error)
}

// SQLiteRepository stores events in the logs table.
type SQLiteRepository struct {
	db *database.DB
}

// NewSQLiteRepository creates a telemetry repository.
func NewSQLiteRepository(db *database.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Record inserts ev and returns the new row id.
func (r *SQLiteRepository) Record(ctx context.Context, ev Event) (int64, error) {
	if ev.SessionID == 0 || ev.PartID == 0 || ev.SensorID == 0 || ev.EntityID == "" {
		return 0, ErrInvalidEvent
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO logs (session_id, part_id, sensor_id, sensor_entity_id, group_name, value, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.SessionID, ev.PartID, ev.SensorID, ev.EntityID, ev.GroupName, ev.Value,
		database.FormatTime(ev.CapturedAt),
	)
	if err != nil {
		return 0, database.Wrap("record telemetry", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, database.Wrap("record telemetry", err)
	}
	return id, nil
}

// Query returns matching events in ascending timestamp order.
func (r *SQLiteRepository) Query(ctx context.Context, q Query) ([]Event, error) {
	if q.SessionID <= 0 {
		return nil, fmt.Errorf("%w: session id is required", ErrInvalidQuery)
	}
	if q.From != nil && q.To != nil && q.From.After(*q.To) {
		return nil, fmt.Errorf("%w: from is after to", ErrInvalidQuery)
	}

	where := []string{"session_id = ?"}
	args := []any{q.SessionID}
	if q.PartID != nil {
		where = append(where, "part_id = ?")
		args = append(args, *q.PartID)
	}
	if q.SensorID != nil {
		where = append(where, "sensor_id = ?")
		args = append(args, *q.SensorID)
	}
	// Fixed-width timestamps compare correctly as text.
	if q.From != nil {
		where = append(where, "timestamp >= ?")
		args = append(args, database.FormatTime(*q.From))
	}
	if q.To != nil {
		where = append(where, "timestamp <= ?")
		args = append(args, database.FormatTime(*q.To))
	}

	limit := q.Limit
	if limit <= 0 || limit > DefaultQueryLimit {
		limit = DefaultQueryLimit
	}
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_id, part_id, sensor_id, sensor_entity_id, group_name, value, timestamp
		FROM logs
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY timestamp ASC, id ASC
		LIMIT ?`, args...)
	if err != nil {
		return nil, database.Wrap("query telemetry", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var (
			ev Event
			ts string
		)
		if err := rows.Scan(&ev.ID, &ev.SessionID, &ev.PartID, &ev.SensorID,
			&ev.EntityID, &ev.GroupName, &ev.Value, &ts); err != nil {
			return nil, database.Wrap("query telemetry", err)
		}
		if ev.CapturedAt, err = database.ParseTime(ts); err != nil {
			return nil, database.Wrap("query telemetry", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, database.Wrap("query telemetry", err)
	}
	return events, nil
}
