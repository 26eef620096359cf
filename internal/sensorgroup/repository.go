package sensorgroup

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nerrad567/furnace-core/internal/infrastructure/database"
)

// Repository defines persistence for sensor groups and their sensors.
type Repository interface {
	// Upsert finds or creates the group (name, version) and repoints every
	// entity id to it, all in one transaction.
	Upsert(ctx context.Context, name, version string, entityIDs []string) (*Group, error)

	// List returns all groups ordered by name then id.
	List(ctx context.Context, includeSensors bool) ([]Group, error)

	// GetByID returns ErrGroupNotFound if the id does not exist.
	GetByID(ctx context.Context, id int64, includeSensors bool) (*Group, error)

	// Create inserts an empty group. Returns ErrGroupExists on (name, version) conflict.
	Create(ctx context.Context, name, version string) (*Group, error)

	// Delete removes a group with no sensors and no parts.
	// Returns ErrGroupInUse otherwise.
	Delete(ctx context.Context, id int64) error

	// AttachSensors creates or repoints sensors to the group.
	AttachSensors(ctx context.Context, groupID int64, entityIDs []string) ([]Sensor, error)

	// DetachSensor clears the sensor's group. Returns ErrSensorNotFound if the
	// sensor is not in the group.
	DetachSensor(ctx context.Context, groupID, sensorID int64) error
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db  *database.DB
	now func() time.Time
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *database.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

// Upsert writes one definition atomically.
func (r *SQLiteRepository) Upsert(ctx context.Context, name, version string, entityIDs []string) (*Group, error) {
	var group *Group
	err := r.db.InTx(ctx, func(tx *sql.Tx) error {
		g, err := r.findOrCreateGroup(ctx, tx, name, version)
		if err != nil {
			return err
		}
		for _, entityID := range entityIDs {
			if _, err := r.upsertSensor(ctx, tx, entityID, g.ID); err != nil {
				return err
			}
		}
		group = g
		return nil
	})
	if err != nil {
		return nil, database.Wrap("upsert sensor group", err)
	}
	return group, nil
}

func (r *SQLiteRepository) findOrCreateGroup(ctx context.Context, q queryer, name, version string) (*Group, error) {
	_, err := q.ExecContext(ctx, `
		INSERT INTO sensor_groups (name, version, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (name, version) DO NOTHING`,
		name, version, database.FormatTime(r.now()),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting group %q: %w", name, err)
	}

	row := q.QueryRowContext(ctx, `
		SELECT id, name, version, created_at
		FROM sensor_groups
		WHERE name = ? AND version = ?`, name, version)
	g, err := scanGroup(row)
	if err != nil {
		return nil, fmt.Errorf("loading group %q: %w", name, err)
	}
	return g, nil
}

func (r *SQLiteRepository) upsertSensor(ctx context.Context, q queryer, entityID string, groupID int64) (*Sensor, error) {
	row := q.QueryRowContext(ctx, `
		INSERT INTO sensors (entity_id, group_id, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (entity_id) DO UPDATE SET group_id = excluded.group_id
		RETURNING id, entity_id, group_id, created_at`,
		entityID, groupID, database.FormatTime(r.now()),
	)
	s, err := scanSensor(row)
	if err != nil {
		return nil, fmt.Errorf("upserting sensor %q: %w", entityID, err)
	}
	return s, nil
}

// List returns all groups.
func (r *SQLiteRepository) List(ctx context.Context, includeSensors bool) ([]Group, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, version, created_at
		FROM sensor_groups
		ORDER BY name, id`)
	if err != nil {
		return nil, database.Wrap("list sensor groups", err)
	}
	defer rows.Close()

	groups := []Group{}
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, database.Wrap("list sensor groups", err)
		}
		groups = append(groups, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, database.Wrap("list sensor groups", err)
	}
	rows.Close()

	if includeSensors {
		for i := range groups {
			sensors, err := r.sensorsByGroup(ctx, r.db, groups[i].ID)
			if err != nil {
				return nil, err
			}
			groups[i].Sensors = sensors
		}
	}
	return groups, nil
}

// GetByID returns one group.
func (r *SQLiteRepository) GetByID(ctx context.Context, id int64, includeSensors bool) (*Group, error) {
	g, err := r.getByID(ctx, r.db, id)
	if err != nil {
		return nil, err
	}
	if includeSensors {
		if g.Sensors, err = r.sensorsByGroup(ctx, r.db, id); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func (r *SQLiteRepository) getByID(ctx context.Context, q queryer, id int64) (*Group, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, name, version, created_at
		FROM sensor_groups
		WHERE id = ?`, id)
	g, err := scanGroup(row)
	if err != nil {
		if database.IsKind(err, database.KindNotFound) {
			return nil, database.NotFound("get sensor group", ErrGroupNotFound)
		}
		return nil, database.Wrap("get sensor group", err)
	}
	return g, nil
}

// Create inserts a group with no sensors.
func (r *SQLiteRepository) Create(ctx context.Context, name, version string) (*Group, error) {
	if name == "" || version == "" {
		return nil, fmt.Errorf("%w: name and version are required", ErrInvalidGroup)
	}

	now := r.now()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO sensor_groups (name, version, created_at)
		VALUES (?, ?, ?)`,
		name, version, database.FormatTime(now),
	)
	if err != nil {
		werr := database.Wrap("create sensor group", err)
		if database.IsKind(werr, database.KindConflict) {
			return nil, fmt.Errorf("%w: %w", ErrGroupExists, werr)
		}
		return nil, werr
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, database.Wrap("create sensor group", err)
	}
	return &Group{ID: id, Name: name, Version: version, CreatedAt: now.UTC()}, nil
}

// Delete removes an unused group.
func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	return r.db.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := r.getByID(ctx, tx, id); err != nil {
			return err
		}

		var sensors, parts int
		err := tx.QueryRowContext(ctx, `
			SELECT
				(SELECT COUNT(*) FROM sensors WHERE group_id = ?),
				(SELECT COUNT(*) FROM parts WHERE sensor_group_id = ?)`,
			id, id,
		).Scan(&sensors, &parts)
		if err != nil {
			return database.Wrap("delete sensor group", err)
		}
		if sensors > 0 || parts > 0 {
			return fmt.Errorf("%w: %d sensors, %d parts", ErrGroupInUse, sensors, parts)
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM sensor_groups WHERE id = ?", id); err != nil {
			return database.Wrap("delete sensor group", err)
		}
		return nil
	})
}

// AttachSensors upserts each entity id into the group.
func (r *SQLiteRepository) AttachSensors(ctx context.Context, groupID int64, entityIDs []string) ([]Sensor, error) {
	if len(entityIDs) == 0 {
		return nil, ErrNoSensors
	}

	var sensors []Sensor
	err := r.db.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := r.getByID(ctx, tx, groupID); err != nil {
			return err
		}
		sensors = make([]Sensor, 0, len(entityIDs))
		for _, entityID := range entityIDs {
			s, err := r.upsertSensor(ctx, tx, entityID, groupID)
			if err != nil {
				return database.Wrap("attach sensors", err)
			}
			sensors = append(sensors, *s)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sensors, nil
}

// DetachSensor clears the sensor's group association.
func (r *SQLiteRepository) DetachSensor(ctx context.Context, groupID, sensorID int64) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE sensors SET group_id = NULL WHERE id = ? AND group_id = ?",
		sensorID, groupID,
	)
	if err != nil {
		return database.Wrap("detach sensor", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return database.Wrap("detach sensor", err)
	}
	if n == 0 {
		return database.NotFound("detach sensor", ErrSensorNotFound)
	}
	return nil
}

func (r *SQLiteRepository) sensorsByGroup(ctx context.Context, q queryer, groupID int64) ([]Sensor, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, entity_id, group_id, created_at
		FROM sensors
		WHERE group_id = ?
		ORDER BY id`, groupID)
	if err != nil {
		return nil, database.Wrap("list sensors", err)
	}
	defer rows.Close()

	sensors := []Sensor{}
	for rows.Next() {
		s, err := scanSensor(rows)
		if err != nil {
			return nil, database.Wrap("list sensors", err)
		}
		sensors = append(sensors, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, database.Wrap("list sensors", err)
	}
	return sensors, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanGroup(s scanner) (*Group, error) {
	var g Group
	var createdAt string
	if err := s.Scan(&g.ID, &g.Name, &g.Version, &createdAt); err != nil {
		return nil, err
	}
	t, err := database.ParseTime(createdAt)
	if err != nil {
		return nil, err
	}
	g.CreatedAt = t
	return &g, nil
}

func scanSensor(s scanner) (*Sensor, error) {
	var sensor Sensor
	var groupID sql.NullInt64
	var createdAt string
	if err := s.Scan(&sensor.ID, &sensor.EntityID, &groupID, &createdAt); err != nil {
		return nil, err
	}
	if groupID.Valid {
		id := groupID.Int64
		sensor.GroupID = &id
	}
	t, err := database.ParseTime(createdAt)
	if err != nil {
		return nil, err
	}
	sensor.CreatedAt = t
	return &sensor, nil
}
