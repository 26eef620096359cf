package session

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/furnace-core/internal/infrastructure/database"
	"github.com/nerrad567/furnace-core/internal/sensorgroup"
)

// List limits.
const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// Loader is what the Registry needs from persistence.
type Loader interface {
	// LoadSession returns the session with parts, part names, groups and
	// group sensors. Returns ErrSessionNotFound if the id does not exist.
	LoadSession(ctx context.Context, id int64) (*Session, error)

	// ListIDsByState returns the ids of sessions in state, ascending.
	ListIDsByState(ctx context.Context, state State) ([]int64, error)
}

// Repository defines session persistence.
type Repository interface {
	Loader

	// Create inserts a CREATED session and its part bindings atomically.
	Create(ctx context.Context, tag string, parts []PartInput) (*Session, error)

	// List returns sessions newest first.
	List(ctx context.Context, opts ListOptions) ([]Session, error)

	// Get returns a session, with parts if includeParts is set.
	Get(ctx context.Context, id int64, includeParts bool) (*Session, error)

	// Update applies the non-nil fields of u and returns the stored session.
	Update(ctx context.Context, id int64, u Update) (*Session, error)
}

// GroupReader loads sensor groups with their sensors.
// *sensorgroup.SQLiteRepository satisfies it.
type GroupReader interface {
	GetByID(ctx context.Context, id int64, includeSensors bool) (*sensorgroup.Group, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db     *database.DB
	groups GroupReader
	now    func() time.Time
}

// NewSQLiteRepository creates a session repository. Sensor groups are
// loaded through groups.
func NewSQLiteRepository(db *database.DB, groups GroupReader) *SQLiteRepository {
	return &SQLiteRepository{db: db, groups: groups, now: time.Now}
}

const sessionColumns = `
	s.id, s.tag, s.state_id, st.name, s.start_time, s.end_time, s.created_at
	FROM sessions s
	JOIN session_states st ON st.id = s.state_id`

// Create inserts the session and its parts in one transaction.
func (r *SQLiteRepository) Create(ctx context.Context, tag string, parts []PartInput) (*Session, error) {
	if strings.TrimSpace(tag) == "" {
		return nil, ErrInvalidTag
	}
	if len(parts) == 0 {
		return nil, ErrNoParts
	}

	var id int64
	err := r.db.InTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO sessions (tag, state_id, created_at)
			VALUES (?, ?, ?)`,
			tag, StateCreated, database.FormatTime(r.now()),
		)
		if err != nil {
			return mapWriteError("create session", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return database.Wrap("create session", err)
		}

		for _, p := range parts {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO parts (session_id, part_name_id, sensor_group_id)
				VALUES (?, ?, ?)`,
				id, p.PartNameID, p.SensorGroupID,
			); err != nil {
				return mapWriteError("create part", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, id, true)
}

// LoadSession returns the fully populated session.
func (r *SQLiteRepository) LoadSession(ctx context.Context, id int64) (*Session, error) {
	return r.Get(ctx, id, true)
}

// Get returns one session.
func (r *SQLiteRepository) Get(ctx context.Context, id int64, includeParts bool) (*Session, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+sessionColumns+" WHERE s.id = ?", id)
	s, err := scanSession(row)
	if err != nil {
		if database.IsKind(err, database.KindNotFound) {
			return nil, database.NotFound("get session", ErrSessionNotFound)
		}
		return nil, database.Wrap("get session", err)
	}

	if includeParts {
		if s.Parts, err = r.loadParts(ctx, s.ID); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// List returns sessions ordered by creation time, newest first.
func (r *SQLiteRepository) List(ctx context.Context, opts ListOptions) ([]Session, error) {
	limit := ClampLimit(opts.Limit)

	rows, err := r.db.QueryContext(ctx,
		"SELECT "+sessionColumns+" ORDER BY s.created_at DESC, s.id DESC LIMIT ?", limit)
	if err != nil {
		return nil, database.Wrap("list sessions", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, database.Wrap("list sessions", err)
		}
		sessions = append(sessions, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, database.Wrap("list sessions", err)
	}
	rows.Close()

	if opts.IncludeParts {
		for i := range sessions {
			if sessions[i].Parts, err = r.loadParts(ctx, sessions[i].ID); err != nil {
				return nil, err
			}
		}
	}
	return sessions, nil
}

// ListIDsByState returns session ids in state, ascending.
func (r *SQLiteRepository) ListIDsByState(ctx context.Context, state State) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id FROM sessions WHERE state_id = ? ORDER BY id", state)
	if err != nil {
		return nil, database.Wrap("list sessions by state", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, database.Wrap("list sessions by state", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, database.Wrap("list sessions by state", err)
	}
	return ids, nil
}

// Update applies a partial update.
func (r *SQLiteRepository) Update(ctx context.Context, id int64, u Update) (*Session, error) {
	var sets []string
	var args []any

	if u.Tag != nil {
		if strings.TrimSpace(*u.Tag) == "" {
			return nil, ErrInvalidTag
		}
		sets = append(sets, "tag = ?")
		args = append(args, *u.Tag)
	}
	if u.State != nil {
		if !u.State.Valid() {
			return nil, fmt.Errorf("%w: %d", ErrInvalidState, *u.State)
		}
		sets = append(sets, "state_id = ?")
		args = append(args, *u.State)
	}
	if u.StartTime != nil {
		sets = append(sets, "start_time = ?")
		args = append(args, database.FormatTime(*u.StartTime))
	}
	if u.EndTime != nil {
		sets = append(sets, "end_time = ?")
		args = append(args, database.FormatTime(*u.EndTime))
	}

	if len(sets) > 0 {
		args = append(args, id)
		res, err := r.db.ExecContext(ctx,
			"UPDATE sessions SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
		if err != nil {
			return nil, mapWriteError("update session", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, database.Wrap("update session", err)
		}
		if n == 0 {
			return nil, database.NotFound("update session", ErrSessionNotFound)
		}
	}

	return r.Get(ctx, id, true)
}

func (r *SQLiteRepository) loadParts(ctx context.Context, sessionID int64) ([]Part, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT p.id, p.session_id, p.part_name_id, p.sensor_group_id, pn.name, pn.oem
		FROM parts p
		JOIN part_names pn ON pn.id = p.part_name_id
		WHERE p.session_id = ?
		ORDER BY p.id`, sessionID)
	if err != nil {
		return nil, database.Wrap("load parts", err)
	}
	defer rows.Close()

	parts := []Part{}
	for rows.Next() {
		var p Part
		var pn PartName
		var oem sql.NullString
		if err := rows.Scan(&p.ID, &p.SessionID, &p.PartNameID, &p.SensorGroupID, &pn.Name, &oem); err != nil {
			return nil, database.Wrap("load parts", err)
		}
		pn.ID = p.PartNameID
		if oem.Valid {
			pn.OEM = &oem.String
		}
		p.PartName = &pn
		parts = append(parts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, database.Wrap("load parts", err)
	}
	// The pool has a single connection; release it before loading groups.
	rows.Close()

	groups := make(map[int64]*sensorgroup.Group)
	for i := range parts {
		gid := parts[i].SensorGroupID
		g, ok := groups[gid]
		if !ok {
			if g, err = r.groups.GetByID(ctx, gid, true); err != nil {
				return nil, fmt.Errorf("loading sensor group %d: %w", gid, err)
			}
			groups[gid] = g
		}
		parts[i].SensorGroup = g
	}
	return parts, nil
}

// ClampLimit applies the default and maximum list sizes.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	default:
		return limit
	}
}

func mapWriteError(op string, err error) error {
	werr := database.Wrap(op, err)
	switch database.KindOf(werr) {
	case database.KindConflict:
		return fmt.Errorf("%w: %w", ErrSessionExists, werr)
	case database.KindInvalidReference:
		return fmt.Errorf("%w: %w", ErrInvalidReference, werr)
	default:
		return werr
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(sc scanner) (*Session, error) {
	var s Session
	var start, end sql.NullString
	var createdAt string
	if err := sc.Scan(&s.ID, &s.Tag, &s.StateID, &s.State, &start, &end, &createdAt); err != nil {
		return nil, err
	}

	var err error
	if s.StartTime, err = database.ParseNullTime(start); err != nil {
		return nil, err
	}
	if s.EndTime, err = database.ParseNullTime(end); err != nil {
		return nil, err
	}
	if s.CreatedAt, err = database.ParseTime(createdAt); err != nil {
		return nil, err
	}
	return &s, nil
}
