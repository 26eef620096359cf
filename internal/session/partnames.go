package session

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/nerrad567/furnace-core/internal/infrastructure/database"
)

// PartNameRepository persists part names.
type PartNameRepository interface {
	ListPartNames(ctx context.Context) ([]PartName, error)
	GetPartName(ctx context.Context, id int64) (*PartName, error)
	CreatePartName(ctx context.Context, name string, oem *string) (*PartName, error)
	UpdatePartName(ctx context.Context, id int64, name string, oem *string) (*PartName, error)
	DeletePartName(ctx context.Context, id int64) error
}

// ListPartNames returns all part names ordered by name.
func (r *SQLiteRepository) ListPartNames(ctx context.Context) ([]PartName, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, name, oem FROM part_names ORDER BY name")
	if err != nil {
		return nil, database.Wrap("list part names", err)
	}
	defer rows.Close()

	names := []PartName{}
	for rows.Next() {
		pn, err := scanPartName(rows)
		if err != nil {
			return nil, database.Wrap("list part names", err)
		}
		names = append(names, *pn)
	}
	if err := rows.Err(); err != nil {
		return nil, database.Wrap("list part names", err)
	}
	return names, nil
}

// GetPartName returns ErrPartNameNotFound if id does not exist.
func (r *SQLiteRepository) GetPartName(ctx context.Context, id int64) (*PartName, error) {
	pn, err := scanPartName(r.db.QueryRowContext(ctx,
		"SELECT id, name, oem FROM part_names WHERE id = ?", id))
	if err != nil {
		if database.IsKind(err, database.KindNotFound) {
			return nil, database.NotFound("get part name", ErrPartNameNotFound)
		}
		return nil, database.Wrap("get part name", err)
	}
	return pn, nil
}

// CreatePartName inserts a part name. Returns ErrPartNameExists on duplicates.
func (r *SQLiteRepository) CreatePartName(ctx context.Context, name string, oem *string) (*PartName, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidPartName
	}

	res, err := r.db.ExecContext(ctx,
		"INSERT INTO part_names (name, oem) VALUES (?, ?)", name, nullString(oem))
	if err != nil {
		return nil, mapPartNameError("create part name", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, database.Wrap("create part name", err)
	}
	return &PartName{ID: id, Name: name, OEM: oem}, nil
}

// UpdatePartName replaces the name and OEM of a part name.
func (r *SQLiteRepository) UpdatePartName(ctx context.Context, id int64, name string, oem *string) (*PartName, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidPartName
	}

	res, err := r.db.ExecContext(ctx,
		"UPDATE part_names SET name = ?, oem = ? WHERE id = ?", name, nullString(oem), id)
	if err != nil {
		return nil, mapPartNameError("update part name", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, database.Wrap("update part name", err)
	} else if n == 0 {
		return nil, database.NotFound("update part name", ErrPartNameNotFound)
	}
	return &PartName{ID: id, Name: name, OEM: oem}, nil
}

// DeletePartName removes a part name no part refers to.
func (r *SQLiteRepository) DeletePartName(ctx context.Context, id int64) error {
	return r.db.InTx(ctx, func(tx *sql.Tx) error {
		var used int
		if err := tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM parts WHERE part_name_id = ?", id).Scan(&used); err != nil {
			return database.Wrap("delete part name", err)
		}
		if used > 0 {
			return fmt.Errorf("%w: referenced by %d parts", ErrPartNameInUse, used)
		}

		res, err := tx.ExecContext(ctx, "DELETE FROM part_names WHERE id = ?", id)
		if err != nil {
			return database.Wrap("delete part name", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return database.Wrap("delete part name", err)
		} else if n == 0 {
			return database.NotFound("delete part name", ErrPartNameNotFound)
		}
		return nil
	})
}

func mapPartNameError(op string, err error) error {
	werr := database.Wrap(op, err)
	if database.IsKind(werr, database.KindConflict) {
		return fmt.Errorf("%w: %w", ErrPartNameExists, werr)
	}
	return werr
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func scanPartName(sc scanner) (*PartName, error) {
	var pn PartName
	var oem sql.NullString
	if err := sc.Scan(&pn.ID, &pn.Name, &oem); err != nil {
		return nil, err
	}
	if oem.Valid {
		pn.OEM = &oem.String
	}
	return &pn, nil
}
