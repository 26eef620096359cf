package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

// ErrorKind classifies storage failures so callers can decide between
// reporting a conflict, a missing row, or retrying.
type ErrorKind int

const (
	// KindUnknown is any failure that does not fit a more specific kind.
	KindUnknown ErrorKind = iota

	// KindNotFound means the addressed row does not exist.
	KindNotFound

	// KindConflict means a uniqueness constraint rejected the write.
	KindConflict

	// KindInvalidReference means a foreign key pointed at a missing row.
	KindInvalidReference

	// KindTransient means the database was busy or locked; retrying may succeed.
	KindTransient
)

// String returns the kind name used in log fields.
func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindInvalidReference:
		return "invalid_reference"
	case KindTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// Error is a classified storage error.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap classifies err and annotates it with op. A nil err stays nil and an
// already classified error keeps its kind.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var classified *Error
	if errors.As(err, &classified) {
		return &Error{Kind: classified.Kind, Op: op, Err: err}
	}
	return &Error{Kind: classify(err), Op: op, Err: err}
}

// NotFound builds a KindNotFound error for op.
func NotFound(op string, err error) error {
	return &Error{Kind: KindNotFound, Op: op, Err: err}
}

// KindOf reports the kind of err, or KindUnknown when err is not classified.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return classify(err)
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

func classify(err error) ErrorKind {
	if errors.Is(err, sql.ErrNoRows) {
		return KindNotFound
	}

	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return KindUnknown
	}

	switch sqliteErr.ExtendedCode {
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
		return KindConflict
	case sqlite3.ErrConstraintForeignKey:
		return KindInvalidReference
	}

	switch sqliteErr.Code {
	case sqlite3.ErrBusy, sqlite3.ErrLocked:
		return KindTransient
	default:
		return KindUnknown
	}
}
