package session

import "errors"

var (
	// ErrSessionNotFound is returned when a session id does not exist.
	ErrSessionNotFound = errors.New("session: not found")

	// ErrSessionExists is returned when a tag is already used.
	ErrSessionExists = errors.New("session: tag already exists")

	// ErrInvalidTag is returned when a tag is empty.
	ErrInvalidTag = errors.New("session: invalid tag")

	// ErrNoParts is returned when creating a session without part bindings.
	ErrNoParts = errors.New("session: at least one part is required")

	// ErrInvalidReference is returned when a part name or sensor group id does not exist.
	ErrInvalidReference = errors.New("session: unknown part name or sensor group")

	// ErrSessionNotActive is returned when activating a session that is not IN PROGRESS.
	ErrSessionNotActive = errors.New("session: not in progress")

	// ErrInvalidState is returned for a state id outside the known set.
	ErrInvalidState = errors.New("session: invalid state")

	// ErrPartNameNotFound is returned when a part name id does not exist.
	ErrPartNameNotFound = errors.New("session: part name not found")

	// ErrPartNameExists is returned when a part name is already used.
	ErrPartNameExists = errors.New("session: part name already exists")

	// ErrPartNameInUse is returned when deleting a part name referenced by parts.
	ErrPartNameInUse = errors.New("session: part name in use")

	// ErrInvalidPartName is returned when a part name is empty.
	ErrInvalidPartName = errors.New("session: invalid part name")
)
