package sensorgroup

import "errors"

var (
	// ErrGroupNotFound is returned when a group id does not exist.
	ErrGroupNotFound = errors.New("sensorgroup: group not found")

	// ErrSensorNotFound is returned when a sensor is not attached to the given group.
	ErrSensorNotFound = errors.New("sensorgroup: sensor not found")

	// ErrGroupExists is returned when (name, version) is already taken.
	ErrGroupExists = errors.New("sensorgroup: group already exists")

	// ErrGroupInUse is returned when deleting a group that still has sensors or parts.
	ErrGroupInUse = errors.New("sensorgroup: group in use")

	// ErrInvalidGroup is returned when a name or version is empty.
	ErrInvalidGroup = errors.New("sensorgroup: invalid group")

	// ErrNoSensors is returned when an attach request carries no entity ids.
	ErrNoSensors = errors.New("sensorgroup: no sensors given")
)
