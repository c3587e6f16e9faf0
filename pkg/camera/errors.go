package camera

import "errors"

var (
	// ErrNotFound reports that a device path does not exist, cannot be
	// opened, or is not a capture device.
	ErrNotFound = errors.New("device not found")

	// ErrSchemaNotFound reports a missing or unparseable feature schema.
	ErrSchemaNotFound = errors.New("schema not found")

	// ErrInvalidAddress reports a register access outside the device's
	// address map, or with an unsupported width.
	ErrInvalidAddress = errors.New("invalid register address")

	// ErrProtocol reports a kernel call that failed at an unexpected point.
	ErrProtocol = errors.New("device protocol error")
)
