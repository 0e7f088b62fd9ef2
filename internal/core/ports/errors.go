package ports

import "errors"

var (
	// ErrDuplicate is returned by repositories when a unique constraint rejects an insert.
	ErrDuplicate = errors.New("duplicate record")
	// ErrStateConflict is returned when a guarded update matched no row.
	ErrStateConflict = errors.New("state conflict")
	// ErrMissingReference is returned when a foreign key rejects an insert.
	ErrMissingReference = errors.New("referenced record does not exist")
	// ErrUnknownUser is returned when a user foreign key rejects an insert.
	ErrUnknownUser = errors.New("user does not exist")
)
