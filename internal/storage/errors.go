package storage

import "errors"

// ErrNotFound is returned when a row does not exist, such as reading
// settings or persona before onboarding has completed.
var ErrNotFound = errors.New("storage: not found")
