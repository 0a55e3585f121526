package sentinel

import "errors"

// Sentinel errors for storage facts. Stores return these (optionally wrapped)
// so services can translate them into domain errors:
//   - ErrNotFound: row does not exist
//   - ErrConflict: a conditional write lost its precondition
//   - ErrAlreadyExists: a uniqueness key is already taken
//   - ErrCheckViolation: the row was refused by a storage constraint
//   - ErrUnavailable: backing service temporarily unavailable
var (
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrAlreadyExists  = errors.New("already exists")
	ErrCheckViolation = errors.New("check violation")
	ErrUnavailable    = errors.New("unavailable")
)
