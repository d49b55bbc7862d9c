package engine

import "errors"

// Sentinel errors surfaced out of the engine package. FOK rejections
// and STP cancellations are not errors here: they are recorded on the
// returned DTO's Status, since the caller still receives a well-formed
// result.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)
