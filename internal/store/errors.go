package store

import (
	"github.com/coursetrack/coursetrack/internal/errors"
)

// Sentinel errors. They carry domain codes so the API layer can map them
// without knowing about the store.
var (
	ErrNotFound     = errors.ErrNotFound.WithMessage("key not found")
	ErrCorruptState = errors.ErrCorruptState
)
