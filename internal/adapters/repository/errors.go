package repository

import (
	"errors"

	"github.com/okian/streetwise/internal/domain/model"
)

// Sentinel kinds for store errors. Not-found and conflict share the domain
// sentinels so callers can match with errors.Is across layers.
var (
	ErrNotFound          = model.ErrNotFound
	ErrVersionConflict   = model.ErrVersionConflict
	ErrInvalidLimit      = errors.New("invalid leaderboard limit")
	ErrAlreadyExists     = errors.New("session already exists")
	ErrUnsupportedDriver = errors.New("unsupported storage driver")
)
