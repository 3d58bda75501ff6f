package bookkeeper

import "errors"

var (
	ErrEmptyTableName    = errors.New("bookkeeping table name is empty")
	ErrUnsupportedDriver = errors.New("unsupported database driver")
	ErrMissingDSN        = errors.New("database dsn is required")
	ErrInvalidLadder     = errors.New("invalid upgrade ladder")
)
