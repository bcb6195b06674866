package xerrors

// DBError reports a structural problem with the managed-volume database
// itself (as opposed to a missing/duplicate entry inside it, which use plain
// sentinels in package volumedb).
type DBError struct {
	*BaseError

	path string
}

// NewDBError creates a DBError wrapping cause under the given code and
// message, scoped to the database file at path.
func NewDBError(cause error, code ErrorCode, path, msg string) *DBError {
	return &DBError{
		BaseError: NewBaseError(cause, code, msg),
		path:      path,
	}
}

// Path returns the database file path this error concerns.
func (e *DBError) Path() string {
	return e.path
}
