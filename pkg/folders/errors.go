package folders

import "errors"

var (
	// ErrFolderNotFound indicates the referenced folder does not exist.
	// Distinct from an access denial: callers confirm existence before
	// resolving access, and handlers answer 404 rather than 403.
	ErrFolderNotFound = errors.New("folder not found")

	// ErrInvalidPath indicates the path is not absolute, contains empty
	// segments, or is not a strict descendant of the parent's path.
	ErrInvalidPath = errors.New("invalid folder path")

	// ErrPathConflict indicates another folder already owns the path. The
	// storage-level unique index is authoritative, so concurrent creations
	// surface this rather than racing into duplicates.
	ErrPathConflict = errors.New("folder path already exists")

	// ErrActiveChildren indicates a non-cascading deactivation hit a
	// folder with active children. Nothing is changed.
	ErrActiveChildren = errors.New("folder has active children")

	// ErrForbidden indicates the acting identity's resolved access level
	// is insufficient for the operation.
	ErrForbidden = errors.New("insufficient folder access")
)
