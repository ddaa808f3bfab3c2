package rbac

import (
	"errors"
	"fmt"
)

// ErrAccessDenied is the sentinel all authorization failures unwrap to.
// Callers that only care about allow/deny can use errors.Is; callers that
// need the failing permission or role use errors.As with
// *AccessDeniedError.
var ErrAccessDenied = errors.New("access denied")

// AccessDeniedError reports a failed authorization decision. Exactly one
// of Permission and Role is set depending on which check failed.
type AccessDeniedError struct {
	// Permission is the permission that was required, if the decision was
	// a permission check.
	Permission Permission

	// Role is the role that was required, if the decision was a role check.
	Role Role
}

func (e *AccessDeniedError) Error() string {
	switch {
	case e.Permission != "":
		return fmt.Sprintf("access denied: missing permission %q", e.Permission)
	case e.Role != "":
		return fmt.Sprintf("access denied: missing role %q", e.Role)
	default:
		return "access denied"
	}
}

func (e *AccessDeniedError) Unwrap() error { return ErrAccessDenied }
