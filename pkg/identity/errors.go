package identity

import "errors"

var (
	// ErrUserNotFound indicates the referenced user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrLastAdmin indicates a removal would leave the system without any
	// administrator. The role set is unchanged when this is returned.
	ErrLastAdmin = errors.New("cannot remove the last administrator")

	// ErrSelfDemotion indicates an administrator tried to remove their own
	// administrator role.
	ErrSelfDemotion = errors.New("administrators cannot remove their own administrator role")

	// ErrSelfPromotion indicates an actor tried to grant themselves the
	// administrator role.
	ErrSelfPromotion = errors.New("cannot grant the administrator role to yourself")
)
