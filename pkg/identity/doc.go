// Package identity manages authenticated principals and their role
// assignments.
//
// An Identity is a plain value type describing a signed-in principal: the
// email is the stable key, display fields come from the identity
// provider's assertion, and Roles carries the assigned rbac roles. The
// session layer stores identities through the Serialize/Deserialize
// boundary; nothing in this package reaches into session or transport
// state.
//
// Durable state (users and their role assignments) lives in Store, a
// database/sql store over the users and user_roles tables. Role mutations
// run inside transactions so concurrent assigns and removals on the same
// user cannot interleave into an inconsistent role set, and the
// last-administrator guard is re-checked under the same transaction that
// performs the removal.
//
// Service wraps Store with the authorization guards: every mutation
// demands the manage_roles permission from the acting identity, assigning
// a role is idempotent, and removals refuse to demote the last remaining
// administrator (ErrLastAdmin) or let an administrator strip their own
// administrator role (ErrSelfDemotion).
package identity
