// Package folders implements the folder hierarchy and its per-folder
// access control.
//
// Folders form a strict tree keyed by absolute, "/"-delimited paths. A
// child's path must be a strict descendant of its parent's path, the
// parent must exist and be active before the child is created, and path
// uniqueness is enforced by a storage-level unique index so concurrent
// creations of the same path cannot both succeed.
//
// Access to a folder is decided by Resolver.Resolve, in order:
//
//  1. administrators hold LevelAdmin on every folder (global override)
//  2. the folder's creator holds LevelAdmin (owner rule, no grant row)
//  3. an explicit grant for (folder, email) yields its level
//  4. otherwise LevelNone
//
// Grants are strictly per-folder: holding LevelWrite on /prod implies
// nothing about /prod/db. Each folder's ACL is independently
// authoritative; AncestorChain exists for breadcrumbs, not for grant
// lookups.
//
// Resolution is recomputed from current data on every call. The optional
// resolver cache is invalidated on every grant, revoke, and deactivation,
// so a revoked grant is invisible to the very next Resolve call.
package folders
