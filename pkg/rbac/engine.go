package rbac

// Engine answers authorization questions against a Registry. A subject is
// represented by the set of roles it holds; the engine itself is stateless
// and safe for concurrent use.
type Engine struct {
	registry *Registry
}

// NewEngine returns an Engine deciding against registry. A nil registry
// falls back to the default table.
func NewEngine(registry *Registry) *Engine {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Engine{registry: registry}
}

// Registry returns the registry the engine decides against.
func (e *Engine) Registry() *Registry { return e.registry }

// HasPermission reports whether any of roles holds p.
func (e *Engine) HasPermission(roles []Role, p Permission) bool {
	for _, role := range roles {
		if e.registry.HasPermission(role, p) {
			return true
		}
	}
	return false
}

// HasRole reports whether want is among roles.
func (e *Engine) HasRole(roles []Role, want Role) bool {
	for _, role := range roles {
		if role == want {
			return true
		}
	}
	return false
}

// RequirePermission returns nil when any of roles holds p, and an
// *AccessDeniedError otherwise. An empty role set is always denied.
func (e *Engine) RequirePermission(roles []Role, p Permission) error {
	if e.HasPermission(roles, p) {
		return nil
	}
	return &AccessDeniedError{Permission: p}
}

// RequireAnyPermission returns nil when any of roles holds at least one of
// perms. The returned error names the first permission in perms.
func (e *Engine) RequireAnyPermission(roles []Role, perms ...Permission) error {
	for _, p := range perms {
		if e.HasPermission(roles, p) {
			return nil
		}
	}
	var first Permission
	if len(perms) > 0 {
		first = perms[0]
	}
	return &AccessDeniedError{Permission: first}
}

// RequireRole returns nil when want is among roles, and an
// *AccessDeniedError otherwise. Role checks are exact; holding a more
// capable role does not satisfy a check for a lesser one.
func (e *Engine) RequireRole(roles []Role, want Role) error {
	if e.HasRole(roles, want) {
		return nil
	}
	return &AccessDeniedError{Role: want}
}

// EffectivePermissions returns the union of the permissions granted by
// roles, in catalog order.
func (e *Engine) EffectivePermissions(roles []Role) []Permission {
	held := make(map[Permission]struct{})
	for _, role := range roles {
		for _, p := range e.registry.PermissionsFor(role) {
			held[p] = struct{}{}
		}
	}
	out := make([]Permission, 0, len(held))
	for _, p := range AllPermissions() {
		if _, ok := held[p]; ok {
			out = append(out, p)
		}
	}
	return out
}
