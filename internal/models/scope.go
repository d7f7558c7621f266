package models

// Scope constrains an operation to one school or, when empty, grants
// cross-tenant access for system administrators. Managers never infer scope
// themselves; handlers resolve it from the authenticated caller.
type Scope struct {
	schoolID string
}

// TenantScope restricts operations to the given school.
func TenantScope(schoolID string) Scope {
	return Scope{schoolID: schoolID}
}

// GlobalScope grants unrestricted, cross-tenant access.
func GlobalScope() Scope {
	return Scope{}
}

// Global reports whether the scope spans all schools.
func (s Scope) Global() bool {
	return s.schoolID == ""
}

// SchoolID returns the school the scope is pinned to, or "" for global.
func (s Scope) SchoolID() string {
	return s.schoolID
}
