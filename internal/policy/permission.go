package policy

import "sort"

// Permission is a named capability held by an administrator.
type Permission string

const (
	PermAdminCreate Permission = "ADMIN_CREATE"
	PermAdminDelete Permission = "ADMIN_DELETE"
	PermAdminRead   Permission = "ADMIN_READ"
	PermAuditRead   Permission = "AUDIT_READ"
	PermEmailWrite  Permission = "EMAIL_WRITE"
	PermUserBan     Permission = "USER_BAN"
	PermUserCreate  Permission = "USER_CREATE"
	PermUserDelete  Permission = "USER_DELETE"
	PermUserRead    Permission = "USER_READ"
	PermUserWrite   Permission = "USER_WRITE"
)

// implied lists, for each permission, the permissions it carries with it.
// Holding USER_WRITE necessarily means being able to read what is written.
var implied = map[Permission][]Permission{
	PermAdminCreate: {PermAdminRead},
	PermAdminDelete: {PermAdminRead},
	PermEmailWrite:  {PermUserRead},
	PermUserBan:     {PermUserRead},
	PermUserCreate:  {PermUserRead},
	PermUserDelete:  {PermUserRead},
	PermUserWrite:   {PermUserRead},
}

// PermissionSet is a set of permissions held by an administrator.
type PermissionSet map[Permission]struct{}

// NewPermissionSet builds a set from the given permissions.
func NewPermissionSet(perms ...Permission) PermissionSet {
	s := make(PermissionSet, len(perms))
	for _, p := range perms {
		s[p] = struct{}{}
	}
	return s
}

// ParsePermissions builds a set from permission names, ignoring unknown
// names. Used when loading admin records from storage.
func ParsePermissions(names []string) PermissionSet {
	s := make(PermissionSet, len(names))
	for _, n := range names {
		s[Permission(n)] = struct{}{}
	}
	return s
}

// Implies returns true when the set contains p directly or via an implied
// permission. The closure is expanded at check time; sets stay exactly as
// granted.
func (s PermissionSet) Implies(p Permission) bool {
	if _, ok := s[p]; ok {
		return true
	}
	for held := range s {
		for _, imp := range implied[held] {
			if imp == p {
				return true
			}
		}
	}
	return false
}

// Expand returns a new set containing every permission held directly plus
// all implied permissions.
func (s PermissionSet) Expand() PermissionSet {
	out := make(PermissionSet, len(s))
	for held := range s {
		out[held] = struct{}{}
		for _, imp := range implied[held] {
			out[imp] = struct{}{}
		}
	}
	return out
}

// Names returns the sorted permission names in the set.
func (s PermissionSet) Names() []string {
	names := make([]string, 0, len(s))
	for p := range s {
		names = append(names, string(p))
	}
	sort.Strings(names)
	return names
}
