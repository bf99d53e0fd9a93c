package auth

import (
	"encoding/json"
	"sort"
)

// Permission is a named capability granted through roles.
type Permission string

const (
	PreviewUserList      Permission = "users:preview"
	CreateUser           Permission = "users:create"
	EditUser             Permission = "users:edit"
	DeleteUser           Permission = "users:delete"
	UnlockUser           Permission = "users:unlock"
	PreviewAnnouncements Permission = "announcements:preview"
	EditAnnouncements    Permission = "announcements:edit"
	ViewAuditLog         Permission = "audit:view"
)

// PermissionSet is an unordered set of permissions.
type PermissionSet map[Permission]struct{}

func NewPermissionSet(perms ...Permission) PermissionSet {
	set := make(PermissionSet, len(perms))
	for _, p := range perms {
		if p != "" {
			set[p] = struct{}{}
		}
	}
	return set
}

// Has checks if the set contains a specific permission
func (s PermissionSet) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// Slice returns the permissions sorted by name.
func (s PermissionSet) Slice() []Permission {
	out := make([]Permission, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Strings returns the sorted permission names, as embedded in token claims.
func (s PermissionSet) Strings() []string {
	perms := s.Slice()
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = string(p)
	}
	return out
}

func (s PermissionSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Strings())
}

func (s *PermissionSet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	*s = PermissionsFromStrings(names)
	return nil
}

// PermissionsFromStrings converts raw names (from storage or claims) into a set.
func PermissionsFromStrings(names []string) PermissionSet {
	set := make(PermissionSet, len(names))
	for _, n := range names {
		if n != "" {
			set[Permission(n)] = struct{}{}
		}
	}
	return set
}
