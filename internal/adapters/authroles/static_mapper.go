// Package authroles maps IdP group membership to application roles.
package authroles

import (
	domainauth "github.com/docvault/viewer-api/internal/domain/auth"
)

// StaticRoleMapper maps groups by simple string membership rules. Admin wins
// over user when a principal carries both groups; no group means guest.
type StaticRoleMapper struct {
	AdminGroup string
	UserGroup  string
}

func (m StaticRoleMapper) Map(groups []string) domainauth.Role {
	for _, g := range groups {
		if m.AdminGroup != "" && g == m.AdminGroup {
			return domainauth.RoleAdmin
		}
	}
	for _, g := range groups {
		if m.UserGroup != "" && g == m.UserGroup {
			return domainauth.RoleUser
		}
	}
	return domainauth.RoleGuest
}
