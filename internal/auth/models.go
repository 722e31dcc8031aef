package auth

import "strings"

// Role is the privilege level of a session user.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// SessionUser is the identity resolved from a verified token. It lives for one request.
type SessionUser struct {
	ID    string  `json:"id"`
	Email string  `json:"email"`
	Name  *string `json:"name"`
	Role  Role    `json:"role"`
}

// DisplayName returns the name or "" when unset.
func (u *SessionUser) DisplayName() string {
	if u == nil || u.Name == nil {
		return ""
	}
	return *u.Name
}

// RoleResolver elevates users out of band. Nothing in the request path ever grants a role.
type RoleResolver interface {
	RoleFor(uid string) Role
}

// AllowList grants admin to a fixed, manually provisioned set of uids.
type AllowList map[string]struct{}

// NewAllowList builds an AllowList, ignoring blank entries.
func NewAllowList(uids ...string) AllowList {
	a := make(AllowList, len(uids))
	for _, uid := range uids {
		if uid = strings.TrimSpace(uid); uid != "" {
			a[uid] = struct{}{}
		}
	}
	return a
}

func (a AllowList) RoleFor(uid string) Role {
	if _, ok := a[uid]; ok {
		return RoleAdmin
	}
	return RoleUser
}

type authCheckResponse struct {
	Success bool   `json:"success"`
	UID     string `json:"uid"`
	Email   string `json:"email"`
	Message string `json:"message"`
}
