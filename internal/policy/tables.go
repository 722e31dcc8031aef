package policy

import "net/http"

// ClientTable decides, per outbound call, whether the dispatcher must attach a token.
func ClientTable() *Table {
	return MustTable(Public,
		Rule{
			Name:    "current-user",
			Pattern: "/api/me/**",
			Access:  Authenticated,
		},
		Rule{
			Name:          "community-writes",
			Pattern:       "/api/community/**",
			ExceptMethods: []string{http.MethodGet},
			Access:        Authenticated,
		},
		Rule{
			Name:    "community-post-resources",
			Pattern: "/api/community/*/**",
			Access:  Authenticated,
		},
		Rule{
			Name:          "therapist-writes",
			Pattern:       "/api/therapists/**",
			ExceptMethods: []string{http.MethodGet},
			Access:        Authenticated,
		},
	)
}

// ServerTable is what the API enforces before any handler runs.
//
// /api/auth-check is public here because its handler performs its own verification and
// reports the provider error code.
func ServerTable() *Table {
	return MustTable(Public,
		Rule{
			Name:    "auth-check",
			Pattern: "/api/auth-check",
			Access:  Public,
		},
		Rule{
			Name:    "current-user",
			Pattern: "/api/me/**",
			Access:  Authenticated,
		},
		Rule{
			Name:    "hide-post",
			Pattern: "/api/community/*/hide",
			Methods: []string{http.MethodPatch},
			Access:  Admin,
		},
		Rule{
			Name:    "approve-post",
			Pattern: "/api/community/*/approve",
			Methods: []string{http.MethodPatch},
			Access:  Admin,
		},
		Rule{
			Name:    "react",
			Pattern: "/api/community/*/react",
			Methods: []string{http.MethodPost},
			Access:  Authenticated,
		},
		Rule{
			Name:    "create-post",
			Pattern: "/api/community",
			Methods: []string{http.MethodPost},
			Access:  Authenticated,
		},
		Rule{
			Name:          "therapist-writes",
			Pattern:       "/api/therapists/**",
			ExceptMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
			Access:        Admin,
		},
	)
}
