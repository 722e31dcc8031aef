package policy

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientTable_RequiresAuth(t *testing.T) {
	table := ClientTable()

	tests := []struct {
		name   string
		method string
		path   string
		want   bool
	}{
		{"me", http.MethodGet, "/api/me", true},
		{"me preferences", http.MethodPatch, "/api/me/preferences", true},
		{"me with query", http.MethodGet, "/api/me?fields=name", true},
		{"list community", http.MethodGet, "/api/community", false},
		{"list community by tag", http.MethodGet, "/api/community?tag=Life", false},
		{"create post", http.MethodPost, "/api/community", true},
		{"react", http.MethodPost, "/api/community/abc/react", true},
		{"post sub-resource read", http.MethodGet, "/api/community/abc/reactions", true},
		{"single post read", http.MethodGet, "/api/community/abc", true},
		{"hide", http.MethodPatch, "/api/community/abc/hide", true},
		{"list therapists", http.MethodGet, "/api/therapists", false},
		{"get therapist", http.MethodGet, "/api/therapists/t1", false},
		{"create therapist", http.MethodPost, "/api/therapists", true},
		{"update therapist", http.MethodPatch, "/api/therapists/t1", true},
		{"auth check", http.MethodGet, "/api/auth-check", false},
		{"avatars", http.MethodGet, "/api/avatars", false},
		{"lowercase method", "post", "/api/community", true},
		{"empty method defaults to GET", "", "/api/community", false},
		{"me prefix only on segment boundary", http.MethodGet, "/api/meditations", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, table.RequiresAuth(tt.method, tt.path))
		})
	}
}

func TestClientTable_Precedence(t *testing.T) {
	table := ClientTable()

	rule, ok := table.Match(http.MethodPost, "/api/me/preferences")
	require.True(t, ok)
	assert.Equal(t, "current-user", rule.Name)

	rule, ok = table.Match(http.MethodPost, "/api/community/abc/react")
	require.True(t, ok)
	assert.Equal(t, "community-writes", rule.Name, "mutating rule is evaluated before the sub-resource rule")

	rule, ok = table.Match(http.MethodGet, "/api/community/abc/react")
	require.True(t, ok)
	assert.Equal(t, "community-post-resources", rule.Name)

	_, ok = table.Match(http.MethodGet, "/api/therapists")
	assert.False(t, ok)
}

func TestServerTable(t *testing.T) {
	table := ServerTable()

	tests := []struct {
		method string
		path   string
		want   Access
	}{
		{http.MethodGet, "/api/auth-check", Public},
		{http.MethodGet, "/api/me", Authenticated},
		{http.MethodPatch, "/api/me/preferences", Authenticated},
		{http.MethodGet, "/api/community", Public},
		{http.MethodPost, "/api/community", Authenticated},
		{http.MethodPost, "/api/community/p1/react", Authenticated},
		{http.MethodPatch, "/api/community/p1/hide", Admin},
		{http.MethodPatch, "/api/community/p1/approve", Admin},
		{http.MethodGet, "/api/therapists", Public},
		{http.MethodGet, "/api/therapists/t1", Public},
		{http.MethodPost, "/api/therapists", Admin},
		{http.MethodPatch, "/api/therapists/t1", Admin},
		{http.MethodPost, "/api/therapists/t1/image-upload-url", Admin},
		{http.MethodGet, "/health", Public},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, table.Resolve(tt.method, tt.path))
		})
	}
}

func TestNewTable_InvalidRules(t *testing.T) {
	_, err := NewTable(Public, Rule{Name: "relative", Pattern: "api/me"})
	assert.Error(t, err)

	_, err = NewTable(Public, Rule{Name: "inner-glob", Pattern: "/api/**/x"})
	assert.Error(t, err)

	_, err = NewTable(Public, Rule{
		Name:          "both",
		Pattern:       "/api",
		Methods:       []string{"GET"},
		ExceptMethods: []string{"POST"},
	})
	assert.Error(t, err)
}

func TestWildcards(t *testing.T) {
	table := MustTable(Public,
		Rule{Name: "exact", Pattern: "/a/b", Access: Admin},
		Rule{Name: "one", Pattern: "/a/*", Access: Authenticated},
	)

	assert.Equal(t, Admin, table.Resolve("GET", "/a/b"))
	assert.Equal(t, Admin, table.Resolve("GET", "/a/b/"))
	assert.Equal(t, Authenticated, table.Resolve("GET", "/a/c"))
	assert.Equal(t, Public, table.Resolve("GET", "/a/c/d"))
	assert.Equal(t, Public, table.Resolve("GET", "/a"))
}

func TestParseAccess(t *testing.T) {
	for in, want := range map[string]Access{
		"public":        Public,
		"optional":      Public,
		"authenticated": Authenticated,
		"USER":          Authenticated,
		"admin":         Admin,
	} {
		got, err := ParseAccess(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseAccess("root")
	assert.Error(t, err)
}

func TestParseYAML(t *testing.T) {
	doc := []byte(`
fallback: public
rules:
  - name: current-user
    pattern: /api/me/**
    access: authenticated
  - name: writes
    pattern: /api/therapists/**
    except_methods: [GET]
    access: admin
`)
	table, err := Parse(doc)
	require.NoError(t, err)

	assert.Equal(t, Authenticated, table.Resolve("GET", "/api/me"))
	assert.Equal(t, Admin, table.Resolve("POST", "/api/therapists"))
	assert.Equal(t, Public, table.Resolve("GET", "/api/therapists"))
}

func TestParseYAML_Errors(t *testing.T) {
	_, err := Parse([]byte("rules: []"))
	assert.Error(t, err)

	_, err = Parse([]byte(`
rules:
  - pattern: /x
    access: superuser
`))
	assert.Error(t, err)

	_, err = Parse([]byte(`
rules:
  - pattern: /x
    acess: admin
`))
	assert.Error(t, err, "unknown keys are rejected")
}

func TestEncodeRoundTrip(t *testing.T) {
	data, err := Encode(ServerTable())
	require.NoError(t, err)

	table, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, ServerTable().Rules(), table.Rules())
}
