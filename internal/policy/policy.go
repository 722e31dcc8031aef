// Package policy holds the declarative route policy table used by both halves of the
// dispatch policy: the client decides whether to attach a token, the server decides
// whether to let the request reach its handler.
//
// A table is an ordered list of rules; the first rule whose pattern and method set match
// a request decides its access level. Requests matching no rule get the table fallback.
package policy

import (
	"fmt"
	"net/http"
	"strings"
)

// Access is the credential level a route demands.
type Access int

const (
	// Public routes accept anonymous callers; a valid token is still attached when present.
	Public Access = iota
	// Authenticated routes require a verified token.
	Authenticated
	// Admin routes require a verified token whose session user has the admin role.
	Admin
)

func (a Access) String() string {
	switch a {
	case Public:
		return "public"
	case Authenticated:
		return "authenticated"
	case Admin:
		return "admin"
	default:
		return fmt.Sprintf("access(%d)", int(a))
	}
}

// ParseAccess converts a textual access level.
func ParseAccess(s string) (Access, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "public", "optional", "":
		return Public, nil
	case "authenticated", "user", "required":
		return Authenticated, nil
	case "admin":
		return Admin, nil
	default:
		return Public, fmt.Errorf("unknown access level %q", s)
	}
}

// Rule maps a path pattern and a method set to an access level.
//
// Pattern segments are literals, "*" (exactly one segment) or a trailing "**" (zero or
// more segments). Methods restricts the rule to the listed methods; ExceptMethods
// restricts it to every method not listed. Both empty means any method.
type Rule struct {
	Name          string   `yaml:"name"`
	Pattern       string   `yaml:"pattern"`
	Methods       []string `yaml:"methods,omitempty"`
	ExceptMethods []string `yaml:"except_methods,omitempty"`
	Access        Access   `yaml:"access"`
}

type compiledRule struct {
	rule     Rule
	segments []string
	methods  map[string]bool
	except   map[string]bool
}

// Table is an immutable, ordered rule set. It is safe for concurrent use.
type Table struct {
	rules    []compiledRule
	fallback Access
}

// NewTable compiles rules in precedence order.
func NewTable(fallback Access, rules ...Rule) (*Table, error) {
	t := &Table{fallback: fallback}
	for i, r := range rules {
		cr, err := compile(r)
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, r.Name, err)
		}
		t.rules = append(t.rules, cr)
	}
	return t, nil
}

// MustTable is NewTable for built-in tables; it panics on an invalid rule.
func MustTable(fallback Access, rules ...Rule) *Table {
	t, err := NewTable(fallback, rules...)
	if err != nil {
		panic(err)
	}
	return t
}

func compile(r Rule) (compiledRule, error) {
	if !strings.HasPrefix(r.Pattern, "/") {
		return compiledRule{}, fmt.Errorf("pattern %q must start with /", r.Pattern)
	}
	if len(r.Methods) > 0 && len(r.ExceptMethods) > 0 {
		return compiledRule{}, fmt.Errorf("methods and except_methods are mutually exclusive")
	}
	segs := splitPath(r.Pattern)
	for i, s := range segs {
		if s == "**" && i != len(segs)-1 {
			return compiledRule{}, fmt.Errorf("** is only allowed as the last segment of %q", r.Pattern)
		}
	}
	return compiledRule{
		rule:     r,
		segments: segs,
		methods:  methodSet(r.Methods),
		except:   methodSet(r.ExceptMethods),
	}, nil
}

func methodSet(methods []string) map[string]bool {
	if len(methods) == 0 {
		return nil
	}
	set := make(map[string]bool, len(methods))
	for _, m := range methods {
		set[strings.ToUpper(strings.TrimSpace(m))] = true
	}
	return set
}

// Resolve returns the access level for a request. path may carry a query string.
func (t *Table) Resolve(method, path string) Access {
	if r, ok := t.Match(method, path); ok {
		return r.Access
	}
	return t.fallback
}

// RequiresAuth reports whether a verified token is needed for the request.
func (t *Table) RequiresAuth(method, path string) bool {
	return t.Resolve(method, path) >= Authenticated
}

// Match returns the first rule matching the request.
func (t *Table) Match(method, path string) (Rule, bool) {
	method = strings.ToUpper(method)
	if method == "" {
		method = http.MethodGet
	}
	segs := splitPath(stripQuery(path))
	for _, cr := range t.rules {
		if cr.methods != nil && !cr.methods[method] {
			continue
		}
		if cr.except != nil && cr.except[method] {
			continue
		}
		if matchSegments(cr.segments, segs) {
			return cr.rule, true
		}
	}
	return Rule{}, false
}

// Rules returns a copy of the rules in precedence order.
func (t *Table) Rules() []Rule {
	out := make([]Rule, len(t.rules))
	for i, cr := range t.rules {
		out[i] = cr.rule
	}
	return out
}

// Fallback returns the access level applied when no rule matches.
func (t *Table) Fallback() Access {
	return t.fallback
}

func matchSegments(pattern, path []string) bool {
	for i, p := range pattern {
		if p == "**" {
			return true
		}
		if i >= len(path) {
			return false
		}
		if p != "*" && p != path[i] {
			return false
		}
	}
	return len(pattern) == len(path)
}

func stripQuery(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		return path[:i]
	}
	return path
}

func splitPath(path string) []string {
	var segs []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}
