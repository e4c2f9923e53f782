package domains

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/gobwas/glob"
)

// HostnameSpecification matches hostname requirements against wildcard
// include and exclude lists. Matching is case-insensitive and a `*` crosses
// label boundaries, so `*.example.com` covers `a.b.example.com`.
type HostnameSpecification struct {
	Includes []string
	Excludes []string

	includes []glob.Glob
	excludes []glob.Glob
}

// NewHostnameSpecification compiles the wildcard lists. An empty include
// list admits every hostname; excludes are applied afterwards.
func NewHostnameSpecification(includes, excludes []string) (*HostnameSpecification, error) {
	spec := &HostnameSpecification{
		Includes: append([]string(nil), includes...),
		Excludes: append([]string(nil), excludes...),
	}
	var err error
	if spec.includes, err = compileGlobs(includes, false); err != nil {
		return nil, fmt.Errorf("invalid hostname include: %w", err)
	}
	if spec.excludes, err = compileGlobs(excludes, false); err != nil {
		return nil, fmt.Errorf("invalid hostname exclude: %w", err)
	}
	return spec, nil
}

// Test answers for hostname requirements and abstains for everything else.
func (s *HostnameSpecification) Test(req Requirement) Result {
	hr, ok := req.(HostnameRequirement)
	if !ok {
		return Unknown
	}
	hostname := strings.ToLower(strings.TrimSpace(hr.Hostname))
	if hostname == "" {
		return Unknown
	}
	if len(s.includes) > 0 && !anyMatch(s.includes, hostname) {
		return Negative
	}
	if anyMatch(s.excludes, hostname) {
		return Negative
	}
	return Positive
}

// SchemeSpecification matches scheme requirements against an explicit set
// of URI schemes.
type SchemeSpecification struct {
	Schemes []string
}

// NewSchemeSpecification creates a specification admitting exactly the
// given schemes, compared case-insensitively.
func NewSchemeSpecification(schemes ...string) *SchemeSpecification {
	return &SchemeSpecification{Schemes: append([]string(nil), schemes...)}
}

// Test answers for scheme requirements and abstains for everything else.
// An empty scheme set rejects every scheme.
func (s *SchemeSpecification) Test(req Requirement) Result {
	sr, ok := req.(SchemeRequirement)
	if !ok {
		return Unknown
	}
	scheme := strings.ToLower(strings.TrimSpace(sr.Scheme))
	if scheme == "" {
		return Unknown
	}
	for _, candidate := range s.Schemes {
		if strings.ToLower(candidate) == scheme {
			return Positive
		}
	}
	return Negative
}

// PathSpecification matches path requirements against wildcard include and
// exclude lists. A `*` does not cross `/`, so `/api/*` covers `/api/users`
// but not `/api/users/42`; use `/api/**` for the whole subtree.
type PathSpecification struct {
	Includes      []string
	Excludes      []string
	CaseSensitive bool

	includes []glob.Glob
	excludes []glob.Glob
}

// NewPathSpecification compiles the wildcard lists. An empty include list
// admits every path; excludes are applied afterwards.
func NewPathSpecification(includes, excludes []string, caseSensitive bool) (*PathSpecification, error) {
	spec := &PathSpecification{
		Includes:      append([]string(nil), includes...),
		Excludes:      append([]string(nil), excludes...),
		CaseSensitive: caseSensitive,
	}
	var err error
	if spec.includes, err = compileGlobs(includes, caseSensitive, '/'); err != nil {
		return nil, fmt.Errorf("invalid path include: %w", err)
	}
	if spec.excludes, err = compileGlobs(excludes, caseSensitive, '/'); err != nil {
		return nil, fmt.Errorf("invalid path exclude: %w", err)
	}
	return spec, nil
}

// Test answers for path requirements and abstains for everything else.
func (s *PathSpecification) Test(req Requirement) Result {
	pr, ok := req.(PathRequirement)
	if !ok {
		return Unknown
	}
	path := strings.TrimSpace(pr.Path)
	if path == "" {
		return Unknown
	}
	if !s.CaseSensitive {
		path = strings.ToLower(path)
	}
	if len(s.includes) > 0 && !anyMatch(s.includes, path) {
		return Negative
	}
	if anyMatch(s.excludes, path) {
		return Negative
	}
	return Positive
}

// Expression attributes. Each ExpressionSpecification binds to exactly one,
// mirroring how the other specifications each own one requirement type;
// constraints over several attributes compose as several specifications on
// the same domain.
const (
	AttributeHostname = "hostname"
	AttributeScheme   = "scheme"
	AttributePath     = "path"
)

// ExpressionSpecification evaluates a boolean expression against one
// requirement attribute. The attribute's value is available under the
// variable `value` and again under the attribute's own name. Example:
//
//	NewExpressionSpecification(AttributeHostname, `hostname endsWith ".internal"`)
//
// Requirements of other types abstain, as does a runtime evaluation
// failure, so a broken expression widens visibility instead of hiding
// credentials.
type ExpressionSpecification struct {
	attribute string
	source    string
	program   *vm.Program
}

// NewExpressionSpecification compiles the expression once. An unknown
// attribute or a compilation failure is a configuration error and reported
// immediately.
func NewExpressionSpecification(attribute, source string) (*ExpressionSpecification, error) {
	switch attribute {
	case AttributeHostname, AttributeScheme, AttributePath:
	default:
		return nil, fmt.Errorf("unknown expression attribute %q", attribute)
	}
	program, err := expr.Compile(source,
		expr.Env(exprEnv(attribute, "")),
		expr.AsBool(),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid domain expression %q: %w", source, err)
	}
	return &ExpressionSpecification{attribute: attribute, source: source, program: program}, nil
}

// Attribute returns the requirement attribute the expression binds to.
func (s *ExpressionSpecification) Attribute() string { return s.attribute }

// Source returns the expression text.
func (s *ExpressionSpecification) Source() string { return s.source }

// Test evaluates the expression when the requirement carries the bound
// attribute, abstaining otherwise.
func (s *ExpressionSpecification) Test(req Requirement) Result {
	var value string
	switch r := req.(type) {
	case HostnameRequirement:
		if s.attribute != AttributeHostname {
			return Unknown
		}
		value = r.Hostname
	case SchemeRequirement:
		if s.attribute != AttributeScheme {
			return Unknown
		}
		value = r.Scheme
	case PathRequirement:
		if s.attribute != AttributePath {
			return Unknown
		}
		value = r.Path
	default:
		return Unknown
	}
	if strings.TrimSpace(value) == "" {
		return Unknown
	}
	out, err := vm.Run(s.program, exprEnv(s.attribute, value))
	if err != nil {
		return Unknown
	}
	matched, ok := out.(bool)
	if !ok {
		return Unknown
	}
	if matched {
		return Positive
	}
	return Negative
}

func exprEnv(attribute, value string) map[string]any {
	return map[string]any{
		"value":   value,
		attribute: value,
	}
}

func compileGlobs(patterns []string, caseSensitive bool, separators ...rune) ([]glob.Glob, error) {
	var out []glob.Glob
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		if !caseSensitive {
			pattern = strings.ToLower(pattern)
		}
		g, err := glob.Compile(pattern, separators...)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", pattern, err)
		}
		out = append(out, g)
	}
	return out, nil
}

func anyMatch(globs []glob.Glob, value string) bool {
	for _, g := range globs {
		if g.Match(value) {
			return true
		}
	}
	return false
}
