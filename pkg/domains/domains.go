// Package domains models the named partitions of a credential store.
//
// A store shelves its credentials into domains. The distinguished nameless
// global domain always exists and holds credentials that are not tied to a
// particular endpoint. Named domains carry specifications
// describing where their credentials apply ("hosts matching *.example.com
// over https"), so callers can ask for credentials relevant to a concrete
// endpoint instead of scanning everything.
//
// Matching is a two-sided protocol. Callers describe what they are about to
// talk to as a list of Requirements (hostname, scheme, path). Each domain
// specification examines each requirement and answers Positive, Negative, or
// Unknown. A domain fits a requirement set when no specification answers
// Negative; a specification that never recognizes any requirement abstains
// and does not disqualify the domain.
package domains

import (
	"encoding/json"
	"fmt"
)

// Result is a specification's verdict on a single requirement.
type Result int

const (
	// Unknown means the specification does not recognize the requirement
	// and abstains.
	Unknown Result = iota
	// Positive means the requirement satisfies the specification.
	Positive
	// Negative means the requirement violates the specification and the
	// domain does not apply.
	Negative
)

func (r Result) String() string {
	switch r {
	case Positive:
		return "positive"
	case Negative:
		return "negative"
	default:
		return "unknown"
	}
}

// Requirement describes one attribute of the endpoint a caller needs
// credentials for. The set of requirement types is closed; specifications
// switch over it exhaustively.
type Requirement interface {
	requirement()
}

// HostnameRequirement carries the hostname of the target endpoint.
type HostnameRequirement struct {
	Hostname string
}

func (HostnameRequirement) requirement() {}

// SchemeRequirement carries the URI scheme of the target endpoint.
type SchemeRequirement struct {
	Scheme string
}

func (SchemeRequirement) requirement() {}

// PathRequirement carries the request path on the target endpoint.
type PathRequirement struct {
	Path string
}

func (PathRequirement) requirement() {}

// Specification tests a single requirement against one rule of a domain.
type Specification interface {
	Test(req Requirement) Result
}

// Domain is a named partition within a credential store. The zero value is
// the global domain. Domain is an immutable value type; treat it like
// time.Time.
type Domain struct {
	name        string
	description string
	specs       []Specification
}

// New creates a named domain with the given specifications. An empty name
// produces the global domain regardless of the other arguments.
func New(name, description string, specs ...Specification) Domain {
	if name == "" {
		return Global()
	}
	return Domain{
		name:        name,
		description: description,
		specs:       append([]Specification(nil), specs...),
	}
}

// Global returns the nameless global domain.
func Global() Domain {
	return Domain{}
}

// Name returns the domain name, empty for the global domain.
func (d Domain) Name() string { return d.name }

// Description returns the human description of the domain.
func (d Domain) Description() string { return d.description }

// IsGlobal reports whether this is the nameless global domain.
func (d Domain) IsGlobal() bool { return d.name == "" }

// Specifications returns a copy of the domain's specifications.
func (d Domain) Specifications() []Specification {
	return append([]Specification(nil), d.specs...)
}

// Test reports whether the domain applies to the given requirements.
//
// Each specification scans the requirements until it reaches a definitive
// verdict: Negative fails the whole test immediately, Positive satisfies
// that specification and moves on to the next one. A specification that
// answers Unknown for every requirement abstains. The global domain, having
// no specifications, applies to everything.
func (d Domain) Test(reqs ...Requirement) bool {
specs:
	for _, spec := range d.specs {
		for _, req := range reqs {
			switch spec.Test(req) {
			case Negative:
				return false
			case Positive:
				continue specs
			}
		}
	}
	return true
}

// domainRecord is the persisted JSON shape of a Domain.
type domainRecord struct {
	Name           string       `json:"name,omitempty"`
	Description    string       `json:"description,omitempty"`
	Specifications []specRecord `json:"specifications,omitempty"`
}

// specRecord is the discriminated persisted shape of one specification.
// Only specifications from this package can be persisted; third-party
// specifications live in memory only.
type specRecord struct {
	Type          string   `json:"type"`
	Includes      []string `json:"includes,omitempty"`
	Excludes      []string `json:"excludes,omitempty"`
	Schemes       []string `json:"schemes,omitempty"`
	CaseSensitive bool     `json:"case_sensitive,omitempty"`
	Attribute     string   `json:"attribute,omitempty"`
	Expression    string   `json:"expression,omitempty"`
}

// MarshalJSON encodes the domain with its specifications. Specifications of
// unknown types are dropped with no error; persistence of third-party
// specifications is not supported.
func (d Domain) MarshalJSON() ([]byte, error) {
	rec := domainRecord{
		Name:        d.name,
		Description: d.description,
	}
	for _, spec := range d.specs {
		switch s := spec.(type) {
		case *HostnameSpecification:
			rec.Specifications = append(rec.Specifications, specRecord{
				Type:     "hostname",
				Includes: s.Includes,
				Excludes: s.Excludes,
			})
		case *SchemeSpecification:
			rec.Specifications = append(rec.Specifications, specRecord{
				Type:    "scheme",
				Schemes: s.Schemes,
			})
		case *PathSpecification:
			rec.Specifications = append(rec.Specifications, specRecord{
				Type:          "path",
				Includes:      s.Includes,
				Excludes:      s.Excludes,
				CaseSensitive: s.CaseSensitive,
			})
		case *ExpressionSpecification:
			rec.Specifications = append(rec.Specifications, specRecord{
				Type:       "expression",
				Attribute:  s.Attribute(),
				Expression: s.Source(),
			})
		}
	}
	return json.Marshal(rec)
}

// UnmarshalJSON decodes a domain, recompiling its specifications. A record
// naming an unknown specification type fails so silent policy loss cannot
// slip through a hand-edited file.
func (d *Domain) UnmarshalJSON(data []byte) error {
	var rec domainRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	out := Domain{
		name:        rec.Name,
		description: rec.Description,
	}
	for _, sr := range rec.Specifications {
		switch sr.Type {
		case "hostname":
			spec, err := NewHostnameSpecification(sr.Includes, sr.Excludes)
			if err != nil {
				return fmt.Errorf("domain %q: %w", rec.Name, err)
			}
			out.specs = append(out.specs, spec)
		case "scheme":
			out.specs = append(out.specs, NewSchemeSpecification(sr.Schemes...))
		case "path":
			spec, err := NewPathSpecification(sr.Includes, sr.Excludes, sr.CaseSensitive)
			if err != nil {
				return fmt.Errorf("domain %q: %w", rec.Name, err)
			}
			out.specs = append(out.specs, spec)
		case "expression":
			spec, err := NewExpressionSpecification(sr.Attribute, sr.Expression)
			if err != nil {
				return fmt.Errorf("domain %q: %w", rec.Name, err)
			}
			out.specs = append(out.specs, spec)
		default:
			return fmt.Errorf("domain %q: unknown specification type %q", rec.Name, sr.Type)
		}
	}
	*d = out
	return nil
}
