// Package policy holds the persisted, administrator-controlled rules for
// which credential providers and kinds are visible platform-wide.
//
// Three layers combine, and all three must approve: a provider filter, a
// kind filter, and an ordered list of provider/kind restrictions. The
// filters are closed allow/deny sets; restrictions are grouped by their
// restriction kind, every group must independently approve a pair, and the
// meaning of an entry (allow-list or deny-list) belongs to its kind rather
// than to the manager.
package policy

import (
	"slices"

	"github.com/systmms/credops/internal/errors"
	"github.com/systmms/credops/pkg/credentials"
)

// FilterMode discriminates the closed filter variants.
type FilterMode string

const (
	// FilterAll admits everything; the name list is ignored.
	FilterAll FilterMode = "all"
	// FilterIncludes admits only the listed entries.
	FilterIncludes FilterMode = "includes"
	// FilterExcludes admits everything except the listed entries.
	FilterExcludes FilterMode = "excludes"
)

func (m FilterMode) valid() bool {
	switch m {
	case FilterAll, FilterIncludes, FilterExcludes:
		return true
	}
	return false
}

// ProviderFilter is the closed allow/deny set over provider names.
type ProviderFilter struct {
	Mode  FilterMode `json:"mode"`
	Names []string   `json:"names,omitempty"`
}

// AllowAllProviders is the default provider filter.
func AllowAllProviders() ProviderFilter {
	return ProviderFilter{Mode: FilterAll}
}

// IncludeProviders admits only the named providers.
func IncludeProviders(names ...string) ProviderFilter {
	return ProviderFilter{Mode: FilterIncludes, Names: names}
}

// ExcludeProviders admits every provider except the named ones.
func ExcludeProviders(names ...string) ProviderFilter {
	return ProviderFilter{Mode: FilterExcludes, Names: names}
}

// Allows reports whether the filter admits the provider name.
func (f ProviderFilter) Allows(name string) bool {
	switch f.Mode {
	case FilterIncludes:
		return slices.Contains(f.Names, name)
	case FilterExcludes:
		return !slices.Contains(f.Names, name)
	}
	return true
}

// Equal reports structural equality after normalization.
func (f ProviderFilter) Equal(other ProviderFilter) bool {
	a, b := f.normalize(), other.normalize()
	return a.Mode == b.Mode && slices.Equal(a.Names, b.Names)
}

func (f ProviderFilter) normalize() ProviderFilter {
	if f.Mode == "" {
		f.Mode = FilterAll
	}
	if f.Mode == FilterAll {
		f.Names = nil
	}
	return f
}

// Validate reports a configuration error for unknown modes.
func (f ProviderFilter) Validate() error {
	if f.Mode != "" && !f.Mode.valid() {
		return errors.ConfigError{
			Field:      "provider_filter.mode",
			Value:      string(f.Mode),
			Message:    "unknown filter mode",
			Suggestion: "use one of: all, includes, excludes",
		}
	}
	return nil
}

// KindFilter is the closed allow/deny set over credential kinds.
type KindFilter struct {
	Mode  FilterMode         `json:"mode"`
	Kinds []credentials.Kind `json:"kinds,omitempty"`
}

// AllowAllKinds is the default kind filter.
func AllowAllKinds() KindFilter {
	return KindFilter{Mode: FilterAll}
}

// IncludeKinds admits only the listed kinds.
func IncludeKinds(kinds ...credentials.Kind) KindFilter {
	return KindFilter{Mode: FilterIncludes, Kinds: kinds}
}

// ExcludeKinds admits every kind except the listed ones.
func ExcludeKinds(kinds ...credentials.Kind) KindFilter {
	return KindFilter{Mode: FilterExcludes, Kinds: kinds}
}

// Allows reports whether the filter admits the kind.
func (f KindFilter) Allows(kind credentials.Kind) bool {
	switch f.Mode {
	case FilterIncludes:
		return slices.Contains(f.Kinds, kind)
	case FilterExcludes:
		return !slices.Contains(f.Kinds, kind)
	}
	return true
}

// Equal reports structural equality after normalization.
func (f KindFilter) Equal(other KindFilter) bool {
	a, b := f.normalize(), other.normalize()
	return a.Mode == b.Mode && slices.Equal(a.Kinds, b.Kinds)
}

func (f KindFilter) normalize() KindFilter {
	if f.Mode == "" {
		f.Mode = FilterAll
	}
	if f.Mode == FilterAll {
		f.Kinds = nil
	}
	return f
}

// Validate reports a configuration error for unknown modes.
func (f KindFilter) Validate() error {
	if f.Mode != "" && !f.Mode.valid() {
		return errors.ConfigError{
			Field:      "kind_filter.mode",
			Value:      string(f.Mode),
			Message:    "unknown filter mode",
			Suggestion: "use one of: all, includes, excludes",
		}
	}
	return nil
}

// RestrictionKind discriminates how a restriction entry is interpreted by
// its group.
type RestrictionKind string

const (
	// RestrictionIncludes entries form per-provider allow-lists: once any
	// include names a provider, that provider serves only its listed
	// kinds. Providers without include entries stay unrestricted.
	RestrictionIncludes RestrictionKind = "includes"
	// RestrictionExcludes entries deny their exact provider/kind pair.
	RestrictionExcludes RestrictionKind = "excludes"
)

// Restriction ties one provider to one credential kind under the rules of
// its restriction kind.
type Restriction struct {
	Kind           RestrictionKind  `json:"kind"`
	Provider       string           `json:"provider"`
	CredentialKind credentials.Kind `json:"credential_kind"`
}

// Validate reports configuration errors for malformed entries.
func (r Restriction) Validate() error {
	switch r.Kind {
	case RestrictionIncludes, RestrictionExcludes:
	default:
		return errors.ConfigError{
			Field:      "restrictions.kind",
			Value:      string(r.Kind),
			Message:    "unknown restriction kind",
			Suggestion: "use one of: includes, excludes",
		}
	}
	if r.Provider == "" {
		return errors.ConfigError{
			Field:   "restrictions.provider",
			Message: "restriction must name a provider",
		}
	}
	if r.CredentialKind == "" {
		return errors.ConfigError{
			Field:   "restrictions.credential_kind",
			Message: "restriction must name a credential kind",
		}
	}
	return nil
}

// groupRestrictions normalizes an entry list into the same order the
// record is written in: includes first, excludes second, original order
// kept within each group.
func groupRestrictions(rs []Restriction) []Restriction {
	out := make([]Restriction, 0, len(rs))
	for _, r := range rs {
		if r.Kind == RestrictionIncludes {
			out = append(out, r)
		}
	}
	for _, r := range rs {
		if r.Kind == RestrictionExcludes {
			out = append(out, r)
		}
	}
	return out
}

type pair struct {
	provider string
	kind     credentials.Kind
}

// restrictionIndex is the derived evaluation form of a restriction list.
// It is immutable once built; racing rebuilds over the same list converge
// to an equivalent value.
type restrictionIndex struct {
	includesByProvider map[string][]credentials.Kind
	excluded           map[pair]bool
}

func buildRestrictionIndex(rs []Restriction) *restrictionIndex {
	idx := &restrictionIndex{
		includesByProvider: make(map[string][]credentials.Kind),
		excluded:           make(map[pair]bool),
	}
	for _, r := range rs {
		switch r.Kind {
		case RestrictionIncludes:
			idx.includesByProvider[r.Provider] = append(idx.includesByProvider[r.Provider], r.CredentialKind)
		case RestrictionExcludes:
			idx.excluded[pair{r.Provider, r.CredentialKind}] = true
		}
	}
	return idx
}

// approves applies the AND-across-groups rule to one provider/kind pair.
func (idx *restrictionIndex) approves(provider string, kind credentials.Kind) bool {
	if included, restricted := idx.includesByProvider[provider]; restricted {
		if !slices.Contains(included, kind) {
			return false
		}
	}
	return !idx.excluded[pair{provider, kind}]
}

// Record is the persisted form of the whole policy.
type Record struct {
	ProviderFilter ProviderFilter `json:"provider_filter"`
	KindFilter     KindFilter     `json:"kind_filter"`
	Restrictions   []Restriction  `json:"restrictions,omitempty"`
}

// DefaultRecord allows everything.
func DefaultRecord() Record {
	return Record{
		ProviderFilter: AllowAllProviders(),
		KindFilter:     AllowAllKinds(),
	}
}

// Validate checks every part of the record.
func (rec Record) Validate() error {
	if err := rec.ProviderFilter.Validate(); err != nil {
		return err
	}
	if err := rec.KindFilter.Validate(); err != nil {
		return err
	}
	for _, r := range rec.Restrictions {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Store persists the policy record. Load returns (nil, nil) when no record
// has been written yet.
type Store interface {
	LoadPolicy() (*Record, error)
	SavePolicy(rec Record) error
}
