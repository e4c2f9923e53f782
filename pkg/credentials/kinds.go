package credentials

import (
	"slices"
	"sync"

	"github.com/systmms/credops/internal/errors"
	"github.com/systmms/credops/pkg/secret"
)

// Kind is the closed identifier of a credential type. Everything the
// platform knows about a kind hangs off its KindSpec in a KindRegistry.
type Kind string

// Built-in kinds. Third parties register their own through KindRegistry.
const (
	KindUsernamePassword Kind = "username_password"
	KindSecretText       Kind = "secret_text"
	KindSSHKey           Kind = "ssh_key"
	KindCertificate      Kind = "certificate"
	KindSecretFile       Kind = "secret_file"
	KindLegacyToken      Kind = "legacy_token"
)

// NameSource renders a display name for a credential. Priority decides
// which source wins when several apply; see KindRegistry.NameOf.
type NameSource struct {
	Priority int
	Render   func(Credential) string
}

// Record is the persisted form of one credential: the common fields plus a
// kind-specific data map whose secret values are envelope text.
type Record struct {
	Kind        Kind              `json:"kind"`
	ID          string            `json:"id,omitempty"`
	Scope       Scope             `json:"scope"`
	Description string            `json:"description,omitempty"`
	Data        map[string]string `json:"data,omitempty"`
}

// KindSpec declares one credential kind.
//
// Fallbacks is the ordered chain of kinds whose name sources also apply to
// this kind; it replaces walking a type hierarchy with an explicit
// declaration. Encode and Decode convert between the concrete type and its
// Record; leave them nil for kinds that never persist.
type KindSpec struct {
	Kind        Kind
	DisplayName string
	Fallbacks   []Kind
	NameSources []NameSource
	Encode      func(c Credential, codec *secret.Codec) (map[string]string, error)
	Decode      func(base Base, data map[string]string, codec *secret.Codec) (Credential, error)
}

// SnapshotTaker converts a credential whose secret material lives outside
// the record (an external file, say) into a fully self-contained copy.
type SnapshotTaker interface {
	Snapshot(c Credential, codec *secret.Codec) (Credential, error)
}

// SnapshotFunc adapts a function to the SnapshotTaker interface.
type SnapshotFunc func(c Credential, codec *secret.Codec) (Credential, error)

func (f SnapshotFunc) Snapshot(c Credential, codec *secret.Codec) (Credential, error) {
	return f(c, codec)
}

type resolverEdge struct {
	from    Kind
	to      Kind
	convert func(Credential) Credential
}

// KindRegistry maps kinds to their specs, naming sources, one-hop legacy
// resolvers, and snapshot takers. Construct one explicitly at process start
// and pass it by reference; there is no package-level instance.
//
// Registration happens during initialization, lookups happen on the request
// path; both are safe concurrently.
type KindRegistry struct {
	mu            sync.RWMutex
	specs         map[Kind]KindSpec
	resolvers     map[Kind]resolverEdge
	resolverOrder []Kind
	targets       map[Kind]bool
	snapshotters  map[Kind]SnapshotTaker
}

// NewKindRegistry creates an empty registry.
func NewKindRegistry() *KindRegistry {
	return &KindRegistry{
		specs:        make(map[Kind]KindSpec),
		resolvers:    make(map[Kind]resolverEdge),
		targets:      make(map[Kind]bool),
		snapshotters: make(map[Kind]SnapshotTaker),
	}
}

// Register adds a kind. Registering an empty or duplicate kind is a
// configuration error. Fallback kinds may be registered later; unknown ones
// are skipped during name resolution.
func (r *KindRegistry) Register(spec KindSpec) error {
	if spec.Kind == "" {
		return errors.ConfigError{
			Field:   "kind",
			Message: "credential kind must not be empty",
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.specs[spec.Kind]; exists {
		return errors.ConfigError{
			Field:      "kind",
			Value:      string(spec.Kind),
			Message:    "credential kind registered twice",
			Suggestion: "register each kind exactly once at process start",
		}
	}
	r.specs[spec.Kind] = spec
	return nil
}

// Known reports whether the kind has been registered.
func (r *KindRegistry) Known(kind Kind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.specs[kind]
	return ok
}

// Kinds lists the registered kinds in sorted order.
func (r *KindRegistry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Kind, 0, len(r.specs))
	for k := range r.specs {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// Spec returns the registered spec for a kind.
func (r *KindRegistry) Spec(kind Kind) (KindSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.specs[kind]
	return spec, ok
}

// DisplayName returns the registered display name, or the bare kind string
// for unregistered kinds.
func (r *KindRegistry) DisplayName(kind Kind) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if spec, ok := r.specs[kind]; ok && spec.DisplayName != "" {
		return spec.DisplayName
	}
	return string(kind)
}

// NameOf renders a display name for the credential. It gathers the name
// sources of the credential's kind and, in declaration order, of every kind
// on its fallback chain; the source with the strictly highest priority
// wins, and the first one discovered keeps exact ties. If the winning
// source panics or renders an empty string the kind's display name is used,
// and failing that the bare kind string. NameOf never panics or errors.
func (r *KindRegistry) NameOf(c Credential) string {
	if c == nil {
		return ""
	}
	kind := c.Kind()

	r.mu.RLock()
	var best *NameSource
	visited := make(map[Kind]bool)
	r.walkSources(kind, visited, &best)
	spec, known := r.specs[kind]
	r.mu.RUnlock()

	if best != nil {
		if name := renderSafely(best.Render, c); name != "" {
			return name
		}
	}
	if known && spec.DisplayName != "" {
		return spec.DisplayName
	}
	return string(kind)
}

// walkSources visits kind and its declared fallbacks depth-first, keeping
// the highest-priority source discovered so far. Caller holds the read
// lock.
func (r *KindRegistry) walkSources(kind Kind, visited map[Kind]bool, best **NameSource) {
	if visited[kind] {
		return
	}
	visited[kind] = true
	spec, ok := r.specs[kind]
	if !ok {
		return
	}
	for i := range spec.NameSources {
		src := spec.NameSources[i]
		if src.Render == nil {
			continue
		}
		if *best == nil || src.Priority > (*best).Priority {
			*best = &src
		}
	}
	for _, fb := range spec.Fallbacks {
		r.walkSources(fb, visited, best)
	}
}

func renderSafely(render func(Credential) string, c Credential) (name string) {
	defer func() {
		if recover() != nil {
			name = ""
		}
	}()
	return render(c)
}

// Encode converts a credential into its persisted record using the kind's
// registered codec.
func (r *KindRegistry) Encode(c Credential, codec *secret.Codec) (Record, error) {
	spec, ok := r.Spec(c.Kind())
	if !ok || spec.Encode == nil {
		return Record{}, errors.ConfigError{
			Field:      "kind",
			Value:      string(c.Kind()),
			Message:    "no persistence codec registered for credential kind",
			Suggestion: "register the kind with Encode/Decode functions before saving",
		}
	}
	data, err := spec.Encode(c, codec)
	if err != nil {
		return Record{}, err
	}
	return Record{
		Kind:        c.Kind(),
		ID:          c.ID(),
		Scope:       c.Scope(),
		Description: c.Description(),
		Data:        data,
	}, nil
}

// Decode reconstructs a credential from its persisted record. An unknown
// kind is a configuration error naming the kind, so a missing registration
// surfaces instead of silently dropping stored credentials.
func (r *KindRegistry) Decode(rec Record, codec *secret.Codec) (Credential, error) {
	spec, ok := r.Spec(rec.Kind)
	if !ok || spec.Decode == nil {
		return nil, errors.ConfigError{
			Field:      "kind",
			Value:      string(rec.Kind),
			Message:    "stored credential has an unregistered kind",
			Suggestion: "register the kind before loading, or remove the stale record",
		}
	}
	if !rec.Scope.Valid() {
		return nil, errors.ConfigError{
			Field:   "scope",
			Value:   string(rec.Scope),
			Message: "stored credential has an invalid scope",
		}
	}
	return spec.Decode(NewBase(rec.ID, rec.Scope, rec.Description), rec.Data, codec)
}

// RegisterResolver declares that credentials of kind from stand in for kind
// to through convert. Resolution is strictly one hop: registering an edge
// that would chain with an existing one fails fast, as does re-registering
// a source or naming an unknown kind. These are load-time configuration
// errors, never a runtime path.
func (r *KindRegistry) RegisterResolver(from, to Kind, convert func(Credential) Credential) error {
	if from == "" || to == "" {
		return errors.ConfigError{
			Field:   "resolver",
			Message: "resolver kinds must not be empty",
		}
	}
	if from == to {
		return errors.ConfigError{
			Field:   "resolver",
			Value:   string(from),
			Message: "resolver cannot map a kind to itself",
		}
	}
	if convert == nil {
		return errors.ConfigError{
			Field:   "resolver",
			Value:   string(from),
			Message: "resolver conversion function must not be nil",
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.specs[from]; !ok {
		return errors.ConfigError{
			Field:   "resolver",
			Value:   string(from),
			Message: "resolver source kind is not registered",
		}
	}
	if _, ok := r.specs[to]; !ok {
		return errors.ConfigError{
			Field:   "resolver",
			Value:   string(to),
			Message: "resolver target kind is not registered",
		}
	}
	if _, ok := r.resolvers[from]; ok {
		return errors.ConfigError{
			Field:   "resolver",
			Value:   string(from),
			Message: "kind already has a resolver",
		}
	}
	if r.targets[from] {
		return errors.ConfigError{
			Field:      "resolver",
			Value:      string(from),
			Message:    "kind is already a resolver target; chains are not supported",
			Suggestion: "resolve the legacy kind directly to the final kind",
		}
	}
	if _, ok := r.resolvers[to]; ok {
		return errors.ConfigError{
			Field:      "resolver",
			Value:      string(to),
			Message:    "target kind is itself a resolver source; chains are not supported",
			Suggestion: "resolve the legacy kind directly to the final kind",
		}
	}
	r.resolvers[from] = resolverEdge{from: from, to: to, convert: convert}
	r.resolverOrder = append(r.resolverOrder, from)
	r.targets[to] = true
	return nil
}

// Resolve adapts a legacy credential to its declared modern kind. A
// credential whose kind has no resolver, including one already of a target
// kind, is returned unchanged. A nil credential stays nil.
func (r *KindRegistry) Resolve(c Credential) Credential {
	if c == nil {
		return nil
	}
	r.mu.RLock()
	edge, ok := r.resolvers[c.Kind()]
	r.mu.RUnlock()
	if !ok {
		return c
	}
	if out := edge.convert(c); out != nil {
		return out
	}
	return c
}

// ResolveAll maps Resolve over a slice, skipping nil entries.
func (r *KindRegistry) ResolveAll(cs []Credential) []Credential {
	out := make([]Credential, 0, len(cs))
	for _, c := range cs {
		if c == nil {
			continue
		}
		out = append(out, r.Resolve(c))
	}
	return out
}

// ResolvesTo returns the kind a legacy kind stands in for, when a resolver
// has been registered on it.
func (r *KindRegistry) ResolvesTo(kind Kind) (Kind, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	edge, ok := r.resolvers[kind]
	return edge.to, ok
}

// ResolutionSources returns the kinds that resolve to target, in resolver
// registration order. Lookups use this to widen a query for a modern kind
// to the legacy kinds standing in for it.
func (r *KindRegistry) ResolutionSources(target Kind) []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Kind
	for _, from := range r.resolverOrder {
		if r.resolvers[from].to == target {
			out = append(out, from)
		}
	}
	return out
}

// RegisterSnapshotTaker attaches a snapshot taker to a kind.
func (r *KindRegistry) RegisterSnapshotTaker(kind Kind, taker SnapshotTaker) error {
	if taker == nil {
		return errors.ConfigError{
			Field:   "snapshot",
			Value:   string(kind),
			Message: "snapshot taker must not be nil",
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.specs[kind]; !ok {
		return errors.ConfigError{
			Field:   "snapshot",
			Value:   string(kind),
			Message: "snapshot kind is not registered",
		}
	}
	if _, ok := r.snapshotters[kind]; ok {
		return errors.ConfigError{
			Field:   "snapshot",
			Value:   string(kind),
			Message: "kind already has a snapshot taker",
		}
	}
	r.snapshotters[kind] = taker
	return nil
}

// Snapshot produces a self-contained copy of the credential. Kinds without
// a registered taker pass through unchanged.
func (r *KindRegistry) Snapshot(c Credential, codec *secret.Codec) (Credential, error) {
	if c == nil {
		return nil, nil
	}
	r.mu.RLock()
	taker, ok := r.snapshotters[c.Kind()]
	r.mu.RUnlock()
	if !ok {
		return c, nil
	}
	return taker.Snapshot(c, codec)
}
