package credentials

import (
	"sync"
	"time"

	"github.com/systmms/credops/internal/errors"
	"github.com/systmms/credops/internal/logging"
	"github.com/systmms/credops/internal/metrics"
	"github.com/systmms/credops/pkg/domains"
)

// Provider locates the credential stores for contexts it applies to and
// answers scoped lookups. Providers are registered explicitly with a
// Registry; there is no discovery.
type Provider interface {
	// Name returns the stable identifier used in policy and logs.
	Name() string

	// DisplayName returns the human name shown in listings.
	DisplayName() string

	// StoreFor returns the store attached to the context, creating it
	// lazily if the provider applies to the context. The second result is
	// false when the provider has no store there.
	StoreFor(ctx Context) (Store, bool)

	// CredentialsIn lists the credentials of exactly the given kind
	// visible in the context to the principal, walking the context's
	// ancestors for inherited global credentials and testing each
	// shelving domain against the requirements. No kind resolution
	// happens here; the registry widens kinds before calling.
	CredentialsIn(kind Kind, ctx Context, as Principal, reqs ...domains.Requirement) []Credential
}

// Registrable is implemented by providers that want to know whether they
// are currently registered. The registry flips the flag on Register and
// Deregister; provider-backed stores use it to fail calls after their
// provider is gone.
type Registrable interface {
	SetRegistered(registered bool)
}

// PolicyDecider filters which providers and kinds participate in lookups
// and listings. The zero policy (a nil decider) allows everything.
type PolicyDecider interface {
	// ProviderAllowed reports whether the named provider may serve.
	ProviderAllowed(name string) bool
	// KindAllowed reports whether the kind may be used at all.
	KindAllowed(kind Kind) bool
	// PairAllowed reports whether the named provider may serve the kind.
	PairAllowed(name string, kind Kind) bool
}

// Registry aggregates providers and answers platform-wide credential
// lookups. Providers are consulted in registration order, so provider
// order is the outermost precedence rule for FirstOrDefault callers.
type Registry struct {
	mu        sync.RWMutex
	providers []Provider
	byName    map[string]Provider

	kinds   *KindRegistry
	policy  PolicyDecider
	metrics *metrics.Recorder
	logger  *logging.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithPolicy installs the policy decider gating providers and kinds.
func WithPolicy(policy PolicyDecider) RegistryOption {
	return func(r *Registry) { r.policy = policy }
}

// WithMetrics installs the lookup metrics recorder.
func WithMetrics(rec *metrics.Recorder) RegistryOption {
	return func(r *Registry) { r.metrics = rec }
}

// WithLogger installs the registry's logger.
func WithLogger(logger *logging.Logger) RegistryOption {
	return func(r *Registry) { r.logger = logger }
}

// NewRegistry creates a registry resolving kinds through kinds. A nil
// kinds registry gets the built-in defaults.
func NewRegistry(kinds *KindRegistry, opts ...RegistryOption) *Registry {
	if kinds == nil {
		kinds = DefaultKinds()
	}
	r := &Registry{
		byName: make(map[string]Provider),
		kinds:  kinds,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Kinds returns the kind registry lookups resolve through.
func (r *Registry) Kinds() *KindRegistry { return r.kinds }

// Register adds a provider at the end of the precedence order. Registering
// an unnamed provider or a name twice is a configuration error.
func (r *Registry) Register(p Provider) error {
	if p == nil {
		return errors.ConfigError{
			Field:   "provider",
			Message: "provider must not be nil",
		}
	}
	name := p.Name()
	if name == "" {
		return errors.ConfigError{
			Field:   "provider",
			Message: "provider name must not be empty",
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[name]; exists {
		return errors.ConfigError{
			Field:      "provider",
			Value:      name,
			Message:    "provider name registered twice",
			Suggestion: "give each provider a unique name",
		}
	}
	r.providers = append(r.providers, p)
	r.byName[name] = p
	if reg, ok := p.(Registrable); ok {
		reg.SetRegistered(true)
	}
	if r.logger != nil {
		r.logger.Debug("Registered credential provider %s", name)
	}
	return nil
}

// Deregister removes a provider by name and reports whether it was
// registered. Stores already handed out by the provider start failing
// their calls once it is gone.
func (r *Registry) Deregister(name string) bool {
	r.mu.Lock()
	var removed Provider
	for i, p := range r.providers {
		if p.Name() == name {
			removed = p
			r.providers = append(r.providers[:i], r.providers[i+1:]...)
			break
		}
	}
	if removed != nil {
		delete(r.byName, name)
	}
	r.mu.Unlock()

	if removed == nil {
		return false
	}
	if reg, ok := removed.(Registrable); ok {
		reg.SetRegistered(false)
	}
	if r.logger != nil {
		r.logger.Debug("Deregistered credential provider %s", name)
	}
	return true
}

// ProviderByName finds a registered provider.
func (r *Registry) ProviderByName(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byName[name]
	return p, ok
}

// Providers lists the registered providers in precedence order, filtered
// by policy.
func (r *Registry) Providers() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		if r.policy != nil && !r.policy.ProviderAllowed(p.Name()) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// StoresFor collects the stores attached to the context across all allowed
// providers, in precedence order.
func (r *Registry) StoresFor(ctx Context) []Store {
	var out []Store
	for _, p := range r.Providers() {
		if s, ok := p.StoreFor(ctx); ok {
			out = append(out, s)
		}
	}
	return out
}

// Lookup lists the credentials of the given kind visible in the context to
// the principal, in provider precedence order. Legacy kinds that resolve
// to the requested kind are included, already adapted, so callers only
// ever see the kind they asked for. Requirements narrow the result to
// domains fitting them. The result is never nil.
func (r *Registry) Lookup(kind Kind, ctx Context, as Principal, reqs ...domains.Requirement) []Credential {
	out := []Credential{}
	if r.policy != nil && !r.policy.KindAllowed(kind) {
		return out
	}

	sources := append([]Kind{kind}, r.kinds.ResolutionSources(kind)...)
	for _, p := range r.Providers() {
		name := p.Name()
		if r.policy != nil && !r.policy.PairAllowed(name, kind) {
			continue
		}
		start := time.Now()
		for _, source := range sources {
			for _, c := range p.CredentialsIn(source, ctx, as, reqs...) {
				if source != kind {
					c = r.kinds.Resolve(c)
				}
				if c == nil || c.Kind() != kind {
					continue
				}
				out = append(out, c)
			}
		}
		r.metrics.RecordLookup(name, time.Since(start).Seconds())
	}
	return out
}
