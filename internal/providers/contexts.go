package providers

import (
	"sync/atomic"

	"github.com/systmms/credops/internal/storage"
	"github.com/systmms/credops/pkg/credentials"
	"github.com/systmms/credops/pkg/domains"
	"github.com/systmms/credops/pkg/secret"
)

// ContextProviderName is the registration name of the context provider.
const ContextProviderName = "system.contexts"

// ContextProvider serves a file-backed credential store for every system
// and item context. Lookups walk the queried context's parent chain, so
// GLOBAL credentials defined on an ancestor are inherited while SYSTEM
// credentials stay confined to their defining context.
type ContextProvider struct {
	files *storage.FileStore
	d     *deps
	alive atomic.Bool
	cache storeCache
}

var (
	_ credentials.Provider    = (*ContextProvider)(nil)
	_ credentials.Registrable = (*ContextProvider)(nil)
)

// NewContextProvider creates the context provider. The codec must be able
// to seal and open every credential the stores will carry.
func NewContextProvider(files *storage.FileStore, kinds *credentials.KindRegistry, codec *secret.Codec, opts ...Option) *ContextProvider {
	p := &ContextProvider{
		files: files,
		d:     newDeps(kinds, codec, opts),
	}
	p.alive.Store(true)
	return p
}

// Name returns the provider's registration name.
func (p *ContextProvider) Name() string {
	return ContextProviderName
}

// DisplayName returns the provider's human name.
func (p *ContextProvider) DisplayName() string {
	return "Context credentials"
}

// SetRegistered flips the provider's registration flag. Store handles
// retained across a deregistration fail fast on their next operation.
func (p *ContextProvider) SetRegistered(registered bool) {
	p.alive.Store(registered)
}

// StoreFor returns the store attached to the context, creating it on
// first use. Callers asking for the same context share one store.
func (p *ContextProvider) StoreFor(ctx credentials.Context) (credentials.Store, bool) {
	if ctx == nil || !p.alive.Load() {
		return nil, false
	}
	return p.storeAt(ctx), true
}

func (p *ContextProvider) storeAt(ctx credentials.Context) *fileStore {
	path := credentials.Path(ctx)
	return p.cache.get(path, func() *fileStore {
		return &fileStore{
			provider:     p,
			alive:        &p.alive,
			ctx:          ctx,
			path:         path,
			d:            p.d,
			providerName: ContextProviderName,
			load: func() ([]storage.DomainEntry, error) {
				rec, err := p.files.LoadContext(path)
				if err != nil {
					return nil, err
				}
				if rec == nil {
					return nil, nil
				}
				return rec.Domains, nil
			},
			save: func(entries []storage.DomainEntry) error {
				return p.files.SaveContext(storage.ContextRecord{Path: path, Domains: entries})
			},
		}
	})
}

// CredentialsIn lists the credentials of one kind visible from the
// context, walking the context itself and then its ancestors. Domain
// requirements and scope visibility filter each shelf; the declaring
// order of domains and credentials is preserved.
func (p *ContextProvider) CredentialsIn(kind credentials.Kind, ctx credentials.Context, as credentials.Principal, reqs ...domains.Requirement) []credentials.Credential {
	out := []credentials.Credential{}
	if ctx == nil || !p.alive.Load() {
		return out
	}
	for c := ctx; c != nil; c = c.Parent() {
		if !p.d.auth.Allowed(as, credentials.PermissionView, c) {
			continue
		}
		store := p.storeAt(c)
		col, err := store.loadCollection()
		if err != nil {
			p.d.warnf("Failed to load credential store %s: %v", store.path, err)
			continue
		}
		for _, entry := range col.entries {
			if !entry.domain.Test(reqs...) {
				continue
			}
			for _, cred := range entry.creds {
				if cred.Kind() != kind {
					continue
				}
				if !credentials.Visible(cred.Scope(), c, ctx, "", as) {
					continue
				}
				out = append(out, cred)
			}
		}
	}
	return out
}
