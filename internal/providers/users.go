package providers

import (
	"sync/atomic"

	"github.com/systmms/credops/internal/storage"
	"github.com/systmms/credops/pkg/credentials"
	"github.com/systmms/credops/pkg/domains"
	"github.com/systmms/credops/pkg/secret"
)

// UserProviderName is the registration name of the user provider.
const UserProviderName = "system.users"

// UserProvider serves each user's personal credential store, embedded in
// the user's own record. Its credentials behave as USER scoped no matter
// what scope they were declared with: lookups surface them only to the
// owning principal, in any context.
type UserProvider struct {
	files *storage.FileStore
	d     *deps
	alive atomic.Bool
	cache storeCache
}

var (
	_ credentials.Provider    = (*UserProvider)(nil)
	_ credentials.Registrable = (*UserProvider)(nil)
)

// NewUserProvider creates the user provider.
func NewUserProvider(files *storage.FileStore, kinds *credentials.KindRegistry, codec *secret.Codec, opts ...Option) *UserProvider {
	p := &UserProvider{
		files: files,
		d:     newDeps(kinds, codec, opts),
	}
	p.alive.Store(true)
	return p
}

// Name returns the provider's registration name.
func (p *UserProvider) Name() string {
	return UserProviderName
}

// DisplayName returns the provider's human name.
func (p *UserProvider) DisplayName() string {
	return "User credentials"
}

// SetRegistered flips the provider's registration flag.
func (p *UserProvider) SetRegistered(registered bool) {
	p.alive.Store(registered)
}

// StoreFor returns the personal store of the user owning the context.
// Contexts outside any user context have no store here.
func (p *UserProvider) StoreFor(ctx credentials.Context) (credentials.Store, bool) {
	owner := credentials.ContextOwner(ctx)
	if owner == "" || !p.alive.Load() {
		return nil, false
	}
	return p.storeOf(owner), true
}

func (p *UserProvider) storeOf(owner string) *fileStore {
	home := credentials.ForUser(credentials.Principal{ID: owner})
	path := credentials.Path(home)
	return p.cache.get(path, func() *fileStore {
		return &fileStore{
			provider:     p,
			alive:        &p.alive,
			ctx:          home,
			path:         path,
			d:            p.d,
			providerName: UserProviderName,
			load: func() ([]storage.DomainEntry, error) {
				rec, err := p.files.LoadUser(owner)
				if err != nil {
					return nil, err
				}
				if rec == nil {
					return nil, nil
				}
				return rec.Domains, nil
			},
			save: func(entries []storage.DomainEntry) error {
				return p.files.SaveUser(storage.UserRecord{ID: owner, Domains: entries})
			},
		}
	})
}

// CredentialsIn lists the acting principal's own credentials of one kind.
// The queried context does not narrow the result; personal credentials
// follow their owner everywhere and stay invisible to everyone else.
func (p *UserProvider) CredentialsIn(kind credentials.Kind, ctx credentials.Context, as credentials.Principal, reqs ...domains.Requirement) []credentials.Credential {
	out := []credentials.Credential{}
	if as.Anonymous() || !p.alive.Load() {
		return out
	}
	home := credentials.ForUser(as)
	if !p.d.auth.Allowed(as, credentials.PermissionView, home) {
		return out
	}
	store := p.storeOf(as.ID)
	col, err := store.loadCollection()
	if err != nil {
		p.d.warnf("Failed to load credential store %s: %v", store.path, err)
		return out
	}
	for _, entry := range col.entries {
		if !entry.domain.Test(reqs...) {
			continue
		}
		for _, cred := range entry.creds {
			if cred.Kind() != kind {
				continue
			}
			if !credentials.Visible(credentials.ScopeUser, home, ctx, as.ID, as) {
				continue
			}
			out = append(out, cred)
		}
	}
	return out
}
