package providers_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/credops/internal/permissions"
	"github.com/systmms/credops/internal/providers"
	"github.com/systmms/credops/internal/storage"
	"github.com/systmms/credops/pkg/credentials"
	"github.com/systmms/credops/pkg/domains"
	"github.com/systmms/credops/pkg/policy"
)

// TestStoreFilterRoundTrip walks one credential from a store listing
// through the matcher combinators.
func TestStoreFilterRoundTrip(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	store, ok := f.contexts.StoreFor(credentials.Item(credentials.System(), "team-a"))
	require.True(t, ok)

	c1 := f.usernamePassword(t, "c1", credentials.ScopeGlobal, "alice")
	token := f.secretText(t, "noise", credentials.ScopeGlobal)
	_, err := store.AddCredentials(admin, domains.Global(), c1, token)
	require.NoError(t, err)

	listed := store.Credentials(domains.Global())
	require.Len(t, listed, 2)

	matched := credentials.Filter(listed, credentials.WithUsername("alice"))
	require.Len(t, matched, 1)
	assert.True(t, credentials.Same(c1, matched[0]))

	assert.Nil(t, credentials.FirstOrDefault([]credentials.Credential{}, credentials.Always(), nil),
		"empty input falls through to the default")

	fallback := credentials.FirstOrDefault(matched, credentials.WithUsername("bob"), matched[0])
	assert.True(t, credentials.Same(c1, fallback), "no match falls through to the default")
}

func registryFixture(t *testing.T) (*fixture, *credentials.Registry) {
	t.Helper()

	f := newFixture(t)
	registry := credentials.NewRegistry(f.kinds)
	require.NoError(t, registry.Register(f.contexts))
	require.NoError(t, registry.Register(f.users))
	return f, registry
}

// TestRegistryLookupAcrossProviders verifies a lookup merges shared and
// personal credentials in provider registration order.
func TestRegistryLookupAcrossProviders(t *testing.T) {
	t.Parallel()

	f, registry := registryFixture(t)
	folder := credentials.Item(credentials.System(), "team-a")

	shared, ok := f.contexts.StoreFor(folder)
	require.True(t, ok)
	_, err := shared.AddCredentials(admin, domains.Global(), f.secretText(t, "shared-token", credentials.ScopeGlobal))
	require.NoError(t, err)

	personal, ok := f.users.StoreFor(credentials.ForUser(alice))
	require.True(t, ok)
	_, err = personal.AddCredentials(alice, domains.Global(), f.secretText(t, "alice-token", credentials.ScopeUser))
	require.NoError(t, err)

	asAlice := registry.Lookup(credentials.KindSecretText, folder, alice)
	require.Len(t, asAlice, 2)
	assert.Equal(t, "shared-token", asAlice[0].ID(), "registration order decides precedence")
	assert.Equal(t, "alice-token", asAlice[1].ID())

	asBob := registry.Lookup(credentials.KindSecretText, folder, bob)
	require.Len(t, asBob, 1)
	assert.Equal(t, "shared-token", asBob[0].ID())

	assert.Empty(t, registry.Lookup(credentials.KindSecretText, folder, credentials.Principal{}))
}

// TestRegistryLookupRequirements verifies requirements narrow a lookup to
// credentials shelved in matching domains.
func TestRegistryLookupRequirements(t *testing.T) {
	t.Parallel()

	f, registry := registryFixture(t)
	folder := credentials.Item(credentials.System(), "team-a")
	store, ok := f.contexts.StoreFor(folder)
	require.True(t, ok)

	hosts, err := domains.NewHostnameSpecification([]string{"*.example.com"}, nil)
	require.NoError(t, err)
	_, err = store.AddDomain(admin, domains.New("production", "", hosts),
		f.secretText(t, "prod-token", credentials.ScopeGlobal))
	require.NoError(t, err)
	_, err = store.AddCredentials(admin, domains.Global(), f.secretText(t, "anywhere", credentials.ScopeGlobal))
	require.NoError(t, err)

	all := registry.Lookup(credentials.KindSecretText, folder, admin)
	require.Len(t, all, 2)

	matched := registry.Lookup(credentials.KindSecretText, folder, admin,
		domains.HostnameRequirement{Hostname: "api.example.com"})
	ids := make([]string, 0, len(matched))
	for _, c := range matched {
		ids = append(ids, c.ID())
	}
	assert.ElementsMatch(t, []string{"prod-token", "anywhere"}, ids)

	elsewhere := registry.Lookup(credentials.KindSecretText, folder, admin,
		domains.HostnameRequirement{Hostname: "db.internal"})
	require.Len(t, elsewhere, 1)
	assert.Equal(t, "anywhere", elsewhere[0].ID())
}

// TestRegistryLegacyKindWidening verifies legacy tokens answer lookups for
// their modern kind, already adapted.
func TestRegistryLegacyKindWidening(t *testing.T) {
	t.Parallel()

	f, registry := registryFixture(t)
	folder := credentials.Item(credentials.System(), "team-a")
	store, ok := f.contexts.StoreFor(folder)
	require.True(t, ok)

	token, err := f.codec.ProtectString("tok-secret")
	require.NoError(t, err)
	legacy := credentials.NewLegacyToken("old-api", credentials.ScopeGlobal, "pre-migration token", token)
	_, err = store.AddCredentials(admin, domains.Global(), legacy)
	require.NoError(t, err)

	asText := registry.Lookup(credentials.KindSecretText, folder, admin)
	require.Len(t, asText, 1)
	assert.Equal(t, credentials.KindSecretText, asText[0].Kind())
	assert.Equal(t, "old-api", asText[0].ID())
	text, ok := asText[0].(*credentials.SecretText)
	require.True(t, ok)
	plain, err := text.Secret().Plain()
	require.NoError(t, err)
	assert.Equal(t, "tok-secret", string(plain))

	asLegacy := registry.Lookup(credentials.KindLegacyToken, folder, admin)
	require.Len(t, asLegacy, 1)
	assert.Equal(t, credentials.KindLegacyToken, asLegacy[0].Kind(),
		"asking for the legacy kind directly returns it unadapted")
}

// TestRegistryPolicyEnforcement wires the persisted policy manager into a
// registry and walks every layer: provider filter, kind filter, and
// restrictions.
func TestRegistryPolicyEnforcement(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	checker := permissions.NewChecker(nil)
	manager, err := policy.NewManager(f.files, checker)
	require.NoError(t, err)

	registry := credentials.NewRegistry(f.kinds, credentials.WithPolicy(manager))
	require.NoError(t, registry.Register(f.contexts))
	require.NoError(t, registry.Register(f.users))

	folder := credentials.Item(credentials.System(), "team-a")
	store, ok := f.contexts.StoreFor(folder)
	require.True(t, ok)
	_, err = store.AddCredentials(admin, domains.Global(),
		f.secretText(t, "st-1", credentials.ScopeGlobal),
		f.usernamePassword(t, "up-1", credentials.ScopeGlobal, "deploy"))
	require.NoError(t, err)

	personal, ok := f.users.StoreFor(credentials.ForUser(alice))
	require.True(t, ok)
	_, err = personal.AddCredentials(alice, domains.Global(), f.secretText(t, "alice-token", credentials.ScopeUser))
	require.NoError(t, err)

	lookupIDs := func(kind credentials.Kind, as credentials.Principal) []string {
		creds := registry.Lookup(kind, folder, as)
		ids := make([]string, 0, len(creds))
		for _, c := range creds {
			ids = append(ids, c.ID())
		}
		return ids
	}

	// Default policy admits everything.
	assert.ElementsMatch(t, []string{"st-1", "alice-token"}, lookupIDs(credentials.KindSecretText, alice))
	assert.ElementsMatch(t, []string{"up-1"}, lookupIDs(credentials.KindUsernamePassword, alice))

	// Kind filter removes a kind everywhere.
	_, err = manager.SetKindFilter(admin, policy.ExcludeKinds(credentials.KindUsernamePassword))
	require.NoError(t, err)
	assert.Empty(t, lookupIDs(credentials.KindUsernamePassword, alice))
	assert.ElementsMatch(t, []string{"st-1", "alice-token"}, lookupIDs(credentials.KindSecretText, alice))

	// Provider filter drops the personal provider entirely.
	_, err = manager.SetProviderFilter(admin, policy.IncludeProviders("system.contexts"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"st-1"}, lookupIDs(credentials.KindSecretText, alice))
	names := make([]string, 0, 2)
	for _, p := range registry.Providers() {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{"system.contexts"}, names)

	// An include restriction pins a provider to its listed kinds.
	_, err = manager.SetProviderFilter(admin, policy.AllowAllProviders())
	require.NoError(t, err)
	_, err = manager.SetKindFilter(admin, policy.AllowAllKinds())
	require.NoError(t, err)
	_, err = manager.SetRestrictions(admin, []policy.Restriction{{
		Kind:           policy.RestrictionIncludes,
		Provider:       "system.contexts",
		CredentialKind: credentials.KindUsernamePassword,
	}})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice-token"}, lookupIDs(credentials.KindSecretText, alice),
		"restricted provider no longer serves unlisted kinds")
	assert.ElementsMatch(t, []string{"up-1"}, lookupIDs(credentials.KindUsernamePassword, alice))

	// Non-administrators cannot mutate the policy.
	_, err = manager.SetRestrictions(alice, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Access denied")

	// Mutations persisted; a fresh manager over the same store sees them.
	reloaded, err := policy.NewManager(storage.NewFileStore(f.dataDir), checker)
	require.NoError(t, err)
	assert.False(t, reloaded.Allowed("system.contexts", credentials.KindSecretText))
	assert.True(t, reloaded.Allowed("system.contexts", credentials.KindUsernamePassword))

	registry2 := credentials.NewRegistry(f.kinds, credentials.WithPolicy(reloaded))
	require.NoError(t, registry2.Register(providers.NewContextProvider(storage.NewFileStore(f.dataDir), f.kinds, f.codec)))
	creds := registry2.Lookup(credentials.KindUsernamePassword, folder, admin)
	require.Len(t, creds, 1)
	assert.Equal(t, "up-1", creds[0].ID())
}

// TestRegistryLegacyKindPolicyGate verifies policy sees the requested kind,
// not the legacy source kind, when widening a lookup.
func TestRegistryLegacyKindPolicyGate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	manager, err := policy.NewManager(nil, permissions.NewChecker(nil))
	require.NoError(t, err)
	registry := credentials.NewRegistry(f.kinds, credentials.WithPolicy(manager))
	require.NoError(t, registry.Register(f.contexts))

	folder := credentials.Item(credentials.System(), "team-a")
	store, ok := f.contexts.StoreFor(folder)
	require.True(t, ok)
	token, err := f.codec.ProtectString("tok")
	require.NoError(t, err)
	_, err = store.AddCredentials(admin, domains.Global(),
		credentials.NewLegacyToken("old", credentials.ScopeGlobal, "", token))
	require.NoError(t, err)

	_, err = manager.SetKindFilter(admin, policy.ExcludeKinds(credentials.KindLegacyToken))
	require.NoError(t, err)

	widened := registry.Lookup(credentials.KindSecretText, folder, admin)
	require.Len(t, widened, 1, "a banned legacy kind still answers for its modern kind")
	assert.Equal(t, credentials.KindSecretText, widened[0].Kind())

	assert.Empty(t, registry.Lookup(credentials.KindLegacyToken, folder, admin))
}
