package credentials

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/credops/pkg/secret"
)

func testCodec(t *testing.T) *secret.Codec {
	t.Helper()
	return secret.NewCodec(secret.NewMemoryStore())
}

func mustProtect(t *testing.T, codec *secret.Codec, plaintext string) *secret.Bytes {
	t.Helper()
	b, err := codec.ProtectString(plaintext)
	require.NoError(t, err)
	return b
}

// TestDefaultKindsNaming verifies the display names the built-in name
// sources render for each kind
func TestDefaultKindsNaming(t *testing.T) {
	t.Parallel()

	kinds := DefaultKinds()
	codec := testCodec(t)
	password := mustProtect(t, codec, "hunter2")

	tests := []struct {
		name     string
		cred     Credential
		expected string
	}{
		{
			name:     "username password shows masked pair",
			cred:     NewUsernamePassword("id-1", ScopeGlobal, "", "deployer", password),
			expected: "deployer/******",
		},
		{
			name:     "username password appends description",
			cred:     NewUsernamePassword("id-1", ScopeGlobal, "prod push", "deployer", password),
			expected: "deployer/****** (prod push)",
		},
		{
			name:     "secret text uses description",
			cred:     NewSecretText("id-2", ScopeGlobal, "webhook token", password),
			expected: "webhook token",
		},
		{
			name:     "secret text falls back to id",
			cred:     NewSecretText("id-2", ScopeGlobal, "", password),
			expected: "id-2",
		},
		{
			name:     "ssh key shows username",
			cred:     NewSSHKey("id-3", ScopeSystem, "bastion", "git", password, nil),
			expected: "git (bastion)",
		},
		{
			name:     "secret file shows filename",
			cred:     NewSecretFile("id-4", ScopeGlobal, "", "ca.pem", password),
			expected: "ca.pem",
		},
		{
			name:     "legacy token borrows the secret text source",
			cred:     NewLegacyToken("id-5", ScopeGlobal, "old deploy token", password),
			expected: "old deploy token",
		},
		{
			name:     "legacy token without description uses id",
			cred:     NewLegacyToken("id-6", ScopeGlobal, "", password),
			expected: "id-6",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, kinds.NameOf(tt.cred))
		})
	}
}

// TestNameOfPriority verifies that the highest priority source wins and
// that declaration order breaks exact ties
func TestNameOfPriority(t *testing.T) {
	t.Parallel()

	r := NewKindRegistry()
	require.NoError(t, r.Register(KindSpec{
		Kind: "custom",
		NameSources: []NameSource{
			{Priority: 1, Render: func(Credential) string { return "low" }},
			{Priority: 9, Render: func(Credential) string { return "high" }},
		},
	}))
	cred := &SecretText{Base: NewBase("x", ScopeGlobal, "")}

	// The registry walks sources by declaration, not priority, so the
	// later high-priority source must still win.
	got := r.NameOf(namedAs{cred, "custom"})
	assert.Equal(t, "high", got)

	tie := NewKindRegistry()
	require.NoError(t, tie.Register(KindSpec{
		Kind: "tied",
		NameSources: []NameSource{
			{Priority: 5, Render: func(Credential) string { return "first" }},
			{Priority: 5, Render: func(Credential) string { return "second" }},
		},
	}))
	assert.Equal(t, "first", tie.NameOf(namedAs{cred, "tied"}))
}

// namedAs overrides a credential's kind so registry tests can use
// synthetic kinds without declaring new credential types
type namedAs struct {
	Credential
	kind Kind
}

func (n namedAs) Kind() Kind { return n.kind }

// TestNameOfFallbackChain verifies that fallback kinds contribute sources
// and that a strictly greater fallback priority beats the kind's own
func TestNameOfFallbackChain(t *testing.T) {
	t.Parallel()

	r := NewKindRegistry()
	require.NoError(t, r.Register(KindSpec{
		Kind:        "modern",
		NameSources: []NameSource{{Priority: 10, Render: func(Credential) string { return "from modern" }}},
	}))
	require.NoError(t, r.Register(KindSpec{
		Kind:        "old",
		Fallbacks:   []Kind{"modern"},
		NameSources: []NameSource{{Priority: 5, Render: func(Credential) string { return "from old" }}},
	}))
	require.NoError(t, r.Register(KindSpec{
		Kind:        "proud",
		Fallbacks:   []Kind{"modern"},
		NameSources: []NameSource{{Priority: 10, Render: func(Credential) string { return "own source" }}},
	}))

	cred := &SecretText{Base: NewBase("x", ScopeGlobal, "")}

	assert.Equal(t, "from modern", r.NameOf(namedAs{cred, "old"}),
		"fallback source with higher priority should win")
	assert.Equal(t, "own source", r.NameOf(namedAs{cred, "proud"}),
		"own source discovered first should keep an exact tie")
}

// TestNameOfNeverFails verifies the display name and kind string fallbacks
// when sources panic, render nothing, or do not exist
func TestNameOfNeverFails(t *testing.T) {
	t.Parallel()

	r := NewKindRegistry()
	require.NoError(t, r.Register(KindSpec{
		Kind:        "panicky",
		DisplayName: "Panicky kind",
		NameSources: []NameSource{{Priority: 1, Render: func(Credential) string { panic("boom") }}},
	}))
	require.NoError(t, r.Register(KindSpec{
		Kind:        "empty-render",
		NameSources: []NameSource{{Priority: 1, Render: func(Credential) string { return "" }}},
	}))
	require.NoError(t, r.Register(KindSpec{
		Kind: "cyclic-a", Fallbacks: []Kind{"cyclic-b"},
	}))
	require.NoError(t, r.Register(KindSpec{
		Kind: "cyclic-b", Fallbacks: []Kind{"cyclic-a"},
	}))

	cred := &SecretText{Base: NewBase("x", ScopeGlobal, "")}

	assert.Equal(t, "Panicky kind", r.NameOf(namedAs{cred, "panicky"}),
		"panicking source should fall back to the display name")
	assert.Equal(t, "empty-render", r.NameOf(namedAs{cred, "empty-render"}),
		"empty render should fall back to the kind string")
	assert.Equal(t, "unregistered", r.NameOf(namedAs{cred, "unregistered"}))
	assert.Equal(t, "", r.NameOf(nil))
	assert.Equal(t, "cyclic-a", r.NameOf(namedAs{cred, "cyclic-a"}),
		"fallback cycles should terminate")
}

// TestKindRegistryRegisterValidation verifies the registration error cases
func TestKindRegistryRegisterValidation(t *testing.T) {
	t.Parallel()

	r := NewKindRegistry()
	require.Error(t, r.Register(KindSpec{Kind: ""}))

	require.NoError(t, r.Register(KindSpec{Kind: "once"}))
	err := r.Register(KindSpec{Kind: "once"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registered twice")

	assert.True(t, r.Known("once"))
	assert.False(t, r.Known("never-registered"))
}

// TestRegisterResolverRejectsChains verifies that resolver registration
// fails fast on chains, duplicates, and unknown kinds
func TestRegisterResolverRejectsChains(t *testing.T) {
	t.Parallel()

	identity := func(c Credential) Credential { return c }

	r := NewKindRegistry()
	for _, k := range []Kind{"a", "b", "c"} {
		require.NoError(t, r.Register(KindSpec{Kind: k}))
	}
	require.NoError(t, r.RegisterResolver("a", "b", identity))

	tests := []struct {
		name    string
		from    Kind
		to      Kind
		wantErr string
	}{
		{"self resolution", "c", "c", "to itself"},
		{"unregistered source", "ghost", "b", "not registered"},
		{"unregistered target", "c", "ghost", "not registered"},
		{"duplicate source", "a", "c", "already has a resolver"},
		{"source is a target", "b", "c", "already a resolver target"},
		{"target is a source", "c", "a", "itself a resolver source"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.RegisterResolver(tt.from, tt.to, identity)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	require.Error(t, r.RegisterResolver("", "b", identity))
	require.Error(t, r.RegisterResolver("c", "b", nil))
}

// TestResolveLegacyToken verifies the built-in legacy token adapter
func TestResolveLegacyToken(t *testing.T) {
	t.Parallel()

	kinds := DefaultKinds()
	codec := testCodec(t)
	token := mustProtect(t, codec, "tok-123")

	legacy := NewLegacyToken("legacy-1", ScopeGlobal, "ci token", token)
	resolved := kinds.Resolve(legacy)

	text, ok := resolved.(*SecretText)
	require.True(t, ok, "legacy token should resolve to secret text, got %T", resolved)
	assert.Equal(t, "legacy-1", text.ID())
	assert.Equal(t, ScopeGlobal, text.Scope())
	assert.Equal(t, "ci token", text.Description())
	assert.True(t, token.SameSecret(text.Secret()))

	// Non-legacy kinds pass through untouched.
	plain := NewSecretText("plain-1", ScopeGlobal, "", token)
	assert.Same(t, Credential(plain), kinds.Resolve(plain))
	assert.Nil(t, kinds.Resolve(nil))

	all := kinds.ResolveAll([]Credential{legacy, nil, plain})
	require.Len(t, all, 2)
	assert.IsType(t, &SecretText{}, all[0])
}

// TestResolutionSources verifies the reverse resolver index used to widen
// lookups
func TestResolutionSources(t *testing.T) {
	t.Parallel()

	kinds := DefaultKinds()

	assert.Equal(t, []Kind{KindLegacyToken}, kinds.ResolutionSources(KindSecretText))
	assert.Empty(t, kinds.ResolutionSources(KindSSHKey))
	assert.Empty(t, kinds.ResolutionSources(KindLegacyToken))
}

// TestEncodeDecodeRoundTrip verifies that every built-in kind survives the
// record codec with secrets sealed in envelope form
func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	kinds := DefaultKinds()
	codec := testCodec(t)

	password := mustProtect(t, codec, "hunter2")
	contents := mustProtect(t, codec, "-----BEGIN KEY-----")

	tests := []struct {
		name string
		cred Credential
	}{
		{"username password", NewUsernamePassword("c1", ScopeGlobal, "push", "deployer", password)},
		{"secret text", NewSecretText("c2", ScopeSystem, "token", password)},
		{"ssh key with passphrase", NewSSHKey("c3", ScopeGlobal, "", "git", contents, password)},
		{"ssh key without passphrase", NewSSHKey("c4", ScopeGlobal, "", "git", contents, nil)},
		{"certificate", NewCertificate("c5", ScopeUser, "client cert", contents, password)},
		{"secret file", NewSecretFile("c6", ScopeGlobal, "", "ca.pem", contents)},
		{"legacy token", NewLegacyToken("c7", ScopeGlobal, "old", password)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := kinds.Encode(tt.cred, codec)
			require.NoError(t, err)
			assert.Equal(t, tt.cred.Kind(), rec.Kind)
			assert.Equal(t, tt.cred.ID(), rec.ID)
			assert.Equal(t, tt.cred.Scope(), rec.Scope)

			for key, value := range rec.Data {
				if key == "username" || key == "filename" {
					continue
				}
				assert.True(t, value == "" || secret.IsEnvelope(value),
					"data[%q] should be sealed, got %q", key, value)
			}

			decoded, err := kinds.Decode(rec, codec)
			require.NoError(t, err)
			assert.True(t, Same(tt.cred, decoded), "decoded credential differs")
		})
	}
}

// TestSSHKeyPassphraseOmitted verifies that an absent passphrase stays
// absent instead of becoming an empty secret
func TestSSHKeyPassphraseOmitted(t *testing.T) {
	t.Parallel()

	kinds := DefaultKinds()
	codec := testCodec(t)
	key := mustProtect(t, codec, "-----BEGIN KEY-----")

	rec, err := kinds.Encode(NewSSHKey("k1", ScopeGlobal, "", "git", key, nil), codec)
	require.NoError(t, err)
	_, present := rec.Data["passphrase"]
	assert.False(t, present, "nil passphrase should not be persisted")

	decoded, err := kinds.Decode(rec, codec)
	require.NoError(t, err)
	assert.Nil(t, decoded.(*SSHKey).Passphrase())
}

// TestDecodeValidation verifies decode failures for unknown kinds and
// invalid scopes
func TestDecodeValidation(t *testing.T) {
	t.Parallel()

	kinds := DefaultKinds()
	codec := testCodec(t)

	_, err := kinds.Decode(Record{Kind: "martian", Scope: ScopeGlobal}, codec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "martian")

	_, err = kinds.Decode(Record{Kind: KindSecretText, Scope: "EVERYWHERE"}, codec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scope")

	_, err = kinds.Encode(namedAs{&SecretText{Base: NewBase("x", ScopeGlobal, "")}, "martian"}, codec)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "no persistence codec"))
}
