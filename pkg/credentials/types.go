package credentials

import (
	"fmt"
	"os"

	"github.com/systmms/credops/internal/errors"
	"github.com/systmms/credops/pkg/secret"
)

// UsernamePassword is a username and password pair.
type UsernamePassword struct {
	Base
	username string
	password *secret.Bytes
}

// NewUsernamePassword creates a username/password credential.
func NewUsernamePassword(id string, scope Scope, description, username string, password *secret.Bytes) *UsernamePassword {
	return &UsernamePassword{
		Base:     NewBase(id, scope, description),
		username: username,
		password: password,
	}
}

func (c *UsernamePassword) Kind() Kind { return KindUsernamePassword }

func (c *UsernamePassword) Username() string { return c.username }

func (c *UsernamePassword) Password() *secret.Bytes { return c.password }

func (c *UsernamePassword) Same(other Credential) bool {
	o, ok := other.(*UsernamePassword)
	if !ok {
		return false
	}
	return c.sameBase(o) && c.username == o.username && c.password.SameSecret(o.password)
}

// SecretText is a single opaque secret string, such as an API token.
type SecretText struct {
	Base
	secret *secret.Bytes
}

// NewSecretText creates a secret text credential.
func NewSecretText(id string, scope Scope, description string, value *secret.Bytes) *SecretText {
	return &SecretText{
		Base:   NewBase(id, scope, description),
		secret: value,
	}
}

func (c *SecretText) Kind() Kind { return KindSecretText }

func (c *SecretText) Secret() *secret.Bytes { return c.secret }

func (c *SecretText) Same(other Credential) bool {
	o, ok := other.(*SecretText)
	if !ok {
		return false
	}
	return c.sameBase(o) && c.secret.SameSecret(o.secret)
}

// SSHKey is a username with a private key and an optional passphrase.
type SSHKey struct {
	Base
	username   string
	privateKey *secret.Bytes
	passphrase *secret.Bytes
}

// NewSSHKey creates an SSH key credential. A nil passphrase means the key
// is unencrypted.
func NewSSHKey(id string, scope Scope, description, username string, privateKey, passphrase *secret.Bytes) *SSHKey {
	return &SSHKey{
		Base:       NewBase(id, scope, description),
		username:   username,
		privateKey: privateKey,
		passphrase: passphrase,
	}
}

func (c *SSHKey) Kind() Kind { return KindSSHKey }

func (c *SSHKey) Username() string { return c.username }

func (c *SSHKey) PrivateKey() *secret.Bytes { return c.privateKey }

// Passphrase returns the key passphrase, or nil for unencrypted keys.
func (c *SSHKey) Passphrase() *secret.Bytes { return c.passphrase }

func (c *SSHKey) Same(other Credential) bool {
	o, ok := other.(*SSHKey)
	if !ok {
		return false
	}
	return c.sameBase(o) && c.username == o.username &&
		c.privateKey.SameSecret(o.privateKey) && c.passphrase.SameSecret(o.passphrase)
}

// Certificate is a client certificate keystore protected by a password.
type Certificate struct {
	Base
	keystore *secret.Bytes
	password *secret.Bytes
}

// NewCertificate creates a certificate credential from keystore bytes.
func NewCertificate(id string, scope Scope, description string, keystore, password *secret.Bytes) *Certificate {
	return &Certificate{
		Base:     NewBase(id, scope, description),
		keystore: keystore,
		password: password,
	}
}

func (c *Certificate) Kind() Kind { return KindCertificate }

func (c *Certificate) Keystore() *secret.Bytes { return c.keystore }

func (c *Certificate) Password() *secret.Bytes { return c.password }

func (c *Certificate) Same(other Credential) bool {
	o, ok := other.(*Certificate)
	if !ok {
		return false
	}
	return c.sameBase(o) && c.keystore.SameSecret(o.keystore) && c.password.SameSecret(o.password)
}

// SecretFile is a named file whose content is the secret. A self-contained
// file carries its content in the credential; an external one reads it from
// a path on demand, so the content can disappear between accesses.
type SecretFile struct {
	Base
	filename string
	path     string
	content  *secret.Bytes
}

// NewSecretFile creates a self-contained secret file credential.
func NewSecretFile(id string, scope Scope, description, filename string, content *secret.Bytes) *SecretFile {
	return &SecretFile{
		Base:     NewBase(id, scope, description),
		filename: filename,
		content:  content,
	}
}

// NewExternalSecretFile creates a secret file credential that reads its
// content from path on each access.
func NewExternalSecretFile(id string, scope Scope, description, filename, path string) *SecretFile {
	return &SecretFile{
		Base:     NewBase(id, scope, description),
		filename: filename,
		path:     path,
	}
}

func (c *SecretFile) Kind() Kind { return KindSecretFile }

func (c *SecretFile) Filename() string { return c.filename }

// SelfContained reports whether the content travels with the credential.
func (c *SecretFile) SelfContained() bool { return c.content != nil }

// Content returns the file content. For an external file whose backing
// path has gone away this fails with an UnavailablePropertyError rather
// than a bare filesystem error, so callers can tell a missing property from
// a broken store.
func (c *SecretFile) Content() ([]byte, error) {
	if c.content != nil {
		return c.content.Plain()
	}
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, errors.UnavailablePropertyError{
			Property: "content",
			Kind:     string(KindSecretFile),
			Err:      err,
		}
	}
	return data, nil
}

func (c *SecretFile) Same(other Credential) bool {
	o, ok := other.(*SecretFile)
	if !ok {
		return false
	}
	if !c.sameBase(o) || c.filename != o.filename {
		return false
	}
	if c.SelfContained() != o.SelfContained() {
		return false
	}
	if c.SelfContained() {
		return c.content.SameSecret(o.content)
	}
	return c.path == o.path
}

// LegacyToken is the retired token credential. It persists and loads like
// any other kind but resolves to SecretText wherever modern-token lookups
// run, so old records keep working without migration.
type LegacyToken struct {
	Base
	token *secret.Bytes
}

// NewLegacyToken creates a legacy token credential.
func NewLegacyToken(id string, scope Scope, description string, token *secret.Bytes) *LegacyToken {
	return &LegacyToken{
		Base:  NewBase(id, scope, description),
		token: token,
	}
}

func (c *LegacyToken) Kind() Kind { return KindLegacyToken }

func (c *LegacyToken) Token() *secret.Bytes { return c.token }

func (c *LegacyToken) Same(other Credential) bool {
	o, ok := other.(*LegacyToken)
	if !ok {
		return false
	}
	return c.sameBase(o) && c.token.SameSecret(o.token)
}

// Interface conformance for the concrete kinds.
var (
	_ UsernameCredential = (*UsernamePassword)(nil)
	_ UsernameCredential = (*SSHKey)(nil)
	_ Comparable         = (*UsernamePassword)(nil)
	_ Comparable         = (*SecretText)(nil)
	_ Comparable         = (*SSHKey)(nil)
	_ Comparable         = (*Certificate)(nil)
	_ Comparable         = (*SecretFile)(nil)
	_ Comparable         = (*LegacyToken)(nil)
)

// DefaultKinds returns a registry with the built-in kinds, the legacy
// token resolver, and the secret file snapshot taker already registered.
func DefaultKinds() *KindRegistry {
	r := NewKindRegistry()

	mustRegister(r, KindSpec{
		Kind:        KindUsernamePassword,
		DisplayName: "Username with password",
		NameSources: []NameSource{{Priority: 16, Render: usernamePasswordName}},
		Encode:      encodeUsernamePassword,
		Decode:      decodeUsernamePassword,
	})
	mustRegister(r, KindSpec{
		Kind:        KindSecretText,
		DisplayName: "Secret text",
		NameSources: []NameSource{{Priority: 8, Render: descriptionOrID}},
		Encode:      encodeSecretText,
		Decode:      decodeSecretText,
	})
	mustRegister(r, KindSpec{
		Kind:        KindSSHKey,
		DisplayName: "SSH username with private key",
		NameSources: []NameSource{{Priority: 16, Render: sshKeyName}},
		Encode:      encodeSSHKey,
		Decode:      decodeSSHKey,
	})
	mustRegister(r, KindSpec{
		Kind:        KindCertificate,
		DisplayName: "Certificate",
		NameSources: []NameSource{{Priority: 8, Render: descriptionOrID}},
		Encode:      encodeCertificate,
		Decode:      decodeCertificate,
	})
	mustRegister(r, KindSpec{
		Kind:        KindSecretFile,
		DisplayName: "Secret file",
		NameSources: []NameSource{{Priority: 8, Render: secretFileName}},
		Encode:      encodeSecretFile,
		Decode:      decodeSecretFile,
	})
	mustRegister(r, KindSpec{
		Kind:        KindLegacyToken,
		DisplayName: "Legacy token",
		Fallbacks:   []Kind{KindSecretText},
		Encode:      encodeLegacyToken,
		Decode:      decodeLegacyToken,
	})

	if err := r.RegisterResolver(KindLegacyToken, KindSecretText, resolveLegacyToken); err != nil {
		panic(err)
	}
	if err := r.RegisterSnapshotTaker(KindSecretFile, SnapshotFunc(snapshotSecretFile)); err != nil {
		panic(err)
	}
	return r
}

func mustRegister(r *KindRegistry, spec KindSpec) {
	if err := r.Register(spec); err != nil {
		panic(err)
	}
}

func usernamePasswordName(c Credential) string {
	up, ok := c.(*UsernamePassword)
	if !ok {
		return ""
	}
	name := up.Username() + "/******"
	if d := up.Description(); d != "" {
		name += " (" + d + ")"
	}
	return name
}

func sshKeyName(c Credential) string {
	key, ok := c.(*SSHKey)
	if !ok {
		return ""
	}
	name := key.Username()
	if d := key.Description(); d != "" {
		name += " (" + d + ")"
	}
	return name
}

func secretFileName(c Credential) string {
	f, ok := c.(*SecretFile)
	if !ok {
		return ""
	}
	name := f.Filename()
	if d := f.Description(); d != "" {
		name += " (" + d + ")"
	}
	return name
}

func descriptionOrID(c Credential) string {
	if d := c.Description(); d != "" {
		return d
	}
	return c.ID()
}

func resolveLegacyToken(c Credential) Credential {
	tok, ok := c.(*LegacyToken)
	if !ok {
		return c
	}
	return NewSecretText(tok.ID(), tok.Scope(), tok.Description(), tok.Token())
}

// snapshotSecretFile inlines an external file's current content. Already
// self-contained files pass through.
func snapshotSecretFile(c Credential, codec *secret.Codec) (Credential, error) {
	f, ok := c.(*SecretFile)
	if !ok || f.SelfContained() {
		return c, nil
	}
	data, err := f.Content()
	if err != nil {
		return nil, err
	}
	content, err := codec.Protect(data)
	if err != nil {
		return nil, err
	}
	return NewSecretFile(f.ID(), f.Scope(), f.Description(), f.Filename(), content), nil
}

func encodeSecretValue(codec *secret.Codec, value *secret.Bytes) (string, error) {
	if value == nil {
		return "", nil
	}
	plain, err := value.Plain()
	if err != nil {
		return "", err
	}
	protected, err := codec.Protect(plain)
	if err != nil {
		return "", err
	}
	return protected.Text(), nil
}

func decodeSecretValue(codec *secret.Codec, text string) (*secret.Bytes, error) {
	if text == "" {
		return nil, nil
	}
	return codec.FromText(text)
}

func encodeUsernamePassword(c Credential, codec *secret.Codec) (map[string]string, error) {
	up, ok := c.(*UsernamePassword)
	if !ok {
		return nil, fmt.Errorf("expected *UsernamePassword, got %T", c)
	}
	password, err := encodeSecretValue(codec, up.password)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"username": up.username,
		"password": password,
	}, nil
}

func decodeUsernamePassword(base Base, data map[string]string, codec *secret.Codec) (Credential, error) {
	password, err := decodeSecretValue(codec, data["password"])
	if err != nil {
		return nil, err
	}
	return &UsernamePassword{
		Base:     base,
		username: data["username"],
		password: password,
	}, nil
}

func encodeSecretText(c Credential, codec *secret.Codec) (map[string]string, error) {
	st, ok := c.(*SecretText)
	if !ok {
		return nil, fmt.Errorf("expected *SecretText, got %T", c)
	}
	value, err := encodeSecretValue(codec, st.secret)
	if err != nil {
		return nil, err
	}
	return map[string]string{"secret": value}, nil
}

func decodeSecretText(base Base, data map[string]string, codec *secret.Codec) (Credential, error) {
	value, err := decodeSecretValue(codec, data["secret"])
	if err != nil {
		return nil, err
	}
	return &SecretText{
		Base:   base,
		secret: value,
	}, nil
}

func encodeSSHKey(c Credential, codec *secret.Codec) (map[string]string, error) {
	key, ok := c.(*SSHKey)
	if !ok {
		return nil, fmt.Errorf("expected *SSHKey, got %T", c)
	}
	privateKey, err := encodeSecretValue(codec, key.privateKey)
	if err != nil {
		return nil, err
	}
	data := map[string]string{
		"username":    key.username,
		"private_key": privateKey,
	}
	if key.passphrase != nil {
		passphrase, err := encodeSecretValue(codec, key.passphrase)
		if err != nil {
			return nil, err
		}
		data["passphrase"] = passphrase
	}
	return data, nil
}

func decodeSSHKey(base Base, data map[string]string, codec *secret.Codec) (Credential, error) {
	privateKey, err := decodeSecretValue(codec, data["private_key"])
	if err != nil {
		return nil, err
	}
	passphrase, err := decodeSecretValue(codec, data["passphrase"])
	if err != nil {
		return nil, err
	}
	return &SSHKey{
		Base:       base,
		username:   data["username"],
		privateKey: privateKey,
		passphrase: passphrase,
	}, nil
}

func encodeCertificate(c Credential, codec *secret.Codec) (map[string]string, error) {
	cert, ok := c.(*Certificate)
	if !ok {
		return nil, fmt.Errorf("expected *Certificate, got %T", c)
	}
	keystore, err := encodeSecretValue(codec, cert.keystore)
	if err != nil {
		return nil, err
	}
	password, err := encodeSecretValue(codec, cert.password)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"keystore": keystore,
		"password": password,
	}, nil
}

func decodeCertificate(base Base, data map[string]string, codec *secret.Codec) (Credential, error) {
	keystore, err := decodeSecretValue(codec, data["keystore"])
	if err != nil {
		return nil, err
	}
	password, err := decodeSecretValue(codec, data["password"])
	if err != nil {
		return nil, err
	}
	return &Certificate{
		Base:     base,
		keystore: keystore,
		password: password,
	}, nil
}

// encodeSecretFile snapshots external files on save so the record never
// depends on a path outside the store.
func encodeSecretFile(c Credential, codec *secret.Codec) (map[string]string, error) {
	f, ok := c.(*SecretFile)
	if !ok {
		return nil, fmt.Errorf("expected *SecretFile, got %T", c)
	}
	if !f.SelfContained() {
		snapped, err := snapshotSecretFile(f, codec)
		if err != nil {
			return nil, err
		}
		f = snapped.(*SecretFile)
	}
	content, err := encodeSecretValue(codec, f.content)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"filename": f.filename,
		"content":  content,
	}, nil
}

func decodeSecretFile(base Base, data map[string]string, codec *secret.Codec) (Credential, error) {
	content, err := decodeSecretValue(codec, data["content"])
	if err != nil {
		return nil, err
	}
	return &SecretFile{
		Base:     base,
		filename: data["filename"],
		content:  content,
	}, nil
}

func encodeLegacyToken(c Credential, codec *secret.Codec) (map[string]string, error) {
	tok, ok := c.(*LegacyToken)
	if !ok {
		return nil, fmt.Errorf("expected *LegacyToken, got %T", c)
	}
	token, err := encodeSecretValue(codec, tok.token)
	if err != nil {
		return nil, err
	}
	return map[string]string{"token": token}, nil
}

func decodeLegacyToken(base Base, data map[string]string, codec *secret.Codec) (Credential, error) {
	token, err := decodeSecretValue(codec, data["token"])
	if err != nil {
		return nil, err
	}
	return &LegacyToken{
		Base:  base,
		token: token,
	}, nil
}
