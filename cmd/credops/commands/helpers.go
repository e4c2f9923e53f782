package commands

import (
	"io"
	"os"

	"github.com/systmms/credops/internal/config"
	"github.com/systmms/credops/internal/errors"
	"github.com/systmms/credops/internal/keystore"
	"github.com/systmms/credops/internal/permissions"
	"github.com/systmms/credops/internal/providers"
	"github.com/systmms/credops/internal/storage"
	"github.com/systmms/credops/pkg/credentials"
	"github.com/systmms/credops/pkg/policy"
	"github.com/systmms/credops/pkg/secret"
)

// platform is the wired runtime built from one Config: master key storage,
// codec, record storage, kind registry, providers, policy, and the
// provider registry.
type platform struct {
	codec    *secret.Codec
	files    *storage.FileStore
	kinds    *credentials.KindRegistry
	checker  *permissions.Checker
	policy   *policy.Manager
	registry *credentials.Registry
	contexts *providers.ContextProvider
	users    *providers.UserProvider
}

func newPlatform(cfg *config.Config) (*platform, error) {
	keys, err := confidentialStore(cfg)
	if err != nil {
		return nil, err
	}

	var codecOpts []secret.CodecOption
	if cfg.KeyName() != "" {
		codecOpts = append(codecOpts, secret.WithKeyName(cfg.KeyName()))
	}
	codec := secret.NewCodec(keys, codecOpts...)

	files := storage.NewFileStore(cfg.DataDir())
	kinds := credentials.DefaultKinds()
	checker := permissions.NewChecker(cfg.Logger)

	manager, err := policy.NewManager(files, checker, policy.WithLogger(cfg.Logger))
	if err != nil {
		return nil, err
	}

	registry := credentials.NewRegistry(kinds,
		credentials.WithPolicy(manager),
		credentials.WithLogger(cfg.Logger))
	contexts := providers.NewContextProvider(files, kinds, codec,
		providers.WithAuthorizer(checker),
		providers.WithLogger(cfg.Logger))
	users := providers.NewUserProvider(files, kinds, codec,
		providers.WithAuthorizer(checker),
		providers.WithLogger(cfg.Logger))
	if err := registry.Register(contexts); err != nil {
		return nil, err
	}
	if err := registry.Register(users); err != nil {
		return nil, err
	}

	return &platform{
		codec:    codec,
		files:    files,
		kinds:    kinds,
		checker:  checker,
		policy:   manager,
		registry: registry,
		contexts: contexts,
		users:    users,
	}, nil
}

// confidentialStore picks the master key backend named by the config.
func confidentialStore(cfg *config.Config) (secret.ConfidentialStore, error) {
	switch cfg.KeyBackend() {
	case config.BackendFile:
		return keystore.NewFileStore(cfg.DataDir()), nil
	case config.BackendKeyring:
		return keystore.NewKeyringStore(cfg.KeyringService()), nil
	}
	return nil, errors.ConfigError{
		Field:      "key_backend",
		Value:      cfg.KeyBackend(),
		Message:    "unknown master key backend",
		Suggestion: "Use one of: keyring, file",
	}
}

// operator is the acting principal for CLI calls: the local user, with
// administrative rights over their own data directory.
func operator() credentials.Principal {
	name := os.Getenv("USER")
	if name == "" {
		name = "local"
	}
	return credentials.Principal{ID: name, Admin: true}
}

// readInput returns the payload for encrypt and decrypt: the positional
// argument when given, the --in file when set, stdin otherwise.
func readInput(args []string, inFile string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if inFile != "" {
		data, err := os.ReadFile(inFile)
		if err != nil {
			return "", errors.UserError{
				Message:    "Failed to read input file",
				Details:    err.Error(),
				Suggestion: "Check that the --in path exists and is readable",
				Err:        err,
			}
		}
		return string(data), nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", errors.UserError{
			Message:    "Failed to read from stdin",
			Details:    err.Error(),
			Suggestion: "Pass the value as an argument or through --in",
			Err:        err,
		}
	}
	return string(data), nil
}
