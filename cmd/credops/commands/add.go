package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/systmms/credops/internal/config"
	"github.com/systmms/credops/internal/errors"
	"github.com/systmms/credops/pkg/credentials"
	"github.com/systmms/credops/pkg/domains"
	"github.com/systmms/credops/pkg/secret"
)

func NewAddCommand(cfg *config.Config) *cobra.Command {
	var (
		contextPath string
		userID      string
		domainName  string
		kindName    string
		id          string
		description string
		scopeName   string
		value       string
		username    string
		password    string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a credential to a store",
		Long: `Add a credential to a context's store, encrypted under the master key.

The secret value is encrypted before it touches disk. Without --id a
random identifier is generated. Adding a credential that already exists
in the domain changes nothing.

Examples:
  # A shared token at the root
  credops add --kind secret_text --id ci-token --value "hunter2"

  # A login inside a nested context
  credops add --context system/team-a --kind username_password \
    --id deploy --username deploy --password "s3cret"

  # A personal token, shelved in a domain
  credops add --user alice --domain git --kind secret_text --value "tok"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if contextPath != "" && userID != "" {
				return errors.UserError{
					Message:    "Choose either --context or --user, not both",
					Suggestion: "Use --user to add into a personal store, --context for shared ones",
				}
			}

			platform, err := newPlatform(cfg)
			if err != nil {
				return err
			}

			scope := credentials.ScopeGlobal
			if scopeName != "" {
				scope, err = credentials.ParseScope(scopeName)
				if err != nil {
					return err
				}
			}
			if id == "" {
				id = credentials.NewID()
			}

			ctx := credentials.ParsePath(contextPath)
			as := operator()
			if userID != "" {
				ctx = credentials.ForUser(credentials.Principal{ID: userID})
				as = credentials.Principal{ID: userID, Admin: true}
				scope = credentials.ScopeUser
			}

			cred, err := buildCredential(platform.codec, credentials.Kind(kindName), id, scope, description, buildInputs{
				value:    value,
				username: username,
				password: password,
			})
			if err != nil {
				return err
			}

			store, err := storeAt(platform, ctx)
			if err != nil {
				return err
			}

			domain := domains.Global()
			if domainName != "" {
				found, ok := store.DomainByName(domainName)
				if !ok {
					return errors.ConfigError{
						Field:      "domain",
						Value:      domainName,
						Message:    "domain not found in this store",
						Suggestion: fmt.Sprintf("Create it first: credops domains add --context %s --name %s", credentials.Path(ctx), domainName),
					}
				}
				domain = found
			}

			changed, err := store.AddCredentials(as, domain, cred)
			if err != nil {
				return err
			}
			if !changed {
				fmt.Fprintln(cmd.OutOrStdout(), "Unchanged: an equivalent credential already exists")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s) to %s\n", id, kindName, credentials.Path(ctx))
			return nil
		},
	}

	cmd.Flags().StringVar(&contextPath, "context", "", "Context path, e.g. system/team-a")
	cmd.Flags().StringVar(&userID, "user", "", "Add into the user's personal store instead")
	cmd.Flags().StringVar(&domainName, "domain", "", "Shelve into this domain instead of the global one")
	cmd.Flags().StringVar(&kindName, "kind", "", "Credential kind (required)")
	cmd.Flags().StringVar(&id, "id", "", "Credential identifier (generated when empty)")
	cmd.Flags().StringVar(&description, "description", "", "Human description")
	cmd.Flags().StringVar(&scopeName, "scope", "", "Scope: SYSTEM, GLOBAL, or USER (default GLOBAL)")
	cmd.Flags().StringVar(&value, "value", "", "Secret value for secret_text")
	cmd.Flags().StringVar(&username, "username", "", "Username for username_password")
	cmd.Flags().StringVar(&password, "password", "", "Password for username_password")

	_ = cmd.MarkFlagRequired("kind")

	return cmd
}

type buildInputs struct {
	value    string
	username string
	password string
}

// buildCredential constructs the credential kinds the CLI can express
// through flags.
func buildCredential(codec *secret.Codec, kind credentials.Kind, id string, scope credentials.Scope, description string, in buildInputs) (credentials.Credential, error) {
	switch kind {
	case credentials.KindSecretText:
		if in.value == "" {
			return nil, errors.UserError{
				Message:    "secret_text needs a value",
				Suggestion: "Pass the secret with --value",
			}
		}
		protected, err := codec.ProtectString(in.value)
		if err != nil {
			return nil, err
		}
		return credentials.NewSecretText(id, scope, description, protected), nil
	case credentials.KindUsernamePassword:
		if in.username == "" || in.password == "" {
			return nil, errors.UserError{
				Message:    "username_password needs both --username and --password",
				Suggestion: "Pass both flags",
			}
		}
		protected, err := codec.ProtectString(in.password)
		if err != nil {
			return nil, err
		}
		return credentials.NewUsernamePassword(id, scope, description, in.username, protected), nil
	}
	return nil, errors.ConfigError{
		Field:      "kind",
		Value:      string(kind),
		Message:    "kind cannot be created from the command line",
		Suggestion: "The CLI supports secret_text and username_password; use the library for other kinds",
	}
}

// storeAt finds the store responsible for the context, asking the personal
// provider for user contexts and the context provider otherwise.
func storeAt(p *platform, ctx credentials.Context) (credentials.Store, error) {
	if credentials.ContextOwner(ctx) != "" {
		if store, ok := p.users.StoreFor(ctx); ok {
			return store, nil
		}
	} else if store, ok := p.contexts.StoreFor(ctx); ok {
		return store, nil
	}
	return nil, errors.UserError{
		Message:    fmt.Sprintf("No store available for context %s", credentials.Path(ctx)),
		Suggestion: "Check the context path",
	}
}
