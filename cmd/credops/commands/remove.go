package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/systmms/credops/internal/config"
	"github.com/systmms/credops/internal/errors"
	"github.com/systmms/credops/pkg/credentials"
	"github.com/systmms/credops/pkg/domains"
)

func NewRemoveCommand(cfg *config.Config) *cobra.Command {
	var (
		contextPath string
		userID      string
		domainName  string
		id          string
	)

	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Remove a credential from a store",
		Long: `Remove a credential, identified by its id, from a context's store.

Examples:
  # Remove from the root store
  credops remove --id ci-token

  # Remove from a domain in a nested context
  credops remove --context system/team-a --domain production --id deploy

  # Remove from a personal store
  credops remove --user alice --id old-token`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if contextPath != "" && userID != "" {
				return errors.UserError{
					Message:    "Choose either --context or --user, not both",
					Suggestion: "Use --user for a personal store, --context for shared ones",
				}
			}

			platform, err := newPlatform(cfg)
			if err != nil {
				return err
			}

			ctx := credentials.ParsePath(contextPath)
			as := operator()
			if userID != "" {
				ctx = credentials.ForUser(credentials.Principal{ID: userID})
				as = credentials.Principal{ID: userID, Admin: true}
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
						Suggestion: fmt.Sprintf("Use 'credops domains list --context %s' to see the store's domains", credentials.Path(ctx)),
					}
				}
				domain = found
			}

			target, ok := credentials.First(store.Credentials(domain), credentials.WithID(id))
			if !ok {
				return errors.UserError{
					Message:    fmt.Sprintf("No credential with id '%s' in %s", id, credentials.Path(ctx)),
					Suggestion: "Use 'credops list' to see what is stored",
				}
			}
			if _, err := store.RemoveCredentials(as, domain, target); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from %s\n", id, credentials.Path(ctx))
			return nil
		},
	}

	cmd.Flags().StringVar(&contextPath, "context", "", "Context path, e.g. system/team-a")
	cmd.Flags().StringVar(&userID, "user", "", "Remove from the user's personal store instead")
	cmd.Flags().StringVar(&domainName, "domain", "", "Domain holding the credential (default global)")
	cmd.Flags().StringVar(&id, "id", "", "Credential identifier (required)")

	_ = cmd.MarkFlagRequired("id")

	return cmd
}
