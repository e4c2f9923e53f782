package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/systmms/credops/internal/config"
	"github.com/systmms/credops/internal/errors"
	"github.com/systmms/credops/pkg/credentials"
	"github.com/systmms/credops/pkg/domains"
)

// NewDomainsCommand creates the parent 'domains' command
func NewDomainsCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "domains",
		Short: "Manage a store's credential domains",
		Long: `List and manage the domains credentials are shelved into.

Every store has the global domain, which matches everything and cannot be
removed. Further domains narrow where their credentials apply, for example
to a set of hostnames.

Examples:
  credops domains list --context system/team-a
  credops domains add --context system/team-a --name production --hosts "*.example.com"
  credops domains remove --context system/team-a --name production`,
	}

	// Add subcommands
	cmd.AddCommand(
		NewDomainsListCommand(cfg),
		NewDomainsAddCommand(cfg),
		NewDomainsRemoveCommand(cfg),
	)

	return cmd
}

func NewDomainsListCommand(cfg *config.Config) *cobra.Command {
	var (
		contextPath string
		userID      string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the domains of a context's store",
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
			if userID != "" {
				ctx = credentials.ForUser(credentials.Principal{ID: userID})
			}
			store, err := storeAt(platform, ctx)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintf(w, "NAME\tDESCRIPTION\tCREDENTIALS\n")
			_, _ = fmt.Fprintf(w, "----\t-----------\t-----------\n")
			for _, d := range store.Domains() {
				name := d.Name()
				if d.IsGlobal() {
					name = "(global)"
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\t%d\n", name, d.Description(), len(store.Credentials(d)))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&contextPath, "context", "", "Context path, e.g. system/team-a")
	cmd.Flags().StringVar(&userID, "user", "", "List the user's personal store instead")

	return cmd
}

func NewDomainsAddCommand(cfg *config.Config) *cobra.Command {
	var (
		contextPath  string
		userID       string
		name         string
		description  string
		hosts        []string
		excludeHosts []string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a domain to a context's store",
		Long: `Add a domain to a context's store, optionally with hostname rules.

Hostname rules take glob patterns. Include patterns admit matching hosts;
exclude patterns veto them and win over includes.

Examples:
  # A plain named domain
  credops domains add --context system/team-a --name production

  # Restricted to hosts, with a carve-out
  credops domains add --context system/team-a --name production \
    --hosts "*.example.com" --exclude-hosts "db.example.com"`,
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

			var specs []domains.Specification
			if len(hosts) > 0 || len(excludeHosts) > 0 {
				spec, err := domains.NewHostnameSpecification(hosts, excludeHosts)
				if err != nil {
					return err
				}
				specs = append(specs, spec)
			}

			changed, err := store.AddDomain(as, domains.New(name, description, specs...))
			if err != nil {
				return err
			}
			if !changed {
				fmt.Fprintf(cmd.OutOrStdout(), "Unchanged: domain '%s' already exists\n", name)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added domain '%s' to %s\n", name, credentials.Path(ctx))
			return nil
		},
	}

	cmd.Flags().StringVar(&contextPath, "context", "", "Context path, e.g. system/team-a")
	cmd.Flags().StringVar(&userID, "user", "", "Add to the user's personal store instead")
	cmd.Flags().StringVar(&name, "name", "", "Domain name (required)")
	cmd.Flags().StringVar(&description, "description", "", "Human description")
	cmd.Flags().StringSliceVar(&hosts, "hosts", nil, "Hostname glob patterns the domain includes")
	cmd.Flags().StringSliceVar(&excludeHosts, "exclude-hosts", nil, "Hostname glob patterns the domain excludes")

	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func NewDomainsRemoveCommand(cfg *config.Config) *cobra.Command {
	var (
		contextPath string
		userID      string
		name        string
	)

	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Remove a domain and everything shelved in it",
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

			domain, ok := store.DomainByName(name)
			if !ok {
				return errors.ConfigError{
					Field:      "name",
					Value:      name,
					Message:    "domain not found in this store",
					Suggestion: fmt.Sprintf("Use 'credops domains list --context %s' to see the store's domains", credentials.Path(ctx)),
				}
			}

			changed, err := store.RemoveDomain(as, domain)
			if err != nil {
				return err
			}
			if !changed {
				return errors.UserError{
					Message:    "The global domain cannot be removed",
					Suggestion: "Remove individual credentials with 'credops remove' instead",
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed domain '%s' from %s\n", name, credentials.Path(ctx))
			return nil
		},
	}

	cmd.Flags().StringVar(&contextPath, "context", "", "Context path, e.g. system/team-a")
	cmd.Flags().StringVar(&userID, "user", "", "Remove from the user's personal store instead")
	cmd.Flags().StringVar(&name, "name", "", "Domain name (required)")

	_ = cmd.MarkFlagRequired("name")

	return cmd
}
