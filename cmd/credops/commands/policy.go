package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/systmms/credops/internal/config"
	"github.com/systmms/credops/internal/errors"
	"github.com/systmms/credops/pkg/credentials"
	"github.com/systmms/credops/pkg/policy"
)

// NewPolicyCommand creates the parent 'policy' command
func NewPolicyCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Show and change the credential policy",
		Long: `Inspect and change the persisted credential policy: which providers
serve, which kinds exist, and which provider/kind pairs are restricted.

Policy changes apply immediately and persist to the data directory.

Examples:
  credops policy show
  credops policy set-provider-filter --mode excludes --names system.users
  credops policy set-kind-filter --mode includes --kinds secret_text,username_password`,
	}

	// Add subcommands
	cmd.AddCommand(
		NewPolicyShowCommand(cfg),
		NewPolicySetProviderFilterCommand(cfg),
		NewPolicySetKindFilterCommand(cfg),
	)

	return cmd
}

func NewPolicyShowCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the current policy",
		RunE: func(cmd *cobra.Command, args []string) error {
			platform, err := newPlatform(cfg)
			if err != nil {
				return err
			}

			rec := platform.policy.Snapshot()
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "Provider filter: %s", rec.ProviderFilter.Mode)
			if len(rec.ProviderFilter.Names) > 0 {
				fmt.Fprintf(out, " %v", rec.ProviderFilter.Names)
			}
			fmt.Fprintln(out)

			fmt.Fprintf(out, "Kind filter:     %s", rec.KindFilter.Mode)
			if len(rec.KindFilter.Kinds) > 0 {
				fmt.Fprintf(out, " %v", rec.KindFilter.Kinds)
			}
			fmt.Fprintln(out)

			if len(rec.Restrictions) == 0 {
				fmt.Fprintln(out, "Restrictions:    none")
				return nil
			}
			fmt.Fprintln(out, "Restrictions:")
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintf(w, "  KIND\tPROVIDER\tCREDENTIAL KIND\n")
			for _, r := range rec.Restrictions {
				_, _ = fmt.Fprintf(w, "  %s\t%s\t%s\n", r.Kind, r.Provider, r.CredentialKind)
			}
			return w.Flush()
		},
	}
}

func NewPolicySetProviderFilterCommand(cfg *config.Config) *cobra.Command {
	var (
		mode  string
		names []string
	)

	cmd := &cobra.Command{
		Use:   "set-provider-filter",
		Short: "Replace the provider filter",
		Long: `Replace the policy's provider filter.

Examples:
  # Allow every provider
  credops policy set-provider-filter --mode all

  # Only the context provider
  credops policy set-provider-filter --mode includes --names system.contexts

  # Everything except personal stores
  credops policy set-provider-filter --mode excludes --names system.users`,
		RunE: func(cmd *cobra.Command, args []string) error {
			platform, err := newPlatform(cfg)
			if err != nil {
				return err
			}

			filter := policy.ProviderFilter{Mode: policy.FilterMode(mode), Names: names}
			changed, err := platform.policy.SetProviderFilter(operator(), filter)
			if err != nil {
				return err
			}
			reportPolicyChange(cmd, platform, changed)
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", string(policy.FilterAll), "Filter mode: all, includes, or excludes")
	cmd.Flags().StringSliceVar(&names, "names", nil, "Provider names the mode applies to")

	return cmd
}

func NewPolicySetKindFilterCommand(cfg *config.Config) *cobra.Command {
	var (
		mode  string
		kinds []string
	)

	cmd := &cobra.Command{
		Use:   "set-kind-filter",
		Short: "Replace the kind filter",
		Long: `Replace the policy's credential kind filter.

Examples:
  # Allow every kind
  credops policy set-kind-filter --mode all

  # Ban legacy tokens
  credops policy set-kind-filter --mode excludes --kinds legacy_token`,
		RunE: func(cmd *cobra.Command, args []string) error {
			platform, err := newPlatform(cfg)
			if err != nil {
				return err
			}

			filter := policy.KindFilter{Mode: policy.FilterMode(mode)}
			for _, k := range kinds {
				kind := credentials.Kind(k)
				if !platform.kinds.Known(kind) {
					return errors.ConfigError{
						Field:      "kinds",
						Value:      k,
						Message:    "unknown credential kind",
						Suggestion: fmt.Sprintf("Known kinds: %v", platform.kinds.Kinds()),
					}
				}
				filter.Kinds = append(filter.Kinds, kind)
			}

			changed, err := platform.policy.SetKindFilter(operator(), filter)
			if err != nil {
				return err
			}
			reportPolicyChange(cmd, platform, changed)
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", string(policy.FilterAll), "Filter mode: all, includes, or excludes")
	cmd.Flags().StringSliceVar(&kinds, "kinds", nil, "Credential kinds the mode applies to")

	return cmd
}

func reportPolicyChange(cmd *cobra.Command, p *platform, changed bool) {
	out := cmd.OutOrStdout()
	if !changed {
		fmt.Fprintln(out, "Unchanged: the policy already had this value")
		return
	}
	if p.policy.Dirty() {
		fmt.Fprintln(out, "Policy updated, but persisting it failed; it applies to this process only")
		return
	}
	fmt.Fprintln(out, "Policy updated")
}
