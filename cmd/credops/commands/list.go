package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/systmms/credops/internal/config"
	"github.com/systmms/credops/internal/errors"
	"github.com/systmms/credops/pkg/credentials"
)

func NewListCommand(cfg *config.Config) *cobra.Command {
	var (
		contextPath string
		userID      string
		kindName    string
		jsonOutput  bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List credentials visible in a context",
		Long: `List the credentials visible in a context, in provider precedence order.

The listing walks every registered provider and honors scope visibility,
domain policy, and the credential policy. Secret values are never printed;
only metadata and display names appear.

Examples:
  # List everything visible at the root
  credops list

  # List inside a nested context
  credops list --context system/team-a

  # List a user's personal credentials
  credops list --user alice

  # Only one kind
  credops list --kind secret_text`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if contextPath != "" && userID != "" {
				return errors.UserError{
					Message:    "Choose either --context or --user, not both",
					Suggestion: "Use --user to list a personal store, --context for shared ones",
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

			kinds := platform.kinds.Kinds()
			if kindName != "" {
				kind := credentials.Kind(kindName)
				if !platform.kinds.Known(kind) {
					return errors.ConfigError{
						Field:      "kind",
						Value:      kindName,
						Message:    "unknown credential kind",
						Suggestion: fmt.Sprintf("Known kinds: %v", kinds),
					}
				}
				kinds = []credentials.Kind{kind}
			}

			type row struct {
				ID          string `json:"id"`
				Kind        string `json:"kind"`
				Scope       string `json:"scope"`
				Name        string `json:"name"`
				Description string `json:"description,omitempty"`
			}
			var rows []row
			for _, kind := range kinds {
				if _, legacy := platform.kinds.ResolvesTo(kind); legacy && kindName == "" {
					// Legacy kinds already answer for their modern kind;
					// listing them twice would duplicate entries.
					continue
				}
				for _, c := range platform.registry.Lookup(kind, ctx, as) {
					rows = append(rows, row{
						ID:          c.ID(),
						Kind:        string(c.Kind()),
						Scope:       c.Scope().String(),
						Name:        platform.kinds.NameOf(c),
						Description: c.Description(),
					})
				}
			}

			if jsonOutput {
				encoder := json.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "  ")
				return encoder.Encode(rows)
			}

			if len(rows) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No credentials visible in %s\n", credentials.Path(ctx))
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintf(w, "ID\tKIND\tSCOPE\tNAME\n")
			_, _ = fmt.Fprintf(w, "--\t----\t-----\t----\n")
			for _, r := range rows {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.ID, r.Kind, r.Scope, r.Name)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&contextPath, "context", "", "Context path, e.g. system/team-a")
	cmd.Flags().StringVar(&userID, "user", "", "List the user's personal credentials instead")
	cmd.Flags().StringVar(&kindName, "kind", "", "Restrict the listing to one credential kind")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	return cmd
}
