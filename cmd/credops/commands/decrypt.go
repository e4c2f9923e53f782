package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/systmms/credops/internal/config"
	"github.com/systmms/credops/internal/logging"
)

func NewDecryptCommand(cfg *config.Config) *cobra.Command {
	var inFile string

	cmd := &cobra.Command{
		Use:   "decrypt [envelope]",
		Short: "Decrypt envelope text back to its value",
		Long: `Decrypt {base64} envelope text under the local master key and print the
raw value to stdout.

The envelope comes from the argument, the --in file, or stdin. Input that
is not a sealed envelope is passed through the usual fallbacks: a
well-shaped envelope sealed under a different key yields its decoded
bytes, and plain base64 yields its decoded form.

Examples:
  # Decrypt an argument
  credops decrypt "{AAAAB3...}"

  # Round trip
  credops encrypt "hunter2" | credops decrypt

  # Use in scripts
  export TOKEN=$(credops decrypt --in ./token.enc)`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(args, inFile)
			if err != nil {
				return err
			}

			platform, err := newPlatform(cfg)
			if err != nil {
				return err
			}

			protected, err := platform.codec.FromText(text)
			if err != nil {
				return err
			}
			plain, err := protected.Plain()
			if err != nil {
				return err
			}
			cfg.Logger.Debug("Decrypted value %s", logging.Secret(string(plain)))

			fmt.Fprint(cmd.OutOrStdout(), string(plain))
			return nil
		},
	}

	cmd.Flags().StringVar(&inFile, "in", "", "Read the envelope from a file instead of stdin")

	return cmd
}
