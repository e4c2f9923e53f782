package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/systmms/credops/internal/config"
	"github.com/systmms/credops/internal/logging"
)

func NewEncryptCommand(cfg *config.Config) *cobra.Command {
	var inFile string

	cmd := &cobra.Command{
		Use:   "encrypt [value]",
		Short: "Encrypt a value into envelope text",
		Long: `Encrypt a value under the local master key and print the {base64}
envelope text.

The value comes from the argument, the --in file, or stdin. A single
trailing newline from file or stdin input is dropped, so piping from echo
behaves as expected. The master key is created on first use and stored in
the configured backend.

Examples:
  # Encrypt an argument
  credops encrypt "hunter2"

  # Encrypt from stdin
  echo -n "hunter2" | credops encrypt

  # Encrypt a file's content
  credops encrypt --in ./token.txt`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plaintext, err := readInput(args, inFile)
			if err != nil {
				return err
			}
			if len(args) == 0 {
				plaintext = strings.TrimSuffix(plaintext, "\n")
				plaintext = strings.TrimSuffix(plaintext, "\r")
			}

			platform, err := newPlatform(cfg)
			if err != nil {
				return err
			}

			cfg.Logger.Debug("Encrypting value %s", logging.Secret(plaintext))
			protected, err := platform.codec.ProtectString(plaintext)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), protected.Text())
			return nil
		},
	}

	cmd.Flags().StringVar(&inFile, "in", "", "Read the value from a file instead of stdin")

	return cmd
}
