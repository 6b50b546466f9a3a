package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"firestige.xyz/dissector/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Validate a configuration file without opening any source.

The file defaults to the one given by --config.

Examples:
  dissector validate -f dissector.yml
  dissector --config /etc/dissector/config.yml validate`,
	Run: func(cmd *cobra.Command, args []string) {
		path := validateConfigFile
		if path == "" {
			path = configFile
		}
		if path == "" {
			exitWithError("no config file given (use -f or --config)", nil)
		}
		if err := runValidate(path, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "INVALID: %v\n", err)
			os.Exit(1)
		}
	},
}

var validateConfigFile string

func init() {
	validateCmd.Flags().StringVarP(&validateConfigFile, "file", "f", "",
		"configuration file to validate")
}

func runValidate(path string, out io.Writer) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "VALID: source=%s output=%s log=%s/%s metrics=%t\n",
		cfg.Source.Type,
		cfg.Output.Format,
		cfg.Log.Level,
		cfg.Log.Format,
		cfg.Metrics.Enabled,
	)
	return nil
}
