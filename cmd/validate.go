package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/conneroisu/widgetsync/internal/config"
	"github.com/conneroisu/widgetsync/internal/errors"
	"github.com/conneroisu/widgetsync/internal/layout"
)

var validateCmd = &cobra.Command{
	Use:   "validate [layout]",
	Short: "Check the configuration and a layout file",
	Long: `Validate the configuration and the layout without starting a host:

- Config values (ports, origins, store driver, socket URL, log level)
- Layout syntax and unknown fields
- Widget ids, kinds and duplicate ids

Examples:
  widgetsync validate              # Config plus the configured layout
  widgetsync validate ops.yml      # Config plus another layout`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		var result *config.ValidationResult
		if errors.As(err, &result) {
			fmt.Fprint(out, result.String())
		}
		return err
	}
	if result := config.Validate(cfg); result.HasWarnings() {
		fmt.Fprint(out, result.String())
	}
	fmt.Fprintln(out, "✅ Configuration is valid")

	path := cfg.Layout.Path
	if len(args) == 1 {
		path = args[0]
	}
	if _, err := os.Stat(path); err != nil && len(args) == 0 {
		fmt.Fprintf(out, "No layout at %s\n", path)
		return nil
	}

	lay, err := layout.Load(path)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "✅ Layout %s: %d widgets\n", path, len(lay.Widgets))
	return nil
}
