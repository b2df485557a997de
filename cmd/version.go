package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/widgetsync/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Display the version, commit, build time, Go version and platform.

Examples:
  widgetsync version              # Version and commit
  widgetsync version --detailed   # Every build field
  widgetsync version -o json      # Machine readable`,
	RunE: runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().Bool("detailed", false, "Show detailed version information")
	versionCmd.Flags().StringP("output", "o", "text", "Output format (text, json, yaml)")
}

func runVersion(cmd *cobra.Command, args []string) error {
	info := version.Get()
	out := cmd.OutOrStdout()

	format, _ := cmd.Flags().GetString("output")
	if format != "text" {
		return printValue(cmd, out, info)
	}

	if detailed, _ := cmd.Flags().GetBool("detailed"); detailed {
		fmt.Fprintln(out, info.String())
		if info.IsRelease() {
			fmt.Fprintln(out, "Build type: release")
		} else {
			fmt.Fprintln(out, "Build type: development")
		}
		return nil
	}

	fmt.Fprintf(out, "widgetsync %s\n", info.Short())
	return nil
}
