package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/widgetsync/internal/page"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Read and write the host's shared cache",
	Long: `The shared cache is a key/value space on the host that survives
restarts when the host uses a file or sqlite store.

Examples:
  widgetsync cache set last-run "{at: 2024-01-01, ok: true}"
  widgetsync cache get last-run`,
}

var cacheGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print a cached value",
	Args:  cobra.ExactArgs(1),
	RunE:  runCacheGet,
}

var cacheSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Store a value in the cache",
	Args:  cobra.ExactArgs(2),
	RunE:  runCacheSet,
}

var messageCmd = &cobra.Command{
	Use:   "message <status> <text>",
	Short: "Post to the host's feedback feed",
	Long: fmt.Sprintf(`Post a message to the dashboard's feedback feed. Status is one of
%v.

Examples:
  widgetsync message success "Deploy finished"
  widgetsync message error "Disk almost full"`, page.Statuses),
	Args: cobra.ExactArgs(2),
	RunE: runMessage,
}

func init() {
	cacheCmd.AddCommand(cacheGetCmd, cacheSetCmd)
	rootCmd.AddCommand(cacheCmd, messageCmd)

	for _, c := range []*cobra.Command{cacheGetCmd, cacheSetCmd, messageCmd} {
		addSocketFlags(c)
	}
	addOutputFlags(cacheGetCmd)
}

func runCacheGet(cmd *cobra.Command, args []string) error {
	ctl, client, err := connect(cmd)
	if err != nil {
		return err
	}
	defer client.Close()

	var v any
	found, err := ctl.Cache.Load(cmd.Context(), args[0], &v)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("no cached value for %q", args[0])
	}
	return printValue(cmd, cmd.OutOrStdout(), v)
}

func runCacheSet(cmd *cobra.Command, args []string) error {
	ctl, client, err := connect(cmd)
	if err != nil {
		return err
	}
	defer client.Close()

	return ctl.Cache.Save(cmd.Context(), args[0], parseValue(args[1]))
}

func runMessage(cmd *cobra.Command, args []string) error {
	valid := false
	for _, s := range page.Statuses {
		if s == args[0] {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("unknown status %q (supported: %v)", args[0], page.Statuses)
	}

	ctl, client, err := connect(cmd)
	if err != nil {
		return err
	}
	defer client.Close()

	return ctl.Messages.Post(cmd.Context(), args[0], args[1])
}
