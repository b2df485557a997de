package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// bindFlags maps config keys to flag names. Flags missing from fs are
// skipped so shared binding tables can be reused across commands.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet, keys map[string]string) error {
	for key, name := range keys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding --%s: %w", name, err)
		}
	}
	return nil
}

var serverBindings = map[string]string{
	"server.host":            "host",
	"server.port":            "port",
	"server.title":           "title",
	"server.allowed_origins": "origin",
	"store.driver":           "store",
	"store.path":             "store-path",
	"layout.path":            "layout",
	"layout.watch":           "watch",
	"socket.rate":            "rate",
	"socket.burst":           "burst",
}

var socketBindings = map[string]string{
	"socket.url":             "url",
	"socket.request_timeout": "timeout",
}

func addServerFlags(cmd *cobra.Command) {
	cmd.Flags().IntP("port", "p", 8050, "Port to serve on")
	cmd.Flags().String("host", "localhost", "Host to bind to")
	cmd.Flags().String("title", "", "Page title when the layout sets none")
	cmd.Flags().String("store", "", "Cache store driver (memory, file, sqlite)")
	cmd.Flags().String("store-path", "", "Cache store path")
	cmd.Flags().String("layout", "", "Layout file")
	cmd.Flags().Bool("watch", true, "Reload the layout when it changes")
	cmd.Flags().Float64("rate", 0, "Inbound socket events per second per client")
	cmd.Flags().Int("burst", 0, "Inbound socket event burst per client")
	cmd.Flags().StringSlice("origin", nil, "Allowed socket origin patterns")
}

func addSocketFlags(cmd *cobra.Command) {
	cmd.Flags().String("url", "", "Socket URL of the widget host")
	cmd.Flags().Duration("timeout", 0, "How long to wait for a widget to answer")
}

func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", "json", "Output format (json, yaml)")
}

// parseValue reads a command-line value as YAML, which also covers JSON:
// 42 is a number, [1, 2] a list and anything unparseable a string.
func parseValue(s string) any {
	var v any
	if err := yaml.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	return v
}

// printValue writes v in the format chosen by --output.
func printValue(cmd *cobra.Command, w io.Writer, v any) error {
	format, _ := cmd.Flags().GetString("output")

	switch strings.ToLower(format) {
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported format: %s (supported: json, yaml)", format)
	}
}
