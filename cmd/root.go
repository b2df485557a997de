// Package cmd provides the widgetsync command-line interface.
//
// Configuration is read from, in order of precedence:
//
//  1. Command-line flags (--config, --port, ...)
//  2. WIDGETSYNC_<SECTION>_<OPTION> environment variables
//  3. The file named by --config or WIDGETSYNC_CONFIG_FILE
//  4. .widgetsync.yml in the current directory
package cmd

import (
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/widgetsync/internal/config"
	"github.com/conneroisu/widgetsync/internal/logging"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "widgetsync",
	Short: "Keep dashboard widgets and a controlling program in sync",
	Long: `widgetsync hosts a page of widgets whose state is mirrored over a
websocket to a controlling program, and gives that program a client.

Quick Start:
  widgetsync serve                      Host the widgets in layout.yml
  widgetsync get speed                  Read a widget's value
  widgetsync set speed value 42         Drive a widget
  widgetsync watch speed                Follow a widget's changes
  widgetsync validate                   Check the config and layout`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.Init(viper.GetViper(), cfgFile)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is .widgetsync.yml, can also use WIDGETSYNC_CONFIG_FILE)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (text, json)")
}

// loadConfig binds the command's flags over the global viper instance and
// decodes it.
func loadConfig(cmd *cobra.Command, bindings map[string]string) (*config.Config, error) {
	all := map[string]string{
		"log.level":  "log-level",
		"log.format": "log-format",
	}
	for k, f := range bindings {
		all[k] = f
	}
	if err := bindFlags(viper.GetViper(), cmd.Flags(), all); err != nil {
		return nil, err
	}
	return config.Load()
}

// newLogger builds the process logger. Logs go to stderr so command output
// stays parseable.
func newLogger(cfg *config.Config, w io.Writer) logging.Logger {
	if w == nil {
		w = os.Stderr
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = logging.LevelInfo
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: cfg.Log.Format,
		Output: w,
	})
}
