package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/widgetsync/internal/channel"
	"github.com/conneroisu/widgetsync/internal/config"
	"github.com/conneroisu/widgetsync/internal/transport"
	"github.com/conneroisu/widgetsync/internal/upstream"
)

var getCmd = &cobra.Command{
	Use:   "get <widget> [query]",
	Short: "Read a widget's state from a running host",
	Long: `Ask a running host for a widget's state. The query defaults to "get",
which answers with the widget's value.

Examples:
  widgetsync get speed
  widgetsync get speed --output yaml`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runGet,
}

var setCmd = &cobra.Command{
	Use:   "set <widget> <command> <value>",
	Short: "Send a command to a widget on a running host",
	Long: `Send "<widget>#<command>" with the given value. Values are read as
YAML, so 42 is a number, [a, b] a list and "42" a string.

Examples:
  widgetsync set speed value 42
  widgetsync set mode options "[fast, slow]"
  widgetsync set speed inc 5`,
	Args: cobra.ExactArgs(3),
	RunE: runSet,
}

var watchCmd = &cobra.Command{
	Use:     "watch <widget> [event]",
	Aliases: []string{"w"},
	Short:   "Print a widget's events as they happen",
	Long: `Follow "<widget>#<event>" on a running host until interrupted. The
event defaults to "change".

With --with, every event prints a list holding the firing widget's value
and the current values of the other widgets, in flag order.

Examples:
  widgetsync watch speed
  widgetsync watch go click
  widgetsync watch mode --with speed#change --with plot#select`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runWatch,
}

var pollCmd = &cobra.Command{
	Use:   "poll <widget> [query]",
	Short: "Print a widget's state at a fixed interval",
	Long: `Ask a running host for a widget's state every --every until
interrupted, or --count times.

Examples:
  widgetsync poll speed --every 2s
  widgetsync poll plot get_layout --count 1`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runPoll,
}

func init() {
	for _, c := range []*cobra.Command{getCmd, setCmd, watchCmd, pollCmd} {
		rootCmd.AddCommand(c)
		addSocketFlags(c)
	}
	addOutputFlags(getCmd)
	addOutputFlags(watchCmd)
	addOutputFlags(pollCmd)

	watchCmd.Flags().StringArray("with", nil, "Also report this <widget>#<event> (repeatable)")
	watchCmd.Flags().Bool("loads", false, "Report each time the dashboard is served")
	pollCmd.Flags().Duration("every", time.Second, "Interval between reads")
	pollCmd.Flags().Int("count", 0, "Stop after this many reads (0 means no limit)")
}

// connect dials the host named by the socket config.
func connect(cmd *cobra.Command) (*upstream.Controller, *transport.Client, error) {
	cfg, err := loadConfig(cmd, socketBindings)
	if err != nil {
		return nil, nil, err
	}
	return dial(cmd.Context(), cfg)
}

func dial(ctx context.Context, cfg *config.Config) (*upstream.Controller, *transport.Client, error) {
	client, err := transport.Dial(ctx, cfg.Socket.URL, transport.DialOptions{
		ReadLimit: cfg.Socket.ReadLimit,
		Logger:    newLogger(cfg, nil),
	})
	if err != nil {
		return nil, nil, err
	}
	return upstream.New(client, cfg.Socket.RequestTimeout), client, nil
}

func runGet(cmd *cobra.Command, args []string) error {
	ctl, client, err := connect(cmd)
	if err != nil {
		return err
	}
	defer client.Close()

	query := channel.SuffixGet
	if len(args) == 2 {
		query = args[1]
	}

	var v any
	if err := ctl.GetSuffix(cmd.Context(), args[0], query, &v); err != nil {
		return err
	}
	return printValue(cmd, cmd.OutOrStdout(), v)
}

func runSet(cmd *cobra.Command, args []string) error {
	ctl, client, err := connect(cmd)
	if err != nil {
		return err
	}
	defer client.Close()

	return ctl.Command(cmd.Context(), args[0], args[1], parseValue(args[2]))
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctl, client, err := connect(cmd)
	if err != nil {
		return err
	}
	defer client.Close()

	event := channel.SuffixChange
	if len(args) == 2 {
		event = args[1]
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events, err := watchEvents(cmd, args[0], event)
	if err != nil {
		return err
	}

	if loads, _ := cmd.Flags().GetBool("loads"); loads {
		defer ctl.OnLoad(func(context.Context) {
			fmt.Fprintln(cmd.ErrOrStderr(), "dashboard loaded")
		})()
	}

	out := cmd.OutOrStdout()
	unsubscribe, err := ctl.SubscribeAll(func(_ context.Context, vs []upstream.Value) {
		decoded := make([]any, 0, len(vs))
		for _, v := range vs {
			d, err := v.Decode()
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", v.Event, err)
				return
			}
			decoded = append(decoded, d)
		}
		if len(decoded) == 1 {
			_ = printValue(cmd, out, decoded[0])
			return
		}
		_ = printValue(cmd, out, decoded)
	}, events...)
	if err != nil {
		return err
	}
	defer unsubscribe()

	select {
	case <-ctx.Done():
		return nil
	case <-client.Done():
		return client.Err()
	}
}

// watchEvents is the watched event followed by every --with event.
func watchEvents(cmd *cobra.Command, id, suffix string) ([]upstream.Event, error) {
	events := []upstream.Event{upstream.On(id, suffix)}

	with, _ := cmd.Flags().GetStringArray("with")
	for _, name := range with {
		wid, wsuffix, ok := channel.ParseEventName(name)
		if !ok {
			return nil, fmt.Errorf("--with %q: want <widget>#<event>", name)
		}
		events = append(events, upstream.On(wid, wsuffix))
	}
	return events, nil
}

func runPoll(cmd *cobra.Command, args []string) error {
	ctl, client, err := connect(cmd)
	if err != nil {
		return err
	}
	defer client.Close()

	query := channel.SuffixGet
	if len(args) == 2 {
		query = args[1]
	}
	every, _ := cmd.Flags().GetDuration("every")
	if every <= 0 {
		return fmt.Errorf("--every must be positive, got %s", every)
	}
	count, _ := cmd.Flags().GetInt("count")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	finished := make(chan error, 1)
	reads := 0
	cancel := ctl.Schedule(ctx, every, func(ctx context.Context) {
		if count > 0 && reads >= count {
			return
		}
		var v any
		if err := ctl.GetSuffix(ctx, args[0], query, &v); err != nil {
			select {
			case finished <- err:
			default:
			}
			return
		}
		_ = printValue(cmd, out, v)

		reads++
		if count > 0 && reads >= count {
			select {
			case finished <- nil:
			default:
			}
		}
	})
	defer cancel()

	select {
	case err := <-finished:
		return err
	case <-ctx.Done():
		return nil
	case <-client.Done():
		return client.Err()
	}
}
