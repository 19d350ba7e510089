// Command minivt drives a program through a minimal virtual terminal and
// shows the resulting screen.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/colorprofile"
	clog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"minivt/internal/app"
	"minivt/internal/config"
	"minivt/internal/replay"
	"minivt/internal/view"
)

var version = "dev"

type rootFlags struct {
	configPath string
	width      int
	height     int
	termName   string
	silent     bool
	logLevel   string
	logPath    string
	tracePath  string
	journal    string
	debounceMS int
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "minivt: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	return newRootCommandWith(&rootFlags{})
}

func newRootCommandWith(flags *rootFlags) *cobra.Command {
	root := &cobra.Command{
		Use:           "minivt",
		Short:         "Run a program inside a minimal virtual terminal",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "YAML configuration file")
	pf.IntVar(&flags.width, "width", 0, "terminal width in columns")
	pf.IntVar(&flags.height, "height", 0, "terminal height in rows")
	pf.StringVar(&flags.termName, "term", "", "TERM value exported to the child")
	pf.BoolVar(&flags.silent, "silent", false, "do not print frames")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.StringVar(&flags.logPath, "log-file", "", "write logs to this file instead of stderr")
	pf.StringVar(&flags.tracePath, "trace", "", "write JSON burst records to this file (- for stderr)")
	pf.StringVar(&flags.journal, "journal", "", "record every frame into this SQLite journal")
	pf.IntVar(&flags.debounceMS, "debounce-ms", 0, "quiet period before a frame is reported")

	root.AddCommand(
		newPrintCommand(flags),
		newRunCommand(flags),
		newServeCommand(flags),
		newReplayCommand(flags),
		newJournalCommand(),
	)
	return root
}

func newPrintCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "print [-- command [args...]]",
		Short: "Forward stdin to the program and print a frame on every update",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, app.ModePrint, args, func(ctx context.Context, a *app.App) error {
				return a.Print(ctx, os.Stdin)
			})
		},
	}
}

func newRunCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run [-- command [args...]]",
		Short: "Show the program full screen; Ctrl-] detaches",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, app.ModeView, args, func(ctx context.Context, a *app.App) error {
				return a.View(ctx, view.ViewerOptions{})
			})
		},
	}
}

func newServeCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve [-- command [args...]]",
		Short: "Expose the program through a second pty that receives frames",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, app.ModeServe, args, func(ctx context.Context, a *app.App) error {
				return a.Serve(ctx, cmd.ErrOrStderr())
			})
		},
	}
}

func newReplayCommand(flags *rootFlags) *cobra.Command {
	var (
		encoded  bool
		speed    float64
		maxDelay time.Duration
	)
	cmd := &cobra.Command{
		Use:   "replay FILE",
		Short: "Play a ttyrec recording through the terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			frames, err := replay.ReadFile(args[0], encoded)
			if err != nil {
				return err
			}
			opts := replay.Options{Speed: speed, MaxDelay: maxDelay}
			return withApp(cmd, flags, app.ModeReplay, nil, func(ctx context.Context, a *app.App) error {
				return a.Replay(ctx, frames, opts)
			})
		},
	}
	cmd.Flags().BoolVar(&encoded, "base64", false, "the file holds a base64 encoded recording")
	cmd.Flags().Float64Var(&speed, "speed", 1, "playback speed multiplier")
	cmd.Flags().DurationVar(&maxDelay, "max-delay", 0, "cap each pause, e.g. 500ms")
	return cmd
}

func newJournalCommand() *cobra.Command {
	var last bool
	cmd := &cobra.Command{
		Use:   "journal PATH [SESSION]",
		Short: "List recorded sessions, or the frames of one session",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := app.JournalQuery{Path: args[0], LastOnly: last}
			if len(args) == 2 {
				q.SessionID = args[1]
			}
			out := colorprofile.NewWriter(cmd.OutOrStdout(), os.Environ())
			return app.ListJournal(cmd.Context(), q, out)
		},
	}
	cmd.Flags().BoolVar(&last, "last", false, "only show the most recent frame")
	return cmd
}

// withApp loads configuration, applies flag overrides, builds the app and
// runs fn until it returns or a signal arrives.
func withApp(cmd *cobra.Command, flags *rootFlags, mode app.Mode, command []string, fn func(context.Context, *app.App) error) error {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}
	applyFlags(cmd, flags, &cfg)
	if len(command) > 0 {
		cfg.Command = command
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, closeLog, err := newLogger(cfg, mode)
	if err != nil {
		return err
	}
	defer closeLog()

	a, err := app.New(app.Options{Config: cfg, Mode: mode, Logger: logger, Stdout: cmd.OutOrStdout()})
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("shutdown", "err", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	logger.Debug("starting", "mode", mode, "session", a.SessionID(), "size", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height))
	return fn(ctx, a)
}

func applyFlags(cmd *cobra.Command, flags *rootFlags, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("width") {
		cfg.Width = flags.width
	}
	if changed("height") {
		cfg.Height = flags.height
	}
	if changed("term") {
		cfg.TermName = flags.termName
	}
	if changed("silent") {
		cfg.Silent = flags.silent
	}
	if changed("log-level") {
		cfg.Logging.Level = flags.logLevel
	}
	if changed("log-file") {
		cfg.Logging.Path = flags.logPath
	}
	if changed("trace") {
		cfg.Output.TracePath = flags.tracePath
	}
	if changed("journal") {
		cfg.Output.JournalPath = flags.journal
	}
	if changed("debounce-ms") {
		cfg.Engine.DebounceMS = flags.debounceMS
	}
}

func newLogger(cfg config.Config, mode app.Mode) (*clog.Logger, func(), error) {
	out := os.Stderr
	closeFn := func() {}
	if cfg.Logging.Path != "" {
		f, err := os.OpenFile(cfg.Logging.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, err
		}
		out = f
		closeFn = func() { _ = f.Close() }
	}
	logger := clog.NewWithOptions(out, clog.Options{
		Prefix:          "minivt",
		Level:           clog.WarnLevel,
		ReportTimestamp: cfg.Logging.Path != "",
	})
	if level, err := clog.ParseLevel(cfg.Logging.Level); err == nil {
		logger.SetLevel(level)
	}
	// The viewer owns the screen; stray stderr lines would tear it.
	if mode.Interactive() && cfg.Logging.Path == "" {
		logger.SetOutput(io.Discard)
	}
	return logger, closeFn, nil
}
