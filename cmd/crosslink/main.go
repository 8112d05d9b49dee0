package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"crosslink/internal/batch"
	"crosslink/internal/config"
	"crosslink/internal/logging"
	"crosslink/internal/server"
)

type rootOptions struct {
	envFile   string
	logLevel  string
	logFormat string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "crosslink",
		Short:         "Resolve streaming links across Spotify, Apple Music and YouTube",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file to load if present")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override LOG_LEVEL")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "override LOG_FORMAT (text|json)")

	cmd.AddCommand(newResolveCommand(opts), newBatchCommand(opts), newServeCommand(opts))
	return cmd
}

// setup loads configuration and builds the resolver for a subcommand.
func setup(cmd *cobra.Command, opts *rootOptions) (context.Context, *config.Config, *app, error) {
	cfg, err := config.Load(opts.envFile)
	if err != nil {
		return nil, nil, nil, err
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if opts.logFormat != "" {
		cfg.LogFormat = opts.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, err
	}

	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: cmd.ErrOrStderr()})
	if err != nil {
		return nil, nil, nil, err
	}
	slog.SetDefault(logger)
	ctx := logging.WithLogger(cmd.Context(), logger)

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	return ctx, cfg, a, nil
}

func newResolveCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <url>...",
		Short: "Print the cross-platform links for each URL or URI",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, _, a, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			for _, input := range args {
				res, err := a.resolver.Resolve(ctx, input)
				if err != nil {
					return fmt.Errorf("%s: %w", input, err)
				}
				if err := enc.Encode(res); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newBatchCommand(opts *rootOptions) *cobra.Command {
	var (
		concurrency int
		output      string
	)
	cmd := &cobra.Command{
		Use:   "batch <file.csv|->",
		Short: "Resolve every link in a CSV export, writing JSON lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, _, a, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			var in io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			rows, err := batch.ReadRows(in)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}

			summary, err := batch.Run(ctx, a.resolver, rows, out, concurrency)
			logging.FromContext(ctx).InfoContext(ctx, "batch finished",
				slog.Int("rows", summary.Rows),
				slog.Int("resolved", summary.Resolved),
				slog.Int("unresolved", summary.Unresolved),
				slog.Int("failed", summary.Failed))
			return err
		},
	}
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", batch.DefaultConcurrency, "rows resolved in parallel")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write results to this file instead of stdout")
	return cmd
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve GET /api/v1/resolve over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cfg, a, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			if port == "" {
				port = cfg.Port
			}
			return server.New(a.resolver, logging.FromContext(ctx)).ListenAndServe(ctx, ":"+port)
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "override PORT")
	return cmd
}
