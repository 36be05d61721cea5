package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "critreview",
		Short:         "Fetch, cache and normalize course review scores",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (default: $CRITREVIEW_CONFIG)")

	root.AddCommand(serveCmd())
	root.AddCommand(scoresCmd())
	root.AddCommand(reviewsCmd())
	root.AddCommand(requestCmd())
	root.AddCommand(cacheCmd())
	root.AddCommand(verifyCmd())

	return root
}

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the local scores HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: from config)")
	return cmd
}

func scoresCmd() *cobra.Command {
	var (
		id     string
		field  string
		format string
	)

	cmd := &cobra.Command{
		Use:   "scores",
		Short: "Print the score snapshot, fetching it on a cache miss",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScores(cmd.Context(), cmd.OutOrStdout(), id, field, format)
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "show a single course")
	cmd.Flags().StringVar(&field, "field", "", "score field to normalize (default: from config)")
	cmd.Flags().StringVar(&format, "format", formatText, "output format: text, json or yaml")
	return cmd
}

func reviewsCmd() *cobra.Command {
	var courses []string

	cmd := &cobra.Command{
		Use:   "reviews",
		Short: "Fetch reviews for courses (never cached)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReviews(cmd.Context(), cmd.OutOrStdout(), courses)
		},
	}

	cmd.Flags().StringSliceVar(&courses, "course", nil, "course identifiers (repeatable or comma separated)")
	return cmd
}

func requestCmd() *cobra.Command {
	var (
		kind    string
		courses []string
	)

	cmd := &cobra.Command{
		Use:   "request",
		Short: "Print the serialized query for a request",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequest(cmd.OutOrStdout(), kind, courses)
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "scores", "request kind: scores or reviews")
	cmd.Flags().StringSliceVar(&courses, "course", nil, "course identifiers")
	return cmd
}

func cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the score cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete the cached score snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCacheClear(cmd.Context(), cmd.OutOrStdout())
		},
	})
	return cmd
}

func verifyCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check the scored elements of an annotated HTML page",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd.OutOrStdout(), file)
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "HTML file to check")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
