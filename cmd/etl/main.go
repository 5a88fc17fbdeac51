// Command etl loads CT-e spreadsheets into the star schema and exports it
// as flat files for the BI layer.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/logtower/backend/internal/bootstrap"
	"github.com/spf13/cobra"
)

// Version is set at build time
var Version = "dev"

type rootOptions struct {
	configPath string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:           "etl",
		Short:         "Logtower CT-e ETL: load spreadsheets, route shipments, export the star schema",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to the TOML config file (default: ./config.toml)")

	rootCmd.AddCommand(seedCmd(opts))
	rootCmd.AddCommand(runCmd(opts))
	rootCmd.AddCommand(exportCmd(opts))
	rootCmd.AddCommand(allCmd(opts))
	rootCmd.AddCommand(historyCmd(opts))
	return rootCmd
}

// withApp runs fn with a bootstrapped App and always releases it
func withApp(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, app *bootstrap.App) error) (err error) {
	ctx := cmd.Context()
	app, err := bootstrap.New(ctx, opts.configPath)
	if err != nil {
		return err
	}
	defer func() {
		// the command context may already be cancelled
		if cerr := app.Close(context.Background()); err == nil && cerr != nil {
			err = cerr
		}
	}()
	return fn(ctx, app)
}
