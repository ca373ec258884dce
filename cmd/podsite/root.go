package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/eringen/podsite"
)

// commandContext loads the project configuration on first use so commands
// like new and version work outside a project.
type commandContext struct {
	dir     *string
	release *bool
	opts    []podsite.Option
}

func (c *commandContext) app() (*podsite.App, error) {
	cfg, err := podsite.LoadConfig(*c.dir)
	if err != nil {
		return nil, err
	}
	if *c.release {
		cfg.Mode = podsite.Release
	}
	return podsite.New(cfg, c.opts...)
}

func newRootCommand(opts ...podsite.Option) *cobra.Command {
	var dir string
	var release bool
	ctx := &commandContext{dir: &dir, release: &release, opts: opts}

	rootCmd := &cobra.Command{
		Use:           "podsite",
		Short:         "Build, preview and publish a podcast website",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&dir, "dir", "C", ".", "Project directory")
	rootCmd.PersistentFlags().BoolVar(&release, "release", false, "Force a release build (same as PODSITE_ENV=production)")

	rootCmd.AddCommand(newBuildCommand(ctx))
	rootCmd.AddCommand(newUploadCommand(ctx))
	rootCmd.AddCommand(newUploadsCommand(ctx))
	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newNewCommand())
	rootCmd.AddCommand(newVersionCommand())
	return rootCmd
}

// signalContext cancels on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the podsite version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "podsite %s\n", version)
			return nil
		},
	}
}
