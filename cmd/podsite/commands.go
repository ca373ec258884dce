package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/eringen/podsite"
	"github.com/eringen/podsite/cdn"
	"github.com/eringen/podsite/scaffold"
)

func newBuildCommand(ctx *commandContext) *cobra.Command {
	var upload, force, clean bool
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the site into the output directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, stop := signalContext(cmd.Context())
			defer stop()

			app, err := ctx.app()
			if err != nil {
				return err
			}
			defer app.Close()

			start := time.Now()
			if upload {
				err = app.BuildAndUpload(runCtx, podsite.UploadOptions{Force: force, Clean: clean})
			} else {
				err = app.Build(runCtx)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Built %s in %s\n", app.Config.OutputDir(), time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().BoolVar(&upload, "upload", false, "Upload the output to the CDN after building")
	cmd.Flags().BoolVar(&force, "force", false, "Upload files even when unchanged since the last upload")
	cmd.Flags().BoolVar(&clean, "clean", false, "Delete the remote prefix before uploading")
	return cmd
}

func newUploadCommand(ctx *commandContext) *cobra.Command {
	var force, clean bool
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload the built output directory to the CDN",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, stop := signalContext(cmd.Context())
			defer stop()

			app, err := ctx.app()
			if err != nil {
				return err
			}
			defer app.Close()

			report, err := app.Upload(runCtx, podsite.UploadOptions{Force: force, Clean: clean})
			if err != nil {
				return err
			}
			// Per-file failures are logged and listed in the summary.
			fmt.Fprintln(cmd.OutOrStdout(), report.Summary())
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Upload files even when unchanged since the last upload")
	cmd.Flags().BoolVar(&clean, "clean", false, "Delete the remote prefix before uploading")
	return cmd
}

func newUploadsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "uploads",
		Short: "List the files recorded as uploaded to the CDN",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ctx.app()
			if err != nil {
				return err
			}
			defer app.Close()

			entries, err := app.Uploads()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cdn.FormatEntries(entries))
			return nil
		},
	}
}

func newServeCommand(ctx *commandContext) *cobra.Command {
	var addr string
	var watch bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Build the site and serve it locally",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, stop := signalContext(cmd.Context())
			defer stop()

			app, err := ctx.app()
			if err != nil {
				return err
			}
			defer app.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "Serving %s on http://%s\n", app.Config.OutputDir(), displayAddr(addr))
			return app.Serve(runCtx, addr, watch)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", podsite.EnvOr("PODSITE_ADDR", "localhost:8080"), "Listen address")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Rebuild when source files change")
	return cmd
}

func newNewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "new <dir>",
		Short: "Create a new podcast site project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Creating new podsite project: %s\n\n", dir)

			files, err := scaffold.Create(dir, scaffold.NewData(dir, time.Now()), nil)
			for _, f := range files {
				fmt.Fprintf(out, "  created %s\n", filepath.Join(dir, filepath.FromSlash(f)))
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(out)
			fmt.Fprintln(out, "Done! Next steps:")
			fmt.Fprintln(out)
			fmt.Fprintf(out, "  cd %s\n", dir)
			fmt.Fprintln(out, "  cp .env.example .env")
			fmt.Fprintln(out, "  podsite serve --watch")
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Add episodes as markdown files under src/episodes/.")
			fmt.Fprintln(out, "Set BUNNY_STORAGE_ZONE and BUNNY_API_KEY in .env before running podsite upload.")
			return nil
		},
	}
}

func displayAddr(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	return addr
}
