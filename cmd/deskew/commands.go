package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ironsheep/image-deskew/internal/batch"
	"github.com/ironsheep/image-deskew/internal/handler"
	"github.com/ironsheep/image-deskew/internal/imaging"
	"github.com/ironsheep/image-deskew/internal/remote"
	"github.com/ironsheep/image-deskew/internal/server"
)

const shutdownTimeout = 10 * time.Second

func (a *app) runner() *batch.Runner {
	return batch.NewRunner(a.corrector(),
		batch.WithWorkers(a.cfg.Workers),
		batch.WithOutputDir(a.cfg.OutputDir),
		batch.WithSuffix(a.cfg.Suffix),
		batch.WithLogger(a.logger),
	)
}

func formatResult(res batch.Result) string {
	switch {
	case res.Err != nil:
		return fmt.Sprintf("%s\tERROR\t%v", res.Input, res.Err)
	case res.Fallback:
		return fmt.Sprintf("%s\t%.4f\t%s\t(no foreground, copied)", res.Input, res.Angle, res.Output)
	default:
		return fmt.Sprintf("%s\t%.4f\t%s", res.Input, res.Angle, res.Output)
	}
}

func newCorrectCommand(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "correct <image>",
		Short: "Correct the skew of one image",
		Long:  "Correct the skew of one image. Without -o the result is written next to the input as <name>" + batch.DefaultSuffix + "<ext>.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := args[0]
			if output == "" {
				output = a.runner().OutputPath(input)
			}

			img, err := imaging.Open(input)
			if err != nil {
				return err
			}
			res, err := a.corrector().Analyze(img)
			if err != nil {
				return err
			}
			if err := imaging.Save(res.Image, output); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), formatResult(batch.Result{
				Input:    input,
				Output:   output,
				Angle:    res.Angle,
				Fallback: res.Fallback,
			}))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output path (format follows the extension)")
	cmd.Flags().StringVar(&a.cfg.Suffix, "suffix", a.cfg.Suffix, "suffix for the default output name")
	return cmd
}

func newAngleCommand(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "angle <image>...",
		Short: "Print the estimated correction angle of each image",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			corrector := a.corrector()
			out := cmd.OutOrStdout()
			failed := 0

			for _, path := range args {
				img, err := imaging.Open(path)
				if err != nil {
					failed++
					fmt.Fprintf(out, "%s\tERROR\t%v\n", path, err)
					continue
				}
				res, err := corrector.Measure(img)
				if err != nil {
					failed++
					fmt.Fprintf(out, "%s\tERROR\t%v\n", path, err)
					continue
				}
				if asJSON {
					fmt.Fprintf(out, "{\"path\":%q,\"angle\":%.4f,\"fallback\":%t}\n", path, res.Angle, res.Fallback)
					continue
				}
				fmt.Fprintf(out, "%s\t%.4f\n", path, res.Angle)
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d images failed", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print one JSON object per line")
	return cmd
}

func newBatchCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch <file|dir>...",
		Short: "Correct many images in parallel",
		Long:  "Correct every listed image and every supported image in listed directories (not recursive). A failure on one file does not stop the others.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			results, err := a.runner().Run(ctx, args)
			if err != nil {
				return err
			}
			for _, res := range results {
				fmt.Fprintln(cmd.OutOrStdout(), formatResult(res))
			}

			if n := batch.Failed(results); n > 0 {
				return fmt.Errorf("%d of %d files failed", n, len(results))
			}
			a.logger.Info().Int("files", len(results)).Msg("batch complete")
			return nil
		},
	}
	addOutputFlags(cmd, a)
	return cmd
}

func newWatchCommand(a *app) *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Correct images as they appear in a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			out := cmd.OutOrStdout()
			w := batch.NewWatcher(a.runner(), args[0],
				batch.WithDebounce(debounce),
				batch.WithResultHandler(func(res batch.Result) {
					fmt.Fprintln(out, formatResult(res))
				}),
			)
			return w.Run(ctx)
		},
	}
	addOutputFlags(cmd, a)
	cmd.Flags().DurationVar(&debounce, "debounce", batch.DefaultDebounce, "quiet period before a changed file is processed")
	return cmd
}

func addOutputFlags(cmd *cobra.Command, a *app) {
	cmd.Flags().StringVar(&a.cfg.OutputDir, "out-dir", a.cfg.OutputDir, "write outputs here instead of next to each input")
	cmd.Flags().StringVar(&a.cfg.Suffix, "suffix", a.cfg.Suffix, "suffix appended to output file names")
	cmd.Flags().IntVar(&a.cfg.Workers, "workers", a.cfg.Workers, "number of images processed in parallel")
}

func newRemoteCommand(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "remote <image>",
		Short: "Correct an image with a deployed deskew service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.RequireEndpoint(); err != nil {
				return err
			}

			logger := a.logger
			client, err := remote.NewClient(remote.Config{
				Endpoint: a.cfg.Endpoint,
				Timeout:  a.cfg.Timeout,
				Logger:   &logger,
			})
			if err != nil {
				return err
			}

			input := args[0]
			if output == "" {
				output = a.runner().OutputPath(input)
			}

			ctx, cancel := signalContext()
			defer cancel()

			resp, err := client.DeskewFile(ctx, input, output)
			if err != nil {
				return err
			}

			if !resp.HasAngle {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t?\t%s\n", input, output)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatResult(batch.Result{Input: input, Output: output, Angle: resp.Angle}))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output path (format follows the extension)")
	cmd.Flags().StringVar(&a.cfg.Endpoint, "endpoint", a.cfg.Endpoint, "deskew service URL")
	cmd.Flags().DurationVar(&a.cfg.Timeout, "timeout", a.cfg.Timeout, "request timeout")
	return cmd
}

func newServeCommand(a *app) *cobra.Command {
	var maxBody int64

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the deskew endpoint over HTTP",
		Long:  "Serve POST / and POST /deskew (raw image in, PNG out, applied angle in the " + handler.AngleHeader + " header) and GET /healthz.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h := handler.New(a.corrector(),
				handler.WithLogger(a.logger),
				handler.WithMaxBodyBytes(maxBody),
			)
			srv := &http.Server{
				Addr:              a.cfg.Listen,
				Handler:           h,
				ReadHeaderTimeout: 10 * time.Second,
				ReadTimeout:       a.cfg.Timeout,
				WriteTimeout:      a.cfg.Timeout,
				IdleTimeout:       2 * time.Minute,
			}

			ctx, cancel := signalContext()
			defer cancel()

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info().Str("listen", a.cfg.Listen).Msg("serving")
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			a.logger.Info().Msg("received signal, shutting down")
			shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
			defer done()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&a.cfg.Listen, "listen", a.cfg.Listen, "address to listen on")
	cmd.Flags().DurationVar(&a.cfg.Timeout, "timeout", a.cfg.Timeout, "read and write timeout per request")
	cmd.Flags().Int64Var(&maxBody, "max-body", handler.DefaultMaxBodyBytes, "maximum request body in bytes")
	return cmd
}

func newMCPCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Run the MCP server on stdin/stdout",
		Long:  "Run the Model Context Protocol server on stdin/stdout. Logs go to stderr.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.logger.Debug().Str("version", getVersion()).Msg("starting MCP server")
			srv := server.New(
				server.WithLogger(a.logger),
				server.WithCorrector(a.corrector()),
				server.WithVersion(getVersion()),
			)
			return srv.Run()
		},
	}
}

func newOverlayCommand(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "overlay <image>",
		Short: "Draw the detected content rectangle and angle on an image",
		Long:  "Draw the minimum-area rectangle found around the content and the estimated angle on a copy of the image. Without -o the result is written as <name>_overlay.png next to the input.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := args[0]
			if output == "" {
				output = overlayPath(input)
			}

			img, err := imaging.Open(input)
			if err != nil {
				return err
			}
			annotated, res, err := a.corrector().Overlay(img, a.cfg.OverlayColor)
			if err != nil {
				return err
			}
			if err := imaging.Save(annotated, output); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), formatResult(batch.Result{
				Input:    input,
				Output:   output,
				Angle:    res.Angle,
				Fallback: res.Fallback,
			}))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output path (format follows the extension)")
	cmd.Flags().StringVar(&a.cfg.OverlayColor, "color", a.cfg.OverlayColor, "outline color as hex")
	return cmd
}

func overlayPath(input string) string {
	base := strings.TrimSuffix(input, filepath.Ext(input))
	return base + "_overlay.png"
}
