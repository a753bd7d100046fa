package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"media-converter/internal/batch"
	"media-converter/internal/convert"
	"media-converter/internal/mediatypes"
	"media-converter/internal/naming"
	"media-converter/internal/startup"

	"github.com/spf13/cobra"
)

func newRootCmd(load appLoader) *cobra.Command {
	root := &cobra.Command{
		Use:           "media-converter",
		Short:         "Convert the media library to WebP",
		SilenceUsage: true,
		Version:      startup.Version,
	}

	root.AddCommand(
		newReconvertCmd(load),
		newBatchCmd(load),
		newConvertCmd(load),
		newImportCmd(load),
		newLogCmd(load),
		newCounterCmd(load),
	)
	return root
}

// withApp opens the app for the duration of fn.
func withApp(cmd *cobra.Command, load appLoader, fn func(a *app) error) error {
	a, err := load(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func newReconvertCmd(load appLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "reconvert",
		Short: "Convert every image in the library in one pass",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, load, func(a *app) error {
				out := cmd.OutOrStdout()
				bar := newProgress(cmd.ErrOrStderr())
				res, err := a.driver.SweepAll(cmd.Context(), bar.update)
				bar.finish()
				if err != nil {
					return err
				}
				if res.Cancelled {
					fmt.Fprintln(out, "Interrupted.")
				}
				fmt.Fprintf(out, "Done: %d converted, %d failed.\n", res.Succeeded, res.Failed)
				return nil
			})
		},
	}
}

func newBatchCmd(load appLoader) *cobra.Command {
	var (
		offset int
		limit  int
		all    bool
	)
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Convert one page of the library, or every page with --all",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, load, func(a *app) error {
				out := cmd.OutOrStdout()
				var converted, failed, skipped int
				for {
					page, err := a.driver.RunPage(cmd.Context(), offset, limit)
					if err != nil {
						return err
					}
					for _, msg := range page.Messages {
						fmt.Fprintln(out, msg)
					}
					converted += page.Processed
					failed += page.Failed
					skipped += page.Skipped
					fmt.Fprintf(out, "Offset %d: %d converted, %d failed, %d skipped\n",
						offset, page.Processed, page.Failed, page.Skipped)

					offset = page.NextOffset
					if !all || !page.HasMore || cmd.Context().Err() != nil {
						if page.HasMore {
							fmt.Fprintf(out, "More items remain; continue with --offset %d\n", offset)
						}
						break
					}
				}
				fmt.Fprintf(out, "Done: %d converted, %d failed, %d skipped.\n", converted, failed, skipped)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&offset, "offset", 0, "index of the first item")
	cmd.Flags().IntVar(&limit, "limit", batch.DefaultLimit, "items per page")
	cmd.Flags().BoolVar(&all, "all", false, "keep going until the library is exhausted")
	return cmd
}

func newConvertCmd(load appLoader) *cobra.Command {
	var mime string
	cmd := &cobra.Command{
		Use:   "convert <path>",
		Short: "Convert a single file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, load, func(a *app) error {
				path, err := filepath.Abs(args[0])
				if err != nil {
					return err
				}
				declared := mime
				if declared == "" {
					declared = mediatypes.MimeFromPath(path)
				}
				res := a.pipeline.Convert(cmd.Context(), convert.Request{Path: path, DeclaredFormat: declared})
				return printResult(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().StringVar(&mime, "mime", "", "declared MIME type (default: derived from the extension)")
	return cmd
}

func printResult(out io.Writer, res convert.Result) error {
	switch res.Kind {
	case convert.OK:
		fmt.Fprintf(out, "%s -> %s (%dx%d)\n", filepath.Base(res.Source), filepath.Base(res.NewPath), res.Width, res.Height)
		return nil
	case convert.AlreadyConverted:
		fmt.Fprintf(out, "%s: already converted\n", filepath.Base(res.Source))
		return nil
	default:
		return fmt.Errorf("%s: %s: %s", filepath.Base(res.Source), res.Kind, res.Reason)
	}
}

func newImportCmd(load appLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "import [dir]",
		Short: "Register the files under a directory in the library",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, load, func(a *app) error {
				dir := a.config.MediaDir
				if len(args) == 1 {
					dir = args[0]
				}
				n, err := a.db.ImportDirectory(cmd.Context(), dir)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d new items from %s\n", n, dir)
				return nil
			})
		},
	}
}

func newLogCmd(load appLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show or clear the conversion log",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the conversion log",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withApp(cmd, load, func(a *app) error {
					contents, err := a.audit.Contents()
					if err != nil {
						return err
					}
					if contents == "" {
						fmt.Fprintln(cmd.OutOrStdout(), "No log entries yet.")
						return nil
					}
					_, err = io.WriteString(cmd.OutOrStdout(), contents)
					return err
				})
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Truncate the conversion log",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withApp(cmd, load, func(a *app) error {
					if err := a.audit.Clear(); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), "Log cleared.")
					return nil
				})
			},
		},
	)
	return cmd
}

func newCounterCmd(load appLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "counter",
		Short: "Show or set the file name counter",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the counter the next file will use",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withApp(cmd, load, func(a *app) error {
					n, err := a.counter.Current(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%d (next name: %s%03dimg.webp)\n", n, a.config.Settings.FilePrefix, n)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "set <n>",
			Short: "Set the counter to a value between 1 and 999",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid counter %q", args[0])
				}
				if err := naming.ValidateCounter(n); err != nil {
					return err
				}
				return withApp(cmd, load, func(a *app) error {
					if err := a.counter.Set(cmd.Context(), n); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Counter set to %d\n", n)
					return nil
				})
			},
		},
	)
	return cmd
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && termIsTerminal(int(f.Fd()))
}
