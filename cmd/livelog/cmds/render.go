package cmds

import (
	"context"
	"fmt"
	"html"
	"io"
	"os"
	"sync"

	"github.com/go-go-golems/livelog/pkg/ansi"
	"github.com/go-go-golems/livelog/pkg/batch"
	"github.com/go-go-golems/livelog/pkg/frame"
	"github.com/go-go-golems/livelog/pkg/logline"
	"github.com/go-go-golems/livelog/pkg/term"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const pageHead = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { background: #111; color: #ddd; font-family: monospace; font-size: 13px; }
details.fold > summary { cursor: pointer; color: #6cf; }
div.line { white-space: pre-wrap; padding-left: 4ch; }
div.line::before { content: attr(data-pos); color: #666; display: inline-block; width: 5ch; margin-left: -6ch; text-align: right; margin-right: 1ch; }
</style>
</head>
<body>
`

const pageTail = "</body>\n</html>\n"

func writePage(w io.Writer, logs *term.Container) error {
	title := "build log"
	if len(logs.Blocks) > 0 {
		title = logs.Blocks[0].Title
	}
	if _, err := fmt.Fprintf(w, pageHead, html.EscapeString(title)); err != nil {
		return errors.Wrap(err, "write page")
	}
	if err := logs.WriteHTML(w); err != nil {
		return err
	}
	_, err := io.WriteString(w, pageTail)
	return errors.Wrap(err, "write page")
}

// renderHistory runs lines through a bulk batch scheduler into a fresh
// container and returns once every line has been rendered.
func renderHistory(ctx context.Context, lines []string, fps, maxBlock int, filterOpts ...term.Option) (*term.Container, error) {
	logs := term.NewContainer()
	if len(lines) == 0 {
		return logs, nil
	}
	filter := term.NewFilter(ansi.NewFormatter(), filterOpts...)
	loop := frame.NewLoop(fps)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var mu sync.Mutex
	rendered := 0
	done := make(chan struct{})
	s, err := batch.New(batch.Options[string]{
		Name:         "render",
		Initial:      lines,
		MaxBlockSize: maxBlock,
		Frames:       loop,
		Handler: func(block []string) {
			mu.Lock()
			defer mu.Unlock()
			for _, l := range block {
				filter.Append(logs, l)
			}
			rendered += len(block)
			log.Debug().Int("rendered", rendered).Int("total", len(lines)).Msg("render block")
			if rendered == len(lines) {
				filter.Flush(logs)
				close(done)
			}
		},
	})
	if err != nil {
		return nil, err
	}
	defer s.Close()

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return ignoreCanceled(loop.Run(egCtx))
	})
	eg.Go(func() error {
		defer cancel()
		select {
		case <-done:
			return nil
		case <-egCtx.Done():
			return egCtx.Err()
		}
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	mu.Lock()
	defer mu.Unlock()
	return logs, nil
}

func newRenderCmd() *cobra.Command {
	var build string
	var out string
	var fragment bool
	var collapse bool

	cmd := &cobra.Command{
		Use:   "render [file]",
		Short: "Render a finished build log as folded HTML",
		Long: "Render a captured log file, or a finished build fetched with --build, as HTML.\n" +
			"JSON encoded lines (pos, time, level, out) are expanded; anything else is treated as terminal text.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := getRootOptions(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			var payload []byte
			switch {
			case build != "":
				if err := opts.requireServer(); err != nil {
					return err
				}
				payload, err = opts.client().FetchLog(ctx, resolvePath(opts.Paths.Logs, build))
			case len(args) == 1:
				payload, err = os.ReadFile(args[0])
				err = errors.Wrap(err, "read log")
			default:
				return errors.New("need a log file or --build")
			}
			if err != nil {
				return err
			}

			filterOpts, err := opts.filterOptions()
			if err != nil {
				return err
			}
			logs, err := renderHistory(ctx, logline.TextLines(payload, nil), opts.FPS, opts.MaxBlockSize, filterOpts...)
			if err != nil {
				return errors.Wrap(err, "render")
			}
			if collapse {
				for _, b := range logs.Blocks {
					b.Collapsed = true
				}
			}

			w := cmd.OutOrStdout()
			if out != "" && out != "-" {
				if fragment {
					f, err := os.Create(out)
					if err != nil {
						return errors.Wrap(err, "create output")
					}
					if err := logs.WriteHTML(f); err != nil {
						_ = f.Close()
						return err
					}
					return errors.Wrap(f.Close(), "close output")
				}
				return writeHTMLFile(out, logs)
			}
			if fragment {
				return logs.WriteHTML(w)
			}
			return writePage(w, logs)
		},
	}

	cmd.Flags().StringVar(&build, "build", "", "Fetch the log of this build from the server (substituted into paths.logs)")
	cmd.Flags().StringVarP(&out, "output", "o", "", "Write HTML to this file instead of stdout")
	cmd.Flags().BoolVar(&fragment, "fragment", false, "Write only the fold markup, without a page around it")
	cmd.Flags().BoolVar(&collapse, "collapse", false, "Render every fold collapsed")
	return cmd
}
