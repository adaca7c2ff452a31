package cmds

import (
	"context"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	xansi "github.com/charmbracelet/x/ansi"
	"github.com/go-go-golems/livelog/pkg/ansi"
	"github.com/go-go-golems/livelog/pkg/frame"
	"github.com/go-go-golems/livelog/pkg/logline"
	"github.com/go-go-golems/livelog/pkg/stream"
	"github.com/go-go-golems/livelog/pkg/term"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// terminalSink prints flushed output and keeps a folded HTML copy when asked
// to.
type terminalSink struct {
	w     io.Writer
	plain bool

	mu     sync.Mutex
	filter *term.Filter
	logs   *term.Container
	carry  string
}

var _ stream.Target = (*terminalSink)(nil)

func newTerminalSink(w io.Writer, plain, keepHTML bool, filterOpts ...term.Option) *terminalSink {
	s := &terminalSink{w: w, plain: plain}
	if keepHTML {
		s.filter = term.NewFilter(ansi.NewFormatter(), filterOpts...)
		s.logs = term.NewContainer()
	}
	return s
}

func (s *terminalSink) Append(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := text
	if s.plain {
		// an escape cut by the flush boundary is stripped with the next one
		out, s.carry = ansi.SplitIncomplete(s.carry + text)
		out = xansi.Strip(out)
	}
	if _, err := io.WriteString(s.w, out); err != nil {
		log.Debug().Err(err).Msg("write output")
	}
	if s.filter != nil {
		s.filter.Append(s.logs, text)
	}
}

func (s *terminalSink) ScrollToEnd() {}

func (s *terminalSink) writeHTML(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.filter == nil {
		return nil
	}
	s.filter.Flush(s.logs)
	return writeHTMLFile(path, s.logs)
}

func newFollowCmd() *cobra.Command {
	var file string
	var tailBytes int64
	var noFollow bool
	var plain bool
	var htmlOut string

	cmd := &cobra.Command{
		Use:   "follow [build]",
		Short: "Stream a running build log to the terminal",
		Long: "Stream a build log from the server websocket, or from a local file with --file.\n" +
			"The build argument is substituted into paths.stream from the config, or used as the path.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := getRootOptions(cmd)
			if err != nil {
				return err
			}
			if file == "" && len(args) == 0 {
				return errors.New("need a build to follow or --file")
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			var filterOpts []term.Option
			if htmlOut != "" {
				if filterOpts, err = opts.filterOptions(); err != nil {
					return err
				}
			}

			loop := frame.NewLoop(opts.FPS)
			sink := newTerminalSink(cmd.OutOrStdout(), plain, htmlOut != "", filterOpts...)
			ended := make(chan struct{})
			var endOnce sync.Once

			mopts := stream.Options{
				Formatter:  &logline.Formatter{Next: ansi.Passthrough{}},
				Frames:     loop,
				AutoFollow: opts.AutoFollow,
				OnClose:    func() { endOnce.Do(func() { close(ended) }) },
			}

			var m *stream.Manager
			if file != "" {
				conn, err := stream.OpenFile(file, stream.FileOptions{Follow: !noFollow, TailBytes: tailBytes})
				if err != nil {
					return err
				}
				mopts.Name = file
				if m, err = stream.New(conn, mopts); err != nil {
					_ = conn.Close()
					return err
				}
			} else {
				if err := opts.requireServer(); err != nil {
					return err
				}
				var header http.Header
				if opts.Token != "" {
					header = http.Header{"Authorization": []string{"Bearer " + opts.Token}}
				}
				m, err = stream.Dial(ctx, opts.Server, resolvePath(opts.Paths.Stream, args[0]), header, mopts)
				if err != nil {
					return err
				}
			}
			defer func() { _ = m.Close() }()

			eg, egCtx := errgroup.WithContext(ctx)
			eg.Go(func() error {
				return ignoreCanceled(loop.Run(egCtx))
			})
			eg.Go(func() error {
				if err := m.StartOutput(sink); err != nil {
					return err
				}
				select {
				case <-egCtx.Done():
				case <-ended:
					settle(m, loop.Interval())
				}
				cancel()
				return nil
			})
			if err := eg.Wait(); err != nil {
				return errors.Wrap(err, "follow")
			}
			if err := m.Err(); err != nil {
				log.Warn().Err(err).Msg("stream ended with error")
			}
			if htmlOut != "" {
				return sink.writeHTML(htmlOut)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Read a local log file instead of the server")
	cmd.Flags().Int64Var(&tailBytes, "tail-bytes", 0, "With --file, start at most this many bytes before the end")
	cmd.Flags().BoolVar(&noFollow, "no-follow", false, "With --file, stop at end of file")
	cmd.Flags().BoolVar(&plain, "plain", false, "Strip escape sequences from the output")
	cmd.Flags().StringVar(&htmlOut, "html-out", "", "Also write the folded log as HTML to this file")
	return cmd
}

// settle lets the manager flush what it still holds and waits until its
// output loop has stopped.
func settle(m *stream.Manager, interval time.Duration) {
	m.StopOutput()
	deadline := time.Now().Add(50 * interval)
	for m.Running() && time.Now().Before(deadline) {
		time.Sleep(interval)
	}
}

func writeHTMLFile(path string, logs *term.Container) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create html output")
	}
	if err := writePage(f, logs); err != nil {
		_ = f.Close()
		return err
	}
	return errors.Wrap(f.Close(), "close html output")
}
