package cmds

import (
	"context"
	"net/http"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/livelog/pkg/ansi"
	"github.com/go-go-golems/livelog/pkg/events"
	"github.com/go-go-golems/livelog/pkg/frame"
	"github.com/go-go-golems/livelog/pkg/logline"
	"github.com/go-go-golems/livelog/pkg/stream"
	"github.com/go-go-golems/livelog/pkg/tui"
	"github.com/go-go-golems/livelog/pkg/tui/models"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newWatchCmd() *cobra.Command {
	var build string
	var history string
	var altScreen bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Interactive terminal UI for builds and their logs",
		Long: "Show the builds of --scope as they change, and optionally the live log of --build\n" +
			"or the replayed log of a finished build with --history.",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := getRootOptions(cmd)
			if err != nil {
				return err
			}
			if err := opts.requireServer(); err != nil {
				return err
			}
			if opts.Scope == "" && build == "" && history == "" {
				return errors.New("nothing to watch: set --scope, --build or --history")
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			c := opts.client()
			var lines []string
			if history != "" {
				payload, err := c.FetchLog(ctx, resolvePath(opts.Paths.Logs, history))
				if err != nil {
					return err
				}
				lines = logline.TextLines(payload, nil)
			}

			bus, err := tui.NewInMemoryBus()
			if err != nil {
				return err
			}
			tui.RegisterDomainToUITransformer(bus)

			loop := frame.NewLoop(opts.FPS)
			feed, err := tui.NewLogFeed(bus, loop, opts.MaxBlockSize)
			if err != nil {
				return err
			}
			defer func() { _ = feed.Close() }()

			var watcher *tui.BuildWatcher
			if opts.Scope != "" {
				watcher = &tui.BuildWatcher{
					Bus:      bus,
					Lister:   c,
					Registry: events.NewRegistry(&events.HTTPDialer{Client: c.Streaming(), Path: opts.Paths.Events}),
					Scope:    opts.Scope,
				}
			}
			tui.RegisterActionRunner(ctx, bus, watcher, feed)

			filterOpts, err := opts.filterOptions()
			if err != nil {
				return err
			}

			start := models.ViewLog
			if watcher != nil && build == "" && history == "" {
				start = models.ViewBuilds
			}
			model := models.NewRootModel(models.RootOptions{
				Start:   start,
				Follow:  opts.AutoFollow,
				History: len(lines),
				Filter:  filterOpts,
				Act: func(req tui.ActionRequest) error {
					return tui.PublishAction(bus, req)
				},
			})
			programOptions := []tea.ProgramOption{
				tea.WithInput(cmd.InOrStdin()),
				tea.WithOutput(cmd.OutOrStdout()),
			}
			if altScreen {
				programOptions = append(programOptions, tea.WithAltScreen())
			}
			program := tea.NewProgram(model, programOptions...)
			tui.RegisterUIForwarder(bus, program)

			// publishing before the router runs would drop messages
			running := func(ctx context.Context) bool {
				select {
				case <-bus.Running():
					return true
				case <-ctx.Done():
					return false
				}
			}

			eg, egCtx := errgroup.WithContext(ctx)
			eg.Go(func() error {
				return ignoreCanceled(bus.Run(egCtx))
			})
			eg.Go(func() error {
				return ignoreCanceled(loop.Run(egCtx))
			})
			if watcher != nil {
				eg.Go(func() error {
					if !running(egCtx) {
						return nil
					}
					return ignoreCanceled(watcher.Run(egCtx))
				})
			}
			if build != "" || len(lines) > 0 {
				eg.Go(func() error {
					if !running(egCtx) {
						return nil
					}
					feed.Replay(lines)
					if build == "" {
						return nil
					}
					return followLive(egCtx, opts, build, loop, feed)
				})
			}
			eg.Go(func() error {
				_, err := program.Run()
				cancel()
				return ignoreCanceled(err)
			})

			if err := eg.Wait(); err != nil {
				return errors.Wrap(err, "tui")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&build, "build", "", "Follow the live log of this build (substituted into paths.stream)")
	cmd.Flags().StringVar(&history, "history", "", "Replay the finished log of this build (substituted into paths.logs)")
	cmd.Flags().BoolVar(&altScreen, "alt-screen", true, "Use the terminal alternate screen buffer")
	return cmd
}

// followLive connects the live log of build to feed. A failed dial is shown
// in the UI instead of ending the program.
func followLive(ctx context.Context, opts rootOptions, build string, loop *frame.Loop, feed *tui.LogFeed) error {
	var header http.Header
	if opts.Token != "" {
		header = http.Header{"Authorization": []string{"Bearer " + opts.Token}}
	}
	ended := make(chan struct{})
	m, err := stream.Dial(ctx, opts.Server, resolvePath(opts.Paths.Stream, build), header, stream.Options{
		Formatter: &logline.Formatter{Next: ansi.Passthrough{}},
		Frames:    loop,
		Name:      build,
		OnClose:   func() { close(ended) },
	})
	if err != nil {
		feed.Ended(err)
		return nil
	}
	if err := feed.Follow(m); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
	case <-ended:
		settle(m, loop.Interval())
		feed.Ended(m.Err())
	}
	return nil
}
