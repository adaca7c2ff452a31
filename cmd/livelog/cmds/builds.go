package cmds

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/go-go-golems/livelog/pkg/build"
	"github.com/go-go-golems/livelog/pkg/events"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newBuildsCmd() *cobra.Command {
	var watch bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "builds",
		Short: "List builds of a scope, optionally following status events",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := getRootOptions(cmd)
			if err != nil {
				return err
			}
			if err := opts.requireServer(); err != nil {
				return err
			}
			if opts.Scope == "" {
				return errors.New("no scope configured (use --scope)")
			}

			c := opts.client()
			records, err := c.ListBuilds(cmd.Context(), opts.Scope)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if !watch {
					return errors.Wrap(enc.Encode(records), "encode builds")
				}
				for _, r := range records {
					if err := enc.Encode(r); err != nil {
						return errors.Wrap(err, "encode build")
					}
				}
			} else if err := printBuilds(out, records); err != nil {
				return err
			}
			if !watch {
				return nil
			}

			reg := events.NewRegistry(&events.HTTPDialer{Client: c.Streaming(), Path: opts.Paths.Events})
			list := build.NewList()
			for _, r := range records {
				list.Upsert(r)
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			var mu sync.Mutex
			var streamErr error
			sub := reg.Subscribe(opts.Scope, build.StatusEvents, func(ev events.Event) {
				r, err := build.FromEvent(ev.Name, []byte(ev.Data))
				if err != nil {
					log.Warn().Err(err).Str("event", ev.Name).Msg("skip build event")
					return
				}
				idx, added := list.Upsert(r)
				if merged, ok := list.At(idx); ok {
					r = merged
				}
				mu.Lock()
				defer mu.Unlock()
				if asJSON {
					_ = json.NewEncoder(out).Encode(r)
					return
				}
				verb := "updated"
				if added {
					verb = "new"
				}
				_, _ = fmt.Fprintf(out, "%s  %-7s %s\n", time.Now().Format("15:04:05"), verb, describeBuild(r))
			}, func(err error) {
				mu.Lock()
				streamErr = err
				mu.Unlock()
				cancel()
			})
			defer sub.Close()

			if err := sub.SetEnabled(ctx, true); err != nil {
				return err
			}
			<-ctx.Done()

			mu.Lock()
			defer mu.Unlock()
			if streamErr != nil {
				return errors.Wrap(streamErr, "build events")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "Keep running and print build status changes")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print builds as JSON")
	return cmd
}

func describeBuild(r build.Record) string {
	return fmt.Sprintf("#%d %s %s %s", r.Number, r.Status, r.Branch, r.ShortCommit())
}

func printBuilds(w io.Writer, records []build.Record) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "NUMBER\tSTATUS\tBRANCH\tCOMMIT\tDURATION\tMESSAGE")
	now := time.Now()
	for _, r := range records {
		dur := ""
		if d := r.Duration(now); d > 0 {
			dur = d.Round(time.Second).String()
		}
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", r.Number, r.Status, r.Branch, r.ShortCommit(), dur, firstLine(r.Message))
	}
	return errors.Wrap(tw.Flush(), "print builds")
}

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}
