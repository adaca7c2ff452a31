package cmds

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-go-golems/livelog/pkg/client"
	"github.com/go-go-golems/livelog/pkg/config"
	"github.com/go-go-golems/livelog/pkg/script"
	"github.com/go-go-golems/livelog/pkg/term"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type rootOptions struct {
	Server       string
	Token        string
	Scope        string
	FPS          int
	MaxBlockSize int
	AutoFollow   bool
	Timeout      time.Duration
	Paths        config.Paths
	FoldScript   string
}

func AddRootFlags(root *cobra.Command) {
	addRootFlags(root)
}

func addRootFlags(root *cobra.Command) {
	root.PersistentFlags().String("config", "", "Path to config file (defaults to .livelog.yaml in the current directory)")
	root.PersistentFlags().String("server", "", "Server base URL, e.g. https://ci.example.com")
	root.PersistentFlags().String("token", "", "Bearer token for the server (or LIVELOG_TOKEN)")
	root.PersistentFlags().String("scope", "", "Space or repository the builds belong to")
	root.PersistentFlags().Int("fps", config.DefaultFPS, "Screen updates per second")
	root.PersistentFlags().Int("max-block-size", config.DefaultMaxBlockSize, "Most lines rendered per frame when catching up")
	root.PersistentFlags().Bool("auto-follow", true, "Keep the newest output in view")
	root.PersistentFlags().Duration("timeout", 30*time.Second, "Timeout for plain HTTP requests")
	root.PersistentFlags().String("fold-script", "", "JS file with fold and rewrite hooks for log lines")
}

// getRootOptions merges the config file with flags. Flags set on the command
// line win.
func getRootOptions(cmd *cobra.Command) (rootOptions, error) {
	flags := cmd.Root().PersistentFlags()

	cfgPath, err := flags.GetString("config")
	if err != nil {
		return rootOptions{}, err
	}
	if cfgPath == "" {
		wd, err := os.Getwd()
		if err != nil {
			return rootOptions{}, err
		}
		cfgPath = config.DefaultPath(wd)
	} else if !filepath.IsAbs(cfgPath) {
		cfgPath, err = filepath.Abs(cfgPath)
		if err != nil {
			return rootOptions{}, err
		}
	}
	cfg, err := config.LoadOptional(cfgPath)
	if err != nil {
		return rootOptions{}, err
	}

	opts := rootOptions{
		Server:       cfg.Server,
		Token:        cfg.Token,
		Scope:        cfg.Scope,
		FPS:          cfg.FPSOrDefault(),
		MaxBlockSize: cfg.MaxBlockSizeOrDefault(),
		AutoFollow:   cfg.AutoFollowOrDefault(),
		Timeout:      cfg.Timeout,
		Paths:        cfg.Paths,
		FoldScript:   cfg.FoldScript,
	}
	if opts.Token == "" {
		opts.Token = os.Getenv("LIVELOG_TOKEN")
	}

	for name, dst := range map[string]*string{
		"server":      &opts.Server,
		"token":       &opts.Token,
		"scope":       &opts.Scope,
		"fold-script": &opts.FoldScript,
	} {
		if err := mergeString(flags, name, dst); err != nil {
			return rootOptions{}, err
		}
	}
	if flags.Changed("fps") {
		if opts.FPS, err = flags.GetInt("fps"); err != nil {
			return rootOptions{}, err
		}
	}
	if flags.Changed("max-block-size") {
		if opts.MaxBlockSize, err = flags.GetInt("max-block-size"); err != nil {
			return rootOptions{}, err
		}
	}
	if flags.Changed("auto-follow") {
		if opts.AutoFollow, err = flags.GetBool("auto-follow"); err != nil {
			return rootOptions{}, err
		}
	}
	if flags.Changed("timeout") || opts.Timeout == 0 {
		if opts.Timeout, err = flags.GetDuration("timeout"); err != nil {
			return rootOptions{}, err
		}
	}

	if opts.FPS <= 0 {
		return rootOptions{}, errors.New("fps must be > 0")
	}
	if opts.MaxBlockSize <= 0 {
		return rootOptions{}, errors.New("max-block-size must be > 0")
	}
	if opts.Timeout <= 0 {
		return rootOptions{}, errors.New("timeout must be > 0")
	}
	opts.Server = strings.TrimRight(opts.Server, "/")
	return opts, nil
}

// mergeString overwrites dst with the flag value when the flag was given or
// dst is still empty.
func mergeString(flags *pflag.FlagSet, name string, dst *string) error {
	if !flags.Changed(name) && *dst != "" {
		return nil
	}
	v, err := flags.GetString(name)
	if err != nil {
		return err
	}
	if v != "" {
		*dst = v
	}
	return nil
}

func (o rootOptions) requireServer() error {
	if o.Server == "" {
		return errors.New("no server configured (use --server or set server in .livelog.yaml)")
	}
	return nil
}

// filterOptions loads the fold script, if any. Every call returns a fresh
// script runtime, so each filter gets its own.
func (o rootOptions) filterOptions() ([]term.Option, error) {
	if o.FoldScript == "" {
		return nil, nil
	}
	m, err := script.LoadFromFile(o.FoldScript, script.Options{HookTimeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "load fold script %s", o.FoldScript)
	}
	return m.Options(), nil
}

func (o rootOptions) client() *client.Client {
	return client.New(o.Server, client.Options{
		Timeout:    o.Timeout,
		Token:      o.Token,
		BuildsPath: o.Paths.Builds,
		Retries:    2,
	})
}

// resolvePath substitutes arg into a configured route, or uses arg as the
// path when no route is configured.
func resolvePath(route, arg string) string {
	if route == "" || !strings.Contains(route, "%s") {
		return arg
	}
	return strings.Replace(route, "%s", arg, 1)
}

func ignoreCanceled(err error) error {
	if stderrors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
