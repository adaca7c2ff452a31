package script

import (
	"fmt"
	"os"
	"strings"
	"time"

	xansi "github.com/charmbracelet/x/ansi"
	"github.com/dop251/goja"
	"github.com/go-go-golems/livelog/pkg/term"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var ErrNoRegister = errors.New("script did not call register()")
var ErrHookTimeout = errors.New("script hook timeout")

type Options struct {
	// HookTimeout interrupts a hook that runs longer. Zero disables it.
	HookTimeout time.Duration
}

type Stats struct {
	Lines        int64
	Folds        int64
	Dropped      int64
	HookErrors   int64
	HookTimeouts int64
}

// Module is a loaded fold script. Scripts call
//
//	register({ name, fold(line, ctx), rewrite(line, ctx) })
//
// where fold returns a title, true, or nothing, and rewrite returns the
// replacement line, or null to drop it. Either hook may be left out.
//
// A Module wraps one goja runtime and is not safe for concurrent use.
type Module struct {
	vm     *goja.Runtime
	opts   Options
	config *goja.Object
	name   string

	foldFn    goja.Callable
	rewriteFn goja.Callable

	state *goja.Object
	line  int64
	stats Stats
}

func LoadFromFile(path string, opts Options) (*Module, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read script")
	}
	return Load(path, string(b), opts)
}

// Load compiles src. name is used in error positions.
func Load(name, src string, opts Options) (*Module, error) {
	m := &Module{vm: goja.New(), opts: opts}
	m.state = m.vm.NewObject()
	enableConsole(m.vm)

	if err := m.vm.Set("register", func(config goja.Value) error {
		if m.config != nil {
			return errors.New("register() called more than once")
		}
		if isNullish(config) {
			return errors.New("register(config) requires a config object")
		}
		m.config = config.ToObject(m.vm)
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "set register")
	}
	if err := injectHelpers(m); err != nil {
		return nil, err
	}

	prog, err := goja.Compile(name, src, false)
	if err != nil {
		return nil, errors.Wrap(err, "compile script")
	}
	if _, err := m.vm.RunProgram(prog); err != nil {
		return nil, errors.Wrap(err, "run script")
	}
	if m.config == nil {
		return nil, ErrNoRegister
	}

	m.name = name
	if v := m.config.Get("name"); !isNullish(v) && strings.TrimSpace(v.String()) != "" {
		m.name = v.String()
	}
	if fn, ok := goja.AssertFunction(m.config.Get("fold")); ok {
		m.foldFn = fn
	}
	if fn, ok := goja.AssertFunction(m.config.Get("rewrite")); ok {
		m.rewriteFn = fn
	}
	if m.foldFn == nil && m.rewriteFn == nil {
		return nil, errors.New("register({ fold, rewrite }): at least one hook is required")
	}
	return m, nil
}

func (m *Module) Name() string {
	return m.name
}

func (m *Module) Stats() Stats {
	return m.stats
}

// Options returns the filter options for the hooks the script defines.
// When fold is left out the default rule stays in place.
func (m *Module) Options() []term.Option {
	var out []term.Option
	if m.foldFn != nil {
		out = append(out, term.WithFoldRule(m.Fold))
	}
	if m.rewriteFn != nil {
		out = append(out, term.WithLineHook(m.Rewrite))
	}
	return out
}

// Fold runs the fold hook on raw. A failing hook falls back to
// term.DefaultFoldRule for that line.
func (m *Module) Fold(raw string) (string, bool) {
	if m.rewriteFn == nil {
		m.line++
		m.stats.Lines++
	}
	if m.foldFn == nil {
		return term.DefaultFoldRule(raw)
	}
	text := xansi.Strip(raw)
	v, err := m.callHook("fold", m.foldFn, m.vm.ToValue(text), m.context("fold"))
	if err != nil {
		m.hookFailed("fold", err)
		return term.DefaultFoldRule(raw)
	}
	if isNullish(v) {
		return "", false
	}
	if s, ok := v.Export().(string); ok {
		if s == "" {
			return "", false
		}
		m.stats.Folds++
		return s, true
	}
	if v.ToBoolean() {
		m.stats.Folds++
		return text, true
	}
	return "", false
}

// Rewrite runs the rewrite hook on raw. Non-string results other than null
// keep the line unchanged.
func (m *Module) Rewrite(raw string) (string, bool) {
	m.line++
	m.stats.Lines++
	if m.rewriteFn == nil {
		return raw, true
	}
	v, err := m.callHook("rewrite", m.rewriteFn, m.vm.ToValue(raw), m.context("rewrite"))
	if err != nil {
		m.hookFailed("rewrite", err)
		return raw, true
	}
	if v == nil || goja.IsNull(v) {
		m.stats.Dropped++
		return "", false
	}
	if s, ok := v.Export().(string); ok {
		return s, true
	}
	return raw, true
}

func (m *Module) context(hook string) *goja.Object {
	obj := m.vm.NewObject()
	_ = obj.Set("hook", hook)
	_ = obj.Set("lineNumber", m.line)
	_ = obj.Set("state", m.state)
	return obj
}

func (m *Module) callHook(hook string, fn goja.Callable, args ...goja.Value) (goja.Value, error) {
	if m.opts.HookTimeout > 0 {
		timer := time.AfterFunc(m.opts.HookTimeout, func() {
			m.vm.Interrupt(ErrHookTimeout)
		})
		defer timer.Stop()
		defer m.vm.ClearInterrupt()
	}
	v, err := fn(goja.Undefined(), args...)
	if err != nil {
		if isInterruptedByTimeout(err) {
			m.stats.HookTimeouts++
		}
		return nil, errors.Wrapf(err, "%s hook", hook)
	}
	return v, nil
}

func (m *Module) hookFailed(hook string, err error) {
	m.stats.HookErrors++
	log.Warn().Err(err).Str("script", m.name).Str("hook", hook).Int64("line", m.line).Msg("script hook failed")
}

// enableConsole sends console output to the log; stdout carries build output.
func enableConsole(vm *goja.Runtime) {
	obj := vm.NewObject()
	_ = obj.Set("log", func(call goja.FunctionCall) goja.Value {
		log.Info().Str("source", "script").Msg(joinArgs(call.Arguments))
		return goja.Undefined()
	})
	_ = obj.Set("warn", func(call goja.FunctionCall) goja.Value {
		log.Warn().Str("source", "script").Msg(joinArgs(call.Arguments))
		return goja.Undefined()
	})
	_ = obj.Set("error", func(call goja.FunctionCall) goja.Value {
		log.Error().Str("source", "script").Msg(joinArgs(call.Arguments))
		return goja.Undefined()
	})
	_ = vm.Set("console", obj)
}

func joinArgs(args []goja.Value) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		parts = append(parts, fmt.Sprint(a.Export()))
	}
	return strings.Join(parts, " ")
}

func isNullish(v goja.Value) bool {
	if v == nil {
		return true
	}
	return goja.IsUndefined(v) || goja.IsNull(v)
}

func isInterruptedByTimeout(err error) bool {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if v, ok := interrupted.Value().(error); ok && errors.Is(v, ErrHookTimeout) {
			return true
		}
	}
	return errors.Is(err, ErrHookTimeout)
}
