package term

import (
	"html"
	"strings"
	"time"

	xansi "github.com/charmbracelet/x/ansi"
)

// Prefixes that open a new fold block.
const (
	CommandPrefix = "$ "
	InfoPrefix    = "[info] "
)

// DefaultBlank is what an empty line renders as.
const DefaultBlank = "&nbsp;"

// FoldRule decides whether raw opens a new fold and what the fold is called.
type FoldRule func(raw string) (title string, start bool)

// DefaultFoldRule opens a fold on command and info lines, titled with the
// line without escape sequences.
func DefaultFoldRule(raw string) (string, bool) {
	if strings.HasPrefix(raw, CommandPrefix) || strings.HasPrefix(raw, InfoPrefix) {
		return xansi.Strip(raw), true
	}
	return "", false
}

// LineHook may rewrite a complete line before it is folded. Returning false
// drops the line.
type LineHook func(raw string) (string, bool)

// LineFormatter renders the visible text of one line. ansi.Formatter is the
// usual implementation.
type LineFormatter interface {
	Format(text string) string
}

type Option func(*Filter)

// WithBlank sets what an empty line renders as.
func WithBlank(s string) Option {
	return func(f *Filter) {
		f.blank = s
	}
}

func WithFoldRule(rule FoldRule) Option {
	return func(f *Filter) {
		f.fold = rule
	}
}

func WithLineHook(hook LineHook) Option {
	return func(f *Filter) {
		f.hook = hook
	}
}

// WithClock replaces time.Now for elapsed annotations.
func WithClock(now func() time.Time) Option {
	return func(f *Filter) {
		f.now = now
	}
}

// Filter splits incoming text into lines and groups them into fold blocks.
// A Filter is not safe for concurrent use.
type Filter struct {
	format LineFormatter
	now    func() time.Time
	blank  string
	fold   FoldRule
	hook   LineHook

	tail   string
	shown  *shownTail
	pos    int
	nextID int
}

// shownTail is the provisional record currently standing in for tail.
type shownTail struct {
	block    *FoldBlock
	replaced *LineRecord
}

// previewer renders text without advancing formatter state.
type previewer interface {
	Preview(text string) string
}

func NewFilter(format LineFormatter, opts ...Option) *Filter {
	f := &Filter{format: format, now: time.Now, blank: DefaultBlank, fold: DefaultFoldRule}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Append adds text to c. Text after the last newline is held until a later
// call completes the line or Flush is called. Meanwhile it is shown as a
// Partial record at the end of the current block, replaced by the next call.
func (f *Filter) Append(c *Container, text string) {
	f.retract()
	defer f.show(c)
	text = strings.ReplaceAll(f.tail+text, "\r\n", "\n")
	f.tail = ""

	// a trailing \r may still pair with a \n from the next chunk
	lines := strings.SplitAfter(text, "\n")
	if last := lines[len(lines)-1]; !strings.HasSuffix(last, "\n") {
		f.tail = last
		lines = lines[:len(lines)-1]
	}
	for _, line := range lines {
		f.appendLine(c, strings.TrimSuffix(line, "\n"))
	}
}

// Flush renders a held back partial line.
func (f *Filter) Flush(c *Container) {
	f.retract()
	if f.tail == "" {
		return
	}
	line := f.tail
	f.tail = ""
	f.appendLine(c, line)
}

// Pending reports whether a partial line is buffered.
func (f *Filter) Pending() bool {
	return f.tail != ""
}

// show puts a provisional record for tail into the current block. Fold
// rules and line hooks only see complete lines, so a partial line before
// the first fold waits unseen.
func (f *Filter) show(c *Container) {
	block := c.Current()
	if f.tail == "" || block == nil {
		return
	}
	text := visible(f.tail)
	if text == "" {
		return
	}
	rec := LineRecord{
		Pos:      f.pos + 1,
		Raw:      f.tail,
		Text:     text,
		Rendered: f.preview(text),
		Elapsed:  f.now().Sub(block.Started),
		Partial:  true,
	}
	s := &shownTail{block: block}
	if n := len(block.Lines); strings.HasPrefix(f.tail, "\r") && n > 0 {
		last := block.Lines[n-1]
		s.replaced = &last
		rec.Pos = last.Pos
		block.Lines[n-1] = rec
	} else {
		block.Lines = append(block.Lines, rec)
	}
	f.shown = s
}

// retract undoes show.
func (f *Filter) retract() {
	s := f.shown
	if s == nil {
		return
	}
	f.shown = nil
	b := s.block
	if n := len(b.Lines); n > 0 && b.Lines[n-1].Partial {
		b.Lines = b.Lines[:n-1]
	}
	if s.replaced != nil {
		b.Lines = append(b.Lines, *s.replaced)
	}
}

func (f *Filter) preview(text string) string {
	if p, ok := f.format.(previewer); ok {
		return p.Preview(text)
	}
	return html.EscapeString(xansi.Strip(text))
}

func (f *Filter) appendLine(c *Container, raw string) {
	if f.hook != nil {
		var keep bool
		if raw, keep = f.hook(raw); !keep {
			return
		}
	}
	now := f.now()
	block := c.Current()
	title, start := f.fold(raw)
	if block == nil || start {
		if !start {
			title = xansi.Strip(raw)
		}
		f.nextID++
		block = &FoldBlock{
			ID:      f.nextID,
			Title:   title,
			Started: now,
		}
		c.Blocks = append(c.Blocks, block)
	}

	pos := 0
	if strings.HasPrefix(raw, "\r") && len(block.Lines) > 0 {
		pos = block.Lines[len(block.Lines)-1].Pos
		block.Lines = block.Lines[:len(block.Lines)-1]
	} else {
		f.pos++
		pos = f.pos
	}

	text := visible(raw)
	rendered := f.blank
	if text != "" {
		rendered = f.format.Format(text)
	}
	block.Lines = append(block.Lines, LineRecord{
		Pos:      pos,
		Raw:      raw,
		Text:     text,
		Rendered: rendered,
		Elapsed:  now.Sub(block.Started),
	})
}

// visible keeps what a terminal would show after carriage returns: the text
// following the last \r that is not at the end of the line.
func visible(raw string) string {
	s := strings.TrimRight(raw, "\r")
	if i := strings.LastIndexByte(s, '\r'); i >= 0 {
		return s[i+1:]
	}
	return s
}
