package term

import (
	"fmt"
	"html"
	"io"
	"time"

	"github.com/pkg/errors"
)

// LineRecord is one rendered line of output.
type LineRecord struct {
	Pos int
	// Raw is the line as received, without its terminator.
	Raw string
	// Text is the visible part of Raw after carriage-return rewrites. It still
	// carries escape sequences.
	Text string
	// Rendered is the formatter output, HTML for ansi.Formatter.
	Rendered string
	// Elapsed is the time since the enclosing block started.
	Elapsed time.Duration
	// Partial marks a line still waiting for its terminator.
	Partial bool
}

// FoldBlock groups the lines following a command or info marker.
type FoldBlock struct {
	ID        int
	Title     string
	Started   time.Time
	Collapsed bool
	Lines     []LineRecord
}

func (b *FoldBlock) Toggle() {
	b.Collapsed = !b.Collapsed
}

func (b *FoldBlock) Len() int {
	return len(b.Lines)
}

// Container is the render target of a Filter.
type Container struct {
	Blocks []*FoldBlock
}

func NewContainer() *Container {
	return &Container{}
}

// Current is the block new lines are appended to, or nil.
func (c *Container) Current() *FoldBlock {
	if len(c.Blocks) == 0 {
		return nil
	}
	return c.Blocks[len(c.Blocks)-1]
}

// Lines counts lines across all blocks.
func (c *Container) Lines() int {
	n := 0
	for _, b := range c.Blocks {
		n += len(b.Lines)
	}
	return n
}

func (c *Container) Block(id int) *FoldBlock {
	for _, b := range c.Blocks {
		if b.ID == id {
			return b
		}
	}
	return nil
}

// WriteHTML renders every block as a details element with one div per line.
func (c *Container) WriteHTML(w io.Writer) error {
	for _, b := range c.Blocks {
		open := " open"
		if b.Collapsed {
			open = ""
		}
		if _, err := fmt.Fprintf(w, "<details class=\"fold\" id=\"fold-%d\"%s>\n<summary>%s</summary>\n", b.ID, open, html.EscapeString(b.Title)); err != nil {
			return errors.Wrap(err, "write fold")
		}
		for _, l := range b.Lines {
			if _, err := fmt.Fprintf(w, "<div class=\"line\" data-pos=\"%d\">%s</div>\n", l.Pos, l.Rendered); err != nil {
				return errors.Wrap(err, "write line")
			}
		}
		if _, err := io.WriteString(w, "</details>\n"); err != nil {
			return errors.Wrap(err, "write fold")
		}
	}
	return nil
}
