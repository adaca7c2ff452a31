package term

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/go-go-golems/livelog/pkg/ansi"
	"github.com/stretchr/testify/require"
)

func newTestFilter() (*Filter, *time.Time) {
	now := time.Unix(100, 0)
	return NewFilter(ansi.NewFormatter(), WithClock(func() time.Time { return now })), &now
}

func htmlOf(b *FoldBlock) []string {
	var out []string
	for _, l := range b.Lines {
		out = append(out, l.Rendered)
	}
	return out
}

func TestTwoFoldsFromCommandPrefixes(t *testing.T) {
	f, _ := newTestFilter()
	c := NewContainer()
	f.Append(c, "$ make\nok\n$ test\npass\n")

	require.Len(t, c.Blocks, 2)
	require.Equal(t, "$ make", c.Blocks[0].Title)
	require.Equal(t, []string{"$ make", "ok"}, htmlOf(c.Blocks[0]))
	require.Equal(t, []string{"$ test", "pass"}, htmlOf(c.Blocks[1]))
	require.Equal(t, 4, c.Lines())
}

func TestInfoPrefixOpensBlock(t *testing.T) {
	f, _ := newTestFilter()
	c := NewContainer()
	f.Append(c, "booting\n[info] Pulling image\nlayer 1\n")

	require.Len(t, c.Blocks, 2)
	require.Equal(t, []string{"booting"}, htmlOf(c.Blocks[0]))
	require.Equal(t, []string{"[info] Pulling image", "layer 1"}, htmlOf(c.Blocks[1]))
}

func TestCarriageReturnOverwritesPreviousLine(t *testing.T) {
	f, _ := newTestFilter()
	c := NewContainer()
	f.Append(c, "progress 10%\n")
	f.Append(c, "\rprogress 50%\n")

	require.Len(t, c.Blocks, 1)
	require.Equal(t, []string{"progress 50%"}, htmlOf(c.Blocks[0]))
	require.Equal(t, 1, c.Blocks[0].Lines[0].Pos)
	require.Equal(t, "\rprogress 50%", c.Blocks[0].Lines[0].Raw)
}

func TestInlineCarriageReturnKeepsLastSegment(t *testing.T) {
	f, _ := newTestFilter()
	c := NewContainer()
	f.Append(c, "a\rb\rdone\r\n")

	require.Equal(t, []string{"done"}, htmlOf(c.Current()))
}

func TestBareTerminatorRendersNbsp(t *testing.T) {
	f, _ := newTestFilter()
	c := NewContainer()
	f.Append(c, "x\n\n")

	require.Equal(t, []string{"x", "&nbsp;"}, htmlOf(c.Current()))
}

func TestPartialLinesWaitForTerminator(t *testing.T) {
	f, _ := newTestFilter()
	c := NewContainer()
	f.Append(c, "$ go bu")
	require.Empty(t, c.Blocks)
	require.True(t, f.Pending())

	f.Append(c, "ild ./...\r")
	f.Append(c, "\nnext")
	require.Len(t, c.Blocks, 1)
	require.Equal(t, []string{"$ go build ./...", "next"}, htmlOf(c.Blocks[0]))
	require.True(t, c.Blocks[0].Lines[1].Partial)

	f.Flush(c)
	require.False(t, f.Pending())
	require.Equal(t, []string{"$ go build ./...", "next"}, htmlOf(c.Blocks[0]))
	require.False(t, c.Blocks[0].Lines[1].Partial)
	require.Equal(t, 2, c.Blocks[0].Lines[1].Pos)
}

func TestProgressRedrawShowsBeforeNewline(t *testing.T) {
	f, _ := newTestFilter()
	c := NewContainer()
	f.Append(c, "$ build\ndownloading\n")
	f.Append(c, "\r10%")
	require.Equal(t, []string{"$ build", "10%"}, htmlOf(c.Blocks[0]))
	require.True(t, f.Pending())

	f.Append(c, "\r50%")
	require.Equal(t, []string{"$ build", "50%"}, htmlOf(c.Blocks[0]))
	require.Equal(t, 2, c.Blocks[0].Lines[1].Pos)

	f.Append(c, "\ndone\n")
	require.Equal(t, []string{"$ build", "50%", "done"}, htmlOf(c.Blocks[0]))
	for _, l := range c.Blocks[0].Lines {
		require.False(t, l.Partial)
	}
	require.Equal(t, 3, c.Blocks[0].Lines[2].Pos)
}

func TestPartialPreviewLeavesStylesAlone(t *testing.T) {
	f, _ := newTestFilter()
	c := NewContainer()
	f.Append(c, "$ x\n\x1b[31mred")
	require.Equal(t, `<span style="color:red;">red`, c.Blocks[0].Lines[1].Rendered)

	f.Append(c, " still\x1b[0m\n")
	require.Equal(t, []string{"$ x", `<span style="color:red;">red still</span>`}, htmlOf(c.Blocks[0]))
}

func TestStylesCarryAcrossLines(t *testing.T) {
	f, _ := newTestFilter()
	c := NewContainer()
	f.Append(c, "\x1b[31mred\nstill\x1b[0m\n")

	require.Equal(t, []string{`<span style="color:red;">red`, "still</span>"}, htmlOf(c.Current()))
}

func TestElapsedIsRelativeToBlockStart(t *testing.T) {
	f, now := newTestFilter()
	c := NewContainer()
	f.Append(c, "$ sleep 2\n")
	*now = now.Add(2 * time.Second)
	f.Append(c, "woke\n")

	require.Equal(t, time.Duration(0), c.Current().Lines[0].Elapsed)
	require.Equal(t, 2*time.Second, c.Current().Lines[1].Elapsed)
}

func TestWriteHTML(t *testing.T) {
	f, _ := newTestFilter()
	c := NewContainer()
	f.Append(c, "$ echo <hi>\n<hi>\n")
	c.Blocks[0].Toggle()

	var buf bytes.Buffer
	require.NoError(t, c.WriteHTML(&buf))
	out := buf.String()
	require.True(t, strings.HasPrefix(out, `<details class="fold" id="fold-1">`))
	require.Contains(t, out, "<summary>$ echo &lt;hi&gt;</summary>")
	require.Contains(t, out, `<div class="line" data-pos="2">&lt;hi&gt;</div>`)
	require.True(t, c.Block(1).Collapsed)
}

func TestCustomFoldRuleAndLineHook(t *testing.T) {
	c := NewContainer()
	f := NewFilter(ansi.NewFormatter(),
		WithFoldRule(func(raw string) (string, bool) {
			if strings.HasPrefix(raw, "::group::") {
				return strings.TrimPrefix(raw, "::group::"), true
			}
			return "", false
		}),
		WithLineHook(func(raw string) (string, bool) {
			if strings.HasPrefix(raw, "::debug::") {
				return "", false
			}
			return strings.ReplaceAll(raw, "secret", "***"), true
		}),
	)
	f.Append(c, "::group::Build\n$ make\n::debug::noise\nsecret token\n::group::Test\nok\n")

	require.Len(t, c.Blocks, 2)
	require.Equal(t, "Build", c.Blocks[0].Title)
	require.Equal(t, "Test", c.Blocks[1].Title)
	require.Equal(t, []string{"::group::Build", "$ make", "*** token"}, htmlOf(c.Blocks[0]))
	require.Equal(t, 3, c.Blocks[0].Lines[2].Pos)
}
