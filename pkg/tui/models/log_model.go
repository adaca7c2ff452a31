package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/livelog/pkg/ansi"
	"github.com/go-go-golems/livelog/pkg/term"
	"github.com/go-go-golems/livelog/pkg/tui"
	"github.com/go-go-golems/livelog/pkg/tui/styles"
	"github.com/go-go-golems/livelog/pkg/tui/widgets"
)

const sgrReset = "\x1b[0m"

// LogModel shows terminal output grouped into folds. It scrolls with new
// output only while following and already at the bottom, so reading
// scrolled-back output is not interrupted.
type LogModel struct {
	width  int
	height int

	filter *term.Filter
	logs   *term.Container

	follow bool
	cursor int

	historyDone  int
	historyTotal int

	ended  bool
	endErr string

	vp viewport.Model
}

// NewLogModel builds the view. opts are applied after the defaults.
func NewLogModel(follow bool, opts ...term.Option) LogModel {
	return LogModel{
		filter: term.NewFilter(ansi.Passthrough{}, append([]term.Option{term.WithBlank("")}, opts...)...),
		logs:   term.NewContainer(),
		follow: follow,
		vp:     viewport.New(0, 0),
	}
}

// WithHistory sets how many replayed lines to expect.
func (m LogModel) WithHistory(total int) LogModel {
	m.historyTotal = total
	return m
}

func (m LogModel) WithSize(width, height int) LogModel {
	atBottom := m.atBottom()
	m.width, m.height = width, height
	m.vp.Width = maxInt(0, width-2)
	m.vp.Height = maxInt(1, height-3)
	return m.refresh(m.follow && atBottom)
}

func (m LogModel) Following() bool {
	return m.follow
}

func (m LogModel) Container() *term.Container {
	return m.logs
}

func (m LogModel) Update(msg tea.Msg) (LogModel, tea.Cmd) {
	switch v := msg.(type) {
	case tui.LogAppendMsg:
		return m.append(v.Chunk), nil
	case tui.LogEndedMsg:
		m.filter.Flush(m.logs)
		m.ended = true
		m.endErr = v.End.Error
		return m.refresh(m.follow && m.atBottom()), nil
	case tea.KeyMsg:
		switch v.String() {
		case "f":
			m.follow = !m.follow
			return m.refresh(m.follow), nil
		case "enter", " ":
			if b := m.block(m.cursor); b != nil {
				b.Toggle()
			}
			return m.refresh(false), nil
		case "]":
			if m.cursor < len(m.logs.Blocks)-1 {
				m.cursor++
			}
			return m.refresh(false), nil
		case "[":
			if m.cursor > 0 {
				m.cursor--
			}
			return m.refresh(false), nil
		case "z":
			for _, b := range m.logs.Blocks {
				b.Collapsed = true
			}
			return m.refresh(false), nil
		case "Z":
			for _, b := range m.logs.Blocks {
				b.Collapsed = false
			}
			return m.refresh(false), nil
		case "G":
			m.vp.GotoBottom()
			return m, nil
		case "g":
			m.vp.GotoTop()
			return m, nil
		}
		var cmd tea.Cmd
		m.vp, cmd = m.vp.Update(v)
		return m, cmd
	}
	return m, nil
}

func (m LogModel) append(c tui.LogChunk) LogModel {
	atBottom := m.atBottom()
	if c.History {
		m.historyDone += strings.Count(c.Text, "\n")
	}
	m.filter.Append(m.logs, c.Text)
	if n := len(m.logs.Blocks); n > 0 && m.cursor < n-1 && m.follow {
		m.cursor = n - 1
	}
	return m.refresh(m.follow && atBottom)
}

// atBottom treats a viewport that was never sized as being at the bottom.
func (m LogModel) atBottom() bool {
	return m.vp.Height == 0 || m.vp.AtBottom()
}

func (m LogModel) block(i int) *term.FoldBlock {
	if i < 0 || i >= len(m.logs.Blocks) {
		return nil
	}
	return m.logs.Blocks[i]
}

func (m LogModel) refresh(gotoBottom bool) LogModel {
	theme := styles.DefaultTheme()
	var b strings.Builder
	for i, blk := range m.logs.Blocks {
		cursor := "  "
		if i == m.cursor {
			cursor = "> "
		}
		elapsed := time.Duration(0)
		if n := len(blk.Lines); n > 0 {
			elapsed = blk.Lines[n-1].Elapsed
		}
		b.WriteString(cursor)
		b.WriteString(theme.FoldTitle.Render(styles.FoldIcon(blk.Collapsed) + " " + blk.Title))
		b.WriteString(" ")
		b.WriteString(theme.Elapsed.Render(fmt.Sprintf("(%d lines, %s)", blk.Len(), elapsed.Round(time.Second))))
		b.WriteString("\n")
		if blk.Collapsed {
			continue
		}
		for _, l := range blk.Lines {
			b.WriteString(theme.LineNumber.Render(fmt.Sprintf("%d", l.Pos)))
			b.WriteString("  ")
			b.WriteString(l.Rendered)
			if strings.Contains(l.Rendered, "\x1b[") {
				b.WriteString(sgrReset)
			}
			b.WriteString("\n")
		}
	}
	m.vp.SetContent(b.String())
	if gotoBottom {
		m.vp.GotoBottom()
	}
	return m
}

func (m LogModel) View() string {
	theme := styles.DefaultTheme()

	right := "[enter] fold  [ [/] ] move  [f] follow"
	if m.follow {
		right = "following  " + right
	}
	switch {
	case m.historyTotal > 0 && m.historyDone < m.historyTotal:
		right = widgets.NewProgressBar(m.historyDone, m.historyTotal).
			WithWidth(12).
			WithStyle(theme.StatusRunning).
			Render() + "  " + right
	case m.endErr != "":
		right = theme.StatusFailed.Render("failed: "+m.endErr) + "  " + right
	case m.ended:
		right = theme.TitleMuted.Render("ended") + "  " + right
	}

	content := m.vp.View()
	if len(m.logs.Blocks) == 0 {
		content = theme.TitleMuted.Render("(no output yet)")
	}
	return widgets.NewBox(fmt.Sprintf("Log (%d lines)", m.logs.Lines())).
		WithTitleRight(right).
		WithContent(content).
		WithSize(m.width, m.height).
		Render()
}
