package models

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/livelog/pkg/term"
	"github.com/go-go-golems/livelog/pkg/tui"
	"github.com/go-go-golems/livelog/pkg/tui/widgets"
)

type ViewID int

const (
	ViewBuilds ViewID = iota
	ViewLog
	ViewEvents
)

var viewNames = []string{"builds", "log", "events"}

// ActionFunc hands an action request to whoever executes it, usually
// tui.PublishAction bound to the bus.
type ActionFunc func(tui.ActionRequest) error

type RootModel struct {
	width  int
	height int

	active ViewID
	act    ActionFunc

	live   bool
	note   string
	paused bool

	builds BuildsModel
	log    LogModel
	events EventLogModel
}

type RootOptions struct {
	// Start is the view shown first.
	Start ViewID
	// Follow enables auto-follow in the log view.
	Follow bool
	// History is the number of replayed lines the log view should expect.
	History int
	// Filter configures how the log view folds lines.
	Filter []term.Option
	Act    ActionFunc
}

func NewRootModel(opts RootOptions) RootModel {
	return RootModel{
		active: opts.Start,
		act:    opts.Act,
		builds: NewBuildsModel(),
		log:    NewLogModel(opts.Follow, opts.Filter...).WithHistory(opts.History),
		events: NewEventLogModel(),
	}
}

func (m RootModel) Init() tea.Cmd { return nil }

func (m RootModel) Active() ViewID { return m.active }

func (m RootModel) Paused() bool { return m.paused }

func (m RootModel) Builds() BuildsModel { return m.builds }

func (m RootModel) Log() LogModel { return m.log }

func (m RootModel) Events() EventLogModel { return m.events }

func (m RootModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch v := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = v.Width, v.Height
		return m.resize(), nil
	case tui.BuildUpsertMsg:
		m.builds = m.builds.Upsert(v.Build)
		return m, nil
	case tui.LogAppendMsg, tui.LogEndedMsg:
		var cmd tea.Cmd
		m.log, cmd = m.log.Update(v)
		return m, cmd
	case tui.EventLogAppendMsg:
		m.events = m.events.Append(v.Entry)
		return m, nil
	case tui.ConnectionMsg:
		m.live = v.State.Connected
		m.note = v.State.Note
		return m, nil
	case tea.KeyMsg:
		if m.active == ViewEvents && m.events.Searching() {
			var cmd tea.Cmd
			m.events, cmd = m.events.Update(v)
			return m, cmd
		}
		switch v.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "tab":
			m.active = (m.active + 1) % ViewID(len(viewNames))
			return m, nil
		case "shift+tab":
			m.active = (m.active + ViewID(len(viewNames)) - 1) % ViewID(len(viewNames))
			return m, nil
		case "1", "2", "3":
			m.active = ViewID(v.String()[0] - '1')
			return m, nil
		case "r":
			return m.request(tui.ActionReconnect)
		case "p":
			kind := tui.ActionPause
			if m.paused {
				kind = tui.ActionResume
			}
			m.paused = !m.paused
			return m.request(kind)
		}
		var cmd tea.Cmd
		switch m.active {
		case ViewBuilds:
			m.builds, cmd = m.builds.Update(v)
		case ViewLog:
			m.log, cmd = m.log.Update(v)
		case ViewEvents:
			m.events, cmd = m.events.Update(v)
		}
		return m, cmd
	}
	return m, nil
}

func (m RootModel) request(kind tui.ActionKind) (tea.Model, tea.Cmd) {
	if m.act == nil {
		return m, nil
	}
	if err := m.act(tui.ActionRequest{Kind: kind, At: time.Now()}); err != nil {
		m.events = m.events.Append(tui.EventLogEntry{
			At:     time.Now(),
			Source: "action",
			Level:  tui.LogLevelError,
			Text:   string(kind) + ": " + err.Error(),
		})
	}
	return m, nil
}

func (m RootModel) resize() RootModel {
	h := maxInt(3, m.height-2)
	m.builds = m.builds.WithSize(m.width, h)
	m.log = m.log.WithSize(m.width, h)
	m.events = m.events.WithSize(m.width, h)
	return m
}

func (m RootModel) View() string {
	note := m.note
	if m.paused {
		note = "paused"
	}
	bar := widgets.NewStatusBar("livelog").
		WithTabs(viewNames, int(m.active)).
		WithLive(m.live, note).
		WithKeybinds([]widgets.Keybind{
			{Key: "tab", Label: "view"},
			{Key: "r", Label: "reconnect"},
			{Key: "p", Label: "pause"},
			{Key: "q", Label: "quit"},
		}).
		WithWidth(m.width).
		Render()

	var body string
	switch m.active {
	case ViewLog:
		body = m.log.View()
	case ViewEvents:
		body = m.events.View()
	default:
		body = m.builds.View()
	}
	return lipgloss.JoinVertical(lipgloss.Left, bar, body)
}
