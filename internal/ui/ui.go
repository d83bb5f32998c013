package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// number of replies kept on screen
const scrollback = 8

// Dispatcher runs one line of user input. Implemented by [playback.Orchestrator].
type Dispatcher interface {
	Dispatch(ctx context.Context, userID, text string) string
}

// ViewState represents the current view in the console.
type ViewState int

const (
	ConsoleView ViewState = iota
	HistoryView
)

// Model represents the console state.
type Model struct {
	ctx         context.Context
	user        string
	dispatcher  Dispatcher
	view        ViewState
	width       int
	height      int
	input       textinput.Model
	spinner     spinner.Model
	busy        bool
	pending     string
	history     []exchange
	historyList list.Model
	help        help.Model
	keys        keyMap
}

// NewModel creates a console for user that sends every line to dispatcher.
func NewModel(ctx context.Context, user string, dispatcher Dispatcher) *Model {
	in := textinput.New()
	in.Placeholder = "brahms violin sonata, playlist Evening, pause, skip, devices, help"
	in.Prompt = styles.prompt.Render("♪ ")
	in.CharLimit = 200
	in.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.warn

	hl := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	hl.Title = "History"

	return &Model{
		ctx:         ctx,
		user:        user,
		dispatcher:  dispatcher,
		view:        ConsoleView,
		input:       in,
		spinner:     sp,
		historyList: hl,
		help:        help.New(),
		keys:        newKeyMap(),
	}
}

// Init starts the cursor blinking.
func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(msg.Width-6, 20)
		m.historyList.SetSize(msg.Width-4, msg.Height-6)
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.quit) {
			return m, tea.Quit
		}
		switch m.view {
		case HistoryView:
			return m.handleHistoryKeys(msg)
		default:
			return m.handleConsoleKeys(msg)
		}

	case Msg:
		if msg.kind == MsgReply {
			ex := msg.data.(exchange)
			m.history = append(m.history, ex)
			m.historyList.SetItems(historyItems(m.history))
			m.busy = false
			m.pending = ""
		}
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m.updateView(msg)
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case HistoryView:
		return m.renderHistory()
	default:
		return m.renderConsole()
	}
}

func (m *Model) handleConsoleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.send):
		text := strings.TrimSpace(m.input.Value())
		if text == "" || m.busy {
			return m, nil
		}
		m.input.SetValue("")
		return m, m.send(text)
	case key.Matches(msg, m.keys.history):
		if len(m.history) > 0 {
			m.view = HistoryView
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleHistoryKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.historyList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.historyList, cmd = m.historyList.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.back):
		m.view = ConsoleView
		return m, nil
	case key.Matches(msg, m.keys.rerun):
		m.view = ConsoleView
		if item, ok := m.historyList.SelectedItem().(exchangeItem); ok && !m.busy {
			return m, m.send(item.exchange.command)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.historyList, cmd = m.historyList.Update(msg)
	return m, cmd
}

func (m *Model) updateView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case ConsoleView:
		m.input, cmd = m.input.Update(msg)
	case HistoryView:
		m.historyList, cmd = m.historyList.Update(msg)
	}
	return m, cmd
}

// send runs text through the dispatcher off the update loop.
func (m *Model) send(text string) tea.Cmd {
	m.busy = true
	m.pending = text

	run := func() tea.Msg {
		return replyMsg(text, m.dispatcher.Dispatch(m.ctx, m.user, text))
	}
	return tea.Batch(run, m.spinner.Tick)
}

func (m *Model) renderConsole() string {
	var b strings.Builder
	b.WriteString(styles.title.Render(fmt.Sprintf("maestro · %s", m.user)))
	b.WriteString("\n")

	start := max(len(m.history)-scrollback, 0)
	for _, ex := range m.history[start:] {
		fmt.Fprintf(&b, "%s %s\n%s\n\n", styles.prompt.Render("›"), ex.command, styles.paint(ex.reply))
	}

	if m.busy {
		fmt.Fprintf(&b, "%s %s\n%s working...\n\n", styles.prompt.Render("›"), m.pending, m.spinner.View())
	}

	b.WriteString(m.input.View())
	b.WriteString("\n\n")
	b.WriteString(m.help.ShortHelpView(m.keys.ShortHelp()))
	return b.String()
}

func (m *Model) renderHistory() string {
	helpKeys := []key.Binding{m.keys.up, m.keys.down, m.keys.rerun, m.keys.back, m.keys.quit}
	return fmt.Sprintf("%s\n\n%s", m.historyList.View(), m.help.ShortHelpView(helpKeys))
}
