package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/adder/internal/tasks"
)

const recentOutcomes = 5

// RunFunc starts a pipeline run and reports progress on the given channel until it returns.
type RunFunc func(ctx context.Context, progress chan<- tasks.ProgressUpdate) *tasks.RunResult

// ViewState represents the current view in the TUI.
type ViewState int

const (
	RunningView ViewState = iota
	ResultView
)

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	cancel       context.CancelFunc
	run          RunFunc
	title        string
	view         ViewState
	width        int
	height       int
	spinner      spinner.Model
	bar          progress.Model
	progressChan chan tasks.ProgressUpdate
	done         chan *tasks.RunResult
	current      tasks.ProgressUpdate
	recent       []tasks.Outcome
	result       *tasks.RunResult
	outcomes     list.Model
	cancelling   bool
	help         help.Model
	keys         keyMap
}

// NewModel creates a TUI model that drives run. Quitting while the run is in flight cancels ctx and waits for
// the run to record its remaining entries.
func NewModel(ctx context.Context, title string, run RunFunc) *Model {
	ctx, cancel := context.WithCancel(ctx)
	return &Model{
		ctx:     ctx,
		cancel:  cancel,
		run:     run,
		title:   title,
		view:    RunningView,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.ok)),
		bar:     progress.New(progress.WithDefaultGradient()),
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Result returns the finished run, or nil while it is still running.
func (m *Model) Result() *tasks.RunResult {
	return m.result
}

// Init starts the spinner and the run.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.start())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = min(max(msg.Width-4, 10), 80)
		if m.view == ResultView {
			m.outcomes.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case spinner.TickMsg:
		if m.view != RunningView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		bar, cmd := m.bar.Update(msg)
		m.bar = bar.(progress.Model)
		return m, cmd

	case Msg:
		switch msg.kind {
		case MsgProgressUpdate:
			return m, m.applyProgress(msg.data.(tasks.ProgressUpdate))
		case MsgRunComplete:
			m.complete(msg.data.(*tasks.RunResult))
			if m.cancelling {
				return m, tea.Quit
			}
			return m, nil
		}
	}

	if m.view == ResultView {
		var cmd tea.Cmd
		m.outcomes, cmd = m.outcomes.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case RunningView:
		return m.renderRunning()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.view == RunningView {
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			if !m.cancelling {
				m.cancelling = true
				m.cancel()
			}
		}
		return m, nil
	}

	if m.outcomes.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.outcomes, cmd = m.outcomes.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "?":
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}

	var cmd tea.Cmd
	m.outcomes, cmd = m.outcomes.Update(msg)
	return m, cmd
}

func (m *Model) applyProgress(update tasks.ProgressUpdate) tea.Cmd {
	m.current = update

	cmds := []tea.Cmd{m.waitForProgress()}
	if update.Phase == tasks.TrackDone {
		if o, ok := update.Data.(tasks.Outcome); ok {
			m.recent = append(m.recent, o)
			if len(m.recent) > recentOutcomes {
				m.recent = m.recent[len(m.recent)-recentOutcomes:]
			}
		}
		if update.Total > 0 {
			cmds = append(cmds, m.bar.SetPercent(float64(update.Step)/float64(update.Total)))
		}
	}
	return tea.Batch(cmds...)
}

func (m *Model) complete(result *tasks.RunResult) {
	m.result = result
	m.view = ResultView
	m.cancel()

	var items []list.Item
	if result != nil {
		items = outcomeItems(result.Outcomes)
	}
	m.outcomes = list.New(items, list.NewDefaultDelegate(), max(m.width-4, 0), max(m.height-8, 0))
	m.outcomes.Title = "Outcomes"
	m.outcomes.SetShowHelp(false)
}

func (m *Model) start() tea.Cmd {
	m.progressChan = make(chan tasks.ProgressUpdate, 64)
	m.done = make(chan *tasks.RunResult, 1)

	go func(ch chan tasks.ProgressUpdate, done chan *tasks.RunResult) {
		done <- m.run(m.ctx, ch)
		close(ch)
	}(m.progressChan, m.done)

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	ch, done := m.progressChan, m.done
	return func() tea.Msg {
		if ch == nil {
			return runCompleteMsg(m.result)
		}

		update, ok := <-ch
		if !ok {
			return runCompleteMsg(<-done)
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) renderRunning() string {
	var b strings.Builder

	b.WriteString(styles.title.Render(m.title))
	b.WriteString("\n")

	status := m.current.Message
	if status == "" {
		status = "Starting..."
	}
	if m.cancelling {
		status = "Cancelling, recording remaining tracks..."
	}
	fmt.Fprintf(&b, "%s %s\n\n", m.spinner.View(), status)
	b.WriteString(m.bar.View())
	b.WriteString("\n\n")

	for _, o := range m.recent {
		fmt.Fprintf(&b, "  %s %s\n", Outcome(o.Kind, fmt.Sprintf("%-16s", o.Kind)), o.Name)
	}

	b.WriteString("\n")
	b.WriteString(styles.help.Render("q: cancel"))
	return b.String()
}

func (m *Model) renderResult() string {
	if m.result == nil {
		return styles.err.Render("No result available\n\nPress q to quit")
	}

	r := m.result
	title := styles.ok.Render("✓ Sync complete")
	if r.Cancelled {
		title = styles.warn.Render("Sync cancelled")
	}

	c := r.Counts
	summary := fmt.Sprintf("%s added • %s downloaded • %s failed • %s",
		styles.ok.Render(fmt.Sprint(c.Added)),
		styles.warn.Render(fmt.Sprint(c.Downloaded)),
		styles.err.Render(fmt.Sprint(r.Failures())),
		r.Duration().Round(time.Millisecond),
	)

	return fmt.Sprintf("%s\n%s\n\n%s\n\n%s", title, summary, m.outcomes.View(), m.help.View(m.keys))
}
