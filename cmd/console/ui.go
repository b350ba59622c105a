package main

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jwebster45206/verse-engine/internal/handlers"
	"github.com/jwebster45206/verse-engine/pkg/trigger"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/reflow/wrap"
)

const (
	refreshInterval = 200 * time.Millisecond
	maxLogLines     = 200
)

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	config        *ConsoleConfig
	client        *http.Client
	events        <-chan SSEEvent
	world         *handlers.WorldResponse
	sites         []trigger.GateStatus
	actions       []trigger.ActionStatus
	verseViewport viewport.Model
	logViewport   viewport.Model
	metaViewport  viewport.Model
	logLines      []string
	ready         bool
	width         int
	height        int
	err           error
	status        string

	siteCursor int
	plotCursor int

	// Quit confirmation state
	showQuitModal bool
}

type worldMsg struct {
	world   *handlers.WorldResponse
	sites   []trigger.GateStatus
	actions []trigger.ActionStatus
	err     error
}

type commandMsg struct {
	status string
	err    error
}

type sseMsg SSEEvent

type refreshTickMsg struct{}

var (
	versePanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(1).
			PaddingLeft(3).
			PaddingRight(0)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(0).
			PaddingLeft(0).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	headingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")). // purple
			Bold(true)

	verseStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	logStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	activeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)

	selectedItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("0")).
				Background(lipgloss.Color("205")).
				Bold(true)
)

var separatorStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("240")) // dark grey

func NewConsoleUI(cfg *ConsoleConfig, client *http.Client, events <-chan SSEEvent) ConsoleUI {
	return ConsoleUI{
		config:        cfg,
		client:        client,
		events:        events,
		verseViewport: viewport.New(0, 0),
		logViewport:   viewport.New(0, 0),
		metaViewport:  viewport.New(0, 0),
		status:        "Connected",
	}
}

func (m ConsoleUI) Init() tea.Cmd {
	return tea.Batch(m.refreshWorld(), m.waitForEvent())
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}

	var (
		vpCmd tea.Cmd
		lgCmd tea.Cmd
		mvCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		verseWidth := int(float64(m.width)*0.65) - 4
		metaWidth := m.width - verseWidth - 6
		verseHeight := (m.height - 6) / 2

		m.verseViewport.Width = verseWidth - 2
		m.verseViewport.Height = verseHeight
		m.logViewport.Width = verseWidth - 2
		m.logViewport.Height = m.height - verseHeight - 7
		m.metaViewport.Width = metaWidth - 2
		m.metaViewport.Height = m.height - 4
		m.ready = true
		m.writeContent()

	case tea.KeyMsg:
		return m.handleKey(msg)

	case worldMsg:
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.err = nil
			m.world = msg.world
			m.sites = msg.sites
			m.actions = msg.actions
			m.clampCursors()
		}
		m.writeContent()
		return m, tea.Tick(refreshInterval, func(time.Time) tea.Msg { return refreshTickMsg{} })

	case refreshTickMsg:
		return m, m.refreshWorld()

	case commandMsg:
		if msg.err != nil {
			m.status = errorStyle.Render("Error: " + msg.err.Error())
		} else {
			m.status = msg.status
		}
		m.writeContent()
		return m, nil

	case sseMsg:
		m.appendLog(formatEvent(SSEEvent(msg)))
		return m, m.waitForEvent()
	}

	m.verseViewport, vpCmd = m.verseViewport.Update(msg)
	m.logViewport, lgCmd = m.logViewport.Update(msg)
	m.metaViewport, mvCmd = m.metaViewport.Update(msg)

	return m, tea.Batch(vpCmd, lgCmd, mvCmd)
}

func (m ConsoleUI) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		m.showQuitModal = true
		return m, nil
	case tea.KeyUp:
		if m.siteCursor > 0 {
			m.siteCursor--
		}
		m.writeContent()
		return m, nil
	case tea.KeyDown:
		if m.siteCursor < len(m.sites)-1 {
			m.siteCursor++
		}
		m.writeContent()
		return m, nil
	case tea.KeyTab:
		if m.world != nil && len(m.world.Progress.Plots) > 0 {
			m.plotCursor = (m.plotCursor + 1) % len(m.world.Progress.Plots)
		}
		m.writeContent()
		return m, nil
	case tea.KeyEnter:
		if m.siteCursor < len(m.sites) {
			return m, m.present(m.sites[m.siteCursor].ID)
		}
		return m, nil
	}

	key := msg.String()
	switch key {
	case "q":
		m.showQuitModal = true
		return m, nil
	case "d":
		return m, m.switchView("description")
	case "p":
		return m, m.switchView("primary")
	case "w":
		if m.world != nil && m.plotCursor < len(m.world.Progress.Plots) {
			return m, m.work(m.world.Progress.Plots[m.plotCursor].ID)
		}
		return m, nil
	case "c":
		return m, m.copyVerse()
	}

	// 1-9 run actions
	if len(key) == 1 && key[0] >= '1' && key[0] <= '9' {
		idx := int(key[0] - '1')
		if idx < len(m.actions) {
			return m, m.run(m.actions[idx].ID)
		}
	}
	return m, nil
}

func (m *ConsoleUI) clampCursors() {
	if m.siteCursor >= len(m.sites) {
		m.siteCursor = max(len(m.sites)-1, 0)
	}
	if m.world != nil && m.plotCursor >= len(m.world.Progress.Plots) {
		m.plotCursor = 0
	}
}

func (m *ConsoleUI) appendLog(line string) {
	m.logLines = append(m.logLines, line)
	if len(m.logLines) > maxLogLines {
		m.logLines = m.logLines[len(m.logLines)-maxLogLines:]
	}
	m.logViewport.SetContent(logStyle.Render(strings.Join(m.logLines, "\n")))
	m.logViewport.GotoBottom()
}

// writeContent re-renders every panel from the last known world
func (m *ConsoleUI) writeContent() {
	if !m.ready {
		return
	}
	m.verseViewport.SetContent(m.renderVerse(m.verseViewport.Width))
	m.metaViewport.SetContent(m.renderMeta(m.metaViewport.Width))
}

func (m ConsoleUI) renderVerse(width int) string {
	if m.world == nil {
		return promptStyle.Render("Waiting for the world...")
	}
	s := m.world.Session
	if !s.Active {
		return promptStyle.Render("Nothing is being presented. Pick a site and press Enter.")
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(s.Title))
	b.WriteString("  ")
	b.WriteString(promptStyle.Render(fmt.Sprintf("[%s · %s]", s.View, s.State)))
	b.WriteString("\n\n")
	b.WriteString(alphaStyle(s.Alpha).Render(formatVerse(s.Buffer, width)))
	b.WriteString("\n\n")
	b.WriteString(m.renderProgressBar(s.Revealed, s.Total))
	return b.String()
}

// alphaStyle maps the fade alpha onto the greyscale ramp
func alphaStyle(alpha float64) lipgloss.Style {
	alpha = min(max(alpha, 0), 1)
	grey := 236 + int(alpha*19)
	if alpha >= 1 {
		return verseStyle
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fmt.Sprintf("%d", grey)))
}

// formatVerse wraps verse text. Lines without spaces are hard wrapped.
func formatVerse(text string, width int) string {
	if width <= 0 {
		return text
	}
	return wrap.String(wordwrap.String(text, width), width)
}

func (m ConsoleUI) renderMeta(width int) string {
	var b strings.Builder
	if m.world == nil {
		if m.err != nil {
			b.WriteString(errorStyle.Render("Error: " + m.err.Error()))
		}
		return b.String()
	}

	env := m.world.Environment
	b.WriteString(headingStyle.Render("World " + m.world.ID))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%s, %s\n\n", env.Season, env.Weather))

	b.WriteString(headingStyle.Render("Sites"))
	b.WriteString("\n")
	for i, site := range m.sites {
		label := site.Label
		if label == "" {
			label = site.ID
		}
		line := fmt.Sprintf("%s (%d/%d)", label, site.Shown, site.Items)
		switch {
		case site.Held:
			line += " held"
		case site.CoolingDown:
			line += " cooling"
		case !site.Enabled:
			line += " off"
		}
		if i == m.siteCursor {
			b.WriteString(selectedItemStyle.Render("▶ " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}

	progress := m.world.Progress
	b.WriteString("\n")
	b.WriteString(headingStyle.Render(fmt.Sprintf("Farm %d/%d", progress.Step, progress.Steps)))
	b.WriteString("\n")
	for i, p := range progress.Plots {
		line := fmt.Sprintf("%s stage %d", p.ID, p.Stage)
		if p.Grown {
			line += " grown"
		}
		if i == m.plotCursor {
			b.WriteString(selectedItemStyle.Render("▶ " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}
	for i, reward := range progress.Rewards {
		mark := "·"
		if i < len(progress.Revealed) && progress.Revealed[i] {
			mark = activeStyle.Render("★")
		}
		b.WriteString(fmt.Sprintf("  %s %s\n", mark, reward.ID))
	}

	if len(m.actions) > 0 {
		b.WriteString("\n")
		b.WriteString(headingStyle.Render("Actions"))
		b.WriteString("\n")
		for i, a := range m.actions {
			line := fmt.Sprintf("%d %s", i+1, a.ID)
			switch {
			case a.Running:
				line = activeStyle.Render(line + " running")
			case !a.Allowed:
				line = promptStyle.Render(line)
			}
			b.WriteString("  " + line + "\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(wordwrap.String(m.status, width))
	b.WriteString("\n\n")
	b.WriteString(promptStyle.Render(wordwrap.String("↑/↓ site, Enter present, Tab plot, w work, 1-9 action, d/p view, c copy, q quit", width)))
	return b.String()
}

// formatEvent renders one event as a log line with sorted data keys
func formatEvent(ev SSEEvent) string {
	keys := make([]string, 0, len(ev.Data))
	for k := range ev.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(time.Now().Format("15:04:05"))
	b.WriteString(" ")
	b.WriteString(ev.Type)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, ev.Data[k])
	}
	return b.String()
}

func (m ConsoleUI) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return nil
		}
		return sseMsg(ev)
	}
}

func (m ConsoleUI) refreshWorld() tea.Cmd {
	return func() tea.Msg {
		w, err := getWorld(m.client, m.config.APIBaseURL)
		if err != nil {
			return worldMsg{err: err}
		}
		sites, err := listSites(m.client, m.config.APIBaseURL)
		if err != nil {
			return worldMsg{err: err}
		}
		actions, err := listActions(m.client, m.config.APIBaseURL)
		return worldMsg{world: w, sites: sites, actions: actions, err: err}
	}
}

func (m ConsoleUI) present(siteID string) tea.Cmd {
	return func() tea.Msg {
		started, err := presentAt(m.client, m.config.APIBaseURL, siteID)
		if err != nil {
			return commandMsg{err: err}
		}
		if !started {
			return commandMsg{status: siteID + " has nothing to present right now"}
		}
		return commandMsg{status: "Presenting at " + siteID}
	}
}

func (m ConsoleUI) switchView(view string) tea.Cmd {
	return func() tea.Msg {
		switched, err := switchMode(m.client, m.config.APIBaseURL, view)
		if err != nil {
			return commandMsg{err: err}
		}
		if !switched {
			return commandMsg{status: "Cannot switch to " + view + " now"}
		}
		return commandMsg{status: "Showing " + view}
	}
}

func (m ConsoleUI) work(plotID string) tea.Cmd {
	return func() tea.Msg {
		st, err := workPlot(m.client, m.config.APIBaseURL, plotID, m.config.Tool)
		if err != nil {
			return commandMsg{err: err}
		}
		return commandMsg{status: fmt.Sprintf("%s is at stage %d", st.ID, st.Stage)}
	}
}

func (m ConsoleUI) run(actionID string) tea.Cmd {
	return func() tea.Msg {
		started, err := runAction(m.client, m.config.APIBaseURL, actionID)
		if err != nil {
			return commandMsg{err: err}
		}
		if !started {
			return commandMsg{status: actionID + " is not available"}
		}
		return commandMsg{status: "Started " + actionID}
	}
}

func (m ConsoleUI) copyVerse() tea.Cmd {
	if m.world == nil || m.world.Session.Buffer == "" {
		return func() tea.Msg { return commandMsg{status: "Nothing to copy"} }
	}
	text := m.world.Session.Title + "\n" + m.world.Session.Buffer
	return func() tea.Msg {
		if err := clipboard.WriteAll(text); err != nil {
			return commandMsg{err: fmt.Errorf("clipboard: %w", err)}
		}
		return commandMsg{status: "Copied verse to clipboard"}
	}
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyEnter:
			return m, tea.Quit
		default:
			switch msg.String() {
			case "y", "Y":
				return m, tea.Quit
			case "n", "N":
				m.showQuitModal = false
				return m, nil
			}
		}

	// Keep the refresh loop and event listener alive behind the modal
	case worldMsg, refreshTickMsg, sseMsg, commandMsg:
		m.showQuitModal = false
		next, cmd := m.Update(msg)
		ui := next.(ConsoleUI)
		ui.showQuitModal = true
		return ui, cmd
	}

	return m, nil
}

func (m ConsoleUI) renderQuitModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Quit Console?"))
	content.WriteString("\n\n")
	content.WriteString("The world keeps turning without you.")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue, or Ctrl+C to force quit"))

	modal := modalStyle.Width(50).Render(content.String())

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if m.showQuitModal {
		return m.renderQuitModal()
	}

	if !m.ready {
		return "\n  Initializing..."
	}

	verseWidth := int(float64(m.width)*0.65) - 4
	metaWidth := m.width - verseWidth - 6

	versePanel := versePanelStyle.Width(verseWidth).Height(m.height - 3).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.verseViewport.View(),
			separatorStyle.Render(strings.Repeat("─", max(verseWidth-4, 1))),
			m.logViewport.View(),
		),
	)

	metaPanel := metaPanelStyle.Width(metaWidth).Height(m.height - 2).Render(
		m.metaViewport.View(),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, versePanel, metaPanel)
}

// renderProgressBar shows how much of the verse has been revealed
func (m ConsoleUI) renderProgressBar(revealed, total int) string {
	usable := m.verseViewport.Width - 6
	if usable > 80 {
		usable = 80
	} else if usable < 10 {
		usable = 10
	}
	if total <= 0 {
		return ""
	}

	filled := min(revealed*usable/total, usable)
	var bar strings.Builder
	for i := 0; i < usable; i++ {
		if i < filled {
			bar.WriteString("█")
		} else {
			bar.WriteString("░")
		}
	}
	return separatorStyle.Render(bar.String())
}
