package audit

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/amishk599/jobsift/internal/model"
)

func fmtTimeLocal(t time.Time, layout string) string {
	if t.IsZero() {
		return "n/a"
	}
	return t.Local().Format(layout)
}

// Lines per entry in the list view (title + subtitle + blank separator).
const entryItemHeight = 3

type viewState int

const (
	viewList viewState = iota
	viewDetail
)

var (
	activeBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("39")) // bright blue

	inactiveBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("240")) // dim gray

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	activeHeaderStyle = headerStyle.
				Foreground(lipgloss.Color("39"))

	inactiveHeaderStyle = headerStyle.
				Foreground(lipgloss.Color("240"))

	statusBarStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("236"))

	entryTitleStyle = lipgloss.NewStyle().
			Bold(true)

	entrySubtitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245"))

	selectedEntryTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")). // bright white
				Background(lipgloss.Color("24"))  // dark blue bg

	selectedEntrySubtitleStyle = lipgloss.NewStyle().
					Foreground(lipgloss.Color("252")).
					Background(lipgloss.Color("24"))

	detailLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39")).
				Width(16)

	detailValueStyle = lipgloss.NewStyle()

	detailTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				MarginBottom(1)

	descDividerStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240"))

	descBodyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))
)

// outcomeColors tints the outcome badge in lists and the detail view.
var outcomeColors = map[model.Outcome]lipgloss.Color{
	model.OutcomeStrongMatch: lipgloss.Color("42"),  // green
	model.OutcomeWeakMatch:   lipgloss.Color("214"), // amber
	model.OutcomeNoMatch:     lipgloss.Color("245"),
	model.OutcomeDuplicate:   lipgloss.Color("141"), // violet
	model.OutcomeFiltered:    lipgloss.Color("240"),
	model.OutcomeBlacklisted: lipgloss.Color("196"), // red
}

func outcomeBadge(o model.Outcome) string {
	c, ok := outcomeColors[o]
	if !ok {
		c = lipgloss.Color("252")
	}
	return lipgloss.NewStyle().Foreground(c).Bold(true).Render(string(o))
}

type auditModel struct {
	run           model.Run
	allEntries    []model.RunJobLogEntry
	strongEntries []model.RunJobLogEntry
	leftViewport  viewport.Model
	rightViewport viewport.Model
	activePane    int // 0=left, 1=right
	leftCursor    int
	rightCursor   int
	width         int
	height        int
	ready         bool

	// Detail view state
	view           viewState
	detailEntry    model.RunJobLogEntry
	detailViewport viewport.Model

	wantQuit bool
}

func (m auditModel) Init() tea.Cmd {
	return nil
}

func (m auditModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.recalcLayout()
		if m.view == viewDetail {
			m.detailViewport.Width = m.width - 4
			m.detailViewport.Height = m.height - 4
			m.detailViewport.SetContent(m.renderDetail())
		}
		return m, nil

	case tea.KeyMsg:
		if m.view == viewDetail {
			return m.updateDetailView(msg)
		}
		return m.updateListView(msg)
	}

	return m, nil
}

func (m auditModel) updateListView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.wantQuit = true
		return m, tea.Quit
	case "esc", "b":
		m.wantQuit = false
		return m, tea.Quit
	case "tab", "left", "right":
		m.activePane = 1 - m.activePane
		m.recalcContent()
		return m, nil
	case "up", "k":
		m.moveCursor(-1)
		m.recalcContent()
		m.ensureCursorVisible()
		return m, nil
	case "down", "j":
		m.moveCursor(1)
		m.recalcContent()
		m.ensureCursorVisible()
		return m, nil
	case "enter":
		return m.openDetailView()
	}

	// Forward other keys (pgup/pgdn/home/end) to the active viewport.
	var cmd tea.Cmd
	if m.activePane == 0 {
		m.leftViewport, cmd = m.leftViewport.Update(msg)
	} else {
		m.rightViewport, cmd = m.rightViewport.Update(msg)
	}
	return m, cmd
}

func (m auditModel) updateDetailView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.wantQuit = true
		return m, tea.Quit
	case "esc", "backspace":
		m.view = viewList
		return m, nil
	case "o":
		openURL(m.detailEntry.URL)
		return m, nil
	}

	var cmd tea.Cmd
	m.detailViewport, cmd = m.detailViewport.Update(msg)
	return m, cmd
}

func (m *auditModel) moveCursor(delta int) {
	if m.activePane == 0 {
		m.leftCursor = clamp(m.leftCursor+delta, 0, max(len(m.allEntries)-1, 0))
	} else {
		m.rightCursor = clamp(m.rightCursor+delta, 0, max(len(m.strongEntries)-1, 0))
	}
}

func (m *auditModel) ensureCursorVisible() {
	var vp *viewport.Model
	var cursor int
	if m.activePane == 0 {
		vp = &m.leftViewport
		cursor = m.leftCursor
	} else {
		vp = &m.rightViewport
		cursor = m.rightCursor
	}

	cursorTop := cursor * entryItemHeight
	cursorBottom := cursorTop + entryItemHeight - 1

	if cursorTop < vp.YOffset {
		vp.SetYOffset(cursorTop)
	} else if cursorBottom >= vp.YOffset+vp.Height {
		vp.SetYOffset(cursorBottom - vp.Height + 1)
	}
}

func (m auditModel) openDetailView() (tea.Model, tea.Cmd) {
	entries := m.activeEntries()
	if len(entries) == 0 {
		return m, nil
	}

	m.view = viewDetail
	m.detailEntry = entries[m.activeCursor()]
	m.detailViewport = viewport.New(m.width-4, m.height-4)
	m.detailViewport.SetContent(m.renderDetail())
	return m, nil
}

func (m *auditModel) recalcLayout() {
	// 2 border chars per pane + 1 gap between panes.
	paneWidth := max((m.width-5)/2, 20)

	// Header (1 line) + border top/bottom (2) + status bar (1) = 4 lines overhead.
	paneHeight := max(m.height-4, 5)

	if !m.ready {
		m.leftViewport = viewport.New(paneWidth, paneHeight)
		m.rightViewport = viewport.New(paneWidth, paneHeight)
		m.ready = true
	} else {
		m.leftViewport.Width = paneWidth
		m.leftViewport.Height = paneHeight
		m.rightViewport.Width = paneWidth
		m.rightViewport.Height = paneHeight
	}

	m.recalcContent()
}

func (m *auditModel) recalcContent() {
	m.leftViewport.SetContent(renderEntries(m.allEntries, m.leftCursor, m.activePane == 0))
	m.rightViewport.SetContent(renderEntries(m.strongEntries, m.rightCursor, m.activePane == 1))
}

func (m auditModel) activeEntries() []model.RunJobLogEntry {
	if m.activePane == 0 {
		return m.allEntries
	}
	return m.strongEntries
}

func (m auditModel) activeCursor() int {
	if m.activePane == 0 {
		return m.leftCursor
	}
	return m.rightCursor
}

func (m auditModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	if m.view == viewDetail {
		return m.viewDetail()
	}

	return m.viewList()
}

func (m auditModel) viewList() string {
	paneWidth := m.leftViewport.Width

	leftHeader := fmt.Sprintf(" Run Log (%d)", len(m.allEntries))
	rightHeader := fmt.Sprintf(" Strong Matches (%d)", len(m.strongEntries))

	var leftHeaderRendered, rightHeaderRendered string
	var leftBorder, rightBorder lipgloss.Style

	if m.activePane == 0 {
		leftHeaderRendered = activeHeaderStyle.Render(leftHeader)
		rightHeaderRendered = inactiveHeaderStyle.Render(rightHeader)
		leftBorder = activeBorderStyle.Width(paneWidth)
		rightBorder = inactiveBorderStyle.Width(paneWidth)
	} else {
		leftHeaderRendered = inactiveHeaderStyle.Render(leftHeader)
		rightHeaderRendered = activeHeaderStyle.Render(rightHeader)
		leftBorder = inactiveBorderStyle.Width(paneWidth)
		rightBorder = activeBorderStyle.Width(paneWidth)
	}

	leftPane := leftBorder.Render(m.leftViewport.View())
	rightPane := rightBorder.Render(m.rightViewport.View())

	headerRow := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Width(paneWidth+2).Render(leftHeaderRendered),
		" ",
		lipgloss.NewStyle().Width(paneWidth+2).Render(rightHeaderRendered),
	)

	panes := lipgloss.JoinHorizontal(lipgloss.Top, leftPane, " ", rightPane)

	statusText := fmt.Sprintf(" run %s | %s | %s    ←/→/Tab switch  ↑/↓ cursor  Enter detail  Esc back  q quit",
		shortID(m.run.ID), m.run.Status, summarizeOutcomes(m.allEntries))
	statusBar := statusBarStyle.Width(m.width).Render(statusText)

	return headerRow + "\n" + panes + "\n" + statusBar
}

func (m auditModel) viewDetail() string {
	title := detailTitleStyle.Render("Log Entry")

	border := activeBorderStyle.Width(m.width - 2)
	content := border.Render(m.detailViewport.View())

	statusText := " o open URL  esc/backspace back  ↑/↓ scroll  q quit"
	statusBar := statusBarStyle.Width(m.width).Render(statusText)

	return title + "\n" + content + "\n" + statusBar
}

func (m auditModel) renderDetail() string {
	return renderEntryDetail(m.detailEntry, max(m.width-8, 20))
}

func renderEntryDetail(e model.RunJobLogEntry, wrapWidth int) string {
	var b strings.Builder

	addField := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString(detailLabelStyle.Render(label))
		b.WriteString(detailValueStyle.Render(value))
		b.WriteByte('\n')
	}

	addField("Title", e.Title)
	addField("Company", e.Company)
	addField("Location", e.Location)
	addField("Group", e.GroupID)
	addField("External ID", e.ExternalID)

	b.WriteByte('\n')

	b.WriteString(detailLabelStyle.Render("Outcome"))
	b.WriteString(outcomeBadge(e.Outcome))
	b.WriteByte('\n')
	if e.Score != nil {
		addField("Score", fmt.Sprintf("%d / 100", *e.Score))
	}
	if e.RejectionCategory != nil {
		addField("Category", string(*e.RejectionCategory))
	}
	if e.DuplicateOfID != nil {
		addField("Duplicate Of", *e.DuplicateOfID)
	}
	addField("Reason", e.Reason)
	addField("Logged At", fmtTimeLocal(e.LoggedAt, "2006-01-02 15:04:05 MST"))

	b.WriteByte('\n')
	addField("URL", e.URL)

	if e.Rationale != "" {
		fill := strings.Repeat("─", max(wrapWidth-len("── Rationale "), 3))
		b.WriteByte('\n')
		b.WriteString(descDividerStyle.Render("── Rationale "+fill) + "\n\n")
		b.WriteString(descBodyStyle.Render(wordWrap(e.Rationale, wrapWidth)) + "\n")
	}

	return b.String()
}

func renderEntries(entries []model.RunJobLogEntry, cursor int, isActive bool) string {
	if len(entries) == 0 {
		return "  (no entries)"
	}

	var b strings.Builder
	for i, e := range entries {
		isSelected := isActive && i == cursor

		titleSt := entryTitleStyle
		subtitleSt := entrySubtitleStyle
		prefix := "  "
		if isSelected {
			titleSt = selectedEntryTitleStyle
			subtitleSt = selectedEntrySubtitleStyle
			prefix = "> "
		}

		b.WriteString(prefix)
		b.WriteString(titleSt.Render(e.Title))
		b.WriteByte('\n')

		sub := fmt.Sprintf("%s · %s", e.Company, e.Outcome)
		if e.Score != nil {
			sub += fmt.Sprintf(" %d", *e.Score)
		}
		b.WriteString(prefix)
		b.WriteString(subtitleSt.Render(sub))
		b.WriteByte('\n')

		if i < len(entries)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// strongMatches keeps the entries that reached the digest candidate set.
func strongMatches(entries []model.RunJobLogEntry) []model.RunJobLogEntry {
	var out []model.RunJobLogEntry
	for _, e := range entries {
		if e.Outcome == model.OutcomeStrongMatch {
			out = append(out, e)
		}
	}
	return out
}

// outcomeOrder fixes the order outcomes are listed in the status bar.
var outcomeOrder = []model.Outcome{
	model.OutcomeStrongMatch,
	model.OutcomeWeakMatch,
	model.OutcomeNoMatch,
	model.OutcomeDuplicate,
	model.OutcomeFiltered,
	model.OutcomeBlacklisted,
}

func summarizeOutcomes(entries []model.RunJobLogEntry) string {
	counts := make(map[model.Outcome]int, len(outcomeOrder))
	for _, e := range entries {
		counts[e.Outcome]++
	}
	var parts []string
	for _, o := range outcomeOrder {
		if n := counts[o]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, strings.ToLower(string(o))))
		}
	}
	if len(parts) == 0 {
		return "empty"
	}
	return strings.Join(parts, " · ")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func wordWrap(text string, width int) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}
	var lines []string
	line := words[0]
	for _, w := range words[1:] {
		if len(line)+1+len(w) <= width {
			line += " " + w
		} else {
			lines = append(lines, line)
			line = w
		}
	}
	lines = append(lines, line)
	return strings.Join(lines, "\n")
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// openURL opens url in the default system browser, fire-and-forget.
func openURL(url string) {
	if url == "" {
		return
	}
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		return
	}
	_ = cmd.Start()
}

// RunAuditTUI launches the split-pane browser over one run's log: every
// entry on the left, strong matches on the right.
// Returns wantQuit=true if the user pressed q/ctrl+c, false if they pressed
// esc to return to the picker.
func RunAuditTUI(run model.Run, entries []model.RunJobLogEntry) (bool, error) {
	m := auditModel{
		run:           run,
		allEntries:    entries,
		strongEntries: strongMatches(entries),
	}

	p := tea.NewProgram(m, tea.WithAltScreen())
	result, err := p.Run()
	if err != nil {
		return false, err
	}
	final := result.(auditModel)
	return final.wantQuit, nil
}
