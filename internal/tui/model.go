package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/cryptotracker/marketview/internal/format"
	"github.com/cryptotracker/marketview/internal/model"
	"github.com/cryptotracker/marketview/internal/tracker"
)

// chromeLines is the number of lines around the table.
const chromeLines = 6

// Controller is the tracker surface the model drives.
type Controller interface {
	View() tracker.View
	SetSearchQuery(text string)
	LoadNextPage()
	SetVisible(visible bool)
	Retry()
	Refresh()
}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Model is the Bubble Tea model for the market table.
type Model struct {
	ctl    Controller
	bridge *Bridge
	format *format.Formatter
	nowFn  func() time.Time

	view      tracker.View
	cursor    int
	offset    int
	searching bool
	query     string
	width     int
	height    int

	// Start of the current rate-limit countdown.
	rateLimitedAt time.Time
	retryIn       time.Duration
}

// NewModel creates a Model. The bridge must be the listener of the tracker
// behind ctl.
func NewModel(ctl Controller, bridge *Bridge, f *format.Formatter) *Model {
	if f == nil {
		f = format.Default()
	}
	return &Model{
		ctl:    ctl,
		bridge: bridge,
		format: f,
		nowFn:  time.Now,
		height: 24,
		width:  80,
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.bridge.wait(), tick())
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case changedMsg:
		m.refresh()
		return m, m.bridge.wait()

	case tickMsg:
		return m, tick()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.clamp()
		return m, nil

	case tea.FocusMsg:
		m.ctl.SetVisible(true)
		return m, nil

	case tea.BlurMsg:
		m.ctl.SetVisible(false)
		return m, nil

	case tea.KeyMsg:
		if m.searching {
			return m.handleSearchKey(msg)
		}
		return m.handleKey(msg)
	}

	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "/":
		m.searching = true
	case "up", "k":
		m.cursor--
	case "down", "j":
		m.cursor++
	case "g", "home":
		m.cursor = 0
	case "G", "end":
		m.cursor = len(m.view.Filtered) - 1
	case "m":
		if m.view.LoadMoreAvailable() && !m.view.Loading {
			m.ctl.LoadNextPage()
		}
	case "r":
		if m.view.Loaded {
			m.ctl.Refresh()
		} else {
			m.ctl.Retry()
		}
	case "esc":
		if m.query != "" {
			m.setQuery("")
		}
	}
	m.clamp()
	return m, nil
}

func (m *Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyEsc:
		m.searching = false
		m.setQuery("")
	case tea.KeyEnter:
		m.searching = false
	case tea.KeyBackspace:
		if r := []rune(m.query); len(r) > 0 {
			m.setQuery(string(r[:len(r)-1]))
		}
	case tea.KeySpace:
		m.setQuery(m.query + " ")
	case tea.KeyRunes:
		m.setQuery(m.query + string(msg.Runes))
	}
	return m, nil
}

func (m *Model) setQuery(q string) {
	m.query = q
	m.cursor = 0
	m.offset = 0
	m.ctl.SetSearchQuery(q)
}

// refresh pulls the latest snapshot from the tracker.
func (m *Model) refresh() {
	prev := m.view
	m.view = m.ctl.View()

	if m.view.RateLimited && (!prev.RateLimited || m.view.RetryIn != m.retryIn) {
		m.rateLimitedAt = m.nowFn()
		m.retryIn = m.view.RetryIn
	}
	m.clamp()
}

func (m *Model) rows() int {
	return max(m.height-chromeLines, 1)
}

func (m *Model) clamp() {
	n := len(m.view.Filtered)
	m.cursor = max(min(m.cursor, n-1), 0)

	rows := m.rows()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+rows {
		m.offset = m.cursor - rows + 1
	}
	m.offset = max(min(m.offset, n-rows), 0)
}

func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("marketview"))
	b.WriteString("  ")
	b.WriteString(m.statusLine())
	b.WriteString("\n")

	switch {
	case m.searching:
		b.WriteString(searchStyle.Render("/" + m.query + "_"))
	case m.query != "":
		b.WriteString(searchStyle.Render("filter: " + m.query))
	}
	b.WriteString("\n")

	b.WriteString(headerStyle.Render(fmt.Sprintf("%4s  %-24s %16s %9s %12s", "#", "Name", "Price", "24h", "Market Cap")))
	b.WriteString("\n")

	records := m.view.Filtered
	switch {
	case len(records) == 0 && m.view.Loading:
		b.WriteString(loadingStyle.Render("loading markets..."))
		b.WriteString("\n")
	case len(records) == 0 && m.query != "" && m.view.Loaded:
		b.WriteString(helpStyle.Render("no coins match " + fmt.Sprintf("%q", m.query)))
		b.WriteString("\n")
	}

	end := min(m.offset+m.rows(), len(records))
	for i := m.offset; i < end; i++ {
		b.WriteString(m.renderRow(records[i], i == m.cursor))
		b.WriteString("\n")
	}

	b.WriteString(m.footer())
	return b.String()
}

func (m *Model) renderRow(r model.Record, selected bool) string {
	rank := "-"
	if r.HasRank() {
		rank = fmt.Sprint(r.Rank)
	}

	name := truncate(r.Name, 16) + " " + symbolStyle.Render(strings.ToUpper(truncate(r.Symbol, 6)))
	pad := max(24-len([]rune(truncate(r.Name, 16)))-1-len([]rune(truncate(r.Symbol, 6))), 0)

	change := fmt.Sprintf("%9s", format.Percent(r.PriceChange24h))
	switch format.Direction(r.PriceChange24h) {
	case 1:
		change = gainStyle.Render(change)
	case -1:
		change = lossStyle.Render(change)
	}

	line := fmt.Sprintf("%4s  %s%s %16s %s %12s",
		rank, name, strings.Repeat(" ", pad),
		m.format.Currency(r.CurrentPrice), change, m.format.Compact(r.MarketCap))
	if selected {
		return cursorStyle.Render(line)
	}
	return line
}

func (m *Model) statusLine() string {
	v := m.view
	var parts []string

	if v.Loading {
		parts = append(parts, loadingStyle.Render("updating..."))
	}
	if v.RateLimited {
		left := m.retryIn - m.nowFn().Sub(m.rateLimitedAt)
		secs := max(int(math.Ceil(left.Seconds())), 0)
		parts = append(parts, warnStyle.Render(fmt.Sprintf("rate limited, retrying in %ds", secs)))
	}
	if !v.LastUpdated.IsZero() {
		parts = append(parts, helpStyle.Render("updated "+format.Ago(m.nowFn(), v.LastUpdated)))
	}
	return strings.Join(parts, "  ")
}

func (m *Model) footer() string {
	if m.view.Err != "" && !m.view.Loaded {
		return errorStyle.Render("error: "+m.view.Err) + helpStyle.Render("  r retry  q quit")
	}

	help := "j/k move  / search  r refresh  q quit"
	if m.view.LoadMoreAvailable() {
		help = "j/k move  / search  m more  r refresh  q quit"
	}
	count := fmt.Sprintf("%d coins", len(m.view.Filtered))
	if m.query != "" {
		count = fmt.Sprintf("%d of %d coins", len(m.view.Filtered), len(m.view.Collection))
	}

	footer := helpStyle.Render(count + "  " + help)
	if m.view.Err != "" {
		footer = errorStyle.Render("error: "+m.view.Err) + "\n" + footer
	}
	return footer
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
