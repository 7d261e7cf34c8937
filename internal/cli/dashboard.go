package cli

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/prdflow/prdflow/internal/observability"
	"github.com/prdflow/prdflow/pkg/models"
)

// Dashboard panel indices.
const (
	panelItems = iota
	panelMetrics
	panelRecent
	panelCount
)

type dashboardModel struct {
	activePanel int
	width       int
	height      int

	// Data.
	statusCounts map[string]int
	metricsData  *metricsSnapshot
	recent       []completionSnapshot

	// State.
	loading bool
	err     error
}

type metricsSnapshot struct {
	itemsCreated   int
	itemsCompleted int
	loopsStarted   int
	loopsFinished  int
	archiveSweeps  int
	eventCount     int
}

type completionSnapshot struct {
	id   string
	time string
}

// dashDataMsg carries loaded data back to the model.
type dashDataMsg struct {
	statusCounts map[string]int
	metrics      *metricsSnapshot
	recent       []completionSnapshot
	err          error
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(1, 2)

	activePanelStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62")).
				Padding(1, 2)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			MarginBottom(1)

	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func newDashboardModel() dashboardModel {
	return dashboardModel{
		activePanel:  panelItems,
		loading:      true,
		statusCounts: make(map[string]int),
	}
}

func (m dashboardModel) Init() tea.Cmd {
	return loadDashboardData
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "tab":
			m.activePanel = (m.activePanel + 1) % panelCount
			return m, nil
		case "shift+tab":
			m.activePanel = (m.activePanel - 1 + panelCount) % panelCount
			return m, nil
		case "r":
			m.loading = true
			return m, loadDashboardData
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case dashDataMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.statusCounts = msg.statusCounts
		m.metricsData = msg.metrics
		m.recent = msg.recent
		m.err = nil
		return m, nil
	}

	return m, nil
}

func (m dashboardModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	title := titleStyle.Render(" prdflow Dashboard ")
	help := helpStyle.Render("tab: switch panel | r: refresh | q: quit")

	if m.loading {
		return fmt.Sprintf("%s\n\n  Loading data...\n\n%s", title, help)
	}

	if m.err != nil {
		return fmt.Sprintf("%s\n\n  Error: %s\n\n%s", title, m.err, help)
	}

	itemsPanel := m.renderItemsPanel()
	metricsPanel := m.renderMetricsPanel()
	recentPanel := m.renderRecentPanel()

	availableWidth := m.width - 2

	var body string
	if availableWidth > 120 {
		colWidth := availableWidth / 3
		itemsPanel = m.applyPanelStyle(panelItems, itemsPanel, colWidth-4)
		metricsPanel = m.applyPanelStyle(panelMetrics, metricsPanel, colWidth-4)
		recentPanel = m.applyPanelStyle(panelRecent, recentPanel, colWidth-4)
		body = lipgloss.JoinHorizontal(lipgloss.Top, itemsPanel, metricsPanel, recentPanel)
	} else {
		panelWidth := availableWidth - 4
		if panelWidth < 20 {
			panelWidth = 20
		}
		itemsPanel = m.applyPanelStyle(panelItems, itemsPanel, panelWidth)
		metricsPanel = m.applyPanelStyle(panelMetrics, metricsPanel, panelWidth)
		recentPanel = m.applyPanelStyle(panelRecent, recentPanel, panelWidth)
		body = lipgloss.JoinVertical(lipgloss.Left, itemsPanel, metricsPanel, recentPanel)
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s", title, body, help)
}

func (m dashboardModel) applyPanelStyle(panel int, content string, width int) string {
	style := panelStyle
	if m.activePanel == panel {
		style = activePanelStyle
	}
	return style.Width(width).Render(content)
}

func (m dashboardModel) renderItemsPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Items"))
	b.WriteString("\n")

	if len(m.statusCounts) == 0 {
		b.WriteString("  No work items found.")
		return b.String()
	}

	// Display in lifecycle order.
	order := []models.Status{
		models.StatusInProgress,
		models.StatusInReview,
		models.StatusNotStarted,
		models.StatusCompleted,
	}
	for _, status := range order {
		count, ok := m.statusCounts[string(status)]
		if !ok || count == 0 {
			continue
		}
		label := fmt.Sprintf("  %-14s %d", status, count)
		b.WriteString(styleForStatus(status).Render(label))
		b.WriteString("\n")
	}

	total := 0
	for _, c := range m.statusCounts {
		total += c
	}
	b.WriteString(fmt.Sprintf("\n  Total: %d", total))

	return b.String()
}

func (m dashboardModel) renderMetricsPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Metrics (7d)"))
	b.WriteString("\n")

	if m.metricsData == nil {
		b.WriteString("  No metrics available.")
		return b.String()
	}

	md := m.metricsData
	lines := []struct {
		label string
		value int
	}{
		{"Events", md.eventCount},
		{"Created", md.itemsCreated},
		{"Completed", md.itemsCompleted},
		{"Loops run", md.loopsStarted},
		{"Loops done", md.loopsFinished},
		{"Sweeps", md.archiveSweeps},
	}

	for _, l := range lines {
		b.WriteString(fmt.Sprintf("  %-14s %d\n", l.label, l.value))
	}

	return b.String()
}

func (m dashboardModel) renderRecentPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Recent completions"))
	b.WriteString("\n")

	if len(m.recent) == 0 {
		b.WriteString("  Nothing completed recently.")
		return b.String()
	}

	for _, c := range m.recent {
		b.WriteString(fmt.Sprintf("  %s %s\n", styleCompleted.Render(c.id), c.time))
	}

	return b.String()
}

func loadDashboardData() tea.Msg {
	result := dashDataMsg{
		statusCounts: make(map[string]int),
	}

	if Store != nil {
		items, err := Store.Read()
		if err != nil {
			result.err = fmt.Errorf("loading items: %w", err)
			return result
		}
		for _, item := range items {
			result.statusCounts[string(item.Status)]++
		}
	}

	if MetricsCalc != nil {
		since := time.Now().UTC().AddDate(0, 0, -7)
		metrics, err := MetricsCalc.Calculate(since)
		if err != nil {
			result.err = fmt.Errorf("loading metrics: %w", err)
			return result
		}
		result.metrics = &metricsSnapshot{
			itemsCreated:   metrics.ItemsCreated,
			itemsCompleted: metrics.ItemsCompleted,
			loopsStarted:   metrics.LoopsStarted,
			loopsFinished:  metrics.LoopsFinished,
			archiveSweeps:  metrics.ArchiveSweeps,
			eventCount:     metrics.EventCount,
		}
	}

	if EventLog != nil {
		since := time.Now().UTC().AddDate(0, 0, -7)
		events, err := EventLog.Read(observability.EventFilter{Since: &since, Type: "item.completed"})
		if err != nil {
			result.err = fmt.Errorf("loading completions: %w", err)
			return result
		}
		// Newest first, capped at ten.
		for i := len(events) - 1; i >= 0 && len(result.recent) < 10; i-- {
			id, _ := events[i].Data["id"].(string)
			if id == "" {
				continue
			}
			result.recent = append(result.recent, completionSnapshot{
				id:   id,
				time: events[i].Time.Format("2006-01-02 15:04 UTC"),
			})
		}
	}

	return result
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Interactive TUI dashboard for item status and metrics",
	Long: `Launch an interactive terminal dashboard showing work item status counts,
event log metrics, and recent completions.

Navigate between panels with Tab, refresh with r, quit with q.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Store == nil {
			return fmt.Errorf("store not initialized")
		}
		p := tea.NewProgram(newDashboardModel(), tea.WithAltScreen())
		_, err := p.Run()
		return err
	},
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}
