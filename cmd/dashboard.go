package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/bankops/bankctl/internal/config"
	"github.com/bankops/bankctl/internal/model"
	"github.com/bankops/bankctl/internal/orchestrator"
	"github.com/bankops/bankctl/internal/report"
	"github.com/bankops/bankctl/internal/stack"
	"github.com/bankops/bankctl/internal/storage"
)

var dashboardRefreshInterval time.Duration

// dashboardCmd shows an interactive terminal UI for monitoring the stack
var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Interactive dashboard for monitoring the stack",
	Long: `Launch an interactive terminal UI showing live service health and the
most recent deployment runs.

Keyboard shortcuts:
  q         - Quit
  r         - Refresh now

The dashboard auto-refreshes every two seconds by default.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		bindFlags(cmd)

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		st, err := stack.Load(cfg.StackFile, cfg)
		if err != nil {
			return err
		}

		orch, err := orchestrator.NewDockerOrchestrator(cfg.Environment, st.Network)
		if err != nil {
			return fmt.Errorf("failed to create orchestrator: %w", err)
		}
		defer orch.Close()

		// Run history is optional here; the services panel works without it.
		var store storage.RunStore
		history := storage.NewBoltRunStore(&storage.BoltOptions{Path: cfg.HistoryPath()})
		if err := history.Open(); err == nil {
			store = history
			defer history.Close()
		}

		// Create the bubbletea program
		p := tea.NewProgram(initialModel(cfg, st, orch, store), tea.WithAltScreen())

		// Run the program
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("error running dashboard: %w", err)
		}

		return nil
	},
}

// Model for the dashboard
type dashboardModel struct {
	cfg             *config.PipelineConfig
	stack           *model.Stack
	orch            orchestrator.Orchestrator
	store           storage.RunStore
	refreshInterval time.Duration
	rows            []report.ServiceRow
	runs            []*model.RunReport
	lastUpdate      time.Time
	err             error
	quitting        bool
}

// Messages
type tickMsg time.Time
type dataMsg struct {
	rows []report.ServiceRow
	runs []*model.RunReport
	err  error
}

func initialModel(cfg *config.PipelineConfig, st *model.Stack, orch orchestrator.Orchestrator, store storage.RunStore) dashboardModel {
	return dashboardModel{
		cfg:             cfg,
		stack:           st,
		orch:            orch,
		store:           store,
		refreshInterval: dashboardRefreshInterval,
		lastUpdate:      time.Now(),
	}
}

func (m dashboardModel) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(m.refreshInterval),
		fetchDataCmd(m.cfg, m.stack, m.orch, m.store),
	)
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			// Manual refresh
			return m, fetchDataCmd(m.cfg, m.stack, m.orch, m.store)
		}

	case tickMsg:
		// Auto-refresh on tick
		return m, tea.Batch(
			tickCmd(m.refreshInterval),
			fetchDataCmd(m.cfg, m.stack, m.orch, m.store),
		)

	case dataMsg:
		m.rows = msg.rows
		m.runs = msg.runs
		m.err = msg.err
		m.lastUpdate = time.Now()
		return m, nil
	}

	return m, nil
}

func (m dashboardModel) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}

	var s strings.Builder

	// Header
	s.WriteString(headerStyle.Render(fmt.Sprintf("BANKCTL · %s", m.cfg.Environment)))
	s.WriteString("\n\n")

	// Show error if any
	if m.err != nil {
		s.WriteString(errorStyle.Render(fmt.Sprintf("Error: %s", m.err)))
		s.WriteString("\n\n")
		s.WriteString(helpStyle.Render("Press 'q' to quit"))
		return s.String()
	}

	// Services Section
	s.WriteString(sectionTitleStyle.Render("SERVICES"))
	s.WriteString(fmt.Sprintf(" (%d/%d healthy)", countHealthy(m.rows), len(m.rows)))
	s.WriteString("\n")
	s.WriteString(boxStyle.Render(renderServices(m.rows)))
	s.WriteString("\n\n")

	// Recent Runs Section
	s.WriteString(sectionTitleStyle.Render("RECENT RUNS"))
	s.WriteString(fmt.Sprintf(" (%d shown)", len(m.runs)))
	s.WriteString("\n")
	s.WriteString(boxStyle.Render(renderRuns(m.runs, m.store != nil)))
	s.WriteString("\n\n")

	// Footer with status and help
	s.WriteString(helpStyle.Render(fmt.Sprintf("Last update: %s | [q]uit [r]efresh",
		m.lastUpdate.Format("15:04:05"))))

	return s.String()
}

// Commands

func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchDataCmd(cfg *config.PipelineConfig, st *model.Stack, orch orchestrator.Orchestrator, store storage.RunStore) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		rows := statusRows(ctx, cfg, st, orch)

		var runs []*model.RunReport
		if store != nil {
			var err error
			runs, err = store.ListRuns(ctx, 5)
			if err != nil {
				return dataMsg{rows: rows, err: fmt.Errorf("failed to list runs: %w", err)}
			}
		}

		return dataMsg{rows: rows, runs: runs}
	}
}

// Rendering helpers

func renderServices(rows []report.ServiceRow) string {
	if len(rows) == 0 {
		return dimStyle.Render("No services in stack")
	}

	var s strings.Builder

	for i, row := range rows {
		if i > 0 {
			s.WriteString("\n")
		}

		// Health indicator
		switch row.Health {
		case model.Healthy:
			s.WriteString(healthyStyle.Render("✓"))
		case model.Unhealthy:
			s.WriteString(unhealthyStyle.Render("✗"))
		default:
			s.WriteString(dimStyle.Render("·"))
		}
		s.WriteString(" ")
		s.WriteString(boldStyle.Render(fmt.Sprintf("%-16s", row.Service)))
		s.WriteString(dimStyle.Render(fmt.Sprintf(" %-10s", row.State)))

		if row.Uptime > 0 {
			s.WriteString(dimStyle.Render(fmt.Sprintf("  up %s", row.Uptime.Round(time.Second))))
		}
		if row.Detail != "" {
			s.WriteString(dimStyle.Render(fmt.Sprintf("  %s", row.Detail)))
		}
	}

	return s.String()
}

func renderRuns(runs []*model.RunReport, historyAvailable bool) string {
	if !historyAvailable {
		return dimStyle.Render("Run history unavailable")
	}
	if len(runs) == 0 {
		return dimStyle.Render("No recorded runs")
	}

	var s strings.Builder

	for i, run := range runs {
		if i > 0 {
			s.WriteString("\n")
		}

		// Status indicator
		if run.Status == model.OutcomePass {
			s.WriteString(healthyStyle.Render("●"))
		} else {
			s.WriteString(unhealthyStyle.Render("●"))
		}
		s.WriteString(" ")
		s.WriteString(boldStyle.Render(shortRunID(run.ID)))
		s.WriteString(dimStyle.Render(fmt.Sprintf("  %s  started %s  took %s",
			run.Status,
			run.StartedAt.Format("Jan 02 15:04"),
			run.Duration().Round(time.Second))))
	}

	return s.String()
}

func countHealthy(rows []report.ServiceRow) int {
	count := 0
	for _, row := range rows {
		if row.Health == model.Healthy {
			count++
		}
	}
	return count
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Styles

var (
	// Colors
	primaryColor = lipgloss.Color("#7D56F4")
	successColor = lipgloss.Color("#04B575")
	errorColor   = lipgloss.Color("#FF0000")
	dimColor     = lipgloss.Color("#666666")

	// Text styles
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			PaddingLeft(2)

	sectionTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(primaryColor)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(1, 2).
			Width(80)

	boldStyle = lipgloss.NewStyle().
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(dimColor)

	healthyStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	unhealthyStyle = lipgloss.NewStyle().
			Foreground(errorColor).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(errorColor).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(dimColor).
			Italic(true)
)

func init() {
	rootCmd.AddCommand(dashboardCmd)

	dashboardCmd.Flags().String("env", "local", "target environment name")
	dashboardCmd.Flags().String("stack-file", "", "stack definition file (default is the built-in banking stack)")
	dashboardCmd.Flags().DurationVar(&dashboardRefreshInterval, "refresh-interval", 2*time.Second, "Auto-refresh interval")
}
