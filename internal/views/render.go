package views

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

type AppData struct {
	Header     string
	Banner     string
	ListPane   string
	DetailPane string
	Overlay    string
	StatusLine string
	StatusErr  bool
	Footer     string
	Width      int
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	panelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	staleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
)

// PaneWidths splits the terminal width between the task list and the detail
// pane, keeping both usable on narrow terminals.
func PaneWidths(total int) (list, detail int) {
	if total <= 0 {
		total = 120
	}
	list = total * 3 / 5
	if list < 48 {
		list = 48
	}
	detail = total - list - 4
	if detail < 30 {
		detail = 30
	}
	return list, detail
}

func RenderApp(data AppData) string {
	listWidth, detailWidth := PaneWidths(data.Width)
	left := panelStyle.Width(listWidth - 4).Render(data.ListPane)
	right := panelStyle.Width(detailWidth - 4).Render(data.DetailPane)
	row := lipgloss.JoinHorizontal(lipgloss.Top, left, right)

	lines := []string{headerStyle.Render(data.Header)}
	if data.Banner != "" {
		lines = append(lines, data.Banner)
	}
	lines = append(lines, row)
	if data.Overlay != "" {
		lines = append(lines, panelStyle.Render(data.Overlay))
	}
	if data.StatusLine != "" {
		if data.StatusErr {
			lines = append(lines, errorStyle.Render(data.StatusLine))
		} else {
			lines = append(lines, statusStyle.Render(data.StatusLine))
		}
	}
	if data.Footer != "" {
		lines = append(lines, footerStyle.Render(data.Footer))
	}
	return strings.Join(lines, "\n")
}

func RenderHeader(user string, fetchedAt string, stale bool, spinner string) string {
	parts := []string{"taskfuse"}
	if user != "" {
		parts = append(parts, user)
	}
	if fetchedAt != "" {
		parts = append(parts, "synced "+fetchedAt)
	}
	if spinner != "" {
		parts = append(parts, spinner+" fetching")
	}
	header := strings.Join(parts, " | ")
	if stale {
		header += " " + staleStyle.Render("[offline: cached]")
	}
	return header
}

func RenderMarkdown(md string, width int) string {
	if strings.TrimSpace(md) == "" {
		return ""
	}
	opts := []glamour.TermRendererOption{glamour.WithStandardStyle("dark")}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimSpace(out)
}
