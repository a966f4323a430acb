package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type TaskRowData struct {
	Title    string
	Bar      string
	Label    string
	Tier     string
	Expired  bool
	Done     bool
	Selected bool
	NoFuse   bool
}

type TaskListData struct {
	Filter string
	Sort   string
	Rows   []TaskRowData
	Total  int
}

type DetailData struct {
	Title       string
	Due         string
	Created     string
	State       string
	Label       string
	Description string
}

type HelpPanelData struct {
	Bindings []string
	HelpView string
}

var (
	tierStyles = map[string]lipgloss.Style{
		"urgent": lipgloss.NewStyle().Foreground(lipgloss.Color("#ff0000")).Bold(true),
		"medium": lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5e00")),
		"safe":   lipgloss.NewStyle().Foreground(lipgloss.Color("#ffcc00")),
	}
	expiredStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff0000")).Bold(true).Blink(true)
	doneStyle     = lipgloss.NewStyle().Faint(true).Strikethrough(true)
	selectedStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	bannerStyles = map[string]lipgloss.Style{
		"success": bannerBase.BorderForeground(lipgloss.Color("10")).Foreground(lipgloss.Color("10")),
		"error":   bannerBase.BorderForeground(lipgloss.Color("9")).Foreground(lipgloss.Color("9")),
		"urgent":  bannerBase.BorderForeground(lipgloss.Color("#ff0000")).Foreground(lipgloss.Color("#ff0000")).Bold(true),
		"warning": bannerBase.BorderForeground(lipgloss.Color("11")).Foreground(lipgloss.Color("11")),
	}
	bannerBase = lipgloss.NewStyle().Border(lipgloss.ThickBorder()).Padding(0, 1)
)

func RenderTaskList(data TaskListData) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("tasks: %d/%d | filter: %s | sort: %s\n", len(data.Rows), data.Total, data.Filter, data.Sort))
	if len(data.Rows) == 0 {
		b.WriteString(mutedStyle.Render("(no tasks)"))
		return b.String()
	}
	for _, row := range data.Rows {
		b.WriteString(renderTaskRow(row))
		b.WriteString("\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func renderTaskRow(row TaskRowData) string {
	cursor := " "
	if row.Selected {
		cursor = ">"
	}
	title := row.Title
	switch {
	case row.Done:
		title = doneStyle.Render(title)
	case row.Selected:
		title = selectedStyle.Render(title)
	}

	label := row.Label
	switch {
	case row.NoFuse:
		label = mutedStyle.Render(label)
	case row.Expired:
		label = expiredStyle.Render(label)
	default:
		if style, ok := tierStyles[row.Tier]; ok {
			label = style.Render(label)
		}
	}

	if row.Bar == "" {
		return fmt.Sprintf("%s %s\n  %s", cursor, title, label)
	}
	return fmt.Sprintf("%s %s\n  %s %s", cursor, title, row.Bar, label)
}

// RenderBanner draws the transient notification strip.
func RenderBanner(severity, message string) string {
	if strings.TrimSpace(message) == "" {
		return ""
	}
	style, ok := bannerStyles[severity]
	if !ok {
		style = bannerBase
	}
	return style.Render(fmt.Sprintf("[%s] %s", strings.ToUpper(severity), message))
}

func RenderDetail(data DetailData, markdown string) string {
	if strings.TrimSpace(data.Title) == "" {
		return "details:\n(no selection)"
	}
	var b strings.Builder
	b.WriteString(selectedStyle.Render(data.Title) + "\n")
	b.WriteString(fmt.Sprintf("state: %s\n", data.State))
	b.WriteString(fmt.Sprintf("created: %s\n", data.Created))
	if data.Due != "" {
		b.WriteString(fmt.Sprintf("due: %s\n", data.Due))
	} else {
		b.WriteString("due: -\n")
	}
	b.WriteString(fmt.Sprintf("fuse: %s\n", data.Label))
	if strings.TrimSpace(markdown) != "" {
		b.WriteString("\n" + markdown)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func RenderCommandPalette(active bool, inputView string) string {
	if !active {
		return ""
	}
	return fmt.Sprintf("command: %s\n%s", inputView,
		mutedStyle.Render("filter all|active|overdue|urgent|done, sort due|created|title|progress [asc|desc], refresh, clear, done"))
}

func RenderHelpPanel(data HelpPanelData) string {
	return fmt.Sprintf("help:\n%s\n%s",
		strings.Join(data.Bindings, "\n"),
		data.HelpView,
	)
}
