package update

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"

	"github.com/sandeepkv93/taskfuse/internal/views"
)

func (k GlobalKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Down, k.Up, k.Refresh, k.Toggle, k.Palette, k.Help, k.Quit}
}

func (k GlobalKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Down, k.Up},
		{k.Refresh, k.Toggle, k.Clear},
		{k.NewTask, k.Delete},
		{k.Palette, k.Help, k.Quit},
	}
}

func (m Model) renderHelpIfVisible() string {
	if !m.HelpVisible {
		return ""
	}
	return m.renderHelpView()
}

func (m Model) renderHelpView() string {
	var plain []string
	for _, group := range m.Keys.FullHelp() {
		for _, b := range group {
			h := b.Help()
			plain = append(plain, fmt.Sprintf("- %s: %s", h.Key, h.Desc))
		}
	}
	plain = append(plain,
		"- /filter all|active|overdue|urgent|done",
		"- /sort due|created|title|progress [asc|desc]",
		"- /add <title> [@90m|@3d|@2026-03-10|@2026-03-10T15:00|@15:00]",
		"- /due <when>|none, /rename <title>, /desc <markdown>, /rm",
		"- /refresh, /clear, /done",
	)
	return views.RenderHelpPanel(views.HelpPanelData{
		Bindings: plain,
		HelpView: m.helpModel.View(m.Keys),
	})
}
