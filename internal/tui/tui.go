// Package tui is the interactive mode: a bubbletea item browser over one
// checklist, backed by the state manager. Edits persist immediately, and
// changes made by another process on the same data directory show up live.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aidventure/packlist/internal/model"
	"github.com/aidventure/packlist/internal/state"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	successStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	pendingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	accentStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	highStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("5"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	doneStyle     = lipgloss.NewStyle().Strikethrough(true).Foreground(lipgloss.Color("8"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
)

const (
	boxUnchecked = "☐"
	boxChecked   = "☑"
)

// refreshMsg is sent whenever the manager's state changes, including
// changes caused by another process.
type refreshMsg struct{}

// listItem adapts a checklist item to bubbles/list.Item.
type listItem struct {
	ID       string
	Name     string
	Category string
	Quantity int
	Priority model.Priority
	Done     bool
}

func (i listItem) Title() string       { return i.Name }
func (i listItem) Description() string { return "" }
func (i listItem) FilterValue() string { return i.Name + " " + i.Category }

// Custom delegate to control how items render (single line)
type itemDelegate struct{}

func (d itemDelegate) Height() int                               { return 1 }
func (d itemDelegate) Spacing() int                              { return 0 }
func (d itemDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }
func (d itemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, _ := item.(listItem)

	box := mutedStyle.Render(boxUnchecked)
	text := it.Name
	if it.Done {
		box = successStyle.Render(boxChecked)
		text = doneStyle.Render(text)
	}
	if it.Quantity > 1 {
		text += mutedStyle.Render(fmt.Sprintf(" ×%d", it.Quantity))
	}
	switch it.Priority {
	case model.PriorityHigh:
		text += " " + highStyle.Render("[!]")
	case model.PriorityOptional:
		text += " " + mutedStyle.Render("[~]")
	}
	if it.Category != "" {
		text += "  " + mutedStyle.Render(it.Category)
	}

	prefix := "  "
	if index == m.Index() {
		prefix = selectedStyle.Render("> ")
	}
	fmt.Fprintln(w, prefix+box+" "+text)
}

type tuiModel struct {
	mgr  *state.Manager
	list list.Model

	// Inline add/edit share one text input. Adds accept "Category: Name".
	ti         textinput.Model
	adding     bool
	editing    bool
	editItemID string
	inputErr   string

	// Single-level undo for deleted items.
	undo *model.Item
}

// Run opens the interactive browser. With an empty id it selects the
// oldest checklist.
func Run(mgr *state.Manager, checklistID string) error {
	if checklistID == "" {
		lists := sortedLists(mgr)
		if len(lists) == 0 {
			return errors.New("no checklists yet; create one with `packlist create`")
		}
		checklistID = lists[0].ID
	}
	mgr.SetCurrentChecklist(checklistID)

	l := list.New(nil, itemDelegate{}, 0, 0)
	l.SetShowHelp(true)
	l.SetShowPagination(true)
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.Styles.Title = titleStyle
	l.Styles.HelpStyle = helpStyle
	l.Styles.PaginationStyle = helpStyle
	l.FilterInput.Prompt = "/ "
	l.SetStatusBarItemName("item", "items")

	extra := []key.Binding{
		key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add")),
		key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit")),
		key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "undo")),
		key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next list")),
	}
	l.AdditionalShortHelpKeys = func() []key.Binding { return extra }
	l.AdditionalFullHelpKeys = func() []key.Binding { return extra }

	m := tuiModel{mgr: mgr, list: l}
	m.ti = textinput.New()
	m.ti.Prompt = "> "
	m.ti.Placeholder = "Category: Item name..."
	m.ti.CharLimit = 200
	m.refresh()

	p := tea.NewProgram(m, tea.WithAltScreen())
	cancel := mgr.Watch(func() { p.Send(refreshMsg{}) })
	defer cancel()

	_, err := p.Run()
	return err
}

func sortedLists(mgr *state.Manager) []model.Checklist {
	lists := mgr.Checklists()
	sort.Slice(lists, func(i, j int) bool {
		return lists[i].CreatedAt.Before(lists[j].CreatedAt)
	})
	return lists
}

// refresh rebuilds the list from the manager's current checklist.
func (m *tuiModel) refresh() {
	c := m.mgr.CurrentChecklist()
	if c == nil {
		// Deleted under us; fall back to whatever remains.
		if lists := sortedLists(m.mgr); len(lists) > 0 {
			m.mgr.SetCurrentChecklist(lists[0].ID)
			c = &lists[0]
		} else {
			m.list.SetItems(nil)
			m.list.Title = titleStyle.Render("packlist") + mutedStyle.Render("  (no checklists)")
			return
		}
	}

	li := make([]list.Item, 0, len(c.Items))
	for _, it := range c.Items {
		li = append(li, listItem{
			ID:       it.ID,
			Name:     it.Name,
			Category: it.Category,
			Quantity: it.Quantity,
			Priority: it.Priority,
			Done:     it.Completed,
		})
	}
	m.list.SetItems(li)

	done, pending := c.Stats()
	m.list.Title = fmt.Sprintf("%s   %s %d  %s %d  %s %d",
		titleStyle.Render(c.Name),
		successStyle.Render("✔"), done,
		pendingStyle.Render("•"), pending,
		accentStyle.Render("Total"), len(c.Items),
	)
}

func (m tuiModel) Init() tea.Cmd { return nil }

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	ctx := context.Background()
	curID := m.mgr.CurrentChecklistID()

	if _, ok := msg.(refreshMsg); ok {
		m.refresh()
		return m, nil
	}

	// add mode
	if m.adding {
		var cmd tea.Cmd
		switch x := msg.(type) {
		case tea.KeyMsg:
			switch x.String() {
			case "enter":
				category, name := splitCategory(m.ti.Value())
				if name == "" {
					m.inputErr = "Name cannot be empty"
					return m, nil
				}
				if err := m.mgr.AddItem(ctx, curID, model.Item{Name: name, Category: category}); err != nil {
					m.inputErr = err.Error()
					return m, nil
				}
				m.ti.SetValue("")
				m.ti.Blur()
				m.adding = false
				m.inputErr = ""
				return m, nil
			case "esc":
				m.adding = false
				m.ti.SetValue("")
				m.ti.Blur()
				m.inputErr = ""
				return m, nil
			}
		}
		m.ti, cmd = m.ti.Update(msg)
		return m, cmd
	}

	// edit mode
	if m.editing {
		var cmd tea.Cmd
		switch x := msg.(type) {
		case tea.KeyMsg:
			switch x.String() {
			case "enter":
				name := strings.TrimSpace(m.ti.Value())
				if name == "" {
					m.inputErr = "Name cannot be empty"
					return m, nil
				}
				patch := model.ItemPatch{Name: model.Ptr(name)}
				if err := m.mgr.UpdateItem(ctx, curID, m.editItemID, patch); err != nil {
					m.inputErr = err.Error()
					return m, nil
				}
				m.ti.SetValue("")
				m.ti.Blur()
				m.editing = false
				m.inputErr = ""
				return m, nil
			case "esc":
				m.editing = false
				m.ti.SetValue("")
				m.ti.Blur()
				m.inputErr = ""
				return m, nil
			}
		}
		m.ti, cmd = m.ti.Update(msg)
		return m, cmd
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		h := msg.Height - 4
		if m.adding || m.editing {
			h = msg.Height - 6
		}
		m.list.SetSize(msg.Width-4, h)
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc":
			return m, tea.Quit
		case " ":
			if it, ok := m.selected(); ok {
				m.mgr.ToggleItemComplete(ctx, curID, it.ID)
			}
			return m, nil
		case "d":
			if it, ok := m.selected(); ok {
				saved := model.Item{
					ID: it.ID, Name: it.Name, Category: it.Category,
					Quantity: it.Quantity, Priority: it.Priority, Completed: it.Done,
				}
				if err := m.mgr.DeleteItem(ctx, curID, it.ID); err == nil {
					m.undo = &saved
				}
			}
			return m, nil
		case "a":
			m.adding = true
			m.ti.SetValue("")
			m.ti.Placeholder = "Category: Item name..."
			m.ti.Focus()
			return m, nil
		case "e":
			if it, ok := m.selected(); ok {
				m.editing = true
				m.editItemID = it.ID
				m.ti.SetValue(it.Name)
				m.ti.CursorEnd()
				m.ti.Placeholder = "Edit item name..."
				m.ti.Focus()
			}
			return m, nil
		case "u":
			if m.undo != nil {
				// Re-adding assigns a fresh id; identity doesn't survive
				// deletion.
				m.mgr.AddItem(ctx, curID, model.Item{
					Name: m.undo.Name, Category: m.undo.Category,
					Quantity: m.undo.Quantity, Priority: m.undo.Priority,
					Completed: m.undo.Completed,
				})
				m.undo = nil
			}
			return m, nil
		case "tab", "shift+tab":
			lists := sortedLists(m.mgr)
			if len(lists) > 1 {
				i := 0
				for j, c := range lists {
					if c.ID == curID {
						i = j
						break
					}
				}
				if msg.String() == "tab" {
					i = (i + 1) % len(lists)
				} else {
					i = (i - 1 + len(lists)) % len(lists)
				}
				m.mgr.SetCurrentChecklist(lists[i].ID)
			}
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m tuiModel) View() string {
	content := m.list.View()
	if m.adding || m.editing {
		bar := lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("8")).Padding(0, 1)
		title := "Add item (Category: Name)"
		if m.editing {
			title = "Edit item"
		}
		if m.inputErr != "" {
			title += ": " + errorStyle.Render(m.inputErr)
		}
		content = content + "\n" + bar.Render(title+"\n"+m.ti.View())
	}
	if msg := m.mgr.Err(); msg != "" {
		content += "\n" + errorStyle.Render("! "+msg)
	}
	border := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("8")).
		Padding(0, 1)
	return border.Render(content)
}

func (m tuiModel) selected() (listItem, bool) {
	i := m.list.Index()
	if i < 0 || i >= len(m.list.Items()) {
		return listItem{}, false
	}
	it, ok := m.list.Items()[i].(listItem)
	return it, ok
}

// splitCategory parses "Category: Name", defaulting to no category.
func splitCategory(s string) (category, name string) {
	if i := strings.Index(s, ":"); i >= 0 {
		return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:])
	}
	return "", strings.TrimSpace(s)
}
