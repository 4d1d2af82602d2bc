package tui

import (
	"fmt"
	"image/color"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	xansi "github.com/charmbracelet/x/ansi"

	"github.com/hylla/tavla/internal/domain"
	"github.com/hylla/tavla/internal/richtext"
)

// View renders the board, the toast line, the help bar and any open modal.
func (m Model) View() tea.View {
	if !m.ready {
		v := tea.NewView("loading...")
		v.MouseMode = tea.MouseModeCellMotion
		v.AltScreen = true
		return v
	}

	accent := lipgloss.Color("62")
	muted := lipgloss.Color("241")
	dim := lipgloss.Color("239")

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	helpStyle := lipgloss.NewStyle().Foreground(muted)
	statusStyle := lipgloss.NewStyle().Foreground(dim)

	header := titleStyle.Render(m.studentName + "'s To Do List")
	if m.loading > 0 {
		header += " " + m.spinner.View()
	}
	header += statusStyle.Render("  [" + m.modeLabel() + "]")
	header += statusStyle.Render("  category: " + categoryLabel(m.state.CurrentCategory))
	header += statusStyle.Render("  sort: " + m.sortMode.Label())
	if m.query != "" && m.mode != modeSearch {
		header += statusStyle.Render("  search: " + m.query)
	}
	if pending := m.state.Moves.PendingCount(); pending > 0 {
		header += statusStyle.Render(fmt.Sprintf("  saving: %d", pending))
	}

	sections := []string{header}
	if m.mode == modeSearch {
		sections = append(sections, m.searchInput.View())
	}
	sections = append(sections, "", m.renderBoard(accent, muted, dim))
	if line := m.renderToast(accent); line != "" {
		sections = append(sections, line)
	}
	if strings.TrimSpace(m.status) != "" && m.status != "ready" {
		sections = append(sections, statusStyle.Render(m.status))
	}
	content := strings.Join(sections, "\n")

	helpBubble := m.help
	helpBubble.ShowAll = false
	helpBubble.SetWidth(max(0, m.width-2))
	helpLine := lipgloss.NewStyle().
		Foreground(muted).
		BorderTop(true).
		BorderForeground(dim).
		Padding(0, 1).
		Width(max(0, m.width)).
		Render(helpBubble.View(m.keys))

	if m.height > 0 {
		helpHeight := lipgloss.Height(helpLine)
		content = fitLines(content, max(0, m.height-helpHeight))
	}

	fullContent := content + "\n" + helpLine
	overlay := m.renderModeOverlay(accent, muted, dim, helpStyle, m.width-8)
	if m.help.ShowAll && m.mode == modeNone {
		overlay = m.renderHelpOverlay(accent, muted, dim, m.width-8)
	}
	if overlay != "" {
		overlayHeight := lipgloss.Height(fullContent)
		if m.height > 0 {
			overlayHeight = m.height
		}
		fullContent = overlayOnContent(fullContent, overlay, max(1, m.width), max(1, overlayHeight))
	}

	view := tea.NewView(fullContent)
	view.MouseMode = tea.MouseModeCellMotion
	view.AltScreen = true
	return view
}

// renderBoard draws the three status columns side by side.
func (m Model) renderBoard(accent, muted, dim color.Color) string {
	b := m.currentBoard()
	colWidth := m.columnWidth()
	colHeight := m.columnHeight()

	baseColStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(dim).
		Padding(1, 2).
		MarginRight(1).
		Width(colWidth)
	selColStyle := baseColStyle.BorderForeground(accent)
	colTitle := lipgloss.NewStyle().Bold(true).Foreground(accent)
	emptyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	selectedTaskStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	pendingStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	itemSubStyle := lipgloss.NewStyle().Foreground(muted)

	columnViews := make([]string, 0, len(b.Columns))
	for colIdx, column := range b.Columns {
		headerLines := []string{colTitle.Render(fmt.Sprintf("%s (%d)", column.Status.Label(), column.Count()))}

		taskLines := make([]string, 0, max(1, len(column.Tasks)*3))
		selectedStart, selectedEnd := -1, -1
		if len(column.Tasks) == 0 {
			taskLines = append(taskLines, emptyStyle.Render("(empty)"))
		}
		for taskIdx, task := range column.Tasks {
			selected := colIdx == m.selectedColumn && taskIdx == m.selectedTask
			prefix := "   "
			if selected {
				prefix = "│  "
			}
			title := prefix + truncate(task.Title, max(1, colWidth-8))
			if selected {
				title = selectedTaskStyle.Render(title)
			}
			sub := task.CategoryLabel() + " · " + task.DueLabel()
			sub = prefix + itemSubStyle.Render(truncate(sub, max(1, colWidth-8)))
			if phase := m.state.Moves.Phase(task.ID); phase.Pending {
				sub += pendingStyle.Render(" ⟳")
			}

			rowStart := len(taskLines)
			taskLines = append(taskLines, title, sub)
			if preview := richtext.Preview(task.Description, max(1, colWidth-8)); preview != "" {
				taskLines = append(taskLines, prefix+emptyStyle.Render(preview))
			}
			if taskIdx < len(column.Tasks)-1 {
				taskLines = append(taskLines, "")
			}
			if selected {
				selectedStart = rowStart
				selectedEnd = len(taskLines) - 1
			}
		}

		innerHeight := max(1, colHeight-4)
		taskWindowHeight := max(1, innerHeight-len(headerLines))
		scrollTop := 0
		if colIdx == m.selectedColumn && selectedStart >= 0 {
			if selectedEnd >= scrollTop+taskWindowHeight {
				scrollTop = selectedEnd - taskWindowHeight + 1
			}
			if selectedStart < scrollTop {
				scrollTop = selectedStart
			}
		}
		scrollTop = clamp(scrollTop, 0, max(0, len(taskLines)-taskWindowHeight))
		if len(taskLines) > taskWindowHeight {
			taskLines = taskLines[scrollTop : scrollTop+taskWindowHeight]
		}

		lines := append(append([]string{}, headerLines...), taskLines...)
		body := fitLines(strings.Join(lines, "\n"), innerHeight)
		if colIdx == m.selectedColumn {
			columnViews = append(columnViews, selColStyle.Render(body))
		} else {
			columnViews = append(columnViews, baseColStyle.Render(body))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, columnViews...)
}

func (m Model) renderToast(accent color.Color) string {
	if m.toast.text == "" {
		return ""
	}
	style := lipgloss.NewStyle().Bold(true).Foreground(accent)
	if m.toast.isError {
		style = style.Foreground(lipgloss.Color("203"))
	}
	return style.Render("» " + m.toast.text)
}

// renderModeOverlay renders the modal for the active mode, if any.
func (m Model) renderModeOverlay(accent, muted, dim color.Color, helpStyle lipgloss.Style, maxWidth int) string {
	modalStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(accent).
		Padding(0, 1)
	if maxWidth > 0 {
		modalStyle = modalStyle.Width(clamp(maxWidth, 56, 96))
	}
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(accent)
	hintStyle := lipgloss.NewStyle().Foreground(muted)
	labelStyle := lipgloss.NewStyle().Foreground(dim).Width(14)

	switch m.mode {
	case modeCategoryPicker:
		lines := []string{titleStyle.Render("Category"), ""}
		for idx, category := range m.categoryChoices() {
			prefix := "  "
			row := categoryLabel(category)
			if idx == m.pickerIdx {
				prefix = "› "
				row = lipgloss.NewStyle().Bold(true).Foreground(accent).Render(row)
			}
			lines = append(lines, prefix+row)
		}
		lines = append(lines, "", hintStyle.Render("j/k choose • enter apply • esc cancel"))
		return modalStyle.Render(strings.Join(lines, "\n"))

	case modeTaskInfo:
		task := m.info
		lines := []string{
			titleStyle.Render(task.Title),
			"",
			labelStyle.Render("status") + task.Status.Label(),
			labelStyle.Render("category") + task.CategoryLabel(),
			labelStyle.Render("due") + task.DueLabel(),
			labelStyle.Render("created") + task.CreatedAt,
			labelStyle.Render("updated") + task.UpdatedAt,
			labelStyle.Render("id") + task.ID,
			"",
		}
		if desc := m.markdown.renderDescription(task.Description, clamp(maxWidth, 56, 96)-6); desc != "" {
			lines = append(lines, desc)
		} else {
			lines = append(lines, helpStyle.Render("(no description)"))
		}
		lines = append(lines, "", hintStyle.Render("e edit • d delete • y copy id • esc close"))
		return modalStyle.Render(strings.Join(lines, "\n"))

	case modeConfirmDelete:
		confirm := "[confirm]"
		cancel := "[cancel]"
		selected := lipgloss.NewStyle().Bold(true).Foreground(accent)
		if m.confirmChoice == 0 {
			confirm = selected.Render(confirm)
		} else {
			cancel = selected.Render(cancel)
		}
		target := m.confirmTaskID
		if task, ok := m.state.TaskByID(m.confirmTaskID); ok {
			target = task.Title
		}
		lines := []string{
			titleStyle.Render("Delete this task?"),
			"",
			truncate(target, 80),
			"",
			confirm + "  " + cancel,
			"",
			hintStyle.Render("y confirm • n/esc cancel • h/l choose • enter apply"),
		}
		return modalStyle.Render(strings.Join(lines, "\n"))

	case modeAddTask, modeEditTask:
		return modalStyle.Render(m.renderTaskForm(accent, titleStyle, hintStyle, labelStyle))
	}
	return ""
}

// renderTaskForm lays out the form fields, marking the focused one.
func (m Model) renderTaskForm(accent color.Color, titleStyle, hintStyle, labelStyle lipgloss.Style) string {
	title := "New Task"
	if m.form.editing() {
		title = "Edit Task"
	}
	focusedLabel := labelStyle.Foreground(accent).Bold(true)
	lines := []string{titleStyle.Render(title), ""}
	for idx := range formFieldCount {
		label := labelStyle.Render(formFieldLabels[idx])
		if idx == m.form.focus {
			label = focusedLabel.Render(formFieldLabels[idx])
		}
		var value string
		switch idx {
		case formFieldTitle:
			value = m.form.title.View()
		case formFieldCategory:
			value = selectValue(categoryOrNone(m.form.selectedCategory()), idx == m.form.focus)
		case formFieldNewCategory:
			value = m.form.newCategory.View()
		case formFieldStatus:
			value = selectValue(m.form.selectedStatus().Label(), idx == m.form.focus)
		case formFieldDue:
			value = m.form.due.View()
		case formFieldDescription:
			lines = append(lines, label, m.form.description.View())
			continue
		}
		lines = append(lines, label+value)
	}
	hint := "tab next • ←/→ choose • ctrl+a add category • enter/ctrl+s save • esc cancel"
	if m.form.editing() {
		hint += " • ctrl+d delete"
	}
	if m.saving {
		hint = "saving..."
	}
	lines = append(lines, "", hintStyle.Render(hint))
	return strings.Join(lines, "\n")
}

// renderHelpOverlay renders the full key reference.
func (m Model) renderHelpOverlay(accent, muted, dim color.Color, maxWidth int) string {
	width := clamp(maxWidth, 56, 100)
	hb := m.help
	hb.ShowAll = true
	hb.SetWidth(width - 4)

	lines := []string{
		lipgloss.NewStyle().Bold(true).Foreground(accent).Render("Keys"),
		"",
		hb.View(m.keys),
		"",
		lipgloss.NewStyle().Foreground(muted).Render("form: tab fields • ←/→ category and status • ctrl+a add category • ctrl+s save • ctrl+d delete"),
		lipgloss.NewStyle().Foreground(muted).Render("press ? or esc to close"),
	}
	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(dim).
		Padding(0, 1)
	if maxWidth > 0 {
		style = style.Width(width)
	}
	return style.Render(strings.Join(lines, "\n"))
}

func (m Model) modeLabel() string {
	switch m.mode {
	case modeSearch:
		return "search"
	case modeCategoryPicker:
		return "filter"
	case modeAddTask:
		return "new"
	case modeEditTask:
		return "edit"
	case modeTaskInfo:
		return "info"
	case modeConfirmDelete:
		return "confirm"
	}
	return "board"
}

func selectValue(value string, focused bool) string {
	if focused {
		return "‹ " + value + " ›"
	}
	return value
}

func categoryOrNone(category string) string {
	if category == "" {
		return "(none)"
	}
	return category
}

func (m Model) modalWidth() int {
	return clamp(m.width-8, 56, 96)
}

func (m Model) columnWidth() int {
	return columnWidthFor(m.width, len(domain.Statuses))
}

// columnWidthFor splits boardWidth across columns.
func columnWidthFor(boardWidth, columns int) int {
	w := 28
	if boardWidth > 0 && columns > 0 {
		// Per-column overhead: left/right border (2), horizontal padding (4), margin-right (1)
		const colOverhead = 7
		if candidate := (boardWidth - columns*colOverhead) / columns; candidate > 0 {
			w = candidate
		}
	}
	return clamp(w, 24, 42)
}

// columnHeight leaves room for header, toast, status and help lines.
func (m Model) columnHeight() int {
	headerLines := 2
	if m.mode == modeSearch {
		headerLines++
	}
	footerLines := 4
	return max(10, m.height-headerLines-footerLines)
}

// fitLines pads or truncates content to exactly maxLines lines.
func fitLines(content string, maxLines int) string {
	if maxLines <= 0 {
		return ""
	}
	lines := strings.Split(content, "\n")
	switch {
	case len(lines) > maxLines:
		if maxLines == 1 {
			lines = []string{"…"}
		} else {
			lines = append(lines[:maxLines-1], "…")
		}
	case len(lines) < maxLines:
		lines = append(lines, make([]string, maxLines-len(lines))...)
	}
	return strings.Join(lines, "\n")
}

// overlayOnContent centers overlay over base using a layered canvas.
func overlayOnContent(base, overlay string, width, height int) string {
	if width <= 0 || height <= 0 {
		if strings.TrimSpace(overlay) == "" {
			return base
		}
		return overlay + "\n\n" + base
	}

	base = fitLines(base, height)
	canvas := lipgloss.NewCanvas(width, height)
	baseLayer := lipgloss.NewLayer(base).X(0).Y(0).Z(0)
	centered := lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, overlay)
	canvas.Compose(baseLayer)
	canvas.Compose(lipgloss.NewLayer(centered).X(0).Y(0).Z(10))
	return canvas.Render()
}

// truncate shortens s to max runes, ending with an ellipsis.
func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	return xansi.Truncate(s, max, "…")
}
