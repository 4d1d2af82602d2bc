package tui

import (
	"slices"
	"strings"

	"charm.land/bubbles/v2/textarea"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"

	"github.com/hylla/tavla/internal/adapters/apiclient"
	"github.com/hylla/tavla/internal/domain"
	"github.com/hylla/tavla/internal/richtext"
)

// task-form field indexes in display order.
const (
	formFieldTitle = iota
	formFieldCategory
	formFieldNewCategory
	formFieldStatus
	formFieldDue
	formFieldDescription
	formFieldCount
)

var formFieldLabels = [formFieldCount]string{"title", "category", "add category", "status", "due", "description"}

// taskForm is the state behind the new/edit modal.
type taskForm struct {
	editingID   string
	focus       int
	title       textinput.Model
	newCategory textinput.Model
	due         textinput.Model
	description textarea.Model
	categories  []string
	categoryIdx int
	statusIdx   int

	// originalDescription is the stored markup; originalBody is what the
	// textarea started with. An unchanged body sends the stored markup back.
	originalDescription string
	originalBody        string
}

// formValues is the validated snapshot of a submitted form.
type formValues struct {
	Title       string
	Category    string
	Status      domain.Status
	DueDate     string
	Description string
}

// newModalInput constructs one single-line form input.
func newModalInput(prompt, placeholder, value string, limit int) textinput.Model {
	in := textinput.New()
	in.Prompt = prompt
	in.Placeholder = placeholder
	in.CharLimit = limit
	if value != "" {
		in.SetValue(value)
	}
	return in
}

// newTaskForm builds a form for task, or an empty one when task.ID is blank.
// Stored HTML descriptions are converted back to markdown for editing. A new
// task starts with no category selected.
func newTaskForm(task domain.Task, categories []string) taskForm {
	desc := textarea.New()
	desc.Placeholder = "markdown description"
	desc.ShowLineNumbers = false
	desc.SetHeight(5)
	body := task.Description
	if richtext.LooksLikeHTML(body) {
		body = richtext.ToMarkdown(body)
	}
	desc.SetValue(body)

	f := taskForm{
		editingID:   task.ID,
		title:       newModalInput("", "title", task.Title, domain.MaxTitleLength),
		newCategory: newModalInput("", "new category, ctrl+a to add", "", 80),
		due:         newModalInput("", "YYYY-MM-DD", task.DueDate, len(domain.DueDateLayout)),
		description: desc,
		categories:  slices.Clone(categories),
		categoryIdx: -1,
		statusIdx:   max(0, task.Status.Index()),

		originalDescription: task.Description,
		originalBody:        body,
	}
	if category := task.Category; category != "" {
		if !slices.Contains(f.categories, category) {
			f.categories = append(f.categories, category)
			slices.Sort(f.categories)
		}
		f.categoryIdx = slices.Index(f.categories, category)
	}
	return f
}

func (f taskForm) editing() bool {
	return f.editingID != ""
}

// focusField blurs every input and focuses idx, wrapping at the ends.
func (f *taskForm) focusField(idx int) tea.Cmd {
	idx = (idx%formFieldCount + formFieldCount) % formFieldCount
	f.focus = idx
	f.title.Blur()
	f.newCategory.Blur()
	f.due.Blur()
	f.description.Blur()
	switch idx {
	case formFieldTitle:
		return f.title.Focus()
	case formFieldNewCategory:
		return f.newCategory.Focus()
	case formFieldDue:
		return f.due.Focus()
	case formFieldDescription:
		return f.description.Focus()
	}
	return nil
}

// cycleCategory steps through "(none)" followed by every category.
func (f *taskForm) cycleCategory(delta int) {
	if len(f.categories) == 0 {
		return
	}
	n := len(f.categories) + 1
	pos := max(f.categoryIdx, -1) + 1
	f.categoryIdx = ((pos+delta)%n+n)%n - 1
}

func (f *taskForm) cycleStatus(delta int) {
	n := len(domain.Statuses)
	f.statusIdx = ((f.statusIdx+delta)%n + n) % n
}

// addCategory inserts the add-category input into the select and selects it.
func (f *taskForm) addCategory() (string, bool) {
	name := strings.TrimSpace(f.newCategory.Value())
	if name == "" {
		return "", false
	}
	if !slices.Contains(f.categories, name) {
		f.categories = append(f.categories, name)
		slices.Sort(f.categories)
	}
	f.categoryIdx = slices.Index(f.categories, name)
	f.newCategory.SetValue("")
	return name, true
}

func (f taskForm) selectedCategory() string {
	if f.categoryIdx < 0 || f.categoryIdx >= len(f.categories) {
		return ""
	}
	return f.categories[f.categoryIdx]
}

func (f taskForm) selectedStatus() domain.Status {
	return domain.Statuses[clamp(f.statusIdx, 0, len(domain.Statuses)-1)]
}

// values validates the form. The returned message is shown as a toast and
// the request is never sent.
func (f taskForm) values() (formValues, string) {
	title := strings.TrimSpace(f.title.Value())
	if title == "" {
		return formValues{}, "Title is required"
	}
	category := f.selectedCategory()
	if category == "" {
		category = strings.TrimSpace(f.newCategory.Value())
	}
	if category == "" {
		return formValues{}, "Category is required"
	}
	due := strings.TrimSpace(f.due.Value())
	if due != "" && !domain.ValidDueDate(due) {
		return formValues{}, "Due date must be YYYY-MM-DD"
	}
	description := strings.TrimSpace(f.description.Value())
	if f.editing() && description == strings.TrimSpace(f.originalBody) {
		description = f.originalDescription
	} else if description != "" {
		html, err := richtext.ToHTML(description)
		if err != nil {
			return formValues{}, "Description could not be converted"
		}
		description = html
	}
	return formValues{
		Title:       title,
		Category:    category,
		Status:      f.selectedStatus(),
		DueDate:     due,
		Description: description,
	}, ""
}

// createInput maps form values onto the create payload.
func (v formValues) createInput() apiclient.TaskInput {
	return apiclient.TaskInput{
		Title:       v.Title,
		Category:    v.Category,
		DueDate:     v.DueDate,
		Status:      v.Status,
		Description: v.Description,
	}
}

// updatePatch maps form values onto an update; an empty due date is left out.
func (v formValues) updatePatch() apiclient.TaskPatch {
	patch := apiclient.TaskPatch{
		Title:       &v.Title,
		Category:    &v.Category,
		Status:      &v.Status,
		Description: &v.Description,
	}
	if v.DueDate != "" {
		patch.DueDate = &v.DueDate
	}
	return patch
}

// update forwards a key to the focused text field.
func (f *taskForm) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch f.focus {
	case formFieldTitle:
		f.title, cmd = f.title.Update(msg)
	case formFieldNewCategory:
		f.newCategory, cmd = f.newCategory.Update(msg)
	case formFieldDue:
		f.due, cmd = f.due.Update(msg)
	case formFieldDescription:
		f.description, cmd = f.description.Update(msg)
	}
	return cmd
}

// setWidth sizes the text fields for the modal width.
func (f *taskForm) setWidth(width int) {
	inner := max(20, width-18)
	f.title.SetWidth(inner)
	f.newCategory.SetWidth(inner)
	f.due.SetWidth(inner)
	f.description.SetWidth(inner)
}
