// Package tui renders the three-column task board and drives it from the keyboard.
package tui

import (
	"context"
	"io"
	"slices"
	"strings"
	"time"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"github.com/atotto/clipboard"
	charmLog "github.com/charmbracelet/log"

	"github.com/hylla/tavla/internal/adapters/apiclient"
	"github.com/hylla/tavla/internal/board"
	"github.com/hylla/tavla/internal/domain"
)

// Service is the task API the board talks to. *apiclient.Client satisfies it.
type Service interface {
	ListTasks(context.Context, string) ([]domain.Task, error)
	GetTask(context.Context, string) (domain.Task, error)
	CreateTask(context.Context, apiclient.TaskInput) (domain.Task, error)
	UpdateTask(context.Context, string, apiclient.TaskPatch) (domain.Task, error)
	DeleteTask(context.Context, string) error
	ListCategories(context.Context) ([]string, error)
}

// inputMode represents a selectable mode.
type inputMode int

const (
	modeNone inputMode = iota
	modeSearch
	modeCategoryPicker
	modeAddTask
	modeEditTask
	modeTaskInfo
	modeConfirmDelete
)

// fetchPurpose says which modal a fetched task opens.
type fetchPurpose int

const (
	fetchForEdit fetchPurpose = iota
	fetchForInfo
)

// reloadedMsg carries a categories-then-tasks refresh.
type reloadedMsg struct {
	categories []string
	category   string
	tasks      []domain.Task
	err        error
}

// refreshedMsg carries a tasks-then-categories refresh for a fixed filter.
type refreshedMsg struct {
	category   string
	tasks      []domain.Task
	categories []string
	err        error
}

type tasksLoadedMsg struct {
	category string
	tasks    []domain.Task
	err      error
}

type taskFetchedMsg struct {
	purpose fetchPurpose
	task    domain.Task
	err     error
}

type moveResultMsg struct {
	move board.Move
	task domain.Task
	err  error
}

type savedMsg struct {
	created bool
	err     error
}

type deletedMsg struct {
	id  string
	err error
}

type copiedMsg struct {
	id  string
	err error
}

// toastExpiredMsg clears the toast only if no newer toast replaced it.
type toastExpiredMsg struct {
	seq int
}

type toast struct {
	text    string
	isError bool
}

// Model is the Bubble Tea model for the board.
type Model struct {
	svc      Service
	logger   *charmLog.Logger
	copyText func(string) error

	ready  bool
	width  int
	height int

	state       board.State
	sortMode    board.SortMode
	query       string
	studentName string

	mode           inputMode
	selectedColumn int
	selectedTask   int

	searchInput   textinput.Model
	pickerIdx     int
	form          taskForm
	saving        bool
	info          domain.Task
	confirmTaskID string
	confirmChoice int
	confirmBack   inputMode

	loading int
	spinner spinner.Model

	toast         toast
	toastSeq      int
	toastDuration time.Duration

	help     help.Model
	keys     keyMap
	markdown *markdownRenderer
	status   string
}

// NewModel constructs the board model. The first load is already counted as
// in flight so the spinner shows until Init's command returns.
func NewModel(svc Service, opts ...Option) Model {
	m := Model{
		svc:           svc,
		logger:        charmLog.New(io.Discard),
		copyText:      clipboard.WriteAll,
		sortMode:      board.SortRecent,
		studentName:   "Student",
		searchInput:   newModalInput("/ ", "search titles", "", 120),
		loading:       1,
		spinner:       spinner.New(spinner.WithSpinner(spinner.Dot)),
		toastDuration: DefaultToastDuration,
		help:          help.New(),
		keys:          newKeyMap(),
		markdown:      &markdownRenderer{},
		status:        "loading",
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&m)
		}
	}
	return m
}

// Init loads categories and then the unfiltered task list.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.reload(""))
}

// Update updates state for the requested operation.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		m.height = msg.Height
		if m.mode == modeAddTask || m.mode == modeEditTask {
			m.form.setWidth(m.modalWidth())
		}
		return m, nil

	case spinner.TickMsg:
		if m.loading == 0 {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case reloadedMsg:
		m.loading = max(0, m.loading-1)
		if msg.err != nil {
			m.logger.Warn("reload failed", "err", msg.err)
			return m, m.failToast("Load failed", msg.err)
		}
		if m.state.SetCategories(msg.categories) {
			m.logger.Debug("category filter reset", "categories", len(msg.categories))
		}
		m.state.CurrentCategory = msg.category
		m.state.SetTasks(msg.tasks)
		m.clampSelection()
		m.status = "ready"
		return m, nil

	case refreshedMsg:
		m.loading = max(0, m.loading-1)
		if msg.err != nil {
			m.logger.Warn("refresh failed", "category", msg.category, "err", msg.err)
			return m, m.failToast("Load failed", msg.err)
		}
		m.state.Categories = slices.Clone(msg.categories)
		m.state.CurrentCategory = msg.category
		m.state.SetTasks(msg.tasks)
		m.clampSelection()
		m.status = "ready"
		return m, nil

	case tasksLoadedMsg:
		m.loading = max(0, m.loading-1)
		if msg.err != nil {
			m.logger.Warn("load tasks failed", "category", msg.category, "err", msg.err)
			return m, m.failToast("Load failed", msg.err)
		}
		m.state.CurrentCategory = msg.category
		m.state.SetTasks(msg.tasks)
		m.clampSelection()
		m.status = "ready"
		return m, nil

	case taskFetchedMsg:
		m.loading = max(0, m.loading-1)
		if msg.err != nil {
			m.logger.Warn("get task failed", "err", msg.err)
			return m, m.failToast("Load failed", msg.err)
		}
		m.state.PatchTask(msg.task)
		if msg.purpose == fetchForInfo {
			m.info = msg.task
			m.mode = modeTaskInfo
			m.status = "task info"
			return m, nil
		}
		return m, m.openTaskForm(msg.task)

	case moveResultMsg:
		if msg.err != nil {
			m.logger.Warn("move failed", "task_id", msg.move.TaskID, "to", msg.move.To, "err", msg.err)
			if !m.state.RevertMove(msg.move) {
				m.logger.Debug("stale move result ignored", "task_id", msg.move.TaskID, "seq", msg.move.Seq)
			}
			m.clampSelection()
			return m, m.failToast("Move failed", msg.err)
		}
		if m.state.ConfirmMove(msg.move) && msg.task.ID == msg.move.TaskID {
			m.state.PatchTask(msg.task)
		}
		toastCmd := m.showToast("Moved to "+msg.move.To.Label(), false)
		return m, tea.Batch(toastCmd, m.startLoad(m.loadTasks(m.state.CurrentCategory)))

	case savedMsg:
		m.saving = false
		if msg.err != nil {
			m.logger.Warn("save failed", "created", msg.created, "err", msg.err)
			return m, m.failToast("Save failed", msg.err)
		}
		text := "Updated"
		if msg.created {
			text = "Created"
		}
		m.mode = modeNone
		m.form = taskForm{}
		toastCmd := m.showToast(text, false)
		return m, tea.Batch(toastCmd, m.startLoad(m.reload(m.state.CurrentCategory)))

	case deletedMsg:
		if msg.err != nil {
			m.logger.Warn("delete failed", "task_id", msg.id, "err", msg.err)
			return m, m.failToast("Delete failed", msg.err)
		}
		toastCmd := m.showToast("Deleted", false)
		return m, tea.Batch(toastCmd, m.startLoad(m.reload(m.state.CurrentCategory)))

	case copiedMsg:
		if msg.err != nil {
			return m, m.failToast("Copy failed", msg.err)
		}
		return m, m.showToast("Copied "+msg.id, false)

	case toastExpiredMsg:
		if msg.seq == m.toastSeq {
			m.toast = toast{}
		}
		return m, nil

	case tea.KeyPressMsg:
		if m.mode != modeNone {
			return m.handleInputModeKey(msg)
		}
		return m.handleNormalModeKey(msg)
	}
	return m, nil
}

// handleNormalModeKey handles board keys when no modal is open.
func (m Model) handleNormalModeKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	if m.help.ShowAll && (msg.String() == "esc" || key.Matches(msg, m.keys.toggleHelp)) {
		m.help.ShowAll = false
		return m, nil
	}
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.reload):
		m.status = "refreshing"
		return m, m.startLoad(m.refresh(m.state.CurrentCategory))
	case key.Matches(msg, m.keys.toggleHelp):
		m.help.ShowAll = true
		return m, nil
	case key.Matches(msg, m.keys.moveLeft):
		m.selectedColumn = clamp(m.selectedColumn-1, 0, len(domain.Statuses)-1)
		m.selectedTask = 0
		return m, nil
	case key.Matches(msg, m.keys.moveRight):
		m.selectedColumn = clamp(m.selectedColumn+1, 0, len(domain.Statuses)-1)
		m.selectedTask = 0
		return m, nil
	case key.Matches(msg, m.keys.moveUp):
		m.selectedTask--
		m.clampSelection()
		return m, nil
	case key.Matches(msg, m.keys.moveDown):
		m.selectedTask++
		m.clampSelection()
		return m, nil
	case key.Matches(msg, m.keys.addTask):
		return m, m.openTaskForm(domain.Task{})
	case key.Matches(msg, m.keys.taskInfo):
		return m.fetchSelected(fetchForInfo)
	case key.Matches(msg, m.keys.editTask):
		return m.fetchSelected(fetchForEdit)
	case key.Matches(msg, m.keys.deleteTask):
		task, ok := m.selectedTaskInCurrentColumn()
		if !ok {
			m.status = "no task selected"
			return m, nil
		}
		m.startDeleteConfirm(task.ID, modeNone)
		return m, nil
	case key.Matches(msg, m.keys.moveTaskLeft):
		return m.moveSelected(-1, false)
	case key.Matches(msg, m.keys.moveTaskRight):
		return m.moveSelected(1, false)
	case key.Matches(msg, m.keys.moveToColumn):
		return m.moveSelected(int(msg.String()[0]-'1'), true)
	case key.Matches(msg, m.keys.search):
		m.mode = modeSearch
		m.searchInput.SetValue(m.query)
		m.searchInput.CursorEnd()
		m.status = "search"
		return m, m.searchInput.Focus()
	case key.Matches(msg, m.keys.toggleSort):
		m.sortMode = m.sortMode.Next()
		m.selectedTask = 0
		m.status = "sort: " + m.sortMode.Label()
		return m, nil
	case key.Matches(msg, m.keys.categoryFilter):
		m.mode = modeCategoryPicker
		m.pickerIdx = max(0, slices.Index(m.categoryChoices(), m.state.CurrentCategory))
		m.status = "category filter"
		return m, nil
	case key.Matches(msg, m.keys.copyID):
		task, ok := m.selectedTaskInCurrentColumn()
		if !ok {
			m.status = "no task selected"
			return m, nil
		}
		write, id := m.copyText, task.ID
		return m, func() tea.Msg {
			return copiedMsg{id: id, err: write(id)}
		}
	}
	return m, nil
}

// handleInputModeKey routes keys to the open modal.
func (m Model) handleInputModeKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case modeSearch:
		switch msg.String() {
		case "esc":
			m.mode = modeNone
			m.query = ""
			m.searchInput.SetValue("")
			m.searchInput.Blur()
			m.clampSelection()
			m.status = "search cleared"
			return m, nil
		case "enter":
			m.mode = modeNone
			m.searchInput.Blur()
			m.status = "ready"
			return m, nil
		}
		var cmd tea.Cmd
		m.searchInput, cmd = m.searchInput.Update(msg)
		m.query = strings.TrimSpace(m.searchInput.Value())
		m.clampSelection()
		return m, cmd

	case modeCategoryPicker:
		choices := m.categoryChoices()
		switch msg.String() {
		case "esc", "c":
			m.mode = modeNone
			m.status = "ready"
			return m, nil
		case "j", "down":
			m.pickerIdx = clamp(m.pickerIdx+1, 0, len(choices)-1)
			return m, nil
		case "k", "up":
			m.pickerIdx = clamp(m.pickerIdx-1, 0, len(choices)-1)
			return m, nil
		case "enter":
			category := choices[clamp(m.pickerIdx, 0, len(choices)-1)]
			m.mode = modeNone
			m.state.CurrentCategory = category
			m.selectedTask = 0
			m.status = "category: " + categoryLabel(category)
			return m, m.startLoad(m.loadTasks(category))
		}
		return m, nil

	case modeTaskInfo:
		switch msg.String() {
		case "esc", "i", "q":
			m.mode = modeNone
			m.info = domain.Task{}
			m.status = "ready"
			return m, nil
		case "e":
			return m, m.openTaskForm(m.info)
		case "d":
			m.startDeleteConfirm(m.info.ID, modeTaskInfo)
			return m, nil
		case "y":
			write, id := m.copyText, m.info.ID
			return m, func() tea.Msg {
				return copiedMsg{id: id, err: write(id)}
			}
		}
		return m, nil

	case modeConfirmDelete:
		switch msg.String() {
		case "esc", "n":
			return m.applyConfirm(false)
		case "y":
			return m.applyConfirm(true)
		case "h", "l", "left", "right", "tab":
			m.confirmChoice = 1 - m.confirmChoice
			return m, nil
		case "enter":
			return m.applyConfirm(m.confirmChoice == 0)
		}
		return m, nil

	case modeAddTask, modeEditTask:
		return m.handleTaskFormKey(msg)
	}
	return m, nil
}

// handleTaskFormKey handles keys inside the new/edit form.
func (m Model) handleTaskFormKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	inDescription := m.form.focus == formFieldDescription
	switch {
	case msg.Code == tea.KeyEscape || msg.String() == "esc":
		m.mode = modeNone
		m.form = taskForm{}
		m.status = "cancelled"
		return m, nil
	case msg.Code == tea.KeyTab || msg.String() == "tab" || (!inDescription && msg.String() == "down"):
		return m, m.form.focusField(m.form.focus + 1)
	case msg.String() == "shift+tab" || (!inDescription && msg.String() == "up"):
		return m, m.form.focusField(m.form.focus - 1)
	case msg.String() == "ctrl+s" || (!inDescription && (msg.Code == tea.KeyEnter || msg.String() == "enter")):
		return m.submitTaskForm()
	case msg.String() == "ctrl+a":
		if name, ok := m.form.addCategory(); ok {
			m.status = "added category " + name
			return m, m.form.focusField(formFieldStatus)
		}
		m.status = "type a category name first"
		return m, nil
	case msg.String() == "ctrl+d":
		if !m.form.editing() {
			return m, nil
		}
		m.startDeleteConfirm(m.form.editingID, m.mode)
		return m, nil
	}

	switch m.form.focus {
	case formFieldCategory:
		switch msg.String() {
		case "h", "left":
			m.form.cycleCategory(-1)
		case "l", "right", "space", " ":
			m.form.cycleCategory(1)
		}
		return m, nil
	case formFieldStatus:
		switch msg.String() {
		case "h", "left":
			m.form.cycleStatus(-1)
		case "l", "right", "space", " ":
			m.form.cycleStatus(1)
		}
		return m, nil
	}
	return m, m.form.update(msg)
}

// submitTaskForm validates locally and sends create or update.
func (m Model) submitTaskForm() (tea.Model, tea.Cmd) {
	if m.saving {
		return m, nil
	}
	values, problem := m.form.values()
	if problem != "" {
		return m, m.showToast(problem, true)
	}
	m.saving = true
	m.status = "saving"
	svc := m.svc
	if m.form.editing() {
		id, patch := m.form.editingID, values.updatePatch()
		return m, func() tea.Msg {
			_, err := svc.UpdateTask(context.Background(), id, patch)
			return savedMsg{err: err}
		}
	}
	in := values.createInput()
	return m, func() tea.Msg {
		_, err := svc.CreateTask(context.Background(), in)
		return savedMsg{created: true, err: err}
	}
}

// moveSelected moves the selected card by delta columns, or to column delta
// when absolute is set. Moving onto the current column sends nothing.
func (m Model) moveSelected(delta int, absolute bool) (tea.Model, tea.Cmd) {
	task, ok := m.selectedTaskInCurrentColumn()
	if !ok {
		m.status = "no task selected"
		return m, nil
	}
	target := task.Status.Index() + delta
	if absolute {
		target = delta
	}
	if target < 0 || target >= len(domain.Statuses) {
		return m, nil
	}
	move, changed, err := m.state.BeginMove(task.ID, domain.Statuses[target])
	if err != nil {
		return m, m.showToast(err.Error(), true)
	}
	if !changed {
		return m, nil
	}
	m.selectedColumn = target
	m.focusTaskByID(task.ID)
	m.status = "moving"
	svc := m.svc
	return m, func() tea.Msg {
		status := move.To
		updated, err := svc.UpdateTask(context.Background(), move.TaskID, apiclient.TaskPatch{Status: &status})
		return moveResultMsg{move: move, task: updated, err: err}
	}
}

// fetchSelected re-reads the selected task so modals show fresh data.
func (m Model) fetchSelected(purpose fetchPurpose) (tea.Model, tea.Cmd) {
	task, ok := m.selectedTaskInCurrentColumn()
	if !ok {
		m.status = "no task selected"
		return m, nil
	}
	svc, id := m.svc, task.ID
	return m, m.startLoad(func() tea.Msg {
		fetched, err := svc.GetTask(context.Background(), id)
		return taskFetchedMsg{purpose: purpose, task: fetched, err: err}
	})
}

// openTaskForm opens the form for task, or a blank form when task has no id.
func (m *Model) openTaskForm(task domain.Task) tea.Cmd {
	m.form = newTaskForm(task, m.state.CategoryOptions())
	m.form.setWidth(m.modalWidth())
	m.saving = false
	if task.ID == "" {
		m.mode = modeAddTask
		m.status = "new task"
	} else {
		m.mode = modeEditTask
		m.status = "edit task"
	}
	return m.form.focusField(formFieldTitle)
}

func (m *Model) startDeleteConfirm(taskID string, back inputMode) {
	m.confirmTaskID = taskID
	m.confirmChoice = 0
	m.confirmBack = back
	m.mode = modeConfirmDelete
	m.status = "confirm delete"
}

// applyConfirm resolves the delete confirmation.
func (m Model) applyConfirm(confirm bool) (tea.Model, tea.Cmd) {
	id := m.confirmTaskID
	m.confirmTaskID = ""
	if !confirm {
		m.mode = m.confirmBack
		m.status = "cancelled"
		return m, nil
	}
	m.mode = modeNone
	m.form = taskForm{}
	m.info = domain.Task{}
	m.status = "deleting"
	svc := m.svc
	return m, func() tea.Msg {
		return deletedMsg{id: id, err: svc.DeleteTask(context.Background(), id)}
	}
}

// reload fetches categories, falls back to all categories when current is
// gone, then fetches tasks for the resulting filter. A category failure only
// empties the filter list; tasks still load.
func (m Model) reload(current string) tea.Cmd {
	svc, logger := m.svc, m.logger
	return func() tea.Msg {
		ctx := context.Background()
		categories, err := svc.ListCategories(ctx)
		if err != nil {
			logger.Warn("load categories failed", "err", err)
			categories = nil
		}
		category := domain.SelectPreserved(categories, current, "")
		tasks, err := svc.ListTasks(ctx, category)
		if err != nil {
			return reloadedMsg{err: err}
		}
		return reloadedMsg{categories: categories, category: category, tasks: tasks}
	}
}

// refresh reloads tasks for current first and categories second, keeping
// the filter even when the server no longer lists it.
func (m Model) refresh(current string) tea.Cmd {
	svc, logger := m.svc, m.logger
	return func() tea.Msg {
		ctx := context.Background()
		tasks, err := svc.ListTasks(ctx, current)
		if err != nil {
			return refreshedMsg{category: current, err: err}
		}
		categories, err := svc.ListCategories(ctx)
		if err != nil {
			logger.Warn("load categories failed", "err", err)
			categories = nil
		}
		return refreshedMsg{category: current, tasks: tasks, categories: categories}
	}
}

func (m Model) loadTasks(category string) tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		tasks, err := svc.ListTasks(context.Background(), category)
		return tasksLoadedMsg{category: category, tasks: tasks, err: err}
	}
}

// startLoad counts cmd as in flight and starts the spinner on the first one.
func (m *Model) startLoad(cmd tea.Cmd) tea.Cmd {
	m.loading++
	if m.loading == 1 {
		return tea.Batch(m.spinner.Tick, cmd)
	}
	return cmd
}

// showToast replaces the toast and schedules its expiry.
func (m *Model) showToast(text string, isError bool) tea.Cmd {
	m.toastSeq++
	m.toast = toast{text: text, isError: isError}
	if m.toastDuration <= 0 {
		return nil
	}
	seq := m.toastSeq
	return tea.Tick(m.toastDuration, func(time.Time) tea.Msg {
		return toastExpiredMsg{seq: seq}
	})
}

func (m *Model) failToast(prefix string, err error) tea.Cmd {
	m.status = strings.ToLower(prefix)
	return m.showToast(prefix+": "+err.Error(), true)
}

// currentBoard projects the loaded tasks through the search and sort controls.
func (m Model) currentBoard() board.Board {
	return m.state.Project(board.ProjectOptions{Query: m.query, Sort: m.sortMode})
}

func (m Model) selectedTaskInCurrentColumn() (domain.Task, bool) {
	col := m.currentBoard().Columns[clamp(m.selectedColumn, 0, len(domain.Statuses)-1)]
	if len(col.Tasks) == 0 {
		return domain.Task{}, false
	}
	return col.Tasks[clamp(m.selectedTask, 0, len(col.Tasks)-1)], true
}

// focusTaskByID selects id within the selected column when it is visible there.
func (m *Model) focusTaskByID(id string) {
	col := m.currentBoard().Columns[clamp(m.selectedColumn, 0, len(domain.Statuses)-1)]
	if idx := slices.IndexFunc(col.Tasks, func(t domain.Task) bool { return t.ID == id }); idx >= 0 {
		m.selectedTask = idx
		return
	}
	m.clampSelection()
}

func (m *Model) clampSelection() {
	m.selectedColumn = clamp(m.selectedColumn, 0, len(domain.Statuses)-1)
	count := m.currentBoard().Columns[m.selectedColumn].Count()
	m.selectedTask = clamp(m.selectedTask, 0, max(0, count-1))
}

// categoryChoices is the filter list; the empty string means all categories.
func (m Model) categoryChoices() []string {
	return append([]string{""}, m.state.CategoryOptions()...)
}

func categoryLabel(category string) string {
	if category == "" {
		return "All"
	}
	return category
}

// clamp clamps v into [minV, maxV].
func clamp(v, minV, maxV int) int {
	if maxV < minV {
		return minV
	}
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}
