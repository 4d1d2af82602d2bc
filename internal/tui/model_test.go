package tui

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"
	"time"

	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/hylla/tavla/internal/adapters/apiclient"
	"github.com/hylla/tavla/internal/board"
	"github.com/hylla/tavla/internal/domain"
)

// fakeUpdate records one UpdateTask call.
type fakeUpdate struct {
	id    string
	patch apiclient.TaskPatch
}

// fakeService is an in-memory stand-in for the REST client.
type fakeService struct {
	tasks         []domain.Task
	err           error
	updateErr     error
	categoriesErr error
	listCalls     []string
	getCalls      []string
	updates       []fakeUpdate
	created       []apiclient.TaskInput
	deleted       []string
	nextID        int
}

func newFakeService(tasks ...domain.Task) *fakeService {
	return &fakeService{tasks: tasks}
}

func (f *fakeService) ListTasks(_ context.Context, category string) ([]domain.Task, error) {
	f.listCalls = append(f.listCalls, category)
	if f.err != nil {
		return nil, f.err
	}
	out := []domain.Task{}
	for _, task := range f.tasks {
		if category != "" && task.Category != category {
			continue
		}
		task.Description = ""
		out = append(out, task)
	}
	return out, nil
}

func (f *fakeService) GetTask(_ context.Context, id string) (domain.Task, error) {
	f.getCalls = append(f.getCalls, id)
	if f.err != nil {
		return domain.Task{}, f.err
	}
	for _, task := range f.tasks {
		if task.ID == id {
			return task, nil
		}
	}
	return domain.Task{}, &apiclient.APIError{Status: 404, Message: "Task not found"}
}

func (f *fakeService) CreateTask(_ context.Context, in apiclient.TaskInput) (domain.Task, error) {
	f.created = append(f.created, in)
	if f.err != nil {
		return domain.Task{}, f.err
	}
	f.nextID++
	task := domain.Task{
		ID:          fmt.Sprintf("new-%d", f.nextID),
		Title:       in.Title,
		Category:    in.Category,
		Status:      in.Status,
		DueDate:     in.DueDate,
		Description: in.Description,
		CreatedAt:   fmt.Sprintf("2026-09-%02d", f.nextID),
	}
	f.tasks = append(f.tasks, task)
	return task, nil
}

func (f *fakeService) UpdateTask(_ context.Context, id string, patch apiclient.TaskPatch) (domain.Task, error) {
	f.updates = append(f.updates, fakeUpdate{id: id, patch: patch})
	if f.updateErr != nil {
		return domain.Task{}, f.updateErr
	}
	for i := range f.tasks {
		if f.tasks[i].ID != id {
			continue
		}
		if patch.Title != nil {
			f.tasks[i].Title = *patch.Title
		}
		if patch.Category != nil {
			f.tasks[i].Category = *patch.Category
		}
		if patch.Status != nil {
			f.tasks[i].Status = *patch.Status
		}
		if patch.DueDate != nil {
			f.tasks[i].DueDate = *patch.DueDate
		}
		if patch.Description != nil {
			f.tasks[i].Description = *patch.Description
		}
		return f.tasks[i], nil
	}
	return domain.Task{}, &apiclient.APIError{Status: 404, Message: "Task not found"}
}

func (f *fakeService) DeleteTask(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	if f.err != nil {
		return f.err
	}
	f.tasks = slices.DeleteFunc(f.tasks, func(t domain.Task) bool { return t.ID == id })
	return nil
}

func (f *fakeService) ListCategories(context.Context) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.categoriesErr != nil {
		return nil, f.categoriesErr
	}
	return domain.MergeCategories(nil, f.tasks), nil
}

func sampleTasks() []domain.Task {
	return []domain.Task{
		{ID: "t1", Title: "Buy milk", Category: "Home", Status: domain.StatusNotStarted, DueDate: "2026-01-05", CreatedAt: "2026-01-01"},
		{ID: "t2", Title: "Write essay", Category: "School", Status: domain.StatusInProgress, DueDate: "2026-01-01", CreatedAt: "2026-01-02"},
		{ID: "t3", Title: "File taxes", Category: "Home", Status: domain.StatusDone, CreatedAt: "2026-01-03",
			Description: "<p>Use the <strong>blue</strong> folder</p>"},
	}
}

// newTestModel disables toast expiry and the system clipboard.
func newTestModel(svc *fakeService, opts ...Option) Model {
	base := []Option{WithToastDuration(0), WithClipboard(func(string) error { return nil })}
	return NewModel(svc, append(base, opts...)...)
}

func loadReadyModel(t *testing.T, m Model) Model {
	t.Helper()
	return applyMsg(t, applyCmd(t, m, m.Init()), tea.WindowSizeMsg{Width: 120, Height: 40})
}

func applyMsg(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	out, cmd := m.Update(msg)
	return applyCmd(t, out.(Model), cmd)
}

// applyCmd runs cmd and its follow-ups, expanding batches and skipping spinner frames.
func applyCmd(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	queue := []tea.Cmd{cmd}
	for i := 0; len(queue) > 0 && i < 16; i++ {
		next := queue[0]
		queue = queue[1:]
		if next == nil {
			continue
		}
		msg := next()
		switch msg := msg.(type) {
		case tea.BatchMsg:
			queue = append(queue, msg...)
			continue
		case spinner.TickMsg, nil:
			continue
		}
		out, follow := m.Update(msg)
		m = out.(Model)
		queue = append(queue, follow)
	}
	return m
}

func keyRune(r rune) tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: r, Text: string(r)}
}

func keyCtrl(r rune) tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: r, Mod: tea.ModCtrl}
}

func typeText(t *testing.T, m Model, text string) Model {
	t.Helper()
	for _, r := range text {
		m = applyMsg(t, m, keyRune(r))
	}
	return m
}

func statusOf(m Model, id string) domain.Status {
	task, _ := m.state.TaskByID(id)
	return task.Status
}

func TestModelInitLoadsCategoriesThenTasks(t *testing.T) {
	svc := newFakeService(sampleTasks()...)
	m := loadReadyModel(t, newTestModel(svc, WithStudentName("Ada")))

	if len(m.state.Tasks) != 3 || m.loading != 0 {
		t.Fatalf("tasks = %d loading = %d", len(m.state.Tasks), m.loading)
	}
	if !slices.Equal(svc.listCalls, []string{""}) {
		t.Fatalf("list calls = %v", svc.listCalls)
	}
	if !slices.Equal(m.state.Categories, []string{"Home", "School"}) {
		t.Fatalf("categories = %v", m.state.Categories)
	}
	if m.studentName != "Ada" || m.status != "ready" {
		t.Fatalf("name = %q status = %q", m.studentName, m.status)
	}
	v := m.View()
	if v.Content == nil || v.MouseMode != tea.MouseModeCellMotion || !v.AltScreen {
		t.Fatal("expected alt-screen board view with mouse enabled")
	}
}

func TestModelLoadingViewBeforeWindowSize(t *testing.T) {
	m := newTestModel(newFakeService())
	if v := m.View(); v.Content == nil {
		t.Fatal("expected loading view content")
	}
}

func TestModelRenderBoardShowsColumnsAndCards(t *testing.T) {
	m := loadReadyModel(t, newTestModel(newFakeService(sampleTasks()...)))
	out := m.renderBoard(lipgloss.Color("62"), lipgloss.Color("241"), lipgloss.Color("239"))
	for _, want := range []string{"Not Started (1)", "In Progress (1)", "Done (1)", "Buy milk", "Home · Jan 5", "No due"} {
		if !strings.Contains(out, want) {
			t.Fatalf("board missing %q:\n%s", want, out)
		}
	}
}

func TestModelRenderBoardShowsDescriptionPreview(t *testing.T) {
	m := loadReadyModel(t, newTestModel(newFakeService(sampleTasks()...)))
	task, ok := m.state.TaskByID("t3")
	if !ok {
		t.Fatal("expected t3 on the board")
	}
	task.Description = "<p>Use the <strong>blue</strong> folder</p>"
	m.state.PatchTask(task)
	out := m.renderBoard(lipgloss.Color("62"), lipgloss.Color("241"), lipgloss.Color("239"))
	if !strings.Contains(out, "Use the blue") {
		t.Fatalf("board missing description preview:\n%s", out)
	}
}

func TestModelMoveIsOptimisticThenConfirmed(t *testing.T) {
	svc := newFakeService(sampleTasks()...)
	m := loadReadyModel(t, newTestModel(svc))

	out, cmd := m.Update(keyRune(']'))
	m = out.(Model)
	if statusOf(m, "t1") != domain.StatusInProgress {
		t.Fatalf("optimistic status = %s", statusOf(m, "t1"))
	}
	if phase := m.state.Moves.Phase("t1"); !phase.Pending || phase.From != domain.StatusNotStarted {
		t.Fatalf("phase = %s", phase)
	}
	if m.selectedColumn != 1 {
		t.Fatalf("selection did not follow card: column %d", m.selectedColumn)
	}

	m = applyCmd(t, m, cmd)
	if len(svc.updates) != 1 || svc.updates[0].id != "t1" || *svc.updates[0].patch.Status != domain.StatusInProgress {
		t.Fatalf("updates = %#v", svc.updates)
	}
	if svc.updates[0].patch.Title != nil {
		t.Fatal("move should send status only")
	}
	if m.state.Moves.Phase("t1").Pending {
		t.Fatal("move still pending after success")
	}
	if m.toast.text != "Moved to In Progress" || m.toast.isError {
		t.Fatalf("toast = %#v", m.toast)
	}
	if len(svc.listCalls) != 2 {
		t.Fatalf("expected task refetch after move, list calls = %v", svc.listCalls)
	}
}

func TestModelMoveToSameColumnIsNoop(t *testing.T) {
	svc := newFakeService(sampleTasks()...)
	m := loadReadyModel(t, newTestModel(svc))

	out, cmd := m.Update(keyRune('1'))
	m = out.(Model)
	if cmd != nil || len(svc.updates) != 0 {
		t.Fatalf("same-column move issued a request: %#v", svc.updates)
	}
	if statusOf(m, "t1") != domain.StatusNotStarted || m.state.Moves.PendingCount() != 0 {
		t.Fatal("same-column move mutated state")
	}

	// [ on the first column has nowhere to go.
	out, cmd = m.Update(keyRune('['))
	if cmd != nil || out.(Model).state.Moves.PendingCount() != 0 {
		t.Fatal("left move from first column should do nothing")
	}
}

func TestModelFailedMoveReverts(t *testing.T) {
	svc := newFakeService(sampleTasks()...)
	svc.updateErr = &apiclient.APIError{Status: 500, Message: "boom"}
	m := loadReadyModel(t, newTestModel(svc))
	before := m.currentBoard()

	m = applyMsg(t, m, keyRune('3'))
	if statusOf(m, "t1") != domain.StatusNotStarted {
		t.Fatalf("status after failed move = %s", statusOf(m, "t1"))
	}
	after := m.currentBoard()
	for i := range before.Columns {
		if before.Columns[i].Count() != after.Columns[i].Count() {
			t.Fatalf("column %d count %d, want %d", i, after.Columns[i].Count(), before.Columns[i].Count())
		}
	}
	if m.toast.text != "Move failed: boom" || !m.toast.isError {
		t.Fatalf("toast = %#v", m.toast)
	}
}

func TestModelStaleMoveFailureDoesNotClobberNewerMove(t *testing.T) {
	m := loadReadyModel(t, newTestModel(newFakeService(sampleTasks()...)))
	first, _, err := m.state.BeginMove("t1", domain.StatusInProgress)
	if err != nil {
		t.Fatalf("BeginMove() error = %v", err)
	}
	if _, _, err := m.state.BeginMove("t1", domain.StatusDone); err != nil {
		t.Fatalf("BeginMove() error = %v", err)
	}
	m = applyMsg(t, m, moveResultMsg{move: first, err: errors.New("late")})
	if statusOf(m, "t1") != domain.StatusDone {
		t.Fatalf("stale failure reverted newer move: %s", statusOf(m, "t1"))
	}
}

func TestModelSearchFiltersTitlesCaseInsensitive(t *testing.T) {
	m := loadReadyModel(t, newTestModel(newFakeService(sampleTasks()...)))
	m = applyMsg(t, m, keyRune('/'))
	if m.mode != modeSearch {
		t.Fatalf("mode = %d, want search", m.mode)
	}
	m = typeText(t, m, "MILK")
	if got := m.currentBoard().Total(); got != 1 {
		t.Fatalf("filtered total = %d, want 1", got)
	}
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEnter})
	if m.mode != modeNone || m.query != "MILK" {
		t.Fatalf("mode = %d query = %q", m.mode, m.query)
	}

	m = applyMsg(t, m, keyRune('/'))
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEscape})
	if m.query != "" || m.currentBoard().Total() != 3 {
		t.Fatalf("escape should clear search, query = %q", m.query)
	}
}

func TestModelSortToggle(t *testing.T) {
	m := loadReadyModel(t, newTestModel(newFakeService(sampleTasks()...), WithSortMode(board.SortDueSoon)))
	if m.sortMode != board.SortDueSoon {
		t.Fatalf("sort = %s", m.sortMode)
	}
	m = applyMsg(t, m, keyRune('s'))
	if m.sortMode != board.SortRecent || m.status != "sort: recent" {
		t.Fatalf("sort = %s status = %q", m.sortMode, m.status)
	}
}

func TestModelColumnNavigation(t *testing.T) {
	m := loadReadyModel(t, newTestModel(newFakeService(sampleTasks()...)))
	m = applyMsg(t, m, keyRune('h'))
	if m.selectedColumn != 0 {
		t.Fatalf("column = %d", m.selectedColumn)
	}
	m = applyMsg(t, m, keyRune('l'))
	m = applyMsg(t, m, keyRune('l'))
	m = applyMsg(t, m, keyRune('l'))
	if m.selectedColumn != 2 {
		t.Fatalf("column = %d, want clamp at 2", m.selectedColumn)
	}
	task, ok := m.selectedTaskInCurrentColumn()
	if !ok || task.ID != "t3" {
		t.Fatalf("selected = %#v", task)
	}
	m = applyMsg(t, m, keyRune('j'))
	if m.selectedTask != 0 {
		t.Fatalf("task index = %d, want clamp at 0", m.selectedTask)
	}
}

func TestModelCategoryFilterLoadsCategoryTasks(t *testing.T) {
	svc := newFakeService(sampleTasks()...)
	m := loadReadyModel(t, newTestModel(svc))

	m = applyMsg(t, m, keyRune('c'))
	if m.mode != modeCategoryPicker || m.pickerIdx != 0 {
		t.Fatalf("mode = %d picker = %d", m.mode, m.pickerIdx)
	}
	m = applyMsg(t, m, keyRune('j'))
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEnter})
	if m.state.CurrentCategory != "Home" || svc.listCalls[len(svc.listCalls)-1] != "Home" {
		t.Fatalf("category = %q calls = %v", m.state.CurrentCategory, svc.listCalls)
	}
	if len(m.state.Tasks) != 2 {
		t.Fatalf("tasks = %d, want 2", len(m.state.Tasks))
	}
}

func TestModelCreateTask(t *testing.T) {
	svc := newFakeService(sampleTasks()...)
	m := loadReadyModel(t, newTestModel(svc))

	m = applyMsg(t, m, keyRune('n'))
	if m.mode != modeAddTask || m.form.selectedCategory() != "" {
		t.Fatalf("mode = %d category = %q", m.mode, m.form.selectedCategory())
	}
	m = typeText(t, m, "Read book")
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyTab})
	m = applyMsg(t, m, keyRune('l'))
	m = applyMsg(t, m, keyRune('l'))
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyTab})
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyTab})
	m = applyMsg(t, m, keyRune('l'))
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyTab})
	m = typeText(t, m, "2026-05-01")
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyTab})
	m = typeText(t, m, "hello")
	m = applyMsg(t, m, keyCtrl('s'))

	if len(svc.created) != 1 {
		t.Fatalf("created = %#v", svc.created)
	}
	got := svc.created[0]
	if got.Title != "Read book" || got.Category != "School" || got.Status != domain.StatusInProgress || got.DueDate != "2026-05-01" {
		t.Fatalf("create input = %#v", got)
	}
	if !strings.Contains(got.Description, "<p>hello</p>") {
		t.Fatalf("description = %q, want html", got.Description)
	}
	if m.mode != modeNone || m.toast.text != "Created" || len(m.state.Tasks) != 4 {
		t.Fatalf("mode = %d toast = %#v tasks = %d", m.mode, m.toast, len(m.state.Tasks))
	}
}

func TestModelFormValidationNeverCallsAPI(t *testing.T) {
	svc := newFakeService()
	m := loadReadyModel(t, newTestModel(svc))

	m = applyMsg(t, m, keyRune('n'))
	m = applyMsg(t, m, keyCtrl('s'))
	if m.toast.text != "Title is required" || !m.toast.isError {
		t.Fatalf("toast = %#v", m.toast)
	}
	m = typeText(t, m, "Plan trip")
	m = applyMsg(t, m, keyCtrl('s'))
	if m.toast.text != "Category is required" {
		t.Fatalf("toast = %#v", m.toast)
	}
	if len(svc.created) != 0 || m.mode != modeAddTask {
		t.Fatalf("validation failure reached the API or closed the form")
	}

	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyTab})
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyTab})
	m = typeText(t, m, "Travel")
	m = applyMsg(t, m, keyCtrl('a'))
	if m.form.selectedCategory() != "Travel" || m.form.focus != formFieldStatus {
		t.Fatalf("category = %q focus = %d", m.form.selectedCategory(), m.form.focus)
	}
	m = applyMsg(t, m, keyCtrl('s'))
	if len(svc.created) != 1 || svc.created[0].Category != "Travel" {
		t.Fatalf("created = %#v", svc.created)
	}
}

func TestModelNewFormRequiresExplicitCategory(t *testing.T) {
	svc := newFakeService(sampleTasks()...)
	m := loadReadyModel(t, newTestModel(svc))

	m = applyMsg(t, m, keyRune('c'))
	m = applyMsg(t, m, keyRune('j'))
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEnter})
	if m.state.CurrentCategory != "Home" {
		t.Fatalf("category = %q", m.state.CurrentCategory)
	}

	m = applyMsg(t, m, keyRune('n'))
	m = typeText(t, m, "Mow lawn")
	m = applyMsg(t, m, keyCtrl('s'))
	if m.toast.text != "Category is required" || len(svc.created) != 0 {
		t.Fatalf("toast = %#v created = %#v", m.toast, svc.created)
	}

	m.form.focusField(formFieldCategory)
	m = applyMsg(t, m, keyRune('l'))
	m = applyMsg(t, m, keyRune('h'))
	if m.form.selectedCategory() != "" {
		t.Fatalf("category = %q, want none after cycling back", m.form.selectedCategory())
	}
}

func TestModelFormUsesTypedCategoryWithoutAdding(t *testing.T) {
	svc := newFakeService(sampleTasks()...)
	m := loadReadyModel(t, newTestModel(svc))

	m = applyMsg(t, m, keyRune('n'))
	m = typeText(t, m, "Pack bags")
	m.form.focusField(formFieldNewCategory)
	m = typeText(t, m, "  Travel ")
	m = applyMsg(t, m, keyCtrl('s'))
	if len(svc.created) != 1 || svc.created[0].Category != "Travel" {
		t.Fatalf("created = %#v toast = %#v", svc.created, m.toast)
	}
}

func TestModelEditKeepsUntouchedDescriptionMarkup(t *testing.T) {
	const stored = "<p><u>x</u> &lt;b&gt;y&lt;/b&gt;</p>"
	tasks := sampleTasks()
	tasks[2].Description = stored
	svc := newFakeService(tasks...)
	m := loadReadyModel(t, newTestModel(svc))
	m = applyMsg(t, m, keyRune('l'))
	m = applyMsg(t, m, keyRune('l'))

	m = applyMsg(t, m, keyRune('e'))
	if m.mode != modeEditTask {
		t.Fatalf("mode = %d", m.mode)
	}
	m = typeText(t, m, " soon")
	m = applyMsg(t, m, keyCtrl('s'))
	if len(svc.updates) != 1 {
		t.Fatalf("updates = %#v", svc.updates)
	}
	patch := svc.updates[0].patch
	if patch.Title == nil || *patch.Title != "File taxes soon" {
		t.Fatalf("title = %v", patch.Title)
	}
	if patch.Description == nil || *patch.Description != stored {
		t.Fatalf("description = %v, want stored markup unchanged", patch.Description)
	}
}

func TestModelFormRejectsMalformedDueDate(t *testing.T) {
	svc := newFakeService(sampleTasks()...)
	m := loadReadyModel(t, newTestModel(svc))
	m = applyMsg(t, m, keyRune('n'))
	m = typeText(t, m, "X")
	m.form.focusField(formFieldDue)
	m = typeText(t, m, "05/01/26")
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEnter})
	if m.toast.text != "Due date must be YYYY-MM-DD" || len(svc.created) != 0 {
		t.Fatalf("toast = %#v created = %d", m.toast, len(svc.created))
	}
}

func TestModelEditFetchesTaskAndOmitsEmptyDue(t *testing.T) {
	svc := newFakeService(sampleTasks()...)
	m := loadReadyModel(t, newTestModel(svc))
	m = applyMsg(t, m, keyRune('l'))
	m = applyMsg(t, m, keyRune('l'))

	m = applyMsg(t, m, keyRune('e'))
	if !slices.Equal(svc.getCalls, []string{"t3"}) {
		t.Fatalf("get calls = %v", svc.getCalls)
	}
	if m.mode != modeEditTask || m.form.editingID != "t3" {
		t.Fatalf("mode = %d editing = %q", m.mode, m.form.editingID)
	}
	if got := m.form.description.Value(); got != "Use the **blue** folder" {
		t.Fatalf("description = %q", got)
	}
	if task, _ := m.state.TaskByID("t3"); task.Description == "" {
		t.Fatal("fresh task was not patched into the list")
	}

	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEnter})
	if len(svc.updates) != 1 {
		t.Fatalf("updates = %#v", svc.updates)
	}
	patch := svc.updates[0].patch
	if patch.DueDate != nil {
		t.Fatalf("empty due date should be omitted, got %q", *patch.DueDate)
	}
	if patch.Title == nil || *patch.Title != "File taxes" || patch.Status == nil || *patch.Status != domain.StatusDone {
		t.Fatalf("patch = %#v", patch)
	}
	if m.toast.text != "Updated" || m.mode != modeNone {
		t.Fatalf("toast = %#v mode = %d", m.toast, m.mode)
	}
}

func TestModelSaveFailureKeepsFormOpen(t *testing.T) {
	svc := newFakeService(sampleTasks()...)
	m := loadReadyModel(t, newTestModel(svc))
	m = applyMsg(t, m, keyRune('n'))
	m = typeText(t, m, "Y")
	svc.err = &apiclient.APIError{Status: 400, Message: "due_date is required"}
	m = applyMsg(t, m, keyCtrl('s'))
	if m.mode != modeAddTask || m.saving {
		t.Fatalf("mode = %d saving = %v", m.mode, m.saving)
	}
	if m.toast.text != "Save failed: due_date is required" {
		t.Fatalf("toast = %#v", m.toast)
	}
}

func TestModelDeleteLastTaskInFilteredCategoryResetsFilter(t *testing.T) {
	svc := newFakeService(sampleTasks()...)
	m := loadReadyModel(t, newTestModel(svc))

	m = applyMsg(t, m, keyRune('c'))
	m = applyMsg(t, m, keyRune('j'))
	m = applyMsg(t, m, keyRune('j'))
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEnter})
	if m.state.CurrentCategory != "School" {
		t.Fatalf("category = %q", m.state.CurrentCategory)
	}
	m = applyMsg(t, m, keyRune('l'))

	m = applyMsg(t, m, keyRune('d'))
	if m.mode != modeConfirmDelete || m.confirmTaskID != "t2" {
		t.Fatalf("mode = %d confirm = %q", m.mode, m.confirmTaskID)
	}
	m = applyMsg(t, m, keyRune('y'))
	if !slices.Equal(svc.deleted, []string{"t2"}) {
		t.Fatalf("deleted = %v", svc.deleted)
	}
	if m.state.CurrentCategory != "" || svc.listCalls[len(svc.listCalls)-1] != "" {
		t.Fatalf("filter not reset: category = %q calls = %v", m.state.CurrentCategory, svc.listCalls)
	}
	if len(m.state.Tasks) != 2 || m.toast.text != "Deleted" {
		t.Fatalf("tasks = %d toast = %#v", len(m.state.Tasks), m.toast)
	}
}

func TestModelDeleteConfirmCancel(t *testing.T) {
	svc := newFakeService(sampleTasks()...)
	m := loadReadyModel(t, newTestModel(svc))
	m = applyMsg(t, m, keyRune('d'))
	m = applyMsg(t, m, keyRune('l'))
	if m.confirmChoice != 1 {
		t.Fatalf("choice = %d", m.confirmChoice)
	}
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEnter})
	if m.mode != modeNone || len(svc.deleted) != 0 {
		t.Fatalf("mode = %d deleted = %v", m.mode, svc.deleted)
	}
}

func TestModelDeleteFromFormReturnsToFormOnCancel(t *testing.T) {
	m := loadReadyModel(t, newTestModel(newFakeService(sampleTasks()...)))
	m = applyMsg(t, m, keyRune('e'))
	m = applyMsg(t, m, keyCtrl('d'))
	if m.mode != modeConfirmDelete {
		t.Fatalf("mode = %d", m.mode)
	}
	overlay := m.renderModeOverlay(lipgloss.Color("62"), lipgloss.Color("241"), lipgloss.Color("239"), lipgloss.NewStyle(), 100)
	if !strings.Contains(overlay, "Delete this task?") || !strings.Contains(overlay, "Buy milk") {
		t.Fatalf("confirm overlay = %q", overlay)
	}
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEscape})
	if m.mode != modeEditTask || m.form.editingID != "t1" {
		t.Fatalf("mode = %d editing = %q", m.mode, m.form.editingID)
	}
}

func TestModelTaskInfoRendersDescription(t *testing.T) {
	m := loadReadyModel(t, newTestModel(newFakeService(sampleTasks()...)))
	m = applyMsg(t, m, keyRune('l'))
	m = applyMsg(t, m, keyRune('l'))
	m = applyMsg(t, m, keyRune('i'))
	if m.mode != modeTaskInfo || m.info.ID != "t3" {
		t.Fatalf("mode = %d info = %#v", m.mode, m.info)
	}
	overlay := m.renderModeOverlay(lipgloss.Color("62"), lipgloss.Color("241"), lipgloss.Color("239"), lipgloss.NewStyle(), 100)
	for _, want := range []string{"File taxes", "blue", "folder"} {
		if !strings.Contains(overlay, want) {
			t.Fatalf("info overlay missing %q:\n%s", want, overlay)
		}
	}
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEscape})
	if m.mode != modeNone {
		t.Fatalf("mode = %d", m.mode)
	}
}

func TestModelFetchNotFoundShowsToast(t *testing.T) {
	svc := newFakeService(sampleTasks()...)
	m := loadReadyModel(t, newTestModel(svc))
	svc.tasks = nil
	m = applyMsg(t, m, keyRune('e'))
	if m.mode != modeNone || m.toast.text != "Load failed: Task not found" {
		t.Fatalf("mode = %d toast = %#v", m.mode, m.toast)
	}
}

func TestModelLoadFailureKeepsRunning(t *testing.T) {
	svc := newFakeService()
	svc.err = errors.New("connection refused")
	m := loadReadyModel(t, newTestModel(svc))
	if m.toast.text != "Load failed: connection refused" || !m.toast.isError {
		t.Fatalf("toast = %#v", m.toast)
	}
	if m.loading != 0 {
		t.Fatalf("loading = %d after failure", m.loading)
	}

	svc.err = nil
	svc.tasks = sampleTasks()
	m = applyMsg(t, m, keyRune('r'))
	if len(m.state.Tasks) != 3 {
		t.Fatalf("refresh did not recover: %d tasks", len(m.state.Tasks))
	}
}

func TestModelCategoryFailureStillLoadsTasks(t *testing.T) {
	svc := newFakeService(sampleTasks()...)
	svc.categoriesErr = errors.New("categories unavailable")
	m := loadReadyModel(t, newTestModel(svc))

	if len(m.state.Tasks) != 3 || m.status != "ready" {
		t.Fatalf("tasks = %d status = %q", len(m.state.Tasks), m.status)
	}
	if m.toast.text != "" || len(m.state.Categories) != 0 {
		t.Fatalf("toast = %#v categories = %v", m.toast, m.state.Categories)
	}
	if !slices.Equal(m.state.CategoryOptions(), []string{"Home", "School"}) {
		t.Fatalf("options = %v", m.state.CategoryOptions())
	}
}

func TestModelRefreshKeepsFilterMissingFromServer(t *testing.T) {
	svc := newFakeService(sampleTasks()...)
	m := loadReadyModel(t, newTestModel(svc))
	m = applyMsg(t, m, keyRune('c'))
	m = applyMsg(t, m, keyRune('j'))
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEnter})
	if m.state.CurrentCategory != "Home" {
		t.Fatalf("category = %q", m.state.CurrentCategory)
	}

	svc.tasks = slices.DeleteFunc(svc.tasks, func(task domain.Task) bool { return task.Category == "Home" })
	calls := len(svc.listCalls)
	m = applyMsg(t, m, keyRune('r'))
	if m.state.CurrentCategory != "Home" {
		t.Fatalf("refresh reset filter to %q", m.state.CurrentCategory)
	}
	if !slices.Equal(svc.listCalls[calls:], []string{"Home"}) {
		t.Fatalf("list calls = %v", svc.listCalls[calls:])
	}
	if len(m.state.Tasks) != 0 || !slices.Equal(m.state.Categories, []string{"School"}) {
		t.Fatalf("tasks = %d categories = %v", len(m.state.Tasks), m.state.Categories)
	}
}

func TestModelCopyTaskID(t *testing.T) {
	var copied string
	m := loadReadyModel(t, newTestModel(newFakeService(sampleTasks()...), WithClipboard(func(s string) error {
		copied = s
		return nil
	})))
	m = applyMsg(t, m, keyRune('y'))
	if copied != "t1" || m.toast.text != "Copied t1" {
		t.Fatalf("copied = %q toast = %#v", copied, m.toast)
	}

	m = loadReadyModel(t, newTestModel(newFakeService(sampleTasks()...), WithClipboard(func(string) error {
		return errors.New("no clipboard")
	})))
	m = applyMsg(t, m, keyRune('y'))
	if m.toast.text != "Copy failed: no clipboard" {
		t.Fatalf("toast = %#v", m.toast)
	}
}

func TestModelToastExpiresOnlyForLatestSeq(t *testing.T) {
	m := loadReadyModel(t, newTestModel(newFakeService(), WithToastDuration(time.Second)))
	if cmd := m.showToast("first", false); cmd == nil {
		t.Fatal("expected expiry command")
	}
	stale := m.toastSeq
	m.showToast("second", false)

	m = applyMsg(t, m, toastExpiredMsg{seq: stale})
	if m.toast.text != "second" {
		t.Fatalf("stale expiry cleared newer toast: %#v", m.toast)
	}
	m = applyMsg(t, m, toastExpiredMsg{seq: m.toastSeq})
	if m.toast.text != "" {
		t.Fatalf("toast = %#v, want cleared", m.toast)
	}
}

func TestModelHelpToggleAndQuit(t *testing.T) {
	m := loadReadyModel(t, newTestModel(newFakeService()))
	m = applyMsg(t, m, keyRune('?'))
	if !m.help.ShowAll {
		t.Fatal("expected full help")
	}
	overlay := m.renderHelpOverlay(lipgloss.Color("62"), lipgloss.Color("241"), lipgloss.Color("239"), 100)
	if !strings.Contains(overlay, "category filter") {
		t.Fatalf("help overlay = %q", overlay)
	}
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEscape})
	if m.help.ShowAll {
		t.Fatal("expected help closed")
	}
	_, cmd := m.Update(keyRune('q'))
	if cmd == nil {
		t.Fatal("expected quit cmd")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("expected tea.QuitMsg")
	}
}

func TestColumnWidthAndHelpers(t *testing.T) {
	if got := columnWidthFor(0, 3); got != 28 {
		t.Fatalf("columnWidthFor(0) = %d", got)
	}
	if got := columnWidthFor(60, 3); got != 24 {
		t.Fatalf("columnWidthFor(60) = %d", got)
	}
	if got := columnWidthFor(400, 3); got != 42 {
		t.Fatalf("columnWidthFor(400) = %d", got)
	}
	if got := truncate("abcdef", 4); got != "abc…" {
		t.Fatalf("truncate() = %q", got)
	}
	if got := fitLines("a\nb\nc", 2); got != "a\n…" {
		t.Fatalf("fitLines() = %q", got)
	}
	if got := categoryLabel(""); got != "All" {
		t.Fatalf("categoryLabel() = %q", got)
	}
}
