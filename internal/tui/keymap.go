package tui

import "charm.land/bubbles/v2/key"

// keyMap holds the board-level bindings shown in the help bar.
type keyMap struct {
	quit           key.Binding
	reload         key.Binding
	toggleHelp     key.Binding
	moveLeft       key.Binding
	moveRight      key.Binding
	moveUp         key.Binding
	moveDown       key.Binding
	addTask        key.Binding
	taskInfo       key.Binding
	editTask       key.Binding
	deleteTask     key.Binding
	moveTaskLeft   key.Binding
	moveTaskRight  key.Binding
	moveToColumn   key.Binding
	search         key.Binding
	toggleSort     key.Binding
	categoryFilter key.Binding
	copyID         key.Binding
}

// newKeyMap constructs the default bindings.
func newKeyMap() keyMap {
	return keyMap{
		quit:           key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		reload:         key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		toggleHelp:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		moveLeft:       key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("h/←", "column left")),
		moveRight:      key.NewBinding(key.WithKeys("l", "right"), key.WithHelp("l/→", "column right")),
		moveUp:         key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "task up")),
		moveDown:       key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "task down")),
		addTask:        key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new task")),
		taskInfo:       key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "task info")),
		editTask:       key.NewBinding(key.WithKeys("e", "enter"), key.WithHelp("e/enter", "edit task")),
		deleteTask:     key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete task")),
		moveTaskLeft:   key.NewBinding(key.WithKeys("["), key.WithHelp("[", "move task left")),
		moveTaskRight:  key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "move task right")),
		moveToColumn:   key.NewBinding(key.WithKeys("1", "2", "3"), key.WithHelp("1-3", "move to column")),
		search:         key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		toggleSort:     key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "toggle sort")),
		categoryFilter: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "category filter")),
		copyID:         key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy task id")),
	}
}

// ShortHelp returns the bindings shown in the bottom bar.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.addTask, k.editTask, k.moveTaskLeft, k.moveTaskRight, k.search, k.categoryFilter, k.toggleHelp, k.quit,
	}
}

// FullHelp returns every binding grouped for the help overlay.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.addTask, k.taskInfo, k.editTask, k.deleteTask, k.copyID},
		{k.moveLeft, k.moveRight, k.moveUp, k.moveDown, k.moveTaskLeft, k.moveTaskRight, k.moveToColumn},
		{k.search, k.toggleSort, k.categoryFilter, k.reload, k.toggleHelp, k.quit},
	}
}
