package domain

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Server payloads use either snake or camel case, and ids may live under
// several keys depending on which backend produced them.
var (
	idKeys        = []string{"id", "taskId", "_id"}
	dueKeys       = []string{"due_date", "dueDate"}
	createdKeys   = []string{"created_at", "createdAt"}
	updatedKeys   = []string{"updated_at", "updatedAt"}
	categoryNames = []string{"name", "category"}
)

// NormalizeTask maps one decoded server object onto Task. It returns false
// when the object carries no usable id.
func NormalizeTask(raw map[string]any) (Task, bool) {
	if raw == nil {
		return Task{}, false
	}
	id := strings.TrimSpace(firstString(raw, idKeys...))
	if id == "" {
		return Task{}, false
	}
	title := firstString(raw, "title")
	if strings.TrimSpace(title) == "" {
		title = DefaultTitle
	}
	return Task{
		ID:          id,
		Title:       title,
		Category:    firstString(raw, "category"),
		Status:      ParseStatus(firstString(raw, "status")),
		DueDate:     firstString(raw, dueKeys...),
		Description: firstString(raw, "description"),
		CreatedAt:   firstString(raw, createdKeys...),
		UpdatedAt:   firstString(raw, updatedKeys...),
	}, true
}

// NormalizeTasks normalizes every object in raws, dropping those without ids.
func NormalizeTasks(raws []map[string]any) []Task {
	out := make([]Task, 0, len(raws))
	for _, raw := range raws {
		if task, ok := NormalizeTask(raw); ok {
			out = append(out, task)
		}
	}
	return out
}

// NormalizeCategories accepts plain strings or objects carrying name/category.
func NormalizeCategories(raws []any) []string {
	out := make([]string, 0, len(raws))
	for _, raw := range raws {
		var name string
		switch v := raw.(type) {
		case string:
			name = v
		case map[string]any:
			name = firstString(v, categoryNames...)
		}
		name = strings.TrimSpace(name)
		if name != "" {
			out = append(out, name)
		}
	}
	return out
}

// firstString returns the first non-empty value among keys, stringified.
func firstString(raw map[string]any, keys ...string) string {
	for _, key := range keys {
		if s := stringify(raw[key]); s != "" {
			return s
		}
	}
	return ""
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}
