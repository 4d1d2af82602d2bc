package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Default REST routes consumed by the board client.
const (
	DefaultBaseURL        = "http://127.0.0.1:8080"
	DefaultTasksPath      = "/tasks"
	DefaultTaskPath       = "/tasks/{id}"
	DefaultCategoriesPath = "/categories"
	DefaultStudentName    = "Student"
)

// SortMode names a board ordering accepted in config.
type SortMode string

const (
	SortRecent  SortMode = "recent"
	SortDueSoon SortMode = "dueSoon"
)

type Config struct {
	API      APIConfig      `toml:"api"`
	UI       UIConfig       `toml:"ui"`
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Logging  LoggingConfig  `toml:"logging"`
}

// APIConfig holds the REST endpoint the board talks to.
type APIConfig struct {
	BaseURL        string   `toml:"base_url"`
	TasksPath      string   `toml:"tasks_path"`
	TaskPath       string   `toml:"task_path"`
	CategoriesPath string   `toml:"categories_path"`
	Timeout        Duration `toml:"timeout"`
}

type UIConfig struct {
	StudentName   string   `toml:"student_name"`
	DefaultSort   SortMode `toml:"default_sort"`
	ToastDuration Duration `toml:"toast_duration"`
}

type ServerConfig struct {
	HTTPBind    string `toml:"http_bind"`
	APIEndpoint string `toml:"api_endpoint"`
	MCPEndpoint string `toml:"mcp_endpoint"`
	EnableMCP   bool   `toml:"enable_mcp"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type LoggingConfig struct {
	Level   string `toml:"level"`
	DevFile bool   `toml:"dev_file"`
}

// Duration decodes TOML strings such as "10s" or "2500ms".
type Duration struct {
	time.Duration
}

// UnmarshalText parses one Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText renders the duration in Go syntax.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func Default(dbPath string) Config {
	return Config{
		API: APIConfig{
			BaseURL:        DefaultBaseURL,
			TasksPath:      DefaultTasksPath,
			TaskPath:       DefaultTaskPath,
			CategoriesPath: DefaultCategoriesPath,
			Timeout:        Duration{10 * time.Second},
		},
		UI: UIConfig{
			StudentName:   DefaultStudentName,
			DefaultSort:   SortRecent,
			ToastDuration: Duration{2500 * time.Millisecond},
		},
		Server: ServerConfig{
			HTTPBind:    "127.0.0.1:8080",
			APIEndpoint: "/",
			MCPEndpoint: "/mcp",
			EnableMCP:   true,
		},
		Database: DatabaseConfig{
			Path: dbPath,
		},
		Logging: LoggingConfig{
			Level:   "info",
			DevFile: false,
		},
	}
}

func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// ApplyEnv overlays environment overrides onto the loaded config.
func (c Config) ApplyEnv(lookup func(string) (string, bool)) Config {
	if lookup == nil {
		return c
	}
	if v, ok := lookup("API_BASE_URL"); ok && strings.TrimSpace(v) != "" {
		c.API.BaseURL = strings.TrimSpace(v)
	}
	if v, ok := lookup("STUDENT_NAME"); ok && strings.TrimSpace(v) != "" {
		c.UI.StudentName = strings.TrimSpace(v)
	}
	if v, ok := lookup("TAVLA_LOG_LEVEL"); ok && strings.TrimSpace(v) != "" {
		c.Logging.Level = strings.TrimSpace(v)
	}
	if v, ok := lookup("TAVLA_DB_PATH"); ok && strings.TrimSpace(v) != "" {
		c.Database.Path = strings.TrimSpace(v)
	}
	return c
}

func (c Config) Validate() error {
	base := strings.TrimSpace(c.API.BaseURL)
	if base == "" {
		return errors.New("api.base_url is required")
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid api.base_url: %q", c.API.BaseURL)
	}
	if strings.TrimSpace(c.API.TasksPath) == "" {
		return errors.New("api.tasks_path is required")
	}
	if !strings.Contains(c.API.TaskPath, "{id}") {
		return fmt.Errorf("api.task_path must contain {id}: %q", c.API.TaskPath)
	}
	if strings.TrimSpace(c.API.CategoriesPath) == "" {
		return errors.New("api.categories_path is required")
	}
	if c.API.Timeout.Duration < 0 {
		return errors.New("api.timeout must be >= 0")
	}

	switch c.UI.DefaultSort {
	case SortRecent, SortDueSoon:
	default:
		return fmt.Errorf("invalid ui.default_sort: %q", c.UI.DefaultSort)
	}
	if c.UI.ToastDuration.Duration < 0 {
		return errors.New("ui.toast_duration must be >= 0")
	}

	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database path is required")
	}

	switch strings.TrimSpace(strings.ToLower(c.Logging.Level)) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}
	return nil
}

// DisplayName returns the student name used in the board title.
func (c Config) DisplayName() string {
	name := strings.TrimSpace(c.UI.StudentName)
	if name == "" {
		return DefaultStudentName
	}
	return name
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// WriteDefault writes cfg as TOML to path unless the file already exists.
func WriteDefault(path string, cfg Config) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("stat config: %w", err)
	}
	if err := EnsureConfigDir(path); err != nil {
		return false, fmt.Errorf("create config dir: %w", err)
	}
	content, err := toml.Marshal(cfg)
	if err != nil {
		return false, fmt.Errorf("encode toml: %w", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return false, fmt.Errorf("write config: %w", err)
	}
	return true, nil
}
