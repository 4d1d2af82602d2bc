package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	charmLog "github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/hylla/tavla/internal/adapters/apiclient"
	"github.com/hylla/tavla/internal/adapters/server"
	"github.com/hylla/tavla/internal/adapters/server/common"
	"github.com/hylla/tavla/internal/adapters/storage/sqlite"
	"github.com/hylla/tavla/internal/app"
	"github.com/hylla/tavla/internal/board"
	"github.com/hylla/tavla/internal/config"
	"github.com/hylla/tavla/internal/platform"
	"github.com/hylla/tavla/internal/tui"
	"github.com/spf13/cobra"
)

var version = "dev"

// program is the part of tea.Program that run depends on.
type program interface {
	Run() (tea.Model, error)
}

var programFactory = func(m tea.Model) program {
	return tea.NewProgram(m)
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}

// run executes one CLI invocation. fang renders errors to stderr.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	root := newRootCommand(stdout, stderr)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetIn(os.Stdin)
	return fang.Execute(ctx, root, fang.WithVersion(version))
}

// globalFlags holds the persistent flags shared by every command.
type globalFlags struct {
	configPath  string
	dbPath      string
	appName     string
	devMode     bool
	apiURL      string
	studentName string
}

// runtimeEnv is everything a command needs after config resolution.
type runtimeEnv struct {
	paths      platform.Paths
	configPath string
	cfg        config.Config
	logger     *runtimeLogger
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	flags := &globalFlags{}
	defaultDevMode := version == "dev"
	if envDev, ok := parseBoolEnv("TAVLA_DEV_MODE"); ok {
		defaultDevMode = envDev
	}
	appName := platform.AppName
	if envApp := strings.TrimSpace(os.Getenv("TAVLA_APP_NAME")); envApp != "" {
		appName = envApp
	}

	root := &cobra.Command{
		Use:   "tavla",
		Short: "A three-column task board for a REST task API",
		Long: "tavla shows tasks from a REST API as a Not Started / In Progress / Done board.\n" +
			"Run without a subcommand to open the board, or use serve to host the API locally.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, flags, "tui", stderr, func(env *runtimeEnv) error {
				return runTUI(env)
			})
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "path to config TOML")
	pf.StringVar(&flags.dbPath, "db", "", "path to the sqlite database used by serve")
	pf.StringVar(&flags.appName, "app", appName, "application name for config/data path resolution")
	pf.BoolVar(&flags.devMode, "dev", defaultDevMode, "use dev mode paths (<app>-dev)")
	pf.StringVar(&flags.apiURL, "api-url", "", "task API base URL")
	pf.StringVar(&flags.studentName, "name", "", "student name shown in the board title")

	root.AddCommand(
		newServeCommand(flags, stderr),
		newListCommand(flags, stdout, stderr),
		newPathsCommand(flags, stdout),
		newInitConfigCommand(flags, stdout),
		newExportCommand(flags, stdout, stderr),
		newImportCommand(flags, stdout, stderr),
	)
	return root
}

func newServeCommand(flags *globalFlags, stderr io.Writer) *cobra.Command {
	var (
		bind  string
		noMCP bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the task REST API backed by sqlite",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, flags, "serve", stderr, func(env *runtimeEnv) error {
				if strings.TrimSpace(bind) != "" {
					env.cfg.Server.HTTPBind = strings.TrimSpace(bind)
				}
				if noMCP {
					env.cfg.Server.EnableMCP = false
				}
				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()
				return runServe(ctx, env, stderr)
			})
		},
	}
	cmd.Flags().StringVar(&bind, "bind", "", "listen address (overrides server.http_bind)")
	cmd.Flags().BoolVar(&noMCP, "no-mcp", false, "disable the MCP endpoint")
	return cmd
}

func newListCommand(flags *globalFlags, stdout, stderr io.Writer) *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print tasks from the API as a table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, flags, "list", stderr, func(env *runtimeEnv) error {
				return runList(cmd.Context(), env, category, stdout)
			})
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "only list tasks in this category")
	return cmd
}

func newPathsCommand(flags *globalFlags, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print resolved config, data and log paths",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			paths, err := resolvePaths(flags)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(stdout, "app: %s\n", flags.appName)
			_, _ = fmt.Fprintf(stdout, "dev_mode: %t\n", flags.devMode)
			_, _ = fmt.Fprintf(stdout, "config: %s\n", paths.ConfigPath)
			_, _ = fmt.Fprintf(stdout, "data_dir: %s\n", paths.DataDir)
			_, _ = fmt.Fprintf(stdout, "db: %s\n", paths.DBPath)
			_, _ = fmt.Fprintf(stdout, "log_dir: %s\n", paths.LogDir)
			return nil
		},
	}
}

func newInitConfigCommand(flags *globalFlags, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "init-config",
		Short: "Write a default config file if none exists",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			paths, err := resolvePaths(flags)
			if err != nil {
				return err
			}
			configPath := resolveConfigPath(flags, paths)
			dbPath := paths.DBPath
			if strings.TrimSpace(flags.dbPath) != "" {
				dbPath = strings.TrimSpace(flags.dbPath)
			}
			written, err := config.WriteDefault(configPath, config.Default(dbPath))
			if err != nil {
				return fmt.Errorf("write default config: %w", err)
			}
			if !written {
				_, _ = fmt.Fprintf(stdout, "config already exists: %s\n", configPath)
				return nil
			}
			_, _ = fmt.Fprintf(stdout, "wrote %s\n", configPath)
			return nil
		},
	}
}

func newExportCommand(flags *globalFlags, stdout, stderr io.Writer) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every stored task as a JSON snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, flags, "export", stderr, func(env *runtimeEnv) error {
				return withService(env, func(svc *app.Service) error {
					return runExport(cmd.Context(), svc, outPath, stdout)
				})
			})
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "-", "output file path ('-' for stdout)")
	return cmd
}

func newImportCommand(flags *globalFlags, stdout, stderr io.Writer) *cobra.Command {
	var inPath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import tasks from a JSON snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(inPath) == "" {
				return errors.New("--in is required")
			}
			return withRuntime(cmd, flags, "import", stderr, func(env *runtimeEnv) error {
				return withService(env, func(svc *app.Service) error {
					count, err := runImport(cmd.Context(), svc, inPath)
					if err != nil {
						return err
					}
					_, _ = fmt.Fprintf(stdout, "imported %d tasks\n", count)
					return nil
				})
			})
		},
	}
	cmd.Flags().StringVar(&inPath, "in", "", "input snapshot JSON file")
	return cmd
}

// withRuntime resolves config and logging for one command and logs its lifecycle.
func withRuntime(cmd *cobra.Command, flags *globalFlags, command string, stderr io.Writer, fn func(*runtimeEnv) error) error {
	env, err := resolveRuntime(flags, stderr)
	if err != nil {
		return err
	}
	if command == "tui" {
		// The board owns the terminal; runtime logs go to the dev file only.
		env.logger.SetConsoleEnabled(false)
	}
	defer func() {
		if closeErr := env.logger.Close(); closeErr != nil && env.logger.shouldLogToSink(env.logger.consoleSink) {
			_, _ = fmt.Fprintf(stderr, "warning: close runtime log sink: %v\n", closeErr)
		}
	}()

	env.logger.Info("startup configuration resolved", "app", flags.appName, "dev_mode", flags.devMode, "command", command)
	env.logger.Debug("runtime paths resolved", "config_path", env.configPath, "data_dir", env.paths.DataDir, "db_path", env.cfg.Database.Path)
	env.logger.Info("configuration loaded", "config_path", env.configPath, "api", env.cfg.API.BaseURL, "log_level", env.cfg.Logging.Level)
	if devPath := env.logger.DevLogPath(); devPath != "" {
		env.logger.Info("dev file logging enabled", "path", devPath)
	}

	env.logger.Info("command flow start", "command", command)
	if err := fn(env); err != nil {
		env.logger.Error("command flow failed", "command", command, "err", err)
		return fmt.Errorf("run %s command: %w", cmd.Name(), err)
	}
	env.logger.Info("command flow complete", "command", command)
	return nil
}

// resolveRuntime applies defaults, the config file, env overrides and flags in that order.
func resolveRuntime(flags *globalFlags, stderr io.Writer) (*runtimeEnv, error) {
	paths, err := resolvePaths(flags)
	if err != nil {
		return nil, err
	}
	configPath := resolveConfigPath(flags, paths)
	cfg, err := config.Load(configPath, config.Default(paths.DBPath))
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", configPath, err)
	}
	cfg = cfg.ApplyEnv(os.LookupEnv)
	if v := strings.TrimSpace(flags.dbPath); v != "" {
		cfg.Database.Path = v
	}
	if v := strings.TrimSpace(flags.apiURL); v != "" {
		cfg.API.BaseURL = v
	}
	if v := strings.TrimSpace(flags.studentName); v != "" {
		cfg.UI.StudentName = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	logger, err := newRuntimeLogger(stderr, flags.appName, flags.devMode, cfg.Logging, paths.LogDir, time.Now)
	if err != nil {
		return nil, fmt.Errorf("configure runtime logger: %w", err)
	}
	return &runtimeEnv{
		paths:      paths,
		configPath: configPath,
		cfg:        cfg,
		logger:     logger,
	}, nil
}

func resolvePaths(flags *globalFlags) (platform.Paths, error) {
	return platform.DefaultPathsWithOptions(platform.Options{
		AppName: flags.appName,
		DevMode: flags.devMode,
	})
}

func resolveConfigPath(flags *globalFlags, paths platform.Paths) string {
	if v := strings.TrimSpace(flags.configPath); v != "" {
		return v
	}
	if v := strings.TrimSpace(os.Getenv("TAVLA_CONFIG")); v != "" {
		return v
	}
	return paths.ConfigPath
}

func newAPIClient(env *runtimeEnv) (*apiclient.Client, error) {
	return apiclient.New(apiclient.Config{
		BaseURL:        env.cfg.API.BaseURL,
		TasksPath:      env.cfg.API.TasksPath,
		TaskPath:       env.cfg.API.TaskPath,
		CategoriesPath: env.cfg.API.CategoriesPath,
		Timeout:        env.cfg.API.Timeout.Duration,
	}, apiclient.WithLogger(env.logger.fileOrDiscard()))
}

func runTUI(env *runtimeEnv) error {
	client, err := newAPIClient(env)
	if err != nil {
		return fmt.Errorf("configure api client: %w", err)
	}
	m := tui.NewModel(
		client,
		tui.WithStudentName(env.cfg.DisplayName()),
		tui.WithSortMode(board.ParseSortMode(string(env.cfg.UI.DefaultSort))),
		tui.WithToastDuration(env.cfg.UI.ToastDuration.Duration),
		tui.WithLogger(env.logger.fileOrDiscard()),
	)
	env.logger.Info("starting tui program loop", "api", env.cfg.API.BaseURL)
	if _, err := programFactory(m).Run(); err != nil {
		env.logger.Error("tui program terminated with error", "err", err)
		return fmt.Errorf("run tui program: %w", err)
	}
	return nil
}

// withService opens the sqlite store, builds the app service and closes the store afterwards.
func withService(env *runtimeEnv, fn func(*app.Service) error) error {
	env.logger.Info("opening sqlite repository", "db_path", env.cfg.Database.Path)
	repo, err := sqlite.Open(env.cfg.Database.Path)
	if err != nil {
		env.logger.Error("sqlite open failed", "db_path", env.cfg.Database.Path, "err", err)
		return fmt.Errorf("open sqlite repository: %w", err)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			env.logger.Warn("sqlite close failed", "db_path", env.cfg.Database.Path, "err", closeErr)
		}
	}()
	env.logger.Info("sqlite repository ready", "db_path", env.cfg.Database.Path, "migrations", "ensured")
	return fn(app.NewService(repo, uuid.NewString, time.Now))
}

func runServe(ctx context.Context, env *runtimeEnv, stderr io.Writer) error {
	return withService(env, func(svc *app.Service) error {
		level, err := charmLog.ParseLevel(env.cfg.Logging.Level)
		if err != nil {
			level = charmLog.InfoLevel
		}
		serverLogger := charmLog.NewWithOptions(stderr, charmLog.Options{
			Level:           level,
			Prefix:          "serve",
			ReportTimestamp: true,
			TimeFormat:      time.RFC3339,
		})
		return server.Run(ctx, server.Config{
			HTTPBind:      env.cfg.Server.HTTPBind,
			APIEndpoint:   env.cfg.Server.APIEndpoint,
			MCPEndpoint:   env.cfg.Server.MCPEndpoint,
			EnableMCP:     env.cfg.Server.EnableMCP,
			ServerName:    "tavla",
			ServerVersion: version,
		}, server.Dependencies{
			Tasks:  common.NewAppServiceAdapter(svc),
			Logger: serverLogger,
		})
	})
}

func runList(ctx context.Context, env *runtimeEnv, category string, stdout io.Writer) error {
	client, err := newAPIClient(env)
	if err != nil {
		return fmt.Errorf("configure api client: %w", err)
	}
	tasks, err := client.ListTasks(ctx, strings.TrimSpace(category))
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}
	if len(tasks) == 0 {
		_, _ = fmt.Fprintln(stdout, "no tasks")
		return nil
	}

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("230")).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("62"))).
		Headers("ID", "Title", "Category", "Status", "Due").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	for _, task := range tasks {
		t.Row(task.ID, task.Title, task.CategoryLabel(), task.Status.Label(), task.DueLabel())
	}
	_, _ = fmt.Fprintln(stdout, t.Render())
	return nil
}

func runExport(ctx context.Context, svc *app.Service, outPath string, stdout io.Writer) error {
	snap, err := svc.ExportSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("export snapshot: %w", err)
	}
	encoded, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot json: %w", err)
	}
	encoded = append(encoded, '\n')

	if outPath == "" || outPath == "-" {
		if _, err := stdout.Write(encoded); err != nil {
			return fmt.Errorf("write snapshot to stdout: %w", err)
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create export output dir: %w", err)
	}
	if err := os.WriteFile(outPath, encoded, 0o644); err != nil {
		return fmt.Errorf("write export file: %w", err)
	}
	return nil
}

func runImport(ctx context.Context, svc *app.Service, inPath string) (int, error) {
	content, err := os.ReadFile(inPath)
	if err != nil {
		return 0, fmt.Errorf("read import file: %w", err)
	}
	var snap app.Snapshot
	if err := json.Unmarshal(content, &snap); err != nil {
		return 0, fmt.Errorf("decode snapshot json: %w", err)
	}
	count, err := svc.ImportSnapshot(ctx, snap)
	if err != nil {
		return 0, fmt.Errorf("import snapshot: %w", err)
	}
	return count, nil
}

// parseBoolEnv reports the parsed value and whether the variable held a valid bool.
func parseBoolEnv(name string) (bool, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}

// runtimeLogger fans log events to a styled console sink and an optional dev-file sink.
type runtimeLogger struct {
	sinks          []*charmLog.Logger
	consoleSink    *charmLog.Logger
	fileSink       *charmLog.Logger
	consoleEnabled bool
	closeFile      func() error
	devLog         string
}

func newRuntimeLogger(stderr io.Writer, appName string, devMode bool, cfg config.LoggingConfig, fallbackDir string, now func() time.Time) (*runtimeLogger, error) {
	rawLevel := strings.TrimSpace(cfg.Level)
	if rawLevel == "" {
		rawLevel = "info"
	}
	level, err := charmLog.ParseLevel(rawLevel)
	if err != nil {
		return nil, fmt.Errorf("parse logging level %q: %w", cfg.Level, err)
	}
	if now == nil {
		now = time.Now
	}
	if stderr == nil {
		stderr = io.Discard
	}

	consoleLogger := charmLog.NewWithOptions(stderr, charmLog.Options{
		Level:           level,
		Prefix:          appName,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       charmLog.TextFormatter,
	})
	logger := &runtimeLogger{
		sinks:          []*charmLog.Logger{consoleLogger},
		consoleSink:    consoleLogger,
		consoleEnabled: true,
	}
	if !devMode && !cfg.DevFile {
		return logger, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolve working dir: %w", err)
	}
	devLogPath := devLogFilePath(cwd, fallbackDir, appName, now().UTC())
	if err := os.MkdirAll(filepath.Dir(devLogPath), 0o755); err != nil {
		return nil, fmt.Errorf("create dev log dir: %w", err)
	}
	logFile, err := os.OpenFile(devLogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open dev log file: %w", err)
	}

	fileLogger := charmLog.NewWithOptions(logFile, charmLog.Options{
		Level:           level,
		Prefix:          appName,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       charmLog.LogfmtFormatter,
	})
	logger.sinks = append(logger.sinks, fileLogger)
	logger.fileSink = fileLogger
	logger.closeFile = logFile.Close
	logger.devLog = devLogPath
	return logger, nil
}

func (l *runtimeLogger) DevLogPath() string {
	if l == nil {
		return ""
	}
	return l.devLog
}

// Close closes the optional dev-file sink.
func (l *runtimeLogger) Close() error {
	if l == nil || l.closeFile == nil {
		return nil
	}
	return l.closeFile()
}

// SetConsoleEnabled toggles whether the console sink receives runtime events.
func (l *runtimeLogger) SetConsoleEnabled(enabled bool) {
	if l == nil {
		return
	}
	l.consoleEnabled = enabled
}

// fileOrDiscard returns the dev-file sink for library packages, or a discard logger.
func (l *runtimeLogger) fileOrDiscard() *charmLog.Logger {
	if l == nil || l.fileSink == nil {
		return charmLog.New(io.Discard)
	}
	return l.fileSink
}

func (l *runtimeLogger) shouldLogToSink(sink *charmLog.Logger) bool {
	if l == nil || sink == nil {
		return false
	}
	if sink == l.consoleSink && !l.consoleEnabled {
		return false
	}
	return true
}

func (l *runtimeLogger) each(fn func(*charmLog.Logger)) {
	if l == nil {
		return
	}
	for _, sink := range l.sinks {
		if l.shouldLogToSink(sink) {
			fn(sink)
		}
	}
}

func (l *runtimeLogger) Debug(msg string, keyvals ...any) {
	l.each(func(s *charmLog.Logger) { s.Debug(msg, keyvals...) })
}

func (l *runtimeLogger) Info(msg string, keyvals ...any) {
	l.each(func(s *charmLog.Logger) { s.Info(msg, keyvals...) })
}

func (l *runtimeLogger) Warn(msg string, keyvals ...any) {
	l.each(func(s *charmLog.Logger) { s.Warn(msg, keyvals...) })
}

func (l *runtimeLogger) Error(msg string, keyvals ...any) {
	l.each(func(s *charmLog.Logger) { s.Error(msg, keyvals...) })
}

// devLogFilePath places the day's log under <workspace>/.tavla/log when cwd is
// inside a workspace, and under fallbackDir otherwise.
func devLogFilePath(cwd, fallbackDir, appName string, now time.Time) string {
	baseDir := strings.TrimSpace(fallbackDir)
	if root, ok := workspaceRootFrom(cwd); ok || baseDir == "" {
		baseDir = filepath.Join(root, ".tavla", "log")
	}
	fileName := fmt.Sprintf("%s-%s.log", sanitizeLogFileStem(appName), now.Format("20060102"))
	return filepath.Join(filepath.Clean(baseDir), fileName)
}

// workspaceRootFrom walks up from start to the nearest go.mod or .git.
func workspaceRootFrom(start string) (string, bool) {
	start = filepath.Clean(strings.TrimSpace(start))
	dir := start
	for {
		if hasWorkspaceMarker(dir) {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return start, false
		}
		dir = parent
	}
}

func hasWorkspaceMarker(dir string) bool {
	for _, marker := range []string{"go.mod", ".git"} {
		if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
			return true
		}
	}
	return false
}

func sanitizeLogFileStem(appName string) string {
	stem := strings.TrimSpace(appName)
	if stem == "" {
		return platform.AppName
	}
	replacer := strings.NewReplacer("/", "-", "\\", "-", ":", "-", " ", "-")
	return replacer.Replace(stem)
}
