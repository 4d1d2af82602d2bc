package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/google/uuid"
	"github.com/hylla/tavla/internal/adapters/apiclient"
	"github.com/hylla/tavla/internal/adapters/server"
	"github.com/hylla/tavla/internal/adapters/server/common"
	"github.com/hylla/tavla/internal/adapters/storage/sqlite"
	"github.com/hylla/tavla/internal/app"
	"github.com/hylla/tavla/internal/config"
	"github.com/hylla/tavla/internal/domain"
	"github.com/hylla/tavla/internal/tui"
)

// TestMain pins dev mode off and keeps platform paths out of the real home dir.
func TestMain(m *testing.M) {
	base, err := os.MkdirTemp("", "tavla-cmd-test")
	if err != nil {
		panic(err)
	}
	_ = os.Setenv("TAVLA_DEV_MODE", "false")
	_ = os.Setenv("XDG_CONFIG_HOME", filepath.Join(base, "config"))
	_ = os.Setenv("XDG_DATA_HOME", filepath.Join(base, "data"))
	_ = os.Unsetenv("TAVLA_CONFIG")
	_ = os.Unsetenv("TAVLA_DB_PATH")
	_ = os.Unsetenv("API_BASE_URL")
	_ = os.Unsetenv("STUDENT_NAME")
	code := m.Run()
	_ = os.RemoveAll(base)
	os.Exit(code)
}

type fakeProgram struct {
	runErr error
}

func (f fakeProgram) Run() (tea.Model, error) {
	return nil, f.runErr
}

func stubProgram(t *testing.T, capture *tea.Model) {
	t.Helper()
	orig := programFactory
	t.Cleanup(func() { programFactory = orig })
	programFactory = func(m tea.Model) program {
		if capture != nil {
			*capture = m
		}
		return fakeProgram{}
	}
}

// newAPIServer serves the real handler over an in-memory store.
func newAPIServer(t *testing.T) *httptest.Server {
	t.Helper()
	repo, err := sqlite.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	svc := app.NewService(repo, uuid.NewString, time.Now)
	handler, _, err := server.NewHandler(server.Config{}, server.Dependencies{Tasks: common.NewAppServiceAdapter(svc)})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestRunVersion(t *testing.T) {
	var out strings.Builder
	if err := run(context.Background(), []string{"--version"}, &out, io.Discard); err != nil {
		t.Fatalf("run(--version) error = %v", err)
	}
	if !strings.Contains(out.String(), version) {
		t.Fatalf("expected version in output, got %q", out.String())
	}
}

func TestRunStartsProgram(t *testing.T) {
	var captured tea.Model
	stubProgram(t, &captured)

	tmp := t.TempDir()
	args := []string{"--db", filepath.Join(tmp, "tavla.db"), "--config", filepath.Join(tmp, "missing.toml"), "--name", "Ada"}
	if err := run(context.Background(), args, io.Discard, io.Discard); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if _, ok := captured.(tui.Model); !ok {
		t.Fatalf("expected tui.Model to be started, got %T", captured)
	}
}

func TestRunTUIFailurePropagates(t *testing.T) {
	orig := programFactory
	t.Cleanup(func() { programFactory = orig })
	programFactory = func(tea.Model) program { return fakeProgram{runErr: io.ErrUnexpectedEOF} }

	tmp := t.TempDir()
	err := run(context.Background(), []string{"--config", filepath.Join(tmp, "missing.toml")}, io.Discard, io.Discard)
	if err == nil || !strings.Contains(err.Error(), "run tui program") {
		t.Fatalf("expected wrapped tui error, got %v", err)
	}
}

func TestRunUnknownCommand(t *testing.T) {
	if err := run(context.Background(), []string{"bogus"}, io.Discard, io.Discard); err == nil {
		t.Fatal("expected error for unknown command")
	}
}

func TestRunInvalidFlag(t *testing.T) {
	if err := run(context.Background(), []string{"--no-such-flag"}, io.Discard, io.Discard); err == nil {
		t.Fatal("expected error for invalid flag")
	}
}

func TestRunPathsCommand(t *testing.T) {
	var out strings.Builder
	if err := run(context.Background(), []string{"--app", "tavlax", "--dev", "paths"}, &out, io.Discard); err != nil {
		t.Fatalf("run(paths) error = %v", err)
	}
	output := out.String()
	for _, want := range []string{"app: tavlax", "dev_mode: true", "tavlax-dev", "log_dir: "} {
		if !strings.Contains(output, want) {
			t.Fatalf("expected %q in paths output, got %q", want, output)
		}
	}
}

func TestRunInitConfigWritesOnce(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "nested", "config.toml")
	var out strings.Builder
	if err := run(context.Background(), []string{"--config", cfgPath, "init-config"}, &out, io.Discard); err != nil {
		t.Fatalf("run(init-config) error = %v", err)
	}
	if !strings.Contains(out.String(), "wrote") {
		t.Fatalf("expected write notice, got %q", out.String())
	}
	loaded, err := config.Load(cfgPath, config.Default("unused.db"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.API.BaseURL != config.DefaultBaseURL {
		t.Fatalf("unexpected base url %q", loaded.API.BaseURL)
	}

	out.Reset()
	if err := run(context.Background(), []string{"--config", cfgPath, "init-config"}, &out, io.Discard); err != nil {
		t.Fatalf("second run(init-config) error = %v", err)
	}
	if !strings.Contains(out.String(), "already exists") {
		t.Fatalf("expected existing-config notice, got %q", out.String())
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	tmp := t.TempDir()
	cfgPath := filepath.Join(tmp, "tavla.toml")
	if err := os.WriteFile(cfgPath, []byte("[logging]\nlevel = \"loud\"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	stubProgram(t, nil)
	if err := run(context.Background(), []string{"--config", cfgPath}, io.Discard, io.Discard); err == nil {
		t.Fatal("expected invalid logging level to fail")
	}
}

func TestRunExportImportRoundTrip(t *testing.T) {
	tmp := t.TempDir()
	cfgPath := filepath.Join(tmp, "missing.toml")
	inPath := filepath.Join(tmp, "in.json")
	outPath := filepath.Join(tmp, "out", "snapshot.json")

	snap := app.Snapshot{
		Version: app.SnapshotVersion,
		Tasks: []domain.Task{
			{ID: "t-1", Title: "Buy milk", Category: "Home", Status: domain.StatusInProgress, DueDate: "2024-01-05", CreatedAt: "2024-01-01T00:00:00Z", UpdatedAt: "2024-01-01T00:00:00Z"},
			{ID: "t-2", Title: "Write essay", Category: "School", Status: domain.StatusDone, DueDate: "2024-01-01", Description: "<p>five pages</p>", CreatedAt: "2024-01-02T00:00:00Z", UpdatedAt: "2024-01-02T00:00:00Z"},
		},
	}
	encoded, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if err := os.WriteFile(inPath, encoded, 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	dbArgs := []string{"--db", filepath.Join(tmp, "tavla.db"), "--config", cfgPath}
	var out strings.Builder
	if err := run(context.Background(), append(dbArgs, "import", "--in", inPath), &out, io.Discard); err != nil {
		t.Fatalf("run(import) error = %v", err)
	}
	if !strings.Contains(out.String(), "imported 2 tasks") {
		t.Fatalf("unexpected import output %q", out.String())
	}

	if err := run(context.Background(), append(dbArgs, "export", "--out", outPath), io.Discard, io.Discard); err != nil {
		t.Fatalf("run(export) error = %v", err)
	}
	content, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	var got app.Snapshot
	if err := json.Unmarshal(content, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got.Version != app.SnapshotVersion || len(got.Tasks) != 2 {
		t.Fatalf("unexpected exported snapshot %+v", got)
	}
	if got.Tasks[1].Description != "<p>five pages</p>" || got.Tasks[0].Status != domain.StatusInProgress {
		t.Fatalf("exported tasks lost fields: %+v", got.Tasks)
	}
}

func TestRunExportToStdoutAndImportErrors(t *testing.T) {
	tmp := t.TempDir()
	dbArgs := []string{"--db", filepath.Join(tmp, "tavla.db"), "--config", filepath.Join(tmp, "missing.toml")}

	var out bytes.Buffer
	if err := run(context.Background(), append(dbArgs, "export"), &out, io.Discard); err != nil {
		t.Fatalf("run(export) error = %v", err)
	}
	if !strings.Contains(out.String(), app.SnapshotVersion) {
		t.Fatalf("expected snapshot json on stdout, got %q", out.String())
	}

	if err := run(context.Background(), append(dbArgs, "import"), io.Discard, io.Discard); err == nil {
		t.Fatal("expected import without --in to fail")
	}
	badPath := filepath.Join(tmp, "bad.json")
	if err := os.WriteFile(badPath, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := run(context.Background(), append(dbArgs, "import", "--in", badPath), io.Discard, io.Discard); err == nil {
		t.Fatal("expected malformed snapshot to fail")
	}
}

func TestRunListPrintsTable(t *testing.T) {
	srv := newAPIServer(t)
	client, err := apiclient.New(apiclient.Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("apiclient.New() error = %v", err)
	}
	ctx := context.Background()
	for _, in := range []apiclient.TaskInput{
		{Title: "Buy milk", Category: "Home", DueDate: "2024-01-05", Status: domain.StatusNotStarted},
		{Title: "Write essay", Category: "School", DueDate: "2024-01-01", Status: domain.StatusDone},
	} {
		if _, err := client.CreateTask(ctx, in); err != nil {
			t.Fatalf("CreateTask() error = %v", err)
		}
	}

	tmp := t.TempDir()
	base := []string{"--config", filepath.Join(tmp, "missing.toml"), "--api-url", srv.URL, "list"}
	var out strings.Builder
	if err := run(ctx, base, &out, io.Discard); err != nil {
		t.Fatalf("run(list) error = %v", err)
	}
	for _, want := range []string{"Title", "Buy milk", "Write essay", "Not Started", "Done", "Jan 5"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("expected %q in list output, got %q", want, out.String())
		}
	}

	out.Reset()
	if err := run(ctx, append(base, "--category", "Home"), &out, io.Discard); err != nil {
		t.Fatalf("run(list --category) error = %v", err)
	}
	if !strings.Contains(out.String(), "Buy milk") || strings.Contains(out.String(), "Write essay") {
		t.Fatalf("expected only Home tasks, got %q", out.String())
	}
}

func TestRunListReportsAPIErrors(t *testing.T) {
	srv := newAPIServer(t)
	srv.Close()
	tmp := t.TempDir()
	err := run(context.Background(), []string{"--config", filepath.Join(tmp, "missing.toml"), "--api-url", srv.URL, "list"}, io.Discard, io.Discard)
	if err == nil || !strings.Contains(err.Error(), "list tasks") {
		t.Fatalf("expected list error, got %v", err)
	}
}

func TestRunDevModeWritesRuntimeLogsToFileOnly(t *testing.T) {
	stubProgram(t, nil)
	workspace := t.TempDir()
	if err := os.WriteFile(filepath.Join(workspace, "go.mod"), []byte("module example.com/test\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Chdir(workspace)

	var stderr bytes.Buffer
	args := []string{"--dev", "--db", filepath.Join(workspace, "tavla.db"), "--config", filepath.Join(workspace, "missing.toml")}
	if err := run(context.Background(), args, io.Discard, &stderr); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if got := strings.TrimSpace(stderr.String()); got != "" {
		t.Fatalf("expected no console output while the board runs, got %q", got)
	}

	logDir := filepath.Join(workspace, ".tavla", "log")
	entries, err := os.ReadDir(logDir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	var logPath string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".log") {
			logPath = filepath.Join(logDir, entry.Name())
			break
		}
	}
	if logPath == "" {
		t.Fatalf("expected a .log file in %s", logDir)
	}
	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(content), "starting tui program loop") {
		t.Fatalf("expected tui lifecycle entries in dev log, got %q", content)
	}
}

func TestParseBoolEnv(t *testing.T) {
	t.Setenv("TAVLA_BOOL_TEST", "true")
	if got, ok := parseBoolEnv("TAVLA_BOOL_TEST"); !ok || !got {
		t.Fatalf("expected true, got value=%t ok=%t", got, ok)
	}
	t.Setenv("TAVLA_BOOL_TEST", "not-bool")
	if _, ok := parseBoolEnv("TAVLA_BOOL_TEST"); ok {
		t.Fatal("expected invalid bool to report ok=false")
	}
}

func TestWorkspaceRootFromUsesNearestMarker(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "go.mod"), []byte("module example.com/test\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	nested := filepath.Join(root, "cmd", "tavla")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	got, ok := workspaceRootFrom(nested)
	if !ok || filepath.Clean(got) != filepath.Clean(root) {
		t.Fatalf("expected workspace root %q, got %q (ok=%t)", root, got, ok)
	}
}

func TestDevLogFilePath(t *testing.T) {
	day := time.Date(2026, 2, 22, 12, 0, 0, 0, time.UTC)
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, ".git"), 0o755); err != nil {
		t.Fatalf("Mkdir() error = %v", err)
	}
	got := devLogFilePath(root, "/fallback", "tavla", day)
	if want := filepath.Join(root, ".tavla", "log", "tavla-20260222.log"); got != want {
		t.Fatalf("devLogFilePath() = %q, want %q", got, want)
	}

	loose := t.TempDir()
	fallback := filepath.Join(loose, "logs")
	if got := devLogFilePath(loose, fallback, "my app", day); got != filepath.Join(fallback, "my-app-20260222.log") {
		t.Fatalf("expected fallback log path, got %q", got)
	}
}

func TestRuntimeLoggerCanMuteConsoleSink(t *testing.T) {
	var console bytes.Buffer
	cfg := config.Default("/tmp/tavla.db").Logging
	logger, err := newRuntimeLogger(&console, "tavla", false, cfg, "", func() time.Time {
		return time.Date(2026, 2, 23, 12, 0, 0, 0, time.UTC)
	})
	if err != nil {
		t.Fatalf("newRuntimeLogger() error = %v", err)
	}

	logger.Info("before")
	logger.SetConsoleEnabled(false)
	logger.Info("during")
	logger.SetConsoleEnabled(true)
	logger.Info("after")

	out := console.String()
	if !strings.Contains(out, "before") || !strings.Contains(out, "after") {
		t.Fatalf("expected unmuted entries, got %q", out)
	}
	if strings.Contains(out, "during") {
		t.Fatalf("expected muted entry to be dropped, got %q", out)
	}
	if logger.DevLogPath() != "" {
		t.Fatalf("expected no dev log outside dev mode, got %q", logger.DevLogPath())
	}
}
