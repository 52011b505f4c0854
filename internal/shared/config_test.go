package shared

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	c, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yml"))
	if err != nil {
		t.Fatal(err)
	}
	if c.Database.DSN != "./qansible.db" || c.Server.Addr != ":8080" || len(c.Reporting.Formats) != 2 {
		t.Fatalf("defaults: %+v", c)
	}
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qansible.yml")
	doc := `
database:
  dsn: /tmp/q.db
analysis:
  profile: Qualimetry Way
  workers: 4
  exclude: [vendor]
rules:
  max_line_length: 120
profiles:
  - name: Team
    rules: [qa-task-has-name]
reporting:
  formats: [sarif, table]
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("QANSIBLE_WORKERS", "2")
	t.Setenv("QANSIBLE_LOG_LEVEL", "debug")
	c, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.Database.DSN != "/tmp/q.db" || c.Analysis.Profile != "Qualimetry Way" || c.Rules.MaxLineLength != 120 {
		t.Fatalf("file values: %+v", c)
	}
	if c.Analysis.Workers != 2 || c.Logging.Level != "debug" {
		t.Fatalf("env overrides: workers=%d level=%s", c.Analysis.Workers, c.Logging.Level)
	}
	if len(c.Profiles) != 1 || c.Profiles[0].Rules[0] != "qa-task-has-name" {
		t.Fatalf("profiles: %+v", c.Profiles)
	}
	if c.Reporting.OutDir != "./reports" {
		t.Fatalf("unset values keep defaults: %q", c.Reporting.OutDir)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	dir := t.TempDir()
	write := func(name, doc string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(doc), 0o644); err != nil {
			t.Fatal(err)
		}
		return p
	}
	if _, err := LoadConfig(write("bad.yml", "analysis: [\n")); err == nil {
		t.Fatalf("malformed yaml accepted")
	}
	if _, err := LoadConfig(write("sev.yml", "analysis:\n  min_severity: HUGE\nreporting:\n  formats: [pdf]\n")); err == nil ||
		!strings.Contains(err.Error(), "HUGE") || !strings.Contains(err.Error(), "pdf") {
		t.Fatalf("validation: %v", err)
	}
	t.Setenv("QANSIBLE_WORKERS", "many")
	if _, err := LoadConfig(""); err == nil {
		t.Fatalf("bad env accepted")
	}
}

func TestInitLogger(t *testing.T) {
	var buf bytes.Buffer
	log := InitLogger(&buf, "text", "warn")
	log.Info("hidden")
	log.Warn("shown", "k", 1)
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") || !strings.Contains(out, "k=1") {
		t.Fatalf("log output: %q", out)
	}
	buf.Reset()
	InitLogger(&buf, "json", "info").Info("hello")
	if !strings.HasPrefix(buf.String(), "{") {
		t.Fatalf("json output: %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{"": slog.LevelInfo, "DEBUG": slog.LevelDebug, "warning": slog.LevelWarn, "error": slog.LevelError} {
		if got, err := ParseLevel(in); err != nil || got != want {
			t.Fatalf("ParseLevel(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("unknown level accepted")
	}
}
