package shared

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Database struct {
		DSN string `yaml:"dsn"` // "./qansible.db"
	} `yaml:"database"`

	Analysis struct {
		Sources     []string `yaml:"sources"`      // ["./playbooks"]
		Profile     string   `yaml:"profile"`      // "Qualimetry Ansible"
		Workers     int      `yaml:"workers"`      // 0 = GOMAXPROCS
		Exclude     []string `yaml:"exclude"`      // globs on relative paths or base names
		MinSeverity string   `yaml:"min_severity"` // "INFO"
		RulePacks   []string `yaml:"rule_packs"`   // YAML rule pack paths
	} `yaml:"analysis"`

	Rules struct {
		MaxLineLength     int `yaml:"max_line_length"`
		MaxPlays          int `yaml:"max_plays"`
		MaxTasksPerPlay   int `yaml:"max_tasks_per_play"`
		MaxBlockTasks     int `yaml:"max_block_tasks"`
		MinTaskNameChars  int `yaml:"min_task_name_chars"`
		MaxTaskAttributes int `yaml:"max_task_attributes"`
	} `yaml:"rules"`

	Profiles []ProfileConfig `yaml:"profiles"`

	Reporting struct {
		OutDir  string   `yaml:"out_dir"` // "./reports"
		Formats []string `yaml:"formats"` // json|html|sarif|table
	} `yaml:"reporting"`

	Logging struct {
		Format string `yaml:"format"` // "json"|"text"
		Level  string `yaml:"level"`  // "info"|"debug"|"warn"|"error"
	} `yaml:"logging"`

	Server struct {
		Addr           string   `yaml:"addr"` // ":8080"
		AllowedOrigins []string `yaml:"allowed_origins"`
		SessionHours   int      `yaml:"session_hours"`
	} `yaml:"server"`
}

// ProfileConfig declares an additional quality profile.
type ProfileConfig struct {
	Name  string   `yaml:"name"`
	Rules []string `yaml:"rules"`
}

var knownFormats = map[string]bool{"json": true, "html": true, "sarif": true, "table": true}

func DefaultConfig() Config {
	var c Config
	c.Database.DSN = "./qansible.db"
	c.Analysis.Sources = []string{"."}
	c.Analysis.MinSeverity = "INFO"
	c.Reporting.OutDir = "./reports"
	c.Reporting.Formats = []string{"json", "html"}
	c.Logging.Format = "json"
	c.Logging.Level = "info"
	c.Server.Addr = ":8080"
	c.Server.SessionHours = 12
	return c
}

// LoadConfig reads path over the defaults and applies QANSIBLE_* environment
// overrides. A missing file is not an error; malformed YAML is.
func LoadConfig(path string) (Config, error) {
	c := DefaultConfig()
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return c, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(b, &c); err != nil {
				return c, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if err := applyEnv(&c); err != nil {
		return c, err
	}
	return c, c.Validate()
}

func applyEnv(c *Config) error {
	if v := os.Getenv("QANSIBLE_DB_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("QANSIBLE_PROFILE"); v != "" {
		c.Analysis.Profile = v
	}
	if v := os.Getenv("QANSIBLE_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("QANSIBLE_WORKERS: %w", err)
		}
		c.Analysis.Workers = n
	}
	if v := os.Getenv("QANSIBLE_MIN_SEVERITY"); v != "" {
		c.Analysis.MinSeverity = v
	}
	if v := os.Getenv("QANSIBLE_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("QANSIBLE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("QANSIBLE_OUT_DIR"); v != "" {
		c.Reporting.OutDir = v
	}
	if v := os.Getenv("QANSIBLE_ADDR"); v != "" {
		c.Server.Addr = v
	}
	return nil
}

// Validate checks values that would otherwise fail late in a run.
func (c Config) Validate() error {
	var errs []error
	if c.Analysis.Workers < 0 {
		errs = append(errs, fmt.Errorf("analysis.workers must not be negative"))
	}
	switch strings.ToUpper(c.Analysis.MinSeverity) {
	case "", "INFO", "MINOR", "MAJOR", "CRITICAL", "BLOCKER":
	default:
		errs = append(errs, fmt.Errorf("analysis.min_severity: unknown severity %q", c.Analysis.MinSeverity))
	}
	for _, f := range c.Reporting.Formats {
		if !knownFormats[strings.ToLower(f)] {
			errs = append(errs, fmt.Errorf("reporting.formats: unknown format %q", f))
		}
	}
	for i, p := range c.Profiles {
		if strings.TrimSpace(p.Name) == "" {
			errs = append(errs, fmt.Errorf("profiles[%d]: name is required", i))
		}
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "json", "text":
	default:
		errs = append(errs, fmt.Errorf("logging.format: unknown format %q", c.Logging.Format))
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
