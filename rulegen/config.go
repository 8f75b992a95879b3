package rulegen

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/metabug/rslgen/rulegen/internal/validate"
)

// Appended output columns, in order.
var OutputColumns = []string{
	"Generated Rule",
	"Rule Description",
	"3rd-Party Web Pages",
	"Reported Non-Existing Functions",
	"Evaluation Verdict",
}

// Columns maps logical fields to input column headers.
type Columns struct {
	Framework   string `yaml:"framework"`
	Source      string `yaml:"source"`
	Topic       string `yaml:"topic"`
	Description string `yaml:"description"`
	Examples    string `yaml:"examples"`
}

func (c *Columns) defaults() {
	if c.Framework == "" {
		c.Framework = "framework"
	}
	if c.Source == "" {
		c.Source = "source"
	}
	if c.Topic == "" {
		c.Topic = "topic"
	}
	if c.Description == "" {
		c.Description = "description"
	}
	if c.Examples == "" {
		c.Examples = "examples"
	}
}

// Config configures the rulegen service and batch runner.
type Config struct {
	// InputPath is the source CSV. Required for batch runs.
	InputPath string `yaml:"input_path"`

	// OutputPath receives the rewritten table. Default: derived from
	// InputPath with an "_out" stem suffix.
	OutputPath string `yaml:"output_path"`

	// Columns maps input headers. Defaults: framework, source, topic,
	// description, examples.
	Columns Columns `yaml:"columns"`

	// BuiltinsPath is the builtin-function catalog JSON.
	// Default: "builtinfs.json".
	BuiltinsPath string `yaml:"builtins_path"`

	// ExamplesDir holds existing .txt rule examples. Default: "rsl_rules".
	ExamplesDir string `yaml:"examples_dir"`

	// AnnotationStorePath is the cumulative extraction JSON.
	// Default: "annotations.json".
	AnnotationStorePath string `yaml:"annotation_store_path"`

	// ReportDir receives per-row URL validation reports.
	// Default: "url_reports".
	ReportDir string `yaml:"report_dir"`

	// SnapshotDir receives markdown page snapshots. Empty disables them.
	SnapshotDir string `yaml:"snapshot_dir"`

	// DBPath is the SQLite run log. Empty disables it.
	DBPath string `yaml:"db_path"`

	// FallbackTablePath optionally overrides the built-in fallback
	// documentation table (YAML).
	FallbackTablePath string `yaml:"fallback_table_path"`

	// Validate configures the URL validation pipeline.
	Validate validate.Config `yaml:"validate"`

	// StageDelay between pipeline stages. Rate-limit courtesy, not
	// correctness. Default: 500ms; negative disables.
	StageDelay time.Duration `yaml:"stage_delay"`

	// RowDelay between records. Default: 2s; negative disables.
	RowDelay time.Duration `yaml:"row_delay"`

	// SaveEvery rewrites the output after this many processed rows.
	// Default: 5.
	SaveEvery int `yaml:"save_every"`

	// MaxRows caps processed rows; 0 = no cap.
	MaxRows int `yaml:"max_rows"`
}

func (c *Config) defaults() {
	c.Columns.defaults()
	if c.BuiltinsPath == "" {
		c.BuiltinsPath = "builtinfs.json"
	}
	if c.ExamplesDir == "" {
		c.ExamplesDir = "rsl_rules"
	}
	if c.AnnotationStorePath == "" {
		c.AnnotationStorePath = "annotations.json"
	}
	if c.ReportDir == "" {
		c.ReportDir = "url_reports"
	}
	if c.StageDelay == 0 {
		c.StageDelay = 500 * time.Millisecond
	}
	if c.RowDelay == 0 {
		c.RowDelay = 2 * time.Second
	}
	if c.SaveEvery <= 0 {
		c.SaveEvery = 5
	}
}

func defaultConfig() *Config {
	cfg := &Config{}
	cfg.defaults()
	return cfg
}

// LoadConfig reads a YAML config file and applies defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rulegen: read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("rulegen: parse config %s: %w", path, err)
	}
	cfg.defaults()
	return &cfg, nil
}
