// Package config resolves coverbot settings from defaults, an optional YAML
// file and the action inputs.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	cblog "github.com/holon-run/coverbot/pkg/log"
	"github.com/holon-run/coverbot/pkg/runner"
)

// DefaultFileName is looked up in the working directory when no file is given.
const DefaultFileName = ".coverbot.yaml"

// Input names of the workflow step, read from INPUT_<NAME>.
const (
	InputSkipOn      = "skip_on"
	InputJest        = "jest"
	InputScope       = "scope"
	InputLauncher    = "launcher"
	InputImage       = "image"
	InputStepSummary = "step_summary"
	InputLogLevel    = "log_level"
)

// Inputs lists every input ApplyInputs reads.
var Inputs = []string{InputSkipOn, InputJest, InputScope, InputLauncher, InputImage, InputStepSummary, InputLogLevel}

// Config holds the resolved settings of one run. Empty fields are unset and
// left to the lower precedence sources.
type Config struct {
	// SkipOn is a PR label that turns the run into a no-op.
	SkipOn string `yaml:"skip_on,omitempty"`
	// Jest is the runner command line, split with shell word rules.
	Jest     string `yaml:"jest,omitempty"`
	Scope    string `yaml:"scope,omitempty"`
	Launcher string `yaml:"launcher,omitempty"`
	// Image runs the tests in a container when set.
	Image       string `yaml:"image,omitempty"`
	StepSummary bool   `yaml:"step_summary,omitempty"`
	LogLevel    string `yaml:"log_level,omitempty"`
}

// Default returns the settings used when no file, input or flag sets a field.
func Default() Config {
	return Config{
		Jest:     runner.DefaultCommand,
		Launcher: string(runner.DefaultLauncher),
		LogLevel: string(cblog.LevelProgress),
	}
}

// LoadFile overlays the YAML file at path onto cfg. Unknown keys are rejected.
func LoadFile(cfg Config, path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return cfg, nil
}

// Load starts from Default and applies path, or DefaultFileName inside dir
// when path is empty and that file exists.
func Load(dir, path string) (Config, error) {
	cfg := Default()
	if path == "" {
		candidate := filepath.Join(dir, DefaultFileName)
		if _, err := os.Stat(candidate); err != nil {
			if os.IsNotExist(err) {
				return cfg, nil
			}
			return Config{}, fmt.Errorf("failed to stat %s: %w", candidate, err)
		}
		path = candidate
	}
	cblog.Debug("loading config file", "path", path)
	return LoadFile(cfg, path)
}

// ApplyInputs overrides fields with every non-empty input.
func (c *Config) ApplyInputs(getInput func(name string) string) error {
	set := func(name string, dst *string) {
		if v := strings.TrimSpace(getInput(name)); v != "" {
			*dst = v
		}
	}
	set(InputSkipOn, &c.SkipOn)
	set(InputJest, &c.Jest)
	set(InputScope, &c.Scope)
	set(InputLauncher, &c.Launcher)
	set(InputImage, &c.Image)
	set(InputLogLevel, &c.LogLevel)

	if v := strings.TrimSpace(getInput(InputStepSummary)); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s input %q: %w", InputStepSummary, v, err)
		}
		c.StepSummary = b
	}
	return nil
}

// Validate checks the enumerated fields.
func (c Config) Validate() error {
	if _, err := runner.ParseLauncher(c.Launcher); err != nil {
		return err
	}
	if _, err := cblog.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if strings.TrimSpace(c.Jest) == "" {
		return fmt.Errorf("jest command cannot be empty")
	}
	if msg := c.LauncherMismatch(); msg != "" {
		cblog.Warn(msg, "jest", c.Jest, "launcher", c.Launcher)
	}
	return nil
}

// LauncherMismatch describes a jest binary run through a launcher that adds
// "--". jest reads everything after "--" as test path patterns, so the report
// is never written. It returns "" when the pair is consistent.
func (c Config) LauncherMismatch() string {
	if !c.RunnerLauncher().UsesSeparator() {
		return ""
	}
	argv, err := runner.SplitCommand(c.Jest)
	if err != nil {
		return ""
	}
	switch filepath.Base(argv[0]) {
	case "jest", "jest.js":
		return fmt.Sprintf("jest command runs the jest binary directly but launcher %q adds a \"--\" separator; set launcher to direct", c.RunnerLauncher())
	}
	return ""
}

// RunnerLauncher returns the parsed launcher; call Validate first.
func (c Config) RunnerLauncher() runner.Launcher {
	l, err := runner.ParseLauncher(c.Launcher)
	if err != nil {
		return runner.DefaultLauncher
	}
	return l
}
