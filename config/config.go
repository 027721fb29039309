// Package config reads the configuration of the instrument: the embedded
// defaults, overridden by the user's config.yml.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/resynth/resynth/device/launchpad"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

type (
	Config struct {
		Audio   Audio   `yaml:"audio"`
		Devices Devices `yaml:"devices"`
		Program Program `yaml:"program"`
		Control Control `yaml:"control"`
		Log     Log     `yaml:"log"`
		RPC     RPC     `yaml:"rpc"`
	}

	Audio struct {
		// Backend is oto, portaudio or headless.
		Backend    string        `yaml:"backend"`
		SampleRate int           `yaml:"samplerate"`
		Buffer     time.Duration `yaml:"buffer"`
		Format     string        `yaml:"format"`
	}

	// Devices names the MIDI ports of the surfaces by prefix.
	Devices struct {
		Enabled   bool               `yaml:"enabled"`
		Pad       string             `yaml:"pad"`
		Control   string             `yaml:"control"`
		Launchpad launchpad.Settings `yaml:"launchpad"`
	}

	Program struct {
		Artifact string        `yaml:"artifact"`
		Watch    bool          `yaml:"watch"`
		Debounce time.Duration `yaml:"debounce"`
	}

	Control struct {
		Interval       time.Duration `yaml:"interval"`
		Budget         time.Duration `yaml:"budget"`
		SwapBudget     time.Duration `yaml:"swapbudget"`
		StatusInterval time.Duration `yaml:"statusinterval"`
	}

	Log struct {
		Level       string `yaml:"level"`
		Development bool   `yaml:"development"`
	}

	RPC struct {
		// Address to listen on; empty disables remote control.
		Address string `yaml:"address"`
	}
)

// FileName is the name of the user configuration file.
const FileName = "config.yml"

var Backends = []string{"oto", "portaudio", "headless"}

//go:embed default.yml
var defaultYaml []byte

// Default returns the embedded defaults.
func Default() Config {
	var c Config
	if err := yaml.UnmarshalStrict(defaultYaml, &c); err != nil {
		panic(fmt.Errorf("failed to unmarshal default config: %w", err))
	}
	return c
}

// UserPath returns the path of the user configuration file.
func UserPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "resynth", FileName), nil
}

// Load returns the defaults overridden by the file at path. An empty path
// means the user configuration file, which may be missing; an explicitly
// given file must exist.
func Load(path string) (Config, error) {
	c := Default()
	explicit := path != ""
	if !explicit {
		var err error
		if path, err = UserPath(); err != nil {
			return c, nil
		}
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) && !explicit {
		return c, nil
	}
	if err != nil {
		return c, fmt.Errorf("cannot read config: %w", err)
	}
	if err := c.Merge(data); err != nil {
		return c, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Merge overrides the fields present in data. Unknown fields are an error.
func (c *Config) Merge(data []byte) error {
	if err := yaml.UnmarshalStrict(data, c); err != nil {
		return err
	}
	return c.Validate()
}

func (c *Config) Validate() error {
	var errs []error
	found := false
	for _, b := range Backends {
		found = found || b == c.Audio.Backend
	}
	if !found {
		errs = append(errs, fmt.Errorf("unknown audio backend %q, expected one of %v", c.Audio.Backend, Backends))
	}
	if c.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("sample rate must be positive, got %d", c.Audio.SampleRate))
	}
	if c.Program.Artifact == "" {
		errs = append(errs, errors.New("no program artifact"))
	}
	if c.Control.Interval <= 0 {
		errs = append(errs, fmt.Errorf("control interval must be positive, got %v", c.Control.Interval))
	}
	if _, err := zap.ParseAtomicLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Logger builds the process logger.
func (l Log) Logger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if l.Development {
		cfg = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(l.Level)
	if err != nil {
		return nil, err
	}
	cfg.Level = level
	return cfg.Build()
}

// String renders the configuration as YAML.
func (c Config) String() string {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err.Error()
	}
	return string(b)
}
