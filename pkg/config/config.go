package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const DefaultConfigFilename = ".livelog.yaml"

const (
	DefaultFPS          = 60
	DefaultMaxBlockSize = 100
)

type File struct {
	Server string `yaml:"server,omitempty"`
	Token  string `yaml:"token,omitempty"`
	Scope  string `yaml:"scope,omitempty"`

	FPS          int   `yaml:"fps,omitempty"`
	MaxBlockSize int   `yaml:"max_block_size,omitempty"`
	AutoFollow   *bool `yaml:"auto_follow,omitempty"`

	Timeout time.Duration `yaml:"timeout,omitempty"`
	Paths   Paths         `yaml:"paths,omitempty"`

	// FoldScript is a JS file deciding where folds start.
	FoldScript string `yaml:"fold_script,omitempty"`
}

// Paths override server routes. Each may contain one %s for the build or
// scope identifier.
type Paths struct {
	Stream string `yaml:"stream,omitempty"`
	Events string `yaml:"events,omitempty"`
	Builds string `yaml:"builds,omitempty"`
	Logs   string `yaml:"logs,omitempty"`
}

func DefaultPath(dir string) string {
	return filepath.Join(dir, DefaultConfigFilename)
}

func LoadFromFile(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	var cfg File
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, errors.Wrap(err, "parse config yaml")
	}
	if cfg.FPS < 0 || cfg.MaxBlockSize < 0 {
		return nil, errors.Errorf("config %s: fps and max_block_size must not be negative", path)
	}
	return &cfg, nil
}

func LoadOptional(path string) (*File, error) {
	_, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &File{}, nil
		}
		return nil, errors.Wrap(err, "stat config")
	}
	return LoadFromFile(path)
}

func (f *File) FPSOrDefault() int {
	if f.FPS > 0 {
		return f.FPS
	}
	return DefaultFPS
}

func (f *File) MaxBlockSizeOrDefault() int {
	if f.MaxBlockSize > 0 {
		return f.MaxBlockSize
	}
	return DefaultMaxBlockSize
}

// AutoFollowOrDefault is true unless the file turns it off.
func (f *File) AutoFollowOrDefault() bool {
	if f.AutoFollow == nil {
		return true
	}
	return *f.AutoFollow
}
