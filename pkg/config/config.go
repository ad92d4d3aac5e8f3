package config

import (
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/afero"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v2"
)

// Config holds the defaults read from a config file. Zero values mean the
// option was not set in the file.
type Config struct {
	OS       string `yaml:"os" toml:"os"`
	URI      string `yaml:"uri" toml:"uri"`
	File     string `yaml:"file" toml:"file"`
	Debug    *int   `yaml:"debug" toml:"debug"`
	Quiet    *bool  `yaml:"quiet" toml:"quiet"`
	Syslog   *bool  `yaml:"syslog" toml:"syslog"`
	Fetch    *bool  `yaml:"fetch" toml:"fetch"`
	MaxDepth int    `yaml:"max_depth" toml:"max_depth"`
}

// Load reads a YAML or TOML config file, chosen by extension.
func Load(fs afero.Fs, path string) (Config, error) {
	b, err := afero.ReadFile(fs, path)
	if err != nil {
		return Config{}, xerrors.Errorf("unable to read %s: %w", path, err)
	}

	var cfg Config
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err = yaml.UnmarshalStrict(b, &cfg); err != nil {
			return Config{}, xerrors.Errorf("yaml decode error (%s): %w", path, err)
		}
	case ".toml":
		md, err := toml.Decode(string(b), &cfg)
		if err != nil {
			return Config{}, xerrors.Errorf("toml decode error (%s): %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return Config{}, xerrors.Errorf("unknown keys in %s: %v", path, undecoded)
		}
	default:
		return Config{}, xerrors.Errorf("unsupported config format: %q", ext)
	}
	return cfg, nil
}
