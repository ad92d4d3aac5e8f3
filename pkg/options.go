package pkg

import (
	"github.com/samber/lo"
	"github.com/spf13/afero"
	"github.com/urfave/cli"
	"golang.org/x/xerrors"

	"github.com/aquasecurity/oval-updater/pkg/config"
)

type options struct {
	os   string
	uri  string
	file string

	debug    int
	quiet    bool
	syslog   bool
	fetch    bool
	maxDepth int
	progress bool
	summary  bool
}

// loadOptions merges the command line over the config file. Flags and their
// environment variables win over the file, the file over flag defaults.
func loadOptions(c *cli.Context, fs afero.Fs) (options, error) {
	var cfg config.Config
	if path := c.String("config"); path != "" {
		var err error
		if cfg, err = config.Load(fs, path); err != nil {
			return options{}, xerrors.Errorf("config error: %w", err)
		}
	}

	return options{
		os:       stringOpt(c, "os", cfg.OS),
		uri:      stringOpt(c, "uri", cfg.URI),
		file:     stringOpt(c, "file", cfg.File),
		debug:    intOpt(c, "debug", cfg.Debug),
		quiet:    boolOpt(c, "quiet", c.Bool, cfg.Quiet),
		syslog:   boolOpt(c, "syslog", c.BoolT, cfg.Syslog),
		fetch:    boolOpt(c, "fetch", c.Bool, cfg.Fetch),
		maxDepth: intOpt(c, "max-depth", lo.EmptyableToPtr(cfg.MaxDepth)),
		progress: c.Bool("progress"),
		summary:  c.Bool("summary"),
	}, nil
}

// missing returns the required flags that are still empty.
func (o options) missing() []string {
	required := map[string]string{
		"--os":   o.os,
		"--uri":  o.uri,
		"--file": o.file,
	}
	return lo.Filter([]string{"--os", "--uri", "--file"}, func(flag string, _ int) bool {
		return required[flag] == ""
	})
}

func stringOpt(c *cli.Context, name, fromConfig string) string {
	if c.IsSet(name) || fromConfig == "" {
		return c.String(name)
	}
	return fromConfig
}

func intOpt(c *cli.Context, name string, fromConfig *int) int {
	if c.IsSet(name) || fromConfig == nil {
		return c.Int(name)
	}
	return *fromConfig
}

func boolOpt(c *cli.Context, name string, get func(string) bool, fromConfig *bool) bool {
	if c.IsSet(name) || fromConfig == nil {
		return get(name)
	}
	return *fromConfig
}
