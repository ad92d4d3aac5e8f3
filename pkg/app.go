package pkg

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/urfave/cli"
	"golang.org/x/xerrors"
	"k8s.io/utils/clock"

	"github.com/aquasecurity/oval-updater/pkg/fetch"
	"github.com/aquasecurity/oval-updater/pkg/log"
	"github.com/aquasecurity/oval-updater/pkg/oval"
)

const envPrefix = "OVAL_UPDATER_"

type AppConfig struct {
	Fs    afero.Fs
	Clock clock.PassiveClock

	// Stdout receives help and the summary line, Stderr the log records.
	Stdout io.Writer
	Stderr io.Writer

	// Syslog opens the syslog sink. The local daemon is used when nil.
	Syslog log.SyslogFunc
}

func (ac AppConfig) NewApp(ctx context.Context, version string) *cli.App {
	app := cli.NewApp()
	app.Name = "oval-updater"
	app.Version = version
	app.Usage = "Extract vulnerability definitions from an OVAL document"
	app.Writer = ac.stdout()
	app.ErrWriter = ac.stderr()

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "os",
			Usage:  "operating system the OVAL document targets (required)",
			EnvVar: envPrefix + "OS",
		},
		cli.StringFlag{
			Name:   "uri",
			Usage:  "URI the OVAL document is published at (required)",
			EnvVar: envPrefix + "URI",
		},
		cli.StringFlag{
			Name:   "file",
			Usage:  "OVAL document to process (required)",
			EnvVar: envPrefix + "FILE",
		},
		cli.IntFlag{
			Name:   "debug, d",
			Usage:  "verbosity: 0 errors, 1 counts, 2 complete definitions, 3 everything",
			Value:  1,
			EnvVar: envPrefix + "DEBUG",
		},
		cli.BoolFlag{
			Name:   "quiet, q",
			Usage:  "do not log to stderr",
			EnvVar: envPrefix + "QUIET",
		},
		cli.BoolTFlag{
			Name:   "syslog",
			Usage:  "mirror log records to syslog",
			EnvVar: envPrefix + "SYSLOG",
		},
		cli.StringFlag{
			Name:   "config",
			Usage:  "YAML or TOML file with default option values",
			EnvVar: envPrefix + "CONFIG",
		},
		cli.BoolFlag{
			Name:   "fetch",
			Usage:  "download --uri into --file before processing",
			EnvVar: envPrefix + "FETCH",
		},
		cli.IntFlag{
			Name:   "max-depth",
			Usage:  "maximum nesting of criteria groups",
			Value:  oval.DefaultMaxDepth,
			EnvVar: envPrefix + "MAX_DEPTH",
		},
		cli.BoolFlag{
			Name:   "progress",
			Usage:  "show a progress bar over the definitions",
			EnvVar: envPrefix + "PROGRESS",
		},
		cli.BoolFlag{
			Name:   "summary",
			Usage:  "print a one-line result to stdout",
			EnvVar: envPrefix + "SUMMARY",
		},
	}

	app.Action = func(c *cli.Context) error {
		return ac.run(ctx, c)
	}

	return app
}

func (ac AppConfig) run(ctx context.Context, c *cli.Context) error {
	opts, err := loadOptions(c, ac.fs())
	if err != nil {
		return xerrors.Errorf("option error: %w", err)
	}
	if missing := opts.missing(); len(missing) > 0 {
		_ = cli.ShowAppHelp(c)
		return xerrors.Errorf("missing required option(s): %s", strings.Join(missing, ", "))
	}

	closer, err := ac.setupLogger(opts)
	if err != nil {
		return xerrors.Errorf("logger error: %w", err)
	}
	defer closer()

	if opts.fetch {
		if err = fetch.Download(ctx, opts.uri, opts.file); err != nil {
			return xerrors.Errorf("fetch error: %w", err)
		}
	}

	popts := []oval.Option{
		oval.WithFs(ac.fs()),
		oval.WithLogger(log.Default()),
		oval.WithMaxDepth(opts.maxDepth),
		oval.WithDistro(opts.os),
		oval.WithURI(opts.uri),
	}
	if ac.Clock != nil {
		popts = append(popts, oval.WithClock(ac.Clock))
	}
	if opts.progress && !opts.quiet {
		popts = append(popts, oval.WithProgress(ac.stderr()))
	}

	stats, err := oval.NewProcessor(popts...).Process(opts.file)
	if err != nil {
		return xerrors.Errorf("process error: %w", err)
	}

	if opts.summary {
		printSummary(ac.stdout(), opts.file, stats)
	}
	return nil
}

// setupLogger installs the package logger. A syslog daemon that cannot be
// reached only costs the syslog sink.
func (ac AppConfig) setupLogger(opts options) (func() error, error) {
	lopts := log.Options{
		Debug:     opts.debug,
		Quiet:     opts.quiet,
		Syslog:    opts.syslog,
		Ident:     "oval-updater",
		Writer:    ac.stderr(),
		NewSyslog: ac.Syslog,
	}
	closer, err := log.Setup(lopts)
	if err == nil || !opts.syslog {
		return closer, err
	}

	lopts.Syslog = false
	closer, serr := log.Setup(lopts)
	if serr != nil {
		return nil, serr
	}
	log.Warn("Syslog unavailable, logging to stderr only", log.Err(err))
	return closer, nil
}

func printSummary(w io.Writer, file string, stats oval.Stats) {
	c := color.New(color.FgGreen)
	if stats.Complete < stats.Definitions {
		c = color.New(color.FgYellow)
	}
	_, _ = c.Fprintf(w, "%s: %d of %d definitions are complete", file, stats.Complete, stats.Definitions)
	fmt.Fprintf(w, " (%d tests, %d objects, %d states, %s)\n",
		stats.Tests, stats.Objects, stats.States, stats.Elapsed)
}

func (ac AppConfig) fs() afero.Fs {
	if ac.Fs == nil {
		return afero.NewOsFs()
	}
	return ac.Fs
}

func (ac AppConfig) stdout() io.Writer {
	if ac.Stdout == nil {
		return os.Stdout
	}
	return ac.Stdout
}

func (ac AppConfig) stderr() io.Writer {
	if ac.Stderr == nil {
		return os.Stderr
	}
	return ac.Stderr
}
