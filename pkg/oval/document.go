package oval

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/beevik/etree"
	rtvalidator "github.com/mattermost/xml-roundtrip-validator"
	"github.com/samber/lo"
	"github.com/samber/oops"
	"github.com/spf13/afero"
	"golang.org/x/xerrors"
	pb "gopkg.in/cheggaaa/pb.v1"
	"k8s.io/utils/clock"

	"github.com/aquasecurity/oval-updater/pkg/log"
)

// DefaultMaxDepth bounds the nesting of criteria groups.
const DefaultMaxDepth = 64

var (
	ErrParse              = xerrors.New("could not be parsed")
	ErrEmptyDocument      = xerrors.New("empty OVAL document")
	ErrNotOvalDefinitions = xerrors.New("no oval_definitions element found")
)

var requiredSections = []string{"definitions", "objects", "tests", "states"}

// MissingSectionsError lists the required top-level sections absent from a
// document.
type MissingSectionsError struct {
	Sections []string
}

func (e *MissingSectionsError) Error() string {
	return fmt.Sprintf("no %s element found", strings.Join(e.Sections, ", "))
}

// Stats are the run-wide counters of one document.
type Stats struct {
	Tests   int
	Objects int
	States  int

	// Definitions counts every vulnerability definition, Identified those
	// carrying a CVE reference or a title.
	Definitions int
	Identified  int
	Complete    int
	Truncated   int

	StartedAt time.Time
	Elapsed   time.Duration
}

type Processor struct {
	fs       afero.Fs
	logger   *log.Logger
	clock    clock.PassiveClock
	maxDepth int
	distro   string
	uri      string
	progress io.Writer
}

type Option func(*Processor)

func WithFs(fs afero.Fs) Option {
	return func(p *Processor) {
		p.fs = fs
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

func WithClock(clock clock.PassiveClock) Option {
	return func(p *Processor) {
		p.clock = clock
	}
}

// WithMaxDepth overrides DefaultMaxDepth. Values below one are ignored.
func WithMaxDepth(depth int) Option {
	return func(p *Processor) {
		if depth > 0 {
			p.maxDepth = depth
		}
	}
}

// WithDistro sets the operating system the document targets. It only
// decorates rendered output.
func WithDistro(distro string) Option {
	return func(p *Processor) {
		p.distro = distro
	}
}

func WithURI(uri string) Option {
	return func(p *Processor) {
		p.uri = uri
	}
}

// WithProgress draws a progress bar over the definitions to w.
func WithProgress(w io.Writer) Option {
	return func(p *Processor) {
		p.progress = w
	}
}

func NewProcessor(opts ...Option) Processor {
	p := Processor{
		fs:       afero.NewOsFs(),
		logger:   log.Default(),
		clock:    clock.RealClock{},
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// Process extracts and renders every vulnerability definition of the OVAL
// document at path. Only structural problems of the document are errors.
func (p Processor) Process(path string) (Stats, error) {
	stats := Stats{StartedAt: p.clock.Now()}
	eb := oops.In("oval").With("file_path", path)

	p.logger.Debug("Processing OVAL document", log.FilePath(path),
		log.String("os", p.distro), log.String("uri", p.uri))

	root, err := p.load(path)
	if err != nil {
		p.logger.Error("Failed to load OVAL document", log.FilePath(path), log.Err(err))
		return stats, eb.Wrapf(err, "load error")
	}

	sections, err := findSections(root)
	if err != nil {
		var mse *MissingSectionsError
		if errors.As(err, &mse) {
			for _, s := range mse.Sections {
				p.logger.Error("Missing OVAL section", log.String("section", s))
			}
		}
		return stats, eb.Wrapf(err, "invalid OVAL document")
	}

	idx := buildIndex(sections["tests"], sections["objects"], sections["states"])
	stats.Tests, stats.Objects, stats.States = idx.Len()
	p.logger.Info("Indexed tests", log.Int("count", stats.Tests))
	p.logger.Info("Indexed objects", log.Int("count", stats.Objects))
	p.logger.Info("Indexed states", log.Int("count", stats.States))

	defs := lo.Filter(sections["definitions"].ChildElements(), func(e *etree.Element, _ int) bool {
		return isVulnerability(e)
	})

	var bar *pb.ProgressBar
	if p.progress != nil {
		bar = pb.New(len(defs))
		bar.Output = p.progress
		bar.Start()
	}

	w := walker{index: idx, maxDepth: p.maxDepth, logger: p.logger}
	for _, e := range defs {
		def := w.definition(e)

		stats.Definitions++
		if def.ID() != nil {
			stats.Identified++
		}
		if def.Complete() {
			stats.Complete++
		}
		if def.Truncated {
			stats.Truncated++
		}
		def.Render(p.logger, p.distro)

		if bar != nil {
			bar.Increment()
		}
	}
	if bar != nil {
		bar.Finish()
	}

	stats.Elapsed = p.clock.Since(stats.StartedAt)
	p.logger.Info(fmt.Sprintf("%d of %d definitions are complete", stats.Complete, stats.Definitions),
		log.Int("identified", stats.Identified), log.Duration("elapsed", stats.Elapsed))

	return stats, nil
}

// load reads, validates and parses the document and returns its
// oval_definitions root.
func (p Processor) load(path string) (*etree.Element, error) {
	b, err := afero.ReadFile(p.fs, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, ErrEmptyDocument
	}

	// reject documents that would not survive an encoding/xml round trip
	if err = rtvalidator.Validate(bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	doc := etree.NewDocument()
	if err = doc.ReadFromBytes(b); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	root := doc.Root()
	switch {
	case root == nil:
		return nil, ErrEmptyDocument
	case root.Tag != "oval_definitions":
		return nil, ErrNotOvalDefinitions
	}
	return root, nil
}

// findSections returns the required top-level sections by tag. A repeated
// section overwrites the earlier one.
func findSections(root *etree.Element) (map[string]*etree.Element, error) {
	found := map[string]*etree.Element{}
	for _, e := range root.ChildElements() {
		if lo.Contains(requiredSections, e.Tag) {
			found[e.Tag] = e
		}
	}

	missing := lo.Filter(requiredSections, func(name string, _ int) bool {
		_, ok := found[name]
		return !ok
	})
	if len(missing) > 0 {
		return nil, &MissingSectionsError{Sections: missing}
	}
	return found, nil
}
