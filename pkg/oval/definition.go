package oval

import (
	"context"
	"log/slog"

	"github.com/beevik/etree"
	"github.com/samber/lo"

	"github.com/aquasecurity/oval-updater/pkg/log"
)

const maxDescription = 150

// Definition is one vulnerability definition with its criteria flattened in
// document order.
type Definition struct {
	CVE         *string
	Title       *string
	Description *string
	Criteria    []Criterion

	// Truncated is set when part of the criteria tree was deeper than the
	// walker allows.
	Truncated bool
}

// ID returns the CVE reference, else the title.
func (d *Definition) ID() *string {
	if d.CVE != nil {
		return d.CVE
	}
	return d.Title
}

func (d *Definition) AddCriterion(c Criterion) {
	d.Criteria = append(d.Criteria, c)
}

// Complete reports whether at least one criterion is complete.
func (d *Definition) Complete() bool {
	return lo.SomeBy(d.Criteria, Criterion.Complete)
}

// setMetadata copies reference, title and description from a metadata
// element. A repeated element overwrites the earlier value.
func (d *Definition) setMetadata(md *etree.Element) {
	for _, c := range md.ChildElements() {
		switch c.Tag {
		case "reference":
			d.CVE = attr(c, "ref_id")
		case "title":
			d.Title = lo.ToPtr(textContent(c))
		case "description":
			d.Description = lo.ToPtr(textContent(c))
		}
	}
}

// Render logs the definition and its criteria. Complete definitions and
// criteria go to the debug level, everything partial to trace.
func (d *Definition) Render(logger *log.Logger, distro string) {
	ctx := context.Background()

	level := log.LevelTrace
	if d.Complete() {
		level = slog.LevelDebug
	}

	var attrs []slog.Attr
	if id := d.ID(); id != nil {
		attrs = append(attrs, log.String("id", *id))
	}
	if d.Description != nil {
		attrs = append(attrs, log.String("description", truncate(*d.Description)))
	}
	logger.LogAttrs(ctx, level, "Definition", attrs...)

	for _, c := range d.Criteria {
		if c.Complete() {
			logger.LogAttrs(ctx, slog.LevelDebug, "Criterion", c.completeAttrs(distro)...)
			continue
		}
		logger.LogAttrs(ctx, log.LevelTrace, "Partial criterion", c.partialAttrs()...)
	}
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= maxDescription {
		return s
	}
	return string(r[:maxDescription]) + "..."
}
