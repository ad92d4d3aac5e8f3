package oval

import (
	"github.com/beevik/etree"
	"github.com/samber/lo"

	"github.com/aquasecurity/oval-updater/pkg/log"
)

type walker struct {
	index    *Index
	maxDepth int
	logger   *log.Logger
}

// definition builds the record of one vulnerability definition element.
func (w walker) definition(e *etree.Element) *Definition {
	def := &Definition{}
	for _, c := range e.ChildElements() {
		switch c.Tag {
		case "metadata":
			def.setMetadata(c)
		case "criteria":
			w.walk(def, c, 1)
		}
	}
	return def
}

// walk appends every criterion below node to def. Nested criteria groups are
// flattened in place; their operators are not evaluated.
func (w walker) walk(def *Definition, node *etree.Element, depth int) {
	for _, c := range node.ChildElements() {
		switch c.Tag {
		case "criterion":
			ref := attr(c, "test_ref")
			if ref == nil {
				// nothing to follow, kept as an unresolved leaf
				def.AddCriterion(Criterion{})
				continue
			}
			def.AddCriterion(w.index.Resolve(*ref))
		case "criteria":
			if depth >= w.maxDepth {
				def.Truncated = true
				w.logger.Warn("Criteria nested too deep, skipping group",
					log.String("definition", lo.FromPtr(def.ID())),
					log.Int("max_depth", w.maxDepth))
				continue
			}
			w.walk(def, c, depth+1)
		}
	}
}

func isVulnerability(e *etree.Element) bool {
	return e.Tag == "definition" && e.SelectAttrValue("class", "") == "vulnerability"
}
