package oval

import (
	"strings"

	"github.com/beevik/etree"
	"github.com/samber/lo"
)

const (
	tagTest   = "dpkginfo_test"
	tagObject = "dpkginfo_object"
	tagState  = "dpkginfo_state"
)

// Index holds the dpkginfo tests, objects and states of one document keyed
// by their id attribute. It is read-only once built.
type Index struct {
	tests   map[string]*etree.Element
	objects map[string]string
	states  map[string]*etree.Element
}

func buildIndex(tests, objects, states *etree.Element) *Index {
	return &Index{
		tests:   indexSection(tests, tagTest, element),
		objects: indexSection(objects, tagObject, objectName),
		states:  indexSection(states, tagState, element),
	}
}

// Len returns the number of indexed tests, objects and states.
func (idx *Index) Len() (tests, objects, states int) {
	return len(idx.tests), len(idx.objects), len(idx.states)
}

// indexSection maps the id of every child of section tagged tag to value(child).
// Children without an id, or for which value reports false, are skipped.
// A repeated id overwrites the earlier entry.
func indexSection[V any](section *etree.Element, tag string, value func(*etree.Element) (V, bool)) map[string]V {
	m := map[string]V{}
	for _, e := range section.ChildElements() {
		if e.Tag != tag {
			continue
		}
		id := e.SelectAttr("id")
		if id == nil {
			continue
		}
		v, ok := value(e)
		if !ok {
			continue
		}
		m[id.Value] = v
	}
	return m
}

func element(e *etree.Element) (*etree.Element, bool) {
	return e, true
}

// objectName returns the package name of a dpkginfo_object, i.e. the text of
// its last name child.
func objectName(obj *etree.Element) (string, bool) {
	var name *string
	for _, c := range obj.ChildElements() {
		if c.Tag == "name" {
			name = lo.ToPtr(textContent(c))
		}
	}
	if name == nil {
		return "", false
	}
	return *name, true
}

func (idx *Index) objectName(ref *string) *string {
	if ref == nil {
		return nil
	}
	name, ok := idx.objects[*ref]
	if !ok {
		return nil
	}
	return lo.ToPtr(name)
}

func (idx *Index) state(ref *string) (*etree.Element, bool) {
	if ref == nil {
		return nil, false
	}
	s, ok := idx.states[*ref]
	return s, ok
}

// textContent concatenates the character data of e and all its descendants.
func textContent(e *etree.Element) string {
	var sb strings.Builder
	var collect func(*etree.Element)
	collect = func(e *etree.Element) {
		for _, t := range e.Child {
			switch v := t.(type) {
			case *etree.CharData:
				sb.WriteString(v.Data)
			case *etree.Element:
				collect(v)
			}
		}
	}
	collect(e)
	return sb.String()
}

func attr(e *etree.Element, key string) *string {
	a := e.SelectAttr(key)
	if a == nil {
		return nil
	}
	return lo.ToPtr(a.Value)
}
