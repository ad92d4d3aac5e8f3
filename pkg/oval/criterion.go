package oval

import (
	"log/slog"
	"strings"

	debversion "github.com/knqyf263/go-deb-version"
	"github.com/package-url/packageurl-go"
	"github.com/samber/lo"

	"github.com/aquasecurity/oval-updater/pkg/log"
)

// noVersion is the placeholder EVR carrying no version constraint.
const noVersion = "0:0"

// Criterion is one criterion of a definition, resolved as far as the
// document allows. A nil field was not found.
type Criterion struct {
	TestRef    string
	StateRef   *string
	ObjectRef  *string
	ObjectName *string
	Operation  *string
	Version    *string
}

// Complete reports whether every reference resolved to a concrete version
// constraint.
func (c Criterion) Complete() bool {
	return c.StateRef != nil && c.ObjectRef != nil && c.ObjectName != nil &&
		c.Operation != nil && c.Version != nil && *c.Version != noVersion
}

// EVRError returns the parse error of Version as a Debian version, if any.
func (c Criterion) EVRError() error {
	if c.Version == nil {
		return nil
	}
	if _, err := debversion.NewVersion(*c.Version); err != nil {
		return err
	}
	return nil
}

// PackageURL returns the purl of the resolved package for distro, e.g.
// pkg:deb/debian/openssl.
func (c Criterion) PackageURL(distro string) string {
	if c.ObjectName == nil || distro == "" {
		return ""
	}
	return packageurl.NewPackageURL(packageurl.TypeDebian, strings.ToLower(distro),
		*c.ObjectName, "", nil, "").ToString()
}

// Resolve follows testRef to its dpkginfo object and state. It never fails;
// references that do not resolve are left nil.
func (idx *Index) Resolve(testRef string) Criterion {
	c := Criterion{TestRef: testRef}

	test, ok := idx.tests[testRef]
	if !ok {
		return c
	}

	for _, child := range test.ChildElements() {
		switch child.Tag {
		case "object":
			c.ObjectRef = attr(child, "object_ref")
			c.ObjectName = idx.objectName(c.ObjectRef)
		case "state":
			c.StateRef = attr(child, "state_ref")
			state, ok := idx.state(c.StateRef)
			if !ok {
				continue
			}
			for _, s := range state.ChildElements() {
				if s.Tag != "evr" {
					continue
				}
				c.Operation = attr(s, "operation")
				c.Version = lo.ToPtr(textContent(s))
			}
		}
	}
	return c
}

func (c Criterion) completeAttrs(distro string) []slog.Attr {
	attrs := []slog.Attr{
		log.String("test_ref", c.TestRef),
		log.String("object_ref", *c.ObjectRef),
		log.String("object_name", *c.ObjectName),
		log.String("state_ref", *c.StateRef),
		log.String("operation", *c.Operation),
		log.String("version", *c.Version),
	}
	if purl := c.PackageURL(distro); purl != "" {
		attrs = append(attrs, log.String("purl", purl))
	}
	if err := c.EVRError(); err != nil {
		attrs = append(attrs, log.String("evr_error", err.Error()))
	}
	return attrs
}

// partialAttrs keeps the nesting of the references: a name only next to its
// object and a version only next to its state.
func (c Criterion) partialAttrs() []slog.Attr {
	attrs := []slog.Attr{log.String("test_ref", c.TestRef)}
	if c.ObjectRef != nil {
		attrs = append(attrs, log.String("object_ref", *c.ObjectRef))
		if c.ObjectName != nil {
			attrs = append(attrs, log.String("object_name", *c.ObjectName))
		}
	}
	if c.StateRef != nil {
		attrs = append(attrs, log.String("state_ref", *c.StateRef))
		if c.Version != nil {
			if c.Operation != nil {
				attrs = append(attrs, log.String("operation", *c.Operation))
			}
			attrs = append(attrs, log.String("version", *c.Version))
		}
	}
	return attrs
}
