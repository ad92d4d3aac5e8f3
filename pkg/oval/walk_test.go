package oval

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aquasecurity/oval-updater/pkg/log"
)

func testLogger(buf *bytes.Buffer) *log.Logger {
	return slog.New(log.NewTextHandler(buf, log.LevelTrace))
}

func testIndex(t *testing.T) *Index {
	return buildIndex(parseElement(t, resolveTests), parseElement(t, resolveObjects), parseElement(t, resolveStates))
}

func testRefs(d *Definition) []string {
	return lo.Map(d.Criteria, func(c Criterion, _ int) string {
		return c.TestRef
	})
}

func TestWalker_Flattening(t *testing.T) {
	nested := `<definition class="vulnerability">
  <criteria operator="OR">
    <criterion test_ref="tst1"/>
    <criteria operator="AND">
      <criterion test_ref="tst2"/>
      <criteria operator="OR">
        <criteria operator="AND">
          <criterion test_ref="tst3"/>
        </criteria>
        <criterion test_ref="tst4"/>
      </criteria>
      <criterion test_ref="missing_id"/>
    </criteria>
    <extend_definition definition_ref="oval:def:2"/>
    <criterion test_ref="tst6"/>
  </criteria>
</definition>`
	flat := `<definition class="vulnerability">
  <criteria>
    <criterion test_ref="tst1"/>
    <criterion test_ref="tst2"/>
    <criterion test_ref="tst3"/>
    <criterion test_ref="tst4"/>
    <criterion test_ref="missing_id"/>
    <criterion test_ref="tst6"/>
  </criteria>
</definition>`

	var buf bytes.Buffer
	w := walker{index: testIndex(t), maxDepth: DefaultMaxDepth, logger: testLogger(&buf)}

	got := w.definition(parseElement(t, nested))
	want := w.definition(parseElement(t, flat))

	assert.Equal(t, want.Criteria, got.Criteria)
	assert.Equal(t, []string{"tst1", "tst2", "tst3", "tst4", "missing_id", "tst6"}, testRefs(got))
	assert.False(t, got.Truncated)
	assert.Empty(t, buf.String())
}

func TestWalker_MaxDepth(t *testing.T) {
	def := `<definition class="vulnerability">
  <metadata><reference ref_id="CVE-2022-0003"/></metadata>
  <criteria>
    <criterion test_ref="tst1"/>
    <criteria>
      <criterion test_ref="tst2"/>
      <criteria>
        <criterion test_ref="tst3"/>
      </criteria>
      <criterion test_ref="tst4"/>
    </criteria>
    <criterion test_ref="tst6"/>
  </criteria>
</definition>`

	tests := []struct {
		name          string
		maxDepth      int
		wantRefs      []string
		wantTruncated bool
	}{
		{
			name:     "within limit",
			maxDepth: 3,
			wantRefs: []string{"tst1", "tst2", "tst3", "tst4", "tst6"},
		},
		{
			name:          "innermost group skipped",
			maxDepth:      2,
			wantRefs:      []string{"tst1", "tst2", "tst4", "tst6"},
			wantTruncated: true,
		},
		{
			name:          "only top level",
			maxDepth:      1,
			wantRefs:      []string{"tst1", "tst6"},
			wantTruncated: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			w := walker{index: testIndex(t), maxDepth: tt.maxDepth, logger: testLogger(&buf)}

			got := w.definition(parseElement(t, def))
			assert.Equal(t, tt.wantRefs, testRefs(got))
			assert.Equal(t, tt.wantTruncated, got.Truncated)

			if tt.wantTruncated {
				assert.Contains(t, buf.String(), "Criteria nested too deep")
				assert.Contains(t, buf.String(), "definition=CVE-2022-0003")
			}
		})
	}
}

func TestWalker_DeepNesting(t *testing.T) {
	const levels = 10000
	s := `<definition class="vulnerability">` +
		strings.Repeat("<criteria>", levels) + `<criterion test_ref="tst1"/>` + strings.Repeat("</criteria>", levels) +
		`</definition>`

	var buf bytes.Buffer
	w := walker{index: testIndex(t), maxDepth: DefaultMaxDepth, logger: testLogger(&buf)}

	got := w.definition(parseElement(t, s))
	assert.Empty(t, got.Criteria)
	assert.True(t, got.Truncated)
	assert.Equal(t, 1, strings.Count(buf.String(), "Criteria nested too deep"))
}

func TestWalker_CriterionWithoutTestRef(t *testing.T) {
	idx := buildIndex(parseElement(t, `<tests>
  <dpkginfo_test id=""><object object_ref="obj1"/><state state_ref="ste1"/></dpkginfo_test>
</tests>`), parseElement(t, resolveObjects), parseElement(t, resolveStates))
	require.True(t, idx.Resolve("").Complete())

	tests := []struct {
		name         string
		def          string
		wantComplete bool
	}{
		{
			name:         "missing test_ref",
			def:          `<definition class="vulnerability"><criteria><criterion comment="no test"/></criteria></definition>`,
			wantComplete: false,
		},
		{
			name:         "empty test_ref",
			def:          `<definition class="vulnerability"><criteria><criterion test_ref=""/></criteria></definition>`,
			wantComplete: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := walker{index: idx, maxDepth: DefaultMaxDepth, logger: testLogger(&bytes.Buffer{})}

			got := w.definition(parseElement(t, tt.def))
			require.Len(t, got.Criteria, 1)
			assert.Equal(t, tt.wantComplete, got.Criteria[0].Complete())
			assert.Equal(t, tt.wantComplete, got.Complete())
		})
	}
}

func TestWalker_Metadata(t *testing.T) {
	tests := []struct {
		name            string
		def             string
		wantCVE         *string
		wantTitle       *string
		wantDescription *string
		wantID          *string
	}{
		{
			name: "cve reference",
			def: `<definition class="vulnerability"><metadata>
  <title>CVE-2020-0001 openssl</title>
  <reference source="CVE" ref_id="CVE-2020-0001"/>
  <description>flaw</description>
</metadata></definition>`,
			wantCVE:         lo.ToPtr("CVE-2020-0001"),
			wantTitle:       lo.ToPtr("CVE-2020-0001 openssl"),
			wantDescription: lo.ToPtr("flaw"),
			wantID:          lo.ToPtr("CVE-2020-0001"),
		},
		{
			name:      "title only",
			def:       `<definition class="vulnerability"><metadata><title>DSA-5000-1</title></metadata></definition>`,
			wantTitle: lo.ToPtr("DSA-5000-1"),
			wantID:    lo.ToPtr("DSA-5000-1"),
		},
		{
			name: "no metadata",
			def:  `<definition class="vulnerability"><criteria/></definition>`,
		},
		{
			name: "last reference wins",
			def: `<definition class="vulnerability"><metadata>
  <reference ref_id="CVE-2020-0001"/>
  <reference ref_id="CVE-2020-0002"/>
  <title>first</title>
  <title>second</title>
  <description>one</description>
  <description>two</description>
</metadata></definition>`,
			wantCVE:         lo.ToPtr("CVE-2020-0002"),
			wantTitle:       lo.ToPtr("second"),
			wantDescription: lo.ToPtr("two"),
			wantID:          lo.ToPtr("CVE-2020-0002"),
		},
		{
			name: "last reference without ref_id clears the cve",
			def: `<definition class="vulnerability"><metadata>
  <title>DSA-5000-1</title>
  <reference ref_id="CVE-2020-0001"/>
  <reference source="DSA" ref_url="https://www.debian.org/security/2021/dsa-5000"/>
</metadata></definition>`,
			wantTitle: lo.ToPtr("DSA-5000-1"),
			wantID:    lo.ToPtr("DSA-5000-1"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := walker{index: testIndex(t), maxDepth: DefaultMaxDepth, logger: testLogger(&bytes.Buffer{})}

			got := w.definition(parseElement(t, tt.def))
			require.NotNil(t, got)
			assert.Equal(t, tt.wantCVE, got.CVE)
			assert.Equal(t, tt.wantTitle, got.Title)
			assert.Equal(t, tt.wantDescription, got.Description)
			assert.Equal(t, tt.wantID, got.ID())
		})
	}
}

func TestIsVulnerability(t *testing.T) {
	tests := []struct {
		name string
		elem string
		want bool
	}{
		{name: "vulnerability", elem: `<definition class="vulnerability"/>`, want: true},
		{name: "inventory", elem: `<definition class="inventory"/>`},
		{name: "patch", elem: `<definition class="patch"/>`},
		{name: "no class", elem: `<definition/>`},
		{name: "other element", elem: `<criteria class="vulnerability"/>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isVulnerability(parseElement(t, tt.elem)))
		})
	}
}
