// Package transform joins source chunks against a reference dataset.
package transform

import (
	"fmt"
	"strings"

	"github.com/johndauphine/table-transfer/internal/driver"
	"github.com/johndauphine/table-transfer/internal/errs"
	"github.com/johndauphine/table-transfer/internal/reference"
	"github.com/johndauphine/table-transfer/internal/source"
	"github.com/samber/lo"
)

// Mode selects which unmatched rows survive a join.
type Mode string

const (
	Inner Mode = "inner" // matched rows only
	Left  Mode = "left"  // every source row
	Right Mode = "right" // every reference row
	Outer Mode = "outer" // every row from both sides
)

// ParseMode validates a join mode name.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case Inner, Left, Right, Outer:
		return m, nil
	}
	return "", errs.Newf(errs.KindConfig, "join", s, "invalid join mode (want inner, left, right or outer)")
}

func (m Mode) keepsSource() bool    { return m == Left || m == Outer }
func (m Mode) keepsReference() bool { return m == Right || m == Outer }

// Spec describes a join between source rows and a reference dataset.
type Spec struct {
	SourceKey    string
	ReferenceKey string
	Mode         Mode
	// IncludeReference appends the non-key reference columns to the output.
	// Otherwise the output has exactly the source columns.
	IncludeReference bool
}

// RefSuffix is appended to a reference column whose name collides with a
// source column.
const RefSuffix = "_REF"

// plan is a Spec resolved against a manifest and a dataset.
type plan struct {
	spec     Spec
	ref      *reference.Dataset
	srcKey   int
	refKey   int
	refCols  []int
	manifest source.Manifest
	width    int
}

func newPlan(m source.Manifest, ref *reference.Dataset, spec Spec) (*plan, error) {
	if ref == nil {
		return nil, errs.Newf(errs.KindConfig, "join", "", "no reference dataset loaded")
	}
	mode, err := ParseMode(string(spec.Mode))
	if err != nil {
		return nil, err
	}
	spec.Mode = mode

	srcKey := m.Index(spec.SourceKey)
	if srcKey < 0 {
		return nil, errs.Newf(errs.KindJoinKey, "join", spec.SourceKey,
			"join key not found in source columns %v", m.Columns)
	}
	refKey, err := ref.RequireColumn(spec.ReferenceKey)
	if err != nil {
		return nil, err
	}

	p := &plan{spec: spec, ref: ref, srcKey: srcKey, refKey: refKey}
	cols := append([]string(nil), m.Columns...)
	if spec.IncludeReference {
		taken := lo.SliceToMap(cols, func(c string) (string, bool) { return strings.ToUpper(c), true })
		for i, c := range ref.Columns() {
			if i == refKey {
				continue
			}
			name := c
			if taken[strings.ToUpper(name)] {
				name = c + RefSuffix
			}
			for n := 2; taken[strings.ToUpper(name)]; n++ {
				name = fmt.Sprintf("%s%s%d", c, RefSuffix, n)
			}
			if err := driver.ValidateIdentifier(name); err != nil {
				return nil, err
			}
			taken[strings.ToUpper(name)] = true
			cols = append(cols, name)
			p.refCols = append(p.refCols, i)
		}
	}
	p.manifest = source.NewManifest(cols...)
	p.width = len(cols)
	return p, nil
}

// OutputManifest returns the columns a joined chunk carries: the source
// manifest, followed by the non-key reference columns when
// spec.IncludeReference is set.
func OutputManifest(m source.Manifest, ref *reference.Dataset, spec Spec) (source.Manifest, error) {
	p, err := newPlan(m, ref, spec)
	if err != nil {
		return source.Manifest{}, err
	}
	return p.manifest, nil
}

// Merge joins one chunk against the whole reference dataset. For right and
// outer joins the reference rows that no row of this chunk matched are
// appended, with NULL source columns except the key. Merge has no state:
// use a Joiner to join a stream of chunks.
func Merge(chunk source.Chunk, m source.Manifest, ref *reference.Dataset, spec Spec) (source.Chunk, error) {
	p, err := newPlan(m, ref, spec)
	if err != nil {
		return source.Chunk{}, err
	}

	var matched []bool
	if p.spec.Mode.keepsReference() {
		matched = make([]bool, ref.Len())
	}
	out := p.join(chunk, matched)
	if matched != nil {
		out.Rows = append(out.Rows, p.referenceOnly(matched)...)
	}
	return out, nil
}

// join merges the chunk's rows in source order and marks the reference rows
// that matched, if matched is non-nil.
func (p *plan) join(chunk source.Chunk, matched []bool) source.Chunk {
	rows := make([][]any, 0, len(chunk.Rows))
	for _, row := range chunk.Rows {
		var hits []int
		if key, ok := reference.Key(row[p.srcKey]); ok {
			hits = p.ref.Lookup(p.refKey, key)
		}

		if len(hits) == 0 {
			if p.spec.Mode.keepsSource() {
				rows = append(rows, p.merged(row, nil))
			}
			continue
		}
		for _, h := range hits {
			rows = append(rows, p.merged(row, p.ref.Row(h)))
			if matched != nil {
				matched[h] = true
			}
		}
	}
	return source.Chunk{Seq: chunk.Seq, Rows: rows}
}

func (p *plan) merged(src, ref []any) []any {
	out := make([]any, p.width)
	copy(out, src)
	if ref != nil {
		for i, c := range p.refCols {
			out[len(src)+i] = ref[c]
		}
	}
	return out
}

// referenceOnly builds output rows for every reference row not marked in
// matched, in file order.
func (p *plan) referenceOnly(matched []bool) [][]any {
	unmatched := lo.Filter(lo.Range(len(matched)), func(i, _ int) bool { return !matched[i] })
	srcWidth := p.width - len(p.refCols)

	rows := make([][]any, 0, len(unmatched))
	for _, i := range unmatched {
		ref := p.ref.Row(i)
		row := make([]any, p.width)
		row[p.srcKey] = ref[p.refKey]
		for j, c := range p.refCols {
			row[srcWidth+j] = ref[c]
		}
		rows = append(rows, row)
	}
	return rows
}
