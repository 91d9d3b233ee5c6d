package transform

import (
	"github.com/johndauphine/table-transfer/internal/reference"
	"github.com/johndauphine/table-transfer/internal/source"
)

// Joiner joins the chunks of one job. Unlike Merge it emits the
// reference-only rows of right and outer joins once, after the last chunk,
// so a reference row is never written twice however many chunks there are.
type Joiner struct {
	p       *plan
	matched []bool
	flushed bool
}

// NewJoiner resolves spec against the source manifest and the dataset.
// A key missing on either side is a JoinKeyError.
func NewJoiner(m source.Manifest, ref *reference.Dataset, spec Spec) (*Joiner, error) {
	p, err := newPlan(m, ref, spec)
	if err != nil {
		return nil, err
	}
	j := &Joiner{p: p}
	if p.spec.Mode.keepsReference() {
		j.matched = make([]bool, ref.Len())
	}
	return j, nil
}

// Manifest returns the output manifest.
func (j *Joiner) Manifest() source.Manifest {
	return j.p.manifest
}

// Mode returns the resolved join mode.
func (j *Joiner) Mode() Mode {
	return j.p.spec.Mode
}

// Join merges one chunk. Reference-only rows are held back for Remainder.
func (j *Joiner) Join(chunk source.Chunk) source.Chunk {
	return j.p.join(chunk, j.matched)
}

// Remainder returns the reference rows no chunk matched, for right and
// outer joins. It returns an empty chunk for other modes and on every call
// after the first.
func (j *Joiner) Remainder(seq int) source.Chunk {
	if j.flushed || j.matched == nil {
		return source.Chunk{Seq: seq}
	}
	j.flushed = true
	return source.Chunk{Seq: seq, Rows: j.p.referenceOnly(j.matched)}
}
