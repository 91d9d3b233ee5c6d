package transform

import (
	"reflect"
	"testing"

	"github.com/johndauphine/table-transfer/internal/source"
)

func TestJoinerEmitsReferenceOnlyRowsOnce(t *testing.T) {
	m := source.NewManifest("K", "S")
	ref := refData(t, []string{"K"}, []any{"1"}, []any{"2"}, []any{"3"})

	j, err := NewJoiner(m, ref, Spec{SourceKey: "K", ReferenceKey: "K", Mode: Outer})
	if err != nil {
		t.Fatal(err)
	}

	c1 := j.Join(source.Chunk{Seq: 1, Rows: [][]any{{"1", "a"}, {"4", "d"}}})
	c2 := j.Join(source.Chunk{Seq: 2, Rows: [][]any{{"2", "b"}}})
	if len(c1.Rows) != 2 || len(c2.Rows) != 1 {
		t.Fatalf("chunk sizes = %d, %d; reference-only rows must be held back", len(c1.Rows), len(c2.Rows))
	}

	rest := j.Remainder(3)
	if rest.Seq != 3 || !reflect.DeepEqual(rest.Rows, [][]any{{"3", nil}}) {
		t.Errorf("Remainder() = %+v", rest)
	}
	if again := j.Remainder(4); len(again.Rows) != 0 {
		t.Errorf("second Remainder() = %v", again.Rows)
	}
}

func TestJoinerInnerAndLeftHaveNoRemainder(t *testing.T) {
	m := source.NewManifest("K")
	ref := refData(t, []string{"K"}, []any{"1"}, []any{"2"})

	for _, mode := range []Mode{Inner, Left} {
		j, err := NewJoiner(m, ref, Spec{SourceKey: "K", ReferenceKey: "K", Mode: mode})
		if err != nil {
			t.Fatal(err)
		}
		out := j.Join(source.Chunk{Seq: 1, Rows: [][]any{{"1"}, {"5"}}})
		want := 1
		if mode == Left {
			want = 2
		}
		if len(out.Rows) != want {
			t.Errorf("%s: %d rows, want %d", mode, len(out.Rows), want)
		}
		if rest := j.Remainder(2); len(rest.Rows) != 0 {
			t.Errorf("%s: Remainder() = %v", mode, rest.Rows)
		}
	}
}

func TestJoinerRightAcrossChunks(t *testing.T) {
	m := source.NewManifest("K")
	ref := refData(t, []string{"K", "V"}, []any{"1", "a"}, []any{"2", "b"})

	j, err := NewJoiner(m, ref, Spec{SourceKey: "K", ReferenceKey: "K", Mode: "RIGHT", IncludeReference: true})
	if err != nil {
		t.Fatal(err)
	}
	if j.Mode() != Right {
		t.Errorf("Mode() = %q", j.Mode())
	}
	if got := j.Manifest().Columns; !reflect.DeepEqual(got, []string{"K", "V"}) {
		t.Errorf("Manifest() = %v", got)
	}

	var all [][]any
	all = append(all, j.Join(source.Chunk{Seq: 1, Rows: [][]any{{"9"}}}).Rows...)
	all = append(all, j.Join(source.Chunk{Seq: 2, Rows: [][]any{{"2"}}}).Rows...)
	all = append(all, j.Remainder(3).Rows...)

	want := [][]any{{"2", "b"}, {"1", "a"}}
	if !reflect.DeepEqual(all, want) {
		t.Errorf("rows = %v, want %v", all, want)
	}
}
