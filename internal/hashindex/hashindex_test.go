package hashindex

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func writeIndexFile(t *testing.T, entries []Entry) string {
	t.Helper()
	var buf bytes.Buffer
	if err := Write(&buf, entries); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "index.bin")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func sampleValues(base float64) AggregateValues {
	return AggregateValues{
		MinMax:      [2]float64{base, base + 100},
		MinMedMax:   [3]float64{base, base + 50, base + 100},
		Percentiles: [5]float64{base, base + 25, base + 50, base + 75, base + 100},
	}
}

func TestRoundTrip(t *testing.T) {
	entries := []Entry{
		{Key: "A,B,1,0,8", Values: sampleValues(60)},
		{Key: "A,B,1,weekday,8", Values: sampleValues(120)},
		{Key: "C,D,4,6,23", Values: sampleValues(300)},
	}
	ix, err := Load(writeIndexFile(t, entries), discard())
	if err != nil {
		t.Fatal(err)
	}
	if ix.Len() != len(entries) {
		t.Fatalf("loaded %d entries, want %d", ix.Len(), len(entries))
	}
	for _, e := range entries {
		got, ok := ix.Lookup(e.Key)
		if !ok {
			t.Fatalf("key %q missing after round trip", e.Key)
		}
		if got != e.Values {
			t.Errorf("key %q: got %+v, want %+v", e.Key, got, e.Values)
		}
	}
}

func TestLoad_DuplicateKeyLastWins(t *testing.T) {
	entries := []Entry{
		{Key: "A,B,1,0,8", Values: sampleValues(1)},
		{Key: "A,B,1,0,8", Values: sampleValues(2)},
	}
	ix, err := Load(writeIndexFile(t, entries), discard())
	if err != nil {
		t.Fatal(err)
	}
	if ix.Len() != 1 {
		t.Fatalf("len = %d, want 1", ix.Len())
	}
	got, _ := ix.Lookup("A,B,1,0,8")
	if got != sampleValues(2) {
		t.Errorf("duplicate key kept first value: %+v", got)
	}
}

func TestLoad_Empty(t *testing.T) {
	ix, err := Load(writeIndexFile(t, nil), discard())
	if err != nil {
		t.Fatal(err)
	}
	if ix.Len() != 0 {
		t.Fatalf("len = %d, want 0", ix.Len())
	}
	if _, ok := ix.Lookup("anything"); ok {
		t.Error("lookup on empty index succeeded")
	}
}

func TestLoad_Truncated(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, []Entry{{Key: "A,B,1,0,8", Values: sampleValues(1)}}); err != nil {
		t.Fatal(err)
	}
	full := buf.Bytes()

	for _, cut := range []int{len(full) - 1, len(full) - 40, 10, 4} {
		path := filepath.Join(t.TempDir(), "trunc.bin")
		if err := os.WriteFile(path, full[:cut], 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(path, discard()); !errors.Is(err, ErrFormat) {
			t.Errorf("cut at %d: err = %v, want ErrFormat", cut, err)
		}
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.bin"), discard()); !errors.Is(err, ErrFormat) {
		t.Fatalf("err = %v, want ErrFormat", err)
	}
}

func TestParseAggregateType(t *testing.T) {
	for s, want := range map[string]AggregateType{
		"min_max":     MinMax,
		"min_med_max": MinMedMax,
		"percentiles": Percentiles,
	} {
		got, err := ParseAggregateType(s)
		if err != nil || got != want {
			t.Errorf("ParseAggregateType(%q) = %v, %v", s, got, err)
		}
	}
	if _, err := ParseAggregateType("median"); !errors.Is(err, ErrBadAggregateType) {
		t.Errorf("unknown type err = %v, want ErrBadAggregateType", err)
	}
}

func TestRanksAndValues(t *testing.T) {
	v := sampleValues(10)
	cases := []struct {
		typ   AggregateType
		ranks []float64
		vals  []float64
	}{
		{MinMax, []float64{0, 100}, []float64{10, 110}},
		{MinMedMax, []float64{0, 50, 100}, []float64{10, 60, 110}},
		{Percentiles, []float64{0, 25, 50, 75, 100}, []float64{10, 35, 60, 85, 110}},
	}
	for _, c := range cases {
		ranks := c.typ.Ranks()
		vals := v.Values(c.typ)
		if len(ranks) != len(vals) {
			t.Fatalf("%v: rank/value length mismatch", c.typ)
		}
		for i := range ranks {
			if ranks[i] != c.ranks[i] || vals[i] != c.vals[i] {
				t.Errorf("%v: got (%v, %v), want (%v, %v)", c.typ, ranks, vals, c.ranks, c.vals)
				break
			}
		}
	}
}
