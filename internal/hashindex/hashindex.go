// Package hashindex reads the binary hash index mapping zone-pair+time-bucket
// keys to precomputed ground-truth aggregate vectors.
//
// File layout, little-endian:
//
//	u64 num_entries
//	num_entries × { u32 key_len; key_len bytes UTF-8 key; 10 × f64 }
//
// The ten doubles are min_max[2], min_med_max[3], percentiles[5].
package hashindex

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
)

var (
	ErrFormat           = errors.New("hash index format")
	ErrBadAggregateType = errors.New("bad aggregate type")
)

// AggregateType selects which of the three stored rank vectors a deployment
// serves from.
type AggregateType int

const (
	MinMax AggregateType = iota
	MinMedMax
	Percentiles
)

var aggregateRanks = [...][]float64{
	MinMax:      {0, 100},
	MinMedMax:   {0, 50, 100},
	Percentiles: {0, 25, 50, 75, 100},
}

func ParseAggregateType(s string) (AggregateType, error) {
	switch s {
	case "min_max":
		return MinMax, nil
	case "min_med_max":
		return MinMedMax, nil
	case "percentiles":
		return Percentiles, nil
	}
	return 0, fmt.Errorf("%w: %q (want min_max, min_med_max or percentiles)", ErrBadAggregateType, s)
}

func (t AggregateType) String() string {
	switch t {
	case MinMax:
		return "min_max"
	case MinMedMax:
		return "min_med_max"
	case Percentiles:
		return "percentiles"
	}
	return fmt.Sprintf("AggregateType(%d)", int(t))
}

// Ranks returns the fixed percentile positions of the type's value vector.
func (t AggregateType) Ranks() []float64 {
	return aggregateRanks[t]
}

// AggregateValues carries all three vectors for one key; every entry in the
// file populates all of them.
type AggregateValues struct {
	MinMax      [2]float64
	MinMedMax   [3]float64
	Percentiles [5]float64
}

// Values returns the vector selected by t.
func (v AggregateValues) Values(t AggregateType) []float64 {
	switch t {
	case MinMedMax:
		return v.MinMedMax[:]
	case Percentiles:
		return v.Percentiles[:]
	default:
		return v.MinMax[:]
	}
}

// Entry pairs a key with its values, used by Write and by tooling that needs
// deterministic order.
type Entry struct {
	Key    string
	Values AggregateValues
}

// Index is the loaded mapping. Immutable after Load; safe for concurrent
// readers.
type Index struct {
	entries map[string]AggregateValues
}

// keys are short comma-joined tuples; anything near this size means a
// corrupt length prefix, not a real key.
const maxKeyLen = 1 << 20

// Load reads the whole index into memory. Duplicate keys overwrite, last
// wins. Any truncation or read failure is an ErrFormat.
func Load(path string, log *slog.Logger) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	defer f.Close()

	r := bufio.NewReaderSize(f, 1<<20)

	var numEntries uint64
	if err := binary.Read(r, binary.LittleEndian, &numEntries); err != nil {
		return nil, fmt.Errorf("%w: read entry count: %v", ErrFormat, err)
	}
	log.Info("loading hash index", "entries", numEntries, "file", path)

	ix := &Index{entries: make(map[string]AggregateValues, numEntries)}
	for i := uint64(0); i < numEntries; i++ {
		var keyLen uint32
		if err := binary.Read(r, binary.LittleEndian, &keyLen); err != nil {
			return nil, fmt.Errorf("%w: entry %d key length: %v", ErrFormat, i, err)
		}
		if keyLen > maxKeyLen {
			return nil, fmt.Errorf("%w: entry %d key length %d", ErrFormat, i, keyLen)
		}
		key := make([]byte, keyLen)
		if _, err := io.ReadFull(r, key); err != nil {
			return nil, fmt.Errorf("%w: entry %d key: %v", ErrFormat, i, err)
		}

		var vals [10]float64
		if err := binary.Read(r, binary.LittleEndian, &vals); err != nil {
			return nil, fmt.Errorf("%w: entry %d values: %v", ErrFormat, i, err)
		}

		var av AggregateValues
		copy(av.MinMax[:], vals[0:2])
		copy(av.MinMedMax[:], vals[2:5])
		copy(av.Percentiles[:], vals[5:10])
		ix.entries[string(key)] = av
	}

	log.Info("hash index loaded", "entries", len(ix.entries))
	return ix, nil
}

func (ix *Index) Lookup(key string) (AggregateValues, bool) {
	v, ok := ix.entries[key]
	return v, ok
}

func (ix *Index) Len() int { return len(ix.entries) }

// Write emits entries in the Load format. The offline job owns index
// production; this writer exists for tests and fixture tooling.
func Write(w io.Writer, entries []Entry) error {
	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, uint64(len(entries))); err != nil {
		return err
	}
	for _, e := range entries {
		if err := binary.Write(bw, binary.LittleEndian, uint32(len(e.Key))); err != nil {
			return err
		}
		if _, err := bw.WriteString(e.Key); err != nil {
			return err
		}
		var vals [10]float64
		copy(vals[0:2], e.Values.MinMax[:])
		copy(vals[2:5], e.Values.MinMedMax[:])
		copy(vals[5:10], e.Values.Percentiles[:])
		if err := binary.Write(bw, binary.LittleEndian, vals); err != nil {
			return err
		}
	}
	return bw.Flush()
}
