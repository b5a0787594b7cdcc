// Package etatable binary-searches the per-zone-pair sorted ETA tables.
//
// A table file `<dir>/<zone1>_<zone2>.bin` is a run of fixed-size records
// sorted non-decreasing by the little-endian f64 at a fixed offset. Files are
// produced offline; the reader never writes.
package etatable

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"
)

var ErrTableIO = errors.New("eta table io")

// SearchResult brackets a target value inside one table. Unset neighbors are
// -1. When RecordETA2 is set, ETA1 < target < ETA2 and the records are
// adjacent.
type SearchResult struct {
	RecordETA1   int64
	ETA1         float64
	RecordETA2   int64
	ETA2         float64
	TotalRecords int64
}

type Config struct {
	Dir        string
	RecordSize int // bytes per record, default 8
	ETAOffset  int // byte offset of the f64 within a record, default 0
	CacheSize  int // >0 keeps up to that many open read-only handles
}

// Reader opens a table per Search call, or holds a bounded LRU of open
// handles when CacheSize is set. All reads are positioned ReadAt calls, so a
// cached handle carries no seek state and behaves identically to a fresh one.
type Reader struct {
	dir        string
	recordSize int64
	etaOffset  int64
	cache      *lru.Cache[string, *os.File]
}

func New(cfg Config) (*Reader, error) {
	if cfg.RecordSize <= 0 {
		cfg.RecordSize = 8
	}
	if cfg.ETAOffset < 0 || cfg.ETAOffset+8 > cfg.RecordSize {
		return nil, fmt.Errorf("%w: eta offset %d does not fit record size %d",
			ErrTableIO, cfg.ETAOffset, cfg.RecordSize)
	}
	r := &Reader{
		dir:        cfg.Dir,
		recordSize: int64(cfg.RecordSize),
		etaOffset:  int64(cfg.ETAOffset),
	}
	if cfg.CacheSize > 0 {
		c, err := lru.NewWithEvict(cfg.CacheSize, func(_ string, f *os.File) {
			_ = f.Close()
		})
		if err != nil {
			return nil, err
		}
		r.cache = c
	}
	return r, nil
}

// Close releases any cached handles.
func (r *Reader) Close() {
	if r.cache != nil {
		r.cache.Purge()
	}
}

// Search locates target within the zone-pair's table. Exact hits set only the
// lower neighbor; targets outside the table's range snap to the nearest end,
// also as an exact hit. An empty table returns TotalRecords 0 with both
// neighbors unset.
func (r *Reader) Search(zone1, zone2 string, target float64) (SearchResult, error) {
	path := filepath.Join(r.dir, zone1+"_"+zone2+".bin")

	f, cached, err := r.open(path)
	if err != nil {
		return SearchResult{}, err
	}
	if !cached {
		defer f.Close()
	}

	st, err := f.Stat()
	if err != nil {
		return SearchResult{}, fmt.Errorf("%w: stat %s: %v", ErrTableIO, path, err)
	}
	total := st.Size() / r.recordSize

	result := SearchResult{
		RecordETA2:   -1,
		ETA2:         -1.0,
		TotalRecords: total,
	}
	if total == 0 {
		result.RecordETA1 = -1
		result.ETA1 = -1.0
		return result, nil
	}

	lo, hi := int64(0), total-1
	for lo <= hi {
		mid := lo + (hi-lo)/2
		midETA, err := r.readETA(f, path, mid)
		if err != nil {
			return SearchResult{}, err
		}
		switch {
		case midETA == target:
			result.RecordETA1 = mid
			result.ETA1 = midETA
			return result, nil
		case midETA < target:
			lo = mid + 1
		default:
			hi = mid - 1
		}
	}

	// lo is now the first record above target, hi = lo-1 the last below.
	switch {
	case lo >= total:
		// above the table's max: snap to max as an exact hit
		result.RecordETA1 = total - 1
		result.ETA1, err = r.readETA(f, path, total-1)
		return result, err
	case hi < 0:
		// below the table's min: snap to min as an exact hit
		result.RecordETA1 = 0
		result.ETA1, err = r.readETA(f, path, 0)
		return result, err
	}

	eta1, err := r.readETA(f, path, hi)
	if err != nil {
		return SearchResult{}, err
	}
	eta2, err := r.readETA(f, path, lo)
	if err != nil {
		return SearchResult{}, err
	}
	result.RecordETA1 = hi
	result.ETA1 = eta1
	result.RecordETA2 = lo
	result.ETA2 = eta2
	return result, nil
}

func (r *Reader) open(path string) (*os.File, bool, error) {
	if r.cache != nil {
		if f, ok := r.cache.Get(path); ok {
			return f, true, nil
		}
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrTableIO, err)
	}
	if r.cache != nil {
		r.cache.Add(path, f)
		return f, true, nil
	}
	return f, false, nil
}

func (r *Reader) readETA(f *os.File, path string, record int64) (float64, error) {
	var buf [8]byte
	if _, err := f.ReadAt(buf[:], record*r.recordSize+r.etaOffset); err != nil {
		return 0, fmt.Errorf("%w: read record %d of %s: %v", ErrTableIO, record, path, err)
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(buf[:])), nil
}
