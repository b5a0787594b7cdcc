// Package eta wires the lookup pipeline together: spatial and temporal
// zoning, the aggregate hash index, the routing engine, the zone-pair rank
// table, and the final percentile interpolation.
package eta

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/urbanmobility/coarse-eta/internal/engine"
	"github.com/urbanmobility/coarse-eta/internal/etatable"
	"github.com/urbanmobility/coarse-eta/internal/geo"
	"github.com/urbanmobility/coarse-eta/internal/hashindex"
	"github.com/urbanmobility/coarse-eta/internal/observability"
	"github.com/urbanmobility/coarse-eta/internal/stats"
	"github.com/urbanmobility/coarse-eta/internal/timebucket"
)

var (
	ErrZoneNotFound       = errors.New("zone not found")
	ErrKeyNotFound        = errors.New("key not found")
	ErrRoutingUnavailable = errors.New("routing unavailable")
)

// Sentinel is what callers receive for any failed query; details are
// log-only.
const Sentinel = -1.0

// TimeZoningType selects which temporal fields the index keys carry.
type TimeZoningType int

const (
	DOWHod TimeZoningType = iota
	DaytypeHod
	DOWRange
	DaytypeRange
)

func TimeZoningFromInt(n int) (TimeZoningType, error) {
	if n < int(DOWHod) || n > int(DaytypeRange) {
		return 0, fmt.Errorf("time_zoning_type %d out of range 0-3", n)
	}
	return TimeZoningType(n), nil
}

// Query is one ETA request: start point, end point, departure timestamp.
type Query struct {
	StartLon  float64
	StartLat  float64
	EndLon    float64
	EndLat    float64
	Departure string
}

// Timing reports per-query wall times in milliseconds. CoarseETA is the
// pipeline's own overhead, total minus the routing engine call.
type Timing struct {
	RoutingEngine float64 `json:"routing_engine_ms"`
	Total         float64 `json:"total_ms"`
	CoarseETA     float64 `json:"coarse_eta_ms"`
}

type Config struct {
	HashIndexFile  string
	ZonesCSVFile   string
	SpatialETAPath string
	TimeZoning     TimeZoningType
	AggregateType  string
	EngineName     string // metrics label only
	RecordSize     int
	ETAOffset      int
	CellsPerDegree int
	TableCacheSize int
}

// Service owns the immutable startup state (zones, grid, hash index) and
// answers queries one at a time. Shared state is read-only after New, so
// concurrent callers are safe; table handles are per-call unless
// TableCacheSize enables the shared handle cache.
type Service struct {
	grid       *geo.GridIndex
	index      *hashindex.Index
	tables     *etatable.Reader
	client     engine.Client
	aggType    hashindex.AggregateType
	timeZoning TimeZoningType
	engineName string
	log        *slog.Logger
}

func New(cfg Config, client engine.Client, log *slog.Logger) (*Service, error) {
	aggType, err := hashindex.ParseAggregateType(cfg.AggregateType)
	if err != nil {
		return nil, err
	}

	zones, err := geo.LoadZones(cfg.ZonesCSVFile, log)
	if err != nil {
		return nil, err
	}

	index, err := hashindex.Load(cfg.HashIndexFile, log)
	if err != nil {
		return nil, err
	}

	tables, err := etatable.New(etatable.Config{
		Dir:        cfg.SpatialETAPath,
		RecordSize: cfg.RecordSize,
		ETAOffset:  cfg.ETAOffset,
		CacheSize:  cfg.TableCacheSize,
	})
	if err != nil {
		return nil, err
	}

	engineName := cfg.EngineName
	if engineName == "" {
		engineName = "engine"
	}

	observability.SetZonesLoaded(len(zones))
	observability.SetIndexEntries(index.Len())

	return &Service{
		grid:       geo.NewGridIndex(zones, cfg.CellsPerDegree),
		index:      index,
		tables:     tables,
		client:     client,
		aggType:    aggType,
		timeZoning: cfg.TimeZoning,
		engineName: engineName,
		log:        log,
	}, nil
}

// Close releases cached table handles.
func (s *Service) Close() {
	s.tables.Close()
}

// ETARequest answers one query. Every failure folds to the -1.0 sentinel at
// this boundary; Timing reports whatever phases completed either way.
func (s *Service) ETARequest(ctx context.Context, q Query) (float64, Timing) {
	var timing Timing
	start := time.Now()

	finalETA, err := s.answer(ctx, q, &timing)

	timing.Total = float64(time.Since(start)) / float64(time.Millisecond)
	timing.CoarseETA = timing.Total - timing.RoutingEngine

	outcome := "ok"
	if err != nil {
		outcome = outcomeLabel(err)
		s.log.Error("eta query failed", "err", err, "outcome", outcome,
			"start_lon", q.StartLon, "start_lat", q.StartLat,
			"end_lon", q.EndLon, "end_lat", q.EndLat, "departure", q.Departure)
		finalETA = Sentinel
	}
	observability.ObserveQuery(outcome, float64(time.Since(start))/float64(time.Second))

	return finalETA, timing
}

func (s *Service) answer(ctx context.Context, q Query, timing *Timing) (float64, error) {
	// spatial zoning
	zone1 := s.grid.Lookup(q.StartLon, q.StartLat)
	zone2 := s.grid.Lookup(q.EndLon, q.EndLat)
	if zone1 == "" || zone2 == "" {
		return 0, fmt.Errorf("%w: start=%q end=%q", ErrZoneNotFound, zone1, zone2)
	}

	// temporal zoning
	bucket, err := timebucket.Parse(q.Departure)
	if err != nil {
		return 0, err
	}

	key := s.key(zone1, zone2, bucket)
	values, ok := s.index.Lookup(key)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	ranks := s.aggType.Ranks()
	etas := values.Values(s.aggType)

	engineStart := time.Now()
	osETA, err := s.client.PointToPoint(ctx, geo.Point{Lon: q.StartLon, Lat: q.StartLat}, geo.Point{Lon: q.EndLon, Lat: q.EndLat})
	timing.RoutingEngine = float64(time.Since(engineStart)) / float64(time.Millisecond)
	observability.ObserveEngineLatency(s.engineName, float64(time.Since(engineStart))/float64(time.Second))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRoutingUnavailable, err)
	}

	searchStart := time.Now()
	sr, err := s.tables.Search(zone1, zone2, osETA)
	observability.ObserveTableSearch(float64(time.Since(searchStart)) / float64(time.Second))
	if err != nil {
		return 0, err
	}
	if sr.TotalRecords == 0 {
		return 0, fmt.Errorf("%w: empty table for pair %s_%s", etatable.ErrTableIO, zone1, zone2)
	}

	// rank of os_eta in the table, interpolated between bracketing records
	rank := float64(sr.RecordETA1)
	if sr.RecordETA2 != -1 {
		rank += (osETA - sr.ETA1) / (sr.ETA2 - sr.ETA1)
	}
	rankPercent := 0.0
	if sr.TotalRecords > 1 {
		rankPercent = rank / float64(sr.TotalRecords-1) * 100
	}

	// ground-truth value at that rank
	stat := stats.FindStat(ranks, etas, rankPercent)
	if stat.Rank1 < 0 {
		return 0, fmt.Errorf("rank %.4f below aggregate range for key %s", rankPercent, key)
	}
	finalETA := stat.ETA1
	if stat.Rank2 != -1 {
		finalETA = stat.ETA1 + (stat.ETA2-stat.ETA1)*((rankPercent-stat.Rank1)/(stat.Rank2-stat.Rank1))
	}
	return finalETA, nil
}

// key layouts, comma separated:
//
//	DOW_HOD       z1,z2,season,dow,adjusted_hour
//	DAYTYPE_HOD   z1,z2,season,daytype,adjusted_hour
//	DOW_RANGE     z1,z2,season,dow,start_hour,end_hour
//	DAYTYPE_RANGE z1,z2,season,daytype,start_hour,end_hour
func (s *Service) key(zone1, zone2 string, b timebucket.Bucket) string {
	parts := []string{zone1, zone2, strconv.Itoa(b.Season)}
	switch s.timeZoning {
	case DOWHod:
		parts = append(parts, strconv.Itoa(b.DayOfWeek), strconv.Itoa(b.AdjustedHour))
	case DaytypeHod:
		parts = append(parts, b.Daytype, strconv.Itoa(b.AdjustedHour))
	case DOWRange:
		parts = append(parts, strconv.Itoa(b.DayOfWeek), strconv.Itoa(b.StartHour), strconv.Itoa(b.EndHour))
	case DaytypeRange:
		parts = append(parts, b.Daytype, strconv.Itoa(b.StartHour), strconv.Itoa(b.EndHour))
	}
	return strings.Join(parts, ",")
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, ErrZoneNotFound):
		return "zone_not_found"
	case errors.Is(err, ErrKeyNotFound):
		return "key_not_found"
	case errors.Is(err, timebucket.ErrBadTimestamp):
		return "bad_timestamp"
	case errors.Is(err, ErrRoutingUnavailable):
		return "routing_unavailable"
	case errors.Is(err, etatable.ErrTableIO):
		return "table_io"
	default:
		return "internal"
	}
}
