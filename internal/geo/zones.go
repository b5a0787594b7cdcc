package geo

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
)

var ErrZoneFile = errors.New("zone file")

// maxZoneLine bounds a single CSV row; city-scale MULTIPOLYGON rows run to a
// few MB of WKT.
const maxZoneLine = 16 * 1024 * 1024

// LoadZones reads a CSV of `zone_id,geometry_wkt` rows (header line first,
// geometry optionally double-quoted) and returns the zones in file order.
// Rows that fail to parse are logged and skipped; only an unreadable file or
// one without a header line is an error.
func LoadZones(path string, log *slog.Logger) ([]Zone, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrZoneFile, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), maxZoneLine)

	// header
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("%w: read header: %v", ErrZoneFile, err)
		}
		return nil, fmt.Errorf("%w: %s is empty", ErrZoneFile, path)
	}

	var zones []Zone
	row := 0
	for sc.Scan() {
		row++
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		// The WKT field itself contains commas, so only the first comma
		// separates id from geometry.
		comma := strings.Index(line, ",")
		if comma < 0 {
			log.Warn("zone row has no geometry column", "row", row)
			continue
		}

		z := Zone{ID: line[:comma]}
		z.Polygons, err = parseWKT(trimQuotes(line[comma+1:]))
		if err != nil {
			log.Warn("skipping unparseable zone row", "row", row, "zone", z.ID, "err", err)
			continue
		}

		z.BBox = NewBBox()
		for _, poly := range z.Polygons {
			for _, p := range poly.Vertices {
				z.BBox.Expand(p)
			}
		}
		zones = append(zones, z)

		if row%100 == 0 {
			log.Debug("loading zones", "rows", row)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrZoneFile, path, err)
	}

	log.Info("loaded zones", "count", len(zones), "file", path)
	return zones, nil
}

// parseWKT accepts POLYGON and MULTIPOLYGON (case-insensitive), keeping only
// the outer ring of each polygon.
func parseWKT(s string) ([]Polygon, error) {
	s = strings.TrimSpace(s)
	paren := strings.IndexByte(s, '(')
	if paren < 0 {
		return nil, fmt.Errorf("no coordinate list in %q", clip(s))
	}
	head := strings.ToUpper(strings.TrimSpace(s[:paren]))
	switch head {
	case "POLYGON", "MULTIPOLYGON":
	default:
		return nil, fmt.Errorf("unsupported WKT type %q", clip(head))
	}

	geom, err := wkt.Unmarshal(head + " " + s[paren:])
	if err != nil {
		return nil, err
	}

	var polys []Polygon
	switch g := geom.(type) {
	case orb.Polygon:
		polys = appendOuterRing(polys, g)
	case orb.MultiPolygon:
		for _, p := range g {
			polys = appendOuterRing(polys, p)
		}
	default:
		return nil, fmt.Errorf("unsupported WKT geometry %T", geom)
	}
	if len(polys) == 0 {
		return nil, errors.New("no usable outer ring")
	}
	return polys, nil
}

func appendOuterRing(polys []Polygon, p orb.Polygon) []Polygon {
	if len(p) == 0 {
		return polys
	}
	ring := p[0] // holes discarded
	if len(ring) < 3 {
		return polys
	}
	poly := Polygon{Vertices: make([]Point, 0, len(ring)+1)}
	for _, pt := range ring {
		poly.Vertices = append(poly.Vertices, Point{Lon: pt[0], Lat: pt[1]})
	}
	if !pointsEqual(poly.Vertices[0], poly.Vertices[len(poly.Vertices)-1]) {
		poly.Vertices = append(poly.Vertices, poly.Vertices[0])
	}
	return append(polys, poly)
}

func trimQuotes(s string) string {
	start, end := 0, len(s)
	for start < end && (s[start] == '"' || s[start] == ' ' || s[start] == '\t' || s[start] == '\r') {
		start++
	}
	for end > start && (s[end-1] == '"' || s[end-1] == ' ' || s[end-1] == '\t' || s[end-1] == '\r') {
		end--
	}
	return s[start:end]
}

func clip(s string) string {
	if len(s) > 50 {
		return s[:50] + "..."
	}
	return s
}
