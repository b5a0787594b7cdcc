// Package geo holds the spatial primitives and the zone lookup index: points,
// bounding boxes, ray-cast polygon containment, the WKT zone loader, and a
// uniform grid over the loaded zones.
package geo

import "math"

type Point struct {
	Lon, Lat float64
}

// BBox is an axis-aligned bounding box in lon/lat degrees. The zero value of
// NewBBox is an empty sentinel that any Expand collapses onto the first point.
type BBox struct {
	MinLon, MaxLon float64
	MinLat, MaxLat float64
}

func NewBBox() BBox {
	return BBox{MinLon: 180.0, MaxLon: -180.0, MinLat: 90.0, MaxLat: -90.0}
}

func (b *BBox) Expand(p Point) {
	if p.Lon < b.MinLon {
		b.MinLon = p.Lon
	}
	if p.Lon > b.MaxLon {
		b.MaxLon = p.Lon
	}
	if p.Lat < b.MinLat {
		b.MinLat = p.Lat
	}
	if p.Lat > b.MaxLat {
		b.MaxLat = p.Lat
	}
}

func (b BBox) Contains(p Point) bool {
	return p.Lon >= b.MinLon && p.Lon <= b.MaxLon &&
		p.Lat >= b.MinLat && p.Lat <= b.MaxLat
}

func (b BBox) Intersects(o BBox) bool {
	return !(b.MaxLon < o.MinLon || b.MinLon > o.MaxLon ||
		b.MaxLat < o.MinLat || b.MinLat > o.MaxLat)
}

// Polygon is a closed outer ring; the loader duplicates the first vertex at
// the end when the source ring is open.
type Polygon struct {
	Vertices []Point
}

// Contains reports whether p is inside the ring using the horizontal ray
// cast: a crossing is counted iff the edge straddles p.Lat and the edge's
// intersection with the ray lies right of p.Lon. Points exactly on an edge
// land on a deterministic but unspecified side.
func (pg Polygon) Contains(p Point) bool {
	n := len(pg.Vertices)
	if n < 3 {
		return false
	}
	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		vi, vj := pg.Vertices[i], pg.Vertices[j]
		if (vi.Lat > p.Lat) != (vj.Lat > p.Lat) &&
			p.Lon < (vj.Lon-vi.Lon)*(p.Lat-vi.Lat)/(vj.Lat-vi.Lat)+vi.Lon {
			inside = !inside
		}
	}
	return inside
}

// Zone is a labeled region made of one or more polygons (MULTIPOLYGON rows
// yield several). BBox is the union of all polygon bboxes.
type Zone struct {
	ID       string
	Polygons []Polygon
	BBox     BBox
}

func (z Zone) Contains(p Point) bool {
	if !z.BBox.Contains(p) {
		return false
	}
	for _, poly := range z.Polygons {
		if poly.Contains(p) {
			return true
		}
	}
	return false
}

const ringEpsilon = 1e-9

func pointsEqual(a, b Point) bool {
	return math.Abs(a.Lon-b.Lon) < ringEpsilon && math.Abs(a.Lat-b.Lat) < ringEpsilon
}
