package geo

import "testing"

func square(minLon, minLat, maxLon, maxLat float64) Polygon {
	return Polygon{Vertices: []Point{
		{minLon, minLat},
		{maxLon, minLat},
		{maxLon, maxLat},
		{minLon, maxLat},
		{minLon, minLat},
	}}
}

func TestPolygonContains_Square(t *testing.T) {
	p := square(0, 0, 1, 1)

	inside := []Point{{0.5, 0.5}, {0.01, 0.01}, {0.99, 0.99}}
	for _, pt := range inside {
		if !p.Contains(pt) {
			t.Errorf("point %v should be inside", pt)
		}
	}

	outside := []Point{{1.5, 0.5}, {-0.1, 0.5}, {0.5, 2.0}, {0.5, -0.5}}
	for _, pt := range outside {
		if p.Contains(pt) {
			t.Errorf("point %v should be outside", pt)
		}
	}
}

func TestPolygonContains_Concave(t *testing.T) {
	// U-shape: the notch between the arms is outside
	p := Polygon{Vertices: []Point{
		{0, 0}, {4, 0}, {4, 3}, {3, 3}, {3, 1}, {1, 1}, {1, 3}, {0, 3}, {0, 0},
	}}

	if !p.Contains(Point{0.5, 2}) {
		t.Error("left arm interior should be inside")
	}
	if !p.Contains(Point{3.5, 2}) {
		t.Error("right arm interior should be inside")
	}
	if p.Contains(Point{2, 2}) {
		t.Error("notch should be outside")
	}
	if !p.Contains(Point{2, 0.5}) {
		t.Error("base should be inside")
	}
}

func TestPolygonContains_Degenerate(t *testing.T) {
	for _, p := range []Polygon{
		{},
		{Vertices: []Point{{0, 0}}},
		{Vertices: []Point{{0, 0}, {1, 1}}},
	} {
		if p.Contains(Point{0, 0}) {
			t.Errorf("degenerate polygon %v must never contain a point", p.Vertices)
		}
	}
}

func TestPolygonContains_Deterministic(t *testing.T) {
	p := square(0, 0, 1, 1)
	edge := Point{0, 0.5}
	first := p.Contains(edge)
	for range 10 {
		if p.Contains(edge) != first {
			t.Fatal("boundary result changed between calls")
		}
	}
}

func TestBBoxExpand(t *testing.T) {
	b := NewBBox()
	if b.Contains(Point{0, 0}) {
		t.Error("empty bbox must contain nothing")
	}

	b.Expand(Point{1, 2})
	if b.MinLon != 1 || b.MaxLon != 1 || b.MinLat != 2 || b.MaxLat != 2 {
		t.Fatalf("bbox after first expand: %+v", b)
	}

	b.Expand(Point{-1, 5})
	if b.MinLon > b.MaxLon || b.MinLat > b.MaxLat {
		t.Fatalf("bbox invariant violated: %+v", b)
	}
	if !b.Contains(Point{0, 3}) {
		t.Error("expanded bbox should contain interior point")
	}
}

func TestZoneContains_MultiPolygon(t *testing.T) {
	z := Zone{
		ID:       "z",
		Polygons: []Polygon{square(0, 0, 1, 1), square(5, 5, 6, 6)},
	}
	z.BBox = NewBBox()
	for _, poly := range z.Polygons {
		for _, p := range poly.Vertices {
			z.BBox.Expand(p)
		}
	}

	if !z.Contains(Point{0.5, 0.5}) || !z.Contains(Point{5.5, 5.5}) {
		t.Error("points in either polygon belong to the zone")
	}
	// inside the union bbox but in neither polygon
	if z.Contains(Point{3, 3}) {
		t.Error("gap between polygons is outside the zone")
	}
	if z.Contains(Point{10, 10}) {
		t.Error("point outside bbox is outside the zone")
	}
}
