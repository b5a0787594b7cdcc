package geo

// GridIndex partitions the padded extent of all zones into uniform cells.
// Each cell lists the indices of every zone whose bbox touches it, in load
// order, so overlap ties resolve to the earliest-loaded zone.
type GridIndex struct {
	zones []Zone

	minLon, maxLon float64
	minLat, maxLat float64

	gx, gy int
	cellW  float64
	cellH  float64

	cells [][]int // gy*gx, row-major
}

const (
	defaultCellsPerDegree = 10
	gridPadding           = 0.1
)

func NewGridIndex(zones []Zone, cellsPerDegree int) *GridIndex {
	if cellsPerDegree <= 0 {
		cellsPerDegree = defaultCellsPerDegree
	}
	g := &GridIndex{zones: zones}
	if len(zones) == 0 {
		return g
	}

	g.minLon, g.maxLon, g.minLat, g.maxLat = 180.0, -180.0, 90.0, -90.0
	for _, z := range zones {
		if z.BBox.MinLon < g.minLon {
			g.minLon = z.BBox.MinLon
		}
		if z.BBox.MaxLon > g.maxLon {
			g.maxLon = z.BBox.MaxLon
		}
		if z.BBox.MinLat < g.minLat {
			g.minLat = z.BBox.MinLat
		}
		if z.BBox.MaxLat > g.maxLat {
			g.maxLat = z.BBox.MaxLat
		}
	}
	g.minLon -= gridPadding
	g.maxLon += gridPadding
	g.minLat -= gridPadding
	g.maxLat += gridPadding

	g.gx = int((g.maxLon-g.minLon)*float64(cellsPerDegree)) + 1
	g.gy = int((g.maxLat-g.minLat)*float64(cellsPerDegree)) + 1
	g.cellW = (g.maxLon - g.minLon) / float64(g.gx)
	g.cellH = (g.maxLat - g.minLat) / float64(g.gy)

	g.cells = make([][]int, g.gx*g.gy)

	for i, z := range zones {
		minX := g.gridX(z.BBox.MinLon)
		maxX := g.gridX(z.BBox.MaxLon)
		minY := g.gridY(z.BBox.MinLat)
		maxY := g.gridY(z.BBox.MaxLat)
		for y := minY; y <= maxY; y++ {
			for x := minX; x <= maxX; x++ {
				c := y*g.gx + x
				g.cells[c] = append(g.cells[c], i)
			}
		}
	}
	return g
}

// Lookup returns the id of the first loaded zone containing the point, or ""
// when the point is outside the grid or inside no zone.
func (g *GridIndex) Lookup(lon, lat float64) string {
	if len(g.zones) == 0 {
		return ""
	}
	x := g.gridX(lon)
	y := g.gridY(lat)
	if x < 0 || x >= g.gx || y < 0 || y >= g.gy {
		return ""
	}
	p := Point{Lon: lon, Lat: lat}
	for _, idx := range g.cells[y*g.gx+x] {
		if g.zones[idx].Contains(p) {
			return g.zones[idx].ID
		}
	}
	return ""
}

// Zones exposes the indexed zones in load order.
func (g *GridIndex) Zones() []Zone { return g.zones }

func (g *GridIndex) gridX(lon float64) int {
	return int((lon - g.minLon) / g.cellW)
}

func (g *GridIndex) gridY(lat float64) int {
	return int((lat - g.minLat) / g.cellH)
}
