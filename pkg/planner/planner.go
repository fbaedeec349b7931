// Package planner computes routes through indoor navigable space. It is
// stateless: every call plans over the obstacle set supplied with the
// environment update.
package planner

import (
	"container/heap"
	"math"

	"github.com/txn2/arnav-platform/pkg/nav"
)

const (
	// DefaultCellSize is the grid discretization step in meters.
	DefaultCellSize = 1.0

	// DefaultMaxExpansions bounds the A* search. An exhausted budget
	// yields an unreachable result, never an error.
	DefaultMaxExpansions = 20000

	// DefaultBoundsMargin pads the search area around the start, goal,
	// and obstacle bounding box, in meters.
	DefaultBoundsMargin = 5.0
)

// Config tunes the planner grid and search budget.
type Config struct {
	CellSize      float64
	MaxExpansions int
	BoundsMargin  float64

	// MaxWaypoints caps the returned waypoint count (0 = no cap).
	// Power-saving mode uses this to trade fidelity for compute.
	MaxWaypoints int
}

// Planner is a stateless A* route planner over a uniform grid.
type Planner struct {
	cfg Config
}

// New creates a planner, applying defaults for zero-valued config fields.
func New(cfg Config) *Planner {
	if cfg.CellSize <= 0 {
		cfg.CellSize = DefaultCellSize
	}
	if cfg.MaxExpansions <= 0 {
		cfg.MaxExpansions = DefaultMaxExpansions
	}
	if cfg.BoundsMargin <= 0 {
		cfg.BoundsMargin = DefaultBoundsMargin
	}
	return &Planner{cfg: cfg}
}

// Result is a planned route. Unreachable routes still carry the points
// explored so far (at minimum the start) so callers can render progress.
type Result struct {
	Points      []nav.PathPoint
	Unreachable bool
}

// FindPath computes a route from start to end avoiding the obstacles in env.
//
// When no obstacle lies on the straight segment the result is exactly
// [start, end]; this is the documented no-obstacle fast path, not an
// approximation. Otherwise the planner runs A* (cost and heuristic both
// Euclidean, deterministic tie-break on heuristic then insertion order) over
// a uniform grid and returns a detour, or an unreachable result when the
// search budget or frontier is exhausted.
func (p *Planner) FindPath(start, end nav.PathPoint, env nav.EnvironmentChanges) Result {
	if !segmentBlocked(start, end, env.NewObstacles, p.cfg.CellSize) {
		return Result{Points: []nav.PathPoint{start, end}}
	}

	g := newGrid(start, end, env.NewObstacles, p.cfg)
	points, ok := g.search(p.cfg.MaxExpansions)
	if !ok {
		return Result{Points: []nav.PathPoint{start}, Unreachable: true}
	}

	points = elideCollinear(points)
	if p.cfg.MaxWaypoints > 1 && len(points) > p.cfg.MaxWaypoints {
		points = downsample(points, p.cfg.MaxWaypoints)
	}
	return Result{Points: points}
}

// segmentBlocked samples the straight segment at half-cell resolution and
// reports whether any sample falls inside an obstacle region.
func segmentBlocked(a, b nav.PathPoint, obstacles []nav.ObstacleRegion, cellSize float64) bool {
	if len(obstacles) == 0 {
		return false
	}
	length := a.DistanceTo(b)
	step := cellSize / 2
	steps := int(math.Ceil(length/step)) + 1
	if steps < 2 {
		steps = 2
	}
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		sample := nav.PathPoint{
			X: a.X + (b.X-a.X)*t,
			Y: a.Y + (b.Y-a.Y)*t,
			Z: a.Z + (b.Z-a.Z)*t,
		}
		for _, r := range obstacles {
			if r.Contains(sample) {
				return true
			}
		}
	}
	return false
}

// grid is the planar discretization the search runs on. Planning happens on
// the XY plane at the start's height; an obstacle blocks a cell when its XY
// footprint covers the cell center and its Z extent spans the plane.
type grid struct {
	cfg        Config
	minX, minY float64
	cols, rows int
	planeZ     float64
	start, end nav.PathPoint
	startCell  cell
	endCell    cell
	obstacles  []nav.ObstacleRegion
}

type cell struct{ col, row int }

func newGrid(start, end nav.PathPoint, obstacles []nav.ObstacleRegion, cfg Config) *grid {
	minX, minY := math.Min(start.X, end.X), math.Min(start.Y, end.Y)
	maxX, maxY := math.Max(start.X, end.X), math.Max(start.Y, end.Y)
	for _, r := range obstacles {
		minX = math.Min(minX, r.MinX)
		minY = math.Min(minY, r.MinY)
		maxX = math.Max(maxX, r.MaxX)
		maxY = math.Max(maxY, r.MaxY)
	}
	minX -= cfg.BoundsMargin
	minY -= cfg.BoundsMargin
	maxX += cfg.BoundsMargin
	maxY += cfg.BoundsMargin

	g := &grid{
		cfg:       cfg,
		minX:      minX,
		minY:      minY,
		cols:      int(math.Ceil((maxX-minX)/cfg.CellSize)) + 1,
		rows:      int(math.Ceil((maxY-minY)/cfg.CellSize)) + 1,
		planeZ:    start.Z,
		start:     start,
		end:       end,
		obstacles: obstacles,
	}
	g.startCell = g.cellOf(start)
	g.endCell = g.cellOf(end)
	return g
}

func (g *grid) cellOf(p nav.PathPoint) cell {
	return cell{
		col: int(math.Round((p.X - g.minX) / g.cfg.CellSize)),
		row: int(math.Round((p.Y - g.minY) / g.cfg.CellSize)),
	}
}

func (g *grid) center(c cell) nav.PathPoint {
	return nav.PathPoint{
		X: g.minX + float64(c.col)*g.cfg.CellSize,
		Y: g.minY + float64(c.row)*g.cfg.CellSize,
		Z: g.planeZ,
	}
}

func (g *grid) inBounds(c cell) bool {
	return c.col >= 0 && c.col < g.cols && c.row >= 0 && c.row < g.rows
}

func (g *grid) blocked(c cell) bool {
	p := g.center(c)
	for _, r := range g.obstacles {
		if p.X >= r.MinX && p.X <= r.MaxX &&
			p.Y >= r.MinY && p.Y <= r.MaxY &&
			g.planeZ >= r.MinZ && g.planeZ <= r.MaxZ {
			return true
		}
	}
	return false
}

// neighborOffsets is fixed so expansion order, and therefore tie-breaking,
// is reproducible across runs.
var neighborOffsets = [8]struct {
	dc, dr int
	cost   float64
}{
	{1, 0, 1}, {-1, 0, 1}, {0, 1, 1}, {0, -1, 1},
	{1, 1, math.Sqrt2}, {1, -1, math.Sqrt2}, {-1, 1, math.Sqrt2}, {-1, -1, math.Sqrt2},
}

type node struct {
	c    cell
	f, h float64
	seq  int // insertion order, the final deterministic tie-break
	idx  int
}

type openList []*node

func (o openList) Len() int { return len(o) }

func (o openList) Less(i, j int) bool {
	if o[i].f != o[j].f {
		return o[i].f < o[j].f
	}
	// Equal cost: prefer the candidate closer to the goal.
	if o[i].h != o[j].h {
		return o[i].h < o[j].h
	}
	return o[i].seq < o[j].seq
}

func (o openList) Swap(i, j int) {
	o[i], o[j] = o[j], o[i]
	o[i].idx = i
	o[j].idx = j
}

func (o *openList) Push(x any) {
	n := x.(*node)
	n.idx = len(*o)
	*o = append(*o, n)
}

func (o *openList) Pop() any {
	old := *o
	n := old[len(old)-1]
	old[len(old)-1] = nil
	*o = old[:len(old)-1]
	return n
}

// search runs bounded A* from the start cell to the end cell. ok is false
// when the goal is blocked, the frontier empties, or the budget runs out.
func (g *grid) search(maxExpansions int) ([]nav.PathPoint, bool) {
	if g.blocked(g.endCell) || g.blocked(g.startCell) {
		return nil, false
	}

	gScore := map[cell]float64{g.startCell: 0}
	cameFrom := make(map[cell]cell)
	closed := make(map[cell]bool)

	open := &openList{}
	heap.Init(open)
	seq := 0
	h0 := g.center(g.startCell).DistanceTo(g.center(g.endCell))
	heap.Push(open, &node{c: g.startCell, f: h0, h: h0, seq: seq})

	for expansions := 0; open.Len() > 0; expansions++ {
		if expansions >= maxExpansions {
			return nil, false
		}
		current := heap.Pop(open).(*node)
		if closed[current.c] {
			continue
		}
		closed[current.c] = true

		if current.c == g.endCell {
			return g.reconstruct(cameFrom), true
		}

		for _, off := range neighborOffsets {
			next := cell{current.c.col + off.dc, current.c.row + off.dr}
			if !g.inBounds(next) || closed[next] || g.blocked(next) {
				continue
			}
			tentative := gScore[current.c] + off.cost*g.cfg.CellSize
			if prev, seen := gScore[next]; seen && tentative >= prev {
				continue
			}
			gScore[next] = tentative
			cameFrom[next] = current.c
			h := g.center(next).DistanceTo(g.center(g.endCell))
			seq++
			heap.Push(open, &node{c: next, f: tentative + h, h: h, seq: seq})
		}
	}
	return nil, false
}

// reconstruct rebuilds the waypoint sequence, anchored on the exact start
// and end points rather than their cell centers.
func (g *grid) reconstruct(cameFrom map[cell]cell) []nav.PathPoint {
	cells := []cell{g.endCell}
	for c := g.endCell; c != g.startCell; {
		c = cameFrom[c]
		cells = append(cells, c)
	}

	points := make([]nav.PathPoint, 0, len(cells)+1)
	points = append(points, g.start)
	for i := len(cells) - 2; i >= 1; i-- {
		points = append(points, g.center(cells[i]))
	}
	points = append(points, g.end)
	return points
}

// elideCollinear removes interior waypoints that lie on the straight line
// between their neighbors.
func elideCollinear(points []nav.PathPoint) []nav.PathPoint {
	if len(points) <= 2 {
		return points
	}
	out := []nav.PathPoint{points[0]}
	for i := 1; i < len(points)-1; i++ {
		prev := out[len(out)-1]
		direct := prev.DistanceTo(points[i+1])
		via := prev.DistanceTo(points[i]) + points[i].DistanceTo(points[i+1])
		if via-direct > 1e-9 {
			out = append(out, points[i])
		}
	}
	return append(out, points[len(points)-1])
}

// downsample keeps the endpoints and an even spread of interior waypoints.
func downsample(points []nav.PathPoint, max int) []nav.PathPoint {
	if max < 2 || len(points) <= max {
		return points
	}
	out := make([]nav.PathPoint, 0, max)
	out = append(out, points[0])
	interior := max - 2
	for i := 1; i <= interior; i++ {
		idx := i * (len(points) - 1) / (interior + 1)
		out = append(out, points[idx])
	}
	return append(out, points[len(points)-1])
}
