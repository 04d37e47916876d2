// Package track models the highway centerline and converts between Frenet
// and Cartesian coordinates against it.
//
// The track is a closed loop sampled by ordered waypoints. Each waypoint
// carries its world position, its arc length s along the centerline, and a
// unit normal pointing toward the right of the direction of travel (the side
// the lanes are on). Longitudinal positions wrap modulo the total track
// length.
package track

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

// Lane geometry. Lanes are indexed 0 (leftmost, next to the centerline) to
// LaneCount-1 (rightmost); lane i spans d in [LaneWidth*i, LaneWidth*(i+1)].
const (
	LaneCount = 3
	LaneWidth = 4.0
)

// LaneCenter returns the lateral offset d of the center of the given lane.
func LaneCenter(lane int) float64 {
	return LaneWidth/2 + LaneWidth*float64(lane)
}

// InLane reports whether lateral offset d falls inside the given lane's band.
func InLane(d float64, lane int) bool {
	center := LaneCenter(lane)
	return d > center-LaneWidth/2 && d < center+LaneWidth/2
}

// Waypoint is one centerline sample.
type Waypoint struct {
	X, Y   float64 // world position
	S      float64 // arc length along the centerline
	DX, DY float64 // unit normal, pointing right of travel
}

// Map is an ordered, closed-loop sequence of waypoints.
type Map struct {
	points []Waypoint
	length float64 // total loop length; s wraps at this value
}

// New builds a Map from ordered waypoints and the total loop length.
func New(points []Waypoint, length float64) *Map {
	return &Map{points: points, length: length}
}

// Length returns the total loop length.
func (m *Map) Length() float64 { return m.length }

// Waypoints returns the underlying samples, for rendering tools.
func (m *Map) Waypoints() []Waypoint { return m.points }

// LoadCSV reads a waypoint file with one "x y s dx dy" whitespace-separated
// record per line, as shipped with the highway simulator.
func LoadCSV(path string, length float64) (*Map, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open waypoint file: %w", err)
	}
	defer f.Close()

	var points []Waypoint
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) != 5 {
			return nil, fmt.Errorf("waypoint file %s line %d: expected 5 fields, got %d", path, line, len(fields))
		}
		var vals [5]float64
		for i, field := range fields {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("waypoint file %s line %d: %w", path, line, err)
			}
			vals[i] = v
		}
		points = append(points, Waypoint{X: vals[0], Y: vals[1], S: vals[2], DX: vals[3], DY: vals[4]})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read waypoint file: %w", err)
	}
	if len(points) < 2 {
		return nil, fmt.Errorf("waypoint file %s: need at least 2 waypoints, got %d", path, len(points))
	}
	return New(points, length), nil
}

// ToXY converts Frenet (s, d) to a world position. It locates the segment
// bracketing s, interpolates along it, and offsets laterally along the
// interpolated waypoint normal.
func (m *Map) ToXY(s, d float64) (x, y float64) {
	s = math.Mod(s, m.length)
	if s < 0 {
		s += m.length
	}

	prev := len(m.points) - 1
	for i, wp := range m.points {
		if wp.S > s {
			break
		}
		prev = i
	}
	next := (prev + 1) % len(m.points)

	p0, p1 := m.points[prev], m.points[next]
	segLen := p1.S - p0.S
	if next == 0 {
		segLen = m.length - p0.S
	}
	frac := 0.0
	if segLen > 0 {
		frac = (s - p0.S) / segLen
	}

	x = p0.X + frac*(p1.X-p0.X)
	y = p0.Y + frac*(p1.Y-p0.Y)

	// Interpolate the normal between the two samples and renormalize.
	nx := p0.DX + frac*(p1.DX-p0.DX)
	ny := p0.DY + frac*(p1.DY-p0.DY)
	norm := math.Hypot(nx, ny)
	if norm > 0 {
		nx /= norm
		ny /= norm
	}
	return x + d*nx, y + d*ny
}

// ToFrenet converts a world position to Frenet (s, d) by projecting it onto
// the nearest centerline segment. d is positive on the right of the
// direction of travel, matching the stored normals.
func (m *Map) ToFrenet(x, y float64) (s, d float64) {
	next := m.nextWaypoint(x, y)
	prev := next - 1
	if prev < 0 {
		prev = len(m.points) - 1
	}

	p0, p1 := m.points[prev], m.points[next]
	segX, segY := p1.X-p0.X, p1.Y-p0.Y
	relX, relY := x-p0.X, y-p0.Y

	segLenSq := segX*segX + segY*segY
	proj := 0.0
	if segLenSq > 0 {
		proj = (relX*segX + relY*segY) / segLenSq
	}
	projX, projY := proj*segX, proj*segY

	d = math.Hypot(relX-projX, relY-projY)
	// Points left of the segment get negative d.
	if segX*relY-segY*relX > 0 {
		d = -d
	}

	s = p0.S + math.Hypot(projX, projY)
	if s >= m.length {
		s -= m.length
	}
	return s, d
}

// closestWaypoint returns the index of the waypoint nearest to (x, y).
func (m *Map) closestWaypoint(x, y float64) int {
	best := 0
	bestDist := math.Inf(1)
	for i, wp := range m.points {
		dist := math.Hypot(wp.X-x, wp.Y-y)
		if dist < bestDist {
			bestDist = dist
			best = i
		}
	}
	return best
}

// nextWaypoint returns the index of the first waypoint ahead of (x, y) in
// the direction of travel.
func (m *Map) nextWaypoint(x, y float64) int {
	closest := m.closestWaypoint(x, y)
	wp := m.points[closest]

	heading := math.Atan2(wp.Y-y, wp.X-x)
	after := m.points[(closest+1)%len(m.points)]
	travel := math.Atan2(after.Y-wp.Y, after.X-wp.X)

	diff := math.Abs(travel - heading)
	if diff > math.Pi {
		diff = 2*math.Pi - diff
	}
	// Closest waypoint is behind us; the segment to project onto starts there.
	if diff > math.Pi/2 {
		closest = (closest + 1) % len(m.points)
	}
	return closest
}
