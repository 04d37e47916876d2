// Package trajectory turns a lane and speed decision into the smooth
// world-frame path the simulator executes.
//
// Each cycle keeps the not-yet-consumed tail of the previous path untouched
// and extends it: sparse anchor points are laid out ahead along the target
// lane, rotated into the ego frame so their longitudinal axis is monotonic,
// fitted with a natural cubic spline, and resampled at the spacing that
// yields the reference speed at one point per tick.
package trajectory

import (
	"math"

	"gonum.org/v1/gonum/interp"

	"github.com/banshee-data/highway-planner/internal/planner"
	"github.com/banshee-data/highway-planner/internal/track"
	"github.com/banshee-data/highway-planner/internal/units"
)

// Horizon is the fixed number of points in every emitted trajectory.
const Horizon = 50

// Lookahead spacing of the forward anchor points, in meters of arc length.
const (
	anchorStep  = 30.0
	anchorCount = 3
)

// Point is one world-frame trajectory position.
type Point struct {
	X, Y float64
}

// Ego is the ego vehicle pose at the current tick. Yaw is in radians.
type Ego struct {
	X, Y  float64
	S, D  float64
	Yaw   float64
	Speed float64 // mph, as reported by the simulator
}

// Generate produces the next trajectory: the retained path followed by
// freshly planned points, exactly Horizon points in total. endS is the ego
// arc length at the end of the retained path (the ego's own s when the
// retained path is empty).
func Generate(ego Ego, retained []Point, endS float64, st planner.State, m *track.Map) []Point {
	refX, refY, refYaw := ego.X, ego.Y, ego.Yaw

	// Two backward-looking anchors pin the spline's tangent to the current
	// heading, so the splice onto the retained path stays C1-continuous.
	// A zero reference speed emits a tail of coincident points; such a tail
	// carries no heading, so fall back to the raw ego pose as if the
	// retained path were empty.
	var anchors []Point
	last, prev, haveTail := retainedPose(retained)
	if haveTail {
		refX, refY = last.X, last.Y
		refYaw = math.Atan2(last.Y-prev.Y, last.X-prev.X)
		anchors = append(anchors, prev, last)
	} else {
		anchors = append(anchors,
			Point{ego.X - math.Cos(ego.Yaw), ego.Y - math.Sin(ego.Yaw)},
			Point{ego.X, ego.Y},
		)
	}

	for i := 1; i <= anchorCount; i++ {
		x, y := m.ToXY(endS+anchorStep*float64(i), track.LaneCenter(st.Lane))
		anchors = append(anchors, Point{x, y})
	}

	// Shift into the ego-local frame: reference pose at the origin, heading
	// along +x. Local x is then strictly increasing across the anchors,
	// which the spline fit requires.
	xs := make([]float64, len(anchors))
	ys := make([]float64, len(anchors))
	for i, a := range anchors {
		dx, dy := a.X-refX, a.Y-refY
		xs[i] = dx*math.Cos(-refYaw) - dy*math.Sin(-refYaw)
		ys[i] = dx*math.Sin(-refYaw) + dy*math.Cos(-refYaw)
	}

	// Fit panics rather than erroring on non-increasing xs, so verify the
	// invariant here; a degenerate pose can still collapse anchors.
	for i := 1; i < len(xs); i++ {
		if xs[i] <= xs[i-1] {
			return padStraight(retained, ego, refX, refY, refYaw)
		}
	}

	var spline interp.NaturalCubic
	if err := spline.Fit(xs, ys); err != nil {
		return padStraight(retained, ego, refX, refY, refYaw)
	}

	out := make([]Point, 0, Horizon)
	out = append(out, retained...)

	// Spacing such that traversing one step at the reference speed takes
	// exactly one tick, using the straight-line distance to the first
	// forward anchor as an arc-length stand-in.
	targetX := anchorStep
	targetY := spline.Predict(targetX)
	targetDist := math.Hypot(targetX, targetY)

	x := 0.0
	for i := 0; i < Horizon-len(retained); i++ {
		steps := targetDist / (planner.TickSeconds * units.MphToMps(st.RefSpeed))
		x += targetX / steps
		y := spline.Predict(x)

		out = append(out, Point{
			X: x*math.Cos(refYaw) - y*math.Sin(refYaw) + refX,
			Y: x*math.Sin(refYaw) + y*math.Cos(refYaw) + refY,
		})
	}
	return out
}

// minTailSpacing is the smallest gap between the last two retained points
// that still defines a heading. One tick at the lowest nonzero reference
// speed spans ~2mm, three orders of magnitude above this.
const minTailSpacing = 1e-6

// retainedPose returns the last two retained points when they are far
// enough apart to define the reference pose.
func retainedPose(retained []Point) (last, prev Point, ok bool) {
	if len(retained) < 2 {
		return Point{}, Point{}, false
	}
	last = retained[len(retained)-1]
	prev = retained[len(retained)-2]
	if math.Hypot(last.X-prev.X, last.Y-prev.Y) < minTailSpacing {
		return Point{}, Point{}, false
	}
	return last, prev, true
}

// padStraight extends the retained path along the reference heading at a
// fixed small spacing, keeping the output at Horizon points.
func padStraight(retained []Point, ego Ego, refX, refY, refYaw float64) []Point {
	out := make([]Point, 0, Horizon)
	out = append(out, retained...)
	for i := 1; len(out) < Horizon; i++ {
		d := float64(i) * planner.TickSeconds * units.MphToMps(ego.Speed)
		out = append(out, Point{refX + d*math.Cos(refYaw), refY + d*math.Sin(refYaw)})
	}
	return out
}
