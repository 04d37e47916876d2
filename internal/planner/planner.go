// Package planner holds the behavioral layer of the highway planner: the
// nearest-vehicle query over sensor fusion data and the cost-based lane and
// speed decision that runs once per telemetry tick.
package planner

import (
	"math"

	"github.com/banshee-data/highway-planner/internal/track"
	"github.com/banshee-data/highway-planner/internal/units"
)

// TickSeconds is the simulator's fixed actuation interval: the ego vehicle
// consumes one trajectory point every TickSeconds.
const TickSeconds = 0.02

// Vehicle is one sensor fusion observation of a nearby vehicle.
type Vehicle struct {
	ID float64
	X  float64
	Y  float64
	VX float64 // m/s
	VY float64 // m/s
	S  float64
	D  float64
}

// Speed returns the vehicle's speed in m/s.
func (v Vehicle) Speed() float64 {
	return math.Hypot(v.VX, v.VY)
}

// State is the planner's persistent decision state, threaded through each
// planning cycle by the owning loop. It is never mutated anywhere else.
type State struct {
	Lane     int     // target lane, 0 (left) to track.LaneCount-1 (right)
	RefSpeed float64 // target speed in mph, ramped by at most one step per tick
}

// Config holds the behavior tuning parameters.
type Config struct {
	SpeedLimitMph float64 // reference speed ceiling (mph)
	AccelStepMph  float64 // per-tick reference speed change (mph)
	FollowMargin  float64 // speed-up headroom below the leader's speed (m/s)

	Buffer float64 // forward search range (m); backward range is Buffer/3

	WeightSpeed     float64 // penalty per mph of leader slowness
	WeightDist      float64 // penalty divided by leader distance
	WeightStay      float64 // bonus for keeping the current lane
	WeightCollision float64 // penalty for a vehicle in the blind spot

	MinDistance float64 // floor for the proximity-penalty division (m)
}

// DefaultConfig returns the tuning used against the highway simulator.
func DefaultConfig() Config {
	return Config{
		SpeedLimitMph:   49.5,
		AccelStepMph:    0.224, // ~5 m/s² at the 0.02s tick, under the jerk limit
		FollowMargin:    0.5,
		Buffer:          30.0,
		WeightSpeed:     1.0,
		WeightDist:      40.0,
		WeightStay:      5.0,
		WeightCollision: 1000.0,
		MinDistance:     1.0,
	}
}

// Distance returns the signed longitudinal gap from ego arc length s to the
// vehicle's position predicted retainedLen ticks ahead. The prediction
// aligns the query with the end of the retained path, where fresh planning
// resumes.
func Distance(v Vehicle, s float64, retainedLen int) float64 {
	return v.S + float64(retainedLen)*TickSeconds*v.Speed() - s
}

// ClosestVehicle returns the nearest vehicle in the given lane within the
// signed search buffer: a positive buffer searches ahead of s, a negative
// buffer behind. The boolean is false when the lane is clear in that range.
func ClosestVehicle(s float64, lane int, vehicles []Vehicle, retainedLen int, buffer float64) (Vehicle, bool) {
	var closest Vehicle
	best := math.Inf(1)
	found := false
	for _, v := range vehicles {
		if !track.InLane(v.D, lane) {
			continue
		}
		dist := Distance(v, s, retainedLen)
		if buffer >= 0 && (dist <= 0 || dist >= buffer) {
			continue
		}
		if buffer < 0 && (dist >= 0 || dist <= buffer) {
			continue
		}
		if math.Abs(dist) < best {
			best = math.Abs(dist)
			closest = v
			found = true
		}
	}
	return closest, found
}

// Costs computes the per-lane cost snapshot for one tick. Exported for the
// tick recorder; Plan is the only decision consumer.
func Costs(s float64, vehicles []Vehicle, retainedLen int, st State, cfg Config) (costs [track.LaneCount]float64, ahead [track.LaneCount]*Vehicle) {
	for lane := 0; lane < track.LaneCount; lane++ {
		if v, ok := ClosestVehicle(s, lane, vehicles, retainedLen, cfg.Buffer); ok {
			leader := v
			ahead[lane] = &leader
			costs[lane] += cfg.WeightSpeed * (cfg.SpeedLimitMph - units.MpsToMph(v.Speed()))
			costs[lane] += cfg.WeightDist / math.Max(Distance(v, s, retainedLen), cfg.MinDistance)
		}
		if lane == st.Lane {
			costs[lane] -= cfg.WeightStay
		} else if _, ok := ClosestVehicle(s, lane, vehicles, retainedLen, -cfg.Buffer/3); ok {
			// Blind-spot guard: never price a lane as attractive while a
			// vehicle sits close behind in it.
			costs[lane] += cfg.WeightCollision
		}
	}
	return costs, ahead
}

// Plan runs one behavior tick: it evaluates the three lane costs from a
// single snapshot, applies at most one lane change, and ramps the reference
// speed by at most one step toward the target lane's traffic. s is the ego
// arc length at the end of the retained path.
func Plan(s float64, vehicles []Vehicle, retainedLen int, st State, cfg Config) State {
	costs, ahead := Costs(s, vehicles, retainedLen, st, cfg)

	next := st
	switch st.Lane {
	case 0:
		if costs[1] < costs[0] {
			next.Lane = 1
		}
	case 1:
		if costs[2] < costs[1] && costs[2] <= costs[0] {
			next.Lane = 2
		} else if costs[0] < costs[1] && costs[0] < costs[2] {
			next.Lane = 0
		}
	case 2:
		if costs[1] < costs[2] {
			next.Lane = 1
		}
	}

	if leader := ahead[next.Lane]; leader != nil {
		switch {
		case units.MphToMps(next.RefSpeed) > leader.Speed():
			next.RefSpeed -= cfg.AccelStepMph
		case units.MphToMps(next.RefSpeed) < leader.Speed()-cfg.FollowMargin:
			next.RefSpeed += cfg.AccelStepMph
		}
	} else if next.RefSpeed < cfg.SpeedLimitMph {
		next.RefSpeed += cfg.AccelStepMph
	}
	next.RefSpeed = math.Min(math.Max(next.RefSpeed, 0), cfg.SpeedLimitMph)

	return next
}
