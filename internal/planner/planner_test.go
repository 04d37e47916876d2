package planner

import (
	"math"
	"testing"
)

// laneVehicle places a vehicle in the given lane at arc length s moving at
// speed m/s along the road.
func laneVehicle(id float64, lane int, s, speed float64) Vehicle {
	return Vehicle{ID: id, VX: speed, S: s, D: 2 + 4*float64(lane)}
}

func TestClosestVehicleAhead(t *testing.T) {
	cfg := DefaultConfig()
	vehicles := []Vehicle{
		laneVehicle(1, 1, 120, 0),
		laneVehicle(2, 1, 110, 0),
		laneVehicle(3, 0, 105, 0), // wrong lane
		laneVehicle(4, 1, 95, 0),  // behind
		laneVehicle(5, 1, 200, 0), // beyond buffer
	}

	v, ok := ClosestVehicle(100, 1, vehicles, 0, cfg.Buffer)
	if !ok {
		t.Fatal("expected a vehicle ahead")
	}
	if v.ID != 2 {
		t.Errorf("expected vehicle 2 (closest ahead), got %v", v.ID)
	}
}

func TestClosestVehicleBehind(t *testing.T) {
	cfg := DefaultConfig()
	vehicles := []Vehicle{
		laneVehicle(1, 1, 85, 0),
		laneVehicle(2, 1, 95, 0),
		laneVehicle(3, 1, 105, 0), // ahead
	}

	v, ok := ClosestVehicle(100, 1, vehicles, 0, -cfg.Buffer/3)
	if !ok {
		t.Fatal("expected a vehicle behind")
	}
	if v.ID != 2 {
		t.Errorf("expected vehicle 2 (closest behind), got %v", v.ID)
	}
}

func TestClosestVehicleNone(t *testing.T) {
	cfg := DefaultConfig()
	if _, ok := ClosestVehicle(100, 1, nil, 0, cfg.Buffer); ok {
		t.Error("expected no vehicle on an empty road")
	}

	// A vehicle exactly at ego s is neither ahead nor behind.
	vehicles := []Vehicle{laneVehicle(1, 1, 100, 0)}
	if _, ok := ClosestVehicle(100, 1, vehicles, 0, cfg.Buffer); ok {
		t.Error("zero-distance vehicle should not match the ahead query")
	}
	if _, ok := ClosestVehicle(100, 1, vehicles, 0, -cfg.Buffer/3); ok {
		t.Error("zero-distance vehicle should not match the behind query")
	}
}

func TestClosestVehiclePrediction(t *testing.T) {
	cfg := DefaultConfig()
	// 25m ahead now, 20 m/s: with a 25-tick retained path it is predicted
	// 10m further out, past the 30m buffer.
	vehicles := []Vehicle{laneVehicle(1, 1, 125, 20)}

	if _, ok := ClosestVehicle(100, 1, vehicles, 0, cfg.Buffer); !ok {
		t.Error("expected vehicle within buffer with no retained path")
	}
	if _, ok := ClosestVehicle(100, 1, vehicles, 25, cfg.Buffer); ok {
		t.Error("expected predicted position to leave the buffer")
	}
}

func TestPlanEmptyRoad(t *testing.T) {
	cfg := DefaultConfig()
	st := State{Lane: 1, RefSpeed: 0}

	next := Plan(100, nil, 0, st, cfg)
	if next.Lane != 1 {
		t.Errorf("lane changed on an empty road: %d", next.Lane)
	}
	if math.Abs(next.RefSpeed-cfg.AccelStepMph) > 1e-12 {
		t.Errorf("expected one acceleration step, got %v", next.RefSpeed)
	}
}

func TestPlanSpeedCapped(t *testing.T) {
	cfg := DefaultConfig()
	st := State{Lane: 1, RefSpeed: cfg.SpeedLimitMph}

	next := Plan(100, nil, 0, st, cfg)
	if next.RefSpeed != cfg.SpeedLimitMph {
		t.Errorf("reference speed exceeded the limit: %v", next.RefSpeed)
	}
}

func TestPlanSlowLeaderTriggersLaneChange(t *testing.T) {
	cfg := DefaultConfig()
	st := State{Lane: 1, RefSpeed: 45}

	// Slow vehicle 20m ahead in lane 1, other lanes clear.
	vehicles := []Vehicle{laneVehicle(1, 1, 120, 10)}

	next := Plan(100, vehicles, 0, st, cfg)
	if next.Lane == 1 {
		t.Error("expected a lane change away from the slow leader")
	}
	if abs := next.Lane - st.Lane; abs != 1 && abs != -1 {
		t.Errorf("lane changed by more than one: %d -> %d", st.Lane, next.Lane)
	}
}

func TestPlanBlindSpotBlocksChange(t *testing.T) {
	cfg := DefaultConfig()
	st := State{Lane: 1, RefSpeed: 45}

	vehicles := []Vehicle{
		laneVehicle(1, 1, 120, 10), // slow leader in our lane
		laneVehicle(2, 0, 95, 22),  // close behind in lane 0
		laneVehicle(3, 2, 95, 22),  // close behind in lane 2
	}

	next := Plan(100, vehicles, 0, st, cfg)
	if next.Lane != 1 {
		t.Errorf("changed lane into an occupied blind spot: %d", next.Lane)
	}
	// Following a slower leader: exactly one deceleration step.
	if math.Abs(next.RefSpeed-(st.RefSpeed-cfg.AccelStepMph)) > 1e-12 {
		t.Errorf("expected one deceleration step, got %v", next.RefSpeed)
	}
}

func TestPlanStayBonusHysteresis(t *testing.T) {
	cfg := DefaultConfig()
	st := State{Lane: 1, RefSpeed: 45}

	// Identical traffic ahead in every lane: the stay bonus must keep us put.
	vehicles := []Vehicle{
		laneVehicle(1, 0, 120, 15),
		laneVehicle(2, 1, 120, 15),
		laneVehicle(3, 2, 120, 15),
	}

	next := Plan(100, vehicles, 0, st, cfg)
	if next.Lane != 1 {
		t.Errorf("left the current lane despite equal costs: %d", next.Lane)
	}
}

func TestPlanSpeedBoundedPerTick(t *testing.T) {
	cfg := DefaultConfig()
	st := State{Lane: 1, RefSpeed: 30}

	scenarios := [][]Vehicle{
		nil,
		{laneVehicle(1, 1, 110, 5)},
		{laneVehicle(1, 1, 110, 30)},
	}
	for _, vehicles := range scenarios {
		next := Plan(100, vehicles, 0, st, cfg)
		if delta := math.Abs(next.RefSpeed - st.RefSpeed); delta > cfg.AccelStepMph+1e-12 {
			t.Errorf("reference speed moved %v in one tick (max %v)", delta, cfg.AccelStepMph)
		}
		if next.RefSpeed < 0 || next.RefSpeed > cfg.SpeedLimitMph {
			t.Errorf("reference speed out of range: %v", next.RefSpeed)
		}
	}
}

func TestCostsFiniteNearZeroDistance(t *testing.T) {
	cfg := DefaultConfig()
	st := State{Lane: 1, RefSpeed: 45}

	// Leader essentially on our bumper: the clamp keeps the cost finite.
	vehicles := []Vehicle{laneVehicle(1, 1, 100 + 1e-9, 10)}

	costs, _ := Costs(100, vehicles, 0, st, cfg)
	if math.IsInf(costs[1], 0) || math.IsNaN(costs[1]) {
		t.Errorf("cost not finite at near-zero distance: %v", costs[1])
	}
	if costs[1] > cfg.WeightDist/cfg.MinDistance+cfg.WeightSpeed*cfg.SpeedLimitMph {
		t.Errorf("clamp not applied, cost = %v", costs[1])
	}
}

func TestPlanLeaderCloseBelowMarginHolds(t *testing.T) {
	cfg := DefaultConfig()
	// Leader at 20 m/s; reference just under it, within the follow margin:
	// the planner should hold speed rather than oscillate.
	st := State{Lane: 1, RefSpeed: 44.5} // ~19.9 m/s

	vehicles := []Vehicle{laneVehicle(1, 1, 120, 20)}

	next := Plan(100, vehicles, 0, st, cfg)
	if next.RefSpeed != st.RefSpeed {
		t.Errorf("expected speed hold inside follow margin, got %v", next.RefSpeed)
	}
}
