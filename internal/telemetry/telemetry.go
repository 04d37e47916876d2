// Package telemetry defines the highway simulator's wire format: the
// socket.io-style "42[...]" text frames and the telemetry/control payloads
// carried inside them.
package telemetry

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/banshee-data/highway-planner/internal/planner"
	"github.com/banshee-data/highway-planner/internal/trajectory"
)

// framePrefix marks a socket.io message event frame.
const framePrefix = "42"

// Telemetry is one simulator snapshot: ego localization, the portion of the
// previous path not yet consumed, and sensor fusion observations as raw
// [id, x, y, vx, vy, s, d] rows.
type Telemetry struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	S     float64 `json:"s"`
	D     float64 `json:"d"`
	Yaw   float64 `json:"yaw"`   // degrees
	Speed float64 `json:"speed"` // mph

	PreviousPathX []float64 `json:"previous_path_x"`
	PreviousPathY []float64 `json:"previous_path_y"`
	EndPathS      float64   `json:"end_path_s"`
	EndPathD      float64   `json:"end_path_d"`

	SensorFusion [][]float64 `json:"sensor_fusion"`
}

// Control is the planner's reply: the full path the simulator will execute,
// one point per tick.
type Control struct {
	NextX []float64 `json:"next_x"`
	NextY []float64 `json:"next_y"`
}

// Ego converts the snapshot's localization to the planner's ego pose, with
// yaw in radians.
func (t *Telemetry) Ego() trajectory.Ego {
	return trajectory.Ego{
		X: t.X, Y: t.Y,
		S: t.S, D: t.D,
		Yaw:   t.Yaw * math.Pi / 180,
		Speed: t.Speed,
	}
}

// Retained returns the previous path tail as trajectory points.
func (t *Telemetry) Retained() []trajectory.Point {
	n := len(t.PreviousPathX)
	if len(t.PreviousPathY) < n {
		n = len(t.PreviousPathY)
	}
	points := make([]trajectory.Point, n)
	for i := 0; i < n; i++ {
		points[i] = trajectory.Point{X: t.PreviousPathX[i], Y: t.PreviousPathY[i]}
	}
	return points
}

// Vehicles converts the sensor fusion rows to vehicle observations,
// skipping rows that do not carry all seven fields.
func (t *Telemetry) Vehicles() []planner.Vehicle {
	vehicles := make([]planner.Vehicle, 0, len(t.SensorFusion))
	for _, row := range t.SensorFusion {
		if len(row) < 7 {
			continue
		}
		vehicles = append(vehicles, planner.Vehicle{
			ID: row[0],
			X:  row[1], Y: row[2],
			VX: row[3], VY: row[4],
			S: row[5], D: row[6],
		})
	}
	return vehicles
}

// DecodeFrame parses a raw websocket text message. It returns the event
// name and payload for a well-formed "42" event frame; ok is false for
// anything else, including the null payload the simulator sends in manual
// mode.
func DecodeFrame(data []byte) (event string, payload json.RawMessage, ok bool) {
	if len(data) < len(framePrefix) || string(data[:len(framePrefix)]) != framePrefix {
		return "", nil, false
	}
	var frame []json.RawMessage
	if err := json.Unmarshal(data[len(framePrefix):], &frame); err != nil {
		return "", nil, false
	}
	if len(frame) < 2 {
		return "", nil, false
	}
	if err := json.Unmarshal(frame[0], &event); err != nil {
		return "", nil, false
	}
	if string(frame[1]) == "null" {
		return event, nil, false
	}
	return event, frame[1], true
}

// EncodeEvent builds a "42" event frame around the given payload.
func EncodeEvent(event string, payload any) ([]byte, error) {
	body, err := json.Marshal([2]any{event, payload})
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s event: %w", event, err)
	}
	return append([]byte(framePrefix), body...), nil
}

// ManualFrame is the fixed acknowledgment sent when no telemetry payload is
// present; the planning core is bypassed entirely.
func ManualFrame() []byte {
	return []byte(framePrefix + `["manual",{}]`)
}

// ControlFrame encodes a planned path as the simulator's control reply.
func ControlFrame(path []trajectory.Point) ([]byte, error) {
	ctrl := Control{
		NextX: make([]float64, len(path)),
		NextY: make([]float64, len(path)),
	}
	for i, p := range path {
		ctrl.NextX[i] = p.X
		ctrl.NextY[i] = p.Y
	}
	return EncodeEvent("control", ctrl)
}
