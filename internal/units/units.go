// Package units provides speed unit conversions shared across the planner.
//
// The simulator reports ego speed and the speed limit in mph, while sensor
// fusion velocities arrive in m/s. All conversions live here so no magic
// 2.24 factors leak into the planning code.
package units

// MetersPerSecondPerMph is the exact m/s value of one mile per hour.
const MetersPerSecondPerMph = 0.44704

// MphToMps converts miles per hour to meters per second.
func MphToMps(mph float64) float64 {
	return mph * MetersPerSecondPerMph
}

// MpsToMph converts meters per second to miles per hour.
func MpsToMph(mps float64) float64 {
	return mps / MetersPerSecondPerMph
}
