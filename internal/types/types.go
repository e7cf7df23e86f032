// README: Shared value types used across modules.
package types

import "math"

// ID is an opaque string identifier (rides, drivers, users).
type ID string

// Point is a WGS84 coordinate in decimal degrees. Range is not validated.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// RoundMoney rounds an amount to two decimal places, half away from zero.
func RoundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}

// RoundTo rounds v to the given number of decimal places.
func RoundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
