package pricing

import (
	"ridehail/internal/geo"
	"ridehail/internal/types"
)

const (
	DirectionCityToAirport = "city_to_airport"
	DirectionAirportToCity = "airport_to_city"
)

// airportDirection treats whichever endpoint is closer to the city centre as
// the origin. Ties count as city to airport.
func airportDirection(pickup, drop, center types.Point) string {
	if geo.DistanceKm(pickup, center) <= geo.DistanceKm(drop, center) {
		return DirectionCityToAirport
	}
	return DirectionAirportToCity
}

// airportFare is a flat fare by direction; distance and time do not matter.
func airportFare(f AirportFare, pickup, drop, center types.Point) FareBreakdown {
	dir := airportDirection(pickup, drop, center)
	flat := f.CityToAirport
	if dir == DirectionAirportToCity {
		flat = f.AirportToCity
	}
	b := FareBreakdown{BaseFare: types.RoundMoney(flat)}
	b.TotalFare = b.BaseFare
	b.Details = FareDetails{RateID: f.ID, Direction: dir}
	return b
}
