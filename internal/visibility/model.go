// Package visibility talks to the external service that computes which
// celestial bodies are visible for an observer.
package visibility

import (
	"git.home.luguber.info/inful/stargazer/internal/state"
)

// Request carries the observation parameters of one fetch cycle.
type Request struct {
	Coordinates state.Coordinates `json:"coordinates"`
	Twilight    state.Twilight    `json:"twilight"`
	TimeISO     string            `json:"timeIso,omitempty"` // empty means now
}

// Response is the computed visibility payload. Fields are passed through
// without interpretation.
type Response struct {
	WhenUTC        string          `json:"when_utc"`
	Location       Location        `json:"location"`
	Twilight       string          `json:"twilight"`
	SunAltitudeDeg *float64        `json:"sun_altitude_deg,omitempty"`
	VisiblePlanets []Planet        `json:"visible_planets"`
	Moon           *Moon           `json:"moon,omitempty"`
	Constellations []Constellation `json:"constellations,omitempty"`
}

type Location struct {
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	ElevationM float64 `json:"elevation_m"`
}

type Planet struct {
	Name        string  `json:"name"`
	AltitudeDeg float64 `json:"altitude_deg"`
	AzimuthDeg  float64 `json:"azimuth_deg"`
}

type Moon struct {
	AltitudeDeg          float64 `json:"altitude_deg"`
	AzimuthDeg           float64 `json:"azimuth_deg"`
	IlluminationFraction float64 `json:"illumination_fraction"`
}

type Constellation struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Abbreviation string  `json:"abbreviation"`
	Magnitude    float64 `json:"magnitude"`
	AltitudeDeg  float64 `json:"altitude_deg"`
	AzimuthDeg   float64 `json:"azimuth_deg"`
}

// errorBody is the payload of non-2xx responses.
type errorBody struct {
	Error string `json:"error"`
}
