package state

import (
	"fmt"

	"git.home.luguber.info/inful/stargazer/internal/foundation"
	"git.home.luguber.info/inful/stargazer/internal/foundation/normalization"
)

// Key is a logical persistence key.
type Key string

const (
	KeyCoordinates Key = "stargazer:coords"
	KeyTwilight    Key = "stargazer:twilight"
	KeyTime        Key = "stargazer:time"
	KeyFavorites   Key = "stargazer:favorites"
	KeyObserved    Key = "stargazer:observed-constellations"
)

// Twilight is the sun-altitude threshold used to decide the sky is dark enough.
type Twilight string

const (
	TwilightCivil        Twilight = "civil"
	TwilightNautical     Twilight = "nautical"
	TwilightAstronomical Twilight = "astronomical"
)

// DefaultTwilight applies when nothing valid was persisted.
const DefaultTwilight = TwilightAstronomical

// Twilights lists the recognized levels in brightening order.
var Twilights = []Twilight{TwilightAstronomical, TwilightNautical, TwilightCivil}

// ParseTwilight accepts only the exact literals. Used for persisted values.
func ParseTwilight(raw string) (Twilight, bool) {
	switch t := Twilight(raw); t {
	case TwilightCivil, TwilightNautical, TwilightAstronomical:
		return t, true
	default:
		return "", false
	}
}

var twilightNormalizer = normalization.NewNormalizer(map[string]Twilight{
	"civil":        TwilightCivil,
	"nautical":     TwilightNautical,
	"astronomical": TwilightAstronomical,
	"astro":        TwilightAstronomical,
}, "")

// NormalizeTwilight is the lenient parser for user input (case and
// whitespace insensitive, "astro" accepted).
func NormalizeTwilight(raw string) (Twilight, error) {
	t, err := twilightNormalizer.NormalizeWithError(raw)
	if err != nil {
		return "", foundation.Invalid("twilight", "one_of", err.Error()).ToError()
	}
	return t, nil
}

// Valid reports whether t is a recognized level.
func (t Twilight) Valid() bool {
	_, ok := ParseTwilight(string(t))
	return ok
}

// Coordinates is an observer position. Elev is meters above sea level.
type Coordinates struct {
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	Elev float64 `json:"elev"`
}

// Fallback location used when no session was persisted.
const (
	DefaultLat  = 35.2271
	DefaultLon  = -80.8431
	DefaultElev = 0
)

// DefaultCoordinates returns the fallback location.
func DefaultCoordinates() Coordinates {
	return Coordinates{Lat: DefaultLat, Lon: DefaultLon, Elev: DefaultElev}
}

var coordinateRules = foundation.NewValidatorChain(
	foundation.InRange("lat", -90, 90, func(c Coordinates) float64 { return c.Lat }),
	foundation.InRange("lon", -180, 180, func(c Coordinates) float64 { return c.Lon }),
	foundation.Finite("elev", func(c Coordinates) float64 { return c.Elev }),
)

// Validate rejects non-finite or out-of-range values.
func (c Coordinates) Validate() error {
	return coordinateRules.Validate(c).ToError()
}

func (c Coordinates) String() string {
	return fmt.Sprintf("%.4f, %.4f (%.0f m)", c.Lat, c.Lon, c.Elev)
}

// Favorite is a saved observation view. Immutable once created.
type Favorite struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Lat      float64  `json:"lat"`
	Lon      float64  `json:"lon"`
	Elev     float64  `json:"elev"`
	Twilight Twilight `json:"twilight"`
	TimeISO  string   `json:"timeIso,omitempty"`
}

// Coordinates returns the favorite's position.
func (f Favorite) Coordinates() Coordinates {
	return Coordinates{Lat: f.Lat, Lon: f.Lon, Elev: f.Elev}
}

// FavoriteDraft is a favorite before an id was assigned.
type FavoriteDraft struct {
	Name     string   `json:"name"`
	Lat      float64  `json:"lat"`
	Lon      float64  `json:"lon"`
	Elev     float64  `json:"elev"`
	Twilight Twilight `json:"twilight"`
	TimeISO  string   `json:"timeIso,omitempty"`
}

var draftRules = foundation.NewValidatorChain(
	func(d FavoriteDraft) foundation.ValidationResult {
		return coordinateRules.Validate(Coordinates{Lat: d.Lat, Lon: d.Lon, Elev: d.Elev})
	},
	foundation.OneOf("twilight", Twilights, func(d FavoriteDraft) Twilight { return d.Twilight }),
)

// Validate checks the draft's position and twilight.
func (d FavoriteDraft) Validate() error {
	return draftRules.Validate(d).ToError()
}
