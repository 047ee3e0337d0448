package commands

import (
	"context"

	"git.home.luguber.info/inful/stargazer/internal/session"
	"git.home.luguber.info/inful/stargazer/internal/state"
)

// SetCmd groups the session mutators.
type SetCmd struct {
	Location SetLocationCmd `cmd:"" help:"Set the observer coordinates"`
	Twilight SetTwilightCmd `cmd:"" help:"Set the twilight level (civil, nautical, astronomical)"`
	Time     SetTimeCmd     `cmd:"" help:"Set the observation time; omit to observe now"`
}

type SetLocationCmd struct {
	Lat  float64 `required:"" help:"Latitude in degrees (use --lat=-33.9 for southern values)"`
	Lon  float64 `required:"" help:"Longitude in degrees (use --lon=-80.8 for western values)"`
	Elev float64 `help:"Elevation in meters" default:"0"`
	JSON bool    `help:"Print the session as JSON"`
}

func (s *SetLocationCmd) Run(g *Global, root *CLI) error {
	c := state.Coordinates{Lat: s.Lat, Lon: s.Lon, Elev: s.Elev}
	if err := c.Validate(); err != nil {
		return err
	}
	return oneShot(g, root, s.JSON, func(ctx context.Context, store *session.Store) error {
		return store.SetCoordinates(ctx, c)
	})
}

type SetTwilightCmd struct {
	Level string `arg:"" help:"civil, nautical or astronomical"`
	JSON  bool   `help:"Print the session as JSON"`
}

func (s *SetTwilightCmd) Run(g *Global, root *CLI) error {
	t, err := state.NormalizeTwilight(s.Level)
	if err != nil {
		return err
	}
	return oneShot(g, root, s.JSON, func(ctx context.Context, store *session.Store) error {
		return store.SetTwilight(ctx, t)
	})
}

type SetTimeCmd struct {
	At   string `arg:"" optional:"" help:"ISO-8601 date-time; empty means now"`
	JSON bool   `help:"Print the session as JSON"`
}

func (s *SetTimeCmd) Run(g *Global, root *CLI) error {
	if s.At != "" {
		if _, ok := session.ParseTimeISO(s.At); !ok {
			return invalidTime(s.At)
		}
	}
	return oneShot(g, root, s.JSON, func(ctx context.Context, store *session.Store) error {
		store.SetTimeISO(ctx, s.At)
		return nil
	})
}
