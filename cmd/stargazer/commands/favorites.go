package commands

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/stargazer/internal/foundation/errors"
	"git.home.luguber.info/inful/stargazer/internal/session"
	"git.home.luguber.info/inful/stargazer/internal/state"
)

// FavoritesCmd groups saved-view management.
type FavoritesCmd struct {
	List   FavoritesListCmd   `cmd:"" default:"1" help:"List saved views"`
	Add    FavoritesAddCmd    `cmd:"" help:"Save a view with explicit parameters"`
	Save   FavoritesSaveCmd   `cmd:"" help:"Save the current session as a view"`
	Remove FavoritesRemoveCmd `cmd:"" help:"Delete a saved view"`
	Apply  FavoritesApplyCmd  `cmd:"" help:"Load a saved view into the session and fetch"`
}

func invalidTime(raw string) error {
	return errors.ValidationError("time must be an ISO-8601 date-time").WithContext("time", raw).Build()
}

// withStore opens the session without fetching, for commands that only
// touch favorites or observed markers.
func withStore(g *Global, root *CLI, fn func(context.Context, *session.Store) error) error {
	ctx := context.Background()
	rt, err := openRuntime(ctx, g, root, openOptions{})
	if err != nil {
		return err
	}
	defer rt.close(ctx)
	return fn(ctx, rt.store)
}

type FavoritesListCmd struct {
	JSON bool `help:"Print as JSON"`
}

func (f *FavoritesListCmd) Run(g *Global, root *CLI) error {
	return withStore(g, root, func(_ context.Context, store *session.Store) error {
		favs := store.Favorites()
		if f.JSON {
			if favs == nil {
				favs = []state.Favorite{}
			}
			return printJSON(g.Out, favs)
		}
		return printFavorites(g.Out, favs)
	})
}

type FavoritesAddCmd struct {
	Name     string  `arg:"" help:"Label for the view"`
	Lat      float64 `required:"" help:"Latitude in degrees"`
	Lon      float64 `required:"" help:"Longitude in degrees"`
	Elev     float64 `help:"Elevation in meters"`
	Twilight string  `help:"Twilight level" default:"astronomical"`
	Time     string  `help:"ISO-8601 observation time"`
}

func (f *FavoritesAddCmd) Run(g *Global, root *CLI) error {
	t, err := state.NormalizeTwilight(f.Twilight)
	if err != nil {
		return err
	}
	if f.Time != "" {
		if _, ok := session.ParseTimeISO(f.Time); !ok {
			return invalidTime(f.Time)
		}
	}
	return withStore(g, root, func(ctx context.Context, store *session.Store) error {
		fav, err := store.AddFavorite(ctx, state.FavoriteDraft{
			Name: f.Name, Lat: f.Lat, Lon: f.Lon, Elev: f.Elev, Twilight: t, TimeISO: f.Time,
		})
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(g.Out, "Saved %s (%s)\n", fav.Name, fav.ID)
		return nil
	})
}

type FavoritesSaveCmd struct{}

func (f *FavoritesSaveCmd) Run(g *Global, root *CLI) error {
	return withStore(g, root, func(ctx context.Context, store *session.Store) error {
		fav, err := store.SaveCurrentView(ctx)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(g.Out, "Saved %s (%s)\n", fav.Name, fav.ID)
		return nil
	})
}

type FavoritesRemoveCmd struct {
	ID string `arg:"" help:"Favorite id"`
}

func (f *FavoritesRemoveCmd) Run(g *Global, root *CLI) error {
	return withStore(g, root, func(ctx context.Context, store *session.Store) error {
		if store.RemoveFavorite(ctx, f.ID) {
			_, _ = fmt.Fprintf(g.Out, "Removed %s\n", f.ID)
		} else {
			_, _ = fmt.Fprintf(g.Out, "No saved view %s\n", f.ID)
		}
		return nil
	})
}

type FavoritesApplyCmd struct {
	ID   string `arg:"" help:"Favorite id"`
	JSON bool   `help:"Print the session as JSON"`
}

func (f *FavoritesApplyCmd) Run(g *Global, root *CLI) error {
	return oneShot(g, root, f.JSON, func(ctx context.Context, store *session.Store) error {
		_, err := store.ApplyFavorite(ctx, f.ID)
		return err
	})
}
