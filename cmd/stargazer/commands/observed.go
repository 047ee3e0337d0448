package commands

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/stargazer/internal/session"
)

// ObservedCmd groups observed-constellation markers.
type ObservedCmd struct {
	List   ObservedListCmd   `cmd:"" default:"1" help:"List observed constellations"`
	Mark   ObservedMarkCmd   `cmd:"" help:"Mark constellations as observed"`
	Unmark ObservedUnmarkCmd `cmd:"" help:"Forget observed constellations"`
}

type ObservedListCmd struct{}

func (o *ObservedListCmd) Run(g *Global, root *CLI) error {
	return withStore(g, root, func(_ context.Context, store *session.Store) error {
		ids := store.Observed()
		if len(ids) == 0 {
			_, _ = fmt.Fprintln(g.Out, "Nothing observed yet.")
			return nil
		}
		for _, id := range ids {
			_, _ = fmt.Fprintln(g.Out, id)
		}
		return nil
	})
}

type ObservedMarkCmd struct {
	IDs []string `arg:"" name:"id" help:"Constellation ids"`
}

func (o *ObservedMarkCmd) Run(g *Global, root *CLI) error {
	return withStore(g, root, func(ctx context.Context, store *session.Store) error {
		for _, id := range o.IDs {
			store.MarkObserved(ctx, id)
		}
		return nil
	})
}

type ObservedUnmarkCmd struct {
	IDs []string `arg:"" name:"id" help:"Constellation ids"`
}

func (o *ObservedUnmarkCmd) Run(g *Global, root *CLI) error {
	return withStore(g, root, func(ctx context.Context, store *session.Store) error {
		for _, id := range o.IDs {
			store.UnmarkObserved(ctx, id)
		}
		return nil
	})
}
