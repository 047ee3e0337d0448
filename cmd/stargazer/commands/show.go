package commands

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/stargazer/internal/session"
)

// ShowCmd implements the 'show' command.
type ShowCmd struct {
	JSON bool `help:"Print the session as JSON"`
}

func (s *ShowCmd) Run(g *Global, root *CLI) error {
	return oneShot(g, root, s.JSON, func(context.Context, *session.Store) error { return nil })
}

// RefetchCmd implements the 'refetch' command.
type RefetchCmd struct {
	JSON bool `help:"Print the session as JSON"`
}

func (r *RefetchCmd) Run(g *Global, root *CLI) error {
	return oneShot(g, root, r.JSON, func(_ context.Context, store *session.Store) error {
		store.Refetch()
		return nil
	})
}

// oneShot opens the session without the automatic first cycle, applies
// mutate (which issues a cycle of its own, or none), makes sure one cycle
// ran, waits for it and prints the result.
func oneShot(g *Global, root *CLI, asJSON bool, mutate func(context.Context, *session.Store) error) error {
	ctx := context.Background()
	rt, err := openRuntime(ctx, g, root, openOptions{})
	if err != nil {
		return err
	}
	defer rt.close(ctx)

	before := rt.store.Result().Generation
	if err := mutate(ctx, rt.store); err != nil {
		return err
	}
	if rt.store.Result().Generation == before {
		rt.store.Refetch()
	}
	if err := rt.settle(ctx); err != nil {
		rt.logger.Warn("Fetch did not settle", slog.String("error", err.Error()))
	}

	snap := rt.store.Snapshot()
	if asJSON {
		return printJSON(g.Out, snap)
	}
	return printSnapshot(g.Out, snap, rt.store.Observed())
}
