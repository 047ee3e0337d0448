package main

import (
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/stargazer/cmd/stargazer/commands"
	"git.home.luguber.info/inful/stargazer/internal/foundation/errors"
	"git.home.luguber.info/inful/stargazer/internal/version"
)

func main() {
	var cli commands.CLI
	global := &commands.Global{Out: os.Stdout}
	ctx := kong.Parse(&cli,
		kong.Name("stargazer"),
		kong.Description("Track which celestial bodies are visible from your location."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
		kong.Bind(global),
	)
	if err := ctx.Run(&cli); err != nil {
		os.Exit(errors.NewCLIErrorAdapter(cli.Verbose, global.Logger).Report(err))
	}
}
