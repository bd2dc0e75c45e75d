package main

import (
	"github.com/alecthomas/kong"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version  kong.VersionFlag `short:"v" help:"Show version"`
	Config   string           `short:"c" default:"deathmoves.hcl" help:"Path to HCL configuration file"`
	Hub      HubCmd           `cmd:"" help:"Run the websocket hub that relays messages between clients"`
	Client   ClientCmd        `cmd:"" help:"Join a session as an interactive client"`
	Simulate SimulateCmd      `cmd:"" help:"Run a whole death move headlessly on an in-memory bus"`
	Token    TokenCmd         `cmd:"" help:"Issue a signed token for the hub"`
	Records  RecordsCmd       `cmd:"" help:"List recent death move results"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("deathmoves"),
		kong.Description("Daggerheart death moves for a shared table"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
