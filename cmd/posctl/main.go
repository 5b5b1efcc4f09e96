// Command posctl runs maintenance tasks next to the vendorpos server.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, "posctl")
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.CommandsCommand(), "")
	commander.Register(&gensecretCmd{out: os.Stdout}, "")
	commander.Register(&migrateCmd{getenv: os.Getenv}, "db")
	commander.Register(&exportCmd{getenv: os.Getenv, stdout: os.Stdout}, "db")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
