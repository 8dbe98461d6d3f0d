// Command ratesync runs exchange rate ingestion once, outside the API server.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path"
	"syscall"

	"github.com/google/subcommands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(&syncCmd{}, "")
	commander.Register(&sourcesCmd{}, "")
	commander.Register(&latestCmd{}, "")

	flag.Parse()
	os.Exit(int(commander.Execute(ctx)))
}
