package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/petal-labs/shelfwright/cli"
)

// Set via ldflags at build time.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.NewRootCmd(version).ExecuteContext(ctx)
	stop()
	os.Exit(cli.Code(err))
}
