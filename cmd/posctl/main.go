package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"posdoctor/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.NewRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "posctl: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
