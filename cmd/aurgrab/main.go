package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/matzehuels/aurgrab/internal/cli"
	aurerrors "github.com/matzehuels/aurgrab/pkg/errors"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx)
	cancel()
	os.Exit(code)
}

func run(ctx context.Context) int {
	c := cli.New(os.Stdout, os.Stderr, cli.LogInfo)
	err := c.RootCommand().ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	if errors.Is(err, context.Canceled) {
		return 130 // Standard shell convention for SIGINT
	}

	var exit *cli.ExitError
	if errors.As(err, &exit) {
		if exit.Err != nil {
			fmt.Fprintln(os.Stderr, "error:", aurerrors.UserMessage(exit.Err))
		}
		return exit.Code
	}
	fmt.Fprintln(os.Stderr, "error:", aurerrors.UserMessage(err))
	return 1
}
