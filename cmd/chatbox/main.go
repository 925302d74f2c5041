package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return execute(ctx, &app{}, os.Args[1:])
}

// execute runs the command line in args and releases what a set up,
// whether or not the command succeeded.
func execute(ctx context.Context, a *app, args []string) error {
	defer a.close()

	root := newRootCommand(a)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}
