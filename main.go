package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alexflint/go-arg"

	"github.com/yiblet/cliphist/internal/cli"
)

func main() {
	var args cli.Args
	parser := arg.MustParse(&args)

	if err := args.Validate(); err != nil {
		parser.Fail(err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, &args)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args *cli.Args) error {
	cliHandler, err := cli.NewWithArgs(args)
	if err != nil {
		return err
	}
	defer cliHandler.Close(context.Background())

	return cliHandler.Execute(ctx, args)
}
