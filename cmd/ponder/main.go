package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"

	apperrors "github.com/HexSleeves/ponder/internal/errors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application := newApp(os.Stdin, os.Stdout, os.Stderr)
	if err := application.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, pterm.Error.Sprint(err))
		stop()
		os.Exit(apperrors.ExitCode(err))
	}
}
