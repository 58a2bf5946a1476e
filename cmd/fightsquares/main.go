package main

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/younwookim/fightsquares/internal/cli"
)

//go:embed configs/*.json
var configFS embed.FS

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fsys, err := fs.Sub(configFS, "configs")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to get config subfs: %v\n", err)
		return cli.ExitCommandError
	}

	if err := cli.NewRootCommand(fsys).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return cli.GetExitCode(err)
	}
	return cli.ExitSuccess
}
