// Command rowbind validates CUE schemas and migrates or inspects rowbind
// databases.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/roach88/rowbind/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := cli.NewRootCommand().ExecuteContext(ctx)
	stop()

	code := cli.GetExitCode(err)
	if err != nil && !cli.Reported(err) {
		fmt.Fprintf(os.Stderr, "rowbind: %v\n", err)
	}
	os.Exit(code)
}
