// Command descoteaux-enhance computes the multiscale Descoteaux bone
// enhancement of a 3D image.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"boneenhance/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.RunDescoteaux(ctx, os.Args, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
