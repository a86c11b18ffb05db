// Command krcah-enhance sharpens a 3D image and computes its multiscale
// Krcah bone enhancement.
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
	code := cli.RunKrcah(ctx, os.Args, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
