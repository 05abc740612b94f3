// Command pregen runs marker-driven code generators over Go packages.
//
//    pregen --target-app-package example.com/app ./...
//
// All generators registered with the processor package are run, which
// includes the built-in "validate" generator. Generated files are written to
// the "generated" package below the target application package.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		cancel()
		os.Exit(1)
	}
}
