// Command localknowledge indexes a local Zotero library and answers
// questions about it with citations.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/SWHsz/LocalKnowledge/internal/adapters/driving/cli"
)

// version is set at build time via -ldflags "-X main.version=...".
var version string

func main() {
	cli.SetVersion(version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.Execute(ctx)
	stop()

	if err != nil {
		os.Exit(1)
	}
}
