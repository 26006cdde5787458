// Package main is the entry point for the amiforge CLI.
//
// amiforge builds EC2 machine images, either by copying a raw disk image
// onto a volume and registering its snapshot, or by running an unattended
// installer and capturing the stopped instance. Every temporary resource
// is released before it exits.
//
// Commands: from-file, from-installer, register, hcloud-installer, version.
//
// For detailed usage information, run:
//
//	amiforge --help
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/imamik/amiforge/cmd/amiforge/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
