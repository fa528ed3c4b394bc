// ABOUTME: Entry point for talkai-gateway
// ABOUTME: Serves the WebSocket chat gateway and its operator commands

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
 _        _ _         _
| |_ __ _| | | ____ _(_)       __ _  __ _| |_ _____      ____ _ _   _
| __/ _' | | |/ / _' | |_____ / _' |/ _' | __/ _ \ \ /\ / / _' | | | |
| || (_| | |   < (_| | |_____| (_| | (_| | ||  __/\ V  V / (_| | |_| |
 \__\__,_|_|_|\_\__,_|_|      \__, |\__,_|\__\___| \_/\_/ \__,_|\__, |
                              |___/                             |___/
`

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}
