// Command otc-server serves the goOTC JSON API.
//
// Configuration comes from defaults, an optional JSON file (-c), flags and
// OTC_* environment variables, in that order. OTC_SESSION_SECRET is required.
//
// Run a self-contained development server (codes are logged):
//
//	OTC_SESSION_SECRET=$(openssl rand -hex 32) go run ./cmd/otc-server -store miniredis
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/MrEthical07/goOTC/internal/server"
	"github.com/MrEthical07/goOTC/internal/server/config"
)

func main() {
	cfg, err := config.Load(os.Args[1:], os.Getenv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx := context.Background()
	app, err := server.NewApp(ctx, cfg, os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer app.Close()

	if err := app.Run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
