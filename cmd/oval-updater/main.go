package main

import (
	"context"
	"os"

	"github.com/aquasecurity/oval-updater/pkg"
	"github.com/aquasecurity/oval-updater/pkg/log"
)

var (
	version = "0.0.1"
)

func main() {
	ctx := context.Background()
	ac := pkg.AppConfig{}

	app := ac.NewApp(ctx, version)
	if err := app.Run(os.Args); err != nil {
		log.Error("Fatal error", log.Err(err))
		os.Exit(1)
	}
}
