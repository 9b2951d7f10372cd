package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/msgbox/internal/logging"
	"github.com/dmitrijs2005/msgbox/internal/server"
	"github.com/dmitrijs2005/msgbox/internal/server/config"
)

func main() {

	ctx := context.Background()
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("%v", err)
	}

	logger := logging.NewJSON(os.Stdout, cfg.LogLevel)

	app, err := server.NewApp(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "startup failed", "error", err.Error())
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		logger.Error(ctx, "server stopped with error", "error", err.Error())
		os.Exit(1)
	}

}
