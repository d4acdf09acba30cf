package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"crowdlabel/internal/app/bootstrap"
)

// Worker process entrypoint.
// Data flow:
// 1) Load config.
// 2) Build app wiring (Postgres vote store, Redis projection, event bus).
// 3) Refresh tallies on a ticker until SIGINT/SIGTERM.
func main() {
	log.Println("crowdlabel worker starting")
	if err := run(); err != nil {
		log.Fatalf("crowdlabel worker stopped with error: %v", err)
	}
}

func run() error {
	app, err := bootstrap.BuildWorker()
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Printf("worker shutdown close failed: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return app.Run(ctx)
}
