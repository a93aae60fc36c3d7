package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/ghalamif/ModFlow/pkg/modflow"
)

func main() {
	flow, err := modflow.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	callback := func(_ context.Context, rec modflow.Record) error {
		fmt.Printf("%s id=%d batch=%s motor_speed=%.1f\n",
			rec.CapturedAt.Format(time.RFC3339),
			rec.ID,
			rec.BatchID,
			rec.Values["motor_speed"],
		)
		return nil
	}

	if err := flow.Run(ctx, modflow.StreamOutCallback("stdout", callback)); err != nil && err != context.Canceled {
		log.Fatalf("runtime error: %v", err)
	}
}
