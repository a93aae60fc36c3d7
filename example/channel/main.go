package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/ghalamif/ModFlow"
)

func main() {
	flow, err := modflow.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pub, records, closeRecords := modflow.NewChannelPublisher("fanout", 32)
	defer closeRecords()

	go fanoutWorker("report", records)

	if err := flow.Run(ctx, modflow.StreamOutPublisher(pub)); err != nil && err != context.Canceled {
		log.Fatalf("runtime error: %v", err)
	}
}

func fanoutWorker(name string, records <-chan modflow.Record) {
	for rec := range records {
		payload, err := json.Marshal(rec.Fields())
		if err != nil {
			log.Printf("[%s] encode record %d: %v", name, rec.ID, err)
			continue
		}
		fmt.Printf("[%s] %s\n", name, payload)
	}
}
