package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/nset-ornl/covid19"
)

func main() {
	flow, err := covid19.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, batches, closeBatches := covid19.NewChannelStore("fanout", 32)
	defer closeBatches()

	go fanoutWorker("ingest", batches)

	if err := flow.Run(ctx, covid19.StreamOutStore(store)); err != nil && err != context.Canceled {
		log.Fatalf("transfer error: %v", err)
	}
}

func fanoutWorker(name string, batches <-chan []covid19.Action) {
	for batch := range batches {
		fmt.Printf("[%s] forwarding %d documents at %s\n", name, len(batch), time.Now().Format(time.RFC3339))
		// TODO: forward to downstream DB/API.
	}
}
