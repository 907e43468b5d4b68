package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/nset-ornl/covid19"
)

func main() {
	flow, err := covid19.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := flow.Run(ctx, covid19.StreamOutProgress(os.Stdout)); err != nil && err != context.Canceled {
		log.Fatalf("transfer exited: %v", err)
	}
}
