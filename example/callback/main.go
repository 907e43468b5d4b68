package main

import (
	"context"
	"fmt"
	"log"

	"github.com/nset-ornl/covid19/pkg/covidpipe"
)

func main() {
	flow, err := covidpipe.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	callback := func(batch []covidpipe.Action) error {
		for _, act := range batch {
			fmt.Printf("%s id=%s county=%v cases=%v\n",
				act.Op,
				act.ID,
				act.Doc["county"],
				act.Doc["cases"],
			)
		}
		return nil
	}

	if err := flow.Run(ctx, covidpipe.StreamOutCallback("stdout", callback)); err != nil && err != context.Canceled {
		log.Fatalf("transfer error: %v", err)
	}
}
