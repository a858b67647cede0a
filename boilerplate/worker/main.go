package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"hookfeed/boilerplate/worker/controllers"
	"hookfeed/pkg/event"
	"hookfeed/pkg/worker"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to app config")
	flag.Parse()

	log.SetPrefix("hookfeed/worker-boilerplate ")
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	subCfg, err := worker.LoadSubscriberConfig(*configPath)
	if err != nil {
		log.Fatalf("load subscriber config: %v", err)
	}

	sub, err := worker.BuildSubscriber(ctx, subCfg)
	if err != nil {
		log.Fatalf("subscriber: %v", err)
	}
	defer func() {
		if err := sub.Close(); err != nil {
			log.Printf("subscriber close: %v", err)
		}
	}()

	topics, err := worker.LoadTopicsFromConfig(*configPath)
	if err != nil {
		log.Fatalf("load topics: %v", err)
	}

	wk := worker.New(
		worker.WithSubscriber(sub),
		worker.WithTopics(topics...),
		worker.WithConcurrency(5),
		worker.WithRetry(worker.DropPermanent{}),
	)

	wk.HandleAction(event.ActionPush, controllers.HandleRecord)
	wk.HandleAction(event.ActionPullRequest, controllers.HandleRecord)
	wk.HandleAction(event.ActionMerge, controllers.HandleRecord)

	if err := wk.Run(ctx); err != nil {
		log.Fatal(err)
	}
}
