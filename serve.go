package main

import (
	"context"
	"expvar"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"hookfeed/internal"
	"hookfeed/pkg/api"
	"hookfeed/pkg/event"
	"hookfeed/pkg/webhook"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook and events HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := internal.NewLogger("server")
	config, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := internal.OpenStore(ctx, config.Storage)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()
	logger.Printf("storage driver=%s", config.Storage.Driver)

	var sink webhook.RecordSink
	if config.Publish.Enabled {
		ruleEngine, err := internal.NewRuleEngine(internal.RulesConfig{
			Rules:  config.Rules,
			Logger: internal.NewLogger("rules"),
		})
		if err != nil {
			return fmt.Errorf("compile rules: %w", err)
		}
		publisher, err := internal.NewPublisher(config.Publish.Watermill)
		if err != nil {
			return fmt.Errorf("publisher: %w", err)
		}
		defer publisher.Close()
		sink = internal.NewDispatcher(publisher, ruleEngine, config.Publish.Topic, internal.NewLogger("publish"))
		logger.Printf("publishing enabled topic=%s rules=%d", config.Publish.Topic, ruleEngine.Len())
	}

	clock := event.SystemClock
	mux := http.NewServeMux()

	ghHandler := webhook.NewGitHubHandler(
		store,
		event.NewNormalizer(clock),
		sink,
		internal.NewLogger("github"),
		config.Server.MaxBodyBytes,
		config.Server.Debug,
	)
	ghHandler.SetDispatchTimeout(time.Duration(config.Publish.DispatchTimeoutMS) * time.Millisecond)
	mux.Handle(config.Server.WebhookPath, internal.NewRateLimitHandler(
		ghHandler,
		config.Server.RateLimitRPS,
		config.Server.RateLimitBurst,
		10*time.Minute,
	))
	logger.Printf("github webhook enabled on %s", config.Server.WebhookPath)

	mux.Handle("/api/events", &api.EventsHandler{
		Store:  store,
		Limit:  config.Query.Limit,
		Clock:  clock,
		Logger: internal.NewLogger("api"),
	})
	mux.Handle("/healthz", api.HealthHandler{})
	mux.Handle("/", api.IndexHandler{})
	if config.Server.MetricsEnabled {
		mux.Handle(config.Server.MetricsPath, expvar.Handler())
		logger.Printf("metrics enabled on %s", config.Server.MetricsPath)
	}

	addr := ":" + strconv.Itoa(config.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       time.Duration(config.Server.ReadTimeoutMS) * time.Millisecond,
		WriteTimeout:      time.Duration(config.Server.WriteTimeoutMS) * time.Millisecond,
		IdleTimeout:       time.Duration(config.Server.IdleTimeoutMS) * time.Millisecond,
		ReadHeaderTimeout: time.Duration(config.Server.ReadHeaderMS) * time.Millisecond,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	serveErr := make(chan error, 1)
	go func() {
		logger.Printf("listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-shutdown:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("shutdown: %v", err)
	}
	return nil
}
