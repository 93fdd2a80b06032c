// Command gridview-web serves a browser dashboard backend for a fleet
// of grid devices behind a gateway.
//
// It offers:
//   - REST API exposing cached entity states and an action proxy
//   - Server-sent event stream fanning live updates out to browsers
//   - SQLite persistence for entity state history
//
// All browser clients share one aggregator: the same entity watched
// from any number of tabs costs one upstream fetch and one upstream
// push topic.
//
// Usage:
//
//	gridview-web [flags]
//
// Flags:
//
//	-config string   YAML configuration file
//	-port int        HTTP server port (default 8080)
//	-api string      Gateway REST base URL (overrides config)
//	-stream string   Gateway push stream URL (overrides config)
//	-discover        Discover the gateway via mDNS
//	-db string       SQLite database path (default "./gridview-web.db")
//	-version         Show version information
//
// Examples:
//
//	# Point at a known gateway
//	gridview-web -api http://gw:8090/api/v1 -stream http://gw:8090/api/v1/changes
//
//	# Discover the gateway on the local network
//	gridview-web -discover
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gridview/gridview-go/cmd/gridview-web/api"
	"github.com/gridview/gridview-go/pkg/aggregate"
	"github.com/gridview/gridview-go/pkg/discovery"
	"github.com/gridview/gridview-go/pkg/push"
	"github.com/gridview/gridview-go/pkg/rest"
	"github.com/gridview/gridview-go/pkg/synclog"
)

// Version information - set at build time via ldflags
var (
	Version   = "0.1.0"
	BuildDate = "dev"
	GitCommit = "unknown"
)

var (
	configPath  = flag.String("config", "", "YAML configuration file")
	port        = flag.Int("port", 0, "HTTP server port (overrides config)")
	apiBaseURL  = flag.String("api", "", "Gateway REST base URL (overrides config)")
	streamURL   = flag.String("stream", "", "Gateway push stream URL (overrides config)")
	discover    = flag.Bool("discover", false, "Discover the gateway via mDNS")
	dbPath      = flag.String("db", "", "SQLite database path (overrides config)")
	showVersion = flag.Bool("version", false, "Show version information")
)

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()

	// Show version and exit
	if *showVersion {
		fmt.Printf("gridview-web %s (built %s, commit %s)\n", Version, BuildDate, GitCommit)
		return 0
	}

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if *port > 0 {
		cfg.Port = *port
	}
	if *apiBaseURL != "" {
		cfg.Gateway.APIBaseURL = *apiBaseURL
	}
	if *streamURL != "" {
		cfg.Gateway.StreamURL = *streamURL
	}
	if *discover {
		cfg.Gateway.Discover = true
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	log.SetFlags(log.Ldate | log.Ltime)

	// Resolve the gateway via mDNS when no endpoints are configured
	if cfg.Gateway.Discover && (cfg.Gateway.APIBaseURL == "" || cfg.Gateway.StreamURL == "") {
		log.Printf("Discovering gateway via mDNS...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		browser := discovery.NewBrowser(discovery.DefaultBrowserConfig())
		gw, err := browser.FindFirst(ctx)
		cancel()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: gateway discovery failed: %v\n", err)
			return 1
		}
		if cfg.Gateway.APIBaseURL == "" {
			cfg.Gateway.APIBaseURL = gw.APIBaseURL()
		}
		if cfg.Gateway.StreamURL == "" {
			cfg.Gateway.StreamURL = gw.StreamURL()
		}
		log.Printf("Discovered gateway %q at %s", gw.Name, cfg.Gateway.APIBaseURL)
	}
	if cfg.Gateway.APIBaseURL == "" {
		fmt.Fprintln(os.Stderr, "Error: no gateway API URL; use -api, -discover, or a config file")
		return 1
	}

	// Sync event capture
	var logger synclog.Logger = &synclog.NoopLogger{}
	if cfg.EventLog != "" {
		fileLogger, err := synclog.NewFileLogger(cfg.EventLog)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to open event log: %v\n", err)
			return 1
		}
		defer fileLogger.Close()
		logger = fileLogger
	}

	restClient, err := rest.NewClient(rest.Config{
		BaseURL: cfg.Gateway.APIBaseURL,
		Logger:  logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to create REST client: %v\n", err)
		return 1
	}

	var pushClient *push.Client
	if cfg.Gateway.StreamURL != "" {
		pushClient, err = push.NewClient(push.Config{
			Endpoint: cfg.Gateway.StreamURL,
			Logger:   logger,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to create push client: %v\n", err)
			return 1
		}
		defer pushClient.Close()
	} else {
		log.Printf("Warning: no push stream URL, running without live invalidation")
	}

	agg, err := aggregate.New(aggregate.Config{
		Fetcher: aggregate.FetcherFunc(func(ctx context.Context, id aggregate.EntityID) (any, error) {
			return restClient.GetEntity(ctx, string(id))
		}),
		Push:   pushClient,
		Logger: logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to create aggregator: %v\n", err)
		return 1
	}
	defer agg.Close()

	store, err := api.NewStore(cfg.DBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open database: %v\n", err)
		return 1
	}
	defer store.Close()

	recorder := api.NewRecorder(agg, store)
	if len(cfg.Record) > 0 {
		if err := recorder.Start(cfg.Record); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		defer recorder.Stop()
		log.Printf("Recording state history for %d entities", len(cfg.Record))
	}

	srv := NewServer(cfg,
		api.NewEntitiesAPI(agg, restClient, store),
		api.NewStreamAPI(agg),
		Version,
	)

	log.Printf("Starting GridView Web on http://localhost:%d", cfg.Port)
	log.Printf("Gateway API: %s", cfg.Gateway.APIBaseURL)
	log.Printf("Database: %s", cfg.DBPath)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "Error: server failed: %v\n", err)
			return 1
		}
	case sig := <-sigCh:
		log.Printf("Received %v, shutting down", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: shutdown failed: %v\n", err)
			return 1
		}
	}

	return 0
}
