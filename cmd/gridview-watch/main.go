// Command gridview-watch is an interactive terminal client for
// watching grid entities through a gateway.
//
// It maintains the same aggregation layer the dashboard backend uses:
// watched entities are fetched once, kept current by the gateway's
// push stream, and re-fetched after reconnects.
//
// Usage:
//
//	gridview-watch [flags]
//
// Flags:
//
//	-api string      Gateway REST base URL
//	-stream string   Gateway push stream URL
//	-discover        Discover the gateway via mDNS
//	-event-log string  CBOR sync-event capture file
//	-version         Show version information
//
// Examples:
//
//	# Connect to a known gateway
//	gridview-watch -api http://gw:8090/api/v1 -stream http://gw:8090/api/v1/changes
//
//	# Discover the gateway on the local network
//	gridview-watch -discover
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

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
	apiBaseURL  = flag.String("api", "", "Gateway REST base URL")
	streamURL   = flag.String("stream", "", "Gateway push stream URL")
	discover    = flag.Bool("discover", false, "Discover the gateway via mDNS")
	eventLog    = flag.String("event-log", "", "CBOR sync-event capture file")
	showVersion = flag.Bool("version", false, "Show version information")
)

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()

	// Show version and exit
	if *showVersion {
		fmt.Printf("gridview-watch %s (built %s, commit %s)\n", Version, BuildDate, GitCommit)
		return 0
	}

	api := *apiBaseURL
	stream := *streamURL

	if *discover && (api == "" || stream == "") {
		fmt.Println("Discovering gateway via mDNS...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		browser := discovery.NewBrowser(discovery.DefaultBrowserConfig())
		gw, err := browser.FindFirst(ctx)
		cancel()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: gateway discovery failed: %v\n", err)
			return 1
		}
		if api == "" {
			api = gw.APIBaseURL()
		}
		if stream == "" {
			stream = gw.StreamURL()
		}
		fmt.Printf("Discovered gateway %q at %s\n", gw.Name, api)
	}
	if api == "" {
		fmt.Fprintln(os.Stderr, "Error: no gateway API URL; use -api or -discover")
		return 1
	}

	var logger synclog.Logger = &synclog.NoopLogger{}
	if *eventLog != "" {
		fileLogger, err := synclog.NewFileLogger(*eventLog)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to open event log: %v\n", err)
			return 1
		}
		defer fileLogger.Close()
		logger = fileLogger
	}

	restClient, err := rest.NewClient(rest.Config{
		BaseURL: api,
		Logger:  logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to create REST client: %v\n", err)
		return 1
	}

	var pushClient *push.Client
	if stream != "" {
		pushClient, err = push.NewClient(push.Config{
			Endpoint: stream,
			Logger:   logger,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to create push client: %v\n", err)
			return 1
		}
		defer pushClient.Close()
	} else {
		fmt.Println("Warning: no push stream URL, running without live invalidation")
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

	console, err := NewConsole(agg, restClient)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	console.Run(ctx, cancel)

	return 0
}
