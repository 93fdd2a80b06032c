// Command gridview-log views and analyzes sync event capture files.
//
// Capture files are created by gridview-web and gridview-watch with
// the -event-log / event_log settings.
//
// Usage:
//
//	gridview-log <command> [flags] <file.cbor>
//
// Commands:
//
//	view     View capture file in human-readable format
//	stats    Show statistics about the capture file
//
// Examples:
//
//	# View all events
//	gridview-log view events.cbor
//
//	# View only push-layer events
//	gridview-log view -source push events.cbor
//
//	# View one entity's fetch failures
//	gridview-log view -entity meter-7 -kind fetch_failed events.cbor
//
//	# Show statistics
//	gridview-log stats events.cbor
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/gridview/gridview-go/pkg/synclog"
)

const usage = `gridview-log - Sync Event Capture Analyzer

Usage:
  gridview-log <command> [flags] <file.cbor>

Commands:
  view     View capture file in human-readable format
  stats    Show statistics about the capture file

Use "gridview-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		os.Exit(runView(args))
	case "stats":
		os.Exit(runStats(args))
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

func runView(args []string) int {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	source := fs.String("source", "", "Filter by source (aggregate, push, rest, observable)")
	kind := fs.String("kind", "", "Filter by kind (fetch, fetch_failed, push_message, push_dropped, connect, disconnect, reconcile, state_change)")
	entity := fs.String("entity", "", "Filter by entity id")
	connID := fs.String("conn-id", "", "Filter by connection id")
	fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: gridview-log view [flags] <file.cbor>")
		return 1
	}

	filter, err := buildFilter(*source, *kind, *entity, *connID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	r, err := synclog.NewFilteredReader(fs.Arg(0), filter)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer r.Close()

	for {
		event, err := r.Next()
		if err == io.EOF {
			return 0
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		printEvent(event)
	}
}

func runStats(args []string) int {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: gridview-log stats <file.cbor>")
		return 1
	}

	r, err := synclog.NewReader(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer r.Close()

	total := 0
	bySource := make(map[string]int)
	byKind := make(map[string]int)
	byEntity := make(map[string]int)
	errors := 0

	for {
		event, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		total++
		bySource[event.Source.String()]++
		byKind[event.Kind.String()]++
		if event.Entity != "" {
			byEntity[event.Entity]++
		}
		if event.Error != "" {
			errors++
		}
	}

	fmt.Printf("Total events: %d\n", total)
	fmt.Printf("Errors:       %d\n", errors)
	printCounts("By source", bySource)
	printCounts("By kind", byKind)
	printCounts("By entity", byEntity)
	return 0
}

func printCounts(title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Printf("\n%s:\n", title)
	for _, k := range keys {
		fmt.Printf("  %-20s %d\n", k, counts[k])
	}
}

func printEvent(event synclog.Event) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %-10s %-13s",
		event.Timestamp.Format("15:04:05.000"), event.Source, event.Kind)
	if event.Entity != "" {
		fmt.Fprintf(&b, "  entity=%s", event.Entity)
	}
	if event.Topic != "" {
		fmt.Fprintf(&b, "  topic=%s", event.Topic)
	}
	if event.ConnectionID != "" {
		fmt.Fprintf(&b, "  conn=%s", shortID(event.ConnectionID))
	}
	if event.Detail != "" {
		fmt.Fprintf(&b, "  %s", event.Detail)
	}
	if event.Error != "" {
		fmt.Fprintf(&b, "  error=%q", event.Error)
	}
	fmt.Println(b.String())
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func buildFilter(source, kind, entity, connID string) (synclog.Filter, error) {
	filter := synclog.Filter{
		Entity:       entity,
		ConnectionID: connID,
	}

	if source != "" {
		s, err := parseSource(source)
		if err != nil {
			return filter, err
		}
		filter.Source = &s
	}
	if kind != "" {
		k, err := parseKind(kind)
		if err != nil {
			return filter, err
		}
		filter.Kind = &k
	}
	return filter, nil
}

func parseSource(name string) (synclog.Source, error) {
	switch strings.ToLower(name) {
	case "aggregate":
		return synclog.SourceAggregate, nil
	case "push":
		return synclog.SourcePush, nil
	case "rest":
		return synclog.SourceRest, nil
	case "observable":
		return synclog.SourceObservable, nil
	default:
		return 0, fmt.Errorf("unknown source %q", name)
	}
}

func parseKind(name string) (synclog.Kind, error) {
	switch strings.ToLower(name) {
	case "fetch":
		return synclog.KindFetch, nil
	case "fetch_failed":
		return synclog.KindFetchFailed, nil
	case "push_message":
		return synclog.KindPushMessage, nil
	case "push_dropped":
		return synclog.KindPushDropped, nil
	case "connect":
		return synclog.KindConnect, nil
	case "disconnect":
		return synclog.KindDisconnect, nil
	case "reconcile":
		return synclog.KindReconcile, nil
	case "state_change":
		return synclog.KindStateChange, nil
	default:
		return 0, fmt.Errorf("unknown kind %q", name)
	}
}
