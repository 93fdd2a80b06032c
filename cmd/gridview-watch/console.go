package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/gridview/gridview-go/pkg/aggregate"
	"github.com/gridview/gridview-go/pkg/rest"
)

// Console handles the interactive watch loop. One token per watched
// entity id; updates print through the readline writer so they do not
// clobber the prompt.
type Console struct {
	agg  *aggregate.Aggregator
	rest *rest.Client
	rl   *readline.Instance

	watched map[string]aggregate.Token
}

// NewConsole creates a new interactive console.
func NewConsole(agg *aggregate.Aggregator, restClient *rest.Client) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "watch> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	return &Console{
		agg:     agg,
		rest:    restClient,
		rl:      rl,
		watched: make(map[string]aggregate.Token),
	}, nil
}

// Run starts the interactive command loop.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()

	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			// EOF or interrupt
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			c.printHelp()

		case "watch", "w":
			c.cmdWatch(args)

		case "unwatch", "u":
			c.cmdUnwatch(args)

		case "get", "g":
			c.cmdGet(args)

		case "act", "a":
			c.cmdAct(args)

		case "list", "l":
			c.cmdList()

		case "quit", "exit", "q":
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return

		default:
			fmt.Fprintf(c.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.rl.Stdout(), `
GridView Watch Commands:
  watch <id>             - Watch an entity; updates print as they arrive
  unwatch <id>           - Stop watching an entity
  get <id>               - Show the cached state of a watched entity
  act <id> <name> [json] - Invoke an action on an entity via the gateway
  list                   - List watched entities
  help                   - Show this help
  quit                   - Exit`)
}

// cmdWatch subscribes to an entity and prints every resolved state.
func (c *Console) cmdWatch(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: watch <id>")
		return
	}
	id := args[0]
	if _, ok := c.watched[id]; ok {
		fmt.Fprintf(c.rl.Stdout(), "Already watching %s\n", id)
		return
	}

	tok, err := c.agg.Subscribe(aggregate.EntityID(id), func(u aggregate.Update) {
		c.printUpdate(u)
	})
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Error: %v\n", err)
		return
	}
	c.watched[id] = tok
	fmt.Fprintf(c.rl.Stdout(), "Watching %s\n", id)
}

// cmdUnwatch drops the subscription for an entity.
func (c *Console) cmdUnwatch(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: unwatch <id>")
		return
	}
	id := args[0]
	tok, ok := c.watched[id]
	if !ok {
		fmt.Fprintf(c.rl.Stdout(), "Not watching %s\n", id)
		return
	}
	if err := c.agg.Unsubscribe(tok); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Error: %v\n", err)
		return
	}
	delete(c.watched, id)
	fmt.Fprintf(c.rl.Stdout(), "Stopped watching %s\n", id)
}

// cmdGet prints the cached state of an entity.
func (c *Console) cmdGet(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: get <id>")
		return
	}
	id := args[0]
	value, ok := c.agg.Peek(aggregate.EntityID(id))
	if !ok {
		fmt.Fprintf(c.rl.Stdout(), "%s: <absent>\n", id)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "%s: %s\n", id, formatValue(value))
}

// cmdAct invokes an action on the gateway.
func (c *Console) cmdAct(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: act <id> <name> [json-params]")
		return
	}
	id, action := args[0], args[1]

	var params any
	if len(args) > 2 {
		raw := strings.Join(args[2:], " ")
		if err := json.Unmarshal([]byte(raw), &params); err != nil {
			fmt.Fprintf(c.rl.Stdout(), "Invalid params: %v\n", err)
			return
		}
	}

	ctx, cancelReq := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelReq()
	if err := c.rest.InvokeAction(ctx, id, action, params); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Error: %v\n", err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "Action %s invoked on %s\n", action, id)
}

// cmdList prints the watched entities and their cached states.
func (c *Console) cmdList() {
	if len(c.watched) == 0 {
		fmt.Fprintln(c.rl.Stdout(), "Not watching anything")
		return
	}

	ids := make([]string, 0, len(c.watched))
	for id := range c.watched {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if value, ok := c.agg.Peek(aggregate.EntityID(id)); ok {
			fmt.Fprintf(c.rl.Stdout(), "  %s: %s\n", id, formatValue(value))
		} else {
			fmt.Fprintf(c.rl.Stdout(), "  %s: <absent>\n", id)
		}
	}
}

// printUpdate prints one delivered update without clobbering the prompt.
func (c *Console) printUpdate(u aggregate.Update) {
	if !u.Present {
		fmt.Fprintf(c.rl.Stdout(), "[%s] %s: <absent>\n", time.Now().Format("15:04:05"), u.ID)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "[%s] %s: %s\n", time.Now().Format("15:04:05"), u.ID, formatValue(u.Value))
}

// formatValue renders a cached value for terminal display. Fetched
// values are raw JSON; anything else falls back to %v.
func formatValue(value any) string {
	switch v := value.(type) {
	case json.RawMessage:
		return string(v)
	case []byte:
		return string(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
