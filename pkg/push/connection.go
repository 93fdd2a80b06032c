package push

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/gridview/gridview-go/pkg/topic"
)

// TopicsParam is the query parameter carrying the topic filter.
const TopicsParam = "topics"

// maxEventSize bounds a single stream event, including continuation
// lines. Topic payloads are tiny; anything larger is hostile input.
const maxEventSize = 64 * 1024

// conn wraps one open push stream scoped to a fixed topic set
// snapshot. It exists iff the desired set was non-empty at dial time.
type conn struct {
	// id is a UUID for log correlation across the connection lifetime.
	id string

	// topics is the immutable scope this connection was opened with.
	topics *topic.Set

	body   io.ReadCloser
	cancel context.CancelFunc
}

// dial opens a push stream for exactly the given topic set.
func dial(ctx context.Context, httpClient *http.Client, endpoint string, topics *topic.Set) (*conn, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid push endpoint: %w", err)
	}
	q := u.Query()
	q.Set(TopicsParam, topics.FilterString())
	u.RawQuery = q.Encode()

	ctx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("push endpoint returned status %d", resp.StatusCode)
	}

	return &conn{
		id:     uuid.NewString(),
		topics: topics.Clone(),
		body:   resp.Body,
		cancel: cancel,
	}, nil
}

// close tears the stream down. Safe to call more than once.
func (c *conn) close() {
	c.cancel()
	c.body.Close()
}

// read consumes the event stream, invoking onData with each complete
// event payload. It returns when the stream ends; io.EOF means the
// server closed cleanly.
func (c *conn) read(onData func(data []byte)) error {
	scanner := bufio.NewScanner(c.body)
	scanner.Buffer(make([]byte, 0, 4096), maxEventSize)

	var data []byte
	for scanner.Scan() {
		line := scanner.Text()

		// Blank line terminates an event.
		if line == "" {
			if len(data) > 0 {
				onData(data)
				data = nil
			}
			continue
		}

		// Comment lines double as keepalives.
		if strings.HasPrefix(line, ":") {
			continue
		}

		if value, ok := strings.CutPrefix(line, "data:"); ok {
			value = strings.TrimPrefix(value, " ")
			if len(data) > 0 {
				data = append(data, '\n')
			}
			data = append(data, value...)
		}
		// Other fields (event:, id:, retry:) are ignored: the stream
		// carries no replay contract, so event ids mean nothing here.
	}

	if len(data) > 0 {
		onData(data)
	}

	if err := scanner.Err(); err != nil {
		return err
	}
	return io.EOF
}
