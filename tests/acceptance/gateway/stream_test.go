package acceptance_test

import (
	"bufio"
	"context"
	"net/http"
	"strings"
)

// streamClient reads server-sent events from the admin listener
type streamClient struct {
	cancel context.CancelFunc
	lines  chan string
}

// OpenStream subscribes to the event stream; tags is the optional filter
func (te *TestEnvironment) OpenStream(tags string) (*streamClient, error) {
	ctx, cancel := context.WithCancel(context.Background())

	url := te.Config.AdminBaseURL() + "/events"
	if tags != "" {
		url += "?tags=" + tags
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}

	client := &streamClient{cancel: cancel, lines: make(chan string, 256)}
	go func() {
		defer resp.Body.Close()
		defer close(client.lines)

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case client.lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return client, nil
}

// Close disconnects the subscriber
func (c *streamClient) Close() {
	c.cancel()
}

// NextEvent returns the name of the next "event:" line, skipping comments and data
func (c *streamClient) NextEvent() string {
	for line := range c.lines {
		if name, ok := strings.CutPrefix(line, "event: "); ok {
			return name
		}
	}
	return ""
}

// Subscribed waits for the greeting comment sent on connect
func (c *streamClient) Subscribed() bool {
	for line := range c.lines {
		if strings.HasPrefix(line, ": subscribed") {
			return true
		}
	}
	return false
}
