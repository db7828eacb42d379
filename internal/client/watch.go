package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// ErrStreamEnded is returned by Watch when the server closes the stream.
var ErrStreamEnded = errors.New("event stream ended")

type Event struct {
	Seq     uint64
	Type    string
	Product Product
}

// Watch subscribes to the change feed and calls fn for every event until ctx
// is done, the server ends the stream, or fn returns an error. ready, when
// not nil, runs once the server has registered the subscription; mutations
// made after that point are observed.
func (c *Client) Watch(ctx context.Context, ready func(), fn func(Event) error) error {
	req, err := c.newRequest(ctx, http.MethodGet, productsPath+"/events", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.Stream.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if err := statusError(resp); err != nil {
		return err
	}
	if ready != nil {
		ready()
	}

	err = readEvents(bufio.NewScanner(resp.Body), fn)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func readEvents(sc *bufio.Scanner, fn func(Event) error) error {
	sc.Buffer(make([]byte, 0, 64<<10), 1<<20)

	var (
		ev   Event
		data strings.Builder
	)
	for sc.Scan() {
		line := sc.Text()

		if line == "" {
			if data.Len() > 0 {
				if err := json.Unmarshal([]byte(data.String()), &ev.Product); err != nil {
					return fmt.Errorf("decode event %d: %w", ev.Seq, err)
				}
				if err := fn(ev); err != nil {
					return err
				}
			}
			ev = Event{}
			data.Reset()
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "id":
			if n, err := strconv.ParseUint(value, 10, 64); err == nil {
				ev.Seq = n
			}
		case "event":
			ev.Type = value
		case "data":
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(value)
		}
	}

	if err := sc.Err(); err != nil {
		return err
	}
	return ErrStreamEnded
}
