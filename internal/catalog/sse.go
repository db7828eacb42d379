package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"CatalogFeed/internal/feed"
)

// events streams change events as text/event-stream. Each frame carries the
// feed sequence as id, the change kind as event and the product as data.
func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	log := s.logger()
	rc := http.NewResponseController(w)

	sub := s.Service.Subscribe()
	defer sub.Close()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := rc.Flush(); err != nil {
		log.Warn("event stream not flushable", zap.Error(err))
		return
	}

	heartbeat := s.Heartbeat
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}

	ctx := r.Context()
	for {
		waitCtx, cancel := context.WithTimeout(ctx, heartbeat)
		ev, err := sub.Next(waitCtx)
		cancel()

		switch {
		case err == nil:
			err = writeEvent(w, ev)
		case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
			_, err = io.WriteString(w, ": keepalive\n\n")
		case errors.Is(err, feed.ErrClosed):
			log.Debug("event stream closed by feed", zap.String("subscription_id", sub.ID()))
			return
		default:
			return
		}

		if err == nil {
			err = rc.Flush()
		}
		if err != nil {
			log.Debug("event stream write failed", zap.Error(err), zap.String("subscription_id", sub.ID()))
			return
		}
	}
}

func writeEvent(w io.Writer, ev ChangeEvent) error {
	data, err := json.Marshal(ev.Payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", ev.Seq, ev.Type, data)
	return err
}
