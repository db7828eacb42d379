package catalog

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"CatalogFeed/pkg/kit"
)

const (
	maxBodyBytes     = 1 << 20
	defaultHeartbeat = 15 * time.Second
)

type Server struct {
	Service *Service
	Log     *zap.Logger

	// Heartbeat is the idle interval after which the event stream writes a
	// keepalive comment.
	Heartbeat time.Duration

	// WriteGuard, when set, wraps the mutating routes.
	WriteGuard func(http.Handler) http.Handler
	// SubscribeLimit, when set, wraps the event stream route.
	SubscribeLimit func(http.Handler) http.Handler
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/", s.list)
	r.Get("/sorted", s.listSorted)
	r.Get("/cheaper", s.listCheaper)
	r.With(optional(s.SubscribeLimit)).Get("/events", s.events)
	r.Get("/{id}", s.get)

	r.Group(func(wr chi.Router) {
		wr.Use(optional(s.WriteGuard))
		wr.Post("/", s.create)
		wr.Put("/{id}", s.update)
		wr.Delete("/{id}", s.delete)
	})

	return r
}

func optional(mw func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	if mw != nil {
		return mw
	}
	return func(next http.Handler) http.Handler { return next }
}

func (s *Server) logger() *zap.Logger {
	if s.Log != nil {
		return s.Log
	}
	return zap.NewNop()
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	raw, ok := r.URL.Query()["cheaperThan"]
	if !ok {
		kit.WriteJSON(w, http.StatusOK, s.Service.List())
		return
	}

	maxPrice, err := parsePrice(raw[0])
	if err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "invalid price format", map[string]any{"cheaperThan": raw[0]})
		return
	}
	kit.WriteJSON(w, http.StatusOK, s.Service.ListCheaperThan(maxPrice))
}

func (s *Server) listSorted(w http.ResponseWriter, _ *http.Request) {
	kit.WriteJSON(w, http.StatusOK, s.Service.ListSorted())
}

func (s *Server) listCheaper(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("cheaperThan")
	if raw == "" {
		kit.WriteError(w, r, http.StatusBadRequest, "missing 'cheaperThan' parameter", nil)
		return
	}

	maxPrice, err := parsePrice(raw)
	if err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "invalid price format", map[string]any{"cheaperThan": raw})
		return
	}
	kit.WriteJSON(w, http.StatusOK, s.Service.ListCheaperThan(maxPrice))
}

var errNaN = errors.New("price is not a number")

func parsePrice(raw string) (float64, error) {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) {
		return 0, errNaN
	}
	return f, nil
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	p, ok := s.Service.GetByID(id)
	if !ok {
		kit.WriteError(w, r, http.StatusNotFound, "not found", map[string]any{"id": id})
		return
	}
	kit.WriteJSON(w, http.StatusOK, p)
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	p, err := decodeProduct(w, r)
	if err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "invalid product data", map[string]any{"cause": err.Error()})
		return
	}
	if err := p.Validate(); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, err.Error(), nil)
		return
	}

	saved := s.Service.Create(p)
	if c, ok := ClaimsFromContext(r.Context()); ok {
		s.logger().Debug("create by", zap.String("subject", c.Subject), zap.String("id", saved.ID))
	}

	w.Header().Set("Location", strings.TrimSuffix(r.URL.Path, "/")+"/"+saved.ID)
	kit.WriteJSON(w, http.StatusCreated, saved)
}

func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	p, err := decodeProduct(w, r)
	if err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "invalid product data", map[string]any{"cause": err.Error()})
		return
	}
	if err := p.Validate(); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, err.Error(), nil)
		return
	}

	saved, ok := s.Service.Update(id, p)
	if !ok {
		kit.WriteError(w, r, http.StatusNotFound, "not found", map[string]any{"id": id})
		return
	}
	kit.WriteJSON(w, http.StatusOK, saved)
}

func (s *Server) delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if !s.Service.Delete(id) {
		kit.WriteError(w, r, http.StatusNotFound, "not found", map[string]any{"id": id})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

var errTrailingData = errors.New("extra data after json object")

func decodeProduct(w http.ResponseWriter, r *http.Request) (Product, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer func() { _ = r.Body.Close() }()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var p Product
	if err := dec.Decode(&p); err != nil {
		return Product{}, err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return Product{}, errTrailingData
	}
	return p, nil
}
