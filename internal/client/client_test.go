package client_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"CatalogFeed/internal/catalog"
	"CatalogFeed/internal/client"
	"CatalogFeed/internal/feed"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newCatalogTS(t *testing.T, guarded bool) *httptest.Server {
	t.Helper()

	hub := feed.NewHub[catalog.Product]()
	svc := catalog.NewService(catalog.NewMemStore(catalog.SeedProducts()...), hub, zap.NewNop())

	s := &catalog.Server{Service: svc, Log: zap.NewNop(), Heartbeat: 50 * time.Millisecond}
	if guarded {
		s.WriteGuard = catalog.RequireRole(catalog.NewTokenMaker(testSecret), catalog.RoleAdmin)
	}

	ts := httptest.NewServer(catalog.NewHandler(s, catalog.HTTPDeps{Log: zap.NewNop(), Service: "catalog"}))
	t.Cleanup(ts.Close)
	t.Cleanup(hub.Close)
	return ts
}

func TestClient_CRUD(t *testing.T) {
	ts := newCatalogTS(t, false)
	c := client.New(ts.URL + "/")
	ctx := context.Background()

	all, err := c.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	sorted, err := c.ListSorted(ctx)
	require.NoError(t, err)
	names := make([]string, 0, len(sorted))
	for _, p := range sorted {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"Headphones", "Keyboard", "Laptop", "Mouse", "Smartphone"}, names)

	cheap, err := c.ListCheaperThan(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, cheap, 2)

	created, err := c.Create(ctx, client.Product{Name: "Monitor", Price: 249.5})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	got, err := c.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)

	updated, err := c.Update(ctx, created.ID, client.Product{ID: "ignored", Name: "Monitor 27", Price: 299})
	require.NoError(t, err)
	assert.Equal(t, client.Product{ID: created.ID, Name: "Monitor 27", Price: 299}, updated)

	require.NoError(t, c.Delete(ctx, created.ID))
	assert.ErrorIs(t, c.Delete(ctx, created.ID), client.ErrNotFound)

	_, err = c.Get(ctx, created.ID)
	assert.ErrorIs(t, err, client.ErrNotFound)

	_, err = c.Update(ctx, "missing", client.Product{Name: "x", Price: 1})
	assert.ErrorIs(t, err, client.ErrNotFound)
}

func TestClient_Validation(t *testing.T) {
	ts := newCatalogTS(t, false)
	c := client.New(ts.URL)

	_, err := c.Create(context.Background(), client.Product{Name: "", Price: 1})
	assert.ErrorIs(t, err, client.ErrBadRequest)
	assert.Contains(t, err.Error(), "name cannot be empty")

	_, err = c.Create(context.Background(), client.Product{Name: "Cable", Price: -1})
	assert.ErrorIs(t, err, client.ErrBadRequest)
}

func TestClient_Token(t *testing.T) {
	ts := newCatalogTS(t, true)
	ctx := context.Background()

	_, err := client.New(ts.URL).Create(ctx, client.Product{Name: "Cable", Price: 5})
	assert.ErrorIs(t, err, client.ErrUnauthorized)

	tok, err := catalog.NewTokenMaker(testSecret).New("ops", catalog.RoleAdmin, time.Minute)
	require.NoError(t, err)

	p, err := client.New(ts.URL, client.WithToken(tok)).Create(ctx, client.Product{Name: "Cable", Price: 5})
	require.NoError(t, err)
	assert.Equal(t, "Cable", p.Name)
}

func TestClient_Unavailable(t *testing.T) {
	ts := httptest.NewServer(nil)
	url := ts.URL
	ts.Close()

	_, err := client.New(url).List(context.Background())
	assert.ErrorIs(t, err, client.ErrUnavailable)
}

var errStop = errors.New("stop")

func TestClient_Watch(t *testing.T) {
	ts := newCatalogTS(t, false)
	c := client.New(ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ready := make(chan struct{})
	events := make(chan client.Event, 8)
	done := make(chan error, 1)
	go func() {
		done <- c.Watch(ctx, func() { close(ready) }, func(ev client.Event) error {
			events <- ev
			if ev.Type == "deleted" {
				return errStop
			}
			return nil
		})
	}()

	select {
	case <-ready:
	case <-ctx.Done():
		t.Fatal("watch never became ready")
	}

	created, err := c.Create(ctx, client.Product{Name: "Webcam", Price: 89})
	require.NoError(t, err)
	_, err = c.Update(ctx, created.ID, client.Product{Name: "Webcam HD", Price: 99})
	require.NoError(t, err)
	require.NoError(t, c.Delete(ctx, created.ID))

	require.ErrorIs(t, <-done, errStop)
	close(events)

	var got []client.Event
	for ev := range events {
		got = append(got, ev)
	}
	require.Len(t, got, 3)

	assert.Equal(t, "created", got[0].Type)
	assert.Equal(t, "updated", got[1].Type)
	assert.Equal(t, "deleted", got[2].Type)
	assert.Equal(t, "Webcam HD", got[2].Product.Name, "delete carries the last known state")
	for i, ev := range got {
		assert.Equal(t, created.ID, ev.Product.ID)
		if i > 0 {
			assert.Greater(t, ev.Seq, got[i-1].Seq)
		}
	}
}

func TestClient_WatchEndsWithServer(t *testing.T) {
	hub := feed.NewHub[catalog.Product]()
	svc := catalog.NewService(catalog.NewMemStore(), hub, nil)
	ts := httptest.NewServer(catalog.NewHandler(&catalog.Server{Service: svc}, catalog.HTTPDeps{}))
	defer ts.Close()

	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- client.New(ts.URL).Watch(context.Background(), func() { close(ready) }, func(client.Event) error { return nil })
	}()

	<-ready
	hub.Close()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, client.ErrStreamEnded)
	case <-time.After(3 * time.Second):
		t.Fatal("watch did not end after feed closed")
	}
}
