package recommend

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sorpresa-shop/backend/internal/domain"
)

type stubFinder struct {
	received []string
	products []domain.Product
	err      error
}

func (s *stubFinder) FindByNames(_ context.Context, names []string) ([]domain.Product, error) {
	s.received = names
	if s.err != nil {
		return nil, s.err
	}
	return s.products, nil
}

func newTestClient(t *testing.T, handler http.HandlerFunc, finder *stubFinder) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClient(server.URL, &http.Client{Timeout: 200 * time.Millisecond}, finder, nil, time.Minute, logger)
}

func TestForProductExpandsNames(t *testing.T) {
	finder := &stubFinder{products: []domain.Product{{ID: "p2", Name: "Vela aromatica"}}}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/recommend/Taza", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"recommendations":["Vela aromatica","Llavero"]}`)
	}, finder)

	products := client.ForProduct(context.Background(), "Taza")

	assert.Equal(t, []string{"Vela aromatica", "Llavero"}, finder.received)
	assert.Len(t, products, 1)
	assert.Equal(t, "p2", products[0].ID)
}

func TestForProductCapsAtFiveNames(t *testing.T) {
	finder := &stubFinder{products: []domain.Product{}}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"recommendations":["a","b","c","d","e","f","g"]}`)
	}, finder)

	client.ForProduct(context.Background(), "Taza")

	assert.Len(t, finder.received, 5)
}

func TestForProductEmptyOnBadStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}, &stubFinder{})

	assert.Empty(t, client.ForProduct(context.Background(), "Taza"))
}

func TestForProductEmptyOnMalformedBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"recomendaciones": oops`)
	}, &stubFinder{})

	assert.Empty(t, client.ForProduct(context.Background(), "Taza"))
}

func TestForProductEmptyOnMissingField(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"something_else": []}`)
	}, &stubFinder{})

	assert.Empty(t, client.ForProduct(context.Background(), "Taza"))
}

func TestForProductEmptyOnTimeout(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		_, _ = io.WriteString(w, `{"recommendations":[]}`)
	}, &stubFinder{})

	assert.Empty(t, client.ForProduct(context.Background(), "Taza"))
}

func TestForProductNilOrUnconfiguredClient(t *testing.T) {
	var client *Client
	assert.Empty(t, client.ForProduct(context.Background(), "Taza"))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	unconfigured := NewClient("", nil, nil, nil, 0, logger)
	assert.Empty(t, unconfigured.ForProduct(context.Background(), "Taza"))
}
