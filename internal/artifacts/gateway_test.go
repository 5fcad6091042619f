package artifacts

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPGatewayFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/artifacts/models/m/1.0.0.json":
			_, _ = w.Write([]byte(`{"ok":true}`))
		case "/artifacts/models/broken/1.0.0.json":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	g := NewHTTPGateway(strings.TrimPrefix(srv.URL, "http://"), false)
	ctx := context.Background()

	data, err := g.Fetch(ctx, "artifacts", "models/m/1.0.0.json")
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(data))

	_, err = g.Fetch(ctx, "artifacts", "models/absent/1.0.0.json")
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)

	_, err = g.Fetch(ctx, "artifacts", "models/broken/1.0.0.json")
	assert.True(t, errors.Is(err, ErrUnavailable), "got %v", err)
}

func TestHTTPGatewayUnreachable(t *testing.T) {
	g := NewHTTPGateway("127.0.0.1:1", false)
	_, err := g.Fetch(context.Background(), "artifacts", "x")
	assert.True(t, errors.Is(err, ErrUnavailable), "got %v", err)
}

func TestObjectPathLayout(t *testing.T) {
	assert.Equal(t, "models/reactor-co/1.2.0.json",
		Ref{Class: ClassModel, Key: "reactor-co", Version: "1.2.0"}.ObjectPath())
	assert.Equal(t, "strategies/plant/2.0.0.yaml",
		Ref{Class: ClassStrategy, Key: "plant", Version: "2.0.0"}.ObjectPath())
}
