package livereload

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	client "github.com/zishang520/socket.io-client-go/socket"
)

func TestServer_BroadcastsReload(t *testing.T) {
	ctx := context.Background()
	srv := NewServer(ctx)
	t.Cleanup(srv.Close)

	mux := http.NewServeMux()
	mux.Handle(Path, srv.Handler())
	httpSrv := httptest.NewServer(mux)
	t.Cleanup(httpSrv.Close)

	opts := client.DefaultOptions()
	opts.SetPath(Path)
	opts.SetTransports(types.NewSet(transports.WebSocket))
	manager := client.NewManager(httpSrv.URL, opts)
	io := manager.Socket("/", opts)
	t.Cleanup(func() { io.Disconnect() })

	connected := make(chan struct{}, 1)
	received := make(chan any, 1)
	io.Once(types.EventName("connect"), func(...any) { connected <- struct{}{} })
	io.On(types.EventName(ReloadEvent), func(data ...any) {
		if len(data) > 0 {
			received <- data[0]
		}
	})
	io.Connect()

	select {
	case <-connected:
	case <-time.After(5 * time.Second):
		t.Fatal("client did not connect")
	}
	require.Eventually(t, func() bool { return srv.Clients() == 1 }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, srv.Notify(ctx, "index.html"))
	select {
	case payload := <-received:
		assert.Equal(t, map[string]any{"path": "index.html"}, payload)
	case <-time.After(5 * time.Second):
		t.Fatal("reload event not received")
	}
	assert.Equal(t, 1, srv.Sent())
}

func TestServer_NotifyWithoutClients(t *testing.T) {
	srv := NewServer(context.Background())
	t.Cleanup(srv.Close)
	assert.NoError(t, srv.Notify(context.Background(), "index.html"))
	assert.NoError(t, srv.Notify(context.Background(), "index.html"))
	assert.Zero(t, srv.Clients())
	assert.Equal(t, 2, srv.Sent())
}
