// Package livereload tells connected browsers to reload after a publish.
//
// Browsers connect over socket.io; the livereload stage module injects the
// client snippet into the entry page. After each development publish the
// watch controller calls Notify, which broadcasts ReloadEvent to every
// connected client.
package livereload

import (
	"context"
	"net/http"
	"sync/atomic"

	"github.com/specialistvlad/burstbuild/internal/ctxlog"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io/v2/socket"
)

const (
	// Path is the mount point of the socket.io endpoint.
	Path = "/socket.io/"
	// ClientScript is the URL of the socket.io browser client served at Path.
	ClientScript = Path + "socket.io.min.js"
	// ReloadEvent is emitted with a {"path": ...} payload.
	ReloadEvent = "reload"
)

// Notifier is told about every published build.
type Notifier interface {
	Notify(ctx context.Context, path string) error
}

// Server is a socket.io endpoint broadcasting reload events.
type Server struct {
	io      *socket.Server
	opts    *socket.ServerOptions
	clients atomic.Int64
	sent    atomic.Int64
}

// NewServer creates a Server. Mount Handler at Path on an HTTP server.
func NewServer(ctx context.Context) *Server {
	logger := ctxlog.FromContext(ctx)

	opts := socket.DefaultServerOptions()
	opts.SetServeClient(true)
	opts.SetCors(&types.Cors{Origin: "*", Credentials: true})

	s := &Server{io: socket.NewServer(nil, nil), opts: opts}
	s.io.On("connection", func(clients ...any) {
		client := clients[0].(*socket.Socket)
		n := s.clients.Add(1)
		logger.Debug("Live reload client connected.", "id", client.Id(), "clients", n)
		client.On("disconnect", func(reason ...any) {
			n := s.clients.Add(-1)
			logger.Debug("Live reload client disconnected.", "id", client.Id(), "clients", n)
		})
	})
	return s
}

// Handler serves the socket.io protocol and browser client.
func (s *Server) Handler() http.Handler {
	return s.io.ServeHandler(s.opts)
}

// Clients returns the number of connected clients.
func (s *Server) Clients() int {
	return int(s.clients.Load())
}

// Sent returns the number of reload events broadcast so far.
func (s *Server) Sent() int {
	return int(s.sent.Load())
}

// Notify broadcasts a reload event for path.
func (s *Server) Notify(ctx context.Context, path string) error {
	ctxlog.FromContext(ctx).Info("🔄 Sending live reload.", "path", path, "clients", s.Clients())
	s.io.Emit(ReloadEvent, map[string]any{"path": path})
	s.sent.Add(1)
	return nil
}

// Close disconnects every client.
func (s *Server) Close() {
	s.io.Close(nil)
}
