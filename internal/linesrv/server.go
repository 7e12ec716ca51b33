// Package linesrv serves the newline-delimited JSON socket protocol.
package linesrv

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/devaloi/chatrelay/internal/client"
	"github.com/devaloi/chatrelay/internal/router"
)

// Options tune accepted connections.
type Options struct {
	SendBuffer     int
	MaxMessageSize int64
	WriteTimeout   time.Duration
}

// Server accepts raw socket clients, one Client per connection.
type Server struct {
	router *router.Router
	log    *slog.Logger
	opts   Options

	mu      sync.Mutex
	clients map[*client.Client]struct{}
	wg      sync.WaitGroup
}

// New creates a line server over r.
func New(r *router.Router, log *slog.Logger, opts Options) *Server {
	return &Server{
		router:  r,
		log:     log,
		opts:    opts,
		clients: make(map[*client.Client]struct{}),
	}
}

// Serve accepts connections on ln until ctx is cancelled, then closes every
// open connection and waits for them to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	s.log.Info("line server listening", "address", ln.Addr().String())

	defer s.shutdown()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return err
		}
		s.serveConn(ctx, conn)
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	c := client.New(s.router, client.NewLineConn(conn, s.opts.MaxMessageSize, s.opts.WriteTimeout), s.log, s.opts.SendBuffer)

	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.log.Debug("line client connected", "remote", conn.RemoteAddr().String())
		c.Run(ctx)

		s.mu.Lock()
		delete(s.clients, c)
		s.mu.Unlock()
		s.log.Debug("line client disconnected", "remote", conn.RemoteAddr().String(), "user", c.Session().User())
	}()
}

func (s *Server) shutdown() {
	s.mu.Lock()
	for c := range s.clients {
		c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// Connections returns the number of open connections.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}
