// Package tcpsync serves lifecycle events to TCP clients as
// newline-delimited JSON. Clients only read; anything they send is ignored.
package tcpsync

import (
	"bufio"
	"errors"
	"log/slog"
	"net"
	"sync"

	jsoniter "github.com/json-iterator/go"

	"libraryhub/pkg/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Server nhận lifecycle events và broadcast cho mọi TCP client
type Server struct {
	mu      sync.Mutex
	clients map[net.Conn]struct{}

	events <-chan models.LifecycleEvent
	once   sync.Once
	log    *slog.Logger
}

func New(events <-chan models.LifecycleEvent, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		clients: make(map[net.Conn]struct{}),
		events:  events,
		log:     log,
	}
}

// Serve accepts clients on ln until it is closed. It returns nil once the
// listener has been closed.
func (s *Server) Serve(ln net.Listener) error {
	s.log.Info("tcp feed listening", "addr", ln.Addr().String())
	s.once.Do(func() { go s.broadcastLoop() })

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.log.Warn("tcp accept", "err", err)
			continue
		}
		s.addClient(conn)
		s.log.Info("tcp client connected", "remote", conn.RemoteAddr().String())

		go s.readLoop(conn)
	}
}

func (s *Server) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Close disconnects every client. The listener belongs to the caller.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.clients {
		delete(s.clients, conn)
		_ = conn.Close()
	}
}

func (s *Server) addClient(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[conn] = struct{}{}
}

func (s *Server) removeClient(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, conn)
	_ = conn.Close()
}

func (s *Server) readLoop(conn net.Conn) {
	// đọc để biết khi nào client disconnect
	sc := bufio.NewScanner(conn)
	for sc.Scan() {
	}
	s.removeClient(conn)
	s.log.Info("tcp client disconnected", "remote", conn.RemoteAddr().String())
}

func (s *Server) broadcastLoop() {
	for ev := range s.events {
		b, err := json.Marshal(ev)
		if err != nil {
			s.log.Error("tcp marshal", "err", err)
			continue
		}
		b = append(b, '\n')

		s.mu.Lock()
		for conn := range s.clients {
			if _, err := conn.Write(b); err != nil {
				delete(s.clients, conn)
				_ = conn.Close()
			}
		}
		s.mu.Unlock()
	}
}
