// Package udpnotify broadcasts librarian announcements to UDP subscribers.
//
// Protocol: a client sends "SUBSCRIBE" to be added and "UNSUBSCRIBE" to be
// removed. Every announcement is one JSON datagram.
package udpnotify

import (
	"errors"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	"libraryhub/pkg/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Server struct {
	mu      sync.Mutex
	clients map[string]*net.UDPAddr // key = ip:port
	conn    *net.UDPConn

	now func() time.Time
	log *slog.Logger
}

func New(log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		clients: make(map[string]*net.UDPAddr),
		now:     time.Now,
		log:     log,
	}
}

// Serve handles subscriptions on conn until it is closed.
func (s *Server) Serve(conn *net.UDPConn) error {
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	s.log.Info("udp announcer listening", "addr", conn.LocalAddr().String())

	buf := make([]byte, 2048)
	for {
		n, clientAddr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.log.Warn("udp read", "err", err)
			continue
		}

		switch strings.ToUpper(strings.TrimSpace(string(buf[:n]))) {
		case "SUBSCRIBE":
			s.mu.Lock()
			s.clients[clientAddr.String()] = clientAddr
			total := len(s.clients)
			s.mu.Unlock()
			s.log.Info("udp subscribed", "remote", clientAddr.String(), "total", total)
		case "UNSUBSCRIBE":
			s.mu.Lock()
			delete(s.clients, clientAddr.String())
			total := len(s.clients)
			s.mu.Unlock()
			s.log.Info("udp unsubscribed", "remote", clientAddr.String(), "total", total)
		}
	}
}

func (s *Server) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Broadcast sends an announcement to every subscriber and returns how many
// datagrams went out.
func (s *Server) Broadcast(from, message string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		s.log.Warn("udp announcer not started, announcement dropped")
		return 0
	}

	b, err := json.Marshal(models.Announcement{
		Type:      "announcement",
		From:      from,
		Message:   message,
		Timestamp: s.now().Unix(),
	})
	if err != nil {
		s.log.Error("udp marshal", "err", err)
		return 0
	}

	sent := 0
	for key, addr := range s.clients {
		if _, err := s.conn.WriteToUDP(b, addr); err != nil {
			s.log.Warn("udp send failed", "remote", key, "err", err)
			continue
		}
		sent++
	}
	return sent
}
