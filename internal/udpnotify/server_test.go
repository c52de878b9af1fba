package udpnotify

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libraryhub/pkg/models"
)

func start(t *testing.T) (*Server, *net.UDPAddr) {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	s := New(nil)
	s.now = func() time.Time { return time.Unix(1741597200, 0) }
	go s.Serve(conn)
	t.Cleanup(func() { conn.Close() })
	return s, conn.LocalAddr().(*net.UDPAddr)
}

func subscriber(t *testing.T, server *net.UDPAddr, s *Server, want int) *net.UDPConn {
	t.Helper()
	c, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	_, err = c.WriteToUDP([]byte("subscribe\n"), server)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return s.Count() == want }, 2*time.Second, 10*time.Millisecond)
	return c
}

func Test_Broadcast(t *testing.T) {
	s, addr := start(t)
	c := subscriber(t, addr, s, 1)

	assert.Equal(t, 1, s.Broadcast("librarian", "Library closes early on Friday."))

	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 2048)
	n, _, err := c.ReadFromUDP(buf)
	require.NoError(t, err)

	var a models.Announcement
	require.NoError(t, json.Unmarshal(buf[:n], &a))
	assert.Equal(t, models.Announcement{
		Type:      "announcement",
		From:      "librarian",
		Message:   "Library closes early on Friday.",
		Timestamp: 1741597200,
	}, a)
}

func Test_Unsubscribe(t *testing.T) {
	s, addr := start(t)
	c := subscriber(t, addr, s, 1)

	_, err := c.WriteToUDP([]byte("UNSUBSCRIBE"), addr)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return s.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Zero(t, s.Broadcast("librarian", "nobody hears this"))
}

func Test_BroadcastBeforeServe(t *testing.T) {
	assert.Zero(t, New(nil).Broadcast("librarian", "too early"))
}
