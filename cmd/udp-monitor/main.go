package main

import (
	"fmt"
	"net"
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"

	"libraryhub/pkg/models"
)

func main() {
	server := "127.0.0.1:7070"
	if len(os.Args) > 1 {
		server = os.Args[1]
	}

	serverAddr, err := net.ResolveUDPAddr("udp", server)
	if err != nil {
		fmt.Fprintln(os.Stderr, "resolve:", err)
		os.Exit(1)
	}

	// Bind local port random (:0) để vừa send SUBSCRIBE vừa receive trên cùng socket
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		fmt.Fprintln(os.Stderr, "listen:", err)
		os.Exit(1)
	}
	defer conn.Close()

	if _, err := conn.WriteToUDP([]byte("SUBSCRIBE"), serverAddr); err != nil {
		fmt.Fprintln(os.Stderr, "subscribe:", err)
		os.Exit(1)
	}

	fmt.Println("UDP monitor subscribed to:", server)
	fmt.Println("Local addr:", conn.LocalAddr().String())
	fmt.Println("Waiting for announcements...")

	buf := make([]byte, 4096)
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			fmt.Println("read error:", err)
			continue
		}
		var a models.Announcement
		if err := jsoniter.Unmarshal(buf[:n], &a); err != nil {
			fmt.Println("raw:", string(buf[:n]))
			continue
		}
		fmt.Printf("[%s] %s: %s\n", time.Unix(a.Timestamp, 0).Format(time.DateTime), a.From, a.Message)
	}
}
