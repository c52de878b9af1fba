package main

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"

	"libraryhub/pkg/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func main() {
	addr := "127.0.0.1:9090"
	if len(os.Args) > 1 {
		addr = os.Args[1]
	}

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "dial:", err)
		os.Exit(1)
	}
	defer conn.Close()

	fmt.Println("Connected to lifecycle feed:", addr)
	fmt.Println("Waiting for events...")

	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		var ev models.LifecycleEvent
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			fmt.Println("raw:", sc.Text())
			continue
		}
		fmt.Println(format(ev))
	}
	fmt.Println("Disconnected.")
}

func format(ev models.LifecycleEvent) string {
	line := fmt.Sprintf("%s  %-18s %-32s user=%s",
		ev.OccurredAt.Local().Format(time.DateTime), ev.Type, ev.Slug, ev.Username)
	if ev.Actor != "" && ev.Actor != ev.Username {
		line += " by=" + ev.Actor
	}
	return line
}
