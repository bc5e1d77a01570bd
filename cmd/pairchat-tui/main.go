package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/karthikraju391/pairchat/chat"
	"github.com/karthikraju391/pairchat/tui"
)

func main() {
	server := flag.String("server", "ws://localhost:8080", "chat server base URL")
	partner := flag.String("partner", "", "user id to chat with")
	token := flag.String("token", os.Getenv("PAIRCHAT_TOKEN"), "JWT (defaults to $PAIRCHAT_TOKEN)")
	flag.Parse()

	if *partner == "" || *token == "" {
		fmt.Fprintln(os.Stderr, "usage: pairchat-tui -partner <id> -token <jwt> [-server ws://host:port]")
		os.Exit(2)
	}

	conn, err := tui.Dial(*server, *partner, *token)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	p := tea.NewProgram(tui.NewModel(conn, *partner), tea.WithAltScreen())
	go conn.Pump(
		func(e chat.Event) { p.Send(tui.EventMsg(e)) },
		func(err error) { p.Send(tui.ClosedMsg{Err: err}) },
	)

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
