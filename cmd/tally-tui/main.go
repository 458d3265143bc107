package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/votecast/backend/internal/tui/app"
	"github.com/votecast/backend/internal/tui/client"
)

func main() {
	wsURL := flag.String("url", "ws://127.0.0.1:8080/ws", "WebSocket URL of the tally server")
	secret := flag.String("secret", "", "Admin secret; enables voting keys once granted")
	flag.Parse()

	ws := client.NewWSClient(*wsURL, *secret)

	m := app.New(ws)
	p := tea.NewProgram(m, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
