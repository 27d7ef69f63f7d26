// Command deskwatch is a terminal dashboard for a running newsdesk server.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"newsdesk/demo/tui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	defaultURL := "http://localhost:8080"
	if v := os.Getenv("NEWSDESK_URL"); v != "" {
		defaultURL = v
	}
	url := flag.String("url", defaultURL, "Newsdesk API URL")
	interval := flag.Duration("interval", time.Second, "Status poll interval")
	flag.Parse()

	program := tea.NewProgram(tui.NewModel(*url, *interval))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		program.Quit()
	}()

	if _, err := program.Run(); err != nil {
		fmt.Printf("Error running program: %v\n", err)
		os.Exit(1)
	}
}
