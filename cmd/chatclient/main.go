// Command chatclient is a terminal chat for a single food post. It polls the
// API for new messages every few seconds.
package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/sakif/foodshare/internal/poller"
)

func main() {
	_ = godotenv.Load()

	server := flag.String("server", envOr("FOODSHARE_SERVER", "http://localhost:8080/api"), "API base URL")
	token := flag.String("token", os.Getenv("FOODSHARE_TOKEN"), "bearer token from /auth/github/callback")
	postID := flag.String("post", "", "food post to chat about")
	userID := flag.String("user", "", "your user id, used to align your own messages")
	flag.Parse()

	if *postID == "" {
		fmt.Fprintln(os.Stderr, "usage: chatclient -post <postId> [-server url] [-token jwt] [-user id]")
		os.Exit(2)
	}

	client := poller.NewClient(*server, *token)
	p := tea.NewProgram(poller.NewModel(client, *postID, *userID), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
