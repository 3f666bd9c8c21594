package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"chatterm/internal/api"
	"chatterm/internal/client"
	"chatterm/internal/config"
	"chatterm/internal/session"
	"chatterm/internal/socket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	dir, err := config.Dir()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	sessions := session.NewStore(filepath.Join(dir, "session.toml"))

	if exp, ok := sessions.ExpiresAt(); ok && time.Until(exp) < time.Minute {
		fmt.Fprintln(os.Stderr, "stored session is expired or about to expire; you may need to log in again")
	}

	app := client.NewApp(
		api.New(cfg.APIURL, sessions),
		sessions,
		socket.NewManager(cfg.ResolveSocketURL(), sessions, socket.DefaultBackoff()),
	)
	if err := app.Run(); err != nil {
		log.Fatalf("client: %v", err)
	}
}
