package main

import (
	"log"
	"os"

	"chatterm/internal/server"
)

func main() {
	path := os.Getenv("CHATTERM_DB")
	if path == "" {
		path = "chatterm.db"
	}

	db, err := server.Connect(path)
	if err != nil {
		log.Fatalf("database: %v", err)
	}

	addr := os.Getenv("CHATTERM_ADDR")
	if addr == "" {
		addr = ":9876"
	}

	log.Printf("listening on %s", addr)
	if err := server.New(db).Run(addr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
