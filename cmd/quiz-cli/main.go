package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/stemsi/quizly-backend/internal/cli"
	"github.com/stemsi/quizly-backend/internal/client"
)

func main() {
	serverURL := os.Getenv("QUIZLY_URL")
	if serverURL == "" {
		serverURL = client.DefaultBaseURL
	}

	var store client.SessionStore = &client.MemoryStore{}
	if path, err := client.DefaultSessionPath(); err == nil {
		store = client.NewFileStore(path)
	} else {
		fmt.Fprintln(os.Stderr, "warning: no config dir, session will not be saved:", err)
	}

	// Generation can take a while, so the timeout sits above the server's.
	api := client.New(serverURL, &http.Client{Timeout: 90 * time.Second}, store)
	app := cli.New(api, serverURL, os.Stdin, os.Stdout, readPassword)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, cli.ErrUsage) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func readPassword() (string, error) {
	fd := int(syscall.Stdin)
	if !term.IsTerminal(fd) {
		return "", errors.New("password input needs a terminal")
	}
	b, err := term.ReadPassword(fd)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
