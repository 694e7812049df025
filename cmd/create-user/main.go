package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/stemsi/quizly-backend/internal/config"
	"github.com/stemsi/quizly-backend/internal/database"
	"github.com/stemsi/quizly-backend/internal/logger"
	"github.com/stemsi/quizly-backend/internal/model"
	"github.com/stemsi/quizly-backend/internal/repository"
	"github.com/stemsi/quizly-backend/internal/service"
)

// create-user registers an account from the terminal, mainly to seed a
// teacher before the web client exists.
func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// No blocklist: the token printed here is never revoked.
	authService := service.NewAuthService(cfg, repository.NewUserRepository(pool), nil, log)

	// ─── CLI Input ─────────────────────────────────────────────────────
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("=== Create New User ===")

	name := prompt(reader, "Enter Name: ")
	if name == "" {
		fmt.Println("Error: Name is required")
		return
	}

	email := prompt(reader, "Enter Email: ")
	if email == "" {
		fmt.Println("Error: Email is required")
		return
	}

	fmt.Print("Enter Password: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println() // Newline after password input
	if err != nil {
		fmt.Println("Error reading password")
		return
	}
	password := string(bytePassword)
	if len(password) < 6 {
		fmt.Println("Error: Password must be at least 6 characters")
		return
	}

	role := strings.ToLower(prompt(reader, "Enter Role (teacher/student, blank for none): "))
	if role != "" && role != string(model.RoleTeacher) && role != string(model.RoleStudent) {
		fmt.Println("Error: Role must be teacher or student")
		return
	}

	// ─── Logic ─────────────────────────────────────────────────────────
	resp, err := authService.Register(ctx, model.RegisterRequest{
		Name:     name,
		Email:    email,
		Role:     role,
		Password: password,
	})
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			fmt.Printf("Error: %s is already registered\n", email)
			return
		}
		log.Fatal().Err(err).Msg("Failed to create user")
	}

	fmt.Printf("\nSuccess! User '%s' (%s) created with ID: %s\n", resp.User.Name, resp.User.Email, resp.User.ID)
	fmt.Printf("Token (valid %s): %s\n", cfg.JWTExpiry, resp.Token)
}

func prompt(reader *bufio.Reader, label string) string {
	fmt.Print(label)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}
