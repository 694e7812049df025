// Package cli implements the quiz-cli commands on top of internal/client.
package cli

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/stemsi/quizly-backend/internal/client"
	"github.com/stemsi/quizly-backend/internal/model"
)

// ErrUsage is returned for bad arguments after the usage was printed.
var ErrUsage = errors.New("invalid usage")

// PasswordReader reads a secret without echoing it.
type PasswordReader func() (string, error)

// App runs one command per invocation.
type App struct {
	api          *client.Client
	serverURL    string
	in           *bufio.Reader
	out          io.Writer
	readPassword PasswordReader
	tick         time.Duration
}

// New creates an App. A nil readPassword falls back to reading a line
// from in.
func New(api *client.Client, serverURL string, in io.Reader, out io.Writer, readPassword PasswordReader) *App {
	a := &App{
		api:       api,
		serverURL: serverURL,
		in:        bufio.NewReader(in),
		out:       &lockedWriter{w: out},
		tick:      time.Second,
	}
	if readPassword == nil {
		readPassword = func() (string, error) { return a.readLine() }
	}
	a.readPassword = readPassword
	return a
}

// Run dispatches args[0] to its command.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		a.printHelp()
		return ErrUsage
	}

	var err error
	switch cmd, rest := strings.ToLower(args[0]), args[1:]; cmd {
	case "help", "-h", "--help":
		a.printHelp()
		return nil
	case "register":
		err = a.register(ctx, rest)
	case "login":
		err = a.login(ctx, rest)
	case "logout":
		err = a.logout(ctx)
	case "whoami":
		err = a.whoami(ctx)
	case "list":
		err = a.list(ctx, rest)
	case "play":
		err = a.play(ctx, rest)
	case "create":
		err = a.create(ctx, rest)
	case "generate":
		err = a.generate(ctx, rest)
	case "leaderboard":
		err = a.leaderboard(ctx, rest)
	case "attempts":
		err = a.attempts(ctx)
	default:
		fmt.Fprintf(a.out, "unknown command %q\n\n", cmd)
		a.printHelp()
		return ErrUsage
	}
	return a.describe(err)
}

func (a *App) printHelp() {
	fmt.Fprintln(a.out, "Usage: quiz-cli <command> [flags]")
	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, "Commands:")
	fmt.Fprintln(a.out, "  register [-name N] [-email E] [-role teacher|student]")
	fmt.Fprintln(a.out, "  login [-email E]")
	fmt.Fprintln(a.out, "  logout")
	fmt.Fprintln(a.out, "  whoami")
	fmt.Fprintln(a.out, "  list [-search S] [-topic T] [-difficulty D] | list topics")
	fmt.Fprintln(a.out, "  play <quiz-id|share-code> [-live]")
	fmt.Fprintln(a.out, "  create -file quiz.yaml")
	fmt.Fprintln(a.out, "  generate -topic T [-n 5] [-difficulty Beginner] [-save] [-title T]")
	fmt.Fprintln(a.out, "  leaderboard <quiz-id|share-code> [-limit 10]")
	fmt.Fprintln(a.out, "  attempts")
}

func (a *App) describe(err error) error {
	if err == nil || errors.Is(err, ErrUsage) {
		return err
	}
	if errors.Is(err, client.ErrServiceUnavailable) {
		return fmt.Errorf("quiz service unavailable at %s", a.serverURL)
	}
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Status == 401 && apiErr.Code != "INVALID_CREDENTIALS" {
		return fmt.Errorf("%s; run `quiz-cli login`", apiErr.Message)
	}
	return err
}

func (a *App) register(ctx context.Context, args []string) error {
	fs := a.flagSet("register")
	name := fs.String("name", "", "display name")
	email := fs.String("email", "", "email address")
	role := fs.String("role", "", "teacher or student")
	if _, err := parseArgs(fs, args); err != nil {
		return ErrUsage
	}

	var err error
	if *name, err = a.promptIfEmpty(*name, "Name: "); err != nil {
		return err
	}
	if *email, err = a.promptIfEmpty(*email, "Email: "); err != nil {
		return err
	}
	fmt.Fprint(a.out, "Password: ")
	password, err := a.readPassword()
	fmt.Fprintln(a.out)
	if err != nil {
		return err
	}

	resp, err := a.api.Register(ctx, model.RegisterRequest{
		Name:     *name,
		Email:    *email,
		Role:     strings.ToLower(strings.TrimSpace(*role)),
		Password: password,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Registered and logged in as %s <%s>\n", resp.User.Name, resp.User.Email)
	return nil
}

func (a *App) login(ctx context.Context, args []string) error {
	fs := a.flagSet("login")
	email := fs.String("email", "", "email address")
	if _, err := parseArgs(fs, args); err != nil {
		return ErrUsage
	}

	var err error
	if *email, err = a.promptIfEmpty(*email, "Email: "); err != nil {
		return err
	}
	fmt.Fprint(a.out, "Password: ")
	password, err := a.readPassword()
	fmt.Fprintln(a.out)
	if err != nil {
		return err
	}

	resp, err := a.api.Login(ctx, *email, password)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Logged in as %s <%s>\n", resp.User.Name, resp.User.Email)
	return nil
}

func (a *App) logout(ctx context.Context) error {
	if err := a.api.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

func (a *App) whoami(ctx context.Context) error {
	s, err := a.api.Session()
	if err != nil {
		return err
	}
	if s == nil {
		return client.ErrNotLoggedIn
	}
	user, err := a.api.Profile(ctx)
	if err != nil {
		return err
	}
	line := fmt.Sprintf("%s <%s>", user.Name, user.Email)
	if user.Role != "" {
		line += " (" + string(user.Role) + ")"
	}
	fmt.Fprintln(a.out, line)
	fmt.Fprintf(a.out, "id: %s\n", user.ID)
	return nil
}

func (a *App) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.out)
	return fs
}

// parseArgs lets positional arguments and flags appear in any order.
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		if fs.NArg() == 0 {
			return positional, nil
		}
		positional = append(positional, fs.Arg(0))
		args = fs.Args()[1:]
	}
}

func (a *App) readLine() (string, error) {
	line, err := a.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (a *App) promptIfEmpty(value, prompt string) (string, error) {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value), nil
	}
	fmt.Fprint(a.out, prompt)
	return a.readLine()
}

// lockedWriter serializes writes from the countdown and the prompt loop.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
