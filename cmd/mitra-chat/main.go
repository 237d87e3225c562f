// ABOUTME: Entry point for the mitra-chat terminal client
// ABOUTME: Wires store, gateway client, auth session, and engine together explicitly

package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"

	"github.com/mitra/mitra-client/internal/auth"
	"github.com/mitra/mitra-client/internal/client"
	"github.com/mitra/mitra-client/internal/config"
	"github.com/mitra/mitra-client/internal/engine"
	"github.com/mitra/mitra-client/internal/store"
)

// version is overridden at build time via -ldflags.
var version = "dev"

// getConfigPath returns the path to the client config file.
// Priority: MITRA_CONFIG env var > XDG_CONFIG_HOME/mitra/client.yaml > ~/.config/mitra/client.yaml
func getConfigPath() string {
	if envPath := os.Getenv("MITRA_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "client.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "mitra", "client.yaml")
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "chat":
		err = runChat(ctx)
	case "login":
		err = runLogin(ctx)
	case "register":
		err = runRegister(ctx)
	case "logout":
		err = runLogout()
	case "health":
		err = runHealth(ctx)
	case "upload":
		err = runUpload(ctx, os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Printf("mitra-chat %s\n", version)
	fmt.Println()
	fmt.Println("Usage: mitra-chat <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  chat                   Start an interactive chat session")
	fmt.Println("  login                  Sign in to the gateway")
	fmt.Println("  register               Create an account")
	fmt.Println("  logout                 Clear the local session")
	fmt.Println("  health                 Check gateway connectivity")
	fmt.Println("  upload <file>          Add a document to the knowledge base")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  MITRA_CONFIG           Config file path (default: ~/.config/mitra/client.yaml)")
}

// app bundles the wired services. Everything is constructed once in newApp
// and passed around explicitly.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.BoltStore
	gateway  *client.Client
	session  *auth.Session
	engine   *engine.Engine
	notifier *engine.Notifier
}

func newApp() (*app, error) {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	prefs := loadPrefs()
	if prefs.UI.NoColor {
		color.NoColor = true
	}
	logger := setupLogger(cfg.Logging)

	st, err := store.NewBoltStore(cfg.Storage.Path, logger,
		store.WithRecentLimit(cfg.Chat.RecentLimit))
	if err != nil {
		return nil, fmt.Errorf("opening session store: %w", err)
	}

	baseURL := cfg.Gateway.BaseURL
	if prefs.Gateway.URL != "" {
		baseURL = prefs.Gateway.URL
	}
	gateway := client.New(baseURL, logger, client.WithTimeout(cfg.Gateway.Timeout))

	session := auth.NewSession(st, logger)
	if err := session.Load(); err != nil {
		// Decode and expiry problems surface as a notice, not a failure;
		// the session has already settled on a safe state.
		color.Yellow("Session reset: %v\n", err)
	}
	if session.State() == auth.StateAuthenticated {
		if token, err := st.Token(); err == nil {
			gateway.SetToken(token)
		}
	}

	notifier := engine.NewNotifier(logger)
	eng := engine.New(st, gateway, notifier, logger,
		engine.WithMaxMessageLength(cfg.Chat.MaxMessageLength))

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		gateway:  gateway,
		session:  session,
		engine:   eng,
		notifier: notifier,
	}, nil
}

func (a *app) close() {
	a.notifier.Close()
	if err := a.store.Close(); err != nil {
		a.logger.Warn("closing store", "error", err)
	}
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

func runLogin(ctx context.Context) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	email := prompt("Email: ")
	password := prompt("Password: ")

	creds, err := a.gateway.Login(ctx, email, password)
	if err != nil {
		return err
	}
	if err := a.session.SignIn(creds.AccessToken); err != nil {
		return err
	}

	if ident := a.session.Identity(); ident != nil {
		color.Green("Signed in as %s\n", ident.Email)
	} else {
		color.Green("Signed in\n")
	}
	return nil
}

func runRegister(ctx context.Context) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	email := prompt("Email: ")
	username := prompt("Username: ")
	password := prompt("Password: ")

	creds, err := a.gateway.Register(ctx, email, username, password)
	if err != nil {
		return err
	}
	if err := a.session.SignIn(creds.AccessToken); err != nil {
		return err
	}
	color.Green("Account created\n")
	return nil
}

func runLogout() error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.session.SignOut(); err != nil {
		return err
	}
	fmt.Println("Signed out.")
	return nil
}

func runHealth(ctx context.Context) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	status, err := a.gateway.CheckHealth(ctx)
	if err != nil {
		return err
	}
	color.Green("Gateway status: %s\n", status)
	return nil
}

func runUpload(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: mitra-chat upload <file>")
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	ack, err := a.gateway.UploadDocument(ctx, filepath.Base(args[0]), f, map[string]string{
		"title": filepath.Base(args[0]),
	})
	if err != nil {
		return err
	}
	color.Green("Uploaded: %s\n", ack.DocumentID)
	return nil
}

func prompt(label string) string {
	fmt.Print(label)
	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}
