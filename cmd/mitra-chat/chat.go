// ABOUTME: Interactive chat REPL for mitra-chat
// ABOUTME: One outstanding turn at a time; input is not read again until the turn settles

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/mitra/mitra-client/internal/auth"
	"github.com/mitra/mitra-client/internal/client"
	"github.com/mitra/mitra-client/internal/engine"
	"github.com/mitra/mitra-client/internal/store"
)

func runChat(ctx context.Context) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	// Route guard: unauthenticated sessions land on the auth entry view.
	// The terminal equivalent is offering guest mode instead of redirecting.
	if _, redirect := a.session.GuardRoute(auth.ViewChat); redirect {
		fmt.Println("Not signed in. Continuing as guest (run `mitra-chat login` to sign in).")
		if err := a.session.EnterGuest(); err != nil {
			return err
		}
	}

	a.engine.StartNewConversation()

	cyan := color.New(color.FgCyan)
	cyan.Printf("mitra-chat %s — /help for commands, /quit to exit\n\n", version)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			done, err := a.handleCommand(ctx, line)
			if err != nil {
				color.Red("%v\n", err)
			}
			if done {
				return nil
			}
			continue
		}

		// The REPL reads no further input until SendMessage settles, which
		// is the "disable the send button" half of the one-turn contract.
		result, err := a.engine.SendMessage(ctx, line)
		if err != nil {
			reportTurnError(err)
			continue
		}

		fmt.Println()
		renderNodes(os.Stdout, result.Nodes)
		fmt.Println()
		printReplyMeta(result.Reply)
	}
}

// reportTurnError turns engine errors into human-readable notices.
// Validation problems are local; network problems name the gateway.
func reportTurnError(err error) {
	var netErr *client.NetworkError
	switch {
	case engine.IsValidationError(err):
		color.Yellow("%v\n", err)
	case errors.As(err, &netErr):
		color.Red("Could not reach the assistant: %v\n", netErr.Err)
		color.Yellow("Your message was kept; send again when the gateway is back.\n")
	default:
		color.Red("%v\n", err)
	}
}

func printReplyMeta(reply *store.Message) {
	gray := color.New(color.FgHiBlack)
	if reply.Confidence != nil {
		gray.Printf("confidence: %.2f", *reply.Confidence)
		if len(reply.Sources) > 0 {
			gray.Printf(" · sources: %s", strings.Join(reply.Sources, ", "))
		}
		gray.Println()
	} else if len(reply.Sources) > 0 {
		gray.Printf("sources: %s\n", strings.Join(reply.Sources, ", "))
	}
}

// handleCommand executes a /command line. Returns true when the REPL should
// exit.
func (a *app) handleCommand(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		printChatHelp()
	case "/new":
		conv := a.engine.StartNewConversation()
		fmt.Printf("Started a new conversation (%s).\n", shortID(conv.ID))
	case "/list":
		return false, a.printConversationList()
	case "/load":
		if len(args) < 1 {
			return false, fmt.Errorf("usage: /load <id-prefix>")
		}
		return false, a.loadByPrefix(args[0])
	case "/pin":
		if len(args) < 1 {
			return false, fmt.Errorf("usage: /pin <id-prefix>")
		}
		return false, a.withResolvedID(args[0], a.engine.TogglePin)
	case "/star":
		if len(args) < 1 {
			return false, fmt.Errorf("usage: /star <id-prefix>")
		}
		return false, a.withResolvedID(args[0], a.engine.ToggleStar)
	case "/delete":
		if len(args) < 1 {
			return false, fmt.Errorf("usage: /delete <id-prefix>")
		}
		return false, a.withResolvedID(args[0], a.engine.DeleteConversation)
	case "/export":
		if len(args) < 2 {
			return false, fmt.Errorf("usage: /export <id-prefix> <json|text>")
		}
		return false, a.exportByPrefix(args[0], args[1])
	case "/suggest":
		return false, a.printSuggestions(ctx)
	default:
		return false, fmt.Errorf("unknown command %s (try /help)", cmd)
	}
	return false, nil
}

func printChatHelp() {
	yellow := color.New(color.FgYellow)
	yellow.Println("Commands:")
	fmt.Println("  /new                     Start a new conversation")
	fmt.Println("  /list                    List pinned and recent conversations")
	fmt.Println("  /load <id-prefix>        Switch to a stored conversation")
	fmt.Println("  /pin <id-prefix>         Toggle pin")
	fmt.Println("  /star <id-prefix>        Toggle star")
	fmt.Println("  /delete <id-prefix>      Delete permanently")
	fmt.Println("  /export <id-prefix> <json|text>")
	fmt.Println("  /suggest                 Ask the gateway for follow-up questions")
	fmt.Println("  /quit                    Exit")
}

func (a *app) printConversationList() error {
	p, err := a.store.Partition()
	if err != nil {
		return err
	}

	yellow := color.New(color.FgYellow)
	if len(p.Pinned) > 0 {
		yellow.Println("Pinned:")
		for _, c := range p.Pinned {
			printConversationLine(c)
		}
	}
	yellow.Println("Recent:")
	if len(p.Recent) == 0 {
		fmt.Println("  (none)")
	}
	for _, c := range p.Recent {
		printConversationLine(c)
	}
	return nil
}

func printConversationLine(c *store.Conversation) {
	title := c.Title
	if title == "" {
		title = "(untitled)"
	}
	marker := " "
	if c.Starred {
		marker = "*"
	}
	fmt.Printf("  %s %s  %s  %s\n", marker, shortID(c.ID), c.UpdatedAt.Format("2006-01-02 15:04"), title)
}

func (a *app) loadByPrefix(prefix string) error {
	id, err := a.resolveID(prefix)
	if err != nil {
		return err
	}
	if err := a.engine.LoadConversation(id); err != nil {
		return err
	}

	conv := a.engine.Active()
	fmt.Printf("Loaded %q (%d messages).\n", conv.Title, len(conv.Messages))
	for _, msg := range conv.Messages {
		if msg.Role == store.RoleUser {
			fmt.Printf("> %s\n", msg.Content)
			continue
		}
		renderNodes(os.Stdout, renderMessage(msg))
		fmt.Println()
	}
	return nil
}

func (a *app) exportByPrefix(prefix, exportFormat string) error {
	id, err := a.resolveID(prefix)
	if err != nil {
		return err
	}
	data, err := a.engine.ExportConversation(id, exportFormat)
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func (a *app) printSuggestions(ctx context.Context) error {
	conv := a.engine.Active()
	if conv == nil {
		return fmt.Errorf("no active conversation")
	}
	suggestions, err := a.gateway.Suggestions(ctx, conv.SessionID)
	if err != nil {
		return err
	}
	for _, s := range suggestions {
		fmt.Printf("  · %s\n", s)
	}
	return nil
}

// withResolvedID expands an id prefix and applies an engine action to it.
func (a *app) withResolvedID(prefix string, action func(string) error) error {
	id, err := a.resolveID(prefix)
	if err != nil {
		return err
	}
	return action(id)
}

// resolveID matches a typed prefix against stored conversation ids.
func (a *app) resolveID(prefix string) (string, error) {
	convs, err := a.store.List()
	if err != nil {
		return "", err
	}
	var match string
	for _, c := range convs {
		if strings.HasPrefix(c.ID, prefix) {
			if match != "" {
				return "", fmt.Errorf("prefix %q is ambiguous", prefix)
			}
			match = c.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("no conversation matches %q", prefix)
	}
	return match, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
