package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/lexlanka/gavel/pkg/observability"
	"github.com/lexlanka/gavel/pkg/qa"
)

// ChatCmd runs a local REPL over the QA pipeline.
type ChatCmd struct {
	Language string `help:"Answer language code (en, si, ta)." default:"en"`
}

func (c *ChatCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := loadConfig(cli.Config)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}

	obs := observability.NewManager(cfg.Observability)
	if err := obs.Initialize(ctx); err != nil {
		return fmt.Errorf("initializing observability: %w", err)
	}
	defer func() { _ = obs.Shutdown(context.Background()) }()

	svc, cleanup, err := buildServices(ctx, cfg, obs)
	if err != nil {
		return err
	}
	defer cleanup()

	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	if interactive {
		fmt.Println("gavel chat - ask about Sri Lankan law (exit or Ctrl-D to quit)")
	}

	// One session for the whole REPL run so follow-up questions carry
	// the conversation.
	sessionID := qa.DeriveSessionID(fmt.Sprintf("repl-%d", os.Getpid()))

	reader := bufio.NewReader(os.Stdin)
	for {
		if interactive {
			fmt.Print("> ")
		}
		line, err := reader.ReadString('\n')
		query := strings.TrimSpace(line)
		if query == "exit" || query == "quit" {
			return nil
		}
		if query != "" {
			resp := svc.QA.Answer(ctx, qa.Request{
				Query:     query,
				Language:  c.Language,
				SessionID: sessionID,
			})
			fmt.Println(resp.Response)
			if len(resp.Citations) > 0 {
				fmt.Printf("citations: %s\n", strings.Join(resp.Citations, ", "))
			}
			if !resp.Success {
				fmt.Printf("(degraded: %s)\n", resp.Error)
			}
		}
		if err != nil {
			// EOF after the final line.
			return nil
		}
	}
}
